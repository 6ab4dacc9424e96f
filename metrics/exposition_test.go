package metrics

import (
	"strings"
	"testing"
)

func TestExporter_RendersHelpAndType(t *testing.T) {
	c := NewCollector()
	c.IncCacheHit()
	c.RecordSubmitted("job-1", "alice")

	out := NewExporter().Export(c.Snapshot())
	mustContain(t, out, "# HELP queue_jobs_total")
	mustContain(t, out, "# TYPE queue_jobs_total gauge")
	mustContain(t, out, `queue_jobs_total{state="pending"} 1`)
	mustContain(t, out, "# TYPE queue_cache_hits_total counter")
	mustContain(t, out, `queue_job_duration_milliseconds{quantile="0.95"}`)
}

// TestExporter_CounterIsCumulativeAcrossScrapes guards the testable
// property that counter exports are monotonically non-decreasing and that
// a no-activity scrape leaves counters unchanged: a scrape must print the
// running total, never the delta since the last scrape.
func TestExporter_CounterIsCumulativeAcrossScrapes(t *testing.T) {
	c := NewCollector()
	exporter := NewExporter()

	c.IncCacheHit()
	first := exporter.Export(c.Snapshot())
	mustContain(t, first, "queue_cache_hits_total 1")

	c.IncCacheHit()
	c.IncCacheHit()
	second := exporter.Export(c.Snapshot())
	mustContain(t, second, "queue_cache_hits_total 3")

	// No activity between scrapes: the counter must not regress or reset.
	third := exporter.Export(c.Snapshot())
	mustContain(t, third, "queue_cache_hits_total 3")
}

func TestExporter_CacheHitRateFormatting(t *testing.T) {
	c := NewCollector()
	c.IncCacheHit()
	c.IncCacheHit()
	c.IncCacheMiss()

	out := NewExporter().Export(c.Snapshot())
	lines := strings.Split(out, "\n")
	found := false
	for _, l := range lines {
		if strings.HasPrefix(l, "queue_cache_hit_rate ") {
			found = true
			if l != "queue_cache_hit_rate 0.666667" {
				t.Errorf("expected %q, got %q", "queue_cache_hit_rate 0.666667", l)
			}
		}
	}
	if !found {
		t.Error("expected a queue_cache_hit_rate line")
	}
}

func mustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
