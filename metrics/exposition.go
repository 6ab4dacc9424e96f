package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Exporter converts Collector snapshots into Prometheus text exposition
// format. A Prometheus counter must never be exported as anything but its
// running cumulative total, so the Exporter tracks its own monotonic
// exported totals and advances them by the delta observed since the
// previous snapshot, per spec §4.6's "delta-incremented ... to preserve
// monotonic semantics" — the delta drives the increment, but the printed
// value is always the accumulated total, never the raw delta.
type Exporter struct {
	mu sync.Mutex

	prevCacheHits   int64
	prevCacheMisses int64

	exportedCacheHits   int64
	exportedCacheMisses int64
}

// NewExporter creates an Exporter with a zeroed delta baseline.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export renders snap as Prometheus text format.
func (e *Exporter) Export(snap Snapshot) string {
	e.mu.Lock()
	if hitDelta := snap.CacheHits - e.prevCacheHits; hitDelta > 0 {
		e.exportedCacheHits += hitDelta
	}
	if missDelta := snap.CacheMisses - e.prevCacheMisses; missDelta > 0 {
		e.exportedCacheMisses += missDelta
	}
	e.prevCacheHits = snap.CacheHits
	e.prevCacheMisses = snap.CacheMisses
	hits := e.exportedCacheHits
	misses := e.exportedCacheMisses
	e.mu.Unlock()

	var b strings.Builder

	b.WriteString("# HELP queue_jobs_total Number of jobs currently in each state.\n")
	b.WriteString("# TYPE queue_jobs_total gauge\n")
	states := make([]string, 0, len(snap.JobsByState))
	for s := range snap.JobsByState {
		states = append(states, string(s))
	}
	sort.Strings(states)
	for _, s := range states {
		fmt.Fprintf(&b, "queue_jobs_total{state=%q} %d\n", s, snap.JobsByState[JobState(s)])
	}

	b.WriteString("# HELP queue_cache_hit_rate Fraction of submissions served from cache.\n")
	b.WriteString("# TYPE queue_cache_hit_rate gauge\n")
	fmt.Fprintf(&b, "queue_cache_hit_rate %s\n", formatFloat(snap.CacheHitRate()))

	b.WriteString("# HELP queue_cache_hits_total Total cache hits on submission.\n")
	b.WriteString("# TYPE queue_cache_hits_total counter\n")
	fmt.Fprintf(&b, "queue_cache_hits_total %d\n", hits)

	b.WriteString("# HELP queue_cache_misses_total Total cache misses on submission.\n")
	b.WriteString("# TYPE queue_cache_misses_total counter\n")
	fmt.Fprintf(&b, "queue_cache_misses_total %d\n", misses)

	writeSummary(&b, "queue_job_duration_milliseconds", "Job processing duration in milliseconds.", snap.JobDuration)
	writeSummary(&b, "queue_wait_time_milliseconds", "Time a job spent pending before a worker picked it up.", snap.QueueWait)

	b.WriteString("# HELP queue_active_users Number of submitters with at least one in-flight job.\n")
	b.WriteString("# TYPE queue_active_users gauge\n")
	fmt.Fprintf(&b, "queue_active_users %d\n", snap.ActiveUsers)

	return b.String()
}

func writeSummary(b *strings.Builder, name, help string, s Summary) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s summary\n", name)
	fmt.Fprintf(b, "%s{quantile=\"0.95\"} %s\n", name, formatFloat(s.P95))
	fmt.Fprintf(b, "%s_sum %s\n", name, formatFloat(s.Mean))
	fmt.Fprintf(b, "%s_min %s\n", name, formatFloat(s.Min))
	fmt.Fprintf(b, "%s_max %s\n", name, formatFloat(s.Max))
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.6g", f)
}
