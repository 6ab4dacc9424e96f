package metrics

import (
	"math"
	"testing"
)

func TestCollector_CacheHitRate(t *testing.T) {
	c := NewCollector()
	c.IncCacheHit()
	c.IncCacheHit()
	c.IncCacheMiss()

	snap := c.Snapshot()
	if snap.CacheHits != 2 {
		t.Errorf("expected CacheHits=2, got %d", snap.CacheHits)
	}
	if snap.CacheMisses != 1 {
		t.Errorf("expected CacheMisses=1, got %d", snap.CacheMisses)
	}
	if got, want := snap.CacheHitRate(), 2.0/3.0; math.Abs(got-want) > 0.0001 {
		t.Errorf("expected hit rate %v, got %v", want, got)
	}
}

func TestCollector_CacheHitRate_NoSamples(t *testing.T) {
	c := NewCollector()
	if got := c.Snapshot().CacheHitRate(); got != 0.0 {
		t.Errorf("expected hit rate 0, got %v", got)
	}
}

func TestCollector_JobLifecycle(t *testing.T) {
	c := NewCollector()
	c.RecordSubmitted("job-1", "alice")

	snap := c.Snapshot()
	if snap.JobsByState[JobStatePending] != 1 {
		t.Errorf("expected 1 pending job, got %d", snap.JobsByState[JobStatePending])
	}
	if snap.ActiveUsers != 1 {
		t.Errorf("expected 1 active user, got %d", snap.ActiveUsers)
	}

	c.RecordStart("job-1", 120)
	snap = c.Snapshot()
	if snap.JobsByState[JobStateProcessing] != 1 {
		t.Errorf("expected 1 processing job, got %d", snap.JobsByState[JobStateProcessing])
	}
	if snap.QueueWait.Mean != 120.0 {
		t.Errorf("expected queue wait mean 120, got %v", snap.QueueWait.Mean)
	}

	c.RecordComplete("job-1", 4500)
	snap = c.Snapshot()
	if snap.JobsByState[JobStateCompleted] != 1 {
		t.Errorf("expected 1 completed job, got %d", snap.JobsByState[JobStateCompleted])
	}
	if snap.ActiveUsers != 0 {
		t.Errorf("submitter has no more in-flight jobs, expected ActiveUsers=0, got %d", snap.ActiveUsers)
	}
	if snap.JobDuration.Mean != 4500.0 {
		t.Errorf("expected job duration mean 4500, got %v", snap.JobDuration.Mean)
	}
}

func TestCollector_RecordFailed_DropsActiveSubmitter(t *testing.T) {
	c := NewCollector()
	c.RecordSubmitted("job-1", "bob")
	c.RecordStart("job-1", 10)
	c.RecordFailed("job-1")

	snap := c.Snapshot()
	if snap.JobsByState[JobStateFailed] != 1 {
		t.Errorf("expected 1 failed job, got %d", snap.JobsByState[JobStateFailed])
	}
	if snap.ActiveUsers != 0 {
		t.Errorf("expected ActiveUsers=0, got %d", snap.ActiveUsers)
	}
}

func TestCollector_NegativeWaitDiscarded(t *testing.T) {
	c := NewCollector()
	c.RecordSubmitted("job-1", "alice")
	c.RecordStart("job-1", -50) // clock skew

	snap := c.Snapshot()
	if snap.QueueWait != (Summary{}) {
		t.Errorf("negative duration must be discarded, not clamped: got %+v", snap.QueueWait)
	}
}

func TestCollector_ActiveUsers_MultipleJobsSameSubmitter(t *testing.T) {
	c := NewCollector()
	c.RecordSubmitted("job-1", "alice")
	c.RecordSubmitted("job-2", "alice")

	if got := c.Snapshot().ActiveUsers; got != 1 {
		t.Errorf("expected ActiveUsers=1, got %d", got)
	}

	c.RecordComplete("job-1", 100)
	if got := c.Snapshot().ActiveUsers; got != 1 {
		t.Errorf("alice still has job-2 in flight: expected ActiveUsers=1, got %d", got)
	}

	c.RecordComplete("job-2", 100)
	if got := c.Snapshot().ActiveUsers; got != 0 {
		t.Errorf("expected ActiveUsers=0, got %d", got)
	}
}

func TestSummarize_P95AndBounds(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1) // 1..100
	}
	s := summarize(values)
	if s.Min != 1.0 {
		t.Errorf("expected Min=1, got %v", s.Min)
	}
	if s.Max != 100.0 {
		t.Errorf("expected Max=100, got %v", s.Max)
	}
	if s.P95 != 95.0 {
		t.Errorf("expected P95=95, got %v", s.P95)
	}
}

func TestDistribution_BoundedCircularBuffer(t *testing.T) {
	c := NewCollector()
	for i := 0; i < maxSamples+10; i++ {
		c.RecordSubmitted("job", "alice")
		c.RecordStart("job", float64(i))
	}
	if got := len(c.queueWait.values()); got != maxSamples {
		t.Errorf("expected bounded buffer of %d samples, got %d", maxSamples, got)
	}
}

func TestNilCollector_SafeNoOp(t *testing.T) {
	var c *Collector
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic on nil collector: %v", r)
		}
	}()
	c.IncCacheHit()
	c.RecordSubmitted("job-1", "alice")
	c.RecordStart("job-1", 10)
	c.RecordComplete("job-1", 10)
	c.RecordFailed("job-1")
	_ = c.Snapshot()
}
