// Package metrics collects in-process counters, gauges, and bounded
// distributions for the job queue, and exposes them via a Prometheus
// text-format adapter (see exposition.go).
//
// The Collector accumulates state for the lifetime of a process. It is a
// leaf package with no internal dependencies.
package metrics

import "sync"

// JobState mirrors the admission/processing states a job moves through.
// Duplicated from types.JobState as a plain string to keep this package
// free of domain dependencies.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// maxSamples bounds each distribution's circular buffer per §4.6.
const maxSamples = 1000

// distribution is a bounded circular buffer of recent sample values.
type distribution struct {
	samples []float64
	next    int
	full    bool
}

func (d *distribution) record(v float64) {
	if d.samples == nil {
		d.samples = make([]float64, maxSamples)
	}
	d.samples[d.next] = v
	d.next = (d.next + 1) % maxSamples
	if d.next == 0 {
		d.full = true
	}
}

func (d *distribution) values() []float64 {
	if d.full {
		return append([]float64(nil), d.samples...)
	}
	return append([]float64(nil), d.samples[:d.next]...)
}

// Summary is the mean/min/max/p95 view of a bounded distribution.
type Summary struct {
	Mean float64
	Min  float64
	Max  float64
	P95  float64
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	idx := int(float64(len(sorted)-1) * 0.95)
	return Summary{
		Mean: sum / float64(len(sorted)),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P95:  sorted[idx],
	}
}

// Snapshot is an immutable point-in-time view of all collected metrics.
// Safe to read concurrently after creation.
type Snapshot struct {
	CacheHits   int64
	CacheMisses int64

	JobsByState   map[JobState]int64
	ActiveUsers   int64

	JobDuration Summary
	QueueWait   Summary
}

// CacheHitRate returns hits / (hits + misses), or 0 when no samples exist.
func (s Snapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// jobTiming records a tracked job's submitter and current state, so a
// transition can move the per-state gauges and the active-submitter count.
type jobTiming struct {
	submitter string
	state     JobState
}

// Collector accumulates queue metrics for one process. Thread-safe via
// sync.Mutex. All recording methods are nil-receiver safe so a nil
// *Collector can be threaded through call sites that don't care about
// metrics.
type Collector struct {
	mu sync.Mutex

	cacheHits   int64
	cacheMisses int64

	jobs           map[string]jobTiming // job_id -> current state/submitter
	submitterCount map[string]int       // submitter -> count of jobs in {pending,processing}

	jobDuration distribution
	queueWait   distribution
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		jobs:           make(map[string]jobTiming),
		submitterCount: make(map[string]int),
	}
}

// IncCacheHit records a cache hit on submission.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// IncCacheMiss records a cache miss on submission.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// RecordSubmitted moves jobID into the pending state for submitter and
// marks submitter active.
func (c *Collector) RecordSubmitted(jobID, submitter string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[jobID] = jobTiming{submitter: submitter, state: JobStatePending}
	c.submitterCount[submitter]++
}

// RecordStart moves jobID into processing and records waitMillis as a
// queue-wait sample. Negative waitMillis (clock skew) is discarded.
func (c *Collector) RecordStart(jobID string, waitMillis float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.jobs[jobID]
	if !ok {
		return
	}
	t.state = JobStateProcessing
	c.jobs[jobID] = t
	if waitMillis >= 0 {
		c.queueWait.record(waitMillis)
	}
}

// RecordComplete moves jobID into completed, records durationMillis, and
// decrements the submitter's active count.
func (c *Collector) RecordComplete(jobID string, durationMillis float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finish(jobID, JobStateCompleted, durationMillis)
}

// RecordFailed moves jobID into failed and decrements the submitter's
// active count. No duration sample is recorded for failed jobs.
func (c *Collector) RecordFailed(jobID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finish(jobID, JobStateFailed, -1)
}

// finish must be called with mu held.
func (c *Collector) finish(jobID string, state JobState, durationMillis float64) {
	t, ok := c.jobs[jobID]
	if !ok {
		return
	}
	t.state = state
	c.jobs[jobID] = t
	c.submitterCount[t.submitter]--
	if c.submitterCount[t.submitter] <= 0 {
		delete(c.submitterCount, t.submitter)
	}
	if durationMillis >= 0 {
		c.jobDuration.record(durationMillis)
	}
}

// Snapshot returns an immutable view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{JobsByState: map[JobState]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byState := map[JobState]int64{
		JobStatePending:    0,
		JobStateProcessing: 0,
		JobStateCompleted:  0,
		JobStateFailed:     0,
	}
	for _, t := range c.jobs {
		byState[t.state]++
	}

	return Snapshot{
		CacheHits:   c.cacheHits,
		CacheMisses: c.cacheMisses,
		JobsByState: byState,
		ActiveUsers: int64(len(c.submitterCount)),
		JobDuration: summarize(c.jobDuration.values()),
		QueueWait:   summarize(c.queueWait.values()),
	}
}
