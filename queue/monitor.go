package queue

import (
	"context"
	"sync"
	"time"
)

// DepthCounts is the state-partitioned view of the queue exposed by the
// monitor.
type DepthCounts struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Timestamp  time.Time
}

// Total returns the admission-relevant depth (pending + processing);
// completed/failed jobs don't count toward system_queue_limit.
func (d DepthCounts) Total() int {
	return d.Pending + d.Processing
}

// Signal is emitted once per threshold-crossing per cache epoch.
type Signal string

const (
	SignalWarning  Signal = "warning"
	SignalCritical Signal = "critical"
)

// depthSource is the narrow query surface Monitor needs from the
// authoritative backing store.
type depthSource interface {
	Depths(ctx context.Context) (DepthCounts, error)
}

// Monitor exposes queue depth with a short-lived result cache to amortize
// backing-store queries, and emits a one-shot warning/critical signal the
// first time depth crosses a threshold within a cache epoch, per
// depth changes.
type Monitor struct {
	mu                sync.Mutex
	source            depthSource
	cacheTTL          time.Duration
	warningThreshold  int
	criticalThreshold int

	cached       DepthCounts
	cacheExpires time.Time
	warned       bool
	critical     bool
	now          func() time.Time
}

// NewMonitor creates a Monitor backed by source, caching results for
// cacheTTL (around 1s in practice) and arming warning/critical signals at
// the given thresholds.
func NewMonitor(source depthSource, cacheTTL time.Duration, warningThreshold, criticalThreshold int) *Monitor {
	return &Monitor{
		source:            source,
		cacheTTL:          cacheTTL,
		warningThreshold:  warningThreshold,
		criticalThreshold: criticalThreshold,
		now:               time.Now,
	}
}

// Depths returns the current (possibly cached) depth counts, and any
// signal newly armed by this refresh. Signal is empty when nothing newly
// crossed a threshold, including when the result came from cache.
func (m *Monitor) Depths(ctx context.Context) (DepthCounts, Signal, error) {
	m.mu.Lock()
	if m.now().Before(m.cacheExpires) {
		cached := m.cached
		m.mu.Unlock()
		return cached, "", nil
	}
	m.mu.Unlock()

	counts, err := m.source.Depths(ctx)
	if err != nil {
		return DepthCounts{}, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = counts
	m.cacheExpires = m.now().Add(m.cacheTTL)
	// Epoch reset: each refresh re-arms both signals so a transient dip
	// below threshold allows the signal to fire again on the next crossing.
	m.warned = false
	m.critical = false

	total := counts.Total()
	var signal Signal
	if total >= m.criticalThreshold && !m.critical {
		m.critical = true
		signal = SignalCritical
	} else if total >= m.warningThreshold && !m.warned {
		m.warned = true
		signal = SignalWarning
	}

	return counts, signal, nil
}
