package pipeline

import (
	"sync"
	"time"

	"github.com/hexquarry/battle/types"
)

// frameBufferSize is the per-subscriber channel depth. Progress delivery
// is at-least-once but coalescing is explicitly permitted:
// a full channel means a new frame replaces the stalest buffered one
// rather than blocking the publishing worker.
const frameBufferSize = 4

// subscription is one stream handler's view of a job's progress.
type subscription struct {
	ch chan types.ProgressFrame
}

// topic holds the fan-out state for a single job_id: its subscribers and
// the most recent frame, so a subscriber attaching mid-job immediately
// receives a snapshot rather than waiting for the next publish.
type topic struct {
	mu          sync.Mutex
	subscribers map[*subscription]struct{}
	last        *types.ProgressFrame
}

// ProgressHub is a process-local publish/subscribe keyed by job_id.
// Workers publish; per-connection stream handlers subscribe. A non-busy-spin
// fan-out dispatch, narrowed here to simple per-key broadcast instead of a
// work queue.
type ProgressHub struct {
	mu     sync.Mutex
	topics map[string]*topic
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{topics: make(map[string]*topic)}
}

func (h *ProgressHub) topicFor(jobID string) *topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[jobID]
	if !ok {
		t = &topic{subscribers: make(map[*subscription]struct{})}
		h.topics[jobID] = t
	}
	return t
}

// Subscribe returns a channel of progress frames for jobID and an
// unsubscribe function the caller must invoke when the connection closes.
// If a frame has already been published for jobID, it is delivered
// immediately so a subscriber attaching mid-job sees current state within
// one update_interval.
func (h *ProgressHub) Subscribe(jobID string) (<-chan types.ProgressFrame, func()) {
	t := h.topicFor(jobID)
	sub := &subscription{ch: make(chan types.ProgressFrame, frameBufferSize)}

	t.mu.Lock()
	t.subscribers[sub] = struct{}{}
	if t.last != nil {
		sub.ch <- *t.last
	}
	t.mu.Unlock()

	unsubscribe := func() {
		t.mu.Lock()
		delete(t.subscribers, sub)
		t.mu.Unlock()
	}
	return sub.ch, unsubscribe
}

// Publish broadcasts frame to every current subscriber of jobID and
// caches it as the topic's latest snapshot. A terminal frame causes the
// topic (and all subscriber channels) to be torn down once delivered,
// since no further frames will ever be published for this job_id.
func (h *ProgressHub) Publish(jobID string, frame types.ProgressFrame) {
	t := h.topicFor(jobID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &frame

	for sub := range t.subscribers {
		select {
		case sub.ch <- frame:
		default:
			// Buffer full: drop the oldest buffered frame and retry once.
			// Coalescing is explicitly permitted; subscribers are only
			// guaranteed the terminal frame and at least one intermediate.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- frame:
			default:
			}
		}
	}

	if frame.Terminal() {
		for sub := range t.subscribers {
			close(sub.ch)
		}
		h.mu.Lock()
		delete(h.topics, jobID)
		h.mu.Unlock()
	}
}

// Heartbeat publishes a non-terminal keepalive frame carrying the topic's
// last known state, preventing idle-connection collapse.
// Intended to be called on a ticker at keepalive_interval by the boundary
// that owns the long-lived connection.
func (h *ProgressHub) Heartbeat(jobID string) {
	h.mu.Lock()
	t, ok := h.topics[jobID]
	h.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return
	}
	frame := *t.last
	frame.Heartbeat = true
	for sub := range t.subscribers {
		select {
		case sub.ch <- frame:
		default:
		}
	}
}

// keepaliveTicker is a small helper for boundary code driving Heartbeat on
// a fixed interval. It is unexported, so code outside this package keeps
// its own ticker.
func keepaliveTicker(interval time.Duration) *time.Ticker {
	return time.NewTicker(interval)
}
