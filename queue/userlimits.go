package queue

import (
	"context"
	"sync"
	"time"
)

// activeCounter is the narrow query surface UserLimits needs from the
// authoritative job store: the count of jobs a submitter currently has in
// {pending, processing}.
type activeCounter interface {
	CountActive(ctx context.Context, submitterID string) (int, error)
}

// cacheEntry holds a cached active-job count with its epoch.
type cacheEntry struct {
	count     int
	expiresAt time.Time
}

// UserLimits maintains a short-TTL cache of active-jobs-per-submitter so
// admission doesn't scan the queue on every request. On
// cache miss it queries the authoritative source; on query failure it
// fails closed (caller should reject the submission with a retriable
// error).
type UserLimits struct {
	mu      sync.Mutex
	cache   map[string]cacheEntry
	ttl     time.Duration
	counter activeCounter
	now     func() time.Time
}

// NewUserLimits creates a UserLimits backed by counter, with cache entries
// expiring after ttl (around 5s in practice).
func NewUserLimits(counter activeCounter, ttl time.Duration) *UserLimits {
	return &UserLimits{
		cache:   make(map[string]cacheEntry),
		ttl:     ttl,
		counter: counter,
		now:     time.Now,
	}
}

// ActiveCount returns submitterID's current active-job count, consulting
// the cache first. Returns an error when the cache has expired and the
// authoritative query itself fails — callers must treat this as fail
// closed (reject the submission), not as zero active jobs.
func (u *UserLimits) ActiveCount(ctx context.Context, submitterID string) (int, error) {
	u.mu.Lock()
	entry, ok := u.cache[submitterID]
	fresh := ok && u.now().Before(entry.expiresAt)
	u.mu.Unlock()

	if fresh {
		return entry.count, nil
	}

	count, err := u.counter.CountActive(ctx, submitterID)
	if err != nil {
		return 0, err
	}

	u.mu.Lock()
	u.cache[submitterID] = cacheEntry{count: count, expiresAt: u.now().Add(u.ttl)}
	u.mu.Unlock()

	return count, nil
}

// Invalidate drops the cached count for submitterID so a freed slot (a job
// of theirs reaching a terminal state) becomes usable immediately instead
// of waiting out the TTL. A nil *UserLimits is a no-op, so callers that
// run without an admission cache (e.g. a worker pool under test) don't
// need a guard at every call site.
func (u *UserLimits) Invalidate(submitterID string) {
	if u == nil {
		return
	}
	u.mu.Lock()
	delete(u.cache, submitterID)
	u.mu.Unlock()
}
