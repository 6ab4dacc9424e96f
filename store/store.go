// Package store defines the key-value persistence boundary used by the
// admission and caching logic in package queue: cache entries, dedup
// records, active-job markers, and the FIFO work queue.
//
// Two backends implement Store: store/redis (backed by
// github.com/redis/go-redis/v9) for production, and store/memory for
// tests and single-process operation. Callers depend only on this
// interface.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value boundary backing the cache, dedup, and
// active-job record layouts this runtime persists.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Queue pushes payload onto the tail of the named FIFO list.
	Queue(ctx context.Context, name string, payload []byte) error

	// Dequeue pops and returns the head of the named FIFO list. Returns
	// ErrNotFound (not an error condition callers should log loudly) when
	// the list is empty.
	Dequeue(ctx context.Context, name string) ([]byte, error)

	// QueueLen returns the number of items in the named FIFO list.
	QueueLen(ctx context.Context, name string) (int, error)

	// ScanPrefix returns all keys beginning with prefix. Used to derive
	// authoritative active-job counts from individual active:<submitter>:
	// <job_id> markers without a separate counter structure.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)

	// Increment atomically adds delta to the integer stored at key
	// (creating it at 0 first if absent) and returns the new value. Backs
	// the per-state job gauges the queue monitor reports.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Close releases backend resources.
	Close() error
}
