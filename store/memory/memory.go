// Package memory implements store.Store in process memory. Used for
// single-process operation and in tests that don't need miniredis.
package memory

import (
	"container/list"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hexquarry/battle/store"
)

type entry struct {
	value   []byte
	expires time.Time // zero means no expiration
}

// Store is an in-memory store.Store implementation. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	values map[string]entry
	queues map[string]*list.List
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		values: make(map[string]entry),
		queues: make(map[string]*list.List),
	}
}

func (s *Store) expired(e entry) bool {
	return !e.expires.IsZero() && e.expires.Before(timeNow())
}

// timeNow is a seam for deterministic tests; production always uses
// time.Now.
var timeNow = time.Now

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	if !ok || s.expired(e) {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = timeNow().Add(ttl)
	}
	s.values[key] = entry{value: append([]byte(nil), value...), expires: expires}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	if !ok || s.expired(e) {
		return false, nil
	}
	return true, nil
}

func (s *Store) ScanPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, e := range s.values {
		if s.expired(e) || !strings.HasPrefix(k, prefix) {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) Queue(_ context.Context, name string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[name]
	if !ok {
		q = list.New()
		s.queues[name] = q
	}
	q.PushBack(append([]byte(nil), payload...))
	return nil
}

func (s *Store) Dequeue(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[name]
	if !ok || q.Len() == 0 {
		return nil, store.ErrNotFound
	}
	front := q.Front()
	q.Remove(front)
	return front.Value.([]byte), nil
}

func (s *Store) QueueLen(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[name]
	if !ok {
		return 0, nil
	}
	return q.Len(), nil
}

func (s *Store) Increment(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	var current int64
	if ok && !s.expired(e) {
		current, _ = strconv.ParseInt(string(e.value), 10, 64)
	}
	current += delta
	s.values[key] = entry{value: []byte(strconv.FormatInt(current, 10))}
	return current, nil
}

func (s *Store) Close() error {
	return nil
}

var _ store.Store = (*Store)(nil)
