// Package redis implements store.Store on top of Redis, backing the
// cache/dedup/active-job/queue layouts this runtime persists.
//
// Connection setup follows the same shape as adapter/redis: parse a
// redis:// URL, construct a single *redis.Client, and surface connection
// failures as wrapped errors rather than panicking.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hexquarry/battle/store"
)

// queueListPrefix namespaces FIFO lists from the flat key/value space.
const queueListPrefix = "queue:list:"

// Config configures the Redis-backed store.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
}

// Store is a store.Store backed by Redis.
type Store struct {
	client *goredis.Client
}

// New creates a Redis-backed store from the given config.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis store requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis store: invalid URL: %w", err)
	}
	return &Store{client: goredis.NewClient(opts)}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get %q: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis store: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis store: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis store: scan %q: %w", prefix, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis store: exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) Queue(ctx context.Context, name string, payload []byte) error {
	if err := s.client.RPush(ctx, queueListPrefix+name, payload).Err(); err != nil {
		return fmt.Errorf("redis store: queue %q: %w", name, err)
	}
	return nil
}

func (s *Store) Dequeue(ctx context.Context, name string) ([]byte, error) {
	v, err := s.client.LPop(ctx, queueListPrefix+name).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: dequeue %q: %w", name, err)
	}
	return v, nil
}

func (s *Store) QueueLen(ctx context.Context, name string) (int, error) {
	n, err := s.client.LLen(ctx, queueListPrefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("redis store: queue len %q: %w", name, err)
	}
	return int(n), nil
}

func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis store: increment %q: %w", key, err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ store.Store = (*Store)(nil)
