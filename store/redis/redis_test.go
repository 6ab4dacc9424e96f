package redis

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hexquarry/battle/store"
)

func TestStore_SetGet(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(v) != "v" {
		t.Errorf("expected %q, got %q", "v", v)
	}
}

func TestStore_GetMissing(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = s.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected %v, got %v", store.ErrNotFound, err)
	}
}

func TestStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mr.FastForward(2 * time.Second)

	_, err = s.Get(ctx, "k")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected %v, got %v", store.ErrNotFound, err)
	}
}

func TestStore_QueueFIFOOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := s.Queue(ctx, "q", []byte("first")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Queue(ctx, "q", []byte("second")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := s.QueueLen(ctx, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected queue length 2, got %d", n)
	}

	v, err := s.Dequeue(ctx, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(v) != "first" {
		t.Errorf("expected %q, got %q", "first", v)
	}
}

func TestStore_DequeueEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = s.Dequeue(context.Background(), "empty")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected %v, got %v", store.ErrNotFound, err)
	}
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestStore_IncrementAccumulates(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if _, err = s.Increment(ctx, "counter", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := s.Increment(ctx, "counter", -2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestStore_ScanPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := s.Set(ctx, "active:alice:job-1", []byte("1"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Set(ctx, "active:alice:job-2", []byte("1"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Set(ctx, "active:bob:job-3", []byte("1"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys, err := s.ScanPrefix(ctx, "active:alice:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertElementsMatch(t, []string{"active:alice:job-1", "active:alice:job-2"}, keys)
}

func assertElementsMatch(t *testing.T, want, got []string) {
	t.Helper()
	w := append([]string(nil), want...)
	g := append([]string(nil), got...)
	sort.Strings(w)
	sort.Strings(g)
	if len(w) != len(g) {
		t.Fatalf("expected elements %v, got %v", want, got)
	}
	for i := range w {
		if w[i] != g[i] {
			t.Fatalf("expected elements %v, got %v", want, got)
		}
	}
}
