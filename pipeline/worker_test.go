package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hexquarry/battle/log"
	"github.com/hexquarry/battle/metrics"
	"github.com/hexquarry/battle/queue"
	memstore "github.com/hexquarry/battle/store/memory"
	"github.com/hexquarry/battle/types"
)

type fakeImage struct{ err error }

func (f fakeImage) GenerateBase(_ context.Context, _ types.GenerationRequest) ([]byte, error) {
	return []byte("base"), f.err
}

type fakeVision struct{}

func (fakeVision) Analyze(_ context.Context, _ []byte) (map[string]any, error) {
	return map[string]any{"hp": 10.0}, nil
}

type fakeAnimator struct{}

func (fakeAnimator) Render(_ context.Context, _ []byte, _ Direction, _ Animation) ([]byte, error) {
	return []byte("frame"), nil
}

func setupWorkerTest(t *testing.T, stagesErr error) (*WorkerPool, *queue.Registry, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	registry := queue.NewRegistry(s)
	hub := NewProgressHub()
	stages := Stages{Image: fakeImage{err: stagesErr}, Vision: fakeVision{}, Animator: fakeAnimator{}}
	m := metrics.NewCollector()
	logger := log.NewLogger(log.Context{})
	retry := RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond, BackoffMultiplier: 2}
	return NewWorkerPool(s, registry, hub, stages, m, logger, retry, time.Hour, nil), registry, s
}

func seedJob(t *testing.T, registry *queue.Registry, s *memstore.Store, jobID string) {
	t.Helper()
	ctx := context.Background()
	req := types.GenerationRequest{Type: types.SpriteTypeCreature, Style: "pixel", Size: types.Dimensions{Width: 32, Height: 32}, Description: "a lizard"}
	job := &types.Job{JobID: jobID, SubmitterID: "alice", Fingerprint: "fp-1", Request: req, State: types.JobPending, SubmittedAt: time.Now()}
	if err := registry.Put(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWorkerPool_ProcessItem_Success(t *testing.T) {
	pool, registry, _ := setupWorkerTest(t, nil)
	seedJob(t, registry, nil, "job-1")

	pool.processItem(context.Background(), &queue.WorkItem{JobID: "job-1"})

	job, err := registry.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != types.JobCompleted {
		t.Errorf("expected state %v, got %v", types.JobCompleted, job.State)
	}
	if job.Progress != 100 {
		t.Errorf("expected progress 100, got %d", job.Progress)
	}
	if job.Result == nil {
		t.Fatal("expected a non-nil result")
	}
	if len(job.Result.Sprites) != 9 { // 3 directions x 3 animations
		t.Errorf("expected 9 sprites, got %d", len(job.Result.Sprites))
	}
}

func TestWorkerPool_ProcessItem_NonRetryableFailure(t *testing.T) {
	pool, registry, _ := setupWorkerTest(t, errors.New("401 unauthorized"))
	seedJob(t, registry, nil, "job-1")

	pool.processItem(context.Background(), &queue.WorkItem{JobID: "job-1"})

	job, err := registry.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != types.JobFailed {
		t.Errorf("expected state %v, got %v", types.JobFailed, job.State)
	}
	if job.Error == nil {
		t.Fatal("expected a non-nil job error")
	}
	if job.Error.Retryable {
		t.Error("expected a non-retryable error")
	}
}

func TestWorkerPool_ProcessItem_RetriesThenFails(t *testing.T) {
	pool, registry, _ := setupWorkerTest(t, errors.New("503 server error"))
	seedJob(t, registry, nil, "job-1")

	pool.processItem(context.Background(), &queue.WorkItem{JobID: "job-1"})

	job, err := registry.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.State != types.JobFailed {
		t.Errorf("expected state %v, got %v", types.JobFailed, job.State)
	}
	if !job.Error.Retryable {
		t.Error("expected a retryable error")
	}
	if job.AttemptsMade != 1 {
		t.Errorf("expected 1 retry attempted beyond the first, got %d", job.AttemptsMade)
	}
}

func TestWorkerPool_ProcessItem_PublishesTerminalFrame(t *testing.T) {
	pool, registry, _ := setupWorkerTest(t, nil)
	seedJob(t, registry, nil, "job-1")

	ch, unsubscribe := pool.hub.Subscribe("job-1")
	defer unsubscribe()

	pool.processItem(context.Background(), &queue.WorkItem{JobID: "job-1"})

	var last types.ProgressFrame
	for frame := range ch {
		last = frame
	}
	if last.State != types.JobCompleted {
		t.Errorf("expected terminal state %v, got %v", types.JobCompleted, last.State)
	}
}

// invalidateCounter is a queue.activeCounter stub that always reports one
// active job until told otherwise, so a stale cached count can be
// distinguished from a freshly queried one.
type invalidateCounter struct {
	count int
	calls int
}

func (c *invalidateCounter) CountActive(_ context.Context, _ string) (int, error) {
	c.calls++
	return c.count, nil
}

func TestWorkerPool_ProcessItem_InvalidatesUserLimitsOnSuccess(t *testing.T) {
	pool, registry, _ := setupWorkerTest(t, nil)
	seedJob(t, registry, nil, "job-1")

	counter := &invalidateCounter{count: 1}
	userLimits := queue.NewUserLimits(counter, time.Hour)
	if _, err := userLimits.ActiveCount(context.Background(), "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pool.userLimits = userLimits

	pool.processItem(context.Background(), &queue.WorkItem{JobID: "job-1"})

	counter.count = 0
	n, err := userLimits.ActiveCount(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected the freed slot to be visible immediately, got cached count %d", n)
	}
	if counter.calls != 2 {
		t.Errorf("expected commit to force a fresh query (2 underlying calls), got %d", counter.calls)
	}
}

func TestWorkerPool_ProcessItem_InvalidatesUserLimitsOnFailure(t *testing.T) {
	pool, registry, _ := setupWorkerTest(t, errors.New("401 unauthorized"))
	seedJob(t, registry, nil, "job-1")

	counter := &invalidateCounter{count: 1}
	userLimits := queue.NewUserLimits(counter, time.Hour)
	if _, err := userLimits.ActiveCount(context.Background(), "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pool.userLimits = userLimits

	pool.processItem(context.Background(), &queue.WorkItem{JobID: "job-1"})

	counter.count = 0
	n, err := userLimits.ActiveCount(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected the freed slot to be visible immediately, got cached count %d", n)
	}
	if counter.calls != 2 {
		t.Errorf("expected commit to force a fresh query (2 underlying calls), got %d", counter.calls)
	}
}
