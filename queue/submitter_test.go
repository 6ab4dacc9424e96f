package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hexquarry/battle/metrics"
	memstore "github.com/hexquarry/battle/store/memory"
	"github.com/hexquarry/battle/types"
)

func newTestSubmitter(t *testing.T, cfg Config) (*Submitter, *memstore.Store, *Registry) {
	t.Helper()
	s := memstore.New()
	registry := NewRegistry(s)
	userLimits := NewUserLimits(registry, time.Minute)
	monitor := NewMonitor(registry, time.Minute, 80, 95)
	m := metrics.NewCollector()
	if cfg.MaxJobsPerUser == 0 {
		cfg.MaxJobsPerUser = 5
	}
	if cfg.SystemQueueLimit == 0 {
		cfg.SystemQueueLimit = 100
	}
	if cfg.WorkerConcurrency == 0 {
		cfg.WorkerConcurrency = 4
	}
	if cfg.WarningThreshold == 0 {
		cfg.WarningThreshold = 80
	}
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = 10 * time.Second
	}
	return NewSubmitter(s, registry, userLimits, monitor, m, cfg), s, registry
}

func validRequest() types.GenerationRequest {
	return types.GenerationRequest{
		Type:        types.SpriteTypeCreature,
		Style:       "pixel-art",
		Size:        types.Dimensions{Width: 64, Height: 64},
		Description: "a small fire lizard",
	}
}

func TestSubmit_RejectsEmptySubmitterID(t *testing.T) {
	sub, _, _ := newTestSubmitter(t, Config{})
	if _, err := sub.Submit(context.Background(), "", validRequest()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSubmit_RejectsInvalidDimensions(t *testing.T) {
	sub, _, _ := newTestSubmitter(t, Config{})
	req := validRequest()
	req.Size.Width = 0
	if _, err := sub.Submit(context.Background(), "alice", req); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSubmit_RejectsOutOfRangeGuidanceScale(t *testing.T) {
	sub, _, _ := newTestSubmitter(t, Config{})
	req := validRequest()
	req.TextGuidanceScale = 25.0
	if _, err := sub.Submit(context.Background(), "alice", req); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSubmit_NewJobIsPending(t *testing.T) {
	sub, _, _ := newTestSubmitter(t, Config{})
	res, err := sub.Submit(context.Background(), "alice", validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != types.JobPending {
		t.Errorf("expected state %v, got %v", types.JobPending, res.State)
	}
	if res.CacheHit {
		t.Error("expected CacheHit to be false")
	}
}

func TestSubmit_CacheHitReturnsResultWithoutNewJob(t *testing.T) {
	sub, s, _ := newTestSubmitter(t, Config{})
	ctx := context.Background()
	req := validRequest()
	fp := Fingerprint(req)

	if err := sub.CacheResult(ctx, fp, &types.JobResult{Attributes: map[string]any{"hp": 10.0}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := sub.Submit(ctx, "alice", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.CacheHit {
		t.Error("expected a cache hit")
	}
	if res.State != types.JobCompleted {
		t.Errorf("expected state %v, got %v", types.JobCompleted, res.State)
	}
	if res.Result == nil {
		t.Error("expected a non-nil result")
	}
	_ = s
}

func TestSubmit_DedupWithinWindowReturnsExistingJob(t *testing.T) {
	sub, _, _ := newTestSubmitter(t, Config{})
	ctx := context.Background()
	req := validRequest()

	first, err := sub.Submit(ctx, "alice", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := sub.Submit(ctx, "alice", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.JobID != first.JobID {
		t.Errorf("expected same job id, got %q and %q", first.JobID, second.JobID)
	}
	if second.State != types.JobProcessing {
		t.Errorf("expected state %v, got %v", types.JobProcessing, second.State)
	}
}

func TestSubmit_UserLimitExceeded(t *testing.T) {
	sub, _, _ := newTestSubmitter(t, Config{MaxJobsPerUser: 1})
	ctx := context.Background()

	if _, err := sub.Submit(ctx, "alice", validRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req2 := validRequest()
	req2.Description = "a different prompt entirely so dedup doesn't short-circuit"
	_, err := sub.Submit(ctx, "alice", req2)
	if err == nil {
		t.Fatal("expected an error")
	}

	var admErr *AdmissionError
	if !errors.As(err, &admErr) {
		t.Fatalf("expected *AdmissionError, got %T", err)
	}
	if admErr.Kind != "UserLimitExceeded" {
		t.Errorf("expected kind UserLimitExceeded, got %q", admErr.Kind)
	}
}

func TestSubmit_SystemQueueFull(t *testing.T) {
	sub, _, _ := newTestSubmitter(t, Config{SystemQueueLimit: 1, MaxJobsPerUser: 10})
	ctx := context.Background()

	req1 := validRequest()
	req1.Description = "first prompt"
	if _, err := sub.Submit(ctx, "alice", req1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req2 := validRequest()
	req2.Description = "second entirely different prompt"
	_, err := sub.Submit(ctx, "bob", req2)
	if err == nil {
		t.Fatal("expected an error")
	}

	var admErr *AdmissionError
	if !errors.As(err, &admErr) {
		t.Fatalf("expected *AdmissionError, got %T", err)
	}
	if admErr.Kind != "SystemQueueFull" {
		t.Errorf("expected kind SystemQueueFull, got %q", admErr.Kind)
	}
}

func TestSubmit_NoWarningBelowThreshold(t *testing.T) {
	sub, _, _ := newTestSubmitter(t, Config{SystemQueueLimit: 100, WarningThreshold: 1, MaxJobsPerUser: 10})
	ctx := context.Background()

	res, err := sub.Submit(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Warning != "" {
		t.Errorf("expected no warning at depth 0, got %q", res.Warning)
	}
}

func TestSubmit_EnqueuesWorkItem(t *testing.T) {
	sub, s, _ := newTestSubmitter(t, Config{})
	ctx := context.Background()

	if _, err := sub.Submit(ctx, "alice", validRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := s.QueueLen(ctx, workQueueName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected queue length 1, got %d", n)
	}
}
