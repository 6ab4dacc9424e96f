// Package queue implements the Generation Pipeline's admission path: the
// only entry point that can place a job on the work queue. It enforces
// validation, dedup, cache lookup, user-level admission, and system-wide
// admission before a job is enqueued.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hexquarry/battle/metrics"
	"github.com/hexquarry/battle/store"
	"github.com/hexquarry/battle/types"
)

const (
	cacheKeyPrefix = "cache:"
	dedupKeyPrefix = "dedup:"
	workQueueName  = "jobs"
)

func cacheKey(fingerprint string) string {
	return cacheKeyPrefix + fingerprint
}

func dedupKey(submitterID, fingerprint string) string {
	return fmt.Sprintf("%s%s:%s", dedupKeyPrefix, submitterID, fingerprint)
}

// Dequeue pops the next WorkItem off the FIFO work queue, or
// store.ErrNotFound if empty. Called by pipeline workers.
func Dequeue(ctx context.Context, s store.Store) (*WorkItem, error) {
	body, err := s.Dequeue(ctx, workQueueName)
	if err != nil {
		return nil, err
	}
	var item WorkItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("queue: unmarshal work item: %w", err)
	}
	return &item, nil
}

// RemoveDedup removes the dedup record for (submitterID, fingerprint) so
// a later distinct submission of the same prompt is not coalesced with a
// job that has already finished. Called by the pipeline worker on commit.
func RemoveDedup(ctx context.Context, s store.Store, submitterID, fingerprint string) error {
	return s.Delete(ctx, dedupKey(submitterID, fingerprint))
}

// WriteCache stores a finished job's result under its fingerprint with the
// given TTL. Called by the pipeline worker on successful completion, per
// the worker's commit semantics. Package-level so the worker does not
// need a full Submitter, only a store.Store it already holds.
func WriteCache(ctx context.Context, s store.Store, fingerprint string, result *types.JobResult, ttl time.Duration) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("queue: marshal cache entry: %w", err)
	}
	return s.Set(ctx, cacheKey(fingerprint), body, ttl)
}

// WorkItem is the FIFO queue payload.
type WorkItem struct {
	SubmitterID string                  `json:"submitter_id"`
	Request     types.GenerationRequest `json:"request"`
	JobID       string                  `json:"job_id"`
	SubmittedAt time.Time               `json:"submitted_at"`
}

// Submitter is the sole admission entry point for the generation pipeline.
type Submitter struct {
	store      store.Store
	registry   *Registry
	userLimits *UserLimits
	monitor    *Monitor
	metrics    *metrics.Collector

	cacheTTL             time.Duration
	dedupWindow          time.Duration
	maxJobsPerUser       int
	systemQueueLimit     int
	warningThreshold     int
	workerConcurrency    int
	avgProcessingTime    time.Duration

	newJobID func() string
	now      func() time.Time
}

// Config configures a Submitter. All durations/limits correspond to
// the queue/cache/dedup config groups.
type Config struct {
	CacheTTL          time.Duration
	DedupWindow       time.Duration
	MaxJobsPerUser    int
	SystemQueueLimit  int
	WarningThreshold  int
	WorkerConcurrency int
	AvgProcessingTime time.Duration
}

// NewSubmitter creates a Submitter wired to the given store, registry,
// admission helpers, and metrics collector.
func NewSubmitter(s store.Store, registry *Registry, userLimits *UserLimits, monitor *Monitor, m *metrics.Collector, cfg Config) *Submitter {
	return &Submitter{
		store:             s,
		registry:          registry,
		userLimits:        userLimits,
		monitor:           monitor,
		metrics:           m,
		cacheTTL:          cfg.CacheTTL,
		dedupWindow:       cfg.DedupWindow,
		maxJobsPerUser:    cfg.MaxJobsPerUser,
		systemQueueLimit:  cfg.SystemQueueLimit,
		warningThreshold:  cfg.WarningThreshold,
		workerConcurrency: cfg.WorkerConcurrency,
		avgProcessingTime: cfg.AvgProcessingTime,
		newJobID:          func() string { return uuid.NewString() },
		now:               time.Now,
	}
}

// Submit runs the 8-step admission algorithm. The first
// success terminates; validation, user-limit, and system-full failures
// are synchronous and never create a job.
func (s *Submitter) Submit(ctx context.Context, submitterID string, req types.GenerationRequest) (*types.SubmissionResult, error) {
	// 1. Validate.
	if err := validate(submitterID, req); err != nil {
		return nil, err
	}

	// 2. Mint ids.
	jobID := s.newJobID()
	fingerprint := Fingerprint(req)

	// 3. Cache lookup.
	if cached, ok := s.lookupCache(ctx, fingerprint); ok {
		s.metrics.IncCacheHit()
		return &types.SubmissionResult{
			JobID:    jobID,
			State:    types.JobCompleted,
			CacheHit: true,
			Result:   cached,
		}, nil
	}
	s.metrics.IncCacheMiss()

	// 4. Dedup lookup.
	if existingJobID, ok := s.lookupDedup(ctx, submitterID, fingerprint); ok {
		return &types.SubmissionResult{
			JobID:    existingJobID,
			State:    types.JobProcessing,
			CacheHit: false,
		}, nil
	}

	// 5. User admission.
	active, err := s.userLimits.ActiveCount(ctx, submitterID)
	if err != nil {
		return nil, NewUserLimitCheckFailedError(err)
	}
	if active >= s.maxJobsPerUser {
		return nil, NewUserLimitExceededError(active, s.maxJobsPerUser)
	}

	// 6. System admission.
	depths, _, err := s.monitor.Depths(ctx)
	if err != nil {
		// Fail open on monitor outage: proceed using the last-known depth
		// would require additional plumbing; instead surface as an
		// enqueue-time failure only if the subsequent enqueue itself fails.
		depths = DepthCounts{}
	}
	queueDepth := depths.Total()
	if queueDepth >= s.systemQueueLimit {
		return nil, NewSystemQueueFullError(queueDepth, s.systemQueueLimit)
	}

	// 7. Enqueue.
	job := &types.Job{
		JobID:        jobID,
		SubmitterID:  submitterID,
		Fingerprint:  fingerprint,
		Request:      req,
		State:        types.JobPending,
		SubmittedAt:  s.now(),
	}
	if err := s.registry.Put(ctx, job); err != nil {
		return nil, NewEnqueueFailedError(err)
	}
	item := WorkItem{SubmitterID: submitterID, Request: req, JobID: jobID, SubmittedAt: job.SubmittedAt}
	body, err := json.Marshal(item)
	if err != nil {
		return nil, NewEnqueueFailedError(err)
	}
	if err := s.store.Queue(ctx, workQueueName, body); err != nil {
		return nil, NewEnqueueFailedError(err)
	}
	if err := s.store.Set(ctx, dedupKey(submitterID, fingerprint), []byte(jobID), s.dedupWindow); err != nil {
		return nil, NewEnqueueFailedError(err)
	}
	s.metrics.RecordSubmitted(jobID, submitterID)

	// 8. Return.
	result := &types.SubmissionResult{
		JobID:         jobID,
		State:         types.JobPending,
		CacheHit:      false,
		EstimatedWait: estimatedWait(queueDepth, s.workerConcurrency, s.avgProcessingTime),
		QueueDepth:    queueDepth,
	}
	if queueDepth >= s.warningThreshold {
		result.Warning = fmt.Sprintf("queue depth %d at or above warning threshold %d", queueDepth, s.warningThreshold)
	}
	return result, nil
}

func (s *Submitter) lookupCache(ctx context.Context, fingerprint string) (*types.JobResult, bool) {
	body, err := s.store.Get(ctx, cacheKey(fingerprint))
	if err != nil {
		return nil, false
	}
	var result types.JobResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (s *Submitter) lookupDedup(ctx context.Context, submitterID, fingerprint string) (string, bool) {
	body, err := s.store.Get(ctx, dedupKey(submitterID, fingerprint))
	if err != nil {
		return "", false
	}
	return string(body), true
}

// CacheResult stores a finished job's result in the fingerprint cache.
func (s *Submitter) CacheResult(ctx context.Context, fingerprint string, result *types.JobResult) error {
	return WriteCache(ctx, s.store, fingerprint, result, s.cacheTTL)
}

func validate(submitterID string, req types.GenerationRequest) error {
	if submitterID == "" {
		return NewInvalidRequestError("submitter_id must not be empty")
	}
	if req.Type != types.SpriteTypeCharacter && req.Type != types.SpriteTypeCreature {
		return NewInvalidRequestError("type must be character or creature")
	}
	if req.Style == "" {
		return NewInvalidRequestError("style must not be empty")
	}
	if req.Size.Width <= 0 || req.Size.Height <= 0 {
		return NewInvalidRequestError("size dimensions must be positive")
	}
	if req.Description == "" {
		return NewInvalidRequestError("description must not be empty")
	}
	if req.TextGuidanceScale != 0 && (req.TextGuidanceScale < 1.0 || req.TextGuidanceScale > 20.0) {
		return NewInvalidRequestError("text_guidance_scale must be in [1.0, 20.0]")
	}
	return nil
}

// estimatedWait approximates ceil(queue_depth / worker_concurrency) *
// avg_processing_time.
func estimatedWait(queueDepth, workerConcurrency int, avgProcessingTime time.Duration) time.Duration {
	if workerConcurrency <= 0 {
		workerConcurrency = 1
	}
	batches := math.Ceil(float64(queueDepth) / float64(workerConcurrency))
	return time.Duration(batches) * avgProcessingTime
}
