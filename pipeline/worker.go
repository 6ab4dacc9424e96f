package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/hexquarry/battle/log"
	"github.com/hexquarry/battle/metrics"
	"github.com/hexquarry/battle/queue"
	"github.com/hexquarry/battle/store"
	"github.com/hexquarry/battle/types"
)

// pollInterval is how often an idle worker checks the queue for new work.
const pollInterval = 200 * time.Millisecond

// WorkerPool runs N concurrent workers, each pulling one job at a time
// from the queue, running it through Stages, and committing the terminal
// outcome.
type WorkerPool struct {
	store      store.Store
	registry   *queue.Registry
	hub        *ProgressHub
	stages     Stages
	metrics    *metrics.Collector
	logger     *log.Logger
	retry      RetryPolicy
	cacheTTL   time.Duration
	userLimits *queue.UserLimits

	// OnComplete, when set, is invoked once a job reaches a terminal
	// state, after the registry commit and cache/dedup bookkeeping. Used
	// to wire durable result storage and completion-notification
	// adapters without widening the constructor signature.
	OnComplete func(*types.Job)
}

// NewWorkerPool creates a WorkerPool. userLimits is the same admission-path
// cache the Submitter built over this store consults; the pool invalidates
// it on every terminal transition (spec.md §4.2) so a freed slot is usable
// immediately instead of waiting out the cache TTL. A nil userLimits is
// valid (e.g. a worker pool under test with no admission path wired).
func NewWorkerPool(s store.Store, registry *queue.Registry, hub *ProgressHub, stages Stages, m *metrics.Collector, logger *log.Logger, retry RetryPolicy, cacheTTL time.Duration, userLimits *queue.UserLimits) *WorkerPool {
	return &WorkerPool{
		store:      s,
		registry:   registry,
		hub:        hub,
		stages:     stages,
		metrics:    m,
		logger:     logger,
		retry:      retry,
		cacheTTL:   cacheTTL,
		userLimits: userLimits,
	}
}

// Run starts concurrency workers and blocks until ctx is canceled.
func (p *WorkerPool) Run(ctx context.Context, concurrency int) {
	done := make(chan struct{}, concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			p.runWorker(ctx)
			done <- struct{}{}
		}()
	}
	for i := 0; i < concurrency; i++ {
		<-done
	}
}

func (p *WorkerPool) runWorker(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			item, err := queue.Dequeue(ctx, p.store)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				p.logger.Error("dequeue failed", map[string]any{"error": err.Error()})
				continue
			}
			p.processItem(ctx, item)
		}
	}
}

func (p *WorkerPool) processItem(ctx context.Context, item *queue.WorkItem) {
	job, err := p.registry.Get(ctx, item.JobID)
	if err != nil {
		p.logger.Error("job record missing at processing time", map[string]any{"job_id": item.JobID})
		return
	}

	startedAt := time.Now()
	job.StartedAt = &startedAt
	job.State = types.JobProcessing
	if err := p.registry.Put(ctx, job); err != nil {
		p.logger.Error("failed to mark job processing", map[string]any{"job_id": job.JobID, "error": err.Error()})
		return
	}
	p.metrics.RecordStart(job.JobID, float64(startedAt.Sub(job.SubmittedAt).Milliseconds()))
	p.publishProgress(job.JobID, types.JobProcessing, 0, nil, nil)

	result, attemptErr := p.runAttempts(ctx, job)

	finishedAt := time.Now()
	job.FinishedAt = &finishedAt

	if attemptErr != nil {
		job.State = types.JobFailed
		job.Error = classifyTerminal(attemptErr)
		if err := p.registry.Put(ctx, job); err != nil {
			p.logger.Error("failed to commit failure", map[string]any{"job_id": job.JobID, "error": err.Error()})
		}
		p.userLimits.Invalidate(job.SubmitterID)
		p.metrics.RecordFailed(job.JobID)
		p.publishProgress(job.JobID, types.JobFailed, job.Progress, nil, job.Error)
		if p.OnComplete != nil {
			p.OnComplete(job)
		}
		return
	}

	job.State = types.JobCompleted
	job.Progress = 100
	job.Result = result
	if err := p.registry.Put(ctx, job); err != nil {
		p.logger.Error("failed to commit success", map[string]any{"job_id": job.JobID, "error": err.Error()})
	}
	p.userLimits.Invalidate(job.SubmitterID)
	if err := queue.WriteCache(ctx, p.store, job.Fingerprint, result, p.cacheTTL); err != nil {
		p.logger.Warn("failed to write cache entry", map[string]any{"job_id": job.JobID, "error": err.Error()})
	}
	if err := queue.RemoveDedup(ctx, p.store, job.SubmitterID, job.Fingerprint); err != nil {
		p.logger.Warn("failed to clear dedup record", map[string]any{"job_id": job.JobID, "error": err.Error()})
	}
	p.metrics.RecordComplete(job.JobID, float64(finishedAt.Sub(startedAt).Milliseconds()))
	p.publishProgress(job.JobID, types.JobCompleted, 100, result, nil)
	if p.OnComplete != nil {
		p.OnComplete(job)
	}
}

// runAttempts executes the stage pipeline under the retry policy,
// updating job.State to "retrying" between attempts and incrementing
// attempts_made.
func (p *WorkerPool) runAttempts(ctx context.Context, job *types.Job) (*types.JobResult, error) {
	var result *types.JobResult
	err := RunWithRetry(ctx, p.retry, func(ctx context.Context, attemptNum int) error {
		if attemptNum > 1 {
			job.State = types.JobRetrying
			job.AttemptsMade = attemptNum - 1
			job.Progress = 0
			_ = p.registry.Put(ctx, job)
			p.publishProgress(job.JobID, types.JobRetrying, job.Progress, nil, nil)
			job.State = types.JobProcessing
		}

		r, err := p.stages.Run(ctx, job.Request, func(ctx context.Context, percent int) {
			job.Progress = percent
			p.publishProgress(job.JobID, types.JobProcessing, percent, nil, nil)
		})
		if err != nil {
			return err
		}
		result = r
		job.AttemptsMade++
		return nil
	})
	return result, err
}

func (p *WorkerPool) publishProgress(jobID string, state types.JobState, progress int, result *types.JobResult, jobErr *types.JobError) {
	p.hub.Publish(jobID, types.ProgressFrame{
		ContractVersion: types.ContractVersion,
		JobID:           jobID,
		State:           state,
		Progress:        progress,
		Result:          result,
		Error:           jobErr,
	})
}

func classifyTerminal(err error) *types.JobError {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return &types.JobError{
			Kind:      stageErr.Kind.Error(),
			Message:   stageErr.Error(),
			Retryable: stageErr.Retryable(),
		}
	}
	return &types.JobError{Kind: "Unknown", Message: err.Error()}
}
