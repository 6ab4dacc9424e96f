package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hexquarry/battle/store"
	"github.com/hexquarry/battle/types"
)

const (
	jobKeyPrefix      = "job:"
	activeKeyPrefix   = "active:"
	stateCounterPrefix = "state_count:"
)

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

func activeKey(submitterID, jobID string) string {
	return fmt.Sprintf("%s%s:%s", activeKeyPrefix, submitterID, jobID)
}

func activePrefix(submitterID string) string {
	return fmt.Sprintf("%s%s:", activeKeyPrefix, submitterID)
}

func stateCounterKey(state types.JobState) string {
	return stateCounterPrefix + string(state)
}

// Registry persists Job records and derives the authoritative admission
// views (active-job counts, state-partitioned depth) from them. It backs
// both UserLimits.CountActive and Monitor.Depths so neither component
// needs its own storage scheme.
type Registry struct {
	store store.Store
}

// NewRegistry creates a Registry backed by s.
func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s}
}

// Put persists job, maintaining the active-job marker and state counters
// implied by its current state. Call this on every state transition, not
// just at creation.
func (r *Registry) Put(ctx context.Context, job *types.Job) error {
	prev, err := r.Get(ctx, job.JobID)
	if err != nil && err != store.ErrNotFound {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("registry: marshal job %s: %w", job.JobID, err)
	}
	if err := r.store.Set(ctx, jobKey(job.JobID), body, 0); err != nil {
		return fmt.Errorf("registry: persist job %s: %w", job.JobID, err)
	}

	if prev != nil && prev.State != job.State {
		if _, err := r.store.Increment(ctx, stateCounterKey(prev.State), -1); err != nil {
			return err
		}
	}
	if prev == nil || prev.State != job.State {
		if _, err := r.store.Increment(ctx, stateCounterKey(job.State), 1); err != nil {
			return err
		}
	}

	active := job.State == types.JobPending || job.State == types.JobProcessing || job.State == types.JobRetrying
	key := activeKey(job.SubmitterID, job.JobID)
	if active {
		if err := r.store.Set(ctx, key, []byte("1"), 0); err != nil {
			return fmt.Errorf("registry: mark active %s: %w", job.JobID, err)
		}
	} else {
		if err := r.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("registry: clear active %s: %w", job.JobID, err)
		}
	}
	return nil
}

// Get returns the persisted job record, or store.ErrNotFound.
func (r *Registry) Get(ctx context.Context, jobID string) (*types.Job, error) {
	body, err := r.store.Get(ctx, jobKey(jobID))
	if err != nil {
		return nil, err
	}
	var job types.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("registry: unmarshal job %s: %w", jobID, err)
	}
	return &job, nil
}

// CountActive implements activeCounter: the number of submitterID's jobs
// currently in {pending, processing, retrying}.
func (r *Registry) CountActive(ctx context.Context, submitterID string) (int, error) {
	keys, err := r.store.ScanPrefix(ctx, activePrefix(submitterID))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Depths implements depthSource.
func (r *Registry) Depths(ctx context.Context) (DepthCounts, error) {
	pending, err := r.stateCount(ctx, types.JobPending)
	if err != nil {
		return DepthCounts{}, err
	}
	processing, err := r.stateCount(ctx, types.JobProcessing)
	if err != nil {
		return DepthCounts{}, err
	}
	retrying, err := r.stateCount(ctx, types.JobRetrying)
	if err != nil {
		return DepthCounts{}, err
	}
	completed, err := r.stateCount(ctx, types.JobCompleted)
	if err != nil {
		return DepthCounts{}, err
	}
	failed, err := r.stateCount(ctx, types.JobFailed)
	if err != nil {
		return DepthCounts{}, err
	}
	return DepthCounts{
		Pending:    pending,
		Processing: processing + retrying,
		Completed:  completed,
		Failed:     failed,
		Timestamp:  time.Now(),
	}, nil
}

func (r *Registry) stateCount(ctx context.Context, state types.JobState) (int, error) {
	n, err := r.store.Increment(ctx, stateCounterKey(state), 0)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

var _ activeCounter = (*Registry)(nil)
var _ depthSource = (*Registry)(nil)
