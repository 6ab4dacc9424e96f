// Package adapter defines the completion-notification boundary: a
// downstream system that wants to know when a job or a match finished,
// without polling the progress/combat streams. The pipeline worker and
// the match orchestrator each publish one event per terminal transition;
// adapters only need to deliver it.
package adapter

import "context"

// EventType discriminates the two kinds of completion notification this
// platform emits.
type EventType string

const (
	EventJobCompleted   EventType = "job_completed"
	EventMatchCompleted EventType = "match_completed"
)

// CompletionEvent is the payload published when a job or a match reaches
// a terminal state. Only the fields relevant to EventType are populated;
// the rest are left zero.
type CompletionEvent struct {
	ContractVersion string    `json:"contract_version"`
	EventType       EventType `json:"event_type"`
	Timestamp       string    `json:"timestamp"` // ISO 8601

	// Job fields, set when EventType == EventJobCompleted.
	JobID       string `json:"job_id,omitempty"`
	SubmitterID string `json:"submitter_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	JobState    string `json:"job_state,omitempty"` // completed or failed
	DurationMs  int64  `json:"duration_ms,omitempty"`

	// Match fields, set when EventType == EventMatchCompleted.
	MatchID       string `json:"match_id,omitempty"`
	Winner        string `json:"winner,omitempty"`
	Reason        string `json:"reason,omitempty"`
	DurationTicks int    `json:"duration_ticks,omitempty"`
}

// Adapter publishes completion events to a downstream system.
// Implementations must be safe for concurrent use across jobs and matches.
type Adapter interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *CompletionEvent) error

	// Close releases adapter resources.
	Close() error
}
