package types

import "time"

// JobState is the lifecycle state of a generation job.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobRetrying   JobState = "retrying"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// SpriteType discriminates the kind of generation request.
type SpriteType string

const (
	SpriteTypeCharacter SpriteType = "character"
	SpriteTypeCreature  SpriteType = "creature"
)

// Dimensions is the requested sprite canvas size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GenerationRequest is the structured prompt plus optional normalized
// image bytes submitted by a caller. Field order never affects the
// fingerprint: canonicalization happens before hashing.
type GenerationRequest struct {
	Type               SpriteType `json:"type"`
	Style              string     `json:"style"`
	Size               Dimensions `json:"size"`
	Action             string     `json:"action"`
	Description        string     `json:"description"`
	RawImage           []byte     `json:"raw_image,omitempty"`
	TextGuidanceScale   float64    `json:"text_guidance_scale,omitempty"`
}

// FieldError describes a single invalid field on a GenerationRequest.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JobError is the structured failure description recorded on terminal
// job failure.
type JobError struct {
	Kind        string       `json:"kind"`
	Message     string       `json:"message"`
	Retryable   bool         `json:"retryable"`
	FieldErrors []FieldError `json:"field_errors,omitempty"`
}

// JobResult is the opaque payload produced by the pipeline on success.
type JobResult struct {
	// Sprite holds the assembled directional animation set, keyed by
	// "<direction>/<animation>" (e.g. "east/walk").
	Sprites map[string][]byte `json:"sprites"`
	// Attributes holds combat attributes extracted from vision analysis.
	Attributes map[string]any `json:"attributes"`
}

// Job is the unit managed by the generation pipeline, per the data model's
// Job invariants: progress is monotonic within an attempt, progress==100
// iff state==completed, started_at is set before state leaves pending,
// finished_at is set once state reaches a terminal value.
type Job struct {
	JobID        string
	SubmitterID  string
	Fingerprint  string
	Request      GenerationRequest
	State        JobState
	Progress     int
	AttemptsMade int
	SubmittedAt  time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	Result       *JobResult
	Error        *JobError
}

// Terminal reports whether the job has reached a state from which it
// will not transition again.
func (j *Job) Terminal() bool {
	return j.State == JobCompleted || j.State == JobFailed
}

// SubmissionResult is returned synchronously from Submit. It is also the
// wire body of the submission boundary's JSON response (§6).
type SubmissionResult struct {
	JobID         string        `json:"job_id"`
	State         JobState      `json:"state"`
	CacheHit      bool          `json:"cache_hit"`
	Result        *JobResult    `json:"result,omitempty"`
	EstimatedWait time.Duration `json:"estimated_wait_ns,omitempty"`
	Warning       string        `json:"warning,omitempty"`
	QueueDepth    int           `json:"queue_depth,omitempty"`
}
