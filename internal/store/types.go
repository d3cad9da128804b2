package store

import "time"

// Job is the primary persisted entity: a natural-language task to run an
// external agent inside an isolated checkout.
type Job struct {
	ID              string         `json:"id"`
	RepoURL         string         `json:"repo_url"`
	BaseRef         string         `json:"base_ref"`
	BranchName      string         `json:"branch_name"`
	WorktreePath    string         `json:"worktree_path"`
	WorkerType      string         `json:"worker_type"`
	FeatureID       string         `json:"feature_id,omitempty"`
	FeaturePart     string         `json:"feature_part,omitempty"`
	PushMode        PushMode       `json:"push_mode"`
	UseWorktree     bool           `json:"use_worktree"`
	Status          Status         `json:"status"`
	Spec            JobSpec        `json:"spec"`
	ResultSummary   *ResultSummary `json:"result_summary,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
	ResumeRequested bool           `json:"resume_requested"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusRunning        Status = "running"
	StatusAwaitingInput  Status = "awaiting_input"
	StatusDone           Status = "done"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

// IsTerminal reports whether status ends a job's lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsProtected reports whether a job in this status may not be deleted or
// claimed by another worker for the same (repo_url, branch_name).
func (s Status) IsProtected() bool {
	return s == StatusRunning || s == StatusAwaitingInput
}

// PushMode controls whether a worker pushes committed results upstream.
type PushMode string

const (
	PushAlways PushMode = "always"
	PushNever  PushMode = "never"
)

// JobSpec is the opaque task specification supplied by the submitter.
// It is persisted as JSON regardless of the wire format it arrived in
// (see internal/httpapi's YAML-frontmatter submission path).
type JobSpec struct {
	Prompt       string         `json:"prompt" yaml:"prompt"`
	ContextFiles []string       `json:"context_files,omitempty" yaml:"context_files,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ContinuationRecord records one resume/continue cycle against a job.
type ContinuationRecord struct {
	Prompt    string    `json:"prompt"`
	At        time.Time `json:"at"`
	FromState Status    `json:"from_state"`
}

// CancellationCause names the upstream job whose terminal failure caused a
// cascading cancellation.
type CancellationCause struct {
	UpstreamJobID string `json:"upstream_job_id"`
	UpstreamState Status `json:"upstream_state"`
}

// ResultSummary is the structured outcome record written on transition to
// a terminal or paused state.
type ResultSummary struct {
	Error             string                 `json:"error,omitempty"`
	CommitHash        string                 `json:"commit_hash,omitempty"`
	TestPassed        *bool                  `json:"test_passed,omitempty"`
	SessionID         string                 `json:"session_id,omitempty"`
	DurationMS        int64                  `json:"duration_ms,omitempty"`
	TimedOut          bool                   `json:"timed_out,omitempty"`
	ContinuePrompt    string                 `json:"continue_prompt,omitempty"`
	Continuations     []ContinuationRecord   `json:"continuations,omitempty"`
	LastContinuation  *ContinuationRecord    `json:"last_continuation,omitempty"`
	CancellationCause *CancellationCause     `json:"cancellation_cause,omitempty"`
	Extra             map[string]any         `json:"extra,omitempty"`
}

// LogEntry is one append-only line of captured agent output.
type LogEntry struct {
	JobID     string    `json:"job_id"`
	Sequence  int64     `json:"sequence"`
	Stream    string    `json:"stream"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateJobInput is the validated input to CreateJob.
type CreateJobInput struct {
	RepoURL     string
	BaseRef     string
	BranchName  string
	WorkerType  string
	FeatureID   string
	FeaturePart string
	PushMode    PushMode
	UseWorktree bool
	Spec        JobSpec
	DependsOn   []string
}

// ListFilter restricts ListJobs.
type ListFilter struct {
	Status     Status
	WorkerType string
	FeatureID  string
}

// DeleteFilter restricts the bulk variant DeleteJobs.
type DeleteFilter struct {
	Statuses []Status
	MaxAgeDays int
}

// UpdateStatusOpts configures UpdateStatus's optimistic-concurrency check
// and the fields written alongside the new status.
type UpdateStatusOpts struct {
	ExpectedStatuses []Status
	ResultSummary    *ResultSummary
	SessionID        *string
	ResumeRequested  *bool
}
