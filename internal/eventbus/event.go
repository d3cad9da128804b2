// Package eventbus is the in-process publish/subscribe hub that feeds the
// HTTP streaming endpoint. Delivery is synchronous with respect to the
// emitter: subscribers must be non-blocking or self-buffered.
package eventbus

import (
	"fmt"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	JobCreated      EventType = "job.created"
	JobUpdated      EventType = "job.updated"
	JobDeleted      EventType = "job.deleted"
	WorktreeChanged EventType = "worktree.changed"
	LogAppended     EventType = "log.appended"
)

// Event is a single occurrence published on the bus.
type Event struct {
	Time    time.Time `json:"time"`
	Type    EventType `json:"type"`
	JobID   string    `json:"jobId,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// String returns a human-readable representation for logging.
func (e Event) String() string {
	if e.JobID != "" {
		return fmt.Sprintf("[%s] job=%s", e.Type, e.JobID)
	}
	return fmt.Sprintf("[%s]", e.Type)
}

func newJobEvent(t EventType, jobID string, payload any) Event {
	return Event{Time: time.Now(), Type: t, JobID: jobID, Payload: payload}
}

// NewJobCreated builds a JobCreated event carrying the created job.
func NewJobCreated(jobID string, job any) Event { return newJobEvent(JobCreated, jobID, job) }

// NewJobUpdated builds a JobUpdated event carrying the updated job.
func NewJobUpdated(jobID string, job any) Event { return newJobEvent(JobUpdated, jobID, job) }

// NewJobDeleted builds a JobDeleted event for the given job id.
func NewJobDeleted(jobID string) Event { return newJobEvent(JobDeleted, jobID, nil) }

// NewWorktreeChanged builds a WorktreeChanged event.
func NewWorktreeChanged(jobID string, payload any) Event {
	return newJobEvent(WorktreeChanged, jobID, payload)
}

// LogChunk is the payload of a LogAppended event.
type LogChunk struct {
	Stream string `json:"stream"` // "stdout" or "stderr"
	Text   string `json:"text"`
}

// NewLogAppended builds a LogAppended event.
func NewLogAppended(jobID, stream, text string) Event {
	return newJobEvent(LogAppended, jobID, LogChunk{Stream: stream, Text: text})
}
