// Package agent launches the external code-generation agent CLI as a
// subprocess, captures its output, and recovers the session id it needs
// for later resumption.
package agent

import "time"

// ExecResult is the outcome of one Exec or Resume invocation.
type ExecResult struct {
	Success       bool
	ExitCode      *int
	Stdout        string
	Stderr        string
	SessionID     string
	AwaitingInput bool
	DurationMS    int64
	TimedOut      bool
	Error         string
}

// ExecOptions configures how the agent CLI is invoked.
type ExecOptions struct {
	// CliPath overrides the configured agent binary; empty uses the
	// Runner's default.
	CliPath string
	// Timeout bounds the subprocess; zero disables the bound.
	Timeout time.Duration
	// ReasoningEffort is passed through to the agent CLI when non-empty.
	ReasoningEffort string
	// ContextFiles are extra file paths handed to the agent alongside the
	// prompt.
	ContextFiles []string
}

func newTimeoutResult(start time.Time) *ExecResult {
	return &ExecResult{
		Success:    false,
		TimedOut:   true,
		DurationMS: time.Since(start).Milliseconds(),
		Error:      "agent process timed out",
	}
}
