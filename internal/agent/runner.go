package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conductor-oss/conductor/internal/apperrors"
)

// Runner launches the agent CLI as a subprocess.
type Runner struct {
	// CliPath is the binary invoked when ExecOptions.CliPath is empty.
	CliPath string
}

// New creates a Runner defaulting to cliPath.
func New(cliPath string) *Runner {
	return &Runner{CliPath: cliPath}
}

// Exec starts a fresh agent session in cwd with prompt.
func (r *Runner) Exec(ctx context.Context, cwd, prompt string, opts ExecOptions) (*ExecResult, error) {
	args := r.buildArgs(opts)
	return r.run(ctx, cwd, prompt, args, opts)
}

// Resume continues an existing session identified by sessionID.
func (r *Runner) Resume(ctx context.Context, cwd, sessionID, prompt string, opts ExecOptions) (*ExecResult, error) {
	args := append(r.buildArgs(opts), "--resume", sessionID)
	return r.run(ctx, cwd, prompt, args, opts)
}

func (r *Runner) buildArgs(opts ExecOptions) []string {
	var args []string
	if opts.ReasoningEffort != "" {
		args = append(args, "--reasoning-effort", opts.ReasoningEffort)
	}
	for _, f := range opts.ContextFiles {
		args = append(args, "--context-file", f)
	}
	return args
}

func (r *Runner) run(ctx context.Context, cwd, prompt string, args []string, opts ExecOptions) (*ExecResult, error) {
	cliPath := opts.CliPath
	if cliPath == "" {
		cliPath = r.CliPath
	}
	if cliPath == "" {
		return nil, fmt.Errorf("%w: agent cli path is not configured", apperrors.ErrValidation)
	}

	start := time.Now()
	stdout, stderr, exitCode, timedOut, err := runProcess(ctx, cwd, cliPath, args, prompt, opts.Timeout)
	duration := time.Since(start).Milliseconds()

	if timedOut {
		res := newTimeoutResult(start)
		res.Stdout, res.Stderr, res.ExitCode = stdout, stderr, exitCode
		res.SessionID = resolveSessionID(cliPath, stdout, start)
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: launch agent: %v", apperrors.ErrExecFailure, err)
	}

	success := exitCode != nil && *exitCode == 0
	res := &ExecResult{
		Success:       success,
		ExitCode:      exitCode,
		Stdout:        stdout,
		Stderr:        stderr,
		SessionID:     resolveSessionID(cliPath, stdout, start),
		AwaitingInput: !success && isAwaitingInput(stderr),
		DurationMS:    duration,
	}
	if !success {
		res.Error = fmt.Sprintf("agent exited with code %d", exitCodeOrUnknown(exitCode))
	}
	return res, nil
}

func resolveSessionID(cliPath, stdout string, start time.Time) string {
	if id := extractSessionID(stdout); id != "" {
		return id
	}
	return findSessionFile(baseName(cliPath), start)
}

func isAwaitingInput(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "awaiting") || strings.Contains(lower, "waiting for input")
}

func exitCodeOrUnknown(code *int) int {
	if code == nil {
		return -1
	}
	return *code
}

func baseName(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
