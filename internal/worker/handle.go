package worker

import (
	"context"
	"fmt"

	"github.com/conductor-oss/conductor/internal/agent"
	"github.com/conductor-oss/conductor/internal/eventbus"
	"github.com/conductor-oss/conductor/internal/git"
	"github.com/conductor-oss/conductor/internal/store"
	"github.com/conductor-oss/conductor/internal/worktree"
)

// handler carries the dependencies HandleJob needs, bound from its owning
// Pool so the step methods below stay free of global state.
type handler struct {
	pool *Pool
}

// HandleJob drives job from claimed (running) through to a terminal or
// awaiting_input status, in the nine steps the worker pool's contract
// names: materialise a worktree, pick Exec vs Resume, react to the
// outcome, commit/push on success, run tests, clean up, and persist the
// final status.
func (h *handler) HandleJob(ctx context.Context, job *store.Job) error {
	cwd := job.RepoURL
	if job.UseWorktree {
		path, err := h.materialiseWorktree(ctx, job)
		if err != nil {
			return h.finish(ctx, job, store.StatusFailed, &store.ResultSummary{Error: err.Error()})
		}
		cwd = path
	}

	result, execErr := h.runAgent(ctx, job, cwd)
	if execErr != nil {
		return h.finish(ctx, job, store.StatusFailed, &store.ResultSummary{Error: execErr.Error()})
	}

	if result.AwaitingInput {
		summary := &store.ResultSummary{SessionID: result.SessionID, DurationMS: result.DurationMS, TimedOut: result.TimedOut}
		return h.finishWithSession(ctx, job, store.StatusAwaitingInput, summary, result.SessionID)
	}

	if !result.Success {
		summary := &store.ResultSummary{
			Error: result.Error, SessionID: result.SessionID,
			DurationMS: result.DurationMS, TimedOut: result.TimedOut,
		}
		return h.finishWithSession(ctx, job, store.StatusFailed, summary, result.SessionID)
	}

	summary := &store.ResultSummary{SessionID: result.SessionID, DurationMS: result.DurationMS}
	finalStatus := store.StatusDone

	if job.UseWorktree {
		commitHash, commitErr := h.commitAndMaybePush(ctx, job, cwd)
		if commitErr != nil {
			summary.Error = commitErr.Error()
			return h.finishWithSession(ctx, job, store.StatusFailed, summary, result.SessionID)
		}
		summary.CommitHash = commitHash
	}

	if job.UseWorktree && hasTestScript(cwd) {
		passed, output, err := runTests(ctx, cwd, h.pool.cfg.TestCommand)
		if err != nil {
			summary.Error = fmt.Sprintf("running tests: %v", err)
			return h.finishWithSession(ctx, job, store.StatusFailed, summary, result.SessionID)
		}
		summary.TestPassed = &passed
		if !passed {
			summary.Error = "tests failed: " + truncate(output, 4000)
			finalStatus = store.StatusFailed
		}
	}

	if job.UseWorktree && job.PushMode != store.PushNever {
		if err := h.pool.worktrees.Remove(ctx, cwd); err != nil {
			summary.Error = fmt.Sprintf("cleanup worktree: %v", err)
		}
	}

	return h.finish(ctx, job, finalStatus, summary)
}

func (h *handler) materialiseWorktree(ctx context.Context, job *store.Job) (string, error) {
	repoPath, err := h.pool.worktrees.EnsurePath(ctx, job.RepoURL)
	if err != nil {
		return "", fmt.Errorf("materialise repo: %w", err)
	}

	path := job.WorktreePath
	if path == "" {
		path = worktree.DerivePath(h.pool.worktrees.BaseDir(), job.RepoURL, job.BranchName)
	}

	if err := h.pool.worktrees.Acquire(ctx, repoPath, job.BaseRef, job.BranchName, path); err != nil {
		return "", fmt.Errorf("acquire worktree: %w", err)
	}
	return path, nil
}

func (h *handler) runAgent(ctx context.Context, job *store.Job, cwd string) (*agent.ExecResult, error) {
	opts := agent.ExecOptions{
		Timeout:         h.pool.cfg.AgentTimeout,
		ReasoningEffort: h.pool.cfg.ReasoningEffort,
		ContextFiles:    job.Spec.ContextFiles,
	}

	switch {
	case job.ResumeRequested && job.SessionID != "":
		return h.pool.agents.Resume(ctx, cwd, job.SessionID, renderPrompt(job.Spec), opts)
	case job.ResultSummary != nil && job.ResultSummary.ContinuePrompt != "" && job.SessionID != "":
		return h.pool.agents.Resume(ctx, cwd, job.SessionID, job.ResultSummary.ContinuePrompt, opts)
	default:
		return h.pool.agents.Exec(ctx, cwd, renderPrompt(job.Spec), opts)
	}
}

func (h *handler) commitAndMaybePush(ctx context.Context, job *store.Job, cwd string) (string, error) {
	dirty, err := git.HasUncommittedChanges(ctx, cwd)
	if err != nil {
		return "", fmt.Errorf("check worktree status: %w", err)
	}
	if dirty {
		if err := git.StageAll(ctx, cwd); err != nil {
			return "", fmt.Errorf("stage changes: %w", err)
		}
		if err := git.Commit(ctx, cwd, git.CommitOptions{Message: "Job " + job.ID, NoVerify: true}); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	}

	hash, err := git.GetCommitHash(ctx, cwd)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}

	if job.PushMode == store.PushAlways {
		if err := git.Push(ctx, cwd, job.BranchName); err != nil {
			return "", fmt.Errorf("push: %w", err)
		}
	}
	return hash, nil
}

// finish writes the final status and summary, expecting the job to still
// be running or awaiting_input, then emits the update event.
func (h *handler) finish(ctx context.Context, job *store.Job, status store.Status, summary *store.ResultSummary) error {
	return h.writeStatus(ctx, job, status, summary, nil)
}

func (h *handler) finishWithSession(ctx context.Context, job *store.Job, status store.Status, summary *store.ResultSummary, sessionID string) error {
	return h.writeStatus(ctx, job, status, summary, &sessionID)
}

func (h *handler) writeStatus(ctx context.Context, job *store.Job, status store.Status, summary *store.ResultSummary, sessionID *string) error {
	resumeFalse := false
	if summary != nil && job.ResultSummary != nil {
		// The new summary replaces the stored one; keep the continuation history.
		summary.Continuations = job.ResultSummary.Continuations
		summary.LastContinuation = job.ResultSummary.LastContinuation
	}
	updated, err := h.pool.store.UpdateStatus(ctx, job.ID, status, store.UpdateStatusOpts{
		ExpectedStatuses: []store.Status{store.StatusRunning, store.StatusAwaitingInput},
		ResultSummary:    summary,
		SessionID:        sessionID,
		ResumeRequested:  &resumeFalse,
	})
	if err != nil {
		return fmt.Errorf("update status for job %s: %w", job.ID, err)
	}
	if h.pool.bus != nil {
		h.pool.bus.Publish(eventbus.NewJobUpdated(updated.ID, updated))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
