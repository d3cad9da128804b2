package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conductor-oss/conductor/internal/apperrors"
)

// Acquire makes worktreePath a checkout of branch, creating it from
// repoPath if it doesn't already exist.
//
// If worktreePath already contains a live worktree, it's reused: all refs
// are fetched, branch is checked out, and — only if an upstream is
// configured for it — pulled. Otherwise a new worktree is added off
// repoPath, reusing branch if it already exists there or creating it from
// baseRef.
func (m *Manager) Acquire(ctx context.Context, repoPath, baseRef, branch, worktreePath string) error {
	if isLocalGitRepo(worktreePath) {
		return m.reuseWorktree(ctx, worktreePath, branch)
	}
	return m.addWorktree(ctx, repoPath, baseRef, branch, worktreePath)
}

func (m *Manager) reuseWorktree(ctx context.Context, worktreePath, branch string) error {
	if _, err := m.runner.Exec(ctx, worktreePath, "fetch", "--all"); err != nil {
		return fmt.Errorf("%w: fetch in %s: %v", apperrors.ErrGitFailure, worktreePath, err)
	}
	if _, err := m.runner.Exec(ctx, worktreePath, "checkout", branch); err != nil {
		return fmt.Errorf("%w: checkout %s in %s: %v", apperrors.ErrGitFailure, branch, worktreePath, err)
	}

	if m.hasUpstream(ctx, worktreePath) {
		if _, err := m.runner.Exec(ctx, worktreePath, "pull"); err != nil {
			return fmt.Errorf("%w: pull in %s: %v", apperrors.ErrGitFailure, worktreePath, err)
		}
	}
	return nil
}

func (m *Manager) hasUpstream(ctx context.Context, worktreePath string) bool {
	_, err := m.runner.Exec(ctx, worktreePath, "rev-parse", "--abbrev-ref", "@{u}")
	return err == nil
}

func (m *Manager) addWorktree(ctx context.Context, repoPath, baseRef, branch, worktreePath string) error {
	if err := os.MkdirAll(filepath.Dir(worktreePath), 0o755); err != nil {
		return fmt.Errorf("%w: create parent of %s: %v", apperrors.ErrIOFailure, worktreePath, err)
	}

	if _, err := m.runner.Exec(ctx, repoPath, "fetch", "--all"); err != nil {
		return fmt.Errorf("%w: fetch in %s: %v", apperrors.ErrGitFailure, repoPath, err)
	}

	if m.branchExists(ctx, repoPath, branch) {
		if _, err := m.runner.Exec(ctx, repoPath, "worktree", "add", worktreePath, branch); err != nil {
			return fmt.Errorf("%w: worktree add %s on %s: %v", apperrors.ErrGitFailure, worktreePath, branch, err)
		}
		return nil
	}

	if _, err := m.runner.Exec(ctx, repoPath, "worktree", "add", "-B", branch, worktreePath, baseRef); err != nil {
		return fmt.Errorf("%w: worktree add -B %s on %s from %s: %v",
			apperrors.ErrGitFailure, branch, worktreePath, baseRef, err)
	}
	return nil
}

func (m *Manager) branchExists(ctx context.Context, repoPath, branch string) bool {
	_, err := m.runner.Exec(ctx, repoPath, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}
