package worktree

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/conductor-oss/conductor/internal/apperrors"
)

// Remove deletes the worktree at path. A missing path is a no-op; a "not a
// git repository" error from git itself is swallowed since the caller has
// already determined the path is stale.
func (m *Manager) Remove(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	gitDir, err := m.commonGitDir(ctx, path)
	if err != nil {
		if strings.Contains(err.Error(), "not a git repository") {
			return nil
		}
		return fmt.Errorf("%w: resolve git dir for %s: %v", apperrors.ErrGitFailure, path, err)
	}

	if _, err := m.runner.Exec(ctx, gitDir, "worktree", "remove", "--force", path); err != nil {
		if strings.Contains(err.Error(), "not a git repository") {
			return nil
		}
		return fmt.Errorf("%w: remove worktree %s: %v", apperrors.ErrGitFailure, path, err)
	}
	return nil
}

func (m *Manager) commonGitDir(ctx context.Context, path string) (string, error) {
	out, err := m.runner.Exec(ctx, path, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
