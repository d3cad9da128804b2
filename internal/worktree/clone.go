package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conductor-oss/conductor/internal/apperrors"
)

// EnsurePath returns a local filesystem path containing a clone of
// repoURL, cloning into the managed repository cache if needed.
//
// If repoURL already names a local directory with a .git entry, it is
// returned unchanged — the caller owns that checkout.
func (m *Manager) EnsurePath(ctx context.Context, repoURL string) (string, error) {
	if isLocalGitRepo(repoURL) {
		abs, err := filepath.Abs(repoURL)
		if err != nil {
			return "", fmt.Errorf("%w: resolve local repo path: %v", apperrors.ErrIOFailure, err)
		}
		return abs, nil
	}

	cacheDir := filepath.Join(m.reposDir(), RepoCacheDir(repoURL))

	lock := m.lockFor(cacheDir)
	lock.Lock()
	defer lock.Unlock()

	if isLocalGitRepo(cacheDir) {
		return cacheDir, nil
	}

	if _, err := os.Stat(cacheDir); err == nil {
		// A stale, non-empty, non-repo directory from an aborted clone.
		if err := os.RemoveAll(cacheDir); err != nil {
			return "", fmt.Errorf("%w: clear stale cache dir: %v", apperrors.ErrIOFailure, err)
		}
	}

	if _, err := m.runner.Exec(ctx, m.reposDir(), "clone", repoURL, cacheDir); err != nil {
		return "", fmt.Errorf("%w: clone %s: %v", apperrors.ErrGitFailure, repoURL, err)
	}

	return cacheDir, nil
}
