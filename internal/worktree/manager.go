// Package worktree materialises isolated git checkouts for jobs: a shared
// cache of bare-ish clones per repository URL, and one working tree per
// job branch carved out of that cache with `git worktree add`.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/conductor-oss/conductor/internal/git"
)

// Manager owns a managed base directory containing a nested repository
// cache (baseDir/_repos/<slug-hash>) and the job worktrees carved out of
// it. It is safe for concurrent use.
type Manager struct {
	baseDir string
	runner  git.Runner

	cloneLocksMu sync.Mutex
	cloneLocks   map[string]*sync.Mutex
}

// New creates a Manager rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Manager, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("worktree: base dir is required")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, reposDirName), 0o755); err != nil {
		return nil, fmt.Errorf("worktree: create base dir: %w", err)
	}
	return &Manager{
		baseDir:    baseDir,
		runner:     git.DefaultRunner(),
		cloneLocks: make(map[string]*sync.Mutex),
	}, nil
}

// BaseDir returns the managed root directory.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// reposDir is the nested cache directory for repository clones.
func (m *Manager) reposDir() string {
	return filepath.Join(m.baseDir, reposDirName)
}

// ReposDir returns the nested repository-cache directory, for callers
// (e.g. the cleanup package) that need to enumerate cached clones
// directly rather than through a worktree listing.
func (m *Manager) ReposDir() string {
	return m.reposDir()
}

// lockFor returns a mutex scoped to key, creating it on first use. Used to
// serialise concurrent clone attempts of the same repository URL.
func (m *Manager) lockFor(key string) *sync.Mutex {
	m.cloneLocksMu.Lock()
	defer m.cloneLocksMu.Unlock()
	l, ok := m.cloneLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.cloneLocks[key] = l
	}
	return l
}

func isLocalGitRepo(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}
