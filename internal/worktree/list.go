package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conductor-oss/conductor/internal/git"
)

// State is the derived lifecycle state of a worktree entry.
type State string

const (
	StateOrphaned  State = "orphaned"
	StateInUse     State = "in_use"
	StateProtected State = "protected"
	StateLocked    State = "locked"
	StateUnmanaged State = "unmanaged"
)

// Info describes one entry from `git worktree list`, enriched with
// managed-directory and referring-job context.
type Info struct {
	Path           string
	Branch         string
	Head           string
	Locked         bool
	Prunable       bool
	Managed        bool
	State          State
	BlockedReasons []string
	ReferringJobs  []string
}

// JobLookup is the subset of Store that List needs to join worktree paths
// against live jobs, kept narrow so this package doesn't import store.
type JobLookup interface {
	JobsReferencingWorktree(ctx context.Context, path string) (ids []string, anyRunning bool, err error)
}

// List enumerates worktrees known to the repository cache and classifies
// each against jobs looked up through lookup.
func (m *Manager) List(ctx context.Context, lookup JobLookup) ([]Info, error) {
	entries, err := m.listRaw(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		info := Info{
			Path:     e.path,
			Branch:   e.branch,
			Head:     e.head,
			Locked:   e.locked,
			Prunable: e.prunable,
			Managed:  strings.HasPrefix(e.path, m.baseDir),
		}

		if !info.Managed {
			info.State = StateUnmanaged
			info.BlockedReasons = append(info.BlockedReasons, "outside managed base directory")
			infos = append(infos, info)
			continue
		}

		if info.Locked {
			info.State = StateLocked
			info.BlockedReasons = append(info.BlockedReasons, "git worktree lock held")
		}

		if lookup != nil {
			ids, anyRunning, err := lookup.JobsReferencingWorktree(ctx, e.path)
			if err != nil {
				return nil, fmt.Errorf("lookup jobs for worktree %s: %w", e.path, err)
			}
			info.ReferringJobs = ids
			if info.State == "" {
				switch {
				case anyRunning:
					info.State = StateProtected
				case len(ids) > 0:
					info.State = StateInUse
				default:
					info.State = StateOrphaned
				}
			}
		} else if info.State == "" {
			info.State = StateOrphaned
		}

		infos = append(infos, info)
	}
	return infos, nil
}

type rawEntry struct {
	path     string
	branch   string
	head     string
	locked   bool
	prunable bool
}

// listRaw parses `git worktree list --porcelain`, run once per cloned
// repository under the cache directory. The cache container itself
// (reposDir) is never a git repository, so the command must be run inside
// each clone subdirectory rather than against the container.
func (m *Manager) listRaw(ctx context.Context) ([]rawEntry, error) {
	runner := m.runner
	if runner == nil {
		runner = git.DefaultRunner()
	}

	reposDir := m.reposDir()
	dirEntries, err := os.ReadDir(reposDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read repo cache dir: %w", err)
	}

	var entries []rawEntry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		clonePath := filepath.Join(reposDir, de.Name())
		out, err := runner.Exec(ctx, clonePath, "worktree", "list", "--porcelain")
		if err != nil {
			// Not a git clone (or already removed): skip it.
			continue
		}
		for _, e := range parsePorcelain(out) {
			// The clone's own checkout is always the first entry of its own
			// `worktree list`; it's the cache, not a job-carved worktree.
			if e.path == clonePath {
				continue
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func parsePorcelain(out string) []rawEntry {
	var entries []rawEntry
	var cur *rawEntry
	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur = &rawEntry{path: strings.TrimPrefix(line, "worktree ")}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "HEAD "):
			cur.head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "locked" || strings.HasPrefix(line, "locked "):
			cur.locked = true
		case line == "prunable" || strings.HasPrefix(line, "prunable "):
			cur.prunable = true
		}
	}
	flush()
	return entries
}
