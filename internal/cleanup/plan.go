// Package cleanup implements the offline administrative sweep: bulk job
// deletion, orphaned worktree removal, and stale repo-cache pruning,
// either invoked directly, gated behind an interactive confirmation
// prompt, or run on a cron schedule inside the daemon.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/conductor-oss/conductor/internal/store"
	"github.com/conductor-oss/conductor/internal/worktree"
)

// Filter selects which jobs a sweep considers; protected statuses are
// always excluded regardless of Statuses.
type Filter struct {
	Statuses   []store.Status
	MaxAgeDays int
}

// Plan is the set of candidates a sweep would remove, computed without
// mutating anything so it can be shown to an operator before acting.
type Plan struct {
	Jobs          []*store.Job
	Worktrees     []worktree.Info
	RepoCacheDirs []string
}

// IsEmpty reports whether the plan removes nothing.
func (p Plan) IsEmpty() bool {
	return len(p.Jobs) == 0 && len(p.Worktrees) == 0 && len(p.RepoCacheDirs) == 0
}

// Sweeper orchestrates a cleanup pass against a Store and a
// worktree.Manager.
type Sweeper struct {
	Store     *store.Store
	Worktrees *worktree.Manager
}

// New builds a Sweeper.
func New(st *store.Store, wm *worktree.Manager) *Sweeper {
	return &Sweeper{Store: st, Worktrees: wm}
}

// Plan enumerates what a sweep with the given filter would remove,
// without deleting anything.
func (s *Sweeper) Plan(ctx context.Context, filter Filter) (Plan, error) {
	var plan Plan

	jobs, err := s.planJobs(ctx, filter)
	if err != nil {
		return plan, fmt.Errorf("plan jobs: %w", err)
	}
	plan.Jobs = jobs

	infos, err := s.Worktrees.List(ctx, s.Store)
	if err != nil {
		return plan, fmt.Errorf("list worktrees: %w", err)
	}
	for _, info := range infos {
		if info.State == worktree.StateOrphaned {
			plan.Worktrees = append(plan.Worktrees, info)
		}
	}

	staleCaches, err := s.planRepoCaches(ctx)
	if err != nil {
		return plan, fmt.Errorf("plan repo caches: %w", err)
	}
	plan.RepoCacheDirs = staleCaches

	return plan, nil
}

// planJobs selects delete candidates the same way Store.DeleteJobs
// would, but as a read-only preview: list everything matching the
// filter's statuses/age and let the store apply protected-status and
// dependent-job exclusion at execution time.
func (s *Sweeper) planJobs(ctx context.Context, filter Filter) ([]*store.Job, error) {
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []store.Status{store.StatusDone, store.StatusFailed, store.StatusCancelled}
	}

	var candidates []*store.Job
	for _, st := range statuses {
		if st.IsProtected() {
			continue
		}
		jobs, err := s.Store.ListJobs(ctx, store.ListFilter{Status: st})
		if err != nil {
			return nil, err
		}
		for _, job := range jobs {
			if filter.MaxAgeDays > 0 && ageDays(job) < filter.MaxAgeDays {
				continue
			}
			candidates = append(candidates, job)
		}
	}
	return candidates, nil
}

// planRepoCaches finds cache directories under the managed repos
// directory whose name matches no live job's repo_url.
func (s *Sweeper) planRepoCaches(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Worktrees.ReposDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	jobs, err := s.Store.ListJobs(ctx, store.ListFilter{})
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		live[worktree.RepoCacheDir(job.RepoURL)] = true
	}

	var stale []string
	for _, e := range entries {
		if !e.IsDir() || live[e.Name()] {
			continue
		}
		stale = append(stale, filepath.Join(s.Worktrees.ReposDir(), e.Name()))
	}
	return stale, nil
}

func ageDays(job *store.Job) int {
	return int(time.Since(job.CreatedAt).Hours() / 24)
}
