package cleanup

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/conductor-oss/conductor/internal/store"
	"github.com/conductor-oss/conductor/internal/worktree"
)

// Result tallies what a Run actually removed.
type Result struct {
	JobsDeleted      []*store.Job
	WorktreesRemoved []string
	RepoCachesPruned []string
}

// Run executes filter's sweep: deletes matching jobs through the
// store's own protected-status and dependent-job guards, removes
// orphaned worktrees, and prunes stale repo caches. Callers that want a
// confirmation gate should call Plan first and present it before Run.
func (s *Sweeper) Run(ctx context.Context, filter Filter) (Result, error) {
	var result Result

	removed, err := s.Store.DeleteJobs(ctx, store.DeleteFilter{
		Statuses: filter.Statuses, MaxAgeDays: filter.MaxAgeDays,
	})
	if err != nil {
		return result, fmt.Errorf("delete jobs: %w", err)
	}
	result.JobsDeleted = removed

	infos, err := s.Worktrees.List(ctx, s.Store)
	if err != nil {
		return result, fmt.Errorf("list worktrees: %w", err)
	}
	for _, info := range infos {
		if info.State != worktree.StateOrphaned {
			continue
		}
		if err := s.Worktrees.Remove(ctx, info.Path); err != nil {
			log.Printf("cleanup: remove worktree %s: %v", info.Path, err)
			continue
		}
		result.WorktreesRemoved = append(result.WorktreesRemoved, info.Path)
	}

	stale, err := s.planRepoCaches(ctx)
	if err != nil {
		return result, fmt.Errorf("plan repo caches: %w", err)
	}
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("cleanup: prune repo cache %s: %v", dir, err)
			continue
		}
		result.RepoCachesPruned = append(result.RepoCachesPruned, dir)
	}

	return result, nil
}
