package store

import (
	"context"
	"fmt"
)

// JobsReferencingWorktree implements worktree.JobLookup: it reports every
// job id whose worktree_path equals path, and whether any of them is
// currently running or awaiting input.
func (s *Store) JobsReferencingWorktree(ctx context.Context, path string) ([]string, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status FROM jobs WHERE worktree_path = ?`, path,
	)
	if err != nil {
		return nil, false, fmt.Errorf("jobs referencing worktree: %w", err)
	}
	defer rows.Close()

	var ids []string
	var anyRunning bool
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, false, err
		}
		ids = append(ids, id)
		if status == string(StatusRunning) || status == string(StatusAwaitingInput) {
			anyRunning = true
		}
	}
	return ids, anyRunning, rows.Err()
}
