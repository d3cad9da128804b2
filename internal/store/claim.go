package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimOldest atomically selects and claims the oldest pending job for
// workerType. It returns nil, nil when nothing is claimable.
//
// The select and update run inside one transaction; under SQLite's
// single-writer semantics (WAL mode, effectively BEGIN IMMEDIATE via the
// single open connection) this is sufficient to prevent two workers from
// claiming the same row.
func (s *Store) ClaimOldest(ctx context.Context, workerType string) (*Job, error) {
	var claimed *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := selectClaimableJob(ctx, tx, workerType)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC().Format(time.RFC3339)
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(StatusRunning), now, id, string(StatusPending),
		)
		if err != nil {
			return fmt.Errorf("claim job %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Lost the race to another claim between select and update;
			// report no claimable job rather than retrying within this call.
			return nil
		}

		claimed, err = scanJob(tx.QueryRowContext(ctx, jobSelectColumns+` WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// selectClaimableJob finds the oldest pending job for workerType where:
//   - no other job sharing (repo_url, branch_name) is running or awaiting_input
//   - every dependency is done
//   - no dependency has failed
func selectClaimableJob(ctx context.Context, tx *sql.Tx, workerType string) (string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, repo_url, branch_name
		FROM jobs
		WHERE status = ? AND worker_type = ?
		ORDER BY created_at ASC`,
		string(StatusPending), workerType,
	)
	if err != nil {
		return "", fmt.Errorf("select candidates: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		id, repoURL, branchName string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.repoURL, &c.branchName); err != nil {
			return "", err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	for _, c := range candidates {
		inConflict, err := worktreeConflict(ctx, tx, c.repoURL, c.branchName)
		if err != nil {
			return "", err
		}
		if inConflict {
			continue
		}

		ready, err := dependenciesReady(ctx, tx, c.id)
		if err != nil {
			return "", err
		}
		if !ready {
			continue
		}

		return c.id, nil
	}
	return "", sql.ErrNoRows
}

func worktreeConflict(ctx context.Context, tx *sql.Tx, repoURL, branchName string) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE repo_url = ? AND branch_name = ? AND status IN (?, ?)`,
		repoURL, branchName, string(StatusRunning), string(StatusAwaitingInput),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check worktree conflict: %w", err)
	}
	return count > 0, nil
}

func dependenciesReady(ctx context.Context, tx *sql.Tx, jobID string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT j.status FROM job_dependencies d
		JOIN jobs j ON j.id = d.depends_on_job_id
		WHERE d.job_id = ?`, jobID)
	if err != nil {
		return false, fmt.Errorf("check dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return false, err
		}
		if status == string(StatusFailed) {
			return false, nil
		}
		if status != string(StatusDone) {
			return false, nil
		}
	}
	return true, rows.Err()
}
