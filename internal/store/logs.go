package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendLog appends one captured line of agent output for jobID, assigning
// the next per-job sequence number inside the insert transaction.
func (s *Store) AppendLog(ctx context.Context, jobID, stream, text string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var nextSeq int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sequence), 0) + 1 FROM job_logs WHERE job_id = ?`, jobID,
		).Scan(&nextSeq)
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO job_logs (job_id, sequence, stream, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			jobID, nextSeq, stream, text, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("append log: %w", err)
		}
		return nil
	})
}

// ReadLogs returns every log entry for jobID in sequence order.
func (s *Store) ReadLogs(ctx context.Context, jobID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, sequence, stream, text, created_at FROM job_logs WHERE job_id = ? ORDER BY sequence ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var createdAt string
		if err := rows.Scan(&e.JobID, &e.Sequence, &e.Stream, &e.Text, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
