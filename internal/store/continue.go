package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conductor-oss/conductor/internal/apperrors"
)

// Continue drives a resumable job back to pending with a continuation
// prompt the worker picks up on its next claim.
//
// Only awaiting_input or failed jobs are resumable, and only when a
// session_id was recorded. A job that timed out is rejected with a
// directive to resume instead, which the caller expresses by passing
// forceResume=true (translating to resume_requested=true rather than a
// stored continue prompt).
func (s *Store) Continue(ctx context.Context, id, prompt string, forceResume bool) (*Job, error) {
	var updated *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		job, err := scanJob(tx.QueryRowContext(ctx, jobSelectColumns+` WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: job %s", apperrors.ErrNotFound, id)
		}
		if err != nil {
			return err
		}

		if job.Status != StatusAwaitingInput && job.Status != StatusFailed {
			return fmt.Errorf("%w: job %s is %s, not resumable", apperrors.ErrValidation, id, job.Status)
		}
		if job.SessionID == "" {
			return fmt.Errorf("%w: job %s has no recorded session to continue", apperrors.ErrValidation, id)
		}
		if job.ResultSummary != nil && job.ResultSummary.TimedOut && !forceResume {
			return fmt.Errorf("%w: job %s timed out; continue requires resume instead", apperrors.ErrValidation, id)
		}

		summary := job.ResultSummary
		if summary == nil {
			summary = &ResultSummary{}
		}
		record := ContinuationRecord{Prompt: prompt, At: time.Now().UTC(), FromState: job.Status}
		summary.Continuations = append(summary.Continuations, record)
		summary.LastContinuation = &record
		if forceResume {
			summary.ContinuePrompt = ""
		} else {
			summary.ContinuePrompt = prompt
		}

		summaryJSON, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal result_summary: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE jobs SET status = ?, result_summary_json = ?, resume_requested = ?, updated_at = ?
			WHERE id = ?`,
			string(StatusPending), string(summaryJSON), boolToInt(forceResume),
			time.Now().UTC().Format(time.RFC3339), id,
		)
		if err != nil {
			return fmt.Errorf("continue job: %w", err)
		}

		updated, err = scanJob(tx.QueryRowContext(ctx, jobSelectColumns+` WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
