package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-oss/conductor/internal/apperrors"
	"github.com/conductor-oss/conductor/internal/scheduler"
)

// CreateJob inserts a new job with a generated id and timestamps. If
// DependsOn is non-empty every referenced id must exist and must not be in
// a failed/cancelled state, and adding the edges must not introduce a
// cycle.
func (s *Store) CreateJob(ctx context.Context, input CreateJobInput) (*Job, error) {
	if input.RepoURL == "" || input.BranchName == "" {
		return nil, fmt.Errorf("%w: repo_url and branch_name are required", apperrors.ErrValidation)
	}
	if input.PushMode == "" {
		input.PushMode = PushNever
	}
	if input.WorkerType == "" {
		input.WorkerType = "default"
	}
	if input.PushMode != PushAlways && input.PushMode != PushNever {
		return nil, fmt.Errorf("%w: invalid push_mode %q", apperrors.ErrValidation, input.PushMode)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.New().String(),
		RepoURL:     input.RepoURL,
		BaseRef:     input.BaseRef,
		BranchName:  input.BranchName,
		WorkerType:  input.WorkerType,
		FeatureID:   input.FeatureID,
		FeaturePart: input.FeaturePart,
		PushMode:    input.PushMode,
		UseWorktree: input.UseWorktree,
		Status:      StatusPending,
		Spec:        input.Spec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if len(input.DependsOn) > 0 {
			if err := validateDependencies(ctx, tx, job.ID, input.DependsOn); err != nil {
				return err
			}
		}

		specJSON, err := json.Marshal(job.Spec)
		if err != nil {
			return fmt.Errorf("marshal spec: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO jobs (
				id, repo_url, base_ref, branch_name, worktree_path, worker_type,
				feature_id, feature_part, push_mode, use_worktree, status,
				spec_json, session_id, resume_requested, created_at, updated_at
			) VALUES (?, ?, ?, ?, '', ?, ?, ?, ?, ?, ?, ?, '', 0, ?, ?)`,
			job.ID, job.RepoURL, job.BaseRef, job.BranchName, job.WorkerType,
			job.FeatureID, job.FeaturePart, string(job.PushMode), boolToInt(job.UseWorktree), string(job.Status),
			string(specJSON), job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		for _, dep := range input.DependsOn {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO job_dependencies (job_id, depends_on_job_id) VALUES (?, ?)`,
				job.ID, dep,
			); err != nil {
				return fmt.Errorf("insert dependency: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// validateDependencies checks that every dependency exists, is not in a
// terminal failure state, and that adding the edges introduces no cycle.
func validateDependencies(ctx context.Context, tx *sql.Tx, jobID string, dependsOn []string) error {
	existingEdges, err := loadDependencyGraph(ctx, tx)
	if err != nil {
		return err
	}

	for _, dep := range dependsOn {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, dep).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: dependency %s does not exist", apperrors.ErrValidation, dep)
		}
		if err != nil {
			return fmt.Errorf("look up dependency %s: %w", dep, err)
		}
		if status == string(StatusFailed) || status == string(StatusCancelled) {
			return fmt.Errorf("%w: dependency %s is %s", apperrors.ErrDependencyTerminated, dep, status)
		}
	}

	newEdges := map[string][]string{jobID: append([]string{}, dependsOn...)}
	if scheduler.CheckCircular(existingEdges, newEdges, jobID) {
		return fmt.Errorf("%w", apperrors.ErrCircularDependency)
	}

	return nil
}

func loadDependencyGraph(ctx context.Context, tx *sql.Tx) (map[string][]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT job_id, depends_on_job_id FROM job_dependencies`)
	if err != nil {
		return nil, fmt.Errorf("load dependency graph: %w", err)
	}
	defer rows.Close()

	edges := make(map[string][]string)
	for rows.Next() {
		var jobID, dep string
		if err := rows.Scan(&jobID, &dep); err != nil {
			return nil, err
		}
		edges[jobID] = append(edges[jobID], dep)
	}
	return edges, rows.Err()
}

// GetJob fetches a single job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, jobSelectColumns+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns jobs matching filter, ordered by created_at descending.
func (s *Store) ListJobs(ctx context.Context, filter ListFilter) ([]*Job, error) {
	query := jobSelectColumns + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.WorkerType != "" {
		query += ` AND worker_type = ?`
		args = append(args, filter.WorkerType)
	}
	if filter.FeatureID != "" {
		query += ` AND feature_id = ?`
		args = append(args, filter.FeatureID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateStatus transitions a job to newStatus. When opts.ExpectedStatuses
// is set, the update applies only if the job's current status is one of
// them (optimistic concurrency); otherwise ErrStaleState is returned. On a
// transition to failed or cancelled, every still-pending transitive
// dependent is recursively cancelled in the same transaction.
func (s *Store) UpdateStatus(ctx context.Context, id string, newStatus Status, opts UpdateStatusOpts) (*Job, error) {
	var updated *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		job, err := scanJob(tx.QueryRowContext(ctx, jobSelectColumns+` WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: job %s", apperrors.ErrNotFound, id)
		}
		if err != nil {
			return err
		}

		if len(opts.ExpectedStatuses) > 0 && !statusIn(job.Status, opts.ExpectedStatuses) {
			return fmt.Errorf("%w: job %s is %s", apperrors.ErrStaleState, id, job.Status)
		}

		now := time.Now().UTC()
		var resultJSON sql.NullString
		if opts.ResultSummary != nil {
			b, err := json.Marshal(opts.ResultSummary)
			if err != nil {
				return fmt.Errorf("marshal result_summary: %w", err)
			}
			resultJSON = sql.NullString{String: string(b), Valid: true}
		}

		sessionID := job.SessionID
		if opts.SessionID != nil {
			sessionID = *opts.SessionID
		}
		resumeRequested := job.ResumeRequested
		if opts.ResumeRequested != nil {
			resumeRequested = *opts.ResumeRequested
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE jobs SET status = ?, result_summary_json = COALESCE(?, result_summary_json),
				session_id = ?, resume_requested = ?, updated_at = ?
			WHERE id = ?`,
			string(newStatus), nullableString(resultJSON), sessionID, boolToInt(resumeRequested),
			now.Format(time.RFC3339), id,
		)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: job %s", apperrors.ErrStaleState, id)
		}

		if newStatus == StatusFailed || newStatus == StatusCancelled {
			if err := cascadeCancel(ctx, tx, id, newStatus); err != nil {
				return err
			}
		}

		updated, err = scanJob(tx.QueryRowContext(ctx, jobSelectColumns+` WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// cascadeCancel transitions every still-pending transitive dependent of id
// to cancelled, recording a CancellationCause pointing at the originating
// job and its terminal status.
func cascadeCancel(ctx context.Context, tx *sql.Tx, id string, cause Status) error {
	rows, err := tx.QueryContext(ctx, `SELECT job_id FROM job_dependencies WHERE depends_on_job_id = ?`, id)
	if err != nil {
		return fmt.Errorf("load dependents: %w", err)
	}
	var dependents []string
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			rows.Close()
			return err
		}
		dependents = append(dependents, depID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, depID := range dependents {
		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, depID).Scan(&status); err != nil {
			return fmt.Errorf("look up dependent %s: %w", depID, err)
		}
		if status != string(StatusPending) {
			continue
		}

		summary := &ResultSummary{
			CancellationCause: &CancellationCause{UpstreamJobID: id, UpstreamState: cause},
		}
		summaryJSON, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal cancellation summary: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, result_summary_json = ?, updated_at = ? WHERE id = ?`,
			string(StatusCancelled), string(summaryJSON), time.Now().UTC().Format(time.RFC3339), depID,
		); err != nil {
			return fmt.Errorf("cancel dependent %s: %w", depID, err)
		}

		if err := cascadeCancel(ctx, tx, depID, StatusCancelled); err != nil {
			return err
		}
	}
	return nil
}

// DeleteJob removes a single job. It refuses when the job is in a protected
// status or when any surviving job depends on it.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: job %s", apperrors.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if Status(status).IsProtected() {
			return fmt.Errorf("%w: job %s is %s", apperrors.ErrProtectedState, id, status)
		}

		var dependentCount int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM job_dependencies WHERE depends_on_job_id = ?`, id,
		).Scan(&dependentCount); err != nil {
			return err
		}
		if dependentCount > 0 {
			return fmt.Errorf("%w: job %s", apperrors.ErrDependentExists, id)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		return err
	})
}

// DeleteJobs bulk-deletes jobs matching filter. Protected statuses are
// always excluded. Jobs depended on by any surviving job are skipped
// silently rather than erroring (the "skip silently" variant).
func (s *Store) DeleteJobs(ctx context.Context, filter DeleteFilter) ([]*Job, error) {
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []Status{StatusDone, StatusFailed, StatusCancelled}
	}

	var removed []*Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		placeholders := make([]string, 0, len(statuses))
		args := make([]any, 0, len(statuses)+1)
		for _, st := range statuses {
			if st.IsProtected() {
				continue
			}
			placeholders = append(placeholders, "?")
			args = append(args, string(st))
		}
		if len(placeholders) == 0 {
			return nil
		}

		query := jobSelectColumns + ` WHERE status IN (` + joinPlaceholders(placeholders) + `)`
		if filter.MaxAgeDays > 0 {
			cutoff := time.Now().UTC().AddDate(0, 0, -filter.MaxAgeDays).Format(time.RFC3339)
			query += ` AND created_at <= ?`
			args = append(args, cutoff)
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select candidates: %w", err)
		}
		var candidates []*Job
		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				rows.Close()
				return err
			}
			candidates = append(candidates, job)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, job := range candidates {
			var dependentCount int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM job_dependencies WHERE depends_on_job_id = ?`, job.ID,
			).Scan(&dependentCount); err != nil {
				return err
			}
			if dependentCount > 0 {
				continue // skip silently
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
				return fmt.Errorf("delete job %s: %w", job.ID, err)
			}
			removed = append(removed, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ListDependencies returns the jobs this job depends on and the jobs that
// depend on it.
func (s *Store) ListDependencies(ctx context.Context, id string) (dependsOn, dependedBy []string, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT depends_on_job_id FROM job_dependencies WHERE job_id = ?`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list depends_on: %w", err)
	}
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			rows.Close()
			return nil, nil, err
		}
		dependsOn = append(dependsOn, dep)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT job_id FROM job_dependencies WHERE depends_on_job_id = ?`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list depended_by: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, nil, err
		}
		dependedBy = append(dependedBy, dep)
	}
	return dependsOn, dependedBy, rows.Err()
}

// IsWorktreeInUse reports whether any job other than those in excludeIDs
// currently references path as its worktree.
func (s *Store) IsWorktreeInUse(ctx context.Context, path string, excludeIDs []string) (bool, error) {
	query := `SELECT COUNT(*) FROM jobs WHERE worktree_path = ?`
	args := []any{path}
	for _, id := range excludeIDs {
		query += ` AND id != ?`
		args = append(args, id)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check worktree usage: %w", err)
	}
	return count > 0, nil
}

const jobSelectColumns = `SELECT
	id, repo_url, base_ref, branch_name, worktree_path, worker_type,
	feature_id, feature_part, push_mode, use_worktree, status, spec_json,
	result_summary_json, session_id, resume_requested, created_at, updated_at
	FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		pushMode     string
		useWorktree  int
		status       string
		specJSON     string
		resultJSON   sql.NullString
		resumeReq    int
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&job.ID, &job.RepoURL, &job.BaseRef, &job.BranchName, &job.WorktreePath, &job.WorkerType,
		&job.FeatureID, &job.FeaturePart, &pushMode, &useWorktree, &status, &specJSON,
		&resultJSON, &job.SessionID, &resumeReq, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.PushMode = PushMode(pushMode)
	job.UseWorktree = useWorktree != 0
	job.Status = Status(status)
	job.ResumeRequested = resumeReq != 0

	if err := json.Unmarshal([]byte(specJSON), &job.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	if resultJSON.Valid {
		var rs ResultSummary
		if err := json.Unmarshal([]byte(resultJSON.String), &rs); err != nil {
			return nil, fmt.Errorf("unmarshal result_summary: %w", err)
		}
		job.ResultSummary = &rs
	}

	job.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	job.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &job, nil
}

func statusIn(status Status, set []Status) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}

func joinPlaceholders(ps []string) string {
	out := ps[0]
	for _, p := range ps[1:] {
		out += ", " + p
	}
	return out
}
