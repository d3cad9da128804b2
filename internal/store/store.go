// Package store is the transactional job/dependency/log store. It is
// implemented over database/sql with the pure-Go modernc.org/sqlite driver,
// matching the teacher daemon's database package: WAL journaling and
// foreign keys are enabled at open, and every multi-row write runs inside a
// transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the durable job store. It is safe for concurrent use; SQLite's
// WAL mode tolerates concurrent readers while this process remains the
// single writer.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// migrates it to the current schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; WAL still allows concurrent reads

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY,
	repo_url             TEXT NOT NULL,
	base_ref             TEXT NOT NULL,
	branch_name          TEXT NOT NULL,
	worktree_path        TEXT NOT NULL DEFAULT '',
	worker_type          TEXT NOT NULL DEFAULT '',
	feature_id           TEXT NOT NULL DEFAULT '',
	feature_part         TEXT NOT NULL DEFAULT '',
	push_mode            TEXT NOT NULL DEFAULT 'never',
	use_worktree         INTEGER NOT NULL DEFAULT 1,
	status               TEXT NOT NULL DEFAULT 'pending',
	spec_json            TEXT NOT NULL DEFAULT '{}',
	result_summary_json  TEXT,
	session_id           TEXT NOT NULL DEFAULT '',
	resume_requested     INTEGER NOT NULL DEFAULT 0,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_worker_type ON jobs(worker_type);
CREATE INDEX IF NOT EXISTS idx_jobs_feature_id ON jobs(feature_id);
CREATE INDEX IF NOT EXISTS idx_jobs_repo_branch ON jobs(repo_url, branch_name);

CREATE TABLE IF NOT EXISTS job_dependencies (
	job_id             TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	depends_on_job_id  TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	PRIMARY KEY (job_id, depends_on_job_id)
);

CREATE INDEX IF NOT EXISTS idx_deps_depends_on ON job_dependencies(depends_on_job_id);

CREATE TABLE IF NOT EXISTS job_logs (
	job_id      TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	sequence    INTEGER NOT NULL,
	stream      TEXT NOT NULL,
	text        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (job_id, sequence)
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic, which is re-raised after rollback).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
