package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-oss/conductor/internal/apperrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestJob(t *testing.T, s *Store, opts ...func(*CreateJobInput)) *Job {
	t.Helper()
	input := CreateJobInput{
		RepoURL:    "https://example.com/repo.git",
		BaseRef:    "origin/main",
		BranchName: "job/test-" + randomID(),
		WorkerType: "default",
		PushMode:   PushNever,
		Spec:       JobSpec{Prompt: "do the thing"},
	}
	for _, opt := range opts {
		opt(&input)
	}
	job, err := s.CreateJob(context.Background(), input)
	require.NoError(t, err)
	return job
}

var idCounter int

func randomID() string {
	idCounter++
	return "x" + string(rune('a'+idCounter%26))
}

func TestCreateJob_AndGetJob(t *testing.T) {
	s := newTestStore(t)
	job := createTestJob(t, s)

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "do the thing", got.Spec.Prompt)
}

func TestGetJob_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateJob_RejectsUnknownDependency(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r", BranchName: "b", DependsOn: []string{"missing"},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateJob_RejectsTerminatedDependency(t *testing.T) {
	s := newTestStore(t)
	dep := createTestJob(t, s)
	_, err := s.UpdateStatus(context.Background(), dep.ID, StatusFailed, UpdateStatusOpts{})
	require.NoError(t, err)

	_, err = s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r", BranchName: "b", DependsOn: []string{dep.ID},
	})
	assert.ErrorIs(t, err, apperrors.ErrDependencyTerminated)
}

func TestCreateJob_AllowsChainedDependencies(t *testing.T) {
	// Dependencies can only reference jobs that already exist, so a job graph
	// built through CreateJob alone is acyclic by construction; this exercises
	// the multi-level chain that validateDependencies walks without tripping
	// scheduler.CheckCircular.
	s := newTestStore(t)
	a := createTestJob(t, s)
	b, err := s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r", BranchName: "b2", DependsOn: []string{a.ID},
	})
	require.NoError(t, err)

	c, err := s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r", BranchName: "b3", DependsOn: []string{b.ID},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
}

func TestClaimOldest_ReturnsNilWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	job, err := s.ClaimOldest(context.Background(), "default")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestClaimOldest_ClaimsOldestPendingJob(t *testing.T) {
	s := newTestStore(t)
	createTestJob(t, s)

	claimed, err := s.ClaimOldest(context.Background(), "default")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, StatusRunning, claimed.Status)
}

func TestClaimOldest_SkipsWhenWorktreeConflict(t *testing.T) {
	s := newTestStore(t)
	job1 := createTestJob(t, s, func(i *CreateJobInput) {
		i.RepoURL = "shared"
		i.BranchName = "shared-branch"
	})
	createTestJob(t, s, func(i *CreateJobInput) {
		i.RepoURL = "shared"
		i.BranchName = "shared-branch"
	})

	_, err := s.UpdateStatus(context.Background(), job1.ID, StatusRunning, UpdateStatusOpts{
		ExpectedStatuses: []Status{StatusPending},
	})
	require.NoError(t, err)

	claimed, err := s.ClaimOldest(context.Background(), "default")
	require.NoError(t, err)
	assert.Nil(t, claimed, "second job on the same repo/branch must not be claimable while the first runs")
}

func TestClaimOldest_SkipsUndoneDependency(t *testing.T) {
	s := newTestStore(t)
	dep := createTestJob(t, s)
	_, err := s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r2", BranchName: "b2", WorkerType: "default", DependsOn: []string{dep.ID},
	})
	require.NoError(t, err)

	claimed, err := s.ClaimOldest(context.Background(), "default")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, dep.ID, claimed.ID, "only the dependency itself is claimable until it is done")
}

func TestUpdateStatus_StaleStateRejected(t *testing.T) {
	s := newTestStore(t)
	job := createTestJob(t, s)

	_, err := s.UpdateStatus(context.Background(), job.ID, StatusDone, UpdateStatusOpts{
		ExpectedStatuses: []Status{StatusRunning},
	})
	assert.ErrorIs(t, err, apperrors.ErrStaleState)
}

func TestUpdateStatus_CascadesCancelToPendingDependents(t *testing.T) {
	s := newTestStore(t)
	upstream := createTestJob(t, s)
	downstream, err := s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r2", BranchName: "b2", DependsOn: []string{upstream.ID},
	})
	require.NoError(t, err)

	_, err = s.UpdateStatus(context.Background(), upstream.ID, StatusFailed, UpdateStatusOpts{})
	require.NoError(t, err)

	got, err := s.GetJob(context.Background(), downstream.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	require.NotNil(t, got.ResultSummary)
	require.NotNil(t, got.ResultSummary.CancellationCause)
	assert.Equal(t, upstream.ID, got.ResultSummary.CancellationCause.UpstreamJobID)
}

func TestDeleteJob_RefusesProtectedStatus(t *testing.T) {
	s := newTestStore(t)
	job := createTestJob(t, s)
	_, err := s.UpdateStatus(context.Background(), job.ID, StatusRunning, UpdateStatusOpts{
		ExpectedStatuses: []Status{StatusPending},
	})
	require.NoError(t, err)

	err = s.DeleteJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, apperrors.ErrProtectedState)
}

func TestDeleteJob_RefusesWhenDependentsExist(t *testing.T) {
	s := newTestStore(t)
	upstream := createTestJob(t, s)
	_, err := s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r2", BranchName: "b2", DependsOn: []string{upstream.ID},
	})
	require.NoError(t, err)

	err = s.DeleteJob(context.Background(), upstream.ID)
	assert.ErrorIs(t, err, apperrors.ErrDependentExists)
}

func TestDeleteJobs_SkipsDependedOnJobsSilently(t *testing.T) {
	s := newTestStore(t)
	upstream := createTestJob(t, s)
	_, err := s.UpdateStatus(context.Background(), upstream.ID, StatusDone, UpdateStatusOpts{})
	require.NoError(t, err)

	_, err = s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r2", BranchName: "b2", DependsOn: []string{upstream.ID},
	})
	require.NoError(t, err)

	removed, err := s.DeleteJobs(context.Background(), DeleteFilter{})
	require.NoError(t, err)
	assert.Empty(t, removed, "upstream has a pending dependent, so it must be skipped silently")

	_, err = s.GetJob(context.Background(), upstream.ID)
	assert.NoError(t, err, "job must still exist")
}

func TestAppendLog_AndReadLogs_AssignsMonotoneSequence(t *testing.T) {
	s := newTestStore(t)
	job := createTestJob(t, s)

	require.NoError(t, s.AppendLog(context.Background(), job.ID, "stdout", "line 1"))
	require.NoError(t, s.AppendLog(context.Background(), job.ID, "stdout", "line 2"))

	entries, err := s.ReadLogs(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, int64(2), entries[1].Sequence)
	assert.Equal(t, "line 1", entries[0].Text)
}

func TestListDependencies(t *testing.T) {
	s := newTestStore(t)
	upstream := createTestJob(t, s)
	downstream, err := s.CreateJob(context.Background(), CreateJobInput{
		RepoURL: "r2", BranchName: "b2", DependsOn: []string{upstream.ID},
	})
	require.NoError(t, err)

	dependsOn, dependedBy, err := s.ListDependencies(context.Background(), downstream.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{upstream.ID}, dependsOn)
	assert.Empty(t, dependedBy)

	dependsOn, dependedBy, err = s.ListDependencies(context.Background(), upstream.ID)
	require.NoError(t, err)
	assert.Empty(t, dependsOn)
	assert.Equal(t, []string{downstream.ID}, dependedBy)
}

func TestIsWorktreeInUse(t *testing.T) {
	s := newTestStore(t)
	_ = createTestJob(t, s)

	inUse, err := s.IsWorktreeInUse(context.Background(), "/nonexistent", nil)
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestOpen_InvalidPathFails(t *testing.T) {
	_, err := Open(filepath.Join("/nonexistent-dir-xyz", "db.sqlite"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
}
