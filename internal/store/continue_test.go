package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-oss/conductor/internal/apperrors"
)

func markFailedWithSession(t *testing.T, s *Store, jobID, sessionID string) {
	t.Helper()
	sid := sessionID
	_, err := s.UpdateStatus(context.Background(), jobID, StatusFailed, UpdateStatusOpts{SessionID: &sid})
	require.NoError(t, err)
}

func TestContinue_RejectsJobWithoutSession(t *testing.T) {
	s := newTestStore(t)
	job := createTestJob(t, s)
	_, err := s.UpdateStatus(context.Background(), job.ID, StatusFailed, UpdateStatusOpts{})
	require.NoError(t, err)

	_, err = s.Continue(context.Background(), job.ID, "keep going", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestContinue_RejectsPendingJob(t *testing.T) {
	s := newTestStore(t)
	job := createTestJob(t, s)

	_, err := s.Continue(context.Background(), job.ID, "keep going", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestContinue_SucceedsOnFailedJobWithSession(t *testing.T) {
	s := newTestStore(t)
	job := createTestJob(t, s)
	markFailedWithSession(t, s, job.ID, "sess-1")

	updated, err := s.Continue(context.Background(), job.ID, "keep going", false)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
	require.NotNil(t, updated.ResultSummary)
	assert.Equal(t, "keep going", updated.ResultSummary.ContinuePrompt)
	require.Len(t, updated.ResultSummary.Continuations, 1)
}

func TestContinue_RejectsTimedOutJobWithoutForceResume(t *testing.T) {
	s := newTestStore(t)
	job := createTestJob(t, s)
	sid := "sess-1"
	_, err := s.UpdateStatus(context.Background(), job.ID, StatusFailed, UpdateStatusOpts{
		SessionID:     &sid,
		ResultSummary: &ResultSummary{TimedOut: true},
	})
	require.NoError(t, err)

	_, err = s.Continue(context.Background(), job.ID, "keep going", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	updated, err := s.Continue(context.Background(), job.ID, "", true)
	require.NoError(t, err)
	assert.True(t, updated.ResumeRequested)
	assert.Equal(t, StatusPending, updated.Status)
}
