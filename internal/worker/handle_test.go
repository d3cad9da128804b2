package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-oss/conductor/internal/agent"
	"github.com/conductor-oss/conductor/internal/eventbus"
	"github.com/conductor-oss/conductor/internal/store"
	"github.com/conductor-oss/conductor/internal/worktree"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeAgentScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newHandlerFor(t *testing.T, agentScript string) (*handler, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	wm, err := worktree.New(t.TempDir())
	require.NoError(t, err)
	bus := eventbus.New()
	pool := New(Config{WorkerType: "default"}, s, wm, agent.New(agentScript), bus)
	return &handler{pool: pool}, s
}

func TestHandleJob_NoWorktree_SuccessMarksDone(t *testing.T) {
	script := writeAgentScript(t, "cat >/dev/null\nexit 0\n")
	h, s := newHandlerFor(t, script)

	job, err := s.CreateJob(context.Background(), store.CreateJobInput{
		RepoURL: t.TempDir(), BranchName: "b1", UseWorktree: false,
		Spec: store.JobSpec{Prompt: "do it"},
	})
	require.NoError(t, err)
	_, err = s.UpdateStatus(context.Background(), job.ID, store.StatusRunning, store.UpdateStatusOpts{
		ExpectedStatuses: []store.Status{store.StatusPending},
	})
	require.NoError(t, err)
	job, err = s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)

	require.NoError(t, h.HandleJob(context.Background(), job))

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, got.Status)
}

func TestHandleJob_NoWorktree_NonZeroExitMarksFailed(t *testing.T) {
	script := writeAgentScript(t, "cat >/dev/null\nexit 1\n")
	h, s := newHandlerFor(t, script)

	job, err := s.CreateJob(context.Background(), store.CreateJobInput{
		RepoURL: t.TempDir(), BranchName: "b1",
		Spec: store.JobSpec{Prompt: "do it"},
	})
	require.NoError(t, err)
	_, err = s.UpdateStatus(context.Background(), job.ID, store.StatusRunning, store.UpdateStatusOpts{
		ExpectedStatuses: []store.Status{store.StatusPending},
	})
	require.NoError(t, err)
	job, _ = s.GetJob(context.Background(), job.ID)

	require.NoError(t, h.HandleJob(context.Background(), job))

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
	require.NotNil(t, got.ResultSummary)
	assert.NotEmpty(t, got.ResultSummary.Error)
}

func TestHandleJob_AwaitingInput_KeepsSessionAndDoesNotError(t *testing.T) {
	script := writeAgentScript(t, `cat >/dev/null
echo 'awaiting further instructions' >&2
exit 1
`)
	h, s := newHandlerFor(t, script)

	job, err := s.CreateJob(context.Background(), store.CreateJobInput{
		RepoURL: t.TempDir(), BranchName: "b1",
		Spec: store.JobSpec{Prompt: "do it"},
	})
	require.NoError(t, err)
	_, err = s.UpdateStatus(context.Background(), job.ID, store.StatusRunning, store.UpdateStatusOpts{
		ExpectedStatuses: []store.Status{store.StatusPending},
	})
	require.NoError(t, err)
	job, _ = s.GetJob(context.Background(), job.ID)

	require.NoError(t, h.HandleJob(context.Background(), job))

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusAwaitingInput, got.Status)
}

func TestHandleJob_PublishesUpdateEvent(t *testing.T) {
	script := writeAgentScript(t, "cat >/dev/null\nexit 0\n")
	s := newTestStore(t)
	wm, err := worktree.New(t.TempDir())
	require.NoError(t, err)
	bus := eventbus.New()

	var received []eventbus.Event
	bus.Subscribe(func(e eventbus.Event) { received = append(received, e) })

	pool := New(Config{WorkerType: "default"}, s, wm, agent.New(script), bus)
	h := &handler{pool: pool}

	job, err := s.CreateJob(context.Background(), store.CreateJobInput{
		RepoURL: t.TempDir(), BranchName: "b1", Spec: store.JobSpec{Prompt: "x"},
	})
	require.NoError(t, err)
	_, err = s.UpdateStatus(context.Background(), job.ID, store.StatusRunning, store.UpdateStatusOpts{
		ExpectedStatuses: []store.Status{store.StatusPending},
	})
	require.NoError(t, err)
	job, _ = s.GetJob(context.Background(), job.ID)

	require.NoError(t, h.HandleJob(context.Background(), job))
	require.Len(t, received, 1)
	assert.Equal(t, eventbus.JobUpdated, received[0].Type)
}
