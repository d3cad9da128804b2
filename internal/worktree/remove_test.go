package worktree

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemove_MissingPathIsNoop(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	err = m.Remove(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
}

func TestRemove_SwallowsNotAGitRepository(t *testing.T) {
	dir := t.TempDir()
	m, err := New(t.TempDir())
	require.NoError(t, err)
	fr := newFakeRunner()
	m.runner = fr
	fr.stub("rev-parse --git-common-dir", "", &notARepoError{})

	err = m.Remove(context.Background(), dir)
	require.NoError(t, err)
}

func TestRemove_InvokesWorktreeRemoveForce(t *testing.T) {
	dir := t.TempDir()
	m, err := New(t.TempDir())
	require.NoError(t, err)
	fr := newFakeRunner()
	m.runner = fr
	fr.stub("rev-parse --git-common-dir", "/cache/repo/.git\n", nil)
	fr.stub("worktree remove --force "+dir, "", nil)

	err = m.Remove(context.Background(), dir)
	require.NoError(t, err)
}

type notARepoError struct{}

func (*notARepoError) Error() string { return "fatal: not a git repository" }
