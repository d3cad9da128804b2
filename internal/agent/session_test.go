package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSessionID_FromSnakeCaseKey(t *testing.T) {
	stdout := "some log line\n{\"session_id\": \"sess-abc\"}\nmore output\n"
	assert.Equal(t, "sess-abc", extractSessionID(stdout))
}

func TestExtractSessionID_FromCamelCaseKey(t *testing.T) {
	stdout := `{"sessionId": "sess-xyz"}`
	assert.Equal(t, "sess-xyz", extractSessionID(stdout))
}

func TestExtractSessionID_NoJSONLineReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", extractSessionID("plain text output only"))
}

func TestSessionIDFromFilename_ExtractsTrailingUUID(t *testing.T) {
	name := "rollout-20260730T101500-1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed.jsonl"
	assert.Equal(t, "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed", sessionIDFromFilename(name))
}

func TestFindSessionFile_PicksMostRecentlyModifiedMatchingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	start := time.Now()
	dayDir := filepath.Join(home, ".myagent", "sessions",
		start.UTC().Format("2006"), start.UTC().Format("01"), start.UTC().Format("02"))
	require.NoError(t, os.MkdirAll(dayDir, 0o755))

	older := filepath.Join(dayDir, "rollout-1-11111111-1111-1111-1111-111111111111.jsonl")
	newer := filepath.Join(dayDir, "rollout-2-22222222-2222-2222-2222-222222222222.jsonl")
	require.NoError(t, os.WriteFile(older, []byte("{}"), 0o644))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(newer, []byte("{}"), 0o644))

	got := findSessionFile("myagent", start.Add(-time.Minute))
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", got)
}

func TestFindSessionFile_IgnoresFilesModifiedBeforeStart(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	start := time.Now()
	dayDir := filepath.Join(home, ".myagent", "sessions",
		start.UTC().Format("2006"), start.UTC().Format("01"), start.UTC().Format("02"))
	require.NoError(t, os.MkdirAll(dayDir, 0o755))

	stale := filepath.Join(dayDir, "rollout-1-11111111-1111-1111-1111-111111111111.jsonl")
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))

	got := findSessionFile("myagent", start.Add(time.Hour))
	assert.Equal(t, "", got)
}
