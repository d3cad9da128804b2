package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// extractSessionID scans captured stdout for a JSON line carrying
// session_id or sessionId. It falls back to nothing if none is found —
// callers then try findSessionFile.
func extractSessionID(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] != '{' {
			continue
		}
		var probe map[string]any
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			continue
		}
		if v, ok := probe["session_id"].(string); ok && v != "" {
			return v
		}
		if v, ok := probe["sessionId"].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// findSessionFile falls back to scanning the agent's own rollout session
// files under ~/.<cliName>/sessions/YYYY/MM/DD/rollout-*-<uuid>.jsonl for
// the most recently modified file created at or after start. Both start's
// UTC date and the preceding day are scanned, to cover runs crossing
// midnight.
func findSessionFile(cliName string, start time.Time) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	startUTC := start.UTC()
	dates := []time.Time{startUTC, startUTC.AddDate(0, 0, -1)}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var best *candidate

	for _, d := range dates {
		dir := filepath.Join(home, "."+cliName, "sessions",
			d.Format("2006"), d.Format("01"), d.Format("02"))
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, "rollout-") || !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().Before(start) {
				continue
			}
			if best == nil || info.ModTime().After(best.modTime) {
				best = &candidate{path: filepath.Join(dir, name), modTime: info.ModTime()}
			}
		}
	}

	if best == nil {
		return ""
	}
	return sessionIDFromFilename(best.path)
}

// sessionIDFromFilename extracts the <uuid> suffix from
// rollout-<timestamp>-<uuid>.jsonl. A standard UUID has 5 hyphen-separated
// segments, so the last 5 segments of the filename (minus extension) are
// rejoined to recover it regardless of the timestamp's own format.
func sessionIDFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	parts := strings.Split(base, "-")
	const uuidSegments = 5
	if len(parts) < uuidSegments {
		return ""
	}
	return strings.Join(parts[len(parts)-uuidSegments:], "-")
}
