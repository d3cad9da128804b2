package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/conductor-oss/conductor/internal/git"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// deriveBranchName picks a branch name when the submitter supplied
// neither branch_name nor a usable feature_id: a slug of prompt, a
// base-36 timestamp, and an 8-hex random suffix under a fixed prefix.
// When featureID is present and sanitises to something non-empty, it
// takes priority and the branch becomes feature/<sanitised-id>.
func deriveBranchName(prompt, featureID string) (branch, resolvedFeatureID string) {
	if sanitised := git.SanitizeBranchName(featureID); sanitised != "" {
		return "feature/" + sanitised, featureID
	}

	slug := promptSlug(prompt)
	ts := strconv.FormatInt(time.Now().Unix(), 36)
	suffix := randomHex(4)
	return "job/" + slug + "-" + ts + "-" + suffix, ""
}

func promptSlug(prompt string) string {
	s := strings.ToLower(strings.TrimSpace(prompt))
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 32 {
		s = s[:32]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		s = "job"
	}
	return s
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
