package git

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// ValidateBranchName checks if a branch name is valid for git
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}

	if strings.HasPrefix(name, "refs/") {
		return fmt.Errorf("branch name cannot start with 'refs/'")
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}

	if strings.Contains(name, " ") {
		return fmt.Errorf("branch name cannot contain spaces")
	}

	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}

	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("branch name cannot end with '.'")
	}

	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("branch name cannot end with '.lock'")
	}

	return nil
}

// SanitizeBranchName converts a string to a valid branch name component
func SanitizeBranchName(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")

	dotsRegex := regexp.MustCompile(`\.\.+`)
	s = dotsRegex.ReplaceAllString(s, "-")
	s = strings.ReplaceAll(s, ".", "-")

	validCharsRegex := regexp.MustCompile(`[^a-z0-9-]+`)
	s = validCharsRegex.ReplaceAllString(s, "-")

	hyphensRegex := regexp.MustCompile(`-+`)
	s = hyphensRegex.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// randomSuffix generates a random 6-character alphanumeric suffix, used
// when deriving a branch name needs disambiguation beyond a job id.
func randomSuffix() string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 6)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))]
	}
	return string(b)
}

// DeriveBranchName builds a branch name for a job from its id, following
// the same prefix+slug+suffix shape as the rest of the job's derived names.
func DeriveBranchName(prefix, jobID string) (string, error) {
	name := fmt.Sprintf("%s%s-%s", prefix, SanitizeBranchName(jobID), randomSuffix())
	if err := ValidateBranchName(name); err != nil {
		return "", fmt.Errorf("derived invalid branch name: %w", err)
	}
	return name, nil
}
