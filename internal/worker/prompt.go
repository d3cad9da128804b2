package worker

import (
	"fmt"
	"strings"

	"github.com/conductor-oss/conductor/internal/store"
)

// renderPrompt builds the text handed to the agent CLI from a job's spec.
func renderPrompt(spec store.JobSpec) string {
	if len(spec.ContextFiles) == 0 {
		return spec.Prompt
	}
	var b strings.Builder
	b.WriteString(spec.Prompt)
	b.WriteString("\n\nRelevant files:\n")
	for _, f := range spec.ContextFiles {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}
