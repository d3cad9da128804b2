package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conductor-oss/conductor/internal/store"
)

func TestRenderPrompt_PlainPromptUnchanged(t *testing.T) {
	got := renderPrompt(store.JobSpec{Prompt: "fix the bug"})
	assert.Equal(t, "fix the bug", got)
}

func TestRenderPrompt_AppendsContextFiles(t *testing.T) {
	got := renderPrompt(store.JobSpec{Prompt: "fix it", ContextFiles: []string{"a.go", "b.go"}})
	assert.Contains(t, got, "fix it")
	assert.Contains(t, got, "- a.go")
	assert.Contains(t, got, "- b.go")
}
