package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCircular_NoCycle(t *testing.T) {
	existing := map[string][]string{
		"b": {"a"},
	}
	newEdges := map[string][]string{
		"c": {"b"},
	}
	assert.False(t, CheckCircular(existing, newEdges, "c"))
}

func TestCheckCircular_DirectCycle(t *testing.T) {
	existing := map[string][]string{
		"a": {"b"},
	}
	newEdges := map[string][]string{
		"b": {"a"},
	}
	assert.True(t, CheckCircular(existing, newEdges, "b"))
}

func TestCheckCircular_TransitiveCycle(t *testing.T) {
	existing := map[string][]string{
		"a": {"b"},
		"b": {"c"},
	}
	newEdges := map[string][]string{
		"c": {"a"},
	}
	assert.True(t, CheckCircular(existing, newEdges, "c"))
}

func TestCheckCircular_SelfDependency(t *testing.T) {
	newEdges := map[string][]string{
		"a": {"a"},
	}
	assert.True(t, CheckCircular(nil, newEdges, "a"))
}
