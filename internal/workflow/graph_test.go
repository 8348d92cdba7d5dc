package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphRecomputesTransitiveDependentsInOrder(t *testing.T) {
	g := NewGraph()
	var calls []string

	g.Input("TotalMemory")
	require.NoError(t, g.Derive("MaxMemory", func() { calls = append(calls, "MaxMemory") }, "TotalMemory"))
	require.NoError(t, g.Derive("MemoryMessage", func() { calls = append(calls, "MemoryMessage") }, "MaxMemory", "SelectedMemory"))
	require.NoError(t, g.Derive("Summary", func() { calls = append(calls, "Summary") }, "MemoryMessage", "TotalMemory"))

	order := g.Changed("TotalMemory")
	assert.Equal(t, []string{"MaxMemory", "MemoryMessage", "Summary"}, order)
	assert.Equal(t, order, calls)

	calls = nil
	g.Changed("SelectedMemory")
	assert.Equal(t, []string{"MemoryMessage", "Summary"}, calls)
}

func TestGraphRejectsCycles(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Derive("B", nil, "A"))
	require.NoError(t, g.Derive("C", nil, "B"))

	assert.Error(t, g.Derive("A", nil, "C"))
	assert.Error(t, g.Derive("A", nil, "A"))

	assert.Equal(t, []string{"B", "C"}, g.Dependents("A"))
	assert.Empty(t, g.Dependents("C"))
}

func TestGraphRecomputeAll(t *testing.T) {
	g := NewGraph()
	var calls []string
	require.NoError(t, g.Derive("Y", func() { calls = append(calls, "Y") }, "X"))
	require.NoError(t, g.Derive("Z", func() { calls = append(calls, "Z") }, "Y"))

	g.RecomputeAll()
	assert.Equal(t, []string{"Y", "Z"}, calls)
}
