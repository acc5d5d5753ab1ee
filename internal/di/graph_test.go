package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdi/loom/errors"
)

func TestGraphTopoSort(t *testing.T) {
	g := NewGraph()
	g.AddNode("app", []string{"service"})
	g.AddNode("service", []string{"db"})
	g.AddNode("db", nil)

	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "service", "app"}, order)
}

func TestGraphTopoSortKeepsInsertionOrderForIndependents(t *testing.T) {
	g := NewGraph()
	g.AddNode("c", nil)
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestGraphCycleReportsFullChain(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", []string{"b"})
	g.AddNode("b", []string{"c"})
	g.AddNode("c", []string{"a"})

	_, err := g.TopoSort()
	require.Error(t, err)
	assert.True(t, errors.IsCircularDependency(err))
	assert.Equal(t, []string{"a", "b", "c", "a"}, errors.Chain(err))
}

func TestGraphSelfCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", []string{"a"})

	_, err := g.TopoSort()
	require.Error(t, err)
	assert.Equal(t, []string{"a", "a"}, errors.Chain(err))
}

func TestGraphIgnoresUnknownEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode("svc", []string{"external"})

	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"svc"}, order)

	levels, err := g.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"svc"}}, levels)
}

func TestGraphLevels(t *testing.T) {
	g := NewGraph()
	g.AddNode("db", nil)
	g.AddNode("cache", nil)
	g.AddNode("service", []string{"db"})
	g.AddNode("app", []string{"service", "cache"})

	levels, err := g.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, []string{"db", "cache"}, levels[0])
	assert.Equal(t, []string{"service"}, levels[1])
	assert.Equal(t, []string{"app"}, levels[2])
}

func TestGraphLevelsDetectsCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", []string{"b"})
	g.AddNode("b", []string{"a"})

	_, err := g.Levels()
	require.Error(t, err)
	assert.True(t, errors.IsCircularDependency(err))
}

func TestGraphDependents(t *testing.T) {
	g := NewGraph()
	g.AddNode("db", nil)
	g.AddNode("service", []string{"db"})
	g.AddNode("repo", []string{"db"})
	g.AddNode("app", []string{"service"})

	assert.Equal(t, []string{"service", "repo"}, g.Dependents("db"))
	assert.Empty(t, g.Dependents("app"))
}
