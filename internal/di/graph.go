package di

import (
	"github.com/loomdi/loom/errors"
)

// Graph is a directed dependency graph used both for component ordering
// within a context and for context ordering across a module build.
type Graph struct {
	nodes map[string][]string
	// order preserves insertion order so nodes without dependencies keep
	// FIFO semantics in the computed orders.
	order []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string][]string)}
}

// AddNode adds a node with its dependencies. Edges to unknown nodes are
// ignored during traversal (they belong to another context's graph).
func (g *Graph) AddNode(name string, dependencies []string) {
	if _, exists := g.nodes[name]; !exists {
		g.order = append(g.order, name)
	}
	g.nodes[name] = dependencies
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// TopoSort returns the nodes in dependency order: every dependency appears
// before its dependent. A cycle is reported with its full offending chain.
func (g *Graph) TopoSort() ([]string, error) {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	result := make([]string, 0, len(g.nodes))

	for _, name := range g.order {
		if err := g.visit(name, visited, visiting, nil, &result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (g *Graph) visit(name string, visited, visiting map[string]bool, path []string, result *[]string) error {
	if visited[name] {
		return nil
	}
	if visiting[name] {
		// Report the chain from the first occurrence of the repeated node.
		start := 0
		for i, n := range path {
			if n == name {
				start = i
				break
			}
		}
		chain := append(append([]string{}, path[start:]...), name)
		return errors.ErrCircularDependency(chain)
	}

	deps, known := g.nodes[name]
	if !known {
		return nil
	}

	visiting[name] = true
	path = append(path, name)

	for _, dep := range deps {
		if err := g.visit(dep, visited, visiting, path, result); err != nil {
			return err
		}
	}

	visiting[name] = false
	visited[name] = true
	*result = append(*result, name)
	return nil
}

// Levels groups nodes into topological levels: every node's dependencies
// live in strictly earlier levels, so nodes within one level are mutually
// independent and may be processed concurrently.
func (g *Graph) Levels() ([][]string, error) {
	// Run the DFS first so cycles surface with a full chain.
	if _, err := g.TopoSort(); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(g.nodes))
	for _, name := range g.order {
		indegree[name] = 0
	}
	for _, name := range g.order {
		for _, dep := range g.nodes[name] {
			if _, known := g.nodes[dep]; known {
				indegree[name]++
			}
		}
	}

	remaining := make(map[string]bool, len(g.nodes))
	for _, name := range g.order {
		remaining[name] = true
	}

	var levels [][]string
	for len(remaining) > 0 {
		var level []string
		for _, name := range g.order {
			if remaining[name] && indegree[name] == 0 {
				level = append(level, name)
			}
		}
		for _, name := range level {
			delete(remaining, name)
		}
		for _, name := range g.order {
			if !remaining[name] {
				continue
			}
			for _, dep := range g.nodes[name] {
				for _, done := range level {
					if dep == done {
						indegree[name]--
					}
				}
			}
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// Dependents returns the nodes that depend on the given node.
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, n := range g.order {
		for _, dep := range g.nodes[n] {
			if dep == name {
				out = append(out, n)
				break
			}
		}
	}
	return out
}
