// Package domain holds the orchestration core: structure mapping, test
// discovery, quality assessment, the improvement loop, and audit diffing.
package domain

import (
	"sort"

	m "testforge.dev/pkg/testforge/internal/model"
)

// Graph is the directed dependency graph of code units. Nodes are held in an
// arena and cross-references are index lookups keyed by UnitID, so partial
// resolution and out-of-order insertion across files are safe.
type Graph struct {
	units []*m.CodeUnit
	index map[m.UnitID]int
	edges map[int][]int

	// byName maps bare (unqualified) names to arena indices for best-effort
	// reference resolution.
	byName map[string][]int

	// externals holds referenced names that resolved to no node.
	externals map[string]struct{}
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index:     make(map[m.UnitID]int),
		edges:     make(map[int][]int),
		byName:    make(map[string][]int),
		externals: make(map[string]struct{}),
	}
}

// AddUnit inserts a unit into the arena. Re-adding an existing ID is a no-op
// returning the original node; name+kind is a stable key within a run.
func (g *Graph) AddUnit(unit *m.CodeUnit) *m.CodeUnit {
	if i, ok := g.index[unit.ID]; ok {
		return g.units[i]
	}

	i := len(g.units)
	g.units = append(g.units, unit)
	g.index[unit.ID] = i
	g.byName[bareName(unit.ID.Name)] = append(g.byName[bareName(unit.ID.Name)], i)

	return unit
}

// ResolveEdges walks every unit's recorded dependency names and creates
// edges to units they resolve to. Names with no matching node are recorded
// as external and create no edge.
func (g *Graph) ResolveEdges() {
	for i, unit := range g.units {
		for _, dep := range unit.Dependencies {
			targets, ok := g.byName[bareName(dep)]
			if !ok {
				g.externals[dep] = struct{}{}
				continue
			}

			for _, j := range targets {
				if j != i {
					g.edges[i] = append(g.edges[i], j)
				}
			}
		}
	}
}

// Unit returns the node for an ID, or nil.
func (g *Graph) Unit(id m.UnitID) *m.CodeUnit {
	i, ok := g.index[id]
	if !ok {
		return nil
	}

	return g.units[i]
}

// Units returns all nodes sorted by ID for deterministic iteration.
func (g *Graph) Units() []*m.CodeUnit {
	out := make([]*m.CodeUnit, len(g.units))
	copy(out, g.units)

	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Name != out[j].ID.Name {
			return out[i].ID.Name < out[j].ID.Name
		}

		return out[i].ID.Kind < out[j].ID.Kind
	})

	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.units)
}

// Externals returns referenced names that resolved to no node, sorted.
func (g *Graph) Externals() []string {
	out := make([]string, 0, len(g.externals))
	for name := range g.externals {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

func (g *Graph) dependencies(i int) []int {
	return g.edges[i]
}

// DependenciesOf returns the directly depended-on units of id, in arena
// order.
func (g *Graph) DependenciesOf(id m.UnitID) []*m.CodeUnit {
	i, ok := g.index[id]
	if !ok {
		return nil
	}

	deps := g.dependencies(i)
	out := make([]*m.CodeUnit, 0, len(deps))

	for _, j := range deps {
		out = append(out, g.units[j])
	}

	return out
}

// Reachable returns the units reachable from id over depends-on edges,
// including id itself. Resolution is index-based so cycles terminate.
func (g *Graph) Reachable(id m.UnitID) []*m.CodeUnit {
	start, ok := g.index[id]
	if !ok {
		return nil
	}

	seen := map[int]struct{}{start: {}}
	queue := []int{start}
	var out []*m.CodeUnit

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		out = append(out, g.units[i])

		for _, j := range g.dependencies(i) {
			if _, ok := seen[j]; ok {
				continue
			}

			seen[j] = struct{}{}
			queue = append(queue, j)
		}
	}

	return out
}

// bareName strips any qualifier, returning the final path segment of a
// qualified name such as "pkg.Type.Method".
func bareName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}

	return name
}
