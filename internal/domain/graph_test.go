package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "testforge.dev/pkg/testforge/internal/model"
)

func unitID(name string, kind m.UnitKind) m.UnitID {
	return m.UnitID{Name: name, Kind: kind}
}

func TestGraphAddUnitIsIdempotent(t *testing.T) {
	g := NewGraph()

	first := g.AddUnit(&m.CodeUnit{ID: unitID("pkg.Parse", m.UnitFunction), Complexity: 3})
	second := g.AddUnit(&m.CodeUnit{ID: unitID("pkg.Parse", m.UnitFunction), Complexity: 99})

	assert.Same(t, first, second)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 3, g.Unit(unitID("pkg.Parse", m.UnitFunction)).Complexity)
}

func TestGraphResolveEdges(t *testing.T) {
	g := NewGraph()
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.Parse", m.UnitFunction), Dependencies: []string{"tokenize", "fmt.Errorf"}})
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.tokenize", m.UnitFunction)})

	g.ResolveEdges()

	deps := g.DependenciesOf(unitID("pkg.Parse", m.UnitFunction))
	require.Len(t, deps, 1)
	assert.Equal(t, "pkg.tokenize", deps[0].ID.Name)

	assert.Equal(t, []string{"fmt.Errorf"}, g.Externals())
}

func TestGraphResolveEdgesSkipsSelfReference(t *testing.T) {
	g := NewGraph()
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.walk", m.UnitFunction), Dependencies: []string{"walk"}})

	g.ResolveEdges()

	assert.Empty(t, g.DependenciesOf(unitID("pkg.walk", m.UnitFunction)))
}

func TestGraphReachableIncludesSelfAndTerminatesOnCycles(t *testing.T) {
	g := NewGraph()
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.a", m.UnitFunction), Dependencies: []string{"b"}})
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.b", m.UnitFunction), Dependencies: []string{"c"}})
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.c", m.UnitFunction), Dependencies: []string{"a"}})
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.isolated", m.UnitFunction)})

	g.ResolveEdges()

	reachable := g.Reachable(unitID("pkg.a", m.UnitFunction))
	require.Len(t, reachable, 3)

	names := make([]string, 0, len(reachable))
	for _, unit := range reachable {
		names = append(names, unit.ID.Name)
	}

	assert.ElementsMatch(t, []string{"pkg.a", "pkg.b", "pkg.c"}, names)
}

func TestGraphReachableUnknownID(t *testing.T) {
	g := NewGraph()

	assert.Nil(t, g.Reachable(unitID("pkg.missing", m.UnitFunction)))
}

func TestGraphUnitsSortedDeterministically(t *testing.T) {
	g := NewGraph()
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.zeta", m.UnitFunction)})
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.alpha", m.UnitFunction)})
	g.AddUnit(&m.CodeUnit{ID: unitID("pkg.mid", m.UnitClass)})

	units := g.Units()
	require.Len(t, units, 3)
	assert.Equal(t, "pkg.alpha", units[0].ID.Name)
	assert.Equal(t, "pkg.mid", units[1].ID.Name)
	assert.Equal(t, "pkg.zeta", units[2].ID.Name)
}

func TestBareName(t *testing.T) {
	assert.Equal(t, "Method", bareName("pkg.Type.Method"))
	assert.Equal(t, "Parse", bareName("pkg.Parse"))
	assert.Equal(t, "plain", bareName("plain"))
}
