package op

import (
	"testing"

	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
	"github.com/stretchr/testify/require"
)

// fakeResolver is a minimal Resolver backed directly by gs.AdjacencyList
// instances, enough to exercise the operator algebra without pulling in
// the full corpus graph.
type fakeResolver struct {
	byType map[graph.ComponentType]*gs.AdjacencyList
	left   map[graph.NodeID]graph.NodeID
	right  map[graph.NodeID]graph.NodeID
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		byType: map[graph.ComponentType]*gs.AdjacencyList{},
		left:   map[graph.NodeID]graph.NodeID{},
		right:  map[graph.NodeID]graph.NodeID{},
	}
}

func (f *fakeResolver) component(t graph.ComponentType) *gs.AdjacencyList {
	a, ok := f.byType[t]
	if !ok {
		a = gs.NewAdjacencyList()
		f.byType[t] = a
	}
	return a
}

func (f *fakeResolver) ComponentsOfType(t graph.ComponentType, layer, name string) ([]gs.ReadableGS, error) {
	if a, ok := f.byType[t]; ok {
		return []gs.ReadableGS{a}, nil
	}
	return nil, nil
}

func (f *fakeResolver) LeftToken(n graph.NodeID) (graph.NodeID, bool) {
	if lt, ok := f.left[n]; ok {
		return lt, true
	}
	return n, true // tokens are their own boundary
}

func (f *fakeResolver) RightToken(n graph.NodeID) (graph.NodeID, bool) {
	if rt, ok := f.right[n]; ok {
		return rt, true
	}
	return n, true
}

func (f *fakeResolver) EdgeAnnoMatches(storages []gs.ReadableGS, e graph.Edge, filter EdgeAnnoFilter) bool {
	for _, s := range storages {
		if len(s.EdgeAnnos(e)) > 0 {
			return true
		}
	}
	return false
}

func (f *fakeResolver) TotalEdgeAnnos() int64 { return 1 }
func (f *fakeResolver) GuessEdgeAnnoCount(filter EdgeAnnoFilter) int64 { return 1 }

func TestDominanceRetrieveMatches(t *testing.T) {
	r := newFakeResolver()
	r.component(graph.Dominance).AddEdge(graph.Edge{Source: 1, Target: 2})
	r.component(graph.Dominance).AddEdge(graph.Edge{Source: 2, Target: 3})

	d := Dominance(r, "", "", graph.DistanceRange{Min: 1, Max: graph.DistanceUnbounded}, nil)
	matches, err := d.RetrieveMatches(graph.Match{Node: 1})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.False(t, d.IsCommutative())
	require.True(t, d.IsReflexive())
}

func TestPrecedenceAnyDistanceOpenQuestion(t *testing.T) {
	r := newFakeResolver()
	r.component(graph.Ordering).AddEdge(graph.Edge{Source: 1, Target: 2})
	r.component(graph.Ordering).AddEdge(graph.Edge{Source: 2, Target: 3})

	// min=0,max=0 is documented (spec.md §9) to mean "any distance", not
	// "distance exactly zero".
	p := Precedence(r, "", graph.DistanceRange{Min: 0, Max: 0})
	ok, err := p.Filter(graph.Match{Node: 1}, graph.Match{Node: 3})
	require.NoError(t, err)
	require.True(t, ok, "min=0,max=0 must behave as unbounded precedence")
}

func TestPrecedenceExplicitBoundsAreRespected(t *testing.T) {
	r := newFakeResolver()
	r.component(graph.Ordering).AddEdge(graph.Edge{Source: 1, Target: 2})
	r.component(graph.Ordering).AddEdge(graph.Edge{Source: 2, Target: 3})

	p := Precedence(r, "", graph.DistanceRange{Min: 1, Max: 1})
	ok, err := p.Filter(graph.Match{Node: 1}, graph.Match{Node: 3})
	require.NoError(t, err)
	require.False(t, ok, "node 3 is two steps from node 1, outside [1,1]")
}

func TestOverlapSelfCoverageDoubleCountPreserved(t *testing.T) {
	r := newFakeResolver()
	cov := r.component(graph.Coverage)
	cov.AddEdge(graph.Edge{Source: 10, Target: 1}) // span 10 covers token 1
	r.left[10] = 1
	r.right[10] = 1
	r.component(graph.Ordering) // empty ordering: left==right so tokenOrder trivially true

	ov := NewOverlap(r)
	// A span overlapping itself is not specially excluded by Filter --
	// this is the legacy double-counting behavior spec.md §9 preserves.
	ok, err := ov.Filter(graph.Match{Node: 10}, graph.Match{Node: 10})
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, ov.IsReflexive())
}

func TestIdentityBindsSameNode(t *testing.T) {
	id := NewIdentity()
	ok, err := id.Filter(graph.Match{Node: 5}, graph.Match{Node: 5})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = id.Filter(graph.Match{Node: 5}, graph.Match{Node: 6})
	require.NoError(t, err)
	require.False(t, ok)
}
