package executor

import (
	"testing"

	"github.com/nornicorpus/nornicorpus/internal/anno"
	"github.com/nornicorpus/nornicorpus/internal/config"
	"github.com/nornicorpus/nornicorpus/internal/dict"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
	"github.com/nornicorpus/nornicorpus/internal/op"
	"github.com/nornicorpus/nornicorpus/internal/planner"
	"github.com/nornicorpus/nornicorpus/internal/search"
	"github.com/stretchr/testify/require"
)

// stubResolver is a minimal op.Resolver backed by a single
// AdjacencyList component, local to this package to avoid a test-only
// import cycle with internal/op.
type stubResolver struct{ dom *gs.AdjacencyList }

func (r stubResolver) ComponentsOfType(t graph.ComponentType, layer, name string) ([]gs.ReadableGS, error) {
	if t == graph.Dominance {
		return []gs.ReadableGS{r.dom}, nil
	}
	return nil, nil
}
func (r stubResolver) LeftToken(n graph.NodeID) (graph.NodeID, bool)  { return n, true }
func (r stubResolver) RightToken(n graph.NodeID) (graph.NodeID, bool) { return n, true }
func (r stubResolver) EdgeAnnoMatches(storages []gs.ReadableGS, e graph.Edge, filter op.EdgeAnnoFilter) bool {
	return false
}
func (r stubResolver) TotalEdgeAnnos() int64                            { return 0 }
func (r stubResolver) GuessEdgeAnnoCount(filter op.EdgeAnnoFilter) int64 { return 0 }

// fixture builds two key-only (cat=NP / cat=VP) node sets linked by a
// single dominance edge: node 1 (NP) dominates node 2 (VP).
type fixture struct {
	store    *anno.Store[graph.NodeID]
	d        *dict.Dictionary
	key      graph.AnnoKey
	vNP, vVP graph.StringID
	resolver stubResolver
}

func newFixture() *fixture {
	d := dict.New()
	key := graph.AnnoKey{Name: graph.StringID(d.Add("cat"))}
	vNP := graph.StringID(d.Add("NP"))
	vVP := graph.StringID(d.Add("VP"))

	store := anno.NewStore[graph.NodeID]()
	store.Add(graph.NodeID(1), graph.Annotation{Key: key, Value: vNP})
	store.Add(graph.NodeID(2), graph.Annotation{Key: key, Value: vVP})
	store.Add(graph.NodeID(3), graph.Annotation{Key: key, Value: vNP})

	dom := gs.NewAdjacencyList()
	dom.AddEdge(graph.Edge{Source: 1, Target: 2})

	return &fixture{store: store, d: d, key: key, vNP: vNP, vVP: vVP, resolver: stubResolver{dom: dom}}
}

func (f *fixture) searchFor(value graph.StringID) search.Search {
	return search.NewExactValueSearch(f.store, f.d, f.key, value, false)
}

// fakeSearchBuilder dispatches on NodeSpec.Value, the only field this
// test's fixture varies.
type fakeSearchBuilder struct{ f *fixture }

func (b fakeSearchBuilder) BuildSearch(spec planner.NodeSpec) (search.Search, error) {
	switch spec.Value {
	case "NP":
		return b.f.searchFor(b.f.vNP), nil
	case "VP":
		return b.f.searchFor(b.f.vVP), nil
	default:
		return search.NewExactKeySearch(b.f.store, b.f.key), nil
	}
}

func TestBaseIteratorEmitsLeafMatches(t *testing.T) {
	f := newFixture()
	it := NewBaseIterator("a", f.searchFor(f.vNP))
	require.Equal(t, []string{"a"}, it.Vars())

	var nodes []graph.NodeID
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		nodes = append(nodes, tup[0].Node)
	}
	require.ElementsMatch(t, []graph.NodeID{1, 3}, nodes)
}

func TestReflexivityFilterDropsSameNode(t *testing.T) {
	base := &fixedIterator{
		vars: []string{"a", "b"},
		tuples: []Tuple{
			{{Node: 1}, {Node: 1}},
			{{Node: 1}, {Node: 2}},
		},
	}
	filtered := NewReflexivityFilter(base, "a", "b", false)
	var got []Tuple
	for {
		tup, ok := filtered.Next()
		if !ok {
			break
		}
		got = append(got, tup)
	}
	require.Len(t, got, 1)
	require.Equal(t, graph.NodeID(2), got[0][1].Node)
}

func TestIndexSeedJoinDominance(t *testing.T) {
	f := newFixture()
	dominance := op.Dominance(f.resolver, "", "", graph.DistanceRange{Min: 1, Max: 1}, nil)

	left := NewBaseIterator("a", f.searchFor(f.vNP))
	rightSet := map[graph.NodeID]graph.Annotation{2: {Key: f.key, Value: f.vVP}}

	joined := NewIndexSeedJoin(left, "a", "b", dominance, rightSet)
	filtered := NewReflexivityFilter(joined, "a", "b", dominance.IsReflexive())

	var tuples []Tuple
	for {
		tup, ok := filtered.Next()
		if !ok {
			break
		}
		tuples = append(tuples, tup)
	}
	require.Len(t, tuples, 1)
	require.Equal(t, graph.NodeID(1), tuples[0][0].Node)
	require.Equal(t, graph.NodeID(2), tuples[0][1].Node)
}

func TestParallelIndexSeedJoinMatchesSequential(t *testing.T) {
	f := newFixture()
	dominance := op.Dominance(f.resolver, "", "", graph.DistanceRange{Min: 1, Max: 1}, nil)

	left := NewBaseIterator("a", f.searchFor(f.vNP))
	rightSet := map[graph.NodeID]graph.Annotation{2: {Key: f.key, Value: f.vVP}}

	joined := NewParallelIndexSeedJoin(left, "a", "b", dominance, rightSet, 4, 8)
	filtered := NewReflexivityFilter(joined, "a", "b", dominance.IsReflexive())

	var tuples []Tuple
	for {
		tup, ok := filtered.Next()
		if !ok {
			break
		}
		tuples = append(tuples, tup)
	}
	require.Len(t, tuples, 1)
	require.Equal(t, graph.NodeID(1), tuples[0][0].Node)
	require.Equal(t, graph.NodeID(2), tuples[0][1].Node)
}

func TestNestedLoopJoinDominance(t *testing.T) {
	f := newFixture()
	dominance := op.Dominance(f.resolver, "", "", graph.DistanceRange{Min: 1, Max: 1}, nil)

	left := NewBaseIterator("a", f.searchFor(f.vNP))
	right := NewBaseIterator("b", f.searchFor(f.vVP))

	joined := NewNestedLoopJoin(left, right, "a", "b", dominance)

	var tuples []Tuple
	for {
		tup, ok := joined.Next()
		if !ok {
			break
		}
		tuples = append(tuples, tup)
	}
	require.Len(t, tuples, 1)
	require.Equal(t, graph.NodeID(1), tuples[0][0].Node)
	require.Equal(t, graph.NodeID(2), tuples[0][1].Node)
}

func TestParallelNestedLoopJoinMatchesSequential(t *testing.T) {
	f := newFixture()
	dominance := op.Dominance(f.resolver, "", "", graph.DistanceRange{Min: 1, Max: 1}, nil)

	left := NewBaseIterator("a", f.searchFor(f.vNP))
	right := NewBaseIterator("b", f.searchFor(f.vVP))
	joined := NewParallelNestedLoopJoin(left, right, "a", "b", dominance, 4, 8)

	var tuples []Tuple
	for {
		tup, ok := joined.Next()
		if !ok {
			break
		}
		tuples = append(tuples, tup)
	}
	require.Len(t, tuples, 1)
	require.Equal(t, graph.NodeID(1), tuples[0][0].Node)
	require.Equal(t, graph.NodeID(2), tuples[0][1].Node)
}

func TestBuildFromPlanTree(t *testing.T) {
	f := newFixture()
	dominance := op.Dominance(f.resolver, "", "", graph.DistanceRange{Min: 1, Max: 1}, nil)

	leafA := &planner.PlanNode{Var: "a", Spec: planner.NodeSpec{Value: "NP"}, Vars: []string{"a"}}
	leafB := &planner.PlanNode{Var: "b", Spec: planner.NodeSpec{Value: "VP"}, Vars: []string{"b"}}
	root := &planner.PlanNode{
		Op:       dominance,
		JoinSpec: planner.JoinSpec{LeftVar: "a", RightVar: "b"},
		Left:     leafA, Right: leafB,
		Strategy: planner.StrategyIndexSeed,
		Vars:     []string{"a", "b"},
	}

	it, err := Build(root, fakeSearchBuilder{f: f}, config.ExecutorConfig{NumBackgroundTasks: 0, QueueCapacity: 8})
	require.NoError(t, err)

	var tuples []Tuple
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		tuples = append(tuples, tup)
	}
	require.Len(t, tuples, 1)
	require.Equal(t, graph.NodeID(1), tuples[0][0].Node)
	require.Equal(t, graph.NodeID(2), tuples[0][1].Node)
}

func TestBuildFromPlanTreeParallelIndexSeed(t *testing.T) {
	f := newFixture()
	dominance := op.Dominance(f.resolver, "", "", graph.DistanceRange{Min: 1, Max: 1}, nil)

	leafA := &planner.PlanNode{Var: "a", Spec: planner.NodeSpec{Value: "NP"}, Vars: []string{"a"}}
	leafB := &planner.PlanNode{Var: "b", Spec: planner.NodeSpec{Value: "VP"}, Vars: []string{"b"}}
	root := &planner.PlanNode{
		Op:       dominance,
		JoinSpec: planner.JoinSpec{LeftVar: "a", RightVar: "b"},
		Left:     leafA, Right: leafB,
		Strategy: planner.StrategyIndexSeed,
		Vars:     []string{"a", "b"},
	}

	it, err := Build(root, fakeSearchBuilder{f: f}, config.ExecutorConfig{NumBackgroundTasks: 4, QueueCapacity: 8})
	require.NoError(t, err)

	var tuples []Tuple
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		tuples = append(tuples, tup)
	}
	require.Len(t, tuples, 1)
	require.Equal(t, graph.NodeID(1), tuples[0][0].Node)
	require.Equal(t, graph.NodeID(2), tuples[0][1].Node)
}

// fixedIterator replays a canned tuple slice, for tests that don't need
// a real search behind it.
type fixedIterator struct {
	vars   []string
	tuples []Tuple
	pos    int
}

func (f *fixedIterator) Next() (Tuple, bool) {
	if f.pos >= len(f.tuples) {
		return nil, false
	}
	t := f.tuples[f.pos]
	f.pos++
	return t, true
}

func (f *fixedIterator) Vars() []string { return f.vars }
