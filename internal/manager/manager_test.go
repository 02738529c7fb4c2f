package manager

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nornicorpus/nornicorpus/internal/config"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/op"
	"github.com/nornicorpus/nornicorpus/internal/planner"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Manager: config.ManagerConfig{
			DataDir:    t.TempDir(),
			ByteBudget: 1 << 20,
		},
		Planner: config.PlannerConfig{
			EnableUnboundRegexRewrite: true,
			EnableOperandSwap:         true,
			EnableEdgeAnnoRewrite:     true,
			EnableParallelization:     false,
			ExhaustiveOrderThreshold:  6,
			HillClimbRejectFactor:     5,
			HillClimbOffspring:        4,
		},
		Executor: config.ExecutorConfig{
			NumBackgroundTasks: 0,
			QueueCapacity:      8,
		},
	}
}

func addNodeScript(names ...string) *Script {
	var events []Event
	for _, n := range names {
		events = append(events, Event{Kind: EventAddNode, Name: n, Type: string(graph.NodeTypeNode)})
	}
	return NewScript(events)
}

func TestApplyUpdateAddsNodesAndPersists(t *testing.T) {
	m, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.ApplyUpdate("tiger", addNodeScript("tok1", "tok2")))

	c, err := m.getCorpus("tiger")
	require.NoError(t, err)
	require.Equal(t, 2, c.NodeCount())

	id, ok := c.NodeIDByName("tok1")
	require.True(t, ok)
	_ = id
}

func TestApplyUpdateSecondCallLoadsPersistedState(t *testing.T) {
	m, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.ApplyUpdate("tiger", addNodeScript("tok1")))

	l := m.loaderFor("tiger")
	l.writerMu.Lock()
	w := l.writer
	l.writerMu.Unlock()
	if w != nil {
		w.join()
	}

	require.NoError(t, m.ApplyUpdate("tiger", addNodeScript("tok2")))

	c, err := m.getCorpus("tiger")
	require.NoError(t, err)
	require.Equal(t, 2, c.NodeCount())
}

func TestCountReturnsZeroForEmptyCorpus(t *testing.T) {
	m, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.ApplyUpdate("tiger", addNodeScript("tok1")))

	n, err := m.Count("tiger", planner.PlanInput{
		Variables: map[string]planner.NodeSpec{
			"a": {Namespace: graph.AnnisNS, Name: graph.NodeNameLabel, Value: "does-not-exist", Mode: planner.ExactEqual},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestCountFindsMatchingNode(t *testing.T) {
	m, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.ApplyUpdate("tiger", addNodeScript("tok1", "tok2")))

	n, err := m.Count("tiger", planner.PlanInput{
		Variables: map[string]planner.NodeSpec{
			"a": {Namespace: graph.AnnisNS, Name: graph.NodeNameLabel, Value: "tok1", Mode: planner.ExactEqual},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestCountMultiSumsAcrossCorpora(t *testing.T) {
	m, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.ApplyUpdate("a-corpus", addNodeScript("tok1")))
	require.NoError(t, m.ApplyUpdate("b-corpus", addNodeScript("tok1", "tok2")))

	n, err := m.CountMulti([]string{"b-corpus", "a-corpus"}, planner.PlanInput{
		Variables: map[string]planner.NodeSpec{
			"a": {Namespace: graph.AnnisNS, Name: graph.NodeTypeLabel, Value: string(graph.NodeTypeNode), Mode: planner.ExactEqual},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

// TestResolverBuildsEdgeAnnoSeedSearch exercises the search.go wiring
// a pass-3 rewrite relies on: given a NodeSpec carrying an EdgeAnnoSeed,
// buildSearch must reach its matches through the seed join's edge-
// annotation index rather than its own node-annotation search, and
// still only emit nodes that also satisfy the spec's own filter.
func TestResolverBuildsEdgeAnnoSeedSearch(t *testing.T) {
	m, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer m.Close()

	events := []Event{
		{Kind: EventAddNode, Name: "root1", Type: string(graph.NodeTypeNode)},
		{Kind: EventAddNode, Name: "root2", Type: string(graph.NodeTypeNode)},
		{Kind: EventAddNode, Name: "child", Type: string(graph.NodeTypeNode)},
		{Kind: EventAddNodeLabel, Name: "root1", NS: "tiger", Label: "cat", Value: "S"},
		{Kind: EventAddNodeLabel, Name: "root2", NS: "tiger", Label: "cat", Value: "S"},
		{Kind: EventAddNodeLabel, Name: "child", NS: "tiger", Label: "cat", Value: "NP"},
		{Kind: EventAddEdge, SrcName: "root1", TgtName: "child", ComponentType: graph.Dominance, ComponentName: "edge"},
		{Kind: EventAddEdgeLabel, SrcName: "root1", TgtName: "child", ComponentType: graph.Dominance, ComponentName: "edge", NS: "tiger", Label: "func", Value: "HD"},
	}
	require.NoError(t, m.ApplyUpdate("tiger", NewScript(events)))

	c, err := m.getCorpus("tiger")
	require.NoError(t, err)
	r := newCorpusResolver(c)

	join := planner.JoinSpec{
		OpName:   "Dominance",
		LeftVar:  "a",
		RightVar: "b",
		Params: planner.JoinParams{
			Name:           "edge",
			EdgeAnnotation: &op.EdgeAnnoFilter{Namespace: "tiger", Name: "func", Value: "HD"},
		},
	}
	require.EqualValues(t, 1, r.EstimateEdgeAnnoCount(join))

	spec := planner.NodeSpec{
		Namespace:    "tiger",
		Name:         "cat",
		Value:        "S",
		Mode:         planner.ExactEqual,
		EdgeAnnoSeed: &planner.EdgeAnnoSeed{Join: join},
	}
	s, err := r.BuildSearch(spec)
	require.NoError(t, err)

	root1ID, ok := c.NodeIDByName("root1")
	require.True(t, ok)
	root2ID, ok := c.NodeIDByName("root2")
	require.True(t, ok)

	var found []graph.NodeID
	var match graph.Match
	for s.Next(&match) {
		found = append(found, match.Node)
	}
	require.Equal(t, []graph.NodeID{root1ID}, found)
	require.NotContains(t, found, root2ID)
}

func TestFindRespectsOffsetAndLimit(t *testing.T) {
	m, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.ApplyUpdate("tiger", addNodeScript("tok1", "tok2", "tok3")))

	out, err := m.Find("tiger", planner.PlanInput{
		Variables: map[string]planner.NodeSpec{
			"a": {Namespace: graph.AnnisNS, Name: graph.NodeTypeLabel, Value: string(graph.NodeTypeNode), Mode: planner.ExactEqual},
		},
	}, 1, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
}
