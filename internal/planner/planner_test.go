package planner

import (
	"testing"

	"github.com/nornicorpus/nornicorpus/internal/config"
	"github.com/nornicorpus/nornicorpus/internal/dict"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
	"github.com/nornicorpus/nornicorpus/internal/op"
	"github.com/stretchr/testify/require"
)

// constEstimator reports a fixed cardinality per NodeSpec annotation
// name (spec.Name), set up by the test.
type constEstimator map[string]int64

func (c constEstimator) EstimateNodeSpec(spec NodeSpec) int64 {
	if n, ok := c[spec.Name]; ok {
		return n
	}
	return 100
}

// EstimateEdgeAnnoCount has no fixture-driven edge-annotation counts;
// returning 0 means pass 3 never fires in tests that don't set it up
// explicitly.
func (c constEstimator) EstimateEdgeAnnoCount(j JoinSpec) int64 {
	return 0
}

// directResolver builds real op.Dominance/Precedence operators over
// AdjacencyList components, reusing the op package's own test double
// pattern but kept local to avoid an import cycle with internal/op's
// test file.
type directResolver struct {
	byType map[graph.ComponentType]*gs.AdjacencyList
}

func newDirectResolver() *directResolver {
	return &directResolver{byType: map[graph.ComponentType]*gs.AdjacencyList{}}
}

func (r *directResolver) component(t graph.ComponentType) *gs.AdjacencyList {
	a, ok := r.byType[t]
	if !ok {
		a = gs.NewAdjacencyList()
		r.byType[t] = a
	}
	return a
}

func (r *directResolver) ComponentsOfType(t graph.ComponentType, layer, name string) ([]gs.ReadableGS, error) {
	if a, ok := r.byType[t]; ok {
		return []gs.ReadableGS{a}, nil
	}
	return nil, nil
}
func (r *directResolver) LeftToken(n graph.NodeID) (graph.NodeID, bool)  { return n, true }
func (r *directResolver) RightToken(n graph.NodeID) (graph.NodeID, bool) { return n, true }
func (r *directResolver) EdgeAnnoMatches(storages []gs.ReadableGS, e graph.Edge, filter op.EdgeAnnoFilter) bool {
	return false
}
func (r *directResolver) TotalEdgeAnnos() int64                            { return 0 }
func (r *directResolver) GuessEdgeAnnoCount(filter op.EdgeAnnoFilter) int64 { return 0 }

type directOperatorResolver struct{ r *directResolver }

func (o directOperatorResolver) BuildOperator(js JoinSpec) (op.Operator, error) {
	switch js.OpName {
	case "dominance":
		return op.Dominance(o.r, js.Params.Layer, js.Params.Name, graph.DistanceRange{Min: 1, Max: graph.DistanceUnbounded}, nil), nil
	case "precedence":
		return op.Precedence(o.r, "", graph.DistanceRange{Min: 1, Max: 1}), nil
	default:
		return op.NewIdentity(), nil
	}
}

func testCfg() config.PlannerConfig {
	return config.PlannerConfig{
		EnableUnboundRegexRewrite: true,
		EnableOperandSwap:         true,
		ExhaustiveOrderThreshold:  6,
		HillClimbRejectFactor:     5,
		HillClimbOffspring:        4,
	}
}

func TestPlanTwoVariableDominanceJoin(t *testing.T) {
	r := newDirectResolver()
	r.component(graph.Dominance).AddEdge(graph.Edge{Source: 1, Target: 2})

	input := PlanInput{
		Variables: map[string]NodeSpec{
			"a": {Name: "cat", Value: "NP", Mode: ExactEqual},
			"b": {Name: "cat", Value: "N", Mode: ExactEqual},
		},
		Joins: []JoinSpec{
			{OpName: "dominance", LeftVar: "a", RightVar: "b"},
		},
	}
	root, err := Plan(input, testCfg(), constEstimator{"cat": 10}, directOperatorResolver{r})
	require.NoError(t, err)
	require.NotNil(t, root)
	require.ElementsMatch(t, []string{"a", "b"}, root.Vars)
}

func TestPlanDisconnectedQueryErrors(t *testing.T) {
	input := PlanInput{
		Variables: map[string]NodeSpec{
			"a": {Name: "cat"},
			"b": {Name: "cat"},
		},
		// no joins linking a and b
	}
	_, err := Plan(input, testCfg(), constEstimator{}, directOperatorResolver{newDirectResolver()})
	require.ErrorIs(t, err, ErrDisconnected)
}

func TestPlanSingleVariableNoJoins(t *testing.T) {
	input := PlanInput{
		Variables: map[string]NodeSpec{"a": {Name: "cat"}},
	}
	root, err := Plan(input, testCfg(), constEstimator{}, directOperatorResolver{newDirectResolver()})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, root.Vars)
}

func TestUnboundRegexRewrite(t *testing.T) {
	vars := map[string]NodeSpec{
		"a": {Name: "cat", Mode: Regexp, Value: ".*"},
	}
	rewriteUnboundRegex(vars)
	require.Equal(t, Any, vars["a"].Mode)
}

func TestOperandSwapPrefersSmallerLHS(t *testing.T) {
	joins := []JoinSpec{{OpName: "dominance", LeftVar: "big", RightVar: "small"}}
	r := newDirectResolver()
	r.component(graph.Dominance).AddEdge(graph.Edge{Source: 1, Target: 2})
	operators := []op.Operator{op.Dominance(r, "", "", graph.DistanceRange{Min: 1, Max: graph.DistanceUnbounded}, nil)}
	vars := map[string]NodeSpec{
		"big":   {Name: "big"},
		"small": {Name: "small"},
	}
	est := constEstimator{"big": 1000, "small": 5}
	swapOperands(joins, operators, est, vars)
	require.Equal(t, "small", joins[0].LeftVar)
	require.Equal(t, "big", joins[0].RightVar)
}

// edgeAnnoEstimator layers a fixed edge-annotation count on top of
// constEstimator, for tests exercising pass 3.
type edgeAnnoEstimator struct {
	constEstimator
	edgeCount int64
}

func (e edgeAnnoEstimator) EstimateEdgeAnnoCount(j JoinSpec) int64 {
	return e.edgeCount
}

func TestEdgeAnnoRewriteSeedsCheaperIndex(t *testing.T) {
	joins := []JoinSpec{{
		OpName:   "dominance",
		LeftVar:  "a",
		RightVar: "b",
		Params:   JoinParams{EdgeAnnotation: &op.EdgeAnnoFilter{Name: "func", Value: "SB"}},
	}}
	vars := map[string]NodeSpec{
		"a": {Name: "cat", Value: "NP"},
		"b": {Name: "cat", Value: "N"},
	}
	est := edgeAnnoEstimator{constEstimator: constEstimator{"cat": 1000}, edgeCount: 5}

	estimateEdgeAnnoRewrite(joins, vars, est)

	require.NotNil(t, vars["a"].EdgeAnnoSeed)
	require.Equal(t, joins[0], vars["a"].EdgeAnnoSeed.Join)
	require.Nil(t, vars["b"].EdgeAnnoSeed)
}

func TestEdgeAnnoRewriteSkipsWhenIndexNotCheaper(t *testing.T) {
	joins := []JoinSpec{{
		OpName:   "dominance",
		LeftVar:  "a",
		RightVar: "b",
		Params:   JoinParams{EdgeAnnotation: &op.EdgeAnnoFilter{Name: "func", Value: "SB"}},
	}}
	vars := map[string]NodeSpec{
		"a": {Name: "cat", Value: "NP"},
		"b": {Name: "cat", Value: "N"},
	}
	est := edgeAnnoEstimator{constEstimator: constEstimator{"cat": 10}, edgeCount: 1000}

	estimateEdgeAnnoRewrite(joins, vars, est)

	require.Nil(t, vars["a"].EdgeAnnoSeed)
}

func TestFrequencyGroupsAndSortsByCount(t *testing.T) {
	d := dict.New()
	key := graph.AnnoKey{Name: graph.StringID(d.Add("pos"))}
	vNN := graph.StringID(d.Add("NN"))
	vVB := graph.StringID(d.Add("VB"))

	rows := []ResultTuple{
		{"a": {Anno: graph.Annotation{Key: key, Value: vNN}}},
		{"a": {Anno: graph.Annotation{Key: key, Value: vNN}}},
		{"a": {Anno: graph.Annotation{Key: key, Value: vVB}}},
	}
	table, err := Frequency(rows, []FrequencyDef{{Var: "a", Key: key}}, d)
	require.NoError(t, err)
	require.Len(t, table, 2)
	require.Equal(t, "NN", table[0].Values[0])
	require.EqualValues(t, 2, table[0].Count)
}
