// Package planner implements the query planner of spec.md §4.6: it
// converts a query (node specs + joins) into an execution plan tree,
// running three ordered, individually-disableable rewrite passes before
// searching join orders with a cost model. Whether a join runs in a
// parallel variant is decided later by internal/executor.
package planner

import (
	"errors"
	"fmt"

	"github.com/nornicorpus/nornicorpus/internal/config"
	"github.com/nornicorpus/nornicorpus/internal/op"
)

// ErrDisconnected is returned when the greedy-connected plan
// construction cannot merge every join into a single component.
var ErrDisconnected = errors.New("planner: query is not a single connected component")

// TextMatchMode is the matching mode a NodeSpec's value is compared
// with (spec.md §6 query-plan description).
type TextMatchMode int

const (
	ExactEqual TextMatchMode = iota
	Regexp
	Any
)

// NodeSpec is one query variable's node-search specification.
type NodeSpec struct {
	Namespace string
	Name      string
	Value     string
	Mode      TextMatchMode
	IsRoot    bool
	IsToken   bool

	// EdgeAnnoSeed is set by pass 3 (edge-annotation rewrite) when this
	// spec's matches should be found by walking the edge-annotation
	// index of Join rather than this spec's own node-annotation search
	// (spec.md §4.6). Nil for specs pass 3 left alone.
	EdgeAnnoSeed *EdgeAnnoSeed
}

// EdgeAnnoSeed records which join's edge-annotation filter a NodeSpec
// should be resolved through instead of its own node-annotation search.
type EdgeAnnoSeed struct {
	Join JoinSpec
}

// JoinSpec is one binary operator linking two query variables.
type JoinSpec struct {
	OpName    string
	LeftVar   string
	RightVar  string
	Params    JoinParams
}

// JoinParams carries an edge operator's optional parameters
// (spec.md §6).
type JoinParams struct {
	MinDistance    uint32
	MaxDistance    uint32
	Layer          string
	Name           string
	EdgeAnnotation *op.EdgeAnnoFilter
	Segmentation   string
}

// PlanInput is the external input to the planner: a variable->spec
// mapping plus an ordered list of joins.
type PlanInput struct {
	Variables map[string]NodeSpec
	Joins     []JoinSpec
}

// CardinalityEstimator reports the estimated output cardinality of a
// NodeSpec, used by cost-model base cases. The planner package does not
// itself build searches (that is internal/search's job, wired by the
// executor); it only needs their cost.
type CardinalityEstimator interface {
	EstimateNodeSpec(spec NodeSpec) int64
	// EstimateEdgeAnnoCount reports the estimated number of edges under
	// js's component carrying an annotation matching
	// js.Params.EdgeAnnotation, used by pass 3 to judge whether seeding
	// a search from the edge-annotation index beats the LHS's own
	// node-annotation search. 0 means "no estimate available" (or no
	// filter on js) and pass 3 leaves the spec alone.
	EstimateEdgeAnnoCount(j JoinSpec) int64
}

// OperatorResolver builds the op.Operator for a JoinSpec, so the
// planner can query its Selectivity/IsCommutative/IsReflexive without
// depending on internal/op's construction details directly.
type OperatorResolver interface {
	BuildOperator(js JoinSpec) (op.Operator, error)
}

// PlanNode is one node of the execution tree: either a base search leaf
// (Var != "") or a join (Op != nil).
type PlanNode struct {
	// Var names the bound variable when this is a leaf.
	Var string
	// Spec is the leaf's node-search specification.
	Spec NodeSpec

	// Op, Left, Right are set when this is a join node.
	Op          op.Operator
	JoinSpec    JoinSpec
	Left, Right *PlanNode
	// Strategy is the physical join algorithm the executor should use;
	// unset (empty) for leaves.
	Strategy Strategy

	// Vars lists every variable bound by this subtree, in tuple order.
	Vars []string
	// Cost is this subtree's estimated cost (cardinality + join constant).
	Cost float64
	// Cardinality is this subtree's estimated output row count.
	Cardinality float64
}

const (
	indexSeedJoinConstant  = 1.0
	nestedLoopJoinConstant = 4.0
)

// Plan runs the enabled rewrite passes and the join-order search and
// returns the lowest-cost execution tree
// for input.
func Plan(input PlanInput, cfg config.PlannerConfig, est CardinalityEstimator, ores OperatorResolver) (*PlanNode, error) {
	joins := append([]JoinSpec(nil), input.Joins...)

	if cfg.EnableUnboundRegexRewrite {
		rewriteUnboundRegex(input.Variables)
	}
	operators := make([]op.Operator, len(joins))
	for i, j := range joins {
		o, err := ores.BuildOperator(j)
		if err != nil {
			return nil, fmt.Errorf("planner: build operator for join %d (%s): %w", i, j.OpName, err)
		}
		operators[i] = o
	}
	if cfg.EnableOperandSwap {
		swapOperands(joins, operators, est, input.Variables)
	}
	if cfg.EnableEdgeAnnoRewrite {
		estimateEdgeAnnoRewrite(joins, input.Variables, est)
	}

	order := searchJoinOrder(joins, operators, est, input.Variables, cfg)

	root, err := buildGreedyPlan(input.Variables, joins, operators, order, est)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// rewriteUnboundRegex replaces a Regexp NodeSpec whose value is ".*"
// with the cheaper Any mode, which a base search builder turns into an
// ExactKeySearch (spec.md §4.6 pass 1).
func rewriteUnboundRegex(vars map[string]NodeSpec) {
	for name, spec := range vars {
		if spec.Mode == Regexp && spec.Value == ".*" {
			spec.Mode = Any
			vars[name] = spec
		}
	}
}

// estimateEdgeAnnoRewrite replaces a join's LHS node spec with an
// edge-annotation-seeded search when the join carries an edge
// annotation filter and the edge-annotation index is estimated
// cheaper than the LHS's own node-annotation search (spec.md §4.6 pass
// 3). The rewrite is recorded on the NodeSpec itself via EdgeAnnoSeed,
// so buildGreedyPlan's leaf construction and the search builder wired
// by the executor pick it up without any further plumbing through the
// plan tree.
func estimateEdgeAnnoRewrite(joins []JoinSpec, vars map[string]NodeSpec, est CardinalityEstimator) {
	for _, j := range joins {
		if j.Params.EdgeAnnotation == nil {
			continue
		}
		spec, ok := vars[j.LeftVar]
		if !ok || spec.EdgeAnnoSeed != nil {
			continue
		}
		edgeCost := est.EstimateEdgeAnnoCount(j)
		if edgeCost <= 0 {
			continue
		}
		if edgeCost < est.EstimateNodeSpec(spec) {
			spec.EdgeAnnoSeed = &EdgeAnnoSeed{Join: j}
			vars[j.LeftVar] = spec
		}
	}
}

// swapOperands swaps LHS/RHS of every commutative operator whose LHS
// has a larger cardinality estimate than its RHS (spec.md §4.6 pass 2).
func swapOperands(joins []JoinSpec, operators []op.Operator, est CardinalityEstimator, vars map[string]NodeSpec) {
	for i, o := range joins {
		if !operators[i].IsCommutative() {
			continue
		}
		lhsSpec, lok := vars[o.LeftVar]
		rhsSpec, rok := vars[o.RightVar]
		if !lok || !rok {
			continue
		}
		if est.EstimateNodeSpec(lhsSpec) > est.EstimateNodeSpec(rhsSpec) {
			joins[i].LeftVar, joins[i].RightVar = joins[i].RightVar, joins[i].LeftVar
		}
	}
}
