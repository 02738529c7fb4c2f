package planner

import (
	"github.com/nornicorpus/nornicorpus/internal/op"
)

// Strategy names the physical join algorithm chosen for a PlanNode
// (spec.md §4.7): the executor dispatches on this field.
type Strategy string

const (
	StrategyBase       Strategy = "base"
	StrategyIndexSeed  Strategy = "index-seed"
	StrategyNestedLoop Strategy = "nested-loop"
	// StrategyCycleFilter applies an extra operator as a filter over an
	// already-joined tuple, when both its variables are already bound
	// within the same component (a non-tree / cyclic query graph edge).
	StrategyCycleFilter Strategy = "cycle-filter"
)

// buildGreedyPlan merges nodes and joins into a single connected plan
// tree, processing joins in the given order and growing components by
// whichever join next touches an existing component (spec.md §4.6's
// greedy-connected construction). Returns ErrDisconnected if more than
// one component remains once every join and variable has been visited.
func buildGreedyPlan(vars map[string]NodeSpec, joins []JoinSpec, operators []op.Operator, order []int, est CardinalityEstimator) (*PlanNode, error) {
	membership := map[string]*PlanNode{}

	leafFor := func(name string) *PlanNode {
		if n, ok := membership[name]; ok {
			return n
		}
		spec := vars[name]
		card := float64(est.EstimateNodeSpec(spec))
		if card < 1 {
			card = 1
		}
		n := &PlanNode{Var: name, Spec: spec, Vars: []string{name}, Cardinality: card, Cost: card}
		membership[name] = n
		return n
	}

	rebind := func(node *PlanNode) {
		for _, v := range node.Vars {
			membership[v] = node
		}
	}

	for _, idx := range order {
		j := joins[idx]
		o := operators[idx]
		lNode := leafFor(j.LeftVar)
		rNode := leafFor(j.RightVar)

		if lNode == rNode {
			// Both variables already in the same component: this join
			// is an extra (cyclic) constraint, applied as a filter.
			lNode.Cost += lNode.Cardinality * nestedLoopJoinConstant
			wrapped := &PlanNode{
				Op: o, JoinSpec: j, Left: lNode,
				Vars:        lNode.Vars,
				Cardinality: lNode.Cardinality * o.Selectivity(),
				Cost:        lNode.Cost,
				Strategy:    StrategyCycleFilter,
			}
			if wrapped.Cardinality < 1 {
				wrapped.Cardinality = 1
			}
			rebind(wrapped)
			continue
		}

		merged := joinNodes(lNode, rNode, o, j)
		rebind(merged)
	}

	// Variables untouched by any join (including the no-join,
	// single-variable case) still need a component of their own before
	// the connectivity check below.
	for name := range vars {
		leafFor(name)
	}

	var root *PlanNode
	seen := map[*PlanNode]bool{}
	for _, n := range membership {
		if seen[n] {
			continue
		}
		seen[n] = true
		if root == nil {
			root = n
			continue
		}
		return nil, ErrDisconnected
	}
	if root == nil {
		return nil, ErrDisconnected
	}
	return root, nil
}

// joinNodes picks the cheaper of an index-seed and a nested-loop join
// between l and r via operator o, and returns the resulting PlanNode
// (spec.md §4.6 cost model).
func joinNodes(l, r *PlanNode, o op.Operator, j JoinSpec) *PlanNode {
	sel := o.Selectivity()
	outCard := l.Cardinality * r.Cardinality * sel
	if outCard < 1 {
		outCard = 1
	}

	nestedCost := l.Cost + r.Cost + l.Cardinality*r.Cardinality*nestedLoopJoinConstant
	indexSeedCost := l.Cost + r.Cost + l.Cardinality*indexSeedJoinConstant

	strategy := StrategyNestedLoop
	cost := nestedCost
	if indexSeedCost < nestedCost {
		strategy = StrategyIndexSeed
		cost = indexSeedCost
	}

	vars := append(append([]string(nil), l.Vars...), r.Vars...)
	return &PlanNode{
		Op: o, JoinSpec: j, Left: l, Right: r,
		Vars:        vars,
		Cardinality: outCard,
		Cost:        cost,
		Strategy:    strategy,
	}
}
