package executor

import (
	"fmt"

	"github.com/nornicorpus/nornicorpus/internal/config"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/planner"
	"github.com/nornicorpus/nornicorpus/internal/search"
)

// SearchBuilder constructs the leaf annotation search for a planner
// NodeSpec, decoupling internal/executor from internal/search's
// concrete constructors the way internal/op.Resolver decouples the
// operator algebra from internal/corpusgraph.
type SearchBuilder interface {
	BuildSearch(spec planner.NodeSpec) (search.Search, error)
}

// Build turns a planner.PlanNode tree into an Iterator tree, choosing
// the physical join algorithm from node.Strategy and falling back to a
// nested-loop join when an index-seed join is not structurally
// possible (spec.md §4.7): index-seed requires the right subtree to be
// a single bound variable, since its candidates are seeded through the
// operator's index keyed by node identity, not by an arbitrary tuple.
func Build(node *planner.PlanNode, sb SearchBuilder, cfg config.ExecutorConfig) (Iterator, error) {
	if node == nil {
		return nil, fmt.Errorf("executor: nil plan node")
	}

	if node.Var != "" {
		s, err := sb.BuildSearch(node.Spec)
		if err != nil {
			return nil, fmt.Errorf("executor: build search for %q: %w", node.Var, err)
		}
		return NewBaseIterator(node.Var, s), nil
	}

	if node.Strategy == planner.StrategyCycleFilter {
		left, err := Build(node.Left, sb, cfg)
		if err != nil {
			return nil, err
		}
		return NewSelfFilter(left, node.JoinSpec.LeftVar, node.JoinSpec.RightVar, node.Op), nil
	}

	left, err := Build(node.Left, sb, cfg)
	if err != nil {
		return nil, err
	}

	if node.Strategy == planner.StrategyIndexSeed && node.Right.Var != "" {
		rightSet, err := materializeLeaf(node.Right, sb)
		if err != nil {
			return nil, err
		}
		var joined Iterator
		if cfg.NumBackgroundTasks >= 2 {
			joined = NewParallelIndexSeedJoin(left, node.JoinSpec.LeftVar, node.JoinSpec.RightVar, node.Op, rightSet, cfg.NumBackgroundTasks, cfg.QueueCapacity)
		} else {
			joined = NewIndexSeedJoin(left, node.JoinSpec.LeftVar, node.JoinSpec.RightVar, node.Op, rightSet)
		}
		return NewReflexivityFilter(joined, node.JoinSpec.LeftVar, node.JoinSpec.RightVar, node.Op.IsReflexive()), nil
	}

	right, err := Build(node.Right, sb, cfg)
	if err != nil {
		return nil, err
	}

	var joined Iterator
	if cfg.NumBackgroundTasks >= 2 {
		joined = NewParallelNestedLoopJoin(left, right, node.JoinSpec.LeftVar, node.JoinSpec.RightVar, node.Op, cfg.NumBackgroundTasks, cfg.QueueCapacity)
	} else {
		joined = NewNestedLoopJoin(left, right, node.JoinSpec.LeftVar, node.JoinSpec.RightVar, node.Op)
	}
	return NewReflexivityFilter(joined, node.JoinSpec.LeftVar, node.JoinSpec.RightVar, node.Op.IsReflexive()), nil
}

// materializeLeaf runs a single-variable leaf's search to completion,
// keyed by node identity, for use as an index-seed join's right-hand
// side.
func materializeLeaf(leaf *planner.PlanNode, sb SearchBuilder) (map[graph.NodeID]graph.Annotation, error) {
	s, err := sb.BuildSearch(leaf.Spec)
	if err != nil {
		return nil, fmt.Errorf("executor: build search for %q: %w", leaf.Var, err)
	}
	out := map[graph.NodeID]graph.Annotation{}
	var m graph.Match
	for s.Next(&m) {
		out[m.Node] = m.Anno
	}
	return out, nil
}
