package gs

import (
	"sort"

	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// Statistic is the derived per-component metrics used by the planner's
// selectivity estimators and the registry's strategy heuristic (spec.md
// §4.3/§4.6). Valid is false when the component is empty or statistics
// have not been computed, in which case every other field must be treated
// as unusable (estimators degrade to their worst-case default).
type Statistic struct {
	Valid              bool
	Nodes              uint64
	AvgFanOut          float64
	MaxFanOut          uint32
	MaxDepth           uint32
	Cyclic             bool
	RootedTree         bool
	DFSVisitRatio      float64
	Fanout99Percentile uint32
}

// ComputeStatistics walks every root (a node with no incoming edge within
// this component) with the cycle-safe DFS variant and aggregates nodes,
// fan-out, depth, cyclicity, and the dfsVisitRatio = visits/nodes used to
// decide whether an "almost tree" still qualifies for pre/post-order
// storage (spec.md §4.3).
func ComputeStatistics(roots []graph.NodeID, totalNodes int, outEdges outEdgesFunc) Statistic {
	if totalNodes == 0 {
		return Statistic{Valid: false}
	}

	res := &CycleResult{Nodes: make(map[graph.NodeID]struct{})}
	for _, r := range roots {
		cycleSafeDFS(outEdges, r, res)
	}

	// A true rooted tree visits every node exactly once from its roots: any
	// repeat visit means some node has more than one parent (a DAG merge
	// point), which breaks the one-interval-per-node assumption pre/post
	// order construction relies on.
	rooted := len(roots) > 0 && res.Visits == totalNodes && len(res.Nodes) == totalNodes && !res.Cyclic

	var fanSum uint64
	var maxFan uint32
	for _, f := range res.FanSamp {
		fanSum += uint64(f)
		if f > maxFan {
			maxFan = f
		}
	}
	avgFan := 0.0
	if len(res.FanSamp) > 0 {
		avgFan = float64(fanSum) / float64(len(res.FanSamp))
	}

	return Statistic{
		Valid:              true,
		Nodes:              uint64(totalNodes),
		AvgFanOut:          avgFan,
		MaxFanOut:          maxFan,
		MaxDepth:           res.MaxDep,
		Cyclic:             res.Cyclic,
		RootedTree:         rooted,
		DFSVisitRatio:      float64(res.Visits) / float64(totalNodes),
		Fanout99Percentile: percentile99(res.FanSamp),
	}
}

func percentile99(samples []uint32) uint32 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]uint32(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted))*0.99) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
