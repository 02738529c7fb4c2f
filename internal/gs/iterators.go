package gs

import "github.com/nornicorpus/nornicorpus/internal/graph"

// NodeIterator is a pull-based iterator over NodeIDs, the shape every
// graph-storage FindConnected and source-node walk returns.
type NodeIterator interface {
	// Next advances the iterator and reports whether a value was produced.
	Next() (graph.NodeID, bool)
}

// MatchIterator is a pull-based iterator over Matches, used by
// SourceNodeIter.
type MatchIterator interface {
	Next() (graph.Match, bool)
}

// sliceNodeIter adapts a pre-computed slice to NodeIterator.
type sliceNodeIter struct {
	items []graph.NodeID
	pos   int
}

func newSliceNodeIter(items []graph.NodeID) *sliceNodeIter {
	return &sliceNodeIter{items: items}
}

func (it *sliceNodeIter) Next() (graph.NodeID, bool) {
	if it.pos >= len(it.items) {
		return 0, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}

// outEdgesFunc returns the direct successors of a node, the one primitive
// every DFS variant below is built from.
type outEdgesFunc func(graph.NodeID) []graph.NodeID

// dfsFrame is one stack entry for the explicit-stack DFS variants.
type dfsFrame struct {
	node  graph.NodeID
	depth uint32
}

// rawDFSIter performs a depth-first walk honoring (min,max) distance
// bounds, emitting every node at every depth it is reached at -- including
// repeats, if the graph allows multiple paths to the same node. It backs
// AdjacencyList.IsConnected and uniqueDFSIter. Pre/post-order construction
// does its own recursive walk under the same rule: its per-visit counting
// must not be deduplicated, or pre/post counters would desynchronize from
// actual visitation order (see SPEC_FULL.md's gs module on the three DFS
// variants).
type rawDFSIter struct {
	outEdges outEdgesFunc
	min, max uint32
	stack    []dfsFrame
}

func newRawDFS(outEdges outEdgesFunc, root graph.NodeID, min, max uint32) *rawDFSIter {
	return &rawDFSIter{
		outEdges: outEdges,
		min:      min,
		max:      max,
		stack:    []dfsFrame{{node: root, depth: 0}},
	}
}

func (it *rawDFSIter) Next() (graph.NodeID, bool) {
	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]

		if top.depth < it.max {
			for _, child := range it.outEdges(top.node) {
				it.stack = append(it.stack, dfsFrame{node: child, depth: top.depth + 1})
			}
		}

		if top.depth > 0 && top.depth >= it.min && top.depth <= it.max {
			return top.node, true
		}
	}
	return 0, false
}

// uniqueDFSIter wraps rawDFSIter with a seen-set so every node is emitted at
// most once, the at-most-one-result-per-node contract adjacency-list's
// FindConnected must satisfy.
type uniqueDFSIter struct {
	raw  *rawDFSIter
	seen map[graph.NodeID]struct{}
}

func newUniqueDFS(outEdges outEdgesFunc, root graph.NodeID, min, max uint32) *uniqueDFSIter {
	return &uniqueDFSIter{raw: newRawDFS(outEdges, root, min, max), seen: make(map[graph.NodeID]struct{})}
}

func (it *uniqueDFSIter) Next() (graph.NodeID, bool) {
	for {
		n, ok := it.raw.Next()
		if !ok {
			return 0, false
		}
		if _, dup := it.seen[n]; dup {
			continue
		}
		it.seen[n] = struct{}{}
		return n, true
	}
}

// CycleResult reports the outcome of one cycle-safe DFS walk.
type CycleResult struct {
	Visits  int
	Nodes   map[graph.NodeID]struct{}
	Cyclic  bool
	MaxFan  uint32
	FanSum  uint64
	FanSamp []uint32
	MaxDep  uint32
}

// cycleSafeDFS walks the graph from root maintaining the current path as a
// set; re-entering a node already on the path marks the walk cyclic and
// prunes that branch rather than looping forever. Used by
// ComputeStatistics, which needs accurate cyclicity detection -- a
// responsibility neither rawDFSIter (would spin forever on a real cycle)
// nor uniqueDFSIter (dedups globally, not just along the path) satisfies.
func cycleSafeDFS(outEdges outEdgesFunc, root graph.NodeID, res *CycleResult) {
	onPath := make(map[graph.NodeID]struct{})
	var walk func(n graph.NodeID, depth uint32)
	walk = func(n graph.NodeID, depth uint32) {
		if _, cyc := onPath[n]; cyc {
			res.Cyclic = true
			return
		}
		onPath[n] = struct{}{}
		res.Visits++
		res.Nodes[n] = struct{}{}
		if depth > res.MaxDep {
			res.MaxDep = depth
		}

		children := outEdges(n)
		fan := uint32(len(children))
		if fan > res.MaxFan {
			res.MaxFan = fan
		}
		res.FanSum += uint64(fan)
		res.FanSamp = append(res.FanSamp, fan)

		for _, c := range children {
			walk(c, depth+1)
		}
		delete(onPath, n)
	}
	walk(root, 0)
}
