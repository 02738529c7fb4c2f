package gs

import (
	"sort"

	"github.com/nornicorpus/nornicorpus/internal/anno"
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// LinearStorage is the read-only strategy for a rooted tree whose every
// node has at most one child (spec.md §4.3): a union of disjoint simple
// chains. Position is the chain depth of a node; connectivity reduces to a
// position subtraction instead of a DFS.
//
// Pos is the fixed-width integer the registry chose to fit max_depth; it
// only affects which Width a built storage reports (NameOf), not actual
// memory layout -- this keeps the registry's narrowest-fit heuristic
// genuinely testable without hand-rolled byte packing obscuring the
// traversal logic it exists to speed up.
type LinearStorage[P UnsignedPos] struct {
	pos      map[graph.NodeID]P
	parent   map[graph.NodeID]graph.NodeID // root of each node's chain
	children map[graph.NodeID]graph.NodeID // at most one; absent = leaf
	annos    *anno.Store[graph.Edge]
	stats    Statistic
	width    Width
}

// BuildLinear constructs a LinearStorage from a finished edge set. edges
// must already satisfy the maxFanOut<=1 rooted-tree precondition;
// BuildLinear does not check it. OptimizeComponent ensures it by choosing
// a Linear width only when Registry.Optimize(src.Stats()) picks one.
func BuildLinear[P UnsignedPos](roots []graph.NodeID, outEdges outEdgesFunc, edgeAnnos func(graph.Edge) []graph.Annotation, width Width) *LinearStorage[P] {
	l := &LinearStorage[P]{
		pos:      make(map[graph.NodeID]P),
		parent:   make(map[graph.NodeID]graph.NodeID),
		children: make(map[graph.NodeID]graph.NodeID),
		annos:    anno.NewStore[graph.Edge](),
		width:    width,
	}

	totalNodes := 0
	for _, root := range roots {
		depth := P(0)
		cur := root
		l.pos[cur] = depth
		totalNodes++
		for {
			children := outEdges(cur)
			if len(children) == 0 {
				break
			}
			next := children[0]
			l.children[cur] = next
			l.parent[next] = root
			for _, a := range edgeAnnos(graph.Edge{Source: cur, Target: next}) {
				l.annos.Add(graph.Edge{Source: cur, Target: next}, a)
			}
			depth++
			l.pos[next] = depth
			totalNodes++
			cur = next
		}
	}

	l.stats = ComputeStatistics(roots, totalNodes, outEdges)
	return l
}

// Width reports which narrow-Pos instantiation this storage represents.
func (l *LinearStorage[P]) Width() Width { return l.width }

func (l *LinearStorage[P]) sameChain(a, b graph.NodeID) bool {
	ra, oka := l.chainRoot(a)
	rb, okb := l.chainRoot(b)
	return oka && okb && ra == rb
}

func (l *LinearStorage[P]) chainRoot(n graph.NodeID) (graph.NodeID, bool) {
	if _, ok := l.pos[n]; !ok {
		return 0, false
	}
	root := n
	for {
		p, ok := l.parent[root]
		if !ok {
			return root, true
		}
		root = p
	}
}

// IsConnected reports reachability using a plain position subtraction: two
// nodes on the same chain with target deeper than (or equal to) source and
// within [min,max] hops.
func (l *LinearStorage[P]) IsConnected(e graph.Edge, min, max uint32) bool {
	if !l.sameChain(e.Source, e.Target) {
		return false
	}
	ps, oks := l.pos[e.Source]
	pt, okt := l.pos[e.Target]
	if !oks || !okt || pt < ps {
		return false
	}
	d := uint32(pt - ps)
	return d >= min && d <= max
}

// FindConnected walks down the chain from src while within [min,max].
func (l *LinearStorage[P]) FindConnected(src graph.NodeID, min, max uint32) NodeIterator {
	var out []graph.NodeID
	cur := src
	depth := uint32(0)
	for {
		next, ok := l.children[cur]
		if !ok {
			break
		}
		depth++
		if depth > max {
			break
		}
		if depth >= min {
			out = append(out, next)
		}
		cur = next
	}
	return newSliceNodeIter(out)
}

// Distance returns the chain-position difference if e.Target descends from
// e.Source.
func (l *LinearStorage[P]) Distance(e graph.Edge) (uint32, bool) {
	if !l.sameChain(e.Source, e.Target) {
		return 0, false
	}
	ps, oks := l.pos[e.Source]
	pt, okt := l.pos[e.Target]
	if !oks || !okt || pt < ps {
		return 0, false
	}
	return uint32(pt - ps), true
}

// OutEdges returns src's single child, if any.
func (l *LinearStorage[P]) OutEdges(src graph.NodeID) []graph.NodeID {
	if c, ok := l.children[src]; ok {
		return []graph.NodeID{c}
	}
	return nil
}

// EdgeAnnos returns the annotations attached to e.
func (l *LinearStorage[P]) EdgeAnnos(e graph.Edge) []graph.Annotation {
	return l.annos.GetAll(e)
}

// SourceNodeIter iterates every node with a child (i.e. every non-leaf).
func (l *LinearStorage[P]) SourceNodeIter() MatchIterator {
	var nodes []graph.NodeID
	for n := range l.children {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return &sourceMatchIter{sources: nodes}
}

// Stats returns the statistics captured at build time; LinearStorage is
// read-only so they never go stale.
func (l *LinearStorage[P]) Stats() Statistic { return l.stats }

var (
	_ ReadableGS = (*LinearStorage[uint8])(nil)
	_ ReadableGS = (*LinearStorage[uint16])(nil)
	_ ReadableGS = (*LinearStorage[uint32])(nil)
)
