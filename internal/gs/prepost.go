package gs

import (
	"sort"

	"github.com/nornicorpus/nornicorpus/internal/anno"
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

type prePostEntry[Order UnsignedPos, Level SignedLevel] struct {
	pre, post Order
	level     Level
}

// PrePostOrderStorage is the read-only strategy for rooted trees with
// fan-out > 1 (or acyclic graphs close enough to a tree, dfsVisitRatio <=
// 1.03): an Euler-tour interval per node makes IsConnected an O(1) interval
// containment test instead of a traversal (spec.md §4.3).
//
// Order and Level are the narrowest fixed-width types the registry found
// fit 2*nodes and max_depth respectively; as with LinearStorage this only
// labels the Width a built instance reports.
type PrePostOrderStorage[Order UnsignedPos, Level SignedLevel] struct {
	entries map[graph.NodeID]prePostEntry[Order, Level]
	out     map[graph.NodeID][]graph.NodeID
	annos   *anno.Store[graph.Edge]
	stats   Statistic
	width   Width
}

// BuildPrePostOrder runs the Euler-tour DFS from each root with a
// recursive visit: on entry assign pre=counter++, recurse into every
// child, then on exit assign post=counter++. This inner loop is a raw,
// non-deduplicating traversal -- counters must advance on every visit
// or the pre/post numbering desynchronizes from the tree shape.
func BuildPrePostOrder[Order UnsignedPos, Level SignedLevel](roots []graph.NodeID, outEdges outEdgesFunc, edgeAnnos func(graph.Edge) []graph.Annotation, width Width) *PrePostOrderStorage[Order, Level] {
	p := &PrePostOrderStorage[Order, Level]{
		entries: make(map[graph.NodeID]prePostEntry[Order, Level]),
		out:     make(map[graph.NodeID][]graph.NodeID),
		annos:   anno.NewStore[graph.Edge](),
		width:   width,
	}

	var counter uint64
	var totalNodes int
	var visit func(n graph.NodeID, level Level)
	visit = func(n graph.NodeID, level Level) {
		pre := Order(counter)
		counter++
		totalNodes++

		children := outEdges(n)
		p.out[n] = children
		for _, c := range children {
			for _, a := range edgeAnnos(graph.Edge{Source: n, Target: c}) {
				p.annos.Add(graph.Edge{Source: n, Target: c}, a)
			}
			visit(c, level+1)
		}

		post := Order(counter)
		counter++
		p.entries[n] = prePostEntry[Order, Level]{pre: pre, post: post, level: level}
	}
	for _, r := range roots {
		visit(r, 0)
	}

	p.stats = ComputeStatistics(roots, totalNodes, outEdges)
	return p
}

// Width reports which narrow-(Order,Level) instantiation this storage
// represents.
func (p *PrePostOrderStorage[Order, Level]) Width() Width { return p.width }

// IsConnected implements the interval-containment test: pre(a) <= pre(b) <=
// post(a) and min <= level(b)-level(a) <= max.
func (p *PrePostOrderStorage[Order, Level]) IsConnected(e graph.Edge, min, max uint32) bool {
	a, oka := p.entries[e.Source]
	b, okb := p.entries[e.Target]
	if !oka || !okb {
		return false
	}
	if !(a.pre <= b.pre && b.pre <= a.post) {
		return false
	}
	levelDiff := int64(b.level) - int64(a.level)
	if levelDiff < 0 {
		return false
	}
	return uint32(levelDiff) >= min && uint32(levelDiff) <= max
}

// FindConnected returns every descendant of src within [min,max] levels, by
// scanning nodes whose pre falls within src's interval. This is O(n) per
// call in this reference implementation (a real deployment would keep pre
// order sorted for a binary-search range scan); correctness, not the
// interval scan's asymptotics, is what IsConnected's O(1) check buys.
func (p *PrePostOrderStorage[Order, Level]) FindConnected(src graph.NodeID, min, max uint32) NodeIterator {
	root, ok := p.entries[src]
	if !ok {
		return newSliceNodeIter(nil)
	}
	type cand struct {
		id  graph.NodeID
		pre Order
	}
	var hits []cand
	for n, e := range p.entries {
		if n == src {
			continue
		}
		if e.pre < root.pre || e.pre > root.post {
			continue
		}
		levelDiff := int64(e.level) - int64(root.level)
		if levelDiff < 0 {
			continue
		}
		if uint32(levelDiff) < min || uint32(levelDiff) > max {
			continue
		}
		hits = append(hits, cand{id: n, pre: e.pre})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pre < hits[j].pre })
	out := make([]graph.NodeID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return newSliceNodeIter(out)
}

// Distance returns the level difference if e.Target is a descendant of
// e.Source.
func (p *PrePostOrderStorage[Order, Level]) Distance(e graph.Edge) (uint32, bool) {
	a, oka := p.entries[e.Source]
	b, okb := p.entries[e.Target]
	if !oka || !okb || !(a.pre <= b.pre && b.pre <= a.post) {
		return 0, false
	}
	diff := int64(b.level) - int64(a.level)
	if diff < 0 {
		return 0, false
	}
	return uint32(diff), true
}

// OutEdges returns src's direct children.
func (p *PrePostOrderStorage[Order, Level]) OutEdges(src graph.NodeID) []graph.NodeID {
	out := p.out[src]
	cp := make([]graph.NodeID, len(out))
	copy(cp, out)
	return cp
}

// EdgeAnnos returns the annotations attached to e.
func (p *PrePostOrderStorage[Order, Level]) EdgeAnnos(e graph.Edge) []graph.Annotation {
	return p.annos.GetAll(e)
}

// SourceNodeIter iterates every node with at least one child.
func (p *PrePostOrderStorage[Order, Level]) SourceNodeIter() MatchIterator {
	var nodes []graph.NodeID
	for n, children := range p.out {
		if len(children) > 0 {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return &sourceMatchIter{sources: nodes}
}

// Stats returns the statistics captured at build time.
func (p *PrePostOrderStorage[Order, Level]) Stats() Statistic { return p.stats }

var (
	_ ReadableGS = (*PrePostOrderStorage[uint16, int8])(nil)
	_ ReadableGS = (*PrePostOrderStorage[uint32, int32])(nil)
)
