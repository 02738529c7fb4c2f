package gs

import (
	"sort"
	"sync"

	"github.com/nornicorpus/nornicorpus/internal/anno"
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// AdjacencyList is the general-purpose, always-writable graph-storage
// strategy: a map from source node to its sorted successor list. It is the
// fallback chosen for cyclic components, shallow graphs (maxDepth<=1), and
// the only strategy used while a component is still being mutated
// (spec.md §4.3).
//
// Modeled on the teacher's MemoryEngine (pkg/storage/memory.go): an
// RWMutex-guarded map of adjacency lists with a parallel annotation store,
// generalized from Neo4j property-edges to annis Components.
type AdjacencyList struct {
	mu    sync.RWMutex
	out   map[graph.NodeID][]graph.NodeID
	annos *anno.Store[graph.Edge]
	stats *Statistic
}

// NewAdjacencyList returns an empty, writable adjacency-list storage.
func NewAdjacencyList() *AdjacencyList {
	return &AdjacencyList{
		out:   make(map[graph.NodeID][]graph.NodeID),
		annos: anno.NewStore[graph.Edge](),
	}
}

// AddEdge inserts e, keeping the successor list sorted. Self-loops are
// silently discarded per invariant I5.
func (a *AdjacencyList) AddEdge(e graph.Edge) {
	if e.Source == e.Target {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = nil

	succ := a.out[e.Source]
	idx := sort.Search(len(succ), func(i int) bool { return succ[i] >= e.Target })
	if idx < len(succ) && succ[idx] == e.Target {
		return // already present
	}
	succ = append(succ, 0)
	copy(succ[idx+1:], succ[idx:])
	succ[idx] = e.Target
	a.out[e.Source] = succ
}

// AddEdgeAnno attaches an annotation to an existing edge.
func (a *AdjacencyList) AddEdgeAnno(e graph.Edge, ann graph.Annotation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.annos.Add(e, ann)
}

// DeleteEdge removes e and its annotations.
func (a *AdjacencyList) DeleteEdge(e graph.Edge) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = nil

	succ := a.out[e.Source]
	idx := sort.Search(len(succ), func(i int) bool { return succ[i] >= e.Target })
	if idx < len(succ) && succ[idx] == e.Target {
		a.out[e.Source] = append(succ[:idx], succ[idx+1:]...)
		if len(a.out[e.Source]) == 0 {
			delete(a.out, e.Source)
		}
	}
	a.annos.DeleteAll(e)
}

// DeleteNode removes every edge incident to n, in either direction, and
// their annotations.
func (a *AdjacencyList) DeleteNode(n graph.NodeID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = nil

	delete(a.out, n)
	for src, succ := range a.out {
		idx := sort.Search(len(succ), func(i int) bool { return succ[i] >= n })
		if idx < len(succ) && succ[idx] == n {
			e := graph.Edge{Source: src, Target: n}
			a.annos.DeleteAll(e)
			a.out[src] = append(succ[:idx], succ[idx+1:]...)
			if len(a.out[src]) == 0 {
				delete(a.out, src)
			}
		}
	}
}

// DeleteEdgeAnno removes a single annotation key from e.
func (a *AdjacencyList) DeleteEdgeAnno(e graph.Edge, key graph.AnnoKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.annos.Delete(e, key)
}

func (a *AdjacencyList) outEdgesLocked(n graph.NodeID) []graph.NodeID {
	return a.out[n]
}

// OutEdges returns a copy of n's direct successors.
func (a *AdjacencyList) OutEdges(n graph.NodeID) []graph.NodeID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	succ := a.out[n]
	out := make([]graph.NodeID, len(succ))
	copy(out, succ)
	return out
}

// IsConnected reports whether target is reachable from source within
// [min,max] hops, via a raw DFS that returns on the first hit.
func (a *AdjacencyList) IsConnected(e graph.Edge, min, max uint32) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	it := newRawDFS(a.outEdgesLocked, e.Source, min, max)
	for {
		n, ok := it.Next()
		if !ok {
			return false
		}
		if n == e.Target {
			return true
		}
	}
}

// FindConnected returns every node reachable from src within [min,max]
// hops, each emitted once (uniqueDFSIter).
func (a *AdjacencyList) FindConnected(src graph.NodeID, min, max uint32) NodeIterator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return newUniqueDFS(a.outEdgesLocked, src, min, max)
}

// Distance returns the shortest hop count from e.Source to e.Target, via
// breadth-first search (the natural "shortest path" primitive; DFS alone
// does not guarantee shortest, so Distance uses its own BFS rather than
// reusing the DFS variants).
func (a *AdjacencyList) Distance(e graph.Edge) (uint32, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if e.Source == e.Target {
		return 0, true
	}
	visited := map[graph.NodeID]struct{}{e.Source: {}}
	frontier := []graph.NodeID{e.Source}
	depth := uint32(0)
	for len(frontier) > 0 {
		depth++
		var next []graph.NodeID
		for _, n := range frontier {
			for _, c := range a.out[n] {
				if c == e.Target {
					return depth, true
				}
				if _, seen := visited[c]; !seen {
					visited[c] = struct{}{}
					next = append(next, c)
				}
			}
		}
		frontier = next
	}
	return 0, false
}

// EdgeAnnos returns the annotations attached to e.
func (a *AdjacencyList) EdgeAnnos(e graph.Edge) []graph.Annotation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.annos.GetAll(e)
}

// SourceNodeIter iterates every node with at least one outgoing edge.
func (a *AdjacencyList) SourceNodeIter() MatchIterator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sources := make([]graph.NodeID, 0, len(a.out))
	for n := range a.out {
		sources = append(sources, n)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return &sourceMatchIter{sources: sources}
}

type sourceMatchIter struct {
	sources []graph.NodeID
	pos     int
}

func (it *sourceMatchIter) Next() (graph.Match, bool) {
	if it.pos >= len(it.sources) {
		return graph.Match{}, false
	}
	n := it.sources[it.pos]
	it.pos++
	return graph.Match{Node: n}, true
}

// Roots returns every node that is a successor of no other node -- the
// entry points ComputeStatistics and pre/post-order construction walk from.
func (a *AdjacencyList) Roots() []graph.NodeID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	hasIncoming := make(map[graph.NodeID]struct{})
	for _, succ := range a.out {
		for _, t := range succ {
			hasIncoming[t] = struct{}{}
		}
	}
	var roots []graph.NodeID
	for src := range a.out {
		if _, has := hasIncoming[src]; !has {
			roots = append(roots, src)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// NodeSet returns every distinct node participating in this component,
// as source or target.
func (a *AdjacencyList) NodeSet() map[graph.NodeID]struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	set := make(map[graph.NodeID]struct{})
	for src, succ := range a.out {
		set[src] = struct{}{}
		for _, t := range succ {
			set[t] = struct{}{}
		}
	}
	return set
}

// Stats recomputes (and caches) the component's derived statistics.
func (a *AdjacencyList) Stats() Statistic {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stats != nil {
		return *a.stats
	}
	nodes := a.nodeSetLocked()
	roots := a.rootsLocked(nodes)
	s := ComputeStatistics(roots, len(nodes), a.outEdgesLocked)
	a.stats = &s
	return s
}

func (a *AdjacencyList) nodeSetLocked() map[graph.NodeID]struct{} {
	set := make(map[graph.NodeID]struct{})
	for src, succ := range a.out {
		set[src] = struct{}{}
		for _, t := range succ {
			set[t] = struct{}{}
		}
	}
	return set
}

func (a *AdjacencyList) rootsLocked(nodes map[graph.NodeID]struct{}) []graph.NodeID {
	hasIncoming := make(map[graph.NodeID]struct{})
	for _, succ := range a.out {
		for _, t := range succ {
			hasIncoming[t] = struct{}{}
		}
	}
	var roots []graph.NodeID
	for n := range nodes {
		if _, has := hasIncoming[n]; !has {
			roots = append(roots, n)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	if len(roots) == 0 && len(nodes) > 0 {
		// Every node has an incoming edge: there is no true root (a pure
		// cycle, or a cycle reachable from nowhere else). Statistics still
		// need an entry point per node to reach, so fall back to treating
		// every node as its own walk origin -- the cycle-safe DFS will
		// still mark the component cyclic.
		return sortedNodeIDs(nodes)
	}
	return roots
}

func sortedNodeIDs(nodes map[graph.NodeID]struct{}) []graph.NodeID {
	out := make([]graph.NodeID, 0, len(nodes))
	for n := range nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ WritableGS = (*AdjacencyList)(nil)
