package search

import (
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
)

// NodeByEdgeAnnoSearch enumerates the source nodes of edges matching a
// set of valid edge annotations, once each (via a visited set), then
// emits node annotations through a caller-supplied generator (spec.md
// §4.5). Used by the planner's edge-annotation rewrite pass when
// fetching candidate sources through the edge-annotation index is
// cheaper than the plain node-annotation search it replaces.
type NodeByEdgeAnnoSearch struct {
	storages  []gs.ReadableGS
	validAnno func(graph.Annotation) bool
	genAnno   func(graph.NodeID) (graph.Annotation, bool)
	estimate  int64

	visited map[graph.NodeID]struct{}
	queue    []graph.Match
	pos      int
	co       constOutput
}

// NewNodeByEdgeAnnoSearch constructs the search. validAnno selects which
// edge annotations qualify a source node; genAnno produces the node
// annotation to report for a qualifying node (or false to skip it).
func NewNodeByEdgeAnnoSearch(storages []gs.ReadableGS, validAnno func(graph.Annotation) bool, genAnno func(graph.NodeID) (graph.Annotation, bool), estimate int64) *NodeByEdgeAnnoSearch {
	s := &NodeByEdgeAnnoSearch{storages: storages, validAnno: validAnno, genAnno: genAnno, estimate: estimate}
	s.Reset()
	return s
}

// SetConstantOutput replaces every emitted match's annotation with a,
// deduplicating by node.
func (s *NodeByEdgeAnnoSearch) SetConstantOutput(a graph.Annotation) { s.co.anno, s.co.set = a, true }

func (s *NodeByEdgeAnnoSearch) Reset() {
	s.visited = map[graph.NodeID]struct{}{}
	s.queue = nil
	s.pos = 0
	s.co.reset()

	for _, storage := range s.storages {
		it := storage.SourceNodeIter()
		for {
			m, ok := it.Next()
			if !ok {
				break
			}
			if _, seen := s.visited[m.Node]; seen {
				continue
			}
			if !s.hasMatchingEdgeAnno(storage, m.Node) {
				continue
			}
			s.visited[m.Node] = struct{}{}
			s.queue = append(s.queue, graph.Match{Node: m.Node})
		}
	}
}

func (s *NodeByEdgeAnnoSearch) hasMatchingEdgeAnno(storage gs.ReadableGS, n graph.NodeID) bool {
	for _, tgt := range storage.OutEdges(n) {
		for _, a := range storage.EdgeAnnos(graph.Edge{Source: n, Target: tgt}) {
			if s.validAnno(a) {
				return true
			}
		}
	}
	return false
}

func (s *NodeByEdgeAnnoSearch) Next(m *graph.Match) bool {
	for s.pos < len(s.queue) {
		n := s.queue[s.pos].Node
		s.pos++
		a, ok := s.genAnno(n)
		if !ok {
			continue
		}
		cand := graph.Match{Node: n, Anno: a}
		if s.co.apply(&cand) {
			*m = cand
			return true
		}
	}
	return false
}

// GuessMaxCount returns the caller-supplied cardinality estimate.
func (s *NodeByEdgeAnnoSearch) GuessMaxCount() int64 { return s.estimate }

var (
	_ Search = (*ExactKeySearch)(nil)
	_ Search = (*ExactValueSearch)(nil)
	_ Search = (*RegexValueSearch)(nil)
	_ Search = (*NodeByEdgeAnnoSearch)(nil)
)
