package gs

import "github.com/nornicorpus/nornicorpus/internal/graph"

// ReadableGS is the common read interface every graph-storage strategy
// implements, regardless of whether it backs a writable component
// (spec.md §4.3).
type ReadableGS interface {
	// IsConnected reports whether target is reachable from source within
	// [min,max] steps.
	IsConnected(e graph.Edge, min, max uint32) bool

	// FindConnected returns every node reachable from src within
	// [min,max] steps, each emitted at most once.
	FindConnected(src graph.NodeID, min, max uint32) NodeIterator

	// Distance returns the shortest path length for e, if source and
	// target are connected at all.
	Distance(e graph.Edge) (uint32, bool)

	// OutEdges returns the direct successors of src.
	OutEdges(src graph.NodeID) []graph.NodeID

	// EdgeAnnos returns the annotations attached to e.
	EdgeAnnos(e graph.Edge) []graph.Annotation

	// SourceNodeIter iterates every node that has at least one outgoing
	// edge in this component.
	SourceNodeIter() MatchIterator

	// Stats returns the component's derived statistics, recomputing them
	// if stale.
	Stats() Statistic
}

// WritableGS extends ReadableGS with mutation. Only the adjacency-list
// strategy implements it; the ordered strategies (Linear, PrePostOrder) are
// built once from a finished edge set and are read-only after construction
// (spec.md §9, "the writable-only API is a sub-trait").
type WritableGS interface {
	ReadableGS

	AddEdge(e graph.Edge)
	AddEdgeAnno(e graph.Edge, a graph.Annotation)
	DeleteEdge(e graph.Edge)
	DeleteNode(n graph.NodeID)
	DeleteEdgeAnno(e graph.Edge, key graph.AnnoKey)
}
