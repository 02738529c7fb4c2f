// Package op implements the operator algebra of spec.md §4.4: binary
// predicates over node matches, linking query variables. Every operator
// is either edge-based (Dominance, Pointing, PartOfSubcorpus, Precedence)
// or token-geometry (Overlap, Inclusion, IdenticalCoverage), plus the
// degenerate Identity operator.
//
// Grounded on the original graphANNIS operators (operators/*.cpp):
// AbstractEdgeOperator as the shared base for the four edge operators,
// and the left/right-token helpers for the three coverage-geometry
// operators.
package op

import (
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
)

// Resolver decouples the operator algebra from the concrete corpus
// graph: it supplies component lookup and token-boundary queries.
// internal/manager's corpusResolver implements this over a
// corpusgraph.Corpus.
type Resolver interface {
	// ComponentsOfType returns every graph-storage instance matching
	// componentType and, when non-empty, layer and name. An empty name
	// resolves every component of that type within layer (or every
	// layer, if layer is also empty) -- spec.md §4.4's "name only with
	// multi-component resolution".
	ComponentsOfType(componentType graph.ComponentType, layer, name string) ([]gs.ReadableGS, error)
	// LeftToken returns n itself if n is a token, else the unique
	// LeftToken out-neighbour of n in annis_ns.
	LeftToken(n graph.NodeID) (graph.NodeID, bool)
	// RightToken is LeftToken's symmetric counterpart.
	RightToken(n graph.NodeID) (graph.NodeID, bool)
	// EdgeAnnoMatches reports whether e (in one of the storages
	// returned by ComponentsOfType) carries an annotation matching
	// filter -- used by edge-annotation filters in retrieve/filter.
	EdgeAnnoMatches(storages []gs.ReadableGS, e graph.Edge, filter EdgeAnnoFilter) bool
	// TotalEdgeAnnos is the total number of edge annotations across the
	// corpus, the denominator of the edge-annotation selectivity factor.
	TotalEdgeAnnos() int64
	// GuessEdgeAnnoCount estimates how many edges carry filter.
	GuessEdgeAnnoCount(filter EdgeAnnoFilter) int64
}

// EdgeAnnoFilter narrows an edge operator to edges carrying a specific
// annotation, or any annotation under a key when Value is the zero
// value and Wildcard is true.
type EdgeAnnoFilter struct {
	Namespace string
	Name      string
	Value     string
	Wildcard  bool
}

// Operator is the common interface every binary predicate in the
// algebra implements (spec.md §4.4).
type Operator interface {
	// RetrieveMatches returns every rhs Match reachable from lhs via
	// this operator -- the index lookup path used by index-seed joins.
	RetrieveMatches(lhs graph.Match) ([]graph.Match, error)
	// Filter reports whether lhs and rhs satisfy this operator -- the
	// nested-loop path.
	Filter(lhs, rhs graph.Match) (bool, error)
	// IsReflexive reports whether lhs.Node == rhs.Node is permitted.
	IsReflexive() bool
	// IsCommutative reports whether Filter(a,b) == Filter(b,a) always.
	IsCommutative() bool
	// Selectivity estimates |matches| / (|N|^2), used by the planner's
	// cost model and operand-swap pass.
	Selectivity() float64
	// Description is a short human-readable explain string.
	Description() string
}
