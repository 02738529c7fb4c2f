package op

import (
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// tokenSpan resolves the [left,right] token boundary of a node via the
// Resolver, failing if either boundary is undefined (e.g. the node has
// no LeftToken/RightToken edge and is not itself a token).
func tokenSpan(r Resolver, n graph.NodeID) (left, right graph.NodeID, ok bool) {
	left, ok = r.LeftToken(n)
	if !ok {
		return 0, 0, false
	}
	right, ok = r.RightToken(n)
	if !ok {
		return 0, 0, false
	}
	return left, right, true
}

// tokenOrder reports whether a precedes or equals b in the Ordering
// component, used to compare left/right token boundaries.
func tokenOrder(r Resolver, a, b graph.NodeID) (lessOrEqual bool, err error) {
	if a == b {
		return true, nil
	}
	storages, err := r.ComponentsOfType(graph.Ordering, graph.AnnisNS, "")
	if err != nil {
		return false, err
	}
	for _, s := range storages {
		if s.IsConnected(graph.Edge{Source: a, Target: b}, 1, graph.DistanceUnbounded) {
			return true, nil
		}
	}
	return false, nil
}

// Overlap reports whether lhs and rhs cover at least one common token:
// left(lhs) <= right(rhs) AND left(rhs) <= right(lhs) (spec.md §4.4).
// Non-reflexive: a node does not overlap itself through this operator
// (it would trivially always be true).
type Overlap struct {
	resolver Resolver
}

// NewOverlap constructs the Overlap operator.
func NewOverlap(r Resolver) *Overlap { return &Overlap{resolver: r} }

// RetrieveMatches collects every span covering any token covered by lhs,
// by scanning the coverage component's source nodes and keeping those
// whose span overlaps lhs's.
func (o *Overlap) RetrieveMatches(lhs graph.Match) ([]graph.Match, error) {
	return retrieveByFilter(o.resolver, o, lhs)
}

// Filter implements left(lhs) <= right(rhs) && left(rhs) <= right(lhs).
// This preserves the legacy self-coverage double-counting behavior
// observed in the source: a node whose own span covers itself is not
// specially excluded, per the inherited open question (spec.md §9).
func (o *Overlap) Filter(lhs, rhs graph.Match) (bool, error) {
	lLeft, lRight, ok := tokenSpan(o.resolver, lhs.Node)
	if !ok {
		return false, nil
	}
	rLeft, rRight, ok := tokenSpan(o.resolver, rhs.Node)
	if !ok {
		return false, nil
	}
	a, err := tokenOrder(o.resolver, lLeft, rRight)
	if err != nil {
		return false, err
	}
	b, err := tokenOrder(o.resolver, rLeft, lRight)
	if err != nil {
		return false, err
	}
	return a && b, nil
}

func (o *Overlap) IsReflexive() bool   { return false }
func (o *Overlap) IsCommutative() bool { return true }

// Selectivity returns 2*avg_coverage_fan_out/num_tokens, preserving the
// legacy formula that double-counts spans covering themselves (spec.md
// §4.4, §9 open question).
func (o *Overlap) Selectivity() float64 {
	storages, err := o.resolver.ComponentsOfType(graph.Coverage, "", "")
	if err != nil || len(storages) == 0 {
		return 1.0
	}
	var avgFanOut float64
	var tokens uint64
	for _, s := range storages {
		stats := s.Stats()
		if !stats.Valid {
			continue
		}
		avgFanOut += stats.AvgFanOut
		tokens += stats.Nodes
	}
	if tokens == 0 {
		return 1.0
	}
	return 2 * avgFanOut / float64(tokens)
}

func (o *Overlap) Description() string { return "Overlap" }

// Inclusion reports left(lhs) <= left(rhs) && right(rhs) <= right(lhs):
// rhs's span is fully contained in lhs's span.
type Inclusion struct {
	resolver Resolver
}

// NewInclusion constructs the Inclusion operator.
func NewInclusion(r Resolver) *Inclusion { return &Inclusion{resolver: r} }

func (o *Inclusion) RetrieveMatches(lhs graph.Match) ([]graph.Match, error) {
	return retrieveByFilter(o.resolver, o, lhs)
}

func (o *Inclusion) Filter(lhs, rhs graph.Match) (bool, error) {
	lLeft, lRight, ok := tokenSpan(o.resolver, lhs.Node)
	if !ok {
		return false, nil
	}
	rLeft, rRight, ok := tokenSpan(o.resolver, rhs.Node)
	if !ok {
		return false, nil
	}
	a, err := tokenOrder(o.resolver, lLeft, rLeft)
	if err != nil {
		return false, err
	}
	b, err := tokenOrder(o.resolver, rRight, lRight)
	if err != nil {
		return false, err
	}
	return a && b, nil
}

func (o *Inclusion) IsReflexive() bool    { return false }
func (o *Inclusion) IsCommutative() bool  { return false }
func (o *Inclusion) Selectivity() float64 { return coverageSelectivity(o.resolver) }
func (o *Inclusion) Description() string  { return "Inclusion" }

// IdenticalCoverage reports left(lhs)==left(rhs) && right(lhs)==right(rhs).
type IdenticalCoverage struct {
	resolver Resolver
}

// NewIdenticalCoverage constructs the IdenticalCoverage operator.
func NewIdenticalCoverage(r Resolver) *IdenticalCoverage { return &IdenticalCoverage{resolver: r} }

func (o *IdenticalCoverage) RetrieveMatches(lhs graph.Match) ([]graph.Match, error) {
	return retrieveByFilter(o.resolver, o, lhs)
}

func (o *IdenticalCoverage) Filter(lhs, rhs graph.Match) (bool, error) {
	lLeft, lRight, ok := tokenSpan(o.resolver, lhs.Node)
	if !ok {
		return false, nil
	}
	rLeft, rRight, ok := tokenSpan(o.resolver, rhs.Node)
	if !ok {
		return false, nil
	}
	return lLeft == rLeft && lRight == rRight, nil
}

func (o *IdenticalCoverage) IsReflexive() bool    { return true }
func (o *IdenticalCoverage) IsCommutative() bool  { return true }
func (o *IdenticalCoverage) Selectivity() float64 { return coverageSelectivity(o.resolver) }
func (o *IdenticalCoverage) Description() string  { return "IdenticalCoverage" }

func coverageSelectivity(r Resolver) float64 {
	storages, err := r.ComponentsOfType(graph.Coverage, "", "")
	if err != nil || len(storages) == 0 {
		return 1.0
	}
	var tokens uint64
	for _, s := range storages {
		stats := s.Stats()
		if stats.Valid {
			tokens += stats.Nodes
		}
	}
	if tokens == 0 {
		return 1.0
	}
	return 1.0 / float64(tokens)
}

// retrieveByFilter scans every source node of the coverage component and
// keeps those for which pred.Filter(lhs, candidate) holds -- the
// fallback retrieval path for token-geometry operators without a direct
// index structure.
func retrieveByFilter(r Resolver, pred interface {
	Filter(lhs, rhs graph.Match) (bool, error)
}, lhs graph.Match) ([]graph.Match, error) {
	storages, err := r.ComponentsOfType(graph.Coverage, "", "")
	if err != nil {
		return nil, err
	}
	seen := map[graph.NodeID]struct{}{}
	var out []graph.Match
	for _, s := range storages {
		it := s.SourceNodeIter()
		for {
			m, ok := it.Next()
			if !ok {
				break
			}
			if _, dup := seen[m.Node]; dup {
				continue
			}
			matched, err := pred.Filter(lhs, graph.Match{Node: m.Node})
			if err != nil {
				return nil, err
			}
			if matched {
				seen[m.Node] = struct{}{}
				out = append(out, graph.Match{Node: m.Node})
			}
		}
	}
	return out, nil
}

// Identity is the degenerate operator binding two query variables to
// the same node.
type Identity struct{}

// NewIdentity constructs the Identity operator.
func NewIdentity() *Identity { return &Identity{} }

func (Identity) RetrieveMatches(lhs graph.Match) ([]graph.Match, error) {
	return []graph.Match{lhs}, nil
}
func (Identity) Filter(lhs, rhs graph.Match) (bool, error) { return lhs.Node == rhs.Node, nil }
func (Identity) IsReflexive() bool                         { return true }
func (Identity) IsCommutative() bool                       { return true }
func (Identity) Selectivity() float64                      { return 0 }
func (Identity) Description() string                       { return "Identity" }

var (
	_ Operator = (*EdgeOperator)(nil)
	_ Operator = (*PrecedenceOp)(nil)
	_ Operator = (*Overlap)(nil)
	_ Operator = (*Inclusion)(nil)
	_ Operator = (*IdenticalCoverage)(nil)
	_ Operator = (*Identity)(nil)
)
