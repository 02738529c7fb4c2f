package op

import (
	"fmt"
	"math"

	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
)

// EdgeOperator is the shared base for the four edge-based operators:
// Dominance, Pointing, PartOfSubcorpus, and Precedence. Each constructor
// fixes componentType; Dominance, Pointing and PartOfSubcorpus return a
// plain *EdgeOperator, while PrecedenceOp embeds one, mirroring the
// original AbstractEdgeOperator base class.
type EdgeOperator struct {
	resolver      Resolver
	componentType graph.ComponentType
	layer         string
	name          string
	distance      graph.DistanceRange
	annoFilter    *EdgeAnnoFilter
	reflexive     bool
	label         string
}

func newEdgeOperator(r Resolver, t graph.ComponentType, layer, name string, dist graph.DistanceRange, filter *EdgeAnnoFilter, label string) *EdgeOperator {
	return &EdgeOperator{
		resolver:      r,
		componentType: t,
		layer:         layer,
		name:          name,
		distance:      dist,
		annoFilter:    filter,
		reflexive:     true, // edge operators default to reflexive (spec.md §4.4)
		label:         label,
	}
}

func (o *EdgeOperator) storages() ([]gs.ReadableGS, error) {
	return o.resolver.ComponentsOfType(o.componentType, o.layer, o.name)
}

// RetrieveMatches runs find_connected on each matching graph storage
// and, if an edge-annotation filter is set, keeps only targets whose
// edge carries a matching annotation. Results from multiple storages
// are de-duplicated by target node id.
func (o *EdgeOperator) RetrieveMatches(lhs graph.Match) ([]graph.Match, error) {
	storages, err := o.storages()
	if err != nil {
		return nil, err
	}
	seen := map[graph.NodeID]struct{}{}
	var out []graph.Match
	for _, s := range storages {
		it := s.FindConnected(lhs.Node, o.distance.Min, o.distance.Max)
		for {
			n, ok := it.Next()
			if !ok {
				break
			}
			if o.annoFilter != nil && !o.resolver.EdgeAnnoMatches(storages, graph.Edge{Source: lhs.Node, Target: n}, *o.annoFilter) {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, graph.Match{Node: n})
		}
	}
	return out, nil
}

// Filter checks is_connected on every matching storage, honoring the
// same edge-annotation filter as RetrieveMatches.
func (o *EdgeOperator) Filter(lhs, rhs graph.Match) (bool, error) {
	storages, err := o.storages()
	if err != nil {
		return false, err
	}
	for _, s := range storages {
		if !s.IsConnected(graph.Edge{Source: lhs.Node, Target: rhs.Node}, o.distance.Min, o.distance.Max) {
			continue
		}
		if o.annoFilter != nil && !o.resolver.EdgeAnnoMatches(storages, graph.Edge{Source: lhs.Node, Target: rhs.Node}, *o.annoFilter) {
			continue
		}
		return true, nil
	}
	return false, nil
}

// IsReflexive reports the edge operator's reflexivity, true by default.
func (o *EdgeOperator) IsReflexive() bool { return o.reflexive }

// IsCommutative is false for every directed edge operator.
func (o *EdgeOperator) IsCommutative() bool { return false }

// Selectivity treats the graph as a complete k-ary tree with
// k = avg_fan_out, estimating reachable nodes at [min,max] hops as
// (k^max - k^min)/(k-1), divided by total node count; cyclic components
// force selectivity to 1 (spec.md §4.4).
func (o *EdgeOperator) Selectivity() float64 {
	storages, err := o.storages()
	if err != nil || len(storages) == 0 {
		return 1.0
	}
	var sel float64
	for _, s := range storages {
		stats := s.Stats()
		if !stats.Valid || stats.Nodes == 0 {
			continue
		}
		if stats.Cyclic {
			sel += 1.0
			continue
		}
		reachable := reachableAtRange(stats.AvgFanOut, o.distance)
		sel += reachable / float64(stats.Nodes)
	}
	if o.annoFilter != nil {
		total := o.resolver.TotalEdgeAnnos()
		if total > 0 {
			if guess := o.resolver.GuessEdgeAnnoCount(*o.annoFilter); guess > 0 {
				sel *= float64(guess) / float64(total)
			}
		}
	}
	if sel > 1.0 {
		sel = 1.0
	}
	return sel
}

// reachableAtRange estimates the number of nodes reachable within
// [min,max] hops of a complete k-ary tree with branching factor k.
func reachableAtRange(k float64, d graph.DistanceRange) float64 {
	max := d.Max
	if d.Unbounded() {
		max = 64 // treat "infinite" as a generous cap for the geometric-series estimate
	}
	min := d.Min
	if k <= 1.0000001 && k >= 0.9999999 {
		// degenerate chain: k=1 means the geometric series divides by zero
		return float64(max-min) + 1
	}
	num := math.Pow(k, float64(max)) - math.Pow(k, float64(min))
	return num / (k - 1)
}

// Description renders a short explain string.
func (o *EdgeOperator) Description() string {
	return fmt.Sprintf("%s(%s/%s, %d..%d)", o.label, o.layer, o.name, o.distance.Min, o.distance.Max)
}

// Dominance constructs the tree-shaped structural subordination operator.
func Dominance(r Resolver, layer, name string, dist graph.DistanceRange, filter *EdgeAnnoFilter) *EdgeOperator {
	return newEdgeOperator(r, graph.Dominance, layer, name, dist, filter, "Dominance")
}

// Pointing constructs the arbitrary inter-node relation operator.
func Pointing(r Resolver, layer, name string, dist graph.DistanceRange, filter *EdgeAnnoFilter) *EdgeOperator {
	return newEdgeOperator(r, graph.Pointing, layer, name, dist, filter, "Pointing")
}

// PartOfSubcorpus constructs the sub-corpus containment operator.
func PartOfSubcorpus(r Resolver, dist graph.DistanceRange) *EdgeOperator {
	return newEdgeOperator(r, graph.PartOfSubcorpus, "", "", dist, nil, "PartOfSubcorpus")
}

// PrecedenceOp is the token-ordering operator: right_token(lhs) must be
// connected to left_token(rhs) in the Ordering component within
// [min,max] steps. When segmentation is non-empty, the Ordering
// component is the segmentation-named one and, per the original
// implementation, token boundary functions become identity (a
// segmentation unit is its own left/right token).
type PrecedenceOp struct {
	*EdgeOperator
	identityTokens bool
}

// Precedence constructs the precedence operator. min=0,max=0 means "any
// distance" -- an inherited open question (spec.md §9), preserved
// verbatim and gated by TestPrecedenceAnyDistanceOpenQuestion in
// internal/op/op_test.go.
func Precedence(r Resolver, segmentation string, dist graph.DistanceRange) *PrecedenceOp {
	base := newEdgeOperator(r, graph.Ordering, graph.AnnisNS, segmentation, dist, nil, "Precedence")
	return &PrecedenceOp{EdgeOperator: base, identityTokens: segmentation != ""}
}

func (p *PrecedenceOp) boundary(n graph.NodeID, left bool) (graph.NodeID, bool) {
	if p.identityTokens {
		return n, true
	}
	if left {
		return p.resolver.LeftToken(n)
	}
	return p.resolver.RightToken(n)
}

// effectiveRange implements the "min=0,max=0 means any distance" open
// question (spec.md §9): preserved as observed, not silently reinterpreted.
func (p *PrecedenceOp) effectiveRange() graph.DistanceRange {
	if p.distance.Min == 0 && p.distance.Max == 0 {
		return graph.DistanceRange{Min: 0, Max: graph.DistanceUnbounded}
	}
	return p.distance
}

// RetrieveMatches resolves right_token(lhs) before delegating to the
// ordering component's find_connected, and wraps the results back as
// plain node matches (the rhs query variable binds to rhs itself, not
// its boundary token).
func (p *PrecedenceOp) RetrieveMatches(lhs graph.Match) ([]graph.Match, error) {
	rt, ok := p.boundary(lhs.Node, false)
	if !ok {
		return nil, nil
	}
	storages, err := p.storages()
	if err != nil {
		return nil, err
	}
	rng := p.effectiveRange()
	seen := map[graph.NodeID]struct{}{}
	var out []graph.Match
	for _, s := range storages {
		it := s.FindConnected(rt, rng.Min, rng.Max)
		for {
			n, ok := it.Next()
			if !ok {
				break
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, graph.Match{Node: n})
		}
	}
	return out, nil
}

// Filter resolves both boundary tokens before checking is_connected.
func (p *PrecedenceOp) Filter(lhs, rhs graph.Match) (bool, error) {
	rt, ok := p.boundary(lhs.Node, false)
	if !ok {
		return false, nil
	}
	lt, ok := p.boundary(rhs.Node, true)
	if !ok {
		return false, nil
	}
	storages, err := p.storages()
	if err != nil {
		return false, err
	}
	rng := p.effectiveRange()
	for _, s := range storages {
		if s.IsConnected(graph.Edge{Source: rt, Target: lt}, rng.Min, rng.Max) {
			return true, nil
		}
	}
	return false, nil
}
