// Resolver and search-building glue binding the operator algebra
// (internal/op) and the annotation searches (internal/search) to a
// single *corpusgraph.Corpus, so the manager can plan and execute a
// query without either package depending on corpusgraph directly
// (spec.md §4.4/§4.6 decouple op/search from the concrete corpus).
package manager

import (
	"fmt"
	"regexp"

	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/dict"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
	"github.com/nornicorpus/nornicorpus/internal/op"
	"github.com/nornicorpus/nornicorpus/internal/planner"
	"github.com/nornicorpus/nornicorpus/internal/search"
)

// corpusResolver implements op.Resolver and planner.CardinalityEstimator
// and planner.OperatorResolver over a single corpus.
type corpusResolver struct {
	c *corpusgraph.Corpus
}

func newCorpusResolver(c *corpusgraph.Corpus) *corpusResolver {
	return &corpusResolver{c: c}
}

func (r *corpusResolver) ComponentsOfType(t graph.ComponentType, layer, name string) ([]gs.ReadableGS, error) {
	var out []gs.ReadableGS
	for _, comp := range r.c.Components() {
		if comp.Type != t {
			continue
		}
		if layer != "" && comp.Layer != layer {
			continue
		}
		if name != "" && comp.Name != name {
			continue
		}
		st, err := r.c.Storage(comp)
		if err != nil {
			return nil, fmt.Errorf("manager: storage for %s: %w", comp, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// boundaryToken follows a node's single LeftToken/RightToken edge, if
// any; a node with no such edge is its own boundary (most tokens).
func (r *corpusResolver) boundaryToken(n graph.NodeID, compType graph.ComponentType) (graph.NodeID, bool) {
	storages, err := r.ComponentsOfType(compType, "annis", "")
	if err != nil {
		return n, false
	}
	for _, st := range storages {
		if out := st.OutEdges(n); len(out) == 1 {
			return out[0], true
		}
	}
	return n, true
}

func (r *corpusResolver) LeftToken(n graph.NodeID) (graph.NodeID, bool) {
	return r.boundaryToken(n, graph.LeftToken)
}

func (r *corpusResolver) RightToken(n graph.NodeID) (graph.NodeID, bool) {
	return r.boundaryToken(n, graph.RightToken)
}

func (r *corpusResolver) EdgeAnnoMatches(storages []gs.ReadableGS, e graph.Edge, filter op.EdgeAnnoFilter) bool {
	matches, ok := edgeAnnoMatcher(r.c.Dictionary(), filter)
	if !ok {
		return false
	}
	for _, st := range storages {
		for _, a := range st.EdgeAnnos(e) {
			if matches(a) {
				return true
			}
		}
	}
	return false
}

// edgeAnnoMatcher compiles filter against d once, returning a predicate
// over individual edge annotations. ok is false when filter references
// a namespace, name, or value never interned in d -- no annotation can
// match, so callers should treat that as "no match" without evaluating
// the predicate.
func edgeAnnoMatcher(d *dict.Dictionary, filter op.EdgeAnnoFilter) (matches func(graph.Annotation) bool, ok bool) {
	nsID, nsOK := d.IDOf(filter.Namespace)
	nameID, nameOK := d.IDOf(filter.Name)
	if !nameOK || (filter.Namespace != "" && !nsOK) {
		return nil, false
	}
	var valID uint32
	if !filter.Wildcard {
		var valOK bool
		valID, valOK = d.IDOf(filter.Value)
		if !valOK {
			return nil, false
		}
	}
	return func(a graph.Annotation) bool {
		if uint32(a.Key.Name) != nameID {
			return false
		}
		if filter.Namespace != "" && uint32(a.Key.Namespace) != nsID {
			return false
		}
		return filter.Wildcard || uint32(a.Value) == valID
	}, true
}

func (r *corpusResolver) TotalEdgeAnnos() int64 {
	var total int64
	for _, comp := range r.c.Components() {
		st, err := r.c.Storage(comp)
		if err != nil {
			continue
		}
		it := st.SourceNodeIter()
		for {
			m, ok := it.Next()
			if !ok {
				break
			}
			for _, tgt := range st.OutEdges(m.Node) {
				total += int64(len(st.EdgeAnnos(graph.Edge{Source: m.Node, Target: tgt})))
			}
		}
	}
	return total
}

// GuessEdgeAnnoCount has no per-value edge-annotation histogram (spec.md
// §7 "recoverable": absent optional statistics ⇒ estimators return 0),
// so it always reports 0; the planner's selectivity formula treats that
// as "no narrowing available" rather than "no matches".
func (r *corpusResolver) GuessEdgeAnnoCount(op.EdgeAnnoFilter) int64 {
	return 0
}

// EstimateNodeSpec implements planner.CardinalityEstimator.
func (r *corpusResolver) EstimateNodeSpec(spec planner.NodeSpec) int64 {
	s, err := r.buildSearch(spec)
	if err != nil {
		return 0
	}
	return s.GuessMaxCount()
}

// EstimateEdgeAnnoCount implements planner.CardinalityEstimator: it
// counts the edges of js's component carrying an annotation matching
// js.Params.EdgeAnnotation, the real cost pass 3 weighs against the
// LHS node search (spec.md §4.6 pass 3).
func (r *corpusResolver) EstimateEdgeAnnoCount(js planner.JoinSpec) int64 {
	if js.Params.EdgeAnnotation == nil {
		return 0
	}
	compType, ok := edgeAnnoComponentType(js.OpName)
	if !ok {
		return 0
	}
	storages, err := r.ComponentsOfType(compType, js.Params.Layer, js.Params.Name)
	if err != nil || len(storages) == 0 {
		return 0
	}
	matches, ok := edgeAnnoMatcher(r.c.Dictionary(), *js.Params.EdgeAnnotation)
	if !ok {
		return 0
	}
	var n int64
	for _, st := range storages {
		it := st.SourceNodeIter()
		for {
			m, ok := it.Next()
			if !ok {
				break
			}
			for _, tgt := range st.OutEdges(m.Node) {
				for _, a := range st.EdgeAnnos(graph.Edge{Source: m.Node, Target: tgt}) {
					if matches(a) {
						n++
					}
				}
			}
		}
	}
	return n
}

// edgeAnnoComponentType maps a join operator name to the component
// type its edges live on, for the operators that carry an edge
// annotation filter (spec.md §6 Dominance/Pointing parameters).
func edgeAnnoComponentType(opName string) (graph.ComponentType, bool) {
	switch opName {
	case "Dominance":
		return graph.Dominance, true
	case "Pointing":
		return graph.Pointing, true
	default:
		return 0, false
	}
}

// BuildOperator implements planner.OperatorResolver.
func (r *corpusResolver) BuildOperator(js planner.JoinSpec) (op.Operator, error) {
	dist := graph.DistanceRange{Min: js.Params.MinDistance, Max: js.Params.MaxDistance}
	var filter *op.EdgeAnnoFilter
	if js.Params.EdgeAnnotation != nil {
		f := *js.Params.EdgeAnnotation
		filter = &f
	}
	switch js.OpName {
	case "Dominance":
		return op.Dominance(r, js.Params.Layer, js.Params.Name, dist, filter), nil
	case "Pointing":
		return op.Pointing(r, js.Params.Layer, js.Params.Name, dist, filter), nil
	case "PartOfSubcorpus":
		return op.PartOfSubcorpus(r, dist), nil
	case "Precedence":
		return op.Precedence(r, js.Params.Segmentation, dist), nil
	case "Overlap":
		return op.NewOverlap(r), nil
	case "Inclusion":
		return op.NewInclusion(r), nil
	case "IdenticalCoverage":
		return op.NewIdenticalCoverage(r), nil
	case "Identity":
		return op.NewIdentity(), nil
	default:
		return nil, fmt.Errorf("manager: unknown operator %q", js.OpName)
	}
}

// BuildSearch implements executor.SearchBuilder.
func (r *corpusResolver) BuildSearch(spec planner.NodeSpec) (search.Search, error) {
	return r.buildSearch(spec)
}

func (r *corpusResolver) buildSearch(spec planner.NodeSpec) (search.Search, error) {
	if spec.EdgeAnnoSeed != nil {
		return r.buildEdgeAnnoSeedSearch(spec)
	}
	return r.buildPlainSearch(spec)
}

// buildEdgeAnnoSeedSearch builds a NodeByEdgeAnnoSearch that reaches
// spec's candidates through the edge-annotation index of the join
// recorded by pass 3 instead of spec's own node-annotation search
// (spec.md §4.6 pass 3, §4.5). Falls back to the plain search if the
// join's operator or edge-annotation filter turns out not to resolve
// to an indexable component, e.g. because EstimateEdgeAnnoCount judged
// it cheap using stats that went stale before Plan's caller ran this.
func (r *corpusResolver) buildEdgeAnnoSeedSearch(spec planner.NodeSpec) (search.Search, error) {
	js := spec.EdgeAnnoSeed.Join
	filter := js.Params.EdgeAnnotation
	compType, ok := edgeAnnoComponentType(js.OpName)
	if !ok || filter == nil {
		return r.buildPlainSearch(spec)
	}
	storages, err := r.ComponentsOfType(compType, js.Params.Layer, js.Params.Name)
	if err != nil {
		return nil, fmt.Errorf("manager: components for edge-anno seed: %w", err)
	}
	if len(storages) == 0 {
		return r.buildPlainSearch(spec)
	}

	matches, ok := edgeAnnoMatcher(r.c.Dictionary(), *filter)
	if !ok {
		return emptySearch{}, nil
	}

	genAnno, err := r.nodeSpecMatcher(spec)
	if err != nil {
		return nil, err
	}

	s := search.NewNodeByEdgeAnnoSearch(storages, matches, genAnno, r.EstimateEdgeAnnoCount(js))
	return s, nil
}

// nodeSpecMatcher returns a function deciding, for a node discovered
// through an edge-annotation seed, whether it also carries an
// annotation satisfying spec, and if so which one to report -- the
// same ExactEqual/Regexp/Any matching buildPlainSearch's constructors
// apply, just evaluated per node instead of driven off an index.
func (r *corpusResolver) nodeSpecMatcher(spec planner.NodeSpec) (func(graph.NodeID) (graph.Annotation, bool), error) {
	d := r.c.Dictionary()
	store := r.c.NodeAnnotations()

	key, err := annoKey(d, spec.Namespace, spec.Name)
	if err != nil {
		return nil, err
	}

	switch spec.Mode {
	case planner.Any:
		return func(n graph.NodeID) (graph.Annotation, bool) {
			return store.Get(n, key)
		}, nil
	case planner.Regexp:
		re, err := regexp.Compile(spec.Value)
		if err != nil {
			return nil, fmt.Errorf("manager: compile regex search: %w", err)
		}
		return func(n graph.NodeID) (graph.Annotation, bool) {
			a, ok := store.Get(n, key)
			if !ok || !re.MatchString(d.MustStr(uint32(a.Value))) {
				return graph.Annotation{}, false
			}
			return a, true
		}, nil
	default:
		valID, ok := d.IDOf(spec.Value)
		if !ok {
			return func(graph.NodeID) (graph.Annotation, bool) { return graph.Annotation{}, false }, nil
		}
		return func(n graph.NodeID) (graph.Annotation, bool) {
			a, ok := store.Get(n, key)
			if !ok || uint32(a.Value) != valID {
				return graph.Annotation{}, false
			}
			return a, true
		}, nil
	}
}

func (r *corpusResolver) buildPlainSearch(spec planner.NodeSpec) (search.Search, error) {
	d := r.c.Dictionary()
	store := r.c.NodeAnnotations()

	key, err := annoKey(d, spec.Namespace, spec.Name)
	if err != nil {
		return nil, err
	}

	var s search.Search
	switch spec.Mode {
	case planner.Any:
		s = search.NewExactKeySearch(store, key)
	case planner.Regexp:
		s, err = search.NewRegexValueSearch(store, d, key, spec.Value)
		if err != nil {
			return nil, fmt.Errorf("manager: build regex search: %w", err)
		}
	default:
		valID, ok := d.IDOf(spec.Value)
		if !ok {
			s = emptySearch{}
		} else {
			isNodeName := spec.Namespace == graph.AnnisNS && spec.Name == graph.NodeNameLabel
			s = search.NewExactValueSearch(store, d, key, graph.StringID(valID), isNodeName)
		}
	}
	return s, nil
}

func annoKey(d *dict.Dictionary, ns, name string) (graph.AnnoKey, error) {
	var key graph.AnnoKey
	if ns != "" {
		nsID, ok := d.IDOf(ns)
		if !ok {
			return graph.AnnoKey{}, nil
		}
		key.Namespace = graph.StringID(nsID)
	}
	nameID, ok := d.IDOf(name)
	if !ok {
		return graph.AnnoKey{}, nil
	}
	key.Name = graph.StringID(nameID)
	return key, nil
}

// emptySearch is returned when a query references a value never interned
// in this corpus's dictionary -- it can have no matches.
type emptySearch struct{}

func (emptySearch) Next(*graph.Match) bool { return false }
func (emptySearch) Reset()                 {}
func (emptySearch) GuessMaxCount() int64   { return 0 }
