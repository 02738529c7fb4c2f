// Package search implements the annotation searches of spec.md §4.5:
// node iterators over exact keys, exact values, regex values, and
// node-by-edge-annotation, each reporting an estimated cardinality and
// optionally replacing the emitted annotation with a constant one.
package search

import (
	"regexp"
	"sort"

	"github.com/nornicorpus/nornicorpus/internal/anno"
	"github.com/nornicorpus/nornicorpus/internal/dict"
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// Search is the common interface every annotation search implements.
type Search interface {
	// Next advances the search and writes the next match into m,
	// reporting false once exhausted.
	Next(m *graph.Match) bool
	// Reset rewinds the search to its first match.
	Reset()
	// GuessMaxCount estimates the search's output cardinality.
	GuessMaxCount() int64
}

// constOutput, when set, replaces every emitted match's annotation and
// de-duplicates by node so each node is emitted at most once -- used
// when a query variable only needs node identity, not its annotation
// (spec.md §4.5).
type constOutput struct {
	anno   graph.Annotation
	set    bool
	seen   map[graph.NodeID]struct{}
}

func (c *constOutput) apply(m *graph.Match) bool {
	if !c.set {
		return true
	}
	if c.seen == nil {
		c.seen = map[graph.NodeID]struct{}{}
	}
	if _, dup := c.seen[m.Node]; dup {
		return false
	}
	c.seen[m.Node] = struct{}{}
	m.Anno = c.anno
	return true
}

func (c *constOutput) reset() {
	c.seen = nil
}

// ExactKeySearch seeks the inverse index by (name[, ns]) -- every node
// carrying any value for that key.
type ExactKeySearch struct {
	store *anno.Store[graph.NodeID]
	key   graph.AnnoKey
	items []graph.NodeID
	pos   int
	co    constOutput
}

// NewExactKeySearch constructs a search over every node annotated with key.
func NewExactKeySearch(store *anno.Store[graph.NodeID], key graph.AnnoKey) *ExactKeySearch {
	s := &ExactKeySearch{store: store, key: key}
	s.Reset()
	return s
}

// SetConstantOutput replaces every emitted match's annotation with a,
// deduplicating by node (spec.md §4.5).
func (s *ExactKeySearch) SetConstantOutput(a graph.Annotation) { s.co.anno, s.co.set = a, true }

func (s *ExactKeySearch) Reset() {
	s.items = s.store.ByKey(s.key)
	sort.Slice(s.items, func(i, j int) bool { return s.items[i] < s.items[j] })
	s.pos = 0
	s.co.reset()
}

func (s *ExactKeySearch) Next(m *graph.Match) bool {
	for s.pos < len(s.items) {
		n := s.items[s.pos]
		s.pos++
		a, ok := s.store.Get(n, s.key)
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

// GuessMaxCount is the sum of per-key counters (spec.md §4.5).
func (s *ExactKeySearch) GuessMaxCount() int64 {
	return int64(s.store.KeyCount(s.key))
}

// ExactValueSearch seeks (name[, ns], value).
type ExactValueSearch struct {
	store   *anno.Store[graph.NodeID]
	dict    *dict.Dictionary
	key     graph.AnnoKey
	value   graph.StringID
	isNode  bool // true when (ns,name) == (annis_ns, node_name): unique, estimate 1
	items   []graph.NodeID
	pos     int
	co      constOutput
}

// NewExactValueSearch constructs a search over nodes carrying exactly
// (key, value). isNodeName should be true when key addresses
// (annis_ns, node_name) so GuessMaxCount can report the known-unique
// estimate of 1 (spec.md §4.5).
func NewExactValueSearch(store *anno.Store[graph.NodeID], d *dict.Dictionary, key graph.AnnoKey, value graph.StringID, isNodeName bool) *ExactValueSearch {
	s := &ExactValueSearch{store: store, dict: d, key: key, value: value, isNode: isNodeName}
	s.Reset()
	return s
}

// SetConstantOutput replaces every emitted match's annotation with a,
// deduplicating by node (spec.md §4.5).
func (s *ExactValueSearch) SetConstantOutput(a graph.Annotation) { s.co.anno, s.co.set = a, true }

func (s *ExactValueSearch) Reset() {
	s.items = s.store.ByValue(graph.Annotation{Key: s.key, Value: s.value})
	sort.Slice(s.items, func(i, j int) bool { return s.items[i] < s.items[j] })
	s.pos = 0
	s.co.reset()
}

func (s *ExactValueSearch) Next(m *graph.Match) bool {
	for s.pos < len(s.items) {
		n := s.items[s.pos]
		s.pos++
		cand := graph.Match{Node: n, Anno: graph.Annotation{Key: s.key, Value: s.value}}
		if s.co.apply(&cand) {
			*m = cand
			return true
		}
	}
	return false
}

func (s *ExactValueSearch) GuessMaxCount() int64 {
	if s.isNode {
		return 1
	}
	lower := s.dict.MustStr(uint32(s.value))
	return s.store.GuessMaxCount(func(k graph.AnnoKey) bool { return k == s.key }, lower, lower)
}

// RegexValueSearch iterates the nodes annotated under its single key in
// node-id order, applying the compiled pattern to each node's value and
// skipping nodes whose value does not match (spec.md §4.5).
type RegexValueSearch struct {
	store   *anno.Store[graph.NodeID]
	dict    *dict.Dictionary
	key     graph.AnnoKey
	re      *regexp.Regexp
	pattern string
	items   []graph.NodeID
	pos     int
	co      constOutput
}

// NewRegexValueSearch compiles pattern and constructs the search.
func NewRegexValueSearch(store *anno.Store[graph.NodeID], d *dict.Dictionary, key graph.AnnoKey, pattern string) (*RegexValueSearch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	s := &RegexValueSearch{store: store, dict: d, key: key, re: re, pattern: pattern}
	s.Reset()
	return s, nil
}

// SetConstantOutput replaces every emitted match's annotation with a,
// deduplicating by node (spec.md §4.5).
func (s *RegexValueSearch) SetConstantOutput(a graph.Annotation) { s.co.anno, s.co.set = a, true }

func (s *RegexValueSearch) Reset() {
	s.items = s.store.ByKey(s.key)
	sort.Slice(s.items, func(i, j int) bool { return s.items[i] < s.items[j] })
	s.pos = 0
	s.co.reset()
}

func (s *RegexValueSearch) Next(m *graph.Match) bool {
	for s.pos < len(s.items) {
		n := s.items[s.pos]
		s.pos++
		a, ok := s.store.Get(n, s.key)
		if !ok {
			continue
		}
		val := s.dict.MustStr(uint32(a.Value))
		if !s.re.MatchString(val) {
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

// GuessMaxCount estimates via the regex's prefix range.
func (s *RegexValueSearch) GuessMaxCount() int64 {
	return s.store.GuessMaxCountRegex(func(k graph.AnnoKey) bool { return k == s.key }, s.pattern)
}

// IsUnbounded reports whether the compiled pattern is the trivial ".*",
// the same pattern the planner's unbound-regex-rewrite pass recognizes
// on a NodeSpec (the planner does not call this method).
func (s *RegexValueSearch) IsUnbounded() bool { return s.pattern == ".*" }
