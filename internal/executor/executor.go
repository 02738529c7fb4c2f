// Package executor implements the pull-based query executor of
// spec.md §4.7: a tree of iterators mirroring the planner's PlanNode
// tree, where joins either seek through an operator's index
// (RetrieveMatches) or fall back to a nested loop over a materialized
// right-hand side, with optional parallel variants backed by a bounded
// worker pool.
package executor

import (
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// Tuple is one partial solution: the bound match for each variable, in
// the order reported by Iterator.Vars.
type Tuple []graph.Match

// Iterator is the pull-based interface every executor node implements.
type Iterator interface {
	// Next advances the iterator, returning false once exhausted.
	Next() (Tuple, bool)
	// Vars reports the variable name bound at each position of a Tuple
	// this iterator produces.
	Vars() []string
}

// indexOf returns the position of name within vars, or -1.
func indexOf(vars []string, name string) int {
	for i, v := range vars {
		if v == name {
			return i
		}
	}
	return -1
}

// baseIterator adapts a single-variable annotation search into an
// Iterator producing one-element tuples.
type baseIterator struct {
	varName string
	search  interface {
		Next(m *graph.Match) bool
	}
}

// NewBaseIterator wraps s as a one-variable leaf iterator.
func NewBaseIterator(varName string, s interface {
	Next(m *graph.Match) bool
}) Iterator {
	return &baseIterator{varName: varName, search: s}
}

func (b *baseIterator) Next() (Tuple, bool) {
	var m graph.Match
	if !b.search.Next(&m) {
		return nil, false
	}
	return Tuple{m}, true
}

func (b *baseIterator) Vars() []string { return []string{b.varName} }

// reflexivityFilter drops tuples whose left and right variable
// positions are bound to the same node, used when an operator is not
// reflexive (spec.md §4.7).
type reflexivityFilter struct {
	inner    Iterator
	lIdx     int
	rIdx     int
	reflexive bool
}

// NewReflexivityFilter wraps inner, dropping any tuple where the
// lhsVar/rhsVar positions bind the same node, unless reflexive is true.
func NewReflexivityFilter(inner Iterator, lhsVar, rhsVar string, reflexive bool) Iterator {
	return &reflexivityFilter{
		inner:     inner,
		lIdx:      indexOf(inner.Vars(), lhsVar),
		rIdx:      indexOf(inner.Vars(), rhsVar),
		reflexive: reflexive,
	}
}

func (f *reflexivityFilter) Next() (Tuple, bool) {
	if f.reflexive || f.lIdx < 0 || f.rIdx < 0 {
		return f.inner.Next()
	}
	for {
		t, ok := f.inner.Next()
		if !ok {
			return nil, false
		}
		if t[f.lIdx].Node != t[f.rIdx].Node {
			return t, true
		}
	}
}

func (f *reflexivityFilter) Vars() []string { return f.inner.Vars() }
