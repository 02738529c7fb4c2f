// Package graph defines the identifiers shared by every layer of the corpus
// engine: node and string IDs, annotations, edges, and components. These
// types have no behavior of their own; they are the vocabulary the
// dictionary, annotation store, graph-storage family, operators, and planner
// all speak.
package graph

import "fmt"

// NodeID uniquely identifies a node within a corpus. IDs are assigned by the
// corpus graph starting at 0 for an empty corpus (invariant I6) and are never
// reused within a corpus's lifetime.
type NodeID uint32

// StringID is the compact integer a string is interned to by the
// dictionary. The empty string always interns to StringID(0).
type StringID uint32

// AnnoKey qualifies an annotation name by namespace, matching the (ns, name)
// addressing used throughout the annotation store and searches.
type AnnoKey struct {
	Name      StringID
	Namespace StringID
}

// Annotation is a fully-resolved (key, value) pair attached to a node or an
// edge.
type Annotation struct {
	Key   AnnoKey
	Value StringID
}

// Edge is a directed arc between two nodes within a single component. Edges
// order strictly by (Source, Target) so they can be used as map/sorted-set
// keys without a custom comparator.
type Edge struct {
	Source NodeID
	Target NodeID
}

// Less reports whether e sorts before o under the (Source, Target) ordering
// invariant used by every graph-storage strategy.
func (e Edge) Less(o Edge) bool {
	if e.Source != o.Source {
		return e.Source < o.Source
	}
	return e.Target < o.Target
}

func (e Edge) String() string {
	return fmt.Sprintf("%d->%d", e.Source, e.Target)
}

// ComponentType is the closed set of relation semantics a Component can
// carry. The zero value is Coverage.
type ComponentType uint8

const (
	Coverage ComponentType = iota
	InverseCoverage
	Dominance
	Pointing
	Ordering
	LeftToken
	RightToken
	PartOfSubcorpus
)

var componentTypeNames = [...]string{
	Coverage:        "Coverage",
	InverseCoverage: "InverseCoverage",
	Dominance:       "Dominance",
	Pointing:        "Pointing",
	Ordering:        "Ordering",
	LeftToken:       "LeftToken",
	RightToken:      "RightToken",
	PartOfSubcorpus: "PartOfSubcorpus",
}

func (t ComponentType) String() string {
	if int(t) < len(componentTypeNames) {
		return componentTypeNames[t]
	}
	return "Unknown"
}

// Component names a partition of edges with uniform semantics: all edges
// stored under one Component share type, layer, and name and are served by
// exactly one graph-storage instance.
type Component struct {
	Type  ComponentType
	Layer string
	Name  string
}

func (c Component) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Type, c.Layer, c.Name)
}

// Reserved strings interned at corpus construction (spec.md §3).
const (
	AnnisNS       = "annis_ns"
	NodeNameLabel = "node_name"
	NodeTypeLabel = "node_type"
	TokLabel      = "tok"
	LayerLabel    = "layer"
)

// NodeType distinguishes content nodes (tokens, spans, structural units)
// from sub-corpus/document nodes, read off the reserved
// (annis_ns, node_type) annotation. Supplemented from the original
// graphANNIS source, which keys subgraph extraction and PartOfSubcorpus
// resolution off this same distinction.
type NodeType string

const (
	NodeTypeNode   NodeType = "node"
	NodeTypeCorpus NodeType = "corpus"
)

// Match is a (NodeID, Annotation) pair produced by a search or operator: the
// fundamental unit that flows through the executor.
type Match struct {
	Node NodeID
	Anno Annotation
}

// DistanceRange bounds an edge-based traversal: Min and Max are inclusive
// path-length bounds, with Max == DistanceUnbounded
// meaning "no upper bound" (the star operator).
type DistanceRange struct {
	Min uint32
	Max uint32
}

// DistanceUnbounded marks a DistanceRange with no upper bound.
const DistanceUnbounded = ^uint32(0)

// Unbounded reports whether r has no upper distance bound.
func (r DistanceRange) Unbounded() bool {
	return r.Max == DistanceUnbounded
}
