package corpusgraph

import (
	"sort"

	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// Subgraph is the node/edge neighborhood of a center node within ctx
// hops, across the requested components. Supplemented from
// original_source's corpusstoragemanager.cpp "subgraph" API, dropped
// from spec.md's distillation but named by its §1 Non-goals list only
// to exclude SQL-style aggregation -- subgraph extraction itself is not
// excluded.
type Subgraph struct {
	Nodes []graph.NodeID
	Edges []SubgraphEdge
}

// SubgraphEdge is one edge in a Subgraph, tagged with the component it
// came from so callers can distinguish coverage from dominance etc.
type SubgraphEdge struct {
	Edge      graph.Edge
	Component graph.Component
}

type componentSource struct {
	comp graph.Component
	e    *entry
}

// Subgraph walks outward from center across both edge directions, up to
// ctx hops, over the given components, and returns every node and edge
// touched. Returns an empty graph for an unknown center id (spec.md §7).
func (c *Corpus) Subgraph(center graph.NodeID, ctx int, components []graph.Component) (*Subgraph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for _, id := range c.nameToID {
		if id == center {
			found = true
			break
		}
	}
	if !found {
		return &Subgraph{}, nil
	}

	sources := make([]componentSource, 0, len(components))
	for _, comp := range components {
		e, err := c.ensureComponentLocked(comp)
		if err != nil {
			return nil, err
		}
		sources = append(sources, componentSource{comp: comp, e: e})
	}

	nodes := map[graph.NodeID]struct{}{center: {}}
	seenEdges := map[SubgraphEdge]struct{}{}
	var edges []SubgraphEdge
	frontier := []graph.NodeID{center}

	addEdge := func(se SubgraphEdge, other graph.NodeID) {
		if _, dup := seenEdges[se]; dup {
			return
		}
		seenEdges[se] = struct{}{}
		edges = append(edges, se)
		if _, ok := nodes[other]; !ok {
			nodes[other] = struct{}{}
		}
	}

	for hop := 0; hop < ctx && len(frontier) > 0; hop++ {
		var next []graph.NodeID
		seenThisHop := map[graph.NodeID]struct{}{}
		for _, n := range frontier {
			for _, cs := range sources {
				for _, tgt := range cs.e.mutable.OutEdges(n) {
					addEdge(SubgraphEdge{Edge: graph.Edge{Source: n, Target: tgt}, Component: cs.comp}, tgt)
					if _, ok := seenThisHop[tgt]; !ok {
						seenThisHop[tgt] = struct{}{}
						next = append(next, tgt)
					}
				}
				it := cs.e.mutable.SourceNodeIter()
				for {
					m, ok := it.Next()
					if !ok {
						break
					}
					for _, tgt := range cs.e.mutable.OutEdges(m.Node) {
						if tgt != n {
							continue
						}
						addEdge(SubgraphEdge{Edge: graph.Edge{Source: m.Node, Target: n}, Component: cs.comp}, m.Node)
						if _, ok := seenThisHop[m.Node]; !ok {
							seenThisHop[m.Node] = struct{}{}
							next = append(next, m.Node)
						}
					}
				}
			}
		}
		frontier = next
	}

	out := &Subgraph{Edges: edges}
	for n := range nodes {
		out.Nodes = append(out.Nodes, n)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i] < out.Nodes[j] })
	return out, nil
}
