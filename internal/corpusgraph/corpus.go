// Package corpusgraph implements the corpus graph (spec.md §4.4): the
// model that owns the string dictionary, the node annotation store, and
// the per-component graph-storage map for a single in-memory corpus.
//
// Grounded on the teacher's MemoryEngine (pkg/storage/memory.go) for the
// shape of an in-memory, RWMutex-guarded owner of nodes/edges, adapted
// from Neo4j-style labeled properties to annis Components, NodeIds, and
// the string-dictionary indirection spec.md requires.
package corpusgraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nornicorpus/nornicorpus/internal/anno"
	"github.com/nornicorpus/nornicorpus/internal/dict"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
)

// Loader is implemented by the on-disk store so a Corpus can lazily pull
// in a single component's edges without loading the entire corpus.
// internal/diskstore.Snapshot satisfies this.
type Loader interface {
	LoadComponent(name string, c graph.Component) (*gs.AdjacencyList, error)
}

// entry tracks one component's mutable storage and, once optimized, the
// cached read-optimized strategy the registry picked for it.
type entry struct {
	mutable   *gs.AdjacencyList
	optimized gs.ReadableGS // nil until Optimize is called; invalidated by any mutation
	loaded    bool
}

// Corpus is a single named corpus: dictionary, node annotations, and a
// component map. Not safe for concurrent use without an external lock
// (the corpus manager's per-corpus RWMutex provides that per spec.md §5).
type Corpus struct {
	Name string

	mu         sync.RWMutex
	dict       *dict.Dictionary
	nodeAnnos  *anno.Store[graph.NodeID]
	components map[graph.Component]*entry
	nameToID   map[uint32]graph.NodeID // node_name StringID -> NodeID
	nextNodeID graph.NodeID

	loader Loader
}

// New returns an empty corpus, interning the reserved strings of §3 at
// construction.
func New(name string) *Corpus {
	c := &Corpus{
		Name:       name,
		dict:       dict.New(),
		nodeAnnos:  anno.NewStore[graph.NodeID](),
		components: make(map[graph.Component]*entry),
		nameToID:   make(map[uint32]graph.NodeID),
	}
	c.dict.Add(graph.AnnisNS)
	c.dict.Add(graph.NodeNameLabel)
	c.dict.Add(graph.NodeTypeLabel)
	c.dict.Add(graph.TokLabel)
	c.dict.Add(graph.LayerLabel)
	return c
}

// NewFromSnapshot rebuilds a corpus around an already-populated
// dictionary and node annotation store (internal/diskstore's load path):
// nameToID is reconstructed by scanning the restored (annis_ns, node_name)
// annotations, since that index is never persisted separately.
func NewFromSnapshot(name string, d *dict.Dictionary, nodeAnnos *anno.Store[graph.NodeID], nextNodeID graph.NodeID) *Corpus {
	c := &Corpus{
		Name:       name,
		dict:       d,
		nodeAnnos:  nodeAnnos,
		components: make(map[graph.Component]*entry),
		nameToID:   make(map[uint32]graph.NodeID),
		nextNodeID: nextNodeID,
	}
	nameKey := c.annisKeyRLocked(graph.NodeNameLabel)
	for _, node := range nodeAnnos.ByKey(nameKey) {
		a, ok := nodeAnnos.Get(node, nameKey)
		if !ok {
			continue
		}
		c.nameToID[uint32(a.Value)] = node
	}
	return c
}

// SetLoader wires a disk-backed Loader for lazy per-component loading.
func (c *Corpus) SetLoader(l Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loader = l
}

// RegisterComponent declares that comp exists on disk without loading it
// yet, so a later Storage/EnsureLoaded call pulls it through the loader
// instead of silently treating it as new and empty. Used when restoring
// a corpus from a snapshot (internal/diskstore.Snapshot.ComponentList).
func (c *Corpus) RegisterComponent(comp graph.Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.components[comp]; ok {
		return
	}
	c.components[comp] = &entry{mutable: gs.NewAdjacencyList(), loaded: false}
}

// Dictionary returns the corpus's string dictionary.
func (c *Corpus) Dictionary() *dict.Dictionary { return c.dict }

// NodeAnnotations returns the corpus's node annotation store.
func (c *Corpus) NodeAnnotations() *anno.Store[graph.NodeID] { return c.nodeAnnos }

func (c *Corpus) annisKey(name string) graph.AnnoKey {
	ns, _ := c.dict.IDOf(graph.AnnisNS)
	id := c.dict.Add(name)
	return graph.AnnoKey{Namespace: graph.StringID(ns), Name: graph.StringID(id)}
}

// AddNode inserts a node named name with the given type, idempotent if
// name already exists (spec.md §3 Lifecycle). Returns the node's id.
func (c *Corpus) AddNode(name string, nodeType graph.NodeType) graph.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()

	nameStrID := c.dict.Add(name)
	if id, ok := c.nameToID[nameStrID]; ok {
		return id
	}

	id := c.nextNodeID
	c.nextNodeID++
	c.nameToID[nameStrID] = id

	c.nodeAnnos.Add(id, graph.Annotation{Key: c.annisKey(graph.NodeNameLabel), Value: graph.StringID(nameStrID)})
	typeStrID := c.dict.Add(string(nodeType))
	c.nodeAnnos.Add(id, graph.Annotation{Key: c.annisKey(graph.NodeTypeLabel), Value: graph.StringID(typeStrID)})
	return id
}

// NodeIDByName resolves a node_name to its NodeID.
func (c *Corpus) NodeIDByName(name string) (graph.NodeID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nameStrID, ok := c.dict.IDOf(name)
	if !ok {
		return 0, false
	}
	id, ok := c.nameToID[nameStrID]
	return id, ok
}

// NodeType reports the (annis_ns, node_type) annotation for id, per the
// content-vs-subcorpus distinction supplemented from original_source's
// types.h.
func (c *Corpus) NodeType(id graph.NodeID) (graph.NodeType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.nodeAnnos.Get(id, c.annisKeyRLocked(graph.NodeTypeLabel))
	if !ok {
		return "", false
	}
	s, err := c.dict.Str(uint32(a.Value))
	if err != nil {
		return "", false
	}
	return graph.NodeType(s), true
}

func (c *Corpus) annisKeyRLocked(name string) graph.AnnoKey {
	ns, _ := c.dict.IDOf(graph.AnnisNS)
	id, _ := c.dict.IDOf(name)
	return graph.AnnoKey{Namespace: graph.StringID(ns), Name: graph.StringID(id)}
}

// DeleteNode removes name's annotations and every incident edge across
// all components (spec.md §3).
func (c *Corpus) DeleteNode(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nameStrID, ok := c.dict.IDOf(name)
	if !ok {
		return
	}
	id, ok := c.nameToID[nameStrID]
	if !ok {
		return
	}

	c.nodeAnnos.DeleteAll(id)
	delete(c.nameToID, nameStrID)

	for _, e := range c.components {
		e.mutable.DeleteNode(id)
		e.optimized = nil
	}
}

// AddNodeLabel attaches a (ns, label)=value annotation to the node named
// name, overwriting any existing value for that key. No-op if name is
// missing (spec.md §6 AddNodeLabel event).
func (c *Corpus) AddNodeLabel(name, ns, label, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.resolveNameLocked(name)
	if !ok {
		return
	}
	nsID := c.dict.Add(ns)
	labelID := c.dict.Add(label)
	valID := c.dict.Add(value)
	key := graph.AnnoKey{Namespace: graph.StringID(nsID), Name: graph.StringID(labelID)}
	c.nodeAnnos.Add(id, graph.Annotation{Key: key, Value: graph.StringID(valID)})
}

// DeleteNodeLabel removes a single annotation key from the node named
// name, a no-op if the node or key does not exist (spec.md §6
// DeleteNodeLabel event).
func (c *Corpus) DeleteNodeLabel(name, ns, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.resolveNameLocked(name)
	if !ok {
		return
	}
	nsID, ok1 := c.dict.IDOf(ns)
	labelID, ok2 := c.dict.IDOf(label)
	if !ok1 || !ok2 {
		return
	}
	key := graph.AnnoKey{Namespace: graph.StringID(nsID), Name: graph.StringID(labelID)}
	c.nodeAnnos.Delete(id, key)
}

// AddEdge adds an edge between the nodes named srcName and tgtName under
// comp. No-op if either node is missing (spec.md §6).
func (c *Corpus) AddEdge(srcName, tgtName string, comp graph.Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srcID, ok := c.resolveNameLocked(srcName)
	if !ok {
		return nil
	}
	tgtID, ok := c.resolveNameLocked(tgtName)
	if !ok {
		return nil
	}

	e, err := c.ensureComponentLocked(comp)
	if err != nil {
		return err
	}
	e.mutable.AddEdge(graph.Edge{Source: srcID, Target: tgtID})
	e.optimized = nil
	return nil
}

// DeleteEdge removes an edge, a no-op if absent (spec.md §6).
func (c *Corpus) DeleteEdge(srcName, tgtName string, comp graph.Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srcID, ok := c.resolveNameLocked(srcName)
	if !ok {
		return nil
	}
	tgtID, ok := c.resolveNameLocked(tgtName)
	if !ok {
		return nil
	}
	e, err := c.ensureComponentLocked(comp)
	if err != nil {
		return err
	}
	e.mutable.DeleteEdge(graph.Edge{Source: srcID, Target: tgtID})
	e.optimized = nil
	return nil
}

// AddEdgeLabel attaches an annotation to an existing edge; a no-op if
// the edge does not exist (spec.md §6).
func (c *Corpus) AddEdgeLabel(srcName, tgtName string, comp graph.Component, ns, label, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srcID, ok := c.resolveNameLocked(srcName)
	if !ok {
		return nil
	}
	tgtID, ok := c.resolveNameLocked(tgtName)
	if !ok {
		return nil
	}
	e, err := c.ensureComponentLocked(comp)
	if err != nil {
		return err
	}
	edge := graph.Edge{Source: srcID, Target: tgtID}
	found := false
	for _, t := range e.mutable.OutEdges(srcID) {
		if t == tgtID {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	nsID := c.dict.Add(ns)
	labelID := c.dict.Add(label)
	valID := c.dict.Add(value)
	key := graph.AnnoKey{Namespace: graph.StringID(nsID), Name: graph.StringID(labelID)}
	e.mutable.AddEdgeAnno(edge, graph.Annotation{Key: key, Value: graph.StringID(valID)})
	e.optimized = nil
	return nil
}

// DeleteEdgeLabel removes a single annotation key from an edge, a no-op
// if the edge or key does not exist.
func (c *Corpus) DeleteEdgeLabel(srcName, tgtName string, comp graph.Component, ns, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srcID, ok := c.resolveNameLocked(srcName)
	if !ok {
		return nil
	}
	tgtID, ok := c.resolveNameLocked(tgtName)
	if !ok {
		return nil
	}
	e, err := c.ensureComponentLocked(comp)
	if err != nil {
		return err
	}
	nsID, ok1 := c.dict.IDOf(ns)
	labelID, ok2 := c.dict.IDOf(label)
	if !ok1 || !ok2 {
		return nil
	}
	key := graph.AnnoKey{Namespace: graph.StringID(nsID), Name: graph.StringID(labelID)}
	e.mutable.DeleteEdgeAnno(graph.Edge{Source: srcID, Target: tgtID}, key)
	e.optimized = nil
	return nil
}

func (c *Corpus) resolveNameLocked(name string) (graph.NodeID, bool) {
	nameStrID, ok := c.dict.IDOf(name)
	if !ok {
		return 0, false
	}
	id, ok := c.nameToID[nameStrID]
	return id, ok
}

func (c *Corpus) ensureComponentLocked(comp graph.Component) (*entry, error) {
	if e, ok := c.components[comp]; ok {
		if !e.loaded {
			if err := c.loadComponentLocked(comp, e); err != nil {
				return nil, err
			}
		}
		return e, nil
	}
	e := &entry{mutable: gs.NewAdjacencyList(), loaded: true}
	c.components[comp] = e
	return e, nil
}

func (c *Corpus) loadComponentLocked(comp graph.Component, e *entry) error {
	if c.loader == nil {
		e.loaded = true
		return nil
	}
	loaded, err := c.loader.LoadComponent(c.Name, comp)
	if err != nil {
		return fmt.Errorf("corpusgraph: load component %s: %w", comp, err)
	}
	e.mutable = loaded
	e.loaded = true
	return nil
}

// EnsureLoaded lazily loads comp from disk if it has not been loaded yet.
func (c *Corpus) EnsureLoaded(comp graph.Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.ensureComponentLocked(comp)
	return err
}

// Storage returns the currently-active (possibly cached-optimized)
// ReadableGS for comp, creating an empty AdjacencyList if absent.
func (c *Corpus) Storage(comp graph.Component) (gs.ReadableGS, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.ensureComponentLocked(comp)
	if err != nil {
		return nil, err
	}
	if e.optimized != nil {
		return e.optimized, nil
	}
	return e.mutable, nil
}

// MutableStorage returns comp's writable AdjacencyList, regardless of
// whether Optimize has cached a read-optimized strategy over it. Used by
// internal/diskstore to snapshot a component from a concrete, walkable
// source rather than an opaque ReadableGS.
func (c *Corpus) MutableStorage(comp graph.Component) (*gs.AdjacencyList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.ensureComponentLocked(comp)
	if err != nil {
		return nil, err
	}
	return e.mutable, nil
}

// Components lists every component currently tracked by this corpus.
func (c *Corpus) Components() []graph.Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]graph.Component, 0, len(c.components))
	for comp := range c.components {
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Optimize runs the graph-storage registry over comp's current statistics
// and caches the resulting strategy for reads, without discarding the
// underlying writable adjacency list (spec.md §4.3 Conversion).
func (c *Corpus) Optimize(comp graph.Component) (gs.Width, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.ensureComponentLocked(comp)
	if err != nil {
		return "", err
	}
	storage, width := gs.OptimizeComponent(e.mutable)
	e.optimized = storage
	return width, nil
}

// NextFreeNodeID reports the id that would be assigned to the next
// AddNode call (invariant I6).
func (c *Corpus) NextFreeNodeID() graph.NodeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextNodeID
}

// NodeCount returns the number of live nodes.
func (c *Corpus) NodeCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nameToID)
}
