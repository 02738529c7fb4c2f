// Package diskstore persists a single corpus snapshot (spec.md §6's
// on-disk layout) into a badger key-value store, one badger instance per
// snapshot directory (a corpus's current/ or backup/). Each logical file
// named in the layout -- nodes.bin, one component.bin per graph-storage
// instance, update_log.bin -- becomes one self-describing badger key,
// adapted from the teacher's BadgerEngine key-prefix/JSON-encoding
// pattern (pkg/storage/badger.go) to the corpus graph's own entities.
package diskstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/nornicorpus/nornicorpus/internal/anno"
	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/dict"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
)

// Key prefixes mirror pkg/storage/badger.go's single-byte scheme, one
// prefix per logical file kind in spec.md §6's layout.
const (
	prefixNodes     = byte(0x01) // nodes.bin: dictionary + node annotation store
	prefixComponent = byte(0x02) // gs/<Type>/<layer>/<name>/component.bin
	prefixUpdateLog = byte(0x03) // update_log.bin
)

// componentSep separates a component key's Type/Layer/Name fields; it is
// outside the printable ASCII range layer/name strings are expected to use.
const componentSep = "\x1f"

func componentKey(c graph.Component) []byte {
	s := strconv.Itoa(int(c.Type)) + componentSep + c.Layer + componentSep + c.Name
	return append([]byte{prefixComponent}, []byte(s)...)
}

func componentPrefix() []byte {
	return []byte{prefixComponent}
}

func parseComponentKey(key []byte) (graph.Component, bool) {
	if len(key) == 0 || key[0] != prefixComponent {
		return graph.Component{}, false
	}
	parts := strings.SplitN(string(key[1:]), componentSep, 3)
	if len(parts) != 3 {
		return graph.Component{}, false
	}
	t, err := strconv.Atoi(parts[0])
	if err != nil {
		return graph.Component{}, false
	}
	return graph.Component{Type: graph.ComponentType(t), Layer: parts[1], Name: parts[2]}, true
}

// annoRecord is a (namespace, name, value) StringID triple, serializable
// because the dictionary's id assignment is reproduced exactly on reload
// (dict.Dictionary.Add is order-preserving and idempotent).
type annoRecord struct {
	NS    uint32 `json:"ns"`
	Name  uint32 `json:"name"`
	Value uint32 `json:"value"`
}

func toAnnoRecord(a graph.Annotation) annoRecord {
	return annoRecord{NS: uint32(a.Key.Namespace), Name: uint32(a.Key.Name), Value: uint32(a.Value)}
}

func fromAnnoRecord(r annoRecord) graph.Annotation {
	return graph.Annotation{
		Key:   graph.AnnoKey{Namespace: graph.StringID(r.NS), Name: graph.StringID(r.Name)},
		Value: graph.StringID(r.Value),
	}
}

// nodesBlob is the JSON payload stored under prefixNodes.
type nodesBlob struct {
	Strings    []string              `json:"strings"`
	NodeAnnos  map[uint32][]annoRecord `json:"node_annos"`
	NextNodeID uint32                `json:"next_node_id"`
}

// edgeRecord is one edge plus its annotations within a component.
type edgeRecord struct {
	Source uint32       `json:"source"`
	Target uint32       `json:"target"`
	Annos  []annoRecord `json:"annos,omitempty"`
}

// componentBlob is the JSON payload stored under one componentKey.
type componentBlob struct {
	Edges []edgeRecord `json:"edges"`
}

// Snapshot wraps a badger.DB rooted at one on-disk directory -- a
// corpus's current/ or backup/ (spec.md §6).
type Snapshot struct {
	db  *badger.DB
	dir string
}

// Open opens (creating if absent) the badger store rooted at dir.
func Open(dir string) (*Snapshot, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("diskstore: open %s: %w", dir, err)
	}
	return &Snapshot{db: db, dir: dir}, nil
}

// OpenInMemory opens an in-memory badger store, for tests.
func OpenInMemory() (*Snapshot, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("diskstore: open in-memory store: %w", err)
	}
	return &Snapshot{db: db, dir: ""}, nil
}

// Close releases the underlying badger.DB.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Dir reports the directory this snapshot is rooted at.
func (s *Snapshot) Dir() string { return s.dir }

// EstimatedByteSize reports badger's on-disk LSM+value-log size estimate,
// the input to the corpus manager's byte-budget GC pass (spec.md §4.8).
func (s *Snapshot) EstimatedByteSize() int64 {
	lsm, vlog := s.db.Size()
	return lsm + vlog
}

// RunGC runs one badger value-log GC pass, adapted from the teacher's
// BadgerEngine.RunGC.
func (s *Snapshot) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

// SaveCorpus persists the full corpus: dictionary, node annotations, and
// every currently-tracked component's edges and edge annotations.
func (s *Snapshot) SaveCorpus(c *corpusgraph.Corpus) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := writeNodesBlob(txn, c); err != nil {
			return err
		}
		for _, comp := range c.Components() {
			al, err := c.MutableStorage(comp)
			if err != nil {
				return fmt.Errorf("diskstore: read component %s: %w", comp, err)
			}
			blob := encodeComponent(al)
			data, err := json.Marshal(blob)
			if err != nil {
				return fmt.Errorf("diskstore: marshal component %s: %w", comp, err)
			}
			if err := txn.Set(componentKey(comp), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeNodesBlob(txn *badger.Txn, c *corpusgraph.Corpus) error {
	d := c.Dictionary()
	nodeAnnos := c.NodeAnnotations()

	blob := nodesBlob{
		Strings:    d.All(),
		NodeAnnos:  map[uint32][]annoRecord{},
		NextNodeID: uint32(c.NextFreeNodeID()),
	}
	for _, key := range nodeAnnos.Keys() {
		for _, node := range nodeAnnos.ByKey(key) {
			a, ok := nodeAnnos.Get(node, key)
			if !ok {
				continue
			}
			blob.NodeAnnos[uint32(node)] = append(blob.NodeAnnos[uint32(node)], toAnnoRecord(a))
		}
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("diskstore: marshal nodes blob: %w", err)
	}
	return txn.Set([]byte{prefixNodes}, data)
}

// encodeComponent reads the component's edges and edge annotations for
// persistence. Snapshots are always taken of the mutable AdjacencyList
// form (corpusgraph.Corpus keeps it alongside any cached optimized
// strategy precisely so a snapshot always has a concrete source to walk);
// an optimized read-only strategy is rebuilt from the snapshot on load via
// gs.OptimizeComponent, not persisted directly.
func encodeComponent(al *gs.AdjacencyList) componentBlob {
	var blob componentBlob
	for n := range al.NodeSet() {
		for _, tgt := range al.OutEdges(n) {
			e := graph.Edge{Source: n, Target: tgt}
			rec := edgeRecord{Source: uint32(n), Target: uint32(tgt)}
			for _, a := range al.EdgeAnnos(e) {
				rec.Annos = append(rec.Annos, toAnnoRecord(a))
			}
			blob.Edges = append(blob.Edges, rec)
		}
	}
	return blob
}

// LoadDictionaryAndNodeAnnotations reconstructs the dictionary and node
// annotation store from the persisted nodes blob. Returns (nil, nil, 0,
// false, nil) if no snapshot has ever been written (a brand new corpus).
func (s *Snapshot) LoadDictionaryAndNodeAnnotations() (*dict.Dictionary, *anno.Store[graph.NodeID], uint32, bool, error) {
	var blob nodesBlob
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte{prefixNodes})
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &blob)
		})
	})
	if err != nil {
		return nil, nil, 0, false, fmt.Errorf("diskstore: load nodes blob: %w", err)
	}
	if !found {
		return nil, nil, 0, false, nil
	}

	d := dict.New()
	for _, str := range blob.Strings {
		d.Add(str)
	}
	store := anno.NewStore[graph.NodeID]()
	for nodeID, recs := range blob.NodeAnnos {
		for _, r := range recs {
			store.Add(graph.NodeID(nodeID), fromAnnoRecord(r))
		}
	}
	return d, store, blob.NextNodeID, true, nil
}

// LoadComponent implements corpusgraph.Loader: it returns the persisted
// AdjacencyList for one component, or an empty one if never persisted.
func (s *Snapshot) LoadComponent(_ string, c graph.Component) (*gs.AdjacencyList, error) {
	al := gs.NewAdjacencyList()
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(componentKey(c))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var blob componentBlob
			if err := json.Unmarshal(val, &blob); err != nil {
				return err
			}
			for _, rec := range blob.Edges {
				e := graph.Edge{Source: graph.NodeID(rec.Source), Target: graph.NodeID(rec.Target)}
				al.AddEdge(e)
				for _, r := range rec.Annos {
					al.AddEdgeAnno(e, fromAnnoRecord(r))
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("diskstore: load component %s: %w", c, err)
	}
	return al, nil
}

// SaveUpdateLog persists data (the manager's own JSON-encoded update
// script) under update_log.bin's key. Presence of this key is what
// spec.md §6 means by "update_log.bin optional; present iff updates
// awaiting snapshot" -- diskstore stores the bytes opaquely so it does
// not need to know internal/manager's event schema.
func (s *Snapshot) SaveUpdateLog(data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte{prefixUpdateLog}, data)
	})
}

// LoadUpdateLog returns the persisted update-log bytes, or ok=false if
// none is present.
func (s *Snapshot) LoadUpdateLog() (data []byte, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get([]byte{prefixUpdateLog})
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		ok = true
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("diskstore: load update log: %w", err)
	}
	return data, ok, nil
}

// DeleteUpdateLog removes the update-log key, once its events have been
// folded into a fresh snapshot.
func (s *Snapshot) DeleteUpdateLog() error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte{prefixUpdateLog})
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// ComponentList returns every component currently persisted in this
// snapshot, used during crash recovery to know which components a
// reloaded corpus should register before it is usable.
func (s *Snapshot) ComponentList() ([]graph.Component, error) {
	var out []graph.Component
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(componentPrefix()); it.ValidForPrefix(componentPrefix()); it.Next() {
			comp, ok := parseComponentKey(it.Item().KeyCopy(nil))
			if !ok {
				continue
			}
			out = append(out, comp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("diskstore: list components: %w", err)
	}
	return out, nil
}
