// Package manager implements the corpus manager of spec.md §4.8: a
// base directory holding one subdirectory per corpus, lazy per-corpus
// loading guarded by a read-write lock, a ristretto byte-budget cache
// driving eviction, and the apply_update protocol with its background
// snapshot writer.
//
// Grounded on the teacher's WAL/engine pairing (pkg/storage/wal.go,
// pkg/storage/badger.go) for the "mutate in memory, persist durably in
// the background, recover from the last consistent point" shape, sorted
// from Neo4j-style single-engine durability into nornicorpus's
// per-corpus snapshot-plus-update-log scheme.
package manager

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"github.com/nornicorpus/nornicorpus/internal/config"
	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/diskstore"
	"github.com/nornicorpus/nornicorpus/internal/executor"
	"github.com/nornicorpus/nornicorpus/internal/planner"
)

// Manager owns every loaded corpus and enforces the byte budget across
// them (spec.md §4.8).
type Manager struct {
	baseDir string
	cfg     *config.Config
	logger  *zap.Logger

	mapMu   sync.Mutex // guards loaders: lookup/insert only, never held during load
	loaders map[string]*CorpusLoader

	cache *ristretto.Cache[string, *CorpusLoader]
}

// New constructs a Manager rooted at cfg.Manager.DataDir.
func New(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		baseDir: cfg.Manager.DataDir,
		cfg:     cfg,
		logger:  logger,
		loaders: make(map[string]*CorpusLoader),
	}

	maxCost := cfg.Manager.ByteBudget
	if maxCost <= 0 {
		maxCost = 1 << 30
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *CorpusLoader]{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
		OnEvict: func(item *ristretto.Item[*CorpusLoader]) {
			item.Value.unload()
			logger.Info("corpus evicted", zap.String("corpus", item.Value.name))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("manager: build cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// Close releases the manager's cache resources.
func (m *Manager) Close() {
	m.cache.Close()
}

// loaderFor returns the CorpusLoader for name, inserting an empty one
// if absent. mapMu is held only for this lookup/insert, never across a
// load (spec.md §5 "Shared-resource policy").
func (m *Manager) loaderFor(name string) *CorpusLoader {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	l, ok := m.loaders[name]
	if !ok {
		l = newCorpusLoader(m.baseDir, name)
		m.loaders[name] = l
	}
	return l
}

// Corpus returns name's loaded corpus graph, for callers (the convert
// CLI subcommand, subgraph/frequency requests) that need direct access
// beyond Count/Find/CountMulti.
func (m *Manager) Corpus(name string) (*corpusgraph.Corpus, error) {
	return m.getCorpus(name)
}

// getCorpus returns name's loaded corpus graph, lazily loading it and
// running the byte-budget GC pass on completion (spec.md §4.8).
func (m *Manager) getCorpus(name string) (*corpusgraph.Corpus, error) {
	l := m.loaderFor(name)
	c, err := l.ensureLoaded()
	if err != nil {
		return nil, err
	}
	m.touchCache(name, l, c)
	return c, nil
}

// touchCache records name's estimated size with the ristretto cache,
// letting its own eviction policy perform the "walk by estimated size,
// unload until under budget" GC pass from spec.md §4.8 without
// nornicorpus hand-rolling that walk.
func (m *Manager) touchCache(name string, l *CorpusLoader, c *corpusgraph.Corpus) {
	m.cache.Set(name, l, estimateCorpusBytes(c))
	m.cache.Wait()
}

// ApplyUpdate runs the five-step protocol of spec.md §4.8 against the
// named corpus (created fresh if it does not yet exist).
func (m *Manager) ApplyUpdate(name string, script *Script) error {
	l := m.loaderFor(name)

	// Step 1: kill any background writer for this corpus and join it.
	l.writerMu.Lock()
	if l.writer != nil {
		l.writer.kill()
		l.writer.join()
		l.writer = nil
	}
	l.writerMu.Unlock()

	l.mu.Lock()
	// Step 3: acquire the corpus write lock and fully load the corpus.
	c, err := l.ensureLoadedLocked()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("manager: load %s for update: %w", name, err)
	}

	// Step 2: if the script is not marked consistent, finalize it.
	script.Finalize(l.lastChangeID)

	// Step 4: apply events in order.
	if err := script.Apply(c); err != nil {
		// Drop the partially updated corpus so the next access reloads
		// it from disk.
		l.corpus = nil
		l.loaded = false
		l.mu.Unlock()
		return fmt.Errorf("manager: apply update to %s: %w", name, err)
	}

	data, err := marshalScript(script)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("manager: marshal update log for %s: %w", name, err)
	}
	if err := persistUpdateLog(l.currentDir(), data); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("manager: persist update log for %s: %w", name, err)
	}
	l.lastChangeID = script.LastConsistentChangeID
	l.mu.Unlock()

	m.touchCache(name, l, c)

	// Step 5: start a new background writer to fold the update log
	// into a fresh snapshot.
	l.writerMu.Lock()
	l.writer = startBackgroundWriter(l, m.logger)
	l.writerMu.Unlock()

	return nil
}

func marshalScript(s *Script) ([]byte, error) {
	return json.Marshal(s)
}

func persistUpdateLog(currentDir string, data []byte) error {
	snap, err := diskstore.Open(currentDir)
	if err != nil {
		return err
	}
	defer snap.Close()
	return snap.SaveUpdateLog(data)
}

// Count returns the number of matches for plan against name's corpus,
// 0 for a corpus with no matches or that does not exist (spec.md §7
// "count returns 0 on empty result").
func (m *Manager) Count(name string, input planner.PlanInput) (int64, error) {
	it, err := m.buildIterator(name, input)
	if err != nil {
		return 0, err
	}
	var n int64
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		n++
	}
	return n, nil
}

// CountMulti sums Count across every named corpus, visited in sorted
// name order, the Open Question decision of SPEC_FULL.md §5.3 (name-
// sort + concatenation rather than a merged cross-corpus index).
func (m *Manager) CountMulti(names []string, input planner.PlanInput) (int64, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var total int64
	for _, name := range sorted {
		n, err := m.Count(name, input)
		if err != nil {
			return 0, fmt.Errorf("manager: count %s: %w", name, err)
		}
		total += n
	}
	return total, nil
}

// Find returns up to limit result tuples starting at offset, an empty
// slice once offset is at or past the result count (spec.md §7).
func (m *Manager) Find(name string, input planner.PlanInput, offset, limit int) ([]executor.Tuple, error) {
	it, err := m.buildIterator(name, input)
	if err != nil {
		return nil, err
	}
	var out []executor.Tuple
	skipped := 0
	for len(out) < limit || limit <= 0 {
		tup, ok := it.Next()
		if !ok {
			break
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, tup)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Manager) buildIterator(name string, input planner.PlanInput) (executor.Iterator, error) {
	c, err := m.getCorpus(name)
	if err != nil {
		return nil, fmt.Errorf("manager: load %s: %w", name, err)
	}
	r := newCorpusResolver(c)
	root, err := planner.Plan(input, m.cfg.Planner, r, r)
	if err != nil {
		return nil, fmt.Errorf("manager: plan query on %s: %w", name, err)
	}
	it, err := executor.Build(root, r, m.cfg.Executor)
	if err != nil {
		return nil, fmt.Errorf("manager: build executor for %s: %w", name, err)
	}
	return it, nil
}
