package manager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/diskstore"
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

const (
	currentDirName = "current"
	backupDirName  = "backup"
)

func unmarshalScript(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.consistent = true
	return &s, nil
}

// CorpusLoader is a read-write lock over a lazily-loaded corpus graph
// (spec.md §4.8). get_corpus returns the loader immediately; the actual
// disk load happens the first time a caller needs the corpus, under the
// loader's own write lock.
type CorpusLoader struct {
	name string
	dir  string // <base>/<name>

	mu           sync.RWMutex
	corpus       *corpusgraph.Corpus
	loaded       bool
	lastChangeID uint64

	writerMu sync.Mutex
	writer   *backgroundWriter
}

func newCorpusLoader(base, name string) *CorpusLoader {
	return &CorpusLoader{name: name, dir: filepath.Join(base, name)}
}

func (l *CorpusLoader) currentDir() string { return filepath.Join(l.dir, currentDirName) }
func (l *CorpusLoader) backupDir() string  { return filepath.Join(l.dir, backupDirName) }

// ensureLoaded loads the corpus from disk (preferring backup/ per crash
// recovery) on first access, fully materializing every persisted
// component (spec.md §4.8 "fully load the corpus").
func (l *CorpusLoader) ensureLoaded() (*corpusgraph.Corpus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureLoadedLocked()
}

// ensureLoadedLocked is ensureLoaded for a caller that already holds
// l.mu for writing (internal/manager.ApplyUpdate's step 3).
func (l *CorpusLoader) ensureLoadedLocked() (*corpusgraph.Corpus, error) {
	if l.loaded {
		return l.corpus, nil
	}
	c, err := l.loadLocked()
	if err != nil {
		return nil, err
	}
	l.corpus = c
	l.loaded = true
	return c, nil
}

// loadLocked implements the load + crash-recovery sequence of spec.md
// §4.8's final paragraph: prefer backup/ (the last consistent snapshot)
// if present, then replay any newer update_log found in current/ above
// the watermark the loaded snapshot was saved at, then rewrite current/
// and drop backup/.
func (l *CorpusLoader) loadLocked() (*corpusgraph.Corpus, error) {
	hasBackup := dirExists(l.backupDir())
	srcDir := l.currentDir()
	if hasBackup {
		srcDir = l.backupDir()
	}

	snap, err := diskstore.Open(srcDir)
	if err != nil {
		return nil, fmt.Errorf("manager: open snapshot %s: %w", srcDir, err)
	}
	c, err := loadCorpusFromSnapshot(l.name, snap)
	watermark := readWatermark(snap)
	if closeErr := snap.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("manager: close snapshot %s: %w", srcDir, closeErr)
	}
	if err != nil {
		return nil, err
	}
	l.lastChangeID = watermark

	if hasBackup {
		if err := l.replayCurrentLogAbove(c, watermark); err != nil {
			return nil, err
		}
		if err := l.rewriteSnapshotAndDropBackup(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func loadCorpusFromSnapshot(name string, snap *diskstore.Snapshot) (*corpusgraph.Corpus, error) {
	d, nodeAnnos, nextID, ok, err := snap.LoadDictionaryAndNodeAnnotations()
	if err != nil {
		return nil, fmt.Errorf("manager: load corpus %s: %w", name, err)
	}
	if !ok {
		return corpusgraph.New(name), nil
	}
	c := corpusgraph.NewFromSnapshot(name, d, nodeAnnos, graph.NodeID(nextID))
	comps, err := snap.ComponentList()
	if err != nil {
		return nil, fmt.Errorf("manager: list components for %s: %w", name, err)
	}
	for _, comp := range comps {
		c.RegisterComponent(comp)
	}
	c.SetLoader(snap)
	for _, comp := range comps {
		if err := c.EnsureLoaded(comp); err != nil {
			return nil, fmt.Errorf("manager: load component %s for %s: %w", comp, name, err)
		}
	}
	return c, nil
}

func readWatermark(snap *diskstore.Snapshot) uint64 {
	data, ok, err := snap.LoadUpdateLog()
	if err != nil || !ok {
		return 0
	}
	script, err := unmarshalScript(data)
	if err != nil {
		return 0
	}
	return script.LastConsistentChangeID
}

// replayCurrentLogAbove replays, against the just-loaded backup
// snapshot c, any events recorded in current/'s update_log with a
// change-id above watermark (the change-id the backup was consistent
// at) -- the events current/ had accumulated but never got to persist
// as a full snapshot before the crash.
func (l *CorpusLoader) replayCurrentLogAbove(c *corpusgraph.Corpus, watermark uint64) error {
	data, ok, err := readUpdateLog(l.currentDir())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	script, err := unmarshalScript(data)
	if err != nil {
		return fmt.Errorf("manager: parse update log for %s: %w", l.name, err)
	}
	if err := script.ReplayAbove(c, watermark); err != nil {
		return err
	}
	if script.LastConsistentChangeID > l.lastChangeID {
		l.lastChangeID = script.LastConsistentChangeID
	}
	return nil
}

func readUpdateLog(dir string) ([]byte, bool, error) {
	if !dirExists(dir) {
		return nil, false, nil
	}
	snap, err := diskstore.Open(dir)
	if err != nil {
		return nil, false, fmt.Errorf("diskstore: open %s: %w", dir, err)
	}
	defer snap.Close()
	return snap.LoadUpdateLog()
}

// rewriteSnapshotAndDropBackup persists the recovered, replayed corpus
// to current/ and removes backup/, completing crash recovery.
func (l *CorpusLoader) rewriteSnapshotAndDropBackup(c *corpusgraph.Corpus) error {
	if err := os.RemoveAll(l.currentDir()); err != nil {
		return fmt.Errorf("manager: clear current dir for %s: %w", l.name, err)
	}
	snap, err := diskstore.Open(l.currentDir())
	if err != nil {
		return fmt.Errorf("manager: open current dir for %s: %w", l.name, err)
	}
	if err := snap.SaveCorpus(c); err != nil {
		snap.Close()
		return fmt.Errorf("manager: rewrite snapshot for %s: %w", l.name, err)
	}
	if err := snap.Close(); err != nil {
		return fmt.Errorf("manager: close rewritten snapshot for %s: %w", l.name, err)
	}
	return os.RemoveAll(l.backupDir())
}

// unload drops the in-memory corpus, reclaiming its byte budget; the
// next ensureLoaded call reloads it from disk (spec.md §4.8 GC pass).
func (l *CorpusLoader) unload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.corpus = nil
	l.loaded = false
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
