package manager

import (
	"os"

	"go.uber.org/zap"

	"github.com/nornicorpus/nornicorpus/internal/diskstore"
)

// backgroundWriter performs the move-current-to-backup / write-new /
// remove-backup choreography of spec.md §4.8 step 5, interruptible at
// the four checkpoints named in §5: between acquiring the read lock;
// before moving current to backup; before writing the new snapshot;
// before deleting backup.
type backgroundWriter struct {
	stop chan struct{}
	done chan struct{}
}

func startBackgroundWriter(l *CorpusLoader, logger *zap.Logger) *backgroundWriter {
	w := &backgroundWriter{stop: make(chan struct{}), done: make(chan struct{})}
	go w.run(l, logger)
	return w
}

func (w *backgroundWriter) interrupted() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// kill signals the writer to stop at its next checkpoint; join waits
// for it to actually exit. apply_update always calls both in sequence
// before starting a new writer (spec.md §4.8 step 1 / §5 "apply_update
// waits for the writer to reach a checkpoint before proceeding").
func (w *backgroundWriter) kill() { close(w.stop) }
func (w *backgroundWriter) join() { <-w.done }

func (w *backgroundWriter) run(l *CorpusLoader, logger *zap.Logger) {
	defer close(w.done)

	l.mu.RLock()
	c := l.corpus
	l.mu.RUnlock()
	if w.interrupted() || c == nil {
		return
	}

	if w.interrupted() {
		return
	}
	if dirExists(l.currentDir()) {
		if err := os.RemoveAll(l.backupDir()); err != nil {
			logger.Error("background writer: clear stale backup", zap.String("corpus", l.name), zap.Error(err))
			return
		}
		if err := os.Rename(l.currentDir(), l.backupDir()); err != nil {
			logger.Error("background writer: move current to backup", zap.String("corpus", l.name), zap.Error(err))
			return
		}
	}

	if w.interrupted() {
		return
	}
	snap, err := diskstore.Open(l.currentDir())
	if err != nil {
		logger.Error("background writer: open new current", zap.String("corpus", l.name), zap.Error(err))
		return
	}
	if err := snap.SaveCorpus(c); err != nil {
		logger.Error("background writer: save snapshot", zap.String("corpus", l.name), zap.Error(err))
		snap.Close()
		return
	}
	if err := snap.Close(); err != nil {
		logger.Error("background writer: close new snapshot", zap.String("corpus", l.name), zap.Error(err))
		return
	}

	if w.interrupted() {
		return
	}
	if err := os.RemoveAll(l.backupDir()); err != nil {
		logger.Error("background writer: remove backup", zap.String("corpus", l.name), zap.Error(err))
	}
}
