package manager

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/diskstore"
)

// TestCrashRecoveryPrefersBackupAndReplaysLog simulates a crash between
// the background writer moving current/ to backup/ and finishing the
// new snapshot: backup/ holds a consistent snapshot plus the update log
// that was current at the time of the move, and current/ has a newer
// log recording one more event than backup's own watermark.
func TestCrashRecoveryPrefersBackupAndReplaysLog(t *testing.T) {
	base := t.TempDir()
	l := newCorpusLoader(base, "tiger")

	require.NoError(t, os.MkdirAll(l.backupDir(), 0o755))
	backupSnap, err := diskstore.Open(l.backupDir())
	require.NoError(t, err)
	require.NoError(t, backupSnap.SaveCorpus(corpusgraph.New("tiger")))
	backupScript := NewScript([]Event{{Kind: EventAddNode, Name: "tok1"}})
	backupScript.Finalize(0)
	data, err := marshalScript(backupScript)
	require.NoError(t, err)
	require.NoError(t, backupSnap.SaveUpdateLog(data))
	require.NoError(t, backupSnap.Close())

	require.NoError(t, os.MkdirAll(l.currentDir(), 0o755))
	currentSnap, err := diskstore.Open(l.currentDir())
	require.NoError(t, err)
	currentScript := NewScript([]Event{
		{Kind: EventAddNode, Name: "tok1", ChangeID: 1},
		{Kind: EventAddNode, Name: "tok2", ChangeID: 2},
	})
	currentScript.LastConsistentChangeID = 2
	data, err = marshalScript(currentScript)
	require.NoError(t, err)
	require.NoError(t, currentSnap.SaveUpdateLog(data))
	require.NoError(t, currentSnap.Close())

	c, err := l.ensureLoaded()
	require.NoError(t, err)

	_, ok := c.NodeIDByName("tok2")
	require.True(t, ok, "event above the backup watermark must be replayed")

	_, err = os.Stat(l.backupDir())
	require.True(t, os.IsNotExist(err), "backup/ must be removed after recovery")
}

func TestEnsureLoadedIsIdempotent(t *testing.T) {
	base := t.TempDir()
	l := newCorpusLoader(base, "tiger")

	c1, err := l.ensureLoaded()
	require.NoError(t, err)
	c2, err := l.ensureLoaded()
	require.NoError(t, err)
	require.Same(t, c1, c2)
}

func TestUnloadForcesReload(t *testing.T) {
	base := t.TempDir()
	l := newCorpusLoader(base, "tiger")

	c1, err := l.ensureLoaded()
	require.NoError(t, err)
	l.unload()
	c2, err := l.ensureLoaded()
	require.NoError(t, err)
	require.NotSame(t, c1, c2)
}
