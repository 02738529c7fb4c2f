package manager

import (
	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
)

// Rough per-entity byte costs for the ristretto cache's cost function.
// These are not exact (ristretto's eviction only needs a relative
// ordering, not a precise accounting -- spec.md §4.8 only requires
// "estimated size"), so they are plain constants rather than a
// reflect.Sizeof walk.
const (
	bytesPerNode       = 96  // dictionary entry + node annotation(s)
	bytesPerEdge       = 48  // adjacency-list edge slot
	bytesPerEdgeAnno   = 32
)

// estimateCorpusBytes sums a rough in-memory footprint for c, used as a
// ristretto.Cache cost so the byte-budget eviction in spec.md §4.8 can
// rank corpora by estimated size without walking every string and
// annotation by hand.
func estimateCorpusBytes(c *corpusgraph.Corpus) int64 {
	total := int64(c.NodeCount()) * bytesPerNode

	for _, comp := range c.Components() {
		st, err := c.Storage(comp)
		if err != nil {
			continue
		}
		total += componentBytes(st)
	}
	return total
}

func componentBytes(st gs.ReadableGS) int64 {
	stat := st.Stats()
	if !stat.Valid {
		return 0
	}
	edges := int64(float64(stat.Nodes) * stat.AvgFanOut)
	return edges * (bytesPerEdge + bytesPerEdgeAnno)
}
