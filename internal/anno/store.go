// Package anno implements the generic annotation store (spec.md §4.2): for
// an entity kind T (node IDs or edges), a forward map T->(key)->value, an
// inverse multimap (key,value)->T, per-key cardinality counters, and
// optional per-key value histograms used for selectivity estimation.
//
// The same implementation backs both the node annotation store and every
// graph-storage instance's edge annotation store by instantiating Store
// with a different T.
package anno

import (
	"math/rand"
	"sort"

	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// Store is the annotation store generic over the entity kind T it
// annotates. T is typically graph.NodeID or graph.Edge.
//
// Store is not safe for concurrent use; callers (the corpus graph, or a
// writable graph-storage instance) are responsible for serializing writers
// against readers per the single-writer/multi-reader model in spec.md §5.
type Store[T comparable] struct {
	forward map[T]map[graph.AnnoKey]graph.StringID
	inverse map[graph.Annotation]map[T]struct{}
	keyCnt  map[graph.AnnoKey]uint64
	hist    map[graph.AnnoKey]*Histogram
}

// NewStore returns an empty annotation store for entity kind T.
func NewStore[T comparable]() *Store[T] {
	return &Store[T]{
		forward: make(map[T]map[graph.AnnoKey]graph.StringID),
		inverse: make(map[graph.Annotation]map[T]struct{}),
		keyCnt:  make(map[graph.AnnoKey]uint64),
	}
}

// Add inserts an annotation for item, incrementing the key's counter.
// Invariant I3: forward and inverse entries are always inserted together.
func (s *Store[T]) Add(item T, a graph.Annotation) {
	fwd, ok := s.forward[item]
	if !ok {
		fwd = make(map[graph.AnnoKey]graph.StringID)
		s.forward[item] = fwd
	}
	if old, existed := fwd[a.Key]; existed {
		// Re-setting the same key: drop the stale inverse entry and
		// counter bump so both maps stay consistent with the forward map.
		s.removeInverse(graph.Annotation{Key: a.Key, Value: old}, item)
	} else {
		s.keyCnt[a.Key]++
	}
	fwd[a.Key] = a.Value
	s.addInverse(a, item)
}

func (s *Store[T]) addInverse(a graph.Annotation, item T) {
	set, ok := s.inverse[a]
	if !ok {
		set = make(map[T]struct{})
		s.inverse[a] = set
	}
	set[item] = struct{}{}
}

func (s *Store[T]) removeInverse(a graph.Annotation, item T) {
	if set, ok := s.inverse[a]; ok {
		delete(set, item)
		if len(set) == 0 {
			delete(s.inverse, a)
		}
	}
}

// BulkAdd inserts many annotations at once, calling Add for each
// (item, annotation) pair in order. A convenience wrapper for the
// bulk-load path used by corpus import, not a distinct code path.
func (s *Store[T]) BulkAdd(items []T, annos []graph.Annotation) {
	for i := range items {
		s.Add(items[i], annos[i])
	}
}

// Delete removes the forward entry for (item, key), its matching inverse
// entry, and decrements the key counter, dropping the key once it reaches
// zero. No-op (silent) if the key is not present on item (spec.md §4.2
// Failure).
func (s *Store[T]) Delete(item T, key graph.AnnoKey) {
	fwd, ok := s.forward[item]
	if !ok {
		return
	}
	val, ok := fwd[key]
	if !ok {
		return
	}
	delete(fwd, key)
	if len(fwd) == 0 {
		delete(s.forward, item)
	}
	s.removeInverse(graph.Annotation{Key: key, Value: val}, item)

	if c := s.keyCnt[key]; c <= 1 {
		delete(s.keyCnt, key)
	} else {
		s.keyCnt[key] = c - 1
	}
}

// DeleteAll removes every annotation belonging to item, across all keys.
// Used when a node (or edge) is deleted from the graph.
func (s *Store[T]) DeleteAll(item T) {
	fwd, ok := s.forward[item]
	if !ok {
		return
	}
	for key := range fwd {
		s.Delete(item, key)
	}
}

// Get returns the annotation for item under (ns, name), if any.
func (s *Store[T]) Get(item T, key graph.AnnoKey) (graph.Annotation, bool) {
	fwd, ok := s.forward[item]
	if !ok {
		return graph.Annotation{}, false
	}
	val, ok := fwd[key]
	if !ok {
		return graph.Annotation{}, false
	}
	return graph.Annotation{Key: key, Value: val}, true
}

// GetAll returns every annotation attached to item.
func (s *Store[T]) GetAll(item T) []graph.Annotation {
	fwd, ok := s.forward[item]
	if !ok {
		return nil
	}
	out := make([]graph.Annotation, 0, len(fwd))
	for k, v := range fwd {
		out = append(out, graph.Annotation{Key: k, Value: v})
	}
	return out
}

// KeyCount returns the number of forward entries stored under key,
// equal by invariant I3 to the exact count of matching annotations.
func (s *Store[T]) KeyCount(key graph.AnnoKey) uint64 {
	return s.keyCnt[key]
}

// ByKey returns every item annotated with the given key, regardless of
// value (prefix seek on (name[, ns])).
func (s *Store[T]) ByKey(key graph.AnnoKey) []T {
	seen := make(map[T]struct{})
	for a, items := range s.inverse {
		if a.Key == key {
			for item := range items {
				seen[item] = struct{}{}
			}
		}
	}
	out := make([]T, 0, len(seen))
	for item := range seen {
		out = append(out, item)
	}
	return out
}

// ByValue returns every item annotated with the exact (key, value) pair
// (prefix seek on (name[, ns], value)).
func (s *Store[T]) ByValue(a graph.Annotation) []T {
	set := s.inverse[a]
	out := make([]T, 0, len(set))
	for item := range set {
		out = append(out, item)
	}
	return out
}

// ByValueFunc returns every item whose annotation under key has a value
// satisfying match.
func (s *Store[T]) ByValueFunc(key graph.AnnoKey, match func(val graph.StringID) bool) []T {
	var out []T
	for a, items := range s.inverse {
		if a.Key == key && match(a.Value) {
			for item := range items {
				out = append(out, item)
			}
		}
	}
	return out
}

// Keys returns every distinct AnnoKey currently carrying at least one
// annotation.
func (s *Store[T]) Keys() []graph.AnnoKey {
	out := make([]graph.AnnoKey, 0, len(s.keyCnt))
	for k := range s.keyCnt {
		out = append(out, k)
	}
	return out
}

// rngSource is the package's fixed-seed random source, so
// CalculateStatistics samples the same values on every run.
var rngSource = rand.New(rand.NewSource(1))

// CalculateStatistics computes a Histogram for every key, sampling up to
// sampleSize values uniformly at random, sorting them, and picking up to
// maxBuckets evenly spaced bucket bounds (fewer when fewer distinct values
// exist), per spec.md §4.2.
func (s *Store[T]) CalculateStatistics(strOf func(graph.StringID) string, sampleSize, maxBuckets int) {
	s.hist = make(map[graph.AnnoKey]*Histogram)
	for key := range s.keyCnt {
		values := s.collectValues(key)
		if len(values) == 0 {
			continue
		}
		sampled := sampleValues(values, sampleSize)
		sort.Slice(sampled, func(i, j int) bool { return strOf(sampled[i]) < strOf(sampled[j]) })

		bounds := pickBucketBounds(sampled, maxBuckets)
		strBounds := make([]string, len(bounds))
		for i, v := range bounds {
			strBounds[i] = strOf(v)
		}
		s.hist[key] = &Histogram{Bounds: strBounds, Universe: uint64(len(values))}
	}
}

func (s *Store[T]) collectValues(key graph.AnnoKey) []graph.StringID {
	var out []graph.StringID
	for a, items := range s.inverse {
		if a.Key == key {
			for range items {
				out = append(out, a.Value)
			}
		}
	}
	return out
}

func sampleValues(values []graph.StringID, n int) []graph.StringID {
	if len(values) <= n {
		out := make([]graph.StringID, len(values))
		copy(out, values)
		return out
	}
	idx := rngSource.Perm(len(values))[:n]
	out := make([]graph.StringID, n)
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

func pickBucketBounds(sorted []graph.StringID, maxBuckets int) []graph.StringID {
	if len(sorted) == 0 {
		return nil
	}
	n := maxBuckets
	if n > len(sorted) {
		n = len(sorted)
	}
	if n == 0 {
		return nil
	}
	out := make([]graph.StringID, 0, n)
	step := float64(len(sorted)) / float64(n)
	for i := 0; i < n; i++ {
		idx := int(float64(i) * step)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		out = append(out, sorted[idx])
	}
	return out
}

// Histogram is the sorted-bounds sample used for GuessMaxCount estimation.
// Bounds store string values directly (not IDs) per spec.md §4.2, so
// histograms survive dictionary growth after the statistics pass.
type Histogram struct {
	Bounds   []string // sorted ascending
	Universe uint64   // total number of values this histogram was sampled from
}

// GuessMaxCount estimates the number of items whose value for key falls in
// [lower, upper], summing fraction-of-buckets-overlapping across every key
// matching the optional namespace filter. Returns 0 when no statistics are
// available (spec.md §4.2 Failure / §7 recoverable).
func (s *Store[T]) GuessMaxCount(nsFilter func(graph.AnnoKey) bool, lower, upper string) int64 {
	if s.hist == nil {
		return 0
	}
	var total int64
	for key, h := range s.hist {
		if nsFilter != nil && !nsFilter(key) {
			continue
		}
		total += h.estimateRange(lower, upper)
	}
	return total
}

func (h *Histogram) estimateRange(lower, upper string) int64 {
	if len(h.Bounds) == 0 {
		return 0
	}
	lo := sort.SearchStrings(h.Bounds, lower)
	hiIdx := sort.Search(len(h.Bounds), func(i int) bool { return h.Bounds[i] > upper })
	overlap := hiIdx - lo
	if overlap <= 0 {
		return 0
	}
	frac := float64(overlap) / float64(len(h.Bounds))
	return ceilInt64(frac * float64(h.Universe))
}

// GuessMaxCountRegex estimates the number of items matching pattern under
// keys passing nsFilter, by feeding the pattern's deterministic prefix
// range into GuessMaxCount.
func (s *Store[T]) GuessMaxCountRegex(nsFilter func(graph.AnnoKey) bool, pattern string) int64 {
	lower, upper := RegexPrefixRange(pattern)
	return s.GuessMaxCount(nsFilter, lower, upper)
}

func ceilInt64(f float64) int64 {
	i := int64(f)
	if float64(i) < f {
		i++
	}
	return i
}
