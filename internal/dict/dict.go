// Package dict implements the string dictionary: a bijective map between
// strings and the compact StringIDs used everywhere else in the corpus
// engine so that annotation keys, values, and names never carry their full
// string weight through the hot query path.
//
// IDs are stable for the lifetime of a corpus and the dictionary only ever
// grows: strings cannot be removed once interned, matching the bulk-load
// behavior of the original corpus format (spec.md §4.1).
package dict

import (
	"fmt"
	"regexp"
	"sort"
)

// ErrUnknownID is returned by Str when called with an ID that was never
// interned. Per spec.md §7 this is a programmer error (fatal), but the
// dictionary itself returns an error rather than panicking so that callers
// in a position to recover (e.g. a corrupted on-disk load) still can.
type ErrUnknownID uint32

func (e ErrUnknownID) Error() string {
	return fmt.Sprintf("dict: unknown string id %d", uint32(e))
}

// Dictionary is a thread-unsafe bijective string<->id map. Callers needing
// concurrent access (e.g. a corpus graph shared by readers) must guard it
// with their own lock, matching the ownership rule that the corpus graph
// exclusively owns the dictionary (spec.md §3 Ownership).
type Dictionary struct {
	strToID map[string]uint32
	idToStr []string
}

// New returns a Dictionary with the reserved empty string already interned
// at ID 0.
func New() *Dictionary {
	d := &Dictionary{
		strToID: make(map[string]uint32),
		idToStr: make([]string, 0, 1),
	}
	d.Add("")
	return d
}

// Add interns s, returning its existing ID if already present (idempotent).
func (d *Dictionary) Add(s string) uint32 {
	if id, ok := d.strToID[s]; ok {
		return id
	}
	id := uint32(len(d.idToStr))
	d.strToID[s] = id
	d.idToStr = append(d.idToStr, s)
	return id
}

// IDOf looks up the ID for s without interning it.
func (d *Dictionary) IDOf(s string) (uint32, bool) {
	id, ok := d.strToID[s]
	return id, ok
}

// Str resolves id back to its string. Returns ErrUnknownID for an id that
// was never interned.
func (d *Dictionary) Str(id uint32) (string, error) {
	if int(id) >= len(d.idToStr) {
		return "", ErrUnknownID(id)
	}
	return d.idToStr[id], nil
}

// MustStr is Str without the error return, for call sites that have already
// established the id is valid (e.g. iterating a map keyed by known ids).
// Panics on an unknown id, matching the "fatal" classification of reverse
// lookup failures in spec.md §7.
func (d *Dictionary) MustStr(id uint32) string {
	s, err := d.Str(id)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of interned strings, including the empty string.
func (d *Dictionary) Len() int {
	return len(d.idToStr)
}

// FindRegex returns the set of IDs whose interned string matches pattern.
// Used by regex annotation search to narrow candidate values without
// re-compiling the pattern per value.
func (d *Dictionary) FindRegex(pattern string) (map[uint32]struct{}, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("dict: invalid regex %q: %w", pattern, err)
	}
	out := make(map[uint32]struct{})
	for id, s := range d.idToStr {
		if re.MatchString(s) {
			out[uint32(id)] = struct{}{}
		}
	}
	return out, nil
}

// All returns a copy of the interned strings in id order (index i holds
// the string for StringID i), used by internal/diskstore to persist and
// reload a dictionary without disturbing its id assignment.
func (d *Dictionary) All() []string {
	out := make([]string, len(d.idToStr))
	copy(out, d.idToStr)
	return out
}

// SortedStrings returns a copy of the interned strings sorted
// lexicographically. The ids are not returned: position in the result
// does not correspond to a StringID.
func (d *Dictionary) SortedStrings() []string {
	out := make([]string, len(d.idToStr))
	copy(out, d.idToStr)
	sort.Strings(out)
	return out
}
