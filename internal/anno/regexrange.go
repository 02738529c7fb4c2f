package anno

import "strings"

// RegexPrefixRange computes a deterministic [lower, upper] string range a
// regex pattern's matches must fall within, using only the pattern's first
// 10 literal characters (spec.md §4.2/§4.5). It is a conservative estimate:
// a real match may sort outside the range if the pattern contains
// alternation or anchoring this heuristic doesn't unpack, in which case
// callers should treat the range as advisory for cost estimation only, never
// as a correctness filter.
//
// Shared by GuessMaxCountRegex and the regex value search's planner-facing
// cardinality estimate, rather than duplicated per spec.md's two mentions.
func RegexPrefixRange(pattern string) (lower, upper string) {
	const maxPrefix = 10
	var lowerB, upperB strings.Builder
	for i, r := range pattern {
		if i >= maxPrefix {
			break
		}
		switch r {
		case '.', '*', '+', '?', '(', ')', '[', ']', '{', '}', '|', '^', '$', '\\':
			// First metacharacter ends the known-literal prefix: anything
			// from here on could reach into a wider range.
			return lowerB.String(), upperB.String() + "￿"
		default:
			lowerB.WriteRune(r)
			upperB.WriteRune(r)
		}
	}
	return lowerB.String(), upperB.String() + "￿"
}
