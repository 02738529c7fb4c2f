package planner

import (
	"sort"
	"strings"

	"github.com/nornicorpus/nornicorpus/internal/dict"
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// FrequencyDef names one grouping column of a frequency table: the
// annotation identified by Key read off the match bound to Var.
type FrequencyDef struct {
	Var string
	Key graph.AnnoKey
}

// ResultTuple is one solution of a query: every bound variable's match,
// keyed by variable name, as produced by the executor.
type ResultTuple map[string]graph.Match

// FrequencyRow is one row of a frequency table: the tuple of grouping
// values and how many result tuples shared them.
type FrequencyRow struct {
	Values []string
	Count  int64
}

// FrequencyTable is a frequency aggregation's result, sorted by
// descending count (ties broken by value tuple) as the original
// `frequency` entry point does.
type FrequencyTable []FrequencyRow

// Frequency groups rows by the annotation values named in defs,
// reading each def's value off the tuple's bound match via annotation
// lookup (spec.md Non-goals list names `frequency` as a retained
// aggregation alongside `count`/`find`).
func Frequency(rows []ResultTuple, defs []FrequencyDef, d *dict.Dictionary) (FrequencyTable, error) {
	counts := map[string]int64{}
	order := map[string][]string{}

	for _, row := range rows {
		values := make([]string, len(defs))
		for i, def := range defs {
			m, ok := row[def.Var]
			if !ok || m.Anno.Key != def.Key {
				values[i] = ""
				continue
			}
			values[i] = d.MustStr(uint32(m.Anno.Value))
		}
		key := strings.Join(values, "\x00")
		counts[key]++
		order[key] = values
	}

	table := make(FrequencyTable, 0, len(counts))
	for key, count := range counts {
		table = append(table, FrequencyRow{Values: order[key], Count: count})
	}
	sort.Slice(table, func(i, j int) bool {
		if table[i].Count != table[j].Count {
			return table[i].Count > table[j].Count
		}
		return strings.Join(table[i].Values, "\x00") < strings.Join(table[j].Values, "\x00")
	})
	return table, nil
}
