package gs

import "math"

// Registry picks and builds the optimal graph-storage strategy for a
// component from its statistics, implementing the heuristic table of
// spec.md §4.3 (grounded on the original GraphStorageRegistry::
// getImplByHeuristics).
type Registry struct{}

// Optimize returns the Width the heuristic selects for stats. Falls back to
// AdjacencyList when stats are not valid (empty component) or none of the
// specialized rules fire.
func (Registry) Optimize(stats Statistic) Width {
	if !stats.Valid {
		return WidthFallback
	}
	if stats.MaxDepth <= 1 {
		return WidthFallback
	}
	if stats.RootedTree {
		if stats.MaxFanOut <= 1 {
			return narrowestLinear(stats.MaxDepth)
		}
		return narrowestPrePost(stats.Nodes, stats.MaxDepth)
	}
	if !stats.Cyclic && stats.DFSVisitRatio <= 1.03 {
		return narrowestPrePost(stats.Nodes, stats.MaxDepth)
	}
	return WidthFallback
}

func narrowestLinear(maxDepth uint32) Width {
	switch {
	case maxDepth < math.MaxUint8:
		return WidthLinearP8
	case maxDepth < math.MaxUint16:
		return WidthLinearP16
	default:
		return WidthLinearP32
	}
}

func narrowestPrePost(nodes uint64, maxDepth uint32) Width {
	orderFitsU16 := 2*nodes < math.MaxUint16
	levelFitsI8 := maxDepth < math.MaxInt8

	switch {
	case orderFitsU16 && levelFitsI8:
		return WidthPrePostO16L8
	case orderFitsU16:
		return WidthPrePostO16L32
	case levelFitsI8:
		return WidthPrePostO32L8
	default:
		return WidthPrePostO32L32
	}
}

// NameOf returns the Width a built ReadableGS instance reports, for
// `explain` output and tests. Mirrors the original's getName introspection
// over the concrete strategy type (supplemented from original_source).
func NameOf(rgs ReadableGS) Width {
	switch v := rgs.(type) {
	case *LinearStorage[uint8]:
		return v.Width()
	case *LinearStorage[uint16]:
		return v.Width()
	case *LinearStorage[uint32]:
		return v.Width()
	case *PrePostOrderStorage[uint16, int8]:
		return v.Width()
	case *PrePostOrderStorage[uint16, int32]:
		return v.Width()
	case *PrePostOrderStorage[uint32, int8]:
		return v.Width()
	case *PrePostOrderStorage[uint32, int32]:
		return v.Width()
	case *AdjacencyList:
		return WidthFallback
	default:
		return ""
	}
}

// ConvertComponent rebuilds src (typically an AdjacencyList under active
// mutation) into the strategy named by target, walking every outgoing
// edge from the component's roots (src.Roots()) and copying edge
// annotations (spec.md §4.3 Conversion). Returns src unchanged if target is
// WidthFallback or src is already an AdjacencyList being asked to stay one.
func ConvertComponent(src *AdjacencyList, target Width) ReadableGS {
	roots := src.Roots()

	switch target {
	case WidthFallback:
		return src
	case WidthLinearP8:
		return BuildLinear[uint8](roots, src.outEdgesLocked, src.EdgeAnnos, target)
	case WidthLinearP16:
		return BuildLinear[uint16](roots, src.outEdgesLocked, src.EdgeAnnos, target)
	case WidthLinearP32:
		return BuildLinear[uint32](roots, src.outEdgesLocked, src.EdgeAnnos, target)
	case WidthPrePostO16L8:
		return BuildPrePostOrder[uint16, int8](roots, src.outEdgesLocked, src.EdgeAnnos, target)
	case WidthPrePostO16L32:
		return BuildPrePostOrder[uint16, int32](roots, src.outEdgesLocked, src.EdgeAnnos, target)
	case WidthPrePostO32L8:
		return BuildPrePostOrder[uint32, int8](roots, src.outEdgesLocked, src.EdgeAnnos, target)
	case WidthPrePostO32L32:
		return BuildPrePostOrder[uint32, int32](roots, src.outEdgesLocked, src.EdgeAnnos, target)
	default:
		return src
	}
}

// OptimizeComponent computes src's statistics, asks Optimize for the best
// Width, and converts if that width differs from AdjacencyList.
func OptimizeComponent(src *AdjacencyList) (ReadableGS, Width) {
	w := (Registry{}).Optimize(src.Stats())
	return ConvertComponent(src, w), w
}
