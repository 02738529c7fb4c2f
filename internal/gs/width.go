package gs

// UnsignedPos is the set of fixed-width unsigned integer types LinearStorage
// and PrePostOrderStorage's Order parameter can be instantiated with. The
// registry picks the narrowest one that fits the component's observed
// statistics (spec.md §4.3).
type UnsignedPos interface {
	~uint8 | ~uint16 | ~uint32
}

// SignedLevel is the set of fixed-width signed integer types
// PrePostOrderStorage's Level parameter can be instantiated with.
type SignedLevel interface {
	~int8 | ~int32
}

// Width identifies a concrete graph-storage strategy instantiation by name,
// for the registry's introspection (NameOf) and for choosing which
// instantiation to build (ConvertComponent), mirroring the original
// GraphStorageRegistry::getName / createGraphStorage pair.
type Width string

const (
	WidthFallback      Width = "fallback" // AdjacencyList
	WidthLinearP8      Width = "linearP8"
	WidthLinearP16     Width = "linearP16"
	WidthLinearP32     Width = "linear" // widest Linear keeps the original's unsuffixed name
	WidthPrePostO16L8  Width = "prepostorderO16L8"
	WidthPrePostO16L32 Width = "prepostorderO16L32"
	WidthPrePostO32L8  Width = "prepostorderO32L8"
	WidthPrePostO32L32 Width = "prepostorder" // widest PrePostOrder keeps the original's unsuffixed name
)
