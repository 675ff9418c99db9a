package native

import "fmt"

// Tag packs a layer and a data/text type into one identifier. The layer is
// in the low 32 bits, the type in the high 32 bits.
type Tag uint64

// MakeTag encodes a (layer, type) pair.
func MakeTag(layer, typ uint32) Tag {
	return Tag(uint64(typ)<<32 | uint64(layer))
}

// Layer returns the encoded layer.
func (t Tag) Layer() uint32 { return uint32(t) }

// Type returns the encoded datatype or texttype.
func (t Tag) Type() uint32 { return uint32(t >> 32) }

// WithLayer returns t with its layer replaced.
func (t Tag) WithLayer(layer uint32) Tag { return MakeTag(layer, t.Type()) }

// WithType returns t with its type replaced.
func (t Tag) WithType(typ uint32) Tag { return MakeTag(t.Layer(), typ) }

func (t Tag) String() string {
	return fmt.Sprintf("%d/%d", t.Layer(), t.Type())
}

// FilterOp combines the layer and type membership tests of a filter.
type FilterOp uint8

const (
	FilterAnd FilterOp = iota
	FilterOr
	FilterXor
	FilterNand
	FilterNor
	FilterNxor
)

var filterOpNames = map[string]FilterOp{
	"and":  FilterAnd,
	"or":   FilterOr,
	"xor":  FilterXor,
	"nand": FilterNand,
	"nor":  FilterNor,
	"nxor": FilterNxor,
}

// ParseFilterOp parses an operation name.
func ParseFilterOp(s string) (FilterOp, bool) {
	op, ok := filterOpNames[s]
	return op, ok
}

func (op FilterOp) String() string {
	for name, v := range filterOpNames {
		if v == op {
			return name
		}
	}
	return "unknown"
}

// Eval applies the operation to the two membership results.
func (op FilterOp) Eval(inLayers, inTypes bool) bool {
	switch op {
	case FilterAnd:
		return inLayers && inTypes
	case FilterOr:
		return inLayers || inTypes
	case FilterXor:
		return inLayers != inTypes
	case FilterNand:
		return !(inLayers && inTypes)
	case FilterNor:
		return !(inLayers || inTypes)
	case FilterNxor:
		return inLayers == inTypes
	}
	return false
}

// TagFilter selects tags by layer and type membership.
type TagFilter struct {
	Layers []uint32
	Types  []uint32
	Op     FilterOp
}

// Match reports whether t is selected.
func (f TagFilter) Match(t Tag) bool {
	return f.Op.Eval(containsU32(f.Layers, t.Layer()), containsU32(f.Types, t.Type()))
}

func containsU32(s []uint32, v uint32) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
