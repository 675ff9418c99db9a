package native

import "github.com/wippyai/gdsbridge/resource"

// Addr is the address of a block in an Arena. It is a generation-tagged
// handle, so an address kept after its block was freed never resolves to a
// later allocation in the same slot.
type Addr = resource.Handle

// Kind identifies the layout of a native block.
type Kind uint32

const (
	KindInvalid Kind = iota
	KindPolygon
	KindLabel
	KindFlexPath
	KindRobustPath
	KindCurve
	KindReference
	KindCell
	KindRawCell
	KindLibrary
)

var kindNames = [...]string{
	KindInvalid:    "Invalid",
	KindPolygon:    "Polygon",
	KindLabel:      "Label",
	KindFlexPath:   "FlexPath",
	KindRobustPath: "RobustPath",
	KindCurve:      "Curve",
	KindReference:  "Reference",
	KindCell:       "Cell",
	KindRawCell:    "RawCell",
	KindLibrary:    "Library",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Geometry reports whether objects of this kind live in a cell's geometry
// arrays.
func (k Kind) Geometry() bool {
	switch k {
	case KindPolygon, KindLabel, KindFlexPath, KindRobustPath, KindReference:
		return true
	}
	return false
}

// Object is implemented by every native block type.
type Object interface {
	Kind() Kind
}

func (*Polygon) Kind() Kind    { return KindPolygon }
func (*Label) Kind() Kind      { return KindLabel }
func (*FlexPath) Kind() Kind   { return KindFlexPath }
func (*RobustPath) Kind() Kind { return KindRobustPath }
func (*Curve) Kind() Kind      { return KindCurve }
func (*Reference) Kind() Kind  { return KindReference }
func (*Cell) Kind() Kind       { return KindCell }
func (*RawCell) Kind() Kind    { return KindRawCell }
func (*Library) Kind() Kind    { return KindLibrary }

// zeroed returns a cleared block of the given kind.
func zeroed(k Kind) Object {
	switch k {
	case KindPolygon:
		return &Polygon{}
	case KindLabel:
		return &Label{Magnification: 1}
	case KindFlexPath:
		return &FlexPath{ScaleWidth: true}
	case KindRobustPath:
		return &RobustPath{ScaleWidth: true}
	case KindCurve:
		return &Curve{}
	case KindReference:
		return &Reference{Magnification: 1}
	case KindCell:
		return &Cell{}
	case KindRawCell:
		return &RawCell{}
	case KindLibrary:
		return &Library{}
	}
	return nil
}
