package host

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

// Param is a named function parameter.
type Param struct {
	Type wit.Type
	Name string
}

// Function describes one host function in WIT terms. Strings and lists are
// passed as (ptr, len) pairs in guest memory; handles are u64.
type Function struct {
	Name    string
	Doc     string
	Params  []Param
	Results []wit.Type
}

var (
	handleType = wit.U64{}
	pointList  = &wit.TypeDef{Kind: &wit.List{Type: &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.F64{}, wit.F64{}}}}}}
	byteList   = &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
)

func p(name string, t wit.Type) Param { return Param{Name: name, Type: t} }

var catalog = []Function{
	{Name: "library_new", Doc: "create a library",
		Params:  []Param{p("name", wit.String{}), p("unit", wit.F64{}), p("precision", wit.F64{})},
		Results: []wit.Type{handleType}},
	{Name: "cell_new", Doc: "create a cell",
		Params:  []Param{p("name", wit.String{})},
		Results: []wit.Type{handleType}},
	{Name: "polygon_new", Doc: "create a polygon from points",
		Params:  []Param{p("points", pointList), p("layer", wit.U32{}), p("datatype", wit.U32{})},
		Results: []wit.Type{handleType}},
	{Name: "label_new", Doc: "create a label",
		Params:  []Param{p("text", wit.String{}), p("x", wit.F64{}), p("y", wit.F64{}), p("layer", wit.U32{}), p("texttype", wit.U32{})},
		Results: []wit.Type{handleType}},
	{Name: "reference_new", Doc: "create a reference to a cell or raw cell",
		Params:  []Param{p("target", handleType), p("x", wit.F64{}), p("y", wit.F64{}), p("rotation", wit.F64{}), p("magnification", wit.F64{})},
		Results: []wit.Type{handleType}},
	{Name: "cell_add", Doc: "add an object to a cell",
		Params:  []Param{p("cell", handleType), p("object", handleType)},
		Results: []wit.Type{wit.Bool{}}},
	{Name: "cell_remove", Doc: "remove an object from a cell",
		Params:  []Param{p("cell", handleType), p("object", handleType)},
		Results: []wit.Type{wit.Bool{}}},
	{Name: "cell_len", Doc: "count the objects in a cell",
		Params:  []Param{p("cell", handleType)},
		Results: []wit.Type{wit.U32{}}},
	{Name: "cell_filter", Doc: "remove objects on (layer, type), or keep only them",
		Params:  []Param{p("cell", handleType), p("layer", wit.U32{}), p("type", wit.U32{}), p("keep", wit.Bool{})},
		Results: []wit.Type{wit.Bool{}}},
	{Name: "cell_flatten", Doc: "replace cell references with their geometry",
		Params:  []Param{p("cell", handleType), p("apply-repetitions", wit.Bool{})},
		Results: []wit.Type{wit.Bool{}}},
	{Name: "cell_copy", Doc: "copy a cell under a new name",
		Params:  []Param{p("cell", handleType), p("name", wit.String{}), p("deep", wit.Bool{})},
		Results: []wit.Type{handleType}},
	{Name: "library_add", Doc: "add a cell to a library",
		Params:  []Param{p("library", handleType), p("cell", handleType)},
		Results: []wit.Type{wit.Bool{}}},
	{Name: "library_remove", Doc: "remove a cell from a library",
		Params:  []Param{p("library", handleType), p("cell", handleType)},
		Results: []wit.Type{wit.Bool{}}},
	{Name: "library_replace", Doc: "replace same-name cells and relink references",
		Params:  []Param{p("library", handleType), p("cell", handleType)},
		Results: []wit.Type{wit.Bool{}}},
	{Name: "handle_drop", Doc: "release a handle",
		Params:  []Param{p("handle", handleType)},
		Results: []wit.Type{wit.Bool{}}},
	{Name: "handle_count", Doc: "count the owners of a handle's object",
		Params:  []Param{p("handle", handleType)},
		Results: []wit.Type{wit.U32{}}},
	{Name: "last_error_len", Doc: "length of the last error message",
		Results: []wit.Type{wit.U32{}}},
	{Name: "last_error", Doc: "copy the last error message into guest memory",
		Params:  []Param{p("buf", byteList)},
		Results: []wit.Type{wit.U32{}}},
}

// Catalog returns the host functions in export order.
func Catalog() []Function {
	out := make([]Function, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry named name.
func Lookup(name string) (Function, bool) {
	for _, f := range catalog {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// flat lowers a WIT type to core value types.
func flat(t wit.Type) []api.ValueType {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []api.ValueType{api.ValueTypeI64}
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}
	default:
		// strings and lists
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	}
}

// CoreParams returns the flattened core parameter types.
func (f Function) CoreParams() []api.ValueType {
	var out []api.ValueType
	for _, p := range f.Params {
		out = append(out, flat(p.Type)...)
	}
	return out
}

// CoreResults returns the flattened core result types.
func (f Function) CoreResults() []api.ValueType {
	var out []api.ValueType
	for _, r := range f.Results {
		out = append(out, flat(r)...)
	}
	return out
}

// Signature renders the function in WIT syntax.
func (f Function) Signature() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + ": " + TypeString(p.Type)
	}
	s := f.Name + ": func(" + strings.Join(params, ", ") + ")"
	if len(f.Results) > 0 {
		s += " -> " + TypeString(f.Results[0])
	}
	return s
}

// TypeString renders a WIT type.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.U32:
		return "u32"
	case wit.U64:
		return "u64"
	case wit.S32:
		return "s32"
	case wit.F64:
		return "f64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		switch k := v.Kind.(type) {
		case *wit.List:
			return "list<" + TypeString(k.Type) + ">"
		case *wit.Tuple:
			parts := make([]string, len(k.Types))
			for i, e := range k.Types {
				parts[i] = TypeString(e)
			}
			return "tuple<" + strings.Join(parts, ", ") + ">"
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}
