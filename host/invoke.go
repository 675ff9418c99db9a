package host

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/gdsbridge/errors"
)

// scratchModule is a wasm module exporting one page of memory.
var scratchModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

// Invoker calls host functions from Go with text arguments. Strings and
// point lists are staged in a private scratch memory.
type Invoker struct {
	m       *Module
	scratch api.Module
	cursor  uint32
}

// NewInvoker instantiates a scratch memory in r for calls into m.
func NewInvoker(ctx context.Context, r wazero.Runtime, m *Module) (*Invoker, error) {
	compiled, err := r.CompileModule(ctx, scratchModule)
	if err != nil {
		return nil, fmt.Errorf("compile scratch memory: %w", err)
	}
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("instantiate scratch memory: %w", err)
	}
	return &Invoker{m: m, scratch: mod}, nil
}

// Memory returns the scratch memory.
func (iv *Invoker) Memory() api.Memory { return iv.scratch.Memory() }

// Close releases the scratch memory.
func (iv *Invoker) Close(ctx context.Context) error {
	return iv.scratch.Close(ctx)
}

// Invoke lowers args for the named function, calls it and returns its
// result. A call the module reports as failed returns its message as error.
func (iv *Invoker) Invoke(ctx context.Context, name string, args []string) (uint64, error) {
	fn, ok := Lookup(name)
	if !ok {
		return 0, errors.New(errors.PhaseHost, errors.KindNotFound).
			Object("function").
			Value(name).
			Build()
	}
	if len(args) != len(fn.Params) {
		return 0, errors.InvalidArgument(errors.PhaseHost,
			fmt.Sprintf("%s takes %d arguments, got %d", name, len(fn.Params), len(args)))
	}

	iv.cursor = 0
	var stack []uint64
	for i, p := range fn.Params {
		vals, err := iv.lower(p.Type, args[i])
		if err != nil {
			return 0, errors.New(errors.PhaseHost, errors.KindInvalidArgument).
				Object(p.Name).
				Value(args[i]).
				Cause(err).
				Build()
		}
		stack = append(stack, vals...)
	}
	if n := len(fn.CoreResults()); len(stack) < n {
		stack = append(stack, make([]uint64, n-len(stack))...)
	}

	iv.m.lastErr = ""
	if err := iv.m.Call(ctx, iv.Memory(), name, stack); err != nil {
		return 0, err
	}
	if iv.m.lastErr != "" {
		return 0, fmt.Errorf("%s: %s", name, iv.m.lastErr)
	}
	if len(fn.Results) == 0 {
		return 0, nil
	}
	return stack[0], nil
}

// stage copies b into scratch memory and returns its (ptr, len).
func (iv *Invoker) stage(b []byte) ([]uint64, error) {
	ptr := (iv.cursor + 7) &^ 7
	if !iv.Memory().Write(ptr, b) {
		return nil, fmt.Errorf("argument of %d bytes does not fit scratch memory", len(b))
	}
	iv.cursor = ptr + uint32(len(b))
	return []uint64{uint64(ptr), uint64(len(b))}, nil
}

func (iv *Invoker) lower(t wit.Type, s string) ([]uint64, error) {
	switch t := t.(type) {
	case wit.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		if v {
			return []uint64{1}, nil
		}
		return []uint64{0}, nil
	case wit.U8, wit.U16, wit.U32:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return []uint64{api.EncodeU32(uint32(v))}, nil
	case wit.U64:
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return []uint64{v}, nil
	case wit.F64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return []uint64{api.EncodeF64(v)}, nil
	case wit.String:
		return iv.stage([]byte(s))
	case *wit.TypeDef:
		if l, ok := t.Kind.(*wit.List); ok {
			if _, ok := l.Type.(wit.U8); ok {
				return iv.stage([]byte(s))
			}
			return iv.lowerPoints(s)
		}
	}
	return nil, fmt.Errorf("cannot lower %s", TypeString(t))
}

// lowerPoints parses "x,y x,y ..." into a staged f64 pair list.
func (iv *Invoker) lowerPoints(s string) ([]uint64, error) {
	fields := strings.Fields(s)
	buf := make([]byte, 0, 16*len(fields))
	for _, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("point %q is not x,y", f)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, err
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, err
		}
		buf = appendF64(buf, x)
		buf = appendF64(buf, y)
	}
	vals, err := iv.stage(buf)
	if err != nil {
		return nil, err
	}
	vals[1] = uint64(len(fields))
	return vals, nil
}

func appendF64(b []byte, f float64) []byte {
	v := api.EncodeF64(f)
	for i := 0; i < 8; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}
