package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/gdsbridge/bridge"
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
)

// Options configures the host module.
type Options struct {
	// ModuleName is the import module name guests link against.
	ModuleName string
}

// DefaultOptions returns the default host module options.
func DefaultOptions() Options {
	return Options{ModuleName: "gdstk"}
}

// handler runs one host function against the caller's memory. Parameters
// are read from stack and results written back to its head.
type handler func(ctx context.Context, mem api.Memory, stack []uint64)

// Module exposes a bridge to wasm guests. Guest handles index a table of
// owning references; dropping a guest handle releases its owner.
type Module struct {
	bridge   *bridge.Bridge
	handles  *resource.UnifiedTable
	handlers map[string]handler
	lastErr  string
	opts     Options
}

// New creates a host module over b.
func New(b *bridge.Bridge, opts Options) *Module {
	if opts.ModuleName == "" {
		opts.ModuleName = DefaultOptions().ModuleName
	}
	m := &Module{
		bridge:  b,
		handles: resource.NewTable(),
		opts:    opts,
	}
	m.handlers = map[string]handler{
		"library_new":     m.libraryNew,
		"cell_new":        m.cellNew,
		"polygon_new":     m.polygonNew,
		"label_new":       m.labelNew,
		"reference_new":   m.referenceNew,
		"cell_add":        m.cellAdd,
		"cell_remove":     m.cellRemove,
		"cell_len":        m.cellLen,
		"cell_filter":     m.cellFilter,
		"cell_flatten":    m.cellFlatten,
		"cell_copy":       m.cellCopy,
		"library_add":     m.libraryAdd,
		"library_remove":  m.libraryRemove,
		"library_replace": m.libraryReplace,
		"handle_drop":     m.handleDrop,
		"handle_count":    m.handleCount,
		"last_error_len":  m.lastErrorLen,
		"last_error":      m.lastError,
	}
	return m
}

// Name returns the import module name.
func (m *Module) Name() string { return m.opts.ModuleName }

// Bridge returns the bridge the module serves.
func (m *Module) Bridge() *bridge.Bridge { return m.bridge }

// LastError returns the message of the most recent failed call.
func (m *Module) LastError() string { return m.lastErr }

// Handles returns the number of live guest handles.
func (m *Module) Handles() int { return m.handles.Len() }

// Instantiate registers the host functions with r.
func (m *Module) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(m.opts.ModuleName)
	for _, f := range catalog {
		h, ok := m.handlers[f.Name]
		if !ok {
			return nil, fmt.Errorf("host function %s has no handler", f.Name)
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				h(ctx, mod.Memory(), stack)
			}), f.CoreParams(), f.CoreResults()).
			WithName(f.Name).
			WithParameterNames(coreParamNames(f)...).
			Export(f.Name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("instantiate host module %s: %w", m.opts.ModuleName, err)
	}
	Logger().Debug("host module instantiated",
		zap.String("module", m.opts.ModuleName),
		zap.Int("functions", len(catalog)))
	return mod, nil
}

// Call runs the named host function directly. The stack must be sized for
// the larger of the function's core params and results.
func (m *Module) Call(ctx context.Context, mem api.Memory, name string, stack []uint64) error {
	h, ok := m.handlers[name]
	if !ok {
		return errors.New(errors.PhaseHost, errors.KindNotFound).
			Object("function").
			Value(name).
			Build()
	}
	h(ctx, mem, stack)
	return nil
}

// Close releases every guest handle.
func (m *Module) Close() error {
	return m.handles.Clear()
}

func coreParamNames(f Function) []string {
	var names []string
	for _, p := range f.Params {
		if n := len(flat(p.Type)); n == 2 {
			names = append(names, p.Name+"_ptr", p.Name+"_len")
		} else {
			names = append(names, p.Name)
		}
	}
	return names
}

// fail records err and logs it.
func (m *Module) fail(fn string, err error) {
	m.lastErr = err.Error()
	Logger().Warn("host call failed", zap.String("function", fn), zap.Error(err))
}

// put stores an owner in the handle table.
func (m *Module) put(ref *resource.Ref) uint64 {
	return uint64(m.handles.Insert(ref.TypeID(), ref))
}

// ref resolves a guest handle.
func (m *Module) ref(h uint64) (*resource.Ref, error) {
	v, ok := m.handles.Get(resource.Handle(h))
	if !ok {
		return nil, errors.New(errors.PhaseHost, errors.KindNotFound).
			Object("handle").
			Value(h).
			Build()
	}
	return v.(*resource.Ref), nil
}

func (m *Module) refs(hs ...uint64) ([]*resource.Ref, error) {
	out := make([]*resource.Ref, len(hs))
	for i, h := range hs {
		r, err := m.ref(h)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// handleResult writes a new guest handle, or 0 on error.
func (m *Module) handleResult(fn string, stack []uint64, ref *resource.Ref, err error) {
	if err != nil {
		m.fail(fn, err)
		stack[0] = 0
		return
	}
	stack[0] = m.put(ref)
}

// boolResult writes 1 on success and 0 on error.
func (m *Module) boolResult(fn string, stack []uint64, err error) {
	if err != nil {
		m.fail(fn, err)
		stack[0] = 0
		return
	}
	stack[0] = 1
}

func readString(mem api.Memory, ptr, n uint32) (string, error) {
	if mem == nil {
		return "", errors.InvalidArgument(errors.PhaseHost, "caller has no memory")
	}
	b, ok := mem.Read(ptr, n)
	if !ok {
		return "", errors.New(errors.PhaseHost, errors.KindInvalidData).
			Detail("string out of bounds at %d+%d", ptr, n).
			Build()
	}
	return string(b), nil
}

// readPoints decodes n little-endian (x, y) f64 pairs at ptr. The range is
// checked against the memory size before anything is allocated.
func readPoints(mem api.Memory, ptr, n uint32) ([]native.Vec2, error) {
	if mem == nil {
		return nil, errors.InvalidArgument(errors.PhaseHost, "caller has no memory")
	}
	if end := uint64(ptr) + uint64(n)*16; end > uint64(mem.Size()) {
		return nil, errors.New(errors.PhaseHost, errors.KindInvalidData).
			Detail("%d points at %d overrun memory of %d bytes", n, ptr, mem.Size()).
			Build()
	}
	pts := make([]native.Vec2, n)
	for i := range pts {
		off := ptr + uint32(i)*16
		x, ok1 := mem.ReadFloat64Le(off)
		y, ok2 := mem.ReadFloat64Le(off + 8)
		if !ok1 || !ok2 {
			return nil, errors.New(errors.PhaseHost, errors.KindInvalidData).
				Detail("point %d out of bounds at %d", i, off).
				Build()
		}
		pts[i] = native.Vec2{X: x, Y: y}
	}
	return pts, nil
}

// library_new(name_ptr, name_len, unit, precision) -> handle
func (m *Module) libraryNew(_ context.Context, mem api.Memory, stack []uint64) {
	name, err := readString(mem, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		m.handleResult("library_new", stack, nil, err)
		return
	}
	ref, err := m.bridge.NewLibrary(name, api.DecodeF64(stack[2]), api.DecodeF64(stack[3]))
	m.handleResult("library_new", stack, ref, err)
}

// cell_new(name_ptr, name_len) -> handle
func (m *Module) cellNew(_ context.Context, mem api.Memory, stack []uint64) {
	name, err := readString(mem, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		m.handleResult("cell_new", stack, nil, err)
		return
	}
	ref, err := m.bridge.NewCell(name)
	m.handleResult("cell_new", stack, ref, err)
}

// polygon_new(points_ptr, points_len, layer, datatype) -> handle
func (m *Module) polygonNew(_ context.Context, mem api.Memory, stack []uint64) {
	pts, err := readPoints(mem, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		m.handleResult("polygon_new", stack, nil, err)
		return
	}
	ref, err := m.bridge.NewPolygon(pts, api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
	m.handleResult("polygon_new", stack, ref, err)
}

// label_new(text_ptr, text_len, x, y, layer, texttype) -> handle
func (m *Module) labelNew(_ context.Context, mem api.Memory, stack []uint64) {
	text, err := readString(mem, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		m.handleResult("label_new", stack, nil, err)
		return
	}
	opts := bridge.DefaultLabelOptions()
	opts.Layer = api.DecodeU32(stack[4])
	opts.Texttype = api.DecodeU32(stack[5])
	origin := native.Vec2{X: api.DecodeF64(stack[2]), Y: api.DecodeF64(stack[3])}
	ref, err := m.bridge.NewLabel(text, origin, opts)
	m.handleResult("label_new", stack, ref, err)
}

// reference_new(target, x, y, rotation, magnification) -> handle
func (m *Module) referenceNew(_ context.Context, _ api.Memory, stack []uint64) {
	target, err := m.ref(stack[0])
	if err != nil {
		m.handleResult("reference_new", stack, nil, err)
		return
	}
	var tgt bridge.Target
	switch native.Kind(target.TypeID()) {
	case native.KindCell:
		tgt = bridge.CellTarget{Cell: target}
	case native.KindRawCell:
		tgt = bridge.RawCellTarget{RawCell: target}
	default:
		m.handleResult("reference_new", stack, nil,
			errors.WrongKind(errors.PhaseHost, native.Kind(target.TypeID()).String(), "cell|rawcell"))
		return
	}
	opts := bridge.DefaultReferenceOptions()
	opts.Origin = native.Vec2{X: api.DecodeF64(stack[1]), Y: api.DecodeF64(stack[2])}
	opts.Rotation = api.DecodeF64(stack[3])
	opts.Magnification = api.DecodeF64(stack[4])
	ref, err := m.bridge.NewReference(tgt, opts)
	m.handleResult("reference_new", stack, ref, err)
}

// pair runs op on the two handles at the head of stack.
func (m *Module) pair(fn string, stack []uint64, op func(a, b *resource.Ref) error) {
	rs, err := m.refs(stack[0], stack[1])
	if err == nil {
		err = op(rs[0], rs[1])
	}
	m.boolResult(fn, stack, err)
}

func (m *Module) cellAdd(_ context.Context, _ api.Memory, stack []uint64) {
	m.pair("cell_add", stack, func(cell, obj *resource.Ref) error {
		return m.bridge.CellAdd(cell, obj)
	})
}

func (m *Module) cellRemove(_ context.Context, _ api.Memory, stack []uint64) {
	m.pair("cell_remove", stack, func(cell, obj *resource.Ref) error {
		return m.bridge.CellRemove(cell, obj)
	})
}

func (m *Module) libraryAdd(_ context.Context, _ api.Memory, stack []uint64) {
	m.pair("library_add", stack, func(lib, cell *resource.Ref) error {
		return m.bridge.LibraryAdd(lib, cell)
	})
}

func (m *Module) libraryRemove(_ context.Context, _ api.Memory, stack []uint64) {
	m.pair("library_remove", stack, func(lib, cell *resource.Ref) error {
		return m.bridge.LibraryRemove(lib, cell)
	})
}

func (m *Module) libraryReplace(_ context.Context, _ api.Memory, stack []uint64) {
	m.pair("library_replace", stack, func(lib, cell *resource.Ref) error {
		return m.bridge.LibraryReplace(lib, cell)
	})
}

// cell_len(cell) -> u32
func (m *Module) cellLen(_ context.Context, _ api.Memory, stack []uint64) {
	ref, err := m.ref(stack[0])
	if err != nil {
		m.fail("cell_len", err)
		stack[0] = 0
		return
	}
	c, err := m.bridge.Cell(ref)
	if err != nil {
		m.fail("cell_len", err)
		stack[0] = 0
		return
	}
	stack[0] = api.EncodeU32(uint32(c.Len()))
}

// cell_filter(cell, layer, type, keep) -> bool
func (m *Module) cellFilter(_ context.Context, _ api.Memory, stack []uint64) {
	ref, err := m.ref(stack[0])
	if err == nil {
		err = m.bridge.CellFilter(ref, bridge.FilterSpec{
			TagFilter: native.TagFilter{
				Layers: []uint32{api.DecodeU32(stack[1])},
				Types:  []uint32{api.DecodeU32(stack[2])},
				Op:     native.FilterAnd,
			},
			Polygons: true,
			Paths:    true,
			Labels:   true,
			Keep:     api.DecodeU32(stack[3]) != 0,
		})
	}
	m.boolResult("cell_filter", stack, err)
}

// cell_flatten(cell, apply_repetitions) -> bool
func (m *Module) cellFlatten(_ context.Context, _ api.Memory, stack []uint64) {
	ref, err := m.ref(stack[0])
	if err == nil {
		err = m.bridge.CellFlatten(ref, api.DecodeU32(stack[1]) != 0)
	}
	m.boolResult("cell_flatten", stack, err)
}

// cell_copy(cell, name_ptr, name_len, deep) -> handle
func (m *Module) cellCopy(_ context.Context, mem api.Memory, stack []uint64) {
	ref, err := m.ref(stack[0])
	if err != nil {
		m.handleResult("cell_copy", stack, nil, err)
		return
	}
	name, err := readString(mem, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	if err != nil {
		m.handleResult("cell_copy", stack, nil, err)
		return
	}
	opts := bridge.DefaultCopyOptions()
	opts.Deep = api.DecodeU32(stack[3]) != 0
	cp, err := m.bridge.CellCopy(ref, name, opts)
	m.handleResult("cell_copy", stack, cp, err)
}

// handle_drop(handle) -> bool
func (m *Module) handleDrop(_ context.Context, _ api.Memory, stack []uint64) {
	m.boolResult("handle_drop", stack, m.handles.Release(resource.Handle(stack[0])))
}

// handle_count(handle) -> u32
func (m *Module) handleCount(_ context.Context, _ api.Memory, stack []uint64) {
	ref, err := m.ref(stack[0])
	if err != nil {
		m.fail("handle_count", err)
		stack[0] = 0
		return
	}
	stack[0] = api.EncodeU32(uint32(ref.Count()))
}

// last_error_len() -> u32
func (m *Module) lastErrorLen(_ context.Context, _ api.Memory, stack []uint64) {
	stack[0] = api.EncodeU32(uint32(len(m.lastErr)))
}

// last_error(buf_ptr, buf_cap) -> u32 bytes written
func (m *Module) lastError(_ context.Context, mem api.Memory, stack []uint64) {
	ptr, capacity := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	msg := []byte(m.lastErr)
	if uint32(len(msg)) > capacity {
		msg = msg[:capacity]
	}
	if mem == nil || !mem.Write(ptr, msg) {
		stack[0] = 0
		return
	}
	stack[0] = api.EncodeU32(uint32(len(msg)))
}
