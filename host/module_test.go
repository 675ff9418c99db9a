package host

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/gdsbridge/bridge"
	"github.com/wippyai/gdsbridge/native"
)

// guestModule imports gdstk.cell_new, stores "TOP" at offset 0 and exports
// run() -> i64 which returns cell_new(0, 3).
var guestModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// types: (i32 i32) -> i64, () -> i64
	0x01, 0x0b, 0x02, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e, 0x60, 0x00, 0x01, 0x7e,
	// import gdstk.cell_new
	0x02, 0x12, 0x01, 0x05, 'g', 'd', 's', 't', 'k', 0x08, 'c', 'e', 'l', 'l', '_', 'n', 'e', 'w', 0x00, 0x00,
	0x03, 0x02, 0x01, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x10, 0x02, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, 0x03, 'r', 'u', 'n', 0x00, 0x01,
	// run: i32.const 0, i32.const 3, call 0
	0x0a, 0x0a, 0x01, 0x08, 0x00, 0x41, 0x00, 0x41, 0x03, 0x10, 0x00, 0x0b,
	0x0b, 0x09, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x03, 'T', 'O', 'P',
}

type fixture struct {
	ctx context.Context
	b   *bridge.Bridge
	m   *Module
	mem api.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	scratch, err := rt.Instantiate(ctx, scratchModule)
	if err != nil {
		t.Fatalf("instantiate scratch memory: %v", err)
	}
	b := bridge.NewWithDefaults()
	return &fixture{ctx: ctx, b: b, m: New(b, DefaultOptions()), mem: scratch.Memory()}
}

// call runs a host function with args and returns the first result.
func (f *fixture) call(t *testing.T, name string, args ...uint64) uint64 {
	t.Helper()
	fn, ok := Lookup(name)
	if !ok {
		t.Fatalf("unknown function %s", name)
	}
	stack := make([]uint64, max(len(fn.CoreParams()), len(fn.CoreResults()), 1))
	copy(stack, args)
	if err := f.m.Call(f.ctx, f.mem, name, stack); err != nil {
		t.Fatal(err)
	}
	return stack[0]
}

func (f *fixture) writeString(t *testing.T, off uint32, s string) (uint64, uint64) {
	t.Helper()
	if !f.mem.Write(off, []byte(s)) {
		t.Fatalf("write %q at %d", s, off)
	}
	return uint64(off), uint64(len(s))
}

func (f *fixture) writePoints(t *testing.T, off uint32, pts []native.Vec2) (uint64, uint64) {
	t.Helper()
	for i, p := range pts {
		if !f.mem.WriteFloat64Le(off+uint32(i)*16, p.X) || !f.mem.WriteFloat64Le(off+uint32(i)*16+8, p.Y) {
			t.Fatalf("write point %d", i)
		}
	}
	return uint64(off), uint64(len(pts))
}

func TestCatalog_CoreSignatures(t *testing.T) {
	fn, ok := Lookup("polygon_new")
	if !ok {
		t.Fatal("polygon_new missing")
	}
	want := []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}
	if diff := cmp.Diff(want, fn.CoreParams()); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]api.ValueType{api.ValueTypeI64}, fn.CoreResults()); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	sig := "polygon_new: func(points: list<tuple<f64, f64>>, layer: u32, datatype: u32) -> u64"
	if got := fn.Signature(); got != sig {
		t.Errorf("Expected %q, got %q", sig, got)
	}
	if _, ok := Lookup("missing"); ok {
		t.Error("Expected lookup of unknown name to fail")
	}
}

func TestInstantiate_ExportsCatalog(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	m := New(bridge.NewWithDefaults(), Options{})
	if m.Name() != "gdstk" {
		t.Fatalf("Expected default module name, got %q", m.Name())
	}
	mod, err := m.Instantiate(ctx, rt)
	if err != nil {
		t.Fatal(err)
	}
	defs := mod.ExportedFunctionDefinitions()
	if len(defs) != len(Catalog()) {
		t.Fatalf("Expected %d exports, got %d", len(Catalog()), len(defs))
	}
	for _, fn := range Catalog() {
		def, ok := defs[fn.Name]
		if !ok {
			t.Errorf("export %s missing", fn.Name)
			continue
		}
		if diff := cmp.Diff(fn.CoreParams(), def.ParamTypes()); diff != "" {
			t.Errorf("%s params mismatch (-want +got):\n%s", fn.Name, diff)
		}
	}
}

func TestGuestCallsHost(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	b := bridge.NewWithDefaults()
	m := New(b, DefaultOptions())
	if _, err := m.Instantiate(ctx, rt); err != nil {
		t.Fatal(err)
	}
	guest, err := rt.Instantiate(ctx, guestModule)
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}
	res, err := guest.ExportedFunction("run").Call(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res[0] == 0 {
		t.Fatalf("cell_new failed: %s", m.LastError())
	}
	ref, err := m.ref(res[0])
	if err != nil {
		t.Fatal(err)
	}
	c, err := b.Cell(ref)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "TOP" {
		t.Errorf("Expected cell named from guest memory, got %q", c.Name)
	}
}

func TestHostCalls_Lifecycle(t *testing.T) {
	f := newFixture(t)
	namePtr, nameLen := f.writeString(t, 0, "TOP")
	ptsPtr, ptsLen := f.writePoints(t, 64, []native.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})

	cell := f.call(t, "cell_new", namePtr, nameLen)
	poly := f.call(t, "polygon_new", ptsPtr, ptsLen, 1, 0)
	if cell == 0 || poly == 0 {
		t.Fatalf("constructor failed: %s", f.m.LastError())
	}
	if f.call(t, "cell_add", cell, poly) != 1 {
		t.Fatalf("cell_add failed: %s", f.m.LastError())
	}
	if n := f.call(t, "cell_len", cell); n != 1 {
		t.Fatalf("Expected 1 object, got %d", n)
	}
	if n := f.call(t, "handle_count", poly); n != 2 {
		t.Fatalf("Expected guest and cell owners, got %d", n)
	}

	if f.call(t, "handle_drop", poly) != 1 {
		t.Fatal("handle_drop failed")
	}
	if s := f.b.Stats(); s.Finalized[native.KindPolygon] != 0 {
		t.Fatal("Polygon finalized while its cell holds it")
	}
	if f.call(t, "handle_drop", cell) != 1 {
		t.Fatal("handle_drop failed")
	}
	s := f.b.Stats()
	if s.Finalized[native.KindCell] != 1 || s.Finalized[native.KindPolygon] != 1 || s.Blocks != 0 {
		t.Fatalf("Expected cascade to free everything, got %+v", s)
	}
	if f.m.Handles() != 0 {
		t.Fatalf("Expected no guest handles, got %d", f.m.Handles())
	}
}

func TestHostCalls_ReferenceAndReplace(t *testing.T) {
	f := newFixture(t)
	libPtr, libLen := f.writeString(t, 0, "LIB")
	xPtr, xLen := f.writeString(t, 16, "X")
	topPtr, topLen := f.writeString(t, 32, "TOP")

	lib := f.call(t, "library_new", libPtr, libLen, api.EncodeF64(1e-6), api.EncodeF64(1e-9))
	old := f.call(t, "cell_new", xPtr, xLen)
	top := f.call(t, "cell_new", topPtr, topLen)
	ref := f.call(t, "reference_new", old, api.EncodeF64(5), 0, 0, api.EncodeF64(1))
	if lib == 0 || old == 0 || top == 0 || ref == 0 {
		t.Fatalf("constructor failed: %s", f.m.LastError())
	}
	if f.call(t, "cell_add", top, ref) != 1 {
		t.Fatal(f.m.LastError())
	}
	for _, c := range []uint64{old, top} {
		if f.call(t, "library_add", lib, c) != 1 {
			t.Fatal(f.m.LastError())
		}
	}

	repl := f.call(t, "cell_new", xPtr, xLen)
	if f.call(t, "library_replace", lib, repl) != 1 {
		t.Fatalf("library_replace failed: %s", f.m.LastError())
	}
	// guest, library and the relinked reference
	if n := f.call(t, "handle_count", repl); n != 3 {
		t.Fatalf("Expected guest, library and link owners, got %d", n)
	}
	if f.call(t, "cell_flatten", top, 1) != 1 {
		t.Fatalf("cell_flatten failed: %s", f.m.LastError())
	}
	if n := f.call(t, "cell_len", top); n != 0 {
		t.Fatalf("Expected flattened empty reference removed, got %d objects", n)
	}
	if err := f.m.Close(); err != nil {
		t.Fatal(err)
	}
	if s := f.b.Stats(); s.Blocks != 0 {
		t.Fatalf("Expected every block freed after close, got %+v", s)
	}
}

func TestHostCalls_FilterAndCopy(t *testing.T) {
	f := newFixture(t)
	namePtr, nameLen := f.writeString(t, 0, "C")
	copyPtr, copyLen := f.writeString(t, 8, "C2")
	ptsPtr, ptsLen := f.writePoints(t, 64, []native.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})
	textPtr, textLen := f.writeString(t, 32, "pin")

	cell := f.call(t, "cell_new", namePtr, nameLen)
	for _, layer := range []uint64{1, 2} {
		poly := f.call(t, "polygon_new", ptsPtr, ptsLen, layer, 0)
		f.call(t, "cell_add", cell, poly)
		f.call(t, "handle_drop", poly)
	}
	label := f.call(t, "label_new", textPtr, textLen, 0, 0, 1, 0)
	f.call(t, "cell_add", cell, label)

	cp := f.call(t, "cell_copy", cell, copyPtr, copyLen, 1)
	if cp == 0 {
		t.Fatalf("cell_copy failed: %s", f.m.LastError())
	}
	if f.call(t, "cell_filter", cell, 1, 0, 0) != 1 {
		t.Fatalf("cell_filter failed: %s", f.m.LastError())
	}
	if n := f.call(t, "cell_len", cell); n != 1 {
		t.Fatalf("Expected only layer 2 left, got %d", n)
	}
	if n := f.call(t, "cell_len", cp); n != 3 {
		t.Fatalf("Expected the deep copy untouched, got %d", n)
	}
	if n := f.call(t, "handle_count", label); n != 1 {
		t.Fatalf("Expected filtered label released by the cell, got %d owners", n)
	}
}

func TestHostCalls_Errors(t *testing.T) {
	f := newFixture(t)
	if got := f.call(t, "cell_add", 999, 998); got != 0 {
		t.Fatal("Expected cell_add on unknown handles to fail")
	}
	if !strings.Contains(f.m.LastError(), "not_found") {
		t.Errorf("Unexpected last error %q", f.m.LastError())
	}

	n := f.call(t, "last_error_len")
	if n != uint64(len(f.m.LastError())) {
		t.Fatalf("Expected length %d, got %d", len(f.m.LastError()), n)
	}
	if w := f.call(t, "last_error", 128, 5); w != 5 {
		t.Fatalf("Expected truncated copy of 5 bytes, got %d", w)
	}
	buf, _ := f.mem.Read(128, 5)
	if string(buf) != f.m.LastError()[:5] {
		t.Errorf("Unexpected copy %q", buf)
	}

	namePtr, _ := f.writeString(t, 0, "")
	if f.call(t, "cell_new", namePtr, 0) != 0 {
		t.Error("Expected empty cell name to fail")
	}
	if f.call(t, "polygon_new", 65530, 4, 0, 0) != 0 {
		t.Error("Expected out-of-bounds points to fail")
	}
	if err := f.m.Call(f.ctx, f.mem, "nope", make([]uint64, 1)); err == nil {
		t.Error("Expected unknown function to fail")
	}
}

func TestHostCalls_OversizedPointList(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		ptr  uint64
		n    uint64
	}{
		{"huge length", 0, 0xFFFFFFFF},
		{"offset wraps", 0xFFFFFFF0, 2},
		{"one past the end", uint64(f.mem.Size()) - 16*2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if h := f.call(t, "polygon_new", tt.ptr, tt.n, 0, 0); h != 0 {
				t.Fatalf("Expected a failed handle, got %#x", h)
			}
			if !strings.Contains(f.m.LastError(), "invalid_data") {
				t.Errorf("Unexpected last error %q", f.m.LastError())
			}
		})
	}
	if s := f.b.Stats(); s.Blocks != 0 {
		t.Fatalf("Rejected point lists allocated %d blocks", s.Blocks)
	}
}
