package bridge

import (
	"testing"

	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
)

// finalizerCounter counts EventFinalized per address.
type finalizerCounter struct {
	calls map[native.Addr]int
}

func (c *finalizerCounter) OnResourceEvent(e resource.Event) {
	if e.Type == resource.EventFinalized {
		c.calls[e.Handle]++
	}
}

func newTestBridge(t *testing.T) (*Bridge, *finalizerCounter) {
	t.Helper()
	b := NewWithDefaults()
	c := &finalizerCounter{calls: map[native.Addr]int{}}
	b.Subscribe(c)
	return b, c
}

func must(t *testing.T) func(h *resource.Ref, err error) *resource.Ref {
	return func(h *resource.Ref, err error) *resource.Ref {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return h
	}
}

func square(size float64) []native.Vec2 {
	return []native.Vec2{{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size}}
}

func collect(t *testing.T, seq func(func(*resource.Ref, error) bool)) []*resource.Ref {
	t.Helper()
	var out []*resource.Ref
	for h, err := range seq {
		if err != nil {
			t.Fatalf("enumeration failed: %v", err)
		}
		out = append(out, h)
	}
	return out
}

func releaseEach(hs []*resource.Ref) {
	for _, h := range hs {
		h.Release()
	}
}

func TestAttachAndMembers(t *testing.T) {
	b, _ := newTestBridge(t)
	cell := must(t)(b.NewCell("C"))
	p := must(t)(b.NewPolygon(square(1), 1, 0))

	if err := b.CellAdd(cell, p); err != nil {
		t.Fatalf("CellAdd: %v", err)
	}
	if p.Count() != 2 {
		t.Fatalf("Expected host and cell owners, got %d", p.Count())
	}

	got := collect(t, b.CellPolygons(cell))
	if len(got) != 1 || !got[0].Same(p) {
		t.Fatalf("Expected exactly the attached polygon, got %d members", len(got))
	}
	releaseEach(got)

	if err := b.CellRemove(cell, p); err != nil {
		t.Fatalf("CellRemove: %v", err)
	}
	if got := collect(t, b.CellPolygons(cell)); len(got) != 0 {
		t.Fatalf("Expected no members after remove, got %d", len(got))
	}
	if p.Count() != 1 {
		t.Fatalf("Expected only the host owner, got %d", p.Count())
	}
	if s := b.Stats(); s.Owned != 0 {
		t.Fatalf("Expected empty ownership registry, got %d", s.Owned)
	}
}

func TestMembers_NativeOrderAndRestart(t *testing.T) {
	b, _ := newTestBridge(t)
	cell := must(t)(b.NewCell("C"))
	var polys []*resource.Ref
	for i := range 3 {
		p := must(t)(b.NewPolygon(square(float64(i+1)), uint32(i), 0))
		polys = append(polys, p)
	}
	if err := b.CellAdd(cell, polys...); err != nil {
		t.Fatalf("CellAdd: %v", err)
	}

	for h, err := range b.CellPolygons(cell) {
		if err != nil {
			t.Fatal(err)
		}
		h.Release()
		break
	}

	c, _ := b.Cell(cell)
	got := collect(t, b.CellPolygons(cell))
	if len(got) != 3 {
		t.Fatalf("Expected 3 polygons on restart, got %d", len(got))
	}
	for i, h := range got {
		if h.Handle() != c.Polygons.At(i) {
			t.Errorf("Member %d out of native order", i)
		}
	}
	releaseEach(got)
}

func TestCellAdd_Rejects(t *testing.T) {
	b, _ := newTestBridge(t)
	cell := must(t)(b.NewCell("C"))
	p := must(t)(b.NewPolygon(square(1), 0, 0))
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))

	t.Run("wrong kind", func(t *testing.T) {
		err := b.CellAdd(cell, p, lib)
		if !errors.IsKind(err, errors.KindInvalidArgument) {
			t.Fatalf("Expected invalid argument, got %v", err)
		}
		c, _ := b.Cell(cell)
		if c.Len() != 0 {
			t.Fatal("Cell changed on a rejected add")
		}
	})

	t.Run("duplicate in one call", func(t *testing.T) {
		err := b.CellAdd(cell, p, p)
		if !errors.IsKind(err, errors.KindDuplicateAttachment) {
			t.Fatalf("Expected duplicate attachment, got %v", err)
		}
	})

	t.Run("already attached", func(t *testing.T) {
		if err := b.CellAdd(cell, p); err != nil {
			t.Fatal(err)
		}
		err := b.CellAdd(cell, p)
		if !errors.IsKind(err, errors.KindDuplicateAttachment) {
			t.Fatalf("Expected duplicate attachment, got %v", err)
		}
		if p.Count() != 2 {
			t.Fatalf("Rejected add changed the owner count to %d", p.Count())
		}
	})

	t.Run("released handle", func(t *testing.T) {
		q := must(t)(b.NewPolygon(square(1), 0, 0))
		q.Release()
		if err := b.CellAdd(cell, q); !errors.IsKind(err, errors.KindInvalidArgument) {
			t.Fatalf("Expected invalid argument, got %v", err)
		}
	})
}

func TestCellRemove_SkipsNonMembers(t *testing.T) {
	b, _ := newTestBridge(t)
	cell := must(t)(b.NewCell("C"))
	p := must(t)(b.NewPolygon(square(1), 0, 0))
	if err := b.CellRemove(cell, p); err != nil {
		t.Fatalf("Expected non-member remove to be skipped, got %v", err)
	}
	if p.Count() != 1 {
		t.Fatalf("Expected untouched owner count, got %d", p.Count())
	}
}

func TestLifetime_CellKeepsGeometry(t *testing.T) {
	b, fin := newTestBridge(t)
	cell := must(t)(b.NewCell("C"))
	p := must(t)(b.NewPolygon(square(1), 0, 0))
	l := must(t)(b.NewLabel("pin", native.Vec2{}, DefaultLabelOptions()))
	if err := b.CellAdd(cell, p, l); err != nil {
		t.Fatal(err)
	}
	paddr, laddr, caddr := p.Handle(), l.Handle(), cell.Handle()

	p.Release()
	l.Release()
	if fin.calls[paddr] != 0 || fin.calls[laddr] != 0 {
		t.Fatal("Geometry finalized while the cell still owns it")
	}
	if !b.Arena().Live(paddr) {
		t.Fatal("Polygon block freed early")
	}

	if err := cell.Release(); err != nil {
		t.Fatalf("Release cell: %v", err)
	}
	for _, addr := range []native.Addr{paddr, laddr, caddr} {
		if fin.calls[addr] != 1 {
			t.Errorf("Expected one finalizer call for %#x, got %d", uint64(addr), fin.calls[addr])
		}
	}
	if s := b.Stats(); s.Blocks != 0 || s.Owned != 0 {
		t.Fatalf("Expected nothing left, got %+v", s)
	}
	if _, err := b.Arena().Get(paddr); !errors.IsKind(err, errors.KindStaleHandle) {
		t.Fatalf("Expected stale address after free, got %v", err)
	}
}

func TestReleasedHandle(t *testing.T) {
	b, _ := newTestBridge(t)
	p := must(t)(b.NewPolygon(square(1), 0, 0))
	p.Release()
	if _, err := b.Polygon(p); !errors.IsKind(err, errors.KindInvalidArgument) {
		t.Fatalf("Expected invalid argument for released handle, got %v", err)
	}
}

func TestWrongKindLookup(t *testing.T) {
	b, _ := newTestBridge(t)
	p := must(t)(b.NewPolygon(square(1), 0, 0))
	if _, err := b.Cell(p); !errors.IsKind(err, errors.KindInvalidArgument) {
		t.Fatalf("Expected invalid argument, got %v", err)
	}
}

func TestRobustPath_TeardownUnsupported(t *testing.T) {
	b, fin := newTestBridge(t)
	rp := must(t)(b.NewRobustPath(native.Vec2{}, DefaultRobustPathOptions(0.5)))
	addr := rp.Handle()

	err := rp.Release()
	if !errors.IsKind(err, errors.KindUnsupported) {
		t.Fatalf("Expected unsupported, got %v", err)
	}
	if !b.Arena().Live(addr) {
		t.Fatal("Unsupported teardown must leave the block allocated")
	}
	if fin.calls[addr] != 0 {
		t.Fatal("Unsupported teardown must not count as finalized")
	}
}

func TestRawCell_TeardownUnsupported(t *testing.T) {
	b, _ := newTestBridge(t)
	raw := must(t)(b.NewRawCell("R", []byte{0, 4}))
	if err := raw.Release(); !errors.IsKind(err, errors.KindUnsupported) {
		t.Fatalf("Expected unsupported, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	b, _ := newTestBridge(t)
	tests := []struct {
		name string
		fn   func() error
	}{
		{"empty cell name", func() error { _, err := b.NewCell(""); return err }},
		{"zero unit", func() error { _, err := b.NewLibrary("L", 0, 1e-9); return err }},
		{"negative precision", func() error { _, err := b.NewLibrary("L", 1e-6, -1); return err }},
		{"zero tolerance", func() error { _, err := b.NewCurve(native.Vec2{}, 0); return err }},
		{"negative width", func() error {
			_, err := b.NewFlexPath([]native.Vec2{{}}, DefaultFlexPathOptions(-1))
			return err
		}},
		{"no points", func() error { _, err := b.NewFlexPath(nil, DefaultFlexPathOptions(1)); return err }},
		{"empty reference name", func() error {
			_, err := b.NewReference(NameTarget{}, DefaultReferenceOptions())
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.IsKind(err, errors.KindInvalidArgument) {
				t.Fatalf("Expected invalid argument, got %v", err)
			}
		})
	}
	if s := b.Stats(); s.Blocks != 0 {
		t.Fatalf("Rejected constructors allocated %d blocks", s.Blocks)
	}
}

func TestSetRepetition(t *testing.T) {
	b, _ := newTestBridge(t)
	p := must(t)(b.NewPolygon(square(1), 0, 0))
	rep := native.Rectangular(2, 3, native.Vec2{X: 5, Y: 5})
	if err := b.SetRepetition(p, rep); err != nil {
		t.Fatal(err)
	}
	poly, _ := b.Polygon(p)
	if poly.Repetition.Count() != 6 {
		t.Fatalf("Expected 6 placements, got %d", poly.Repetition.Count())
	}

	cell := must(t)(b.NewCell("C"))
	if err := b.SetRepetition(cell, rep); !errors.IsKind(err, errors.KindInvalidArgument) {
		t.Fatalf("Expected invalid argument for a cell, got %v", err)
	}
}
