package bridge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
)

func names(t *testing.T, b *Bridge, hs []*resource.Ref) []string {
	t.Helper()
	var out []string
	for _, h := range hs {
		obj, err := b.Object(h)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, nameOf(obj))
	}
	return out
}

func TestReferenceKeepsTargetAlive(t *testing.T) {
	b, fin := newTestBridge(t)
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))
	a := must(t)(b.NewCell("A"))
	cb := must(t)(b.NewCell("B"))
	r := must(t)(b.NewReference(CellTarget{Cell: a}, DefaultReferenceOptions()))
	if err := b.CellAdd(cb, r); err != nil {
		t.Fatal(err)
	}
	if err := b.LibraryAdd(lib, cb); err != nil {
		t.Fatal(err)
	}
	aaddr := a.Handle()

	if err := a.Release(); err != nil {
		t.Fatal(err)
	}
	if fin.calls[aaddr] != 0 {
		t.Fatal("A finalized while a reference still links to it")
	}

	if err := b.CellRemove(cb, r); err != nil {
		t.Fatal(err)
	}
	if fin.calls[aaddr] != 0 {
		t.Fatal("A finalized while the host still holds the reference")
	}
	if err := r.Release(); err != nil {
		t.Fatal(err)
	}
	if fin.calls[aaddr] != 1 {
		t.Fatalf("Expected A finalized exactly once, got %d", fin.calls[aaddr])
	}
}

func TestLibraryKeepsCellsAlive(t *testing.T) {
	b, fin := newTestBridge(t)
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))
	c := must(t)(b.LibraryNewCell(lib, "C"))
	p := must(t)(b.NewPolygon(square(1), 0, 0))
	if err := b.CellAdd(c, p); err != nil {
		t.Fatal(err)
	}
	caddr, paddr := c.Handle(), p.Handle()
	c.Release()
	p.Release()
	if fin.calls[caddr] != 0 {
		t.Fatal("Library member finalized early")
	}

	if err := lib.Release(); err != nil {
		t.Fatal(err)
	}
	if fin.calls[caddr] != 1 || fin.calls[paddr] != 1 {
		t.Fatal("Expected cascade through library, cell and polygon")
	}
	if s := b.Stats(); s.Blocks != 0 || s.Members != 0 || s.Owned != 0 {
		t.Fatalf("Expected empty bridge, got %+v", s)
	}
}

func TestLibraryAddRemove(t *testing.T) {
	b, _ := newTestBridge(t)
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))
	c := must(t)(b.NewCell("C"))
	raw := must(t)(b.NewRawCell("R", []byte("data")))

	if err := b.LibraryAdd(lib, c, raw); err != nil {
		t.Fatal(err)
	}
	if err := b.LibraryAdd(lib, c); !errors.IsKind(err, errors.KindDuplicateAttachment) {
		t.Fatalf("Expected duplicate attachment, got %v", err)
	}
	p := must(t)(b.NewPolygon(square(1), 0, 0))
	if err := b.LibraryAdd(lib, p); !errors.IsKind(err, errors.KindInvalidArgument) {
		t.Fatalf("Expected invalid argument, got %v", err)
	}

	raws := collect(t, b.LibraryRawCells(lib))
	if len(raws) != 1 || !raws[0].Same(raw) {
		t.Fatal("Expected the raw cell as member")
	}
	releaseEach(raws)

	if err := b.LibraryRemove(lib, c); err != nil {
		t.Fatal(err)
	}
	if err := b.LibraryRemove(lib, c); err != nil {
		t.Fatalf("Expected non-member remove to be skipped, got %v", err)
	}
	if got := collect(t, b.LibraryCells(lib)); len(got) != 0 {
		t.Fatalf("Expected no cells, got %d", len(got))
	}
	if c.Count() != 1 {
		t.Fatalf("Expected the library owner released, got %d", c.Count())
	}
}

func TestLibraryReplace(t *testing.T) {
	b, fin := newTestBridge(t)
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))
	old := must(t)(b.LibraryNewCell(lib, "X"))
	top := must(t)(b.LibraryNewCell(lib, "TOP"))
	byObject := must(t)(b.NewReference(CellTarget{Cell: old}, DefaultReferenceOptions()))
	byName := must(t)(b.NewReference(NameTarget{Name: "X"}, DefaultReferenceOptions()))
	other := must(t)(b.NewReference(NameTarget{Name: "Y"}, DefaultReferenceOptions()))
	if err := b.CellAdd(top, byObject, byName, other); err != nil {
		t.Fatal(err)
	}
	oldAddr := old.Handle()
	old.Release()

	repl := must(t)(b.NewCell("X"))
	if err := b.LibraryReplace(lib, repl); err != nil {
		t.Fatalf("LibraryReplace: %v", err)
	}

	if fin.calls[oldAddr] != 1 {
		t.Fatalf("Expected the replaced cell finalized once, got %d", fin.calls[oldAddr])
	}
	for _, ref := range []*resource.Ref{byObject, byName} {
		tgt, err := b.ReferenceTarget(ref)
		if err != nil {
			t.Fatal(err)
		}
		ct, ok := tgt.(CellTarget)
		if !ok || !ct.Cell.Same(repl) {
			t.Fatalf("Expected reference relinked to the replacement, got %#v", tgt)
		}
		ct.Cell.Release()
	}
	if tgt, _ := b.ReferenceTarget(other); tgt != (NameTarget{Name: "Y"}) {
		t.Fatalf("Unrelated name reference changed to %#v", tgt)
	}

	cells := collect(t, b.LibraryCells(lib))
	got := names(t, b, cells)
	releaseEach(cells)
	if diff := cmp.Diff([]string{"TOP", "X"}, got); diff != "" {
		t.Errorf("library cells mismatch (-want +got):\n%s", diff)
	}
	// host, library, two links
	if repl.Count() != 4 {
		t.Fatalf("Expected 4 owners of the replacement, got %d", repl.Count())
	}
}

func TestLibraryReplace_SkipsSameNamedCells(t *testing.T) {
	b, _ := newTestBridge(t)
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))
	old := must(t)(b.LibraryNewCell(lib, "X"))
	top := must(t)(b.LibraryNewCell(lib, "TOP"))
	self := must(t)(b.NewReference(NameTarget{Name: "X"}, DefaultReferenceOptions()))
	fromTop := must(t)(b.NewReference(NameTarget{Name: "X"}, DefaultReferenceOptions()))
	if err := b.CellAdd(old, self); err != nil {
		t.Fatal(err)
	}
	if err := b.CellAdd(top, fromTop); err != nil {
		t.Fatal(err)
	}
	old.Release()

	repl := must(t)(b.NewCell("X"))
	if err := b.LibraryReplace(lib, repl); err != nil {
		t.Fatalf("LibraryReplace: %v", err)
	}

	if tgt, _ := b.ReferenceTarget(self); tgt != (NameTarget{Name: "X"}) {
		t.Fatalf("Reference inside a cell named X changed to %#v", tgt)
	}
	tgt, err := b.ReferenceTarget(fromTop)
	if err != nil {
		t.Fatal(err)
	}
	if ct, ok := tgt.(CellTarget); !ok || !ct.Cell.Same(repl) {
		t.Fatalf("Expected TOP's reference relinked, got %#v", tgt)
	} else {
		ct.Cell.Release()
	}
	// host, library, one link
	if repl.Count() != 3 {
		t.Fatalf("Expected 3 owners of the replacement, got %d", repl.Count())
	}
}

func TestLibraryTopLevel(t *testing.T) {
	b, _ := newTestBridge(t)
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))
	leaf := must(t)(b.LibraryNewCell(lib, "LEAF"))
	top := must(t)(b.LibraryNewCell(lib, "TOP"))
	must(t)(b.LibraryNewCell(lib, "NAMED"))
	if err := b.CellAdd(top,
		must(t)(b.NewReference(CellTarget{Cell: leaf}, DefaultReferenceOptions())),
		must(t)(b.NewReference(NameTarget{Name: "NAMED"}, DefaultReferenceOptions())),
	); err != nil {
		t.Fatal(err)
	}

	cells, raws, err := b.LibraryTopLevel(lib)
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 1 || !cells[0].Same(top) || len(raws) != 0 {
		t.Fatalf("Expected only TOP, got %v", names(t, b, cells))
	}
	releaseEach(cells)
}

func TestLibraryRenameCell(t *testing.T) {
	b, _ := newTestBridge(t)
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))
	leaf := must(t)(b.LibraryNewCell(lib, "LEAF"))
	top := must(t)(b.LibraryNewCell(lib, "TOP"))
	byName := must(t)(b.NewReference(NameTarget{Name: "LEAF"}, DefaultReferenceOptions()))
	byObject := must(t)(b.NewReference(CellTarget{Cell: leaf}, DefaultReferenceOptions()))
	if err := b.CellAdd(top, byName, byObject); err != nil {
		t.Fatal(err)
	}

	if err := b.LibraryRenameCell(lib, "LEAF", "CORE"); err != nil {
		t.Fatal(err)
	}
	c, _ := b.Cell(leaf)
	if c.Name != "CORE" {
		t.Fatalf("Expected renamed cell, got %q", c.Name)
	}
	for _, h := range []*resource.Ref{byName, byObject} {
		ref, _ := b.Reference(h)
		if ref.Name != "CORE" {
			t.Errorf("Expected reference name updated, got %q", ref.Name)
		}
	}
	if err := b.LibraryRenameCell(lib, "MISSING", "Z"); !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
}

func TestLibraryTags(t *testing.T) {
	b, _ := newTestBridge(t)
	lib := must(t)(b.NewLibrary("L", 1e-6, 1e-9))
	c := must(t)(b.LibraryNewCell(lib, "C"))
	if err := b.CellAdd(c,
		must(t)(b.NewPolygon(square(1), 2, 1)),
		must(t)(b.NewPolygon(square(1), 1, 0)),
		must(t)(b.NewPolygon(square(1), 2, 1)),
		must(t)(b.NewLabel("t", native.Vec2{}, LabelOptions{Layer: 5, Texttype: 3})),
	); err != nil {
		t.Fatal(err)
	}

	shapes, err := b.LibraryLayersAndDatatypes(lib)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]native.Tag{native.MakeTag(1, 0), native.MakeTag(2, 1)}, shapes); diff != "" {
		t.Errorf("shape tags mismatch (-want +got):\n%s", diff)
	}
	texts, err := b.LibraryLayersAndTexttypes(lib)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]native.Tag{native.MakeTag(5, 3)}, texts); diff != "" {
		t.Errorf("label tags mismatch (-want +got):\n%s", diff)
	}
}
