package bridge

import (
	"iter"

	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// NewLibrary creates an empty library. Unit is the user unit in meters and
// precision the database unit in meters.
func (b *Bridge) NewLibrary(name string, unit, precision float64) (*resource.Ref, error) {
	if unit <= 0 || precision <= 0 {
		return nil, errors.InvalidArgument(errors.PhaseLibrary, "unit and precision must be positive")
	}
	return b.newObject(&native.Library{Name: name, Unit: unit, Precision: precision})
}

// libraryOperands resolves objs as library members and returns their names.
func (b *Bridge) libraryOperands(objs []*resource.Ref) ([]operand, []string, error) {
	ops := make([]operand, 0, len(objs))
	names := make([]string, 0, len(objs))
	for _, h := range objs {
		addr, obj, err := b.resolve(errors.PhaseLibrary, h, native.KindCell, native.KindRawCell)
		if err != nil {
			return nil, nil, err
		}
		ops = append(ops, operand{h: h, addr: addr, kind: obj.Kind()})
		names = append(names, nameOf(obj))
	}
	return ops, names, nil
}

func nameOf(obj native.Object) string {
	switch o := obj.(type) {
	case *native.Cell:
		return o.Name
	case *native.RawCell:
		return o.Name
	}
	return ""
}

func memberArray(lib *native.Library, k native.Kind) *native.Array[native.Addr] {
	if k == native.KindRawCell {
		return &lib.RawCells
	}
	return &lib.Cells
}

// LibraryAdd adds cells and raw cells to the library. Nothing is added if
// any of them is already a member.
func (b *Bridge) LibraryAdd(lib *resource.Ref, objs ...*resource.Ref) error {
	laddr, obj, err := b.resolve(errors.PhaseLibrary, lib, native.KindLibrary)
	if err != nil {
		return err
	}
	l := obj.(*native.Library)
	ops, _, err := b.libraryOperands(objs)
	if err != nil {
		return err
	}
	seen := make(map[native.Addr]bool, len(ops))
	for _, op := range ops {
		if _, dup := b.member(laddr, op.kind, op.addr); dup || seen[op.addr] {
			return errors.DuplicateAttachment(errors.PhaseLibrary, op.kind.String(), uint64(op.addr))
		}
		seen[op.addr] = true
	}
	for _, op := range ops {
		memberArray(l, op.kind).Append(op.addr)
		if err := b.addMember(laddr, op.kind, op.addr, op.h.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// LibraryRemove removes cells and raw cells from the library. Objects that
// are not members are skipped.
func (b *Bridge) LibraryRemove(lib *resource.Ref, objs ...*resource.Ref) error {
	laddr, obj, err := b.resolve(errors.PhaseLibrary, lib, native.KindLibrary)
	if err != nil {
		return err
	}
	l := obj.(*native.Library)
	ops, _, err := b.libraryOperands(objs)
	if err != nil {
		return err
	}
	var held []*resource.Ref
	for _, op := range ops {
		if !memberArray(l, op.kind).RemoveItem(op.addr) {
			continue
		}
		h, err := b.removeMember(laddr, op.kind, op.addr)
		if err != nil {
			return err
		}
		held = append(held, h)
	}
	return releaseAll(held)
}

// LibraryNewCell creates a cell and adds it to the library.
func (b *Bridge) LibraryNewCell(lib *resource.Ref, name string) (*resource.Ref, error) {
	if _, err := b.Library(lib); err != nil {
		return nil, err
	}
	cell, err := b.NewCell(name)
	if err != nil {
		return nil, err
	}
	if err := b.LibraryAdd(lib, cell); err != nil {
		return nil, multierr.Append(err, cell.Release())
	}
	return cell, nil
}

// LibraryReplace adds each cell or raw cell to the library, replacing
// members with the same name. References anywhere in the library whose
// target has that name, by object or by name, are pointed at the new one.
func (b *Bridge) LibraryReplace(lib *resource.Ref, objs ...*resource.Ref) error {
	laddr, obj, err := b.resolve(errors.PhaseLibrary, lib, native.KindLibrary)
	if err != nil {
		return err
	}
	l := obj.(*native.Library)
	ops, names, err := b.libraryOperands(objs)
	if err != nil {
		return err
	}

	var errs error
	for i, op := range ops {
		name := names[i]
		errs = multierr.Append(errs, b.relinkByName(l, op, name))

		var held []*resource.Ref
		for _, k := range [...]native.Kind{native.KindCell, native.KindRawCell} {
			arr := memberArray(l, k)
			for j := 0; j < arr.Len(); {
				addr := arr.At(j)
				m, err := b.arena.Get(addr)
				if err != nil || addr == op.addr || nameOf(m) != name {
					j++
					continue
				}
				arr.RemoveUnordered(j)
				h, err := b.removeMember(laddr, k, addr)
				if err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				held = append(held, h)
			}
		}

		if _, ok := b.member(laddr, op.kind, op.addr); !ok {
			memberArray(l, op.kind).Append(op.addr)
			errs = multierr.Append(errs, b.addMember(laddr, op.kind, op.addr, op.h.Clone()))
		}
		Logger().Debug("replace", addrField(op.addr), zap.String("cell", name), zap.Int("replaced", len(held)))
		errs = multierr.Append(errs, releaseAll(held))
	}
	return errs
}

// relinkByName points every reference whose target is named name at op.
// Cells named name, the ones being replaced included, are left as they are.
func (b *Bridge) relinkByName(l *native.Library, op operand, name string) error {
	typ := native.ReferenceCell
	if op.kind == native.KindRawCell {
		typ = native.ReferenceRawCell
	}
	var errs error
	for _, caddr := range l.Cells.Items() {
		if caddr == op.addr {
			continue
		}
		cell, err := b.arena.Cell(caddr)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if cell.Name == name {
			continue
		}
		for _, raddr := range cell.References.Items() {
			ref, err := b.arena.Reference(raddr)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if ref.Target == op.addr || b.targetName(ref) != name {
				continue
			}
			errs = multierr.Append(errs, b.retarget(raddr, ref, typ, op.addr, name, op.h.Clone()))
		}
	}
	return errs
}

// targetName returns the current name of what ref points at.
func (b *Bridge) targetName(ref *native.Reference) string {
	if ref.Type == native.ReferenceName {
		return ref.Name
	}
	obj, err := b.arena.Get(ref.Target)
	if err != nil {
		return ref.Name
	}
	return nameOf(obj)
}

// LibraryCells yields the library's cells in native order.
func (b *Bridge) LibraryCells(lib *resource.Ref) iter.Seq2[*resource.Ref, error] {
	return b.libraryMembers(lib, native.KindCell)
}

// LibraryRawCells yields the library's raw cells in native order.
func (b *Bridge) LibraryRawCells(lib *resource.Ref) iter.Seq2[*resource.Ref, error] {
	return b.libraryMembers(lib, native.KindRawCell)
}

func (b *Bridge) libraryMembers(lib *resource.Ref, kind native.Kind) iter.Seq2[*resource.Ref, error] {
	return func(yield func(*resource.Ref, error) bool) {
		laddr, obj, err := b.resolve(errors.PhaseLibrary, lib, native.KindLibrary)
		if err != nil {
			yield(nil, err)
			return
		}
		arr := memberArray(obj.(*native.Library), kind)
		for i := 0; i < arr.Len(); i++ {
			h, ok := b.member(laddr, kind, arr.At(i))
			if !ok {
				yield(nil, errors.NotFound(errors.PhaseLibrary, kind.String(), uint64(arr.At(i))))
				return
			}
			if !yield(h.Clone(), nil) {
				return
			}
		}
	}
}

// LibraryTopLevel returns owners of the members no other member references.
func (b *Bridge) LibraryTopLevel(lib *resource.Ref) (cells, raws []*resource.Ref, err error) {
	laddr, _, err := b.resolve(errors.PhaseLibrary, lib, native.KindLibrary)
	if err != nil {
		return nil, nil, err
	}
	caddrs, raddrs, err := b.arena.TopLevel(laddr)
	if err != nil {
		return nil, nil, err
	}
	for _, addr := range caddrs {
		h, _ := b.member(laddr, native.KindCell, addr)
		cells = append(cells, h.Clone())
	}
	for _, addr := range raddrs {
		h, _ := b.member(laddr, native.KindRawCell, addr)
		raws = append(raws, h.Clone())
	}
	return cells, raws, nil
}

// LibraryRenameCell renames the member cell called oldName and updates the
// references that name it.
func (b *Bridge) LibraryRenameCell(lib *resource.Ref, oldName, newName string) error {
	if newName == "" {
		return errors.InvalidArgument(errors.PhaseLibrary, "cell name must not be empty")
	}
	laddr, obj, err := b.resolve(errors.PhaseLibrary, lib, native.KindLibrary)
	if err != nil {
		return err
	}
	caddr, ok := b.arena.FindCell(laddr, oldName)
	if !ok {
		return errors.New(errors.PhaseLibrary, errors.KindNotFound).
			Object("cell").
			Value(oldName).
			Build()
	}
	for _, addr := range obj.(*native.Library).Cells.Items() {
		cell, err := b.arena.Cell(addr)
		if err != nil {
			return err
		}
		for _, raddr := range cell.References.Items() {
			ref, err := b.arena.Reference(raddr)
			if err != nil {
				return err
			}
			if (ref.Type == native.ReferenceName && ref.Name == oldName) || (ref.Type == native.ReferenceCell && ref.Target == caddr) {
				ref.Name = newName
			}
		}
	}
	cell, _ := b.arena.Cell(caddr)
	cell.Name = newName
	return nil
}

// LibraryLayersAndDatatypes returns the sorted tags of the library's
// polygons and path elements.
func (b *Bridge) LibraryLayersAndDatatypes(lib *resource.Ref) ([]native.Tag, error) {
	laddr, _, err := b.resolve(errors.PhaseLibrary, lib, native.KindLibrary)
	if err != nil {
		return nil, err
	}
	return b.arena.ShapeTags(laddr)
}

// LibraryLayersAndTexttypes returns the sorted tags of the library's
// labels.
func (b *Bridge) LibraryLayersAndTexttypes(lib *resource.Ref) ([]native.Tag, error) {
	laddr, _, err := b.resolve(errors.PhaseLibrary, lib, native.KindLibrary)
	if err != nil {
		return nil, err
	}
	return b.arena.LabelTags(laddr)
}
