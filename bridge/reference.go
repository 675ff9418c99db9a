package bridge

import (
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
)

// Target is what a reference points at: a CellTarget, a RawCellTarget or a
// NameTarget.
type Target interface{ target() }

// CellTarget references a cell.
type CellTarget struct{ Cell *resource.Ref }

// RawCellTarget references a raw cell.
type RawCellTarget struct{ RawCell *resource.Ref }

// NameTarget references a cell by name without resolving it.
type NameTarget struct{ Name string }

func (CellTarget) target()    {}
func (RawCellTarget) target() {}
func (NameTarget) target()    {}

// ReferenceOptions places a reference. Columns and Rows above 1 turn the
// reference into a rectangular array.
type ReferenceOptions struct {
	Origin        native.Vec2
	Spacing       native.Vec2
	Rotation      float64
	Magnification float64
	Columns       uint64
	Rows          uint64
	XReflection   bool
}

// DefaultReferenceOptions returns an untransformed single placement.
func DefaultReferenceOptions() ReferenceOptions {
	return ReferenceOptions{Magnification: 1, Columns: 1, Rows: 1}
}

// resolveTarget returns the native target fields and, for Cell and RawCell
// targets, a new owner for the link.
func (b *Bridge) resolveTarget(t Target) (native.ReferenceType, native.Addr, string, *resource.Ref, error) {
	switch t := t.(type) {
	case CellTarget:
		addr, obj, err := b.resolve(errors.PhaseLink, t.Cell, native.KindCell)
		if err != nil {
			return 0, 0, "", nil, err
		}
		return native.ReferenceCell, addr, obj.(*native.Cell).Name, t.Cell.Clone(), nil
	case RawCellTarget:
		addr, obj, err := b.resolve(errors.PhaseLink, t.RawCell, native.KindRawCell)
		if err != nil {
			return 0, 0, "", nil, err
		}
		return native.ReferenceRawCell, addr, obj.(*native.RawCell).Name, t.RawCell.Clone(), nil
	case NameTarget:
		if t.Name == "" {
			return 0, 0, "", nil, errors.InvalidArgument(errors.PhaseLink, "empty reference name")
		}
		return native.ReferenceName, 0, t.Name, nil, nil
	}
	return 0, 0, "", nil, errors.InvalidArgument(errors.PhaseLink, "reference target must be a cell, raw cell or name")
}

// NewReference creates a reference to target. Cell and RawCell targets are
// kept alive by the reference until it is finalized.
func (b *Bridge) NewReference(target Target, opts ReferenceOptions) (*resource.Ref, error) {
	typ, taddr, name, owner, err := b.resolveTarget(target)
	if err != nil {
		return nil, err
	}
	mag := opts.Magnification
	if mag == 0 {
		mag = 1
	}
	ref := &native.Reference{
		Name:          name,
		Origin:        opts.Origin,
		Rotation:      opts.Rotation,
		Magnification: mag,
		Target:        taddr,
		Type:          typ,
		XReflection:   opts.XReflection,
	}
	if opts.Columns > 1 || opts.Rows > 1 {
		cols, rows := max(opts.Columns, 1), max(opts.Rows, 1)
		ref.Repetition = native.Rectangular(cols, rows, opts.Spacing)
	}
	h, err := b.newObject(ref)
	if err != nil {
		if owner != nil {
			_ = release(owner)
		}
		return nil, err
	}
	if owner != nil {
		if err := b.link(h.Handle(), owner); err != nil {
			return h, err
		}
	}
	return h, nil
}

// SetReferenceTarget points the reference at a new target, releasing the
// link to the old one.
func (b *Bridge) SetReferenceTarget(h *resource.Ref, target Target) error {
	addr, obj, err := b.resolve(errors.PhaseLink, h, native.KindReference)
	if err != nil {
		return err
	}
	typ, taddr, name, owner, err := b.resolveTarget(target)
	if err != nil {
		return err
	}
	return b.retarget(addr, obj.(*native.Reference), typ, taddr, name, owner)
}

// retarget rewrites the native target fields and the link together. owner
// is nil for Name targets.
func (b *Bridge) retarget(addr native.Addr, ref *native.Reference, typ native.ReferenceType, taddr native.Addr, name string, owner *resource.Ref) error {
	ref.Type = typ
	ref.Target = taddr
	ref.Name = name
	if owner != nil {
		return b.link(addr, owner)
	}
	if prev, ok := b.unlink(addr); ok {
		return release(prev)
	}
	return nil
}

// ReferenceTarget returns the reference's current target. Cell and RawCell
// targets carry a new owner the caller must release.
func (b *Bridge) ReferenceTarget(h *resource.Ref) (Target, error) {
	addr, obj, err := b.resolve(errors.PhaseLink, h, native.KindReference)
	if err != nil {
		return nil, err
	}
	ref := obj.(*native.Reference)
	if ref.Type == native.ReferenceName {
		return NameTarget{Name: ref.Name}, nil
	}
	owner, ok := b.linked(addr)
	if !ok {
		Logger().Error("reference without link", addrField(addr))
		return nil, errors.NotFound(errors.PhaseLink, "reference link", uint64(addr))
	}
	if ref.Type == native.ReferenceRawCell {
		return RawCellTarget{RawCell: owner.Clone()}, nil
	}
	return CellTarget{Cell: owner.Clone()}, nil
}
