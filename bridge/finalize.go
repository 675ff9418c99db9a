package bridge

import (
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// finalize runs when the last owner of the block at addr is released.
// Containers detach their contents first, then secondary buffers are
// cleared, then the block is freed.
func (b *Bridge) finalize(addr native.Addr, kind native.Kind) error {
	obj, err := b.arena.Get(addr)
	if err != nil {
		return err
	}
	Logger().Debug("finalize", addrField(addr), zap.Stringer("kind", kind))

	var errs error
	switch o := obj.(type) {
	case *native.Polygon:
		o.Clear()
	case *native.Label:
		o.Clear()
	case *native.FlexPath:
		b.evictAll(addr)
		o.Clear()
	case *native.Curve:
		b.evictAll(addr)
		o.Clear()
	case *native.Reference:
		if target, ok := b.unlink(addr); ok {
			errs = multierr.Append(errs, release(target))
		}
		o.Clear()
	case *native.Cell:
		errs = b.finalizeCell(addr, o)
	case *native.Library:
		errs = b.finalizeLibrary(addr, o)
	case *native.RobustPath:
		return errors.Unsupported(errors.PhaseFinalize, "robust path teardown")
	case *native.RawCell:
		return errors.Unsupported(errors.PhaseFinalize, "raw cell teardown")
	default:
		return errors.WrongKind(errors.PhaseFinalize, kind.String(), "native object")
	}

	errs = multierr.Append(errs, b.arena.Free(addr))
	b.finalized[kind]++
	b.notify(resource.Event{Handle: addr, TypeID: uint32(kind), Type: resource.EventFinalized})
	if errs != nil {
		Logger().Warn("teardown incomplete", addrField(addr), zap.Stringer("kind", kind), zap.Error(errs))
	}
	return errs
}

func (b *Bridge) finalizeCell(addr native.Addr, cell *native.Cell) error {
	var held []*resource.Ref
	var errs error
	for _, k := range native.GeometryKinds {
		for _, item := range cell.ArrayFor(k).Items() {
			h, err := b.detach(addr, k, item)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			held = append(held, h)
		}
	}
	if t, ok := b.owners[addr]; ok && t.len() > 0 {
		Logger().Error("owner entries without array slots", addrField(addr), zap.Int("count", t.len()))
	}
	delete(b.owners, addr)
	cell.Clear()
	for _, h := range held {
		errs = multierr.Append(errs, release(h))
	}
	return errs
}

func (b *Bridge) finalizeLibrary(addr native.Addr, lib *native.Library) error {
	var held []*resource.Ref
	var errs error
	for _, item := range lib.Cells.Items() {
		h, err := b.removeMember(addr, native.KindCell, item)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		held = append(held, h)
	}
	for _, item := range lib.RawCells.Items() {
		h, err := b.removeMember(addr, native.KindRawCell, item)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		held = append(held, h)
	}
	delete(b.members, addr)
	lib.Clear()
	for _, h := range held {
		errs = multierr.Append(errs, release(h))
	}
	return errs
}
