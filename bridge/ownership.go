package bridge

import (
	"iter"

	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
	"go.uber.org/zap"
)

// ownerTable holds one cell's owners, one sub-table per geometry kind. An
// address is present exactly when the matching native array contains it.
type ownerTable struct {
	polygons    map[native.Addr]*resource.Ref
	references  map[native.Addr]*resource.Ref
	flexPaths   map[native.Addr]*resource.Ref
	robustPaths map[native.Addr]*resource.Ref
	labels      map[native.Addr]*resource.Ref
}

func newOwnerTable() *ownerTable {
	return &ownerTable{
		polygons:    make(map[native.Addr]*resource.Ref),
		references:  make(map[native.Addr]*resource.Ref),
		flexPaths:   make(map[native.Addr]*resource.Ref),
		robustPaths: make(map[native.Addr]*resource.Ref),
		labels:      make(map[native.Addr]*resource.Ref),
	}
}

func (t *ownerTable) sub(k native.Kind) map[native.Addr]*resource.Ref {
	switch k {
	case native.KindPolygon:
		return t.polygons
	case native.KindReference:
		return t.references
	case native.KindFlexPath:
		return t.flexPaths
	case native.KindRobustPath:
		return t.robustPaths
	case native.KindLabel:
		return t.labels
	}
	return nil
}

func (t *ownerTable) len() int {
	return len(t.polygons) + len(t.references) + len(t.flexPaths) +
		len(t.robustPaths) + len(t.labels)
}

// attach records h as the cell's owner of obj.
func (b *Bridge) attach(cell native.Addr, kind native.Kind, obj native.Addr, h *resource.Ref) error {
	t, ok := b.owners[cell]
	if !ok {
		t = newOwnerTable()
		b.owners[cell] = t
	}
	sub := t.sub(kind)
	if sub == nil {
		return errors.WrongKind(errors.PhaseAttach, kind.String(), "Polygon|Reference|FlexPath|RobustPath|Label")
	}
	if _, dup := sub[obj]; dup {
		Logger().Error("duplicate attachment", addrField(obj), zap.Stringer("kind", kind))
		return errors.DuplicateAttachment(errors.PhaseAttach, kind.String(), uint64(obj))
	}
	sub[obj] = h
	Logger().Debug("attach", addrField(obj), zap.Stringer("kind", kind), zap.Uint64("cell", uint64(cell)))
	return nil
}

// detach removes and returns the cell's owner of obj. The caller releases
// it.
func (b *Bridge) detach(cell native.Addr, kind native.Kind, obj native.Addr) (*resource.Ref, error) {
	t, ok := b.owners[cell]
	var sub map[native.Addr]*resource.Ref
	if ok {
		sub = t.sub(kind)
	}
	h, ok := sub[obj]
	if !ok {
		Logger().Error("detach of unregistered object", addrField(obj), zap.Stringer("kind", kind))
		return nil, errors.NotFound(errors.PhaseDetach, kind.String(), uint64(obj))
	}
	delete(sub, obj)
	Logger().Debug("detach", addrField(obj), zap.Stringer("kind", kind), zap.Uint64("cell", uint64(cell)))
	return h, nil
}

// owner returns the cell's owner of obj without removing it.
func (b *Bridge) owner(cell native.Addr, kind native.Kind, obj native.Addr) (*resource.Ref, bool) {
	t, ok := b.owners[cell]
	if !ok {
		return nil, false
	}
	h, ok := t.sub(kind)[obj]
	return h, ok
}

// release drops h, logging a finalizer failure.
func release(h *resource.Ref) error {
	err := h.Release()
	if err != nil {
		Logger().Warn("finalizer failed", addrField(h.Handle()), zap.Error(err))
	}
	return err
}

// Members yields a new owner for every object of kind in the cell, in
// native array order. The caller releases each yielded handle. Ranging again
// re-reads the cell.
func (b *Bridge) Members(cell *resource.Ref, kind native.Kind) iter.Seq2[*resource.Ref, error] {
	return func(yield func(*resource.Ref, error) bool) {
		addr, obj, err := b.resolve(errors.PhaseHost, cell, native.KindCell)
		if err != nil {
			yield(nil, err)
			return
		}
		arr := obj.(*native.Cell).ArrayFor(kind)
		if arr == nil {
			yield(nil, errors.WrongKind(errors.PhaseHost, kind.String(), "Polygon|Reference|FlexPath|RobustPath|Label"))
			return
		}
		for i := 0; i < arr.Len(); i++ {
			item := arr.At(i)
			h, ok := b.owner(addr, kind, item)
			if !ok {
				yield(nil, errors.NotFound(errors.PhaseHost, kind.String(), uint64(item)))
				return
			}
			if !yield(h.Clone(), nil) {
				return
			}
		}
	}
}
