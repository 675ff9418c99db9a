package native

import (
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/resource"
)

// Arena is the manual allocator behind every native block. Blocks stay
// allocated until Free is called; nothing inside a block records who owns it.
type Arena struct {
	table *resource.UnifiedTable
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{table: resource.NewTable()}
}

// Allocate stores obj in a new block.
func (a *Arena) Allocate(obj Object) (Addr, error) {
	if obj == nil || obj.Kind() == KindInvalid {
		return 0, errors.InvalidArgument(errors.PhaseAlloc, "nil or invalid block")
	}
	addr := a.table.Insert(uint32(obj.Kind()), obj)
	if addr == 0 {
		return 0, errors.New(errors.PhaseAlloc, errors.KindInvalidArgument).
			Object(obj.Kind().String()).
			Detail("arena exhausted").
			Build()
	}
	return addr, nil
}

// AllocateClear allocates a zeroed block of kind k.
func (a *Arena) AllocateClear(k Kind) (Addr, Object, error) {
	obj := zeroed(k)
	if obj == nil {
		return 0, nil, errors.InvalidArgument(errors.PhaseAlloc, "unknown block kind "+k.String())
	}
	addr, err := a.Allocate(obj)
	if err != nil {
		return 0, nil, err
	}
	return addr, obj, nil
}

// Reallocate replaces the contents of the block at addr. The new contents
// must have the same kind.
func (a *Arena) Reallocate(addr Addr, obj Object) error {
	old, err := a.Get(addr)
	if err != nil {
		return err
	}
	if obj == nil || obj.Kind() != old.Kind() {
		got := "nil"
		if obj != nil {
			got = obj.Kind().String()
		}
		return errors.WrongKind(errors.PhaseAlloc, got, old.Kind().String())
	}
	if !a.table.Replace(addr, obj) {
		return errors.StaleHandle(errors.PhaseAlloc, uint64(addr))
	}
	return nil
}

// Free releases the block at addr. Freeing twice fails with a stale handle
// error.
func (a *Arena) Free(addr Addr) error {
	if _, ok := a.table.Remove(addr); !ok {
		return a.missing(addr)
	}
	return nil
}

// Get returns the block at addr.
func (a *Arena) Get(addr Addr) (Object, error) {
	v, ok := a.table.Get(addr)
	if !ok {
		return nil, a.missing(addr)
	}
	return v.(Object), nil
}

// KindOf returns the kind of the block at addr.
func (a *Arena) KindOf(addr Addr) (Kind, error) {
	obj, err := a.Get(addr)
	if err != nil {
		return KindInvalid, err
	}
	return obj.Kind(), nil
}

// Live reports whether addr names an allocated block.
func (a *Arena) Live(addr Addr) bool {
	_, ok := a.table.Get(addr)
	return ok
}

// Len returns the number of allocated blocks.
func (a *Arena) Len() int {
	return a.table.Len()
}

// CountKind returns the number of allocated blocks of kind k.
func (a *Arena) CountKind(k Kind) int {
	return a.table.Count(uint32(k))
}

// Subscribe registers o for allocation and free events.
func (a *Arena) Subscribe(o resource.Observer) {
	a.table.Subscribe(o)
}

// Unsubscribe removes o.
func (a *Arena) Unsubscribe(o resource.Observer) {
	a.table.Unsubscribe(o)
}

func (a *Arena) missing(addr Addr) error {
	if a.table.Stale(addr) {
		return errors.StaleHandle(errors.PhaseAlloc, uint64(addr))
	}
	return errors.NotFound(errors.PhaseAlloc, "block", uint64(addr))
}

func typed[T Object](a *Arena, addr Addr, want Kind) (T, error) {
	var zero T
	obj, err := a.Get(addr)
	if err != nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, errors.WrongKind(errors.PhaseAlloc, obj.Kind().String(), want.String())
	}
	return t, nil
}

func (a *Arena) Polygon(addr Addr) (*Polygon, error) {
	return typed[*Polygon](a, addr, KindPolygon)
}

func (a *Arena) Label(addr Addr) (*Label, error) {
	return typed[*Label](a, addr, KindLabel)
}

func (a *Arena) FlexPath(addr Addr) (*FlexPath, error) {
	return typed[*FlexPath](a, addr, KindFlexPath)
}

func (a *Arena) RobustPath(addr Addr) (*RobustPath, error) {
	return typed[*RobustPath](a, addr, KindRobustPath)
}

func (a *Arena) Curve(addr Addr) (*Curve, error) {
	return typed[*Curve](a, addr, KindCurve)
}

func (a *Arena) Reference(addr Addr) (*Reference, error) {
	return typed[*Reference](a, addr, KindReference)
}

func (a *Arena) Cell(addr Addr) (*Cell, error) {
	return typed[*Cell](a, addr, KindCell)
}

func (a *Arena) RawCell(addr Addr) (*RawCell, error) {
	return typed[*RawCell](a, addr, KindRawCell)
}

func (a *Arena) Library(addr Addr) (*Library, error) {
	return typed[*Library](a, addr, KindLibrary)
}
