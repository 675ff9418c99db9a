package bridge

import (
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
	"go.uber.org/zap"
)

// memberSet mirrors a library's cell and raw cell arrays.
type memberSet struct {
	cells map[native.Addr]*resource.Ref
	raws  map[native.Addr]*resource.Ref
}

func (m *memberSet) set(k native.Kind) map[native.Addr]*resource.Ref {
	switch k {
	case native.KindCell:
		return m.cells
	case native.KindRawCell:
		return m.raws
	}
	return nil
}

func (b *Bridge) memberSetOf(lib native.Addr) *memberSet {
	m, ok := b.members[lib]
	if !ok {
		m = &memberSet{
			cells: make(map[native.Addr]*resource.Ref),
			raws:  make(map[native.Addr]*resource.Ref),
		}
		b.members[lib] = m
	}
	return m
}

func (b *Bridge) addMember(lib native.Addr, kind native.Kind, addr native.Addr, h *resource.Ref) error {
	set := b.memberSetOf(lib).set(kind)
	if set == nil {
		return errors.WrongKind(errors.PhaseLibrary, kind.String(), "Cell|RawCell")
	}
	if _, dup := set[addr]; dup {
		return errors.DuplicateAttachment(errors.PhaseLibrary, kind.String(), uint64(addr))
	}
	set[addr] = h
	Logger().Debug("add member", addrField(addr), zap.Stringer("kind", kind), zap.Uint64("library", uint64(lib)))
	return nil
}

func (b *Bridge) removeMember(lib native.Addr, kind native.Kind, addr native.Addr) (*resource.Ref, error) {
	var set map[native.Addr]*resource.Ref
	if m, ok := b.members[lib]; ok {
		set = m.set(kind)
	}
	h, ok := set[addr]
	if !ok {
		Logger().Error("remove of unregistered member", addrField(addr), zap.Stringer("kind", kind))
		return nil, errors.NotFound(errors.PhaseLibrary, kind.String(), uint64(addr))
	}
	delete(set, addr)
	Logger().Debug("remove member", addrField(addr), zap.Stringer("kind", kind), zap.Uint64("library", uint64(lib)))
	return h, nil
}

func (b *Bridge) member(lib native.Addr, kind native.Kind, addr native.Addr) (*resource.Ref, bool) {
	m, ok := b.members[lib]
	if !ok {
		return nil, false
	}
	h, ok := m.set(kind)[addr]
	return h, ok
}
