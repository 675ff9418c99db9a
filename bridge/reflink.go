package bridge

import (
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
	"go.uber.org/zap"
)

// link makes the reference at ref own target, replacing and releasing any
// previous target owner.
func (b *Bridge) link(ref native.Addr, target *resource.Ref) error {
	prev, had := b.links[ref]
	b.links[ref] = target
	Logger().Debug("link", addrField(ref), zap.Uint64("target", uint64(target.Handle())))
	if had {
		return release(prev)
	}
	return nil
}

// unlink removes and returns the reference's target owner.
func (b *Bridge) unlink(ref native.Addr) (*resource.Ref, bool) {
	h, ok := b.links[ref]
	if ok {
		delete(b.links, ref)
		Logger().Debug("unlink", addrField(ref), zap.Uint64("target", uint64(h.Handle())))
	}
	return h, ok
}

// linked returns the reference's target owner.
func (b *Bridge) linked(ref native.Addr) (*resource.Ref, bool) {
	h, ok := b.links[ref]
	return h, ok
}

// ownerOf finds an owner of the cell or raw cell at addr through the
// reference links.
func (b *Bridge) ownerOf(addr native.Addr) (*resource.Ref, bool) {
	for _, h := range b.links {
		if h.Handle() == addr {
			return h, true
		}
	}
	return nil, false
}
