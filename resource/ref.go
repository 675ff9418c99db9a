package resource

import "errors"

// ErrReleased is returned when a Ref is used after Release.
var ErrReleased = errors.New("ownership handle already released")

// refCore is the state shared by every owner of one resource.
type refCore struct {
	fin       func() error
	handle    Handle
	typeID    uint32
	owners    int
	finalized bool
}

// Ref is one counted ownership handle. Clone adds an owner, Release removes
// this one. The finalizer runs exactly once, when the last owner releases.
//
// Refs are not safe for concurrent use.
type Ref struct {
	core     *refCore
	released bool
}

// NewRef creates the first owner of the resource at h. fin may be nil.
func NewRef(h Handle, typeID uint32, fin func() error) *Ref {
	return &Ref{core: &refCore{
		fin:    fin,
		handle: h,
		typeID: typeID,
		owners: 1,
	}}
}

// Clone returns a new owner of the same resource, or nil if r was released.
func (r *Ref) Clone() *Ref {
	if r == nil || r.released {
		return nil
	}
	r.core.owners++
	return &Ref{core: r.core}
}

// Release gives up this owner. Releasing twice is a no-op. The error is the
// finalizer's, returned only by the call that ran it.
func (r *Ref) Release() error {
	if r == nil || r.released {
		return nil
	}
	r.released = true
	r.core.owners--
	if r.core.owners > 0 || r.core.finalized {
		return nil
	}
	r.core.finalized = true
	if r.core.fin == nil {
		return nil
	}
	return r.core.fin()
}

// Drop implements Dropper so a Ref stored in a Table is released on removal.
func (r *Ref) Drop() error {
	return r.Release()
}

// Handle returns the resource handle, valid even after release.
func (r *Ref) Handle() Handle {
	return r.core.handle
}

// TypeID returns the resource type ID.
func (r *Ref) TypeID() uint32 {
	return r.core.typeID
}

// Count returns the number of live owners.
func (r *Ref) Count() int {
	return r.core.owners
}

// Released reports whether this owner was released.
func (r *Ref) Released() bool {
	return r == nil || r.released
}

// Finalized reports whether the shared finalizer has run.
func (r *Ref) Finalized() bool {
	return r.core.finalized
}

// Same reports whether r and o own the same resource.
func (r *Ref) Same(o *Ref) bool {
	return r != nil && o != nil && r.core == o.core
}
