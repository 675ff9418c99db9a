package resource

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrInvalidHandle is returned when a handle does not name a live resource.
var ErrInvalidHandle = errors.New("invalid resource handle")

var _ Table = (*UnifiedTable)(nil)

// UnifiedTable maps generation-tagged handles to values tagged with a type
// ID. Native blocks and guest handles both live in one. It is not safe for
// concurrent use.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []Observer
}

// NewTable creates an empty table.
func NewTable() *UnifiedTable {
	return &UnifiedTable{backend: NewLocalBackend()}
}

// Insert stores value under typeID. It returns 0 when no slot is left.
func (t *UnifiedTable) Insert(typeID uint32, value any) Handle {
	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0
	}
	t.notify(Event{Type: EventCreated, Handle: handle, TypeID: typeID, Value: value})
	return handle
}

// Get returns the value at handle.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// TypeID returns the type ID stored with handle.
func (t *UnifiedTable) TypeID(handle Handle) (uint32, bool) {
	return t.backend.TypeID(handle)
}

// Replace swaps the value at handle in place. The handle stays valid and no
// event is sent.
func (t *UnifiedTable) Replace(handle Handle, value any) bool {
	return t.backend.Replace(handle, value)
}

// Stale reports whether handle names a slot that has since been freed.
func (t *UnifiedTable) Stale(handle Handle) bool {
	return t.backend.Stale(handle)
}

// Remove takes a value out of the table without dropping it; the caller
// becomes its owner.
func (t *UnifiedTable) Remove(handle Handle) (any, bool) {
	typeID, _ := t.backend.TypeID(handle)
	value, ok := t.backend.Drop(handle)
	if !ok {
		return nil, false
	}
	t.notify(Event{Type: EventDropped, Handle: handle, TypeID: typeID, Value: value})
	return value, true
}

// Release removes a value and drops it if it implements Dropper.
func (t *UnifiedTable) Release(handle Handle) error {
	value, ok := t.Remove(handle)
	if !ok {
		return fmt.Errorf("%w: %#x", ErrInvalidHandle, uint64(handle))
	}
	if d, ok := value.(Dropper); ok {
		return d.Drop()
	}
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *UnifiedTable) Unsubscribe(o Observer) {
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live values.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Count returns the number of live values stored under typeID.
func (t *UnifiedTable) Count(typeID uint32) int {
	n := 0
	t.backend.Each(func(_ Handle, id uint32, _ any) bool {
		if id == typeID {
			n++
		}
		return true
	})
	return n
}

// Clear releases every value. All values are removed even when some drops
// fail; the failures are combined.
func (t *UnifiedTable) Clear() error {
	// drops may insert or remove entries, so walk a snapshot
	var handles []Handle
	t.backend.Each(func(h Handle, _ uint32, _ any) bool {
		handles = append(handles, h)
		return true
	})
	var errs error
	for _, h := range handles {
		if _, ok := t.backend.Get(h); !ok {
			continue
		}
		errs = multierr.Append(errs, t.Release(h))
	}
	return errs
}

func (t *UnifiedTable) notify(e Event) {
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
