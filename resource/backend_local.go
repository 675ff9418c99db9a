package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed    = errors.New("resource backend closed")
	ErrExhausted = errors.New("resource backend slot space exhausted")
)

// LocalBackend is an in-memory slot backend. Freed slots are reused, but
// every reuse bumps the slot generation, so handles issued before the slot
// was freed never resolve to the new occupant.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value  any
	typeID uint32
	gen    uint32
	valid  bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(typeID uint32, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if len(b.freeList) > 0 {
		slot := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		e := &b.entries[slot-1]
		e.typeID = typeID
		e.value = value
		e.valid = true
		return makeHandle(slot, e.gen), nil
	}

	if uint64(len(b.entries)) >= 1<<32-1 {
		return 0, ErrExhausted
	}
	b.entries = append(b.entries, entry{
		typeID: typeID,
		value:  value,
		gen:    1,
		valid:  true,
	})
	return makeHandle(uint32(len(b.entries)), 1), nil
}

// lookup returns the live entry for handle. Caller holds b.mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	slot := handle.Slot()
	if slot == 0 || int(slot) > len(b.entries) {
		return nil
	}
	e := &b.entries[slot-1]
	if !e.valid || e.gen != handle.Generation() {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Replace swaps the value stored at handle, keeping the handle valid.
func (b *LocalBackend) Replace(handle Handle, value any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return false
	}
	e.value = value
	return true
}

// Drop removes a resource and returns (value, true) if it was live.
func (b *LocalBackend) Drop(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}

	value := e.value
	e.valid = false
	e.value = nil
	e.gen++
	if e.gen == 0 {
		e.gen = 1
	}
	b.freeList = append(b.freeList, handle.Slot())

	return value, true
}

// Stale reports whether handle names a slot that exists but has since been
// dropped (and possibly reused).
func (b *LocalBackend) Stale(handle Handle) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	slot := handle.Slot()
	if slot == 0 || int(slot) > len(b.entries) {
		return false
	}
	e := b.entries[slot-1]
	return !e.valid || e.gen != handle.Generation()
}

// Close releases all resources.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				if err := d.Drop(); err != nil {
					errs = append(errs, err)
				}
			}
			b.entries[i].valid = false
			b.entries[i].value = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	return errors.Join(errs...)
}

// TypeID returns the type ID for a handle.
func (b *LocalBackend) TypeID(handle Handle) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// Len returns the number of active resources.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all active resources.
func (b *LocalBackend) Each(fn func(Handle, uint32, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(uint32(i+1), e.gen), e.typeID, e.value) {
				break
			}
		}
	}
}
