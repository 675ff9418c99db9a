// Package resource provides handle tables and counted ownership handles.
//
// # Handles
//
// A Handle names a slot in a LocalBackend. The low 32 bits carry the slot
// number and the high 32 bits the slot generation:
//
//	b := resource.NewLocalBackend()
//	h, _ := b.Create(typeID, value)
//	b.Drop(h)
//	h2, _ := b.Create(typeID, other) // same slot, next generation
//	b.Get(h)                         // !ok, h is stale
//
// Dropping bumps the generation, so a handle issued before a slot was freed
// never resolves to whatever is stored there later.
//
// # Handle Table
//
// UnifiedTable layers type IDs and lifecycle observers over a backend:
//
//	table := resource.NewTable()
//	handle := table.Insert(typeID, value)
//	value, ok := table.Get(handle)
//	table.Stale(handle) // true once the slot is freed and reused
//
//	// Take the value out, the caller now owns it
//	value, ok = table.Remove(handle)
//
//	// Or remove and drop it
//	err := table.Release(handle)
//
// Observers receive EventCreated and EventDropped for every insert and
// removal.
//
// # Ownership
//
// A Ref is one owner of a resource. Clone adds an owner and Release gives one
// up; the finalizer passed to NewRef runs once, when the last owner releases:
//
//	r := resource.NewRef(h, typeID, func() error { return free(h) })
//	c := r.Clone()
//	r.Release() // c still owns it
//	c.Release() // finalizer runs
//
// Refs stored in a UnifiedTable are released when the entry is released,
// since Ref implements Dropper.
package resource
