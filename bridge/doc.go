// Package bridge keeps native geometry blocks alive for exactly as long as
// something needs them.
//
// Native blocks have no reference counts. The bridge keeps the counts in
// side tables keyed by block address instead:
//
//   - Ownership: each cell owns its polygons, references, paths and labels.
//   - Reference links: each Cell or RawCell reference owns its target.
//   - Library membership: each library owns its cells and raw cells.
//   - Callbacks: custom join, end, bend and parametric functions of paths
//     and curves.
//
// Host code receives *resource.Ref values. Every Ref is one owner; the block
// is finalized when the last owner across the host and all tables is
// released:
//
//	b := bridge.NewWithDefaults()
//	lib, _ := b.NewLibrary("demo", 1e-6, 1e-9)
//	a, _ := b.LibraryNewCell(lib, "A")
//	top, _ := b.LibraryNewCell(lib, "TOP")
//	ref, _ := b.NewReference(bridge.CellTarget{Cell: a}, bridge.DefaultReferenceOptions())
//	b.CellAdd(top, ref)
//	ref.Release() // TOP still owns the reference
//	a.Release()   // the library and the reference still own A
//
// Finalizers cascade: releasing a cell releases everything it owns, which
// may finalize referenced cells in turn.
//
// # Callbacks
//
// Native path elements store a function and a data word. The bridge stores
// its trampolines there with a CallbackKey as the data word, and the host
// function in its registry. Replacing a function erases the old entry
// first, and filters that move elements re-key their entries.
//
// # Cycles
//
// A cell that references itself, directly or through other cells, is
// accepted and never finalized. CellFlatten detects the cycle and fails
// without changing the cell.
//
// A Bridge is not safe for concurrent use.
package bridge
