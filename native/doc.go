// Package native is the geometry engine side of the bridge: fixed-layout
// blocks allocated from a manual Arena, the typed address arrays that cells
// and libraries keep, and the engine walks over them (copy, flatten, filter,
// dependency and top-level queries).
//
// Blocks carry no reference counts and no pointers to their owners. A Cell
// holds addresses in five arrays:
//
//	Polygons, References, FlexPaths, RobustPaths, Labels
//
// and a Library holds addresses of its Cells and RawCells. Whether a block
// is still needed is decided elsewhere; this package only allocates, mutates
// and frees.
//
// # Addresses
//
// An Addr is a generation-tagged slot handle. Free bumps the slot
// generation, so an Addr kept past Free fails with a stale handle error
// instead of resolving to a later block in the same slot.
//
// # Tags
//
// MakeTag packs (layer, type) with the layer in the low 32 bits:
//
//	t := native.MakeTag(1, 0)
//	t.Layer() // 1
//	t.Type()  // 0
//
// # Custom generators
//
// Path elements and curves may carry a JoinFunc, EndFunc, BendFunc or
// ParametricFunc plus an opaque data word. JoinAt, EndAt, BendAt and
// ParametricTo call the stored function with that data word, which lets a
// caller route the call to state it keeps outside the block.
package native
