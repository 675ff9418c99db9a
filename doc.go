// Package gdsbridge keeps native layout geometry alive exactly as long as a
// host environment can still reach it.
//
// Native objects (polygons, paths, labels, references, cells, libraries)
// live in an arena and point at each other by address. The host holds
// counted owners instead. The bridge tracks which container owns which
// object, which reference targets which cell, and which cells a library
// holds, and tears a block down only when its last owner is gone.
//
// # Architecture Overview
//
//	gdsbridge/
//	├── native/          Arena of native blocks and the geometry engine
//	├── resource/        Handle table and counted owners (Ref)
//	├── bridge/          Ownership, link, membership and callback registries
//	├── host/            wazero host module exposing the bridge to guests
//	├── script/          HCL layout scripts built through the bridge
//	├── errors/          Structured error types
//	└── cmd/gdsbridge/   CLI and interactive inspector
//
// # Quick Start
//
//	b := bridge.NewWithDefaults()
//
//	lib, _ := b.NewLibrary("demo", 1e-6, 1e-9)
//	defer lib.Release()
//
//	top, _ := b.LibraryNewCell(lib, "TOP")
//	poly, _ := b.NewRectangle(native.Vec2{}, native.Vec2{X: 1, Y: 1}, 1, 0)
//	if err := b.CellAdd(top, poly); err != nil {
//	    log.Fatal(err)
//	}
//	poly.Release() // the cell still owns it
//	top.Release()  // the library still owns the cell
//
// # Thread Safety
//
// A Bridge is not safe for concurrent use. Owners may only be released from
// the goroutine that drives the bridge.
package gdsbridge
