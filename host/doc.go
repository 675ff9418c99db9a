// Package host exposes a bridge to WebAssembly guests as a wazero host
// module.
//
// Every export takes and returns core wasm scalars. Strings and point lists
// are passed as (ptr, len) pairs into the calling guest's memory; points are
// consecutive little-endian f64 pairs. Objects are named by u64 guest
// handles, each holding one owner of the underlying native block.
//
//	rt := wazero.NewRuntime(ctx)
//	m := host.New(bridge.NewWithDefaults(), host.DefaultOptions())
//	if _, err := m.Instantiate(ctx, rt); err != nil {
//		return err
//	}
//	guest, err := rt.Instantiate(ctx, wasmBytes)
//
// A call that fails returns 0 and records its message; guests read it back
// with last_error_len and last_error. Catalog lists the exports with their
// WIT-level signatures.
package host
