// Package wasm provides a sandbox backend over a WebAssembly module
// executed by wazero. The guest module owns the sandbox heap (its
// linear memory) and the sandbox-resident functions (its exports).
//
// Allocation goes through the guest's own allocator, located by the
// conventional export names (cabi_realloc and its legacy variants, or
// malloc/free). Linear memory relocates when it grows, so the heap base
// is re-derived from the live memory view on every call.
package wasm
