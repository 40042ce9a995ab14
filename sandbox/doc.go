// Package sandbox provides sandbox instances and the tainted value
// wrappers that guard data crossing the trust boundary.
//
// A Sandbox owns a backend's heap and ABI for its lifetime, bracketed by
// Create and Destroy. Three wrapper types track provenance:
//
//   - Tainted[T]: a host-resident copy of a value that originated in, or
//     is destined for, the sandbox. Stable, but unvalidated.
//   - Volatile[T]: a live view of a location inside sandbox memory.
//     Every read goes through the heap at call time; two reads may
//     legitimately disagree if sandbox code runs concurrently.
//   - Ptr[T]: a tainted pointer holding a sandbox-relative offset.
//     Dereferencing yields a Volatile, never a raw host pointer.
//
// None of the wrappers expose arithmetic, comparison or implicit
// conversion. The raw value is only reachable through the named escape
// operations Unverified, Sandboxed and CopyAndVerify, so every
// trust-boundary crossing can be found with grep.
//
// Invoke marshals arguments into the sandbox ABI, calls a
// sandbox-resident function through the backend, and wraps the result as
// a Tainted value.
package sandbox
