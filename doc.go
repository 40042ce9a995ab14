// Package taintbox provides a trust boundary between a host program and a
// sandboxed execution domain.
//
// Data that crosses the boundary is wrapped in tainted value types that
// cannot be used directly: no arithmetic, no comparison, no dereference.
// Every escape back to a raw value is an explicit, greppable operation.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	taintbox/        Root package with the Backend interface
//	├── sandbox/     Sandbox instances, Tainted/Volatile wrappers, invocation
//	├── abi/         Sandbox ABI descriptors and representation conversion
//	├── errors/      Structured error types
//	├── backend/     Backend implementations (noop, wasm)
//	└── cmd/sbxcall/ CLI for invoking functions in a wasm sandbox
//
// # Quick Start
//
// Create a sandbox over a backend, allocate memory inside it, and invoke a
// sandbox-resident function:
//
//	sbx := sandbox.New(be)
//	if err := sbx.Create(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sbx.Destroy(ctx)
//
//	a := sandbox.Taint[int32](sbx, 5)
//	b := sandbox.Taint[int32](sbx, 7)
//	ret, err := sandbox.Invoke[int32](ctx, sbx, "add", a, b)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(ret.Unverified()) // 12
//
// # Trust Model
//
// Anything that comes back from the sandbox starts out tainted. A
// Tainted value is a stable host-side copy; a Volatile value is a live
// view into sandbox memory that a concurrent sandbox thread can change
// between any two reads. Promoting a Volatile to a Tainted value is the
// only way to obtain a snapshot with no further race exposure.
//
// # Thread Safety
//
// A Sandbox and its backend serialize heap allocation internally. Tainted
// values are plain values and safe to copy between goroutines. Volatile
// values read live sandbox memory and inherit whatever concurrency the
// backend permits.
package taintbox
