// Package errors provides structured error types for the taintbox library.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category). The Error type includes rich context: host/sandbox
// type names, the offending value, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindOutOfBounds).
//		HostType("uintptr").
//		Detail("address outside sandbox heap").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AddressOutOfBounds(addr, base, size)
//	err := errors.NotCreated(errors.PhaseInvoke)
//
// All errors implement the standard error interface and support
// errors.Is/As.
//
// Boundary violations that indicate a host logic error rather than an
// expected runtime condition (a host address outside the sandbox heap)
// are raised as panics carrying an *Error; see the sandbox package.
package errors
