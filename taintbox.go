package taintbox

import (
	"context"

	"github.com/wippyai/taintbox/abi"
)

// Backend is the contract a sandbox implementation provides to the core.
// It owns the sandbox heap and executes sandbox-resident functions; the
// core never touches sandbox memory except through this interface.
//
// Offsets are sandbox-relative: distances from the current heap base.
// HeapBase may change between calls when the backend relocates or grows
// its heap, so callers must re-derive host addresses at every use.
type Backend interface {
	// Create brackets the sandbox lifecycle. All other methods are only
	// valid between Create and Destroy.
	Create(ctx context.Context) error
	Destroy(ctx context.Context) error

	// Alloc reserves size bytes inside the sandbox heap and returns the
	// sandbox-relative offset. A returned offset is never zero; zero is
	// the null pointer representation.
	Alloc(size, align uint32) (uint64, error)
	Free(offset uint64)

	// HeapBase returns the host address of the heap start as of this
	// call. HeapSize returns the heap length in bytes.
	HeapBase() uintptr
	HeapSize() uint64

	Read(offset uint64, length uint32) ([]byte, error)
	Write(offset uint64, data []byte) error

	// Invoke runs the named sandbox-resident function with arguments
	// already encoded in the sandbox ABI, one uint64 slot per argument.
	Invoke(ctx context.Context, name string, args []uint64) ([]uint64, error)

	// ABI describes the sandbox's integer and pointer widths.
	ABI() abi.Descriptor
}

// Memory is the read/write subset of Backend, for code that only needs
// access to sandbox heap contents.
type Memory interface {
	Read(offset uint64, length uint32) ([]byte, error)
	Write(offset uint64, data []byte) error
}

// Allocator is the allocation subset of Backend.
type Allocator interface {
	Alloc(size, align uint32) (uint64, error)
	Free(offset uint64)
}
