package noop

import (
	"context"
	"sync"
	"unsafe"

	"github.com/wippyai/taintbox/abi"
	"github.com/wippyai/taintbox/errors"
)

// Func is a sandbox-resident function. It operates purely in sandbox
// representation: argument slots already encoded in the sandbox ABI and
// a view of the sandbox heap. It knows nothing about wrappers.
type Func func(h *Heap, args []uint64) ([]uint64, error)

// Config configures a noop backend.
type Config struct {
	// HeapSize is the sandbox heap size in bytes. Defaults to 1 MiB.
	HeapSize uint32
	// ABI is the emulated ABI descriptor. Defaults to abi.Native.
	ABI abi.Descriptor
}

const defaultHeapSize = 1 << 20

// The first bytes of the heap are reserved so no allocation ever lands
// on offset zero, keeping zero as the null pointer representation.
const heapReserved = 16

// Backend is an in-process sandbox backend.
type Backend struct {
	cfg Config

	mu     sync.Mutex
	heap   []byte
	next   uint64
	sizes  map[uint64]uint32
	freed  map[uint32][]uint64
	funcs  map[string]Func
	active bool
}

// New creates a noop backend.
func New(cfg Config) *Backend {
	if cfg.HeapSize == 0 {
		cfg.HeapSize = defaultHeapSize
	}
	if cfg.ABI == (abi.Descriptor{}) {
		cfg.ABI = abi.Native
	}
	return &Backend{
		cfg:   cfg,
		funcs: make(map[string]Func),
	}
}

// Register installs a sandbox-resident function under a name. Must be
// called before the function is invoked; registration is not
// synchronized with invocation.
func (b *Backend) Register(name string, fn Func) {
	b.funcs[name] = fn
}

func (b *Backend) Create(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		return errors.InvalidInput(errors.PhaseLifecycle, "backend already created")
	}
	b.heap = make([]byte, b.cfg.HeapSize)
	b.next = heapReserved
	b.sizes = make(map[uint64]uint32)
	b.freed = make(map[uint32][]uint64)
	b.active = true
	return nil
}

func (b *Backend) Destroy(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.heap = nil
	b.sizes = nil
	b.freed = nil
	b.active = false
	return nil
}

func (b *Backend) Alloc(size, align uint32) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return 0, errors.NotCreated(errors.PhaseAlloc)
	}
	if size == 0 {
		return 0, errors.InvalidInput(errors.PhaseAlloc, "zero-size allocation")
	}
	if align == 0 {
		align = 1
	}
	// Exact-size reuse before bumping.
	if list := b.freed[size]; len(list) > 0 {
		off := list[len(list)-1]
		if off%uint64(align) == 0 {
			b.freed[size] = list[:len(list)-1]
			b.sizes[off] = size
			return off, nil
		}
	}
	off := (b.next + uint64(align) - 1) &^ (uint64(align) - 1)
	if off+uint64(size) > uint64(len(b.heap)) {
		return 0, errors.AllocationFailed(size, align, nil)
	}
	b.next = off + uint64(size)
	b.sizes[off] = size
	return off, nil
}

func (b *Backend) Free(offset uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	size, ok := b.sizes[offset]
	if !ok {
		return
	}
	delete(b.sizes, offset)
	b.freed[size] = append(b.freed[size], offset)
}

func (b *Backend) HeapBase() uintptr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.heap) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.heap[0]))
}

func (b *Backend) HeapSize() uint64 {
	return uint64(b.cfg.HeapSize)
}

func (b *Backend) Read(offset uint64, length uint32) ([]byte, error) {
	if !b.active {
		return nil, errors.NotCreated(errors.PhaseMemory)
	}
	if offset >= uint64(len(b.heap)) || uint64(length) > uint64(len(b.heap))-offset {
		return nil, errors.OffsetOutOfBounds(errors.PhaseMemory, offset, length, uint64(len(b.heap)))
	}
	return b.heap[offset : offset+uint64(length)], nil
}

func (b *Backend) Write(offset uint64, data []byte) error {
	if !b.active {
		return errors.NotCreated(errors.PhaseMemory)
	}
	if offset >= uint64(len(b.heap)) || uint64(len(data)) > uint64(len(b.heap))-offset {
		return errors.OffsetOutOfBounds(errors.PhaseMemory, offset, uint32(len(data)), uint64(len(b.heap)))
	}
	copy(b.heap[offset:], data)
	return nil
}

func (b *Backend) Invoke(ctx context.Context, name string, args []uint64) ([]uint64, error) {
	if !b.active {
		return nil, errors.NotCreated(errors.PhaseInvoke)
	}
	fn, ok := b.funcs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseInvoke, "function", name)
	}
	return fn(&Heap{b: b}, args)
}

func (b *Backend) ABI() abi.Descriptor {
	return b.cfg.ABI
}
