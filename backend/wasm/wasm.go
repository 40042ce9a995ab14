package wasm

import (
	"context"
	"math"
	"sync"
	"unsafe"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/taintbox/abi"
	"github.com/wippyai/taintbox/errors"
)

// Conventional allocator export names, standard first. Legacy names
// come from pre-standardization component model implementations.
var (
	allocNames = []string{"cabi_realloc", "canonical_abi_realloc", "allocate", "alloc", "malloc"}
	freeNames  = []string{"cabi_free", "deallocate", "free"}
)

// Config configures a wasm backend.
type Config struct {
	// Module is the guest wasm binary.
	Module []byte
	// MemoryLimitPages caps guest memory in 64KB pages. Zero means no
	// explicit limit.
	MemoryLimitPages uint32
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

type allocation struct {
	size  uint32
	align uint32
}

// Backend runs sandbox code inside a wazero-executed wasm module.
type Backend struct {
	cfg Config
	log *zap.Logger

	runtime wazero.Runtime
	mod     api.Module
	mem     api.Memory

	allocFn     api.Function
	freeFn      api.Function
	allocSimple bool
	freeSimple  bool

	mu     sync.Mutex
	allocs map[uint64]allocation
}

// New creates a wasm backend for a guest module.
func New(cfg Config) *Backend {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{cfg: cfg, log: log}
}

func (b *Backend) Create(ctx context.Context) error {
	if len(b.cfg.Module) == 0 {
		return errors.InvalidInput(errors.PhaseLifecycle, "no guest module configured")
	}
	if b.runtime != nil {
		return errors.InvalidInput(errors.PhaseLifecycle, "backend already created")
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if b.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(b.cfg.MemoryLimitPages)
	}
	b.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	mod, err := b.runtime.Instantiate(ctx, b.cfg.Module)
	if err != nil {
		b.runtime.Close(ctx)
		b.runtime = nil
		return errors.Wrap(errors.PhaseLifecycle, errors.KindInvalidInput, err, "instantiate guest module")
	}
	b.mod = mod

	b.mem = mod.Memory()
	if b.mem == nil {
		mod.Close(ctx)
		b.runtime.Close(ctx)
		b.runtime = nil
		return errors.InvalidInput(errors.PhaseLifecycle, "guest module exports no memory")
	}

	defs := mod.ExportedFunctionDefinitions()
	for _, name := range allocNames {
		if def, ok := defs[name]; ok {
			b.allocFn = mod.ExportedFunction(name)
			b.allocSimple = len(def.ParamTypes()) < 4
			break
		}
	}
	for _, name := range freeNames {
		if def, ok := defs[name]; ok {
			b.freeFn = mod.ExportedFunction(name)
			b.freeSimple = len(def.ParamTypes()) < 3
			break
		}
	}
	b.allocs = make(map[uint64]allocation)

	b.log.Debug("wasm sandbox created",
		zap.Uint32("memory_bytes", b.mem.Size()),
		zap.Bool("has_allocator", b.allocFn != nil))
	return nil
}

func (b *Backend) Destroy(ctx context.Context) error {
	if b.runtime == nil {
		return nil
	}
	var firstErr error
	if b.mod != nil {
		if err := b.mod.Close(ctx); err != nil {
			firstErr = err
		}
		b.mod = nil
	}
	if err := b.runtime.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	b.runtime = nil
	b.mem = nil
	b.allocFn = nil
	b.freeFn = nil
	b.allocs = nil
	return firstErr
}

func (b *Backend) Alloc(size, align uint32) (uint64, error) {
	if b.allocFn == nil {
		return 0, errors.Unsupported(errors.PhaseAlloc, "guest module exports no allocator")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var results []uint64
	var err error
	if b.allocSimple {
		results, err = b.allocFn.Call(context.Background(), uint64(size))
	} else {
		// cabi_realloc(old_ptr, old_size, align, new_size)
		results, err = b.allocFn.Call(context.Background(), 0, 0, uint64(align), uint64(size))
	}
	if err != nil {
		return 0, errors.AllocationFailed(size, align, err)
	}
	if len(results) == 0 || results[0] == 0 {
		return 0, errors.AllocationFailed(size, align, nil)
	}
	offset := results[0]
	b.allocs[offset] = allocation{size: size, align: align}
	return offset, nil
}

func (b *Backend) Free(offset uint64) {
	if b.freeFn == nil || offset == 0 {
		return
	}
	b.mu.Lock()
	a, ok := b.allocs[offset]
	if ok {
		delete(b.allocs, offset)
	}
	b.mu.Unlock()

	var err error
	if b.freeSimple {
		_, err = b.freeFn.Call(context.Background(), offset)
	} else {
		_, err = b.freeFn.Call(context.Background(), offset, uint64(a.size), uint64(a.align))
	}
	if err != nil {
		b.log.Warn("guest free failed",
			zap.Uint64("offset", offset),
			zap.Uint32("size", a.size),
			zap.Error(err))
	}
}

// HeapBase returns the host address of the start of guest linear
// memory as of this call. Linear memory relocates when the guest grows
// it, so the address is only valid until the next guest execution.
func (b *Backend) HeapBase() uintptr {
	if b.mem == nil {
		return 0
	}
	view, ok := b.mem.Read(0, b.mem.Size())
	if !ok || len(view) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&view[0]))
}

func (b *Backend) HeapSize() uint64 {
	if b.mem == nil {
		return 0
	}
	return uint64(b.mem.Size())
}

func (b *Backend) Read(offset uint64, length uint32) ([]byte, error) {
	if b.mem == nil {
		return nil, errors.NotCreated(errors.PhaseMemory)
	}
	if offset > math.MaxUint32 {
		return nil, errors.OffsetOutOfBounds(errors.PhaseMemory, offset, length, b.HeapSize())
	}
	view, ok := b.mem.Read(uint32(offset), length)
	if !ok {
		return nil, errors.OffsetOutOfBounds(errors.PhaseMemory, offset, length, b.HeapSize())
	}
	return view, nil
}

func (b *Backend) Write(offset uint64, data []byte) error {
	if b.mem == nil {
		return errors.NotCreated(errors.PhaseMemory)
	}
	if offset > math.MaxUint32 {
		return errors.OffsetOutOfBounds(errors.PhaseMemory, offset, uint32(len(data)), b.HeapSize())
	}
	if !b.mem.Write(uint32(offset), data) {
		return errors.OffsetOutOfBounds(errors.PhaseMemory, offset, uint32(len(data)), b.HeapSize())
	}
	return nil
}

func (b *Backend) Invoke(ctx context.Context, name string, args []uint64) ([]uint64, error) {
	if b.mod == nil {
		return nil, errors.NotCreated(errors.PhaseInvoke)
	}
	fn := b.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseInvoke, "export", name)
	}
	return fn.Call(ctx, args...)
}

func (b *Backend) ABI() abi.Descriptor {
	return abi.Wasm32
}

// Export describes one guest export, for listings. Params and Results
// hold wasm value type names (i32, i64, f32, f64).
type Export struct {
	Name    string
	Params  []string
	Results []string
}

// Exports returns the guest's exported functions.
func (b *Backend) Exports() []Export {
	if b.mod == nil {
		return nil
	}
	var out []Export
	for name, def := range b.mod.ExportedFunctionDefinitions() {
		e := Export{Name: name}
		for _, t := range def.ParamTypes() {
			e.Params = append(e.Params, api.ValueTypeName(t))
		}
		for _, t := range def.ResultTypes() {
			e.Results = append(e.Results, api.ValueTypeName(t))
		}
		out = append(out, e)
	}
	return out
}
