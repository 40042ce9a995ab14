package sandbox_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wippyai/taintbox/abi"
	"github.com/wippyai/taintbox/backend/noop"
	taintberr "github.com/wippyai/taintbox/errors"
	"github.com/wippyai/taintbox/sandbox"
)

// registerAddFuncs installs the sandbox-side arithmetic used across the
// invoke tests. Functions see only the heap and ABI slots; arithmetic
// happens at the sandbox's own width.
func registerAddFuncs(be *noop.Backend) {
	be.Register("add_i32", func(h *noop.Heap, args []uint64) ([]uint64, error) {
		sum := int32(uint32(args[0])) + int32(uint32(args[1]))
		return []uint64{uint64(uint32(sum))}, nil
	})
	be.Register("add_i64", func(h *noop.Heap, args []uint64) ([]uint64, error) {
		sum := int64(args[0]) + int64(args[1])
		return []uint64{uint64(sum)}, nil
	})
	be.Register("add_f32", func(h *noop.Heap, args []uint64) ([]uint64, error) {
		sum := math.Float32frombits(uint32(args[0])) + math.Float32frombits(uint32(args[1]))
		return []uint64{uint64(math.Float32bits(sum))}, nil
	})
	be.Register("add_f64", func(h *noop.Heap, args []uint64) ([]uint64, error) {
		sum := math.Float64frombits(args[0]) + math.Float64frombits(args[1])
		return []uint64{math.Float64bits(sum)}, nil
	})
	be.Register("add_u16", func(h *noop.Heap, args []uint64) ([]uint64, error) {
		sum := uint16(args[0]) + uint16(args[1])
		return []uint64{uint64(sum)}, nil
	})
	be.Register("add_u32", func(h *noop.Heap, args []uint64) ([]uint64, error) {
		sum := uint32(args[0]) + uint32(args[1])
		return []uint64{uint64(sum)}, nil
	})
	be.Register("add_u64", func(h *noop.Heap, args []uint64) ([]uint64, error) {
		return []uint64{args[0] + args[1]}, nil
	})
}

func newSandbox(t *testing.T, cfg noop.Config) (*sandbox.Sandbox, *noop.Backend) {
	t.Helper()
	be := noop.New(cfg)
	registerAddFuncs(be)
	sbx := sandbox.New(be)
	if err := sbx.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = sbx.Destroy(context.Background()) })
	return sbx, be
}

func TestLifecycle(t *testing.T) {
	t.Run("double create", func(t *testing.T) {
		be := noop.New(noop.Config{})
		sbx := sandbox.New(be)
		if err := sbx.Create(context.Background()); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := sbx.Create(context.Background()); err == nil {
			t.Error("second Create should fail")
		}
		if err := sbx.Destroy(context.Background()); err != nil {
			t.Fatalf("Destroy: %v", err)
		}
	})

	t.Run("use before create", func(t *testing.T) {
		be := noop.New(noop.Config{})
		sbx := sandbox.New(be)
		_, err := sandbox.Invoke[int32](context.Background(), sbx, "add_i32", int32(1), int32(2))
		if !errors.Is(err, &taintberr.Error{Phase: taintberr.PhaseInvoke, Kind: taintberr.KindNotCreated}) {
			t.Errorf("err = %v, want not_created", err)
		}
		_, err = sandbox.AllocIn[int32](sbx)
		if !errors.Is(err, &taintberr.Error{Phase: taintberr.PhaseAlloc, Kind: taintberr.KindNotCreated}) {
			t.Errorf("alloc err = %v, want not_created", err)
		}
	})

	t.Run("use after destroy", func(t *testing.T) {
		be := noop.New(noop.Config{})
		sbx := sandbox.New(be)
		if err := sbx.Create(context.Background()); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := sbx.Destroy(context.Background()); err != nil {
			t.Fatalf("Destroy: %v", err)
		}
		_, err := sandbox.Invoke[int32](context.Background(), sbx, "add_i32", int32(1), int32(2))
		if !errors.Is(err, &taintberr.Error{Phase: taintberr.PhaseInvoke, Kind: taintberr.KindDestroyed}) {
			t.Errorf("err = %v, want destroyed", err)
		}
		if err := sbx.Destroy(context.Background()); err == nil {
			t.Error("second Destroy should fail")
		}
	})

	t.Run("create after destroy", func(t *testing.T) {
		be := noop.New(noop.Config{})
		sbx := sandbox.New(be)
		_ = sbx.Create(context.Background())
		_ = sbx.Destroy(context.Background())
		if err := sbx.Create(context.Background()); err == nil {
			t.Error("Create after Destroy should fail")
		}
	})
}

func TestAddressTranslation(t *testing.T) {
	sbx, be := newSandbox(t, noop.Config{})

	p, err := sandbox.AllocIn[int32](sbx)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)

	offset := p.Sandboxed()
	addr := sbx.OffsetToAddress(offset)
	if addr != be.HeapBase()+uintptr(offset) {
		t.Errorf("OffsetToAddress = %#x, want base+offset", addr)
	}
	if got := sbx.AddressToOffset(addr); got != offset {
		t.Errorf("AddressToOffset round trip = %#x, want %#x", got, offset)
	}
}

func TestAddressTranslationOutOfBoundsPanics(t *testing.T) {
	sbx, be := newSandbox(t, noop.Config{HeapSize: 4096})

	assertPanics := func(t *testing.T, fn func()) {
		t.Helper()
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected panic")
			}
			err, ok := r.(*taintberr.Error)
			if !ok {
				t.Fatalf("panic value %T, want *errors.Error", r)
			}
			if err.Kind != taintberr.KindOutOfBounds {
				t.Errorf("Kind = %v, want out_of_bounds", err.Kind)
			}
		}()
		fn()
	}

	t.Run("address below heap", func(t *testing.T) {
		assertPanics(t, func() { sbx.AddressToOffset(be.HeapBase() - 1) })
	})
	t.Run("address past heap end", func(t *testing.T) {
		assertPanics(t, func() { sbx.AddressToOffset(be.HeapBase() + 4096) })
	})
	t.Run("offset past heap end", func(t *testing.T) {
		assertPanics(t, func() { sbx.OffsetToAddress(1 << 20) })
	})
}

func TestWithABIOverride(t *testing.T) {
	be := noop.New(noop.Config{})
	narrow := abi.Descriptor{PointerWidth: abi.W4, IntWidth: abi.W2}
	sbx := sandbox.New(be, sandbox.WithABI(narrow))
	if got := sbx.ABI(); got != narrow {
		t.Errorf("ABI = %+v, want %+v", got, narrow)
	}
}
