package wasm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/taintbox/abi"
	"github.com/wippyai/taintbox/backend/wasm"
	taintberr "github.com/wippyai/taintbox/errors"
	"github.com/wippyai/taintbox/sandbox"
)

// testModule is a hand-assembled wasm module exporting one page of
// memory, add(i32,i32)->i32, a bump allocator malloc(i32)->i32 starting
// at offset 16, and a no-op free(i32).
var testModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version 1

	// type section: (i32,i32)->i32, (i32)->i32, (i32)->()
	0x01, 0x10, 0x03,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x00,

	// function section: add, malloc, free
	0x03, 0x04, 0x03, 0x00, 0x01, 0x02,

	// memory section: 1 page, no max
	0x05, 0x03, 0x01, 0x00, 0x01,

	// global section: mutable i32 bump pointer = 16
	0x06, 0x06, 0x01, 0x7f, 0x01, 0x41, 0x10, 0x0b,

	// export section: memory, add, malloc, free
	0x07, 0x20, 0x04,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x06, 'm', 'a', 'l', 'l', 'o', 'c', 0x00, 0x01,
	0x04, 'f', 'r', 'e', 'e', 0x00, 0x02,

	// code section
	0x0a, 0x18, 0x03,
	// add: local.get 0, local.get 1, i32.add
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
	// malloc: result = bump; bump += size
	0x0b, 0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b,
	// free: no-op
	0x02, 0x00, 0x0b,
}

func newBackend(t *testing.T) *wasm.Backend {
	t.Helper()
	b := wasm.New(wasm.Config{Module: testModule})
	if err := b.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = b.Destroy(context.Background()) })
	return b
}

func TestCreateValidation(t *testing.T) {
	t.Run("empty module", func(t *testing.T) {
		b := wasm.New(wasm.Config{})
		if err := b.Create(context.Background()); err == nil {
			t.Error("Create with no module should fail")
		}
	})

	t.Run("malformed module", func(t *testing.T) {
		b := wasm.New(wasm.Config{Module: []byte{1, 2, 3, 4}})
		if err := b.Create(context.Background()); err == nil {
			t.Error("Create with garbage bytes should fail")
		}
	})

	t.Run("double create", func(t *testing.T) {
		b := newBackend(t)
		if err := b.Create(context.Background()); err == nil {
			t.Error("second Create should fail")
		}
	})
}

func TestMemory(t *testing.T) {
	b := newBackend(t)

	if b.HeapSize() != 65536 {
		t.Errorf("HeapSize = %d, want one page", b.HeapSize())
	}
	if b.ABI() != abi.Wasm32 {
		t.Errorf("ABI = %+v, want wasm32", b.ABI())
	}
	if b.HeapBase() == 0 {
		t.Error("HeapBase = 0 for live memory")
	}

	if err := b.Write(100, []byte{0xab, 0xcd}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf, err := b.Read(100, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if buf[0] != 0xab || buf[1] != 0xcd {
		t.Errorf("read back %x", buf)
	}

	if _, err := b.Read(65536, 1); !errors.Is(err, &taintberr.Error{Phase: taintberr.PhaseMemory, Kind: taintberr.KindOutOfBounds}) {
		t.Errorf("Read past end: %v, want out_of_bounds", err)
	}
	if err := b.Write(1<<40, []byte{1}); !errors.Is(err, &taintberr.Error{Phase: taintberr.PhaseMemory, Kind: taintberr.KindOutOfBounds}) {
		t.Errorf("Write past uint32: %v, want out_of_bounds", err)
	}
}

func TestGuestAllocator(t *testing.T) {
	b := newBackend(t)

	off, err := b.Alloc(8, 4)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if off != 16 {
		t.Errorf("first allocation at %#x, want bump base 16", off)
	}
	second, err := b.Alloc(4, 4)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if second != 24 {
		t.Errorf("second allocation at %#x, want 24", second)
	}
	b.Free(off)
	b.Free(0) // null free is a no-op
}

func TestGuestInvoke(t *testing.T) {
	b := newBackend(t)

	res, err := b.Invoke(context.Background(), "add", []uint64{5, 7})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res) != 1 || res[0] != 12 {
		t.Errorf("add(5,7) = %v, want [12]", res)
	}

	if _, err := b.Invoke(context.Background(), "missing", nil); !errors.Is(err, &taintberr.Error{Phase: taintberr.PhaseInvoke, Kind: taintberr.KindNotFound}) {
		t.Errorf("missing export: %v, want not_found", err)
	}
}

func TestExports(t *testing.T) {
	b := newBackend(t)

	byName := map[string]wasm.Export{}
	for _, e := range b.Exports() {
		byName[e.Name] = e
	}
	add, ok := byName["add"]
	if !ok {
		t.Fatal("add not listed")
	}
	if len(add.Params) != 2 || len(add.Results) != 1 {
		t.Fatalf("add signature %v -> %v, want 2 -> 1", add.Params, add.Results)
	}
	if add.Params[0] != "i32" || add.Results[0] != "i32" {
		t.Errorf("add types %v -> %v, want i32", add.Params, add.Results)
	}
	if _, ok := byName["malloc"]; !ok {
		t.Error("malloc not listed")
	}
}

func TestSandboxOverWasm(t *testing.T) {
	ctx := context.Background()
	b := wasm.New(wasm.Config{Module: testModule})
	sbx := sandbox.New(b)
	if err := sbx.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer sbx.Destroy(ctx)

	a := sandbox.Taint[int32](sbx, 5)
	c := sandbox.Taint[int32](sbx, 7)
	ret, err := sandbox.Invoke[int32](ctx, sbx, "add", a, c)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := ret.Unverified(); got != 12 {
		t.Errorf("add = %d, want 12", got)
	}

	// Guest-allocated storage is usable through the wrappers.
	p, err := sandbox.AllocIn[int32](sbx)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)
	if err := p.Deref().Set(-9); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := p.Deref().Unverified()
	if err != nil {
		t.Fatalf("Unverified: %v", err)
	}
	if got != -9 {
		t.Errorf("pointee = %d, want -9", got)
	}
}

func TestDestroyInvalidates(t *testing.T) {
	b := wasm.New(wasm.Config{Module: testModule})
	if err := b.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := b.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := b.Read(0, 1); err == nil {
		t.Error("Read after Destroy should fail")
	}
	if b.HeapBase() != 0 {
		t.Error("HeapBase after Destroy should be 0")
	}
	// Destroy twice is harmless.
	if err := b.Destroy(context.Background()); err != nil {
		t.Errorf("second Destroy: %v", err)
	}
}
