package sandbox_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/wippyai/taintbox/backend/noop"
	taintberr "github.com/wippyai/taintbox/errors"
	"github.com/wippyai/taintbox/sandbox"
)

func TestVolatileSetAndRead(t *testing.T) {
	sbx, _ := newSandbox(t, noop.Config{})

	p, err := sandbox.AllocIn[int32](sbx)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)
	v := p.Deref()

	if err := v.Set(-123); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.Unverified()
	if err != nil {
		t.Fatalf("Unverified: %v", err)
	}
	if got != -123 {
		t.Errorf("Unverified = %d, want -123", got)
	}
	raw, err := v.Sandboxed()
	if err != nil {
		t.Fatalf("Sandboxed: %v", err)
	}
	neg := int32(-123)
	if raw != uint64(uint32(neg)) {
		t.Errorf("Sandboxed = %#x, want 32-bit two's complement", raw)
	}
}

func TestVolatileReadsAreFresh(t *testing.T) {
	sbx, be := newSandbox(t, noop.Config{})

	p, err := sandbox.AllocIn[uint32](sbx)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)
	v := p.Deref()

	if err := v.Set(1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	first, err := v.Unverified()
	if err != nil {
		t.Fatalf("Unverified: %v", err)
	}

	// Mutate the location behind the wrapper's back, the way a sandbox
	// thread would.
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 2)
	if err := be.Write(p.Sandboxed(), buf[:]); err != nil {
		t.Fatalf("backend write: %v", err)
	}

	second, err := v.Unverified()
	if err != nil {
		t.Fatalf("Unverified: %v", err)
	}
	if first != 1 || second != 2 {
		t.Errorf("reads = %d then %d, want 1 then 2", first, second)
	}
}

func TestVolatilePromoteSnapshots(t *testing.T) {
	sbx, be := newSandbox(t, noop.Config{})

	p, err := sandbox.AllocIn[uint32](sbx)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)
	v := p.Deref()

	if err := v.Set(7); err != nil {
		t.Fatalf("Set: %v", err)
	}
	snap, err := v.Promote()
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 99)
	if err := be.Write(p.Sandboxed(), buf[:]); err != nil {
		t.Fatalf("backend write: %v", err)
	}

	// The snapshot holds; the live view follows the heap.
	if got := snap.Unverified(); got != 7 {
		t.Errorf("promoted value = %d, want 7", got)
	}
	live, err := v.Unverified()
	if err != nil {
		t.Fatalf("Unverified: %v", err)
	}
	if live != 99 {
		t.Errorf("live value = %d, want 99", live)
	}
}

func TestVolatileSetTainted(t *testing.T) {
	sbx, _ := newSandbox(t, noop.Config{})

	p, err := sandbox.AllocIn[int64](sbx)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)
	v := p.Deref()

	a := sandbox.Taint[int64](sbx, -5)
	if err := v.SetTainted(a); err != nil {
		t.Fatalf("SetTainted: %v", err)
	}
	got, err := v.Unverified()
	if err != nil {
		t.Fatalf("Unverified: %v", err)
	}
	if got != -5 {
		t.Errorf("pointee = %d, want -5", got)
	}

	other, _ := newSandbox(t, noop.Config{})
	foreign := sandbox.Taint[int64](other, 1)
	if err := v.SetTainted(foreign); err == nil {
		t.Error("SetTainted must reject values from another sandbox")
	}
}

func TestVolatileAddrRoundTrip(t *testing.T) {
	sbx, _ := newSandbox(t, noop.Config{})

	p, err := sandbox.AllocIn[uint16](sbx)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)

	back := p.Deref().Addr()
	if back.Sandboxed() != p.Sandboxed() {
		t.Errorf("Addr of Deref = %#x, want %#x", back.Sandboxed(), p.Sandboxed())
	}
}

func TestPtrIndex(t *testing.T) {
	sbx, _ := newSandbox(t, noop.Config{})

	p, err := sandbox.AllocArray[uint16](sbx, 4)
	if err != nil {
		t.Fatalf("AllocArray: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)

	for i := 0; i < 4; i++ {
		if err := p.Index(i).Set(uint16(10 * i)); err != nil {
			t.Fatalf("Set[%d]: %v", i, err)
		}
	}
	for i := 0; i < 4; i++ {
		got, err := p.Index(i).Unverified()
		if err != nil {
			t.Fatalf("Unverified[%d]: %v", i, err)
		}
		if got != uint16(10*i) {
			t.Errorf("element %d = %d, want %d", i, got, 10*i)
		}
	}
	// Elements are packed at the sandbox width of uint16.
	if p.Index(1).Addr().Sandboxed() != p.Sandboxed()+2 {
		t.Error("stride for uint16 should be 2 bytes")
	}
}

func TestVolatileOutOfBounds(t *testing.T) {
	sbx, _ := newSandbox(t, noop.Config{HeapSize: 4096})

	p, err := sandbox.AllocIn[uint64](sbx)
	if err != nil {
		t.Fatalf("AllocIn: %v", err)
	}
	defer sandbox.FreeIn(sbx, p)

	// Indexing far past the heap end fails on access, not on construction.
	wild := p.Index(1 << 16)
	if _, err := wild.Unverified(); !errors.Is(err, &taintberr.Error{Phase: taintberr.PhaseMemory, Kind: taintberr.KindOutOfBounds}) {
		t.Errorf("read err = %v, want out_of_bounds", err)
	}
	if err := wild.Set(1); !errors.Is(err, &taintberr.Error{Phase: taintberr.PhaseMemory, Kind: taintberr.KindOutOfBounds}) {
		t.Errorf("write err = %v, want out_of_bounds", err)
	}
}
