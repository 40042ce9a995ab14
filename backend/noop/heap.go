package noop

import (
	"encoding/binary"

	"github.com/wippyai/taintbox/errors"
)

// Heap is the view of sandbox memory handed to registered functions.
// All access is by sandbox-relative offset, little-endian, bounds
// checked against the heap size.
type Heap struct {
	b *Backend
}

// Size returns the heap size in bytes.
func (h *Heap) Size() uint64 {
	return h.b.HeapSize()
}

// Bytes returns a live view of [offset, offset+length).
func (h *Heap) Bytes(offset uint64, length uint32) ([]byte, error) {
	return h.b.Read(offset, length)
}

func (h *Heap) ReadU16(offset uint64) (uint16, error) {
	buf, err := h.b.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (h *Heap) ReadU32(offset uint64) (uint32, error) {
	buf, err := h.b.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (h *Heap) ReadU64(offset uint64) (uint64, error) {
	buf, err := h.b.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (h *Heap) WriteU16(offset uint64, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return h.b.Write(offset, buf[:])
}

func (h *Heap) WriteU32(offset uint64, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return h.b.Write(offset, buf[:])
}

func (h *Heap) WriteU64(offset uint64, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return h.b.Write(offset, buf[:])
}

// Alloc lets a registered function allocate within the heap, the way
// sandbox code would call its own allocator.
func (h *Heap) Alloc(size, align uint32) (uint64, error) {
	off, err := h.b.Alloc(size, align)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "sandbox-side alloc")
	}
	return off, nil
}
