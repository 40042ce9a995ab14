package sandbox

import (
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/taintbox/abi"
	"github.com/wippyai/taintbox/errors"
)

// AllocIn allocates space for one T inside the sandbox heap and returns
// a tainted pointer to it, mirroring host allocation idioms. The
// element size is T's sandbox width under the sandbox ABI.
func AllocIn[T abi.Scalar](s *Sandbox) (Ptr[T], error) {
	return AllocArray[T](s, 1)
}

// AllocArray allocates space for n contiguous Ts inside the sandbox
// heap.
func AllocArray[T abi.Scalar](s *Sandbox, n int) (Ptr[T], error) {
	var zero Ptr[T]
	if err := s.ensureActive(errors.PhaseAlloc); err != nil {
		return zero, err
	}
	if n <= 0 {
		return zero, errors.InvalidInput(errors.PhaseAlloc, "allocation count must be positive")
	}
	w := s.desc.WidthOf(abi.KindOf[T]())
	if uint64(n) > math.MaxUint32/uint64(w) {
		return zero, errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Detail("%d elements of width %d exceed the 32-bit allocation limit", n, w).
			Build()
	}
	size := uint32(n) * uint32(w)
	offset, err := s.backend.Alloc(size, uint32(w))
	if err != nil {
		return zero, errors.AllocationFailed(size, uint32(w), err)
	}
	if offset == 0 {
		// Zero is the null representation; a backend handing it out
		// would make a live allocation indistinguishable from null.
		return zero, errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Detail("backend returned the null offset").
			Build()
	}
	if err := s.checkBounds(errors.PhaseAlloc, offset, size); err != nil {
		s.backend.Free(offset)
		return zero, err
	}
	return Ptr[T]{sbx: s, offset: offset}, nil
}

// FreeIn releases an allocation made with AllocIn or AllocArray.
// Freeing the null pointer is a no-op.
func FreeIn[T abi.Scalar](s *Sandbox, p Ptr[T]) {
	if p.offset == 0 {
		return
	}
	if err := s.ensureActive(errors.PhaseAlloc); err != nil {
		s.log.Warn("free on inactive sandbox",
			zap.Uint64("offset", p.offset),
			zap.Error(err))
		return
	}
	s.backend.Free(p.offset)
}
