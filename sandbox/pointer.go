package sandbox

import (
	"github.com/wippyai/taintbox/abi"
)

// Ptr is a tainted pointer: a sandbox-relative offset whose referent is
// owned by the sandbox, not by the wrapper. The zero offset is the null
// pointer in every ABI.
type Ptr[T abi.Scalar] struct {
	sbx    *Sandbox
	offset uint64
}

// Deref returns a Volatile view of the pointee inside sandbox memory.
// Nothing is copied; the view reads live sandbox state.
func (p Ptr[T]) Deref() Volatile[T] {
	return Volatile[T]{sbx: p.sbx, offset: p.offset}
}

// Index returns a Volatile view of the i'th element counted from this
// pointer, using the sandbox width of T as the stride. Bounds are
// enforced when the element is read or written.
func (p Ptr[T]) Index(i int) Volatile[T] {
	stride := uint64(p.sbx.desc.WidthOf(abi.KindOf[T]()))
	return Volatile[T]{sbx: p.sbx, offset: p.offset + uint64(i)*stride}
}

// IsNull reports whether the pointer is null. The answer is a hint, not
// a tainted value: for pointers read out of sandbox memory a
// compromised sandbox could have changed the location already.
func (p Ptr[T]) IsNull() Hint {
	return Hint{val: p.offset == 0}
}

// Unverified translates the pointer to a directly usable host address,
// recomputed from the current heap base. A null pointer translates to
// 0. Panics with *errors.Error when the offset is outside the heap.
// The address must not outlive the sandbox or survive heap relocation.
func (p Ptr[T]) Unverified() uintptr {
	if p.offset == 0 {
		return 0
	}
	return p.sbx.OffsetToAddress(p.offset)
}

// Sandboxed returns the raw pointer representation in the sandbox ABI:
// the offset, in the descriptor's pointer width. Null lowers to zero in
// every width, which also makes the zero-value Ptr a valid null pointer.
func (p Ptr[T]) Sandboxed() uint64 {
	if p.offset == 0 {
		return 0
	}
	return abi.LowerPointer(p.sbx.desc, p.offset)
}

func (p Ptr[T]) lower(s *Sandbox) (uint64, error) {
	if p.sbx != s {
		return 0, crossSandboxErr[T]()
	}
	return p.Sandboxed(), nil
}

// Hint is a boolean derived from tainted data. It serves as a hint and
// not a definite answer: sandbox memory may have changed since the
// comparison. Extracting the raw bool requires naming a reason, so the
// judgment call is visible at the call site.
type Hint struct {
	val bool
}

// Not negates the hint.
func (h Hint) Not() Hint {
	return Hint{val: !h.val}
}

// ValueSafeBecause returns the raw boolean. The reason documents why
// acting on a possibly stale answer is safe here.
func (h Hint) ValueSafeBecause(reason string) bool {
	_ = reason
	return h.val
}
