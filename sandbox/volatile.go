package sandbox

import (
	"github.com/wippyai/taintbox/abi"
)

// Volatile wraps a location inside sandbox memory, holding its value in
// sandbox representation. Reads are not stable: every read goes through
// the heap at call time and a concurrent sandbox thread may change the
// location between any two reads. Nothing is ever cached here; caching
// would turn a genuine double-fetch hazard into a false sense of safety.
//
// Durable data must be copied out with Promote, which is the only
// sanctioned way to get a stable snapshot.
type Volatile[T abi.Scalar] struct {
	sbx    *Sandbox
	offset uint64
}

// Unverified reads through the location now and returns the value
// converted to host representation, with no validation.
func (v Volatile[T]) Unverified() (T, error) {
	slot, err := v.Sandboxed()
	if err != nil {
		var zero T
		return zero, err
	}
	return abi.Lift[T](v.sbx.desc, slot), nil
}

// Sandboxed reads through the location now and returns the raw sandbox
// representation without conversion.
func (v Volatile[T]) Sandboxed() (uint64, error) {
	w := v.sbx.desc.WidthOf(abi.KindOf[T]())
	return v.sbx.readSlot(v.offset, w)
}

// Set writes through the location now, converting the host value to
// sandbox representation. Narrower sandbox widths truncate modulo
// 2^width.
func (v Volatile[T]) Set(x T) error {
	w := v.sbx.desc.WidthOf(abi.KindOf[T]())
	return v.sbx.writeSlot(v.offset, w, abi.Lower(v.sbx.desc, x))
}

// SetTainted writes a tainted value through the location, converting
// from its host representation.
func (v Volatile[T]) SetTainted(t Tainted[T]) error {
	slot, err := t.lower(v.sbx)
	if err != nil {
		return err
	}
	w := v.sbx.desc.WidthOf(abi.KindOf[T]())
	return v.sbx.writeSlot(v.offset, w, slot)
}

// Promote copies the current value of the location into a Tainted
// value: one read, then a stable host-side snapshot with no further
// race exposure.
func (v Volatile[T]) Promote() (Tainted[T], error) {
	x, err := v.Unverified()
	if err != nil {
		return Tainted[T]{}, err
	}
	return Tainted[T]{sbx: v.sbx, val: x}, nil
}

// Addr returns a tainted pointer to the location. The address itself,
// once captured, is a stable value even though what it points to is
// not.
func (v Volatile[T]) Addr() Ptr[T] {
	return Ptr[T]{sbx: v.sbx, offset: v.offset}
}

// lower reads the location's current sandbox representation for use as
// an invocation argument.
func (v Volatile[T]) lower(s *Sandbox) (uint64, error) {
	if v.sbx != s {
		return 0, crossSandboxErr[T]()
	}
	return v.Sandboxed()
}
