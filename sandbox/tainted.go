package sandbox

import (
	"github.com/wippyai/taintbox/abi"
	"github.com/wippyai/taintbox/errors"
)

// lowerable is implemented by every wrapper kind: it produces the
// sandbox-ABI slot for the wrapped value when marshaling an invocation.
type lowerable interface {
	lower(s *Sandbox) (uint64, error)
}

// Tainted wraps a host-resident value that came from, or is destined
// for, the sandbox. The value is stored in host representation and
// cannot be used in arithmetic, comparisons or branches; the only ways
// out are the explicit escape operations below.
type Tainted[T abi.Scalar] struct {
	sbx *Sandbox
	val T
}

// Taint wraps a raw host value for use with a sandbox. This direction
// (host to sandbox) never violates the untrusted-data invariant.
func Taint[T abi.Scalar](s *Sandbox, v T) Tainted[T] {
	return Tainted[T]{sbx: s, val: v}
}

// Retaint rebinds a tainted value to another sandbox. The host
// representation carries over unchanged; the sandbox representation is
// recomputed against the destination ABI on the next crossing.
func Retaint[T abi.Scalar](dst *Sandbox, t Tainted[T]) Tainted[T] {
	return Tainted[T]{sbx: dst, val: t.val}
}

// Unverified removes the tainting and returns the raw host value with
// no validation. The caller takes responsibility for bounds and sanity
// checks before trusting it.
func (t Tainted[T]) Unverified() T {
	return t.val
}

// Sandboxed removes the tainting and returns the raw value in the
// sandbox ABI, for passing a bit pattern onward without interpreting it.
// Panics with *errors.Error on the zero value: a Tainted that was never
// bound to a sandbox has no sandbox representation.
func (t Tainted[T]) Sandboxed() uint64 {
	if t.sbx == nil {
		panic(errors.InvalidInput(errors.PhaseConvert, "value not bound to a sandbox"))
	}
	return abi.Lower(t.sbx.desc, t.val)
}

// CopyAndVerify passes the value to a verifier and returns its result.
// The verifier decides whether the untrusted value is acceptable; an
// error keeps the value from escaping.
func (t Tainted[T]) CopyAndVerify(verify func(T) (T, error)) (T, error) {
	return verify(t.val)
}

// Addr stages the wrapped value into sandbox-owned scratch memory and
// returns a tainted pointer to it, for passing host data to a sandbox
// call as an out-parameter. Host memory can never alias a heap-relative
// sandbox, so the value is copied in rather than aliased. Free the
// scratch with FreeIn when the call is done.
func (t Tainted[T]) Addr() (Ptr[T], error) {
	p, err := AllocIn[T](t.sbx)
	if err != nil {
		return Ptr[T]{}, err
	}
	if err := p.Deref().Set(t.val); err != nil {
		FreeIn(t.sbx, p)
		return Ptr[T]{}, err
	}
	return p, nil
}

func (t Tainted[T]) lower(s *Sandbox) (uint64, error) {
	if t.sbx != s {
		return 0, crossSandboxErr[T]()
	}
	return abi.Lower(s.desc, t.val), nil
}
