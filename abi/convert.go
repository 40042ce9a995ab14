package abi

import "math"

// Slot returns the host representation of v encoded into a single ABI
// slot: sign-extended two's complement for integers, IEEE 754 bit
// patterns for floats, 0/1 for bool.
func Slot[T Scalar](v T) uint64 {
	switch x := any(v).(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int8:
		return uint64(int64(x))
	case int16:
		return uint64(int64(x))
	case int32:
		return uint64(int64(x))
	case int64:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case int:
		return uint64(int64(x))
	case uint:
		return uint64(x)
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	}
	return 0
}

// FromSlot decodes a slot into the host type T, truncating to T's width.
func FromSlot[T Scalar](s uint64) T {
	var z T
	switch any(z).(type) {
	case bool:
		return any(s != 0).(T)
	case int8:
		return any(int8(s)).(T)
	case int16:
		return any(int16(s)).(T)
	case int32:
		return any(int32(s)).(T)
	case int64:
		return any(int64(s)).(T)
	case uint8:
		return any(uint8(s)).(T)
	case uint16:
		return any(uint16(s)).(T)
	case uint32:
		return any(uint32(s)).(T)
	case uint64:
		return any(s).(T)
	case int:
		return any(int(int64(s))).(T)
	case uint:
		return any(uint(s)).(T)
	case float32:
		return any(math.Float32frombits(uint32(s))).(T)
	case float64:
		return any(math.Float64frombits(s)).(T)
	}
	return z
}

// signExtend widens v from width w to 64 bits preserving the sign bit.
func signExtend(v uint64, w Width) uint64 {
	shift := 64 - uint(w.Bits())
	return uint64(int64(v<<shift) >> shift)
}

// Lower converts a host value to its sandbox-ABI slot under d. Narrower
// sandbox widths truncate modulo 2^width; floats keep their bit pattern.
func Lower[T Scalar](d Descriptor, v T) uint64 {
	k := KindOf[T]()
	s := Slot(v)
	if k.Float() {
		return s
	}
	return s & d.WidthOf(k).Mask()
}

// Lift converts a sandbox-ABI slot back to a host value under d. The
// value is interpreted at the sandbox width of T's kind and re-widened
// into the host type: sign-extended for signed kinds, zero-extended
// otherwise.
func Lift[T Scalar](d Descriptor, slot uint64) T {
	k := KindOf[T]()
	if k.Float() {
		return FromSlot[T](slot)
	}
	w := d.WidthOf(k)
	v := slot & w.Mask()
	if k.Signed() {
		v = signExtend(v, w)
	}
	return FromSlot[T](v)
}

// LowerPointer converts a sandbox-relative offset to its slot in the
// descriptor's pointer width. The zero offset is the null pointer and
// stays zero in every width.
func LowerPointer(d Descriptor, offset uint64) uint64 {
	return offset & d.PointerWidth.Mask()
}

// LiftPointer converts a pointer slot back to a sandbox-relative offset.
func LiftPointer(d Descriptor, slot uint64) uint64 {
	return slot & d.PointerWidth.Mask()
}

// LowerValue converts a raw host value of any scalar type to its
// sandbox-ABI slot. It reports false for non-scalar values, which must
// go through a per-type conversion path instead.
func LowerValue(d Descriptor, v any) (uint64, Kind, bool) {
	switch x := v.(type) {
	case bool:
		return Lower(d, x), KindBool, true
	case int8:
		return Lower(d, x), KindI8, true
	case int16:
		return Lower(d, x), KindI16, true
	case int32:
		return Lower(d, x), KindI32, true
	case int64:
		return Lower(d, x), KindI64, true
	case uint8:
		return Lower(d, x), KindU8, true
	case uint16:
		return Lower(d, x), KindU16, true
	case uint32:
		return Lower(d, x), KindU32, true
	case uint64:
		return Lower(d, x), KindU64, true
	case int:
		return Lower(d, x), KindInt, true
	case uint:
		return Lower(d, x), KindUint, true
	case float32:
		return Lower(d, x), KindF32, true
	case float64:
		return Lower(d, x), KindF64, true
	}
	return 0, KindBool, false
}
