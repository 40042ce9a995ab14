package abi

import "math/bits"

// Width is the size of a representation in bytes.
type Width uint8

const (
	W1 Width = 1
	W2 Width = 2
	W4 Width = 4
	W8 Width = 8
)

// Bits returns the width in bits.
func (w Width) Bits() int { return int(w) * 8 }

// Mask returns a bit mask covering the width.
func (w Width) Mask() uint64 {
	if w >= W8 {
		return ^uint64(0)
	}
	return 1<<(uint(w)*8) - 1
}

// Kind identifies the semantic scalar type of a value crossing the
// boundary. Fixed-width kinds have the same width in every ABI; Int,
// Uint and Ptr widths come from the Descriptor.
type Kind uint8

const (
	KindBool Kind = iota
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindInt  // sandbox "natural" signed integer
	KindUint // sandbox "natural" unsigned integer
	KindPtr  // sandbox-relative pointer
)

var kindNames = [...]string{
	KindBool: "bool",
	KindI8:   "i8",
	KindI16:  "i16",
	KindI32:  "i32",
	KindI64:  "i64",
	KindU8:   "u8",
	KindU16:  "u16",
	KindU32:  "u32",
	KindU64:  "u64",
	KindF32:  "f32",
	KindF64:  "f64",
	KindInt:  "int",
	KindUint: "uint",
	KindPtr:  "ptr",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Signed reports whether the kind sign-extends when widened.
func (k Kind) Signed() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64, KindInt:
		return true
	}
	return false
}

// Float reports whether the kind is a floating point type.
func (k Kind) Float() bool {
	return k == KindF32 || k == KindF64
}

// hostIntWidth is the width of int/uint on the host.
const hostIntWidth = Width(bits.UintSize / 8)

// HostWidth returns the kind's width in the host representation.
func (k Kind) HostWidth() Width {
	switch k {
	case KindBool, KindI8, KindU8:
		return W1
	case KindI16, KindU16:
		return W2
	case KindI32, KindU32, KindF32:
		return W4
	case KindInt, KindUint:
		return hostIntWidth
	case KindPtr:
		return W8
	default:
		return W8
	}
}

// Descriptor describes a sandbox ABI: the width of its pointer
// representation and of its natural integer. It is immutable for the
// lifetime of a sandbox type.
type Descriptor struct {
	PointerWidth Width
	IntWidth     Width
}

// Wasm32 is the ABI of a 32-bit WebAssembly sandbox.
var Wasm32 = Descriptor{PointerWidth: W4, IntWidth: W4}

// Native is an ABI with the host's own widths, used by backends that do
// not change representation.
var Native = Descriptor{PointerWidth: W8, IntWidth: hostIntWidth}

// WidthOf returns the sandbox width of a kind under this descriptor.
func (d Descriptor) WidthOf(k Kind) Width {
	switch k {
	case KindInt, KindUint:
		return d.IntWidth
	case KindPtr:
		return d.PointerWidth
	default:
		return k.HostWidth()
	}
}

// Scalar is the set of host types that can cross the boundary through
// the generic conversion path. Aggregates need a per-type path and are
// deliberately excluded.
type Scalar interface {
	bool |
		int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		int | uint |
		float32 | float64
}

// KindOf returns the Kind for a scalar host type.
func KindOf[T Scalar]() Kind {
	var z T
	switch any(z).(type) {
	case bool:
		return KindBool
	case int8:
		return KindI8
	case int16:
		return KindI16
	case int32:
		return KindI32
	case int64:
		return KindI64
	case uint8:
		return KindU8
	case uint16:
		return KindU16
	case uint32:
		return KindU32
	case uint64:
		return KindU64
	case float32:
		return KindF32
	case float64:
		return KindF64
	case int:
		return KindInt
	case uint:
		return KindUint
	default:
		return KindBool // unreachable: Scalar is a closed set
	}
}
