package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the physical kind of a signal value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindI8
	KindI16
	KindI32
	KindI64
	KindF64
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF64:
		return "f64"
	default:
		return "invalid"
	}
}

// IsUnsigned reports whether k is an unsigned integer kind.
func (k Kind) IsUnsigned() bool {
	return k >= KindU8 && k <= KindU64
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	return k >= KindI8 && k <= KindI64
}

func unsignedKind(width int) Kind {
	switch width {
	case 8:
		return KindU8
	case 16:
		return KindU16
	case 32:
		return KindU32
	default:
		return KindU64
	}
}

func signedKind(width int) Kind {
	switch width {
	case 8:
		return KindI8
	case 16:
		return KindI16
	case 32:
		return KindI32
	default:
		return KindI64
	}
}

// Value is a tagged signal value. Signed integers are stored sign extended
// to 64 bits, floats by their IEEE 754 bits.
// The zero Value has KindInvalid.
type Value struct {
	kind Kind
	bits uint64
}

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

func U8(v uint8) Value   { return Value{kind: KindU8, bits: uint64(v)} }
func U16(v uint16) Value { return Value{kind: KindU16, bits: uint64(v)} }
func U32(v uint32) Value { return Value{kind: KindU32, bits: uint64(v)} }
func U64(v uint64) Value { return Value{kind: KindU64, bits: v} }
func I8(v int8) Value    { return Value{kind: KindI8, bits: uint64(int64(v))} }
func I16(v int16) Value  { return Value{kind: KindI16, bits: uint64(int64(v))} }
func I32(v int32) Value  { return Value{kind: KindI32, bits: uint64(int64(v))} }
func I64(v int64) Value  { return Value{kind: KindI64, bits: uint64(v)} }
func F64(v float64) Value {
	return Value{kind: KindF64, bits: math.Float64bits(v)}
}

// newUnsigned truncates v to the width of kind.
func newUnsigned(kind Kind, v uint64) Value {
	switch kind {
	case KindU8:
		return U8(uint8(v))
	case KindU16:
		return U16(uint16(v))
	case KindU32:
		return U32(uint32(v))
	default:
		return U64(v)
	}
}

// newSigned truncates v to the width of kind.
func newSigned(kind Kind, v int64) Value {
	switch kind {
	case KindI8:
		return I8(int8(v))
	case KindI16:
		return I16(int16(v))
	case KindI32:
		return I32(int32(v))
	default:
		return I64(v)
	}
}

// zeroValue is the unset baseline of a kind.
func zeroValue(kind Kind) Value {
	return Value{kind: kind}
}

func (v Value) Kind() Kind {
	return v.kind
}

// IsValid reports whether v carries a kind.
func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

// Bool returns the value of a boolean signal.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("%w: %s is not bool", ErrTypeMismatch, v.kind)
	}
	return v.bits == 1, nil
}

// Uint64 returns the value of an unsigned integer signal.
func (v Value) Uint64() (uint64, error) {
	if !v.kind.IsUnsigned() {
		return 0, fmt.Errorf("%w: %s is not unsigned", ErrTypeMismatch, v.kind)
	}
	return v.bits, nil
}

// Int64 returns the value of a signed integer signal.
func (v Value) Int64() (int64, error) {
	if !v.kind.IsSigned() {
		return 0, fmt.Errorf("%w: %s is not signed", ErrTypeMismatch, v.kind)
	}
	return int64(v.bits), nil
}

// Float64 returns the physical value of a scaled signal.
func (v Value) Float64() (float64, error) {
	if v.kind != KindF64 {
		return 0, fmt.Errorf("%w: %s is not f64", ErrTypeMismatch, v.kind)
	}
	return math.Float64frombits(v.bits), nil
}

// AsFloat64 converts any kind into a float64, booleans map to 0 and 1.
func (v Value) AsFloat64() float64 {
	switch {
	case v.kind == KindF64:
		return math.Float64frombits(v.bits)
	case v.kind.IsSigned():
		return float64(int64(v.bits))
	default:
		return float64(v.bits)
	}
}

// Equal uses float equality for f64 values and bit equality otherwise.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindF64 {
		return math.Float64frombits(v.bits) == math.Float64frombits(other.bits)
	}
	return v.bits == other.bits
}

func (v Value) String() string {
	switch {
	case v.kind == KindBool:
		return strconv.FormatBool(v.bits == 1)
	case v.kind == KindF64:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'g', -1, 64)
	case v.kind.IsSigned():
		return strconv.FormatInt(int64(v.bits), 10)
	case v.kind.IsUnsigned():
		return strconv.FormatUint(v.bits, 10)
	default:
		return "invalid"
	}
}

// GoString includes the kind, e.g. 12(u8).
func (v Value) GoString() string {
	return fmt.Sprintf("%s(%s)", v.String(), v.kind)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.kind == KindBool:
		return json.Marshal(v.bits == 1)
	case v.kind == KindF64:
		f := math.Float64frombits(v.bits)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(f)
	case v.kind.IsSigned():
		return json.Marshal(int64(v.bits))
	case v.kind.IsUnsigned():
		return json.Marshal(v.bits)
	default:
		return []byte("null"), nil
	}
}
