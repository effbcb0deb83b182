package codec

import (
	"math"

	"github.com/squadracorsepolito/dbcpool/dbc"
)

const scalingEpsilon = 1e-12

// Class is the broad shape of a decoded signal value.
type Class int

const (
	ClassInteger Class = iota
	ClassBool
	ClassScaled
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassBool:
		return "bool"
	case ClassScaled:
		return "scaled"
	default:
		return "unknown"
	}
}

// SignPolicy selects how signed raw fields narrower than
// their container are interpreted.
type SignPolicy int

const (
	// SignExtend extends the sign from bit size-1 and uses a signed
	// 64 bit container for fields wider than 32 bits.
	SignExtend SignPolicy = iota
	// SignReinterpret reinterprets the raw bits in the container width,
	// so only fields filling the container are negative.
	// Signed fields wider than 32 bits are kept unsigned.
	SignReinterpret
)

func (p SignPolicy) String() string {
	switch p {
	case SignExtend:
		return "extend"
	case SignReinterpret:
		return "reinterpret"
	default:
		return "unknown"
	}
}

// Representation is the in memory shape chosen for a signal.
type Representation struct {
	Class  Class
	Size   uint64
	Signed bool
	// UnsignedWidth is the smallest of 8, 16, 32, 64 holding Size bits.
	UnsignedWidth int
	// SignedWidth is the container width of signed fields.
	SignedWidth int
	// SignedAsUnsigned is set for signed fields wider than 32 bits
	// under SignReinterpret.
	SignedAsUnsigned bool
}

// Select picks the representation of a signal.
// Single bit fields are booleans, fields with a non trivial
// factor or offset are scaled, everything else is an integer.
func Select(sig *dbc.Signal, policy SignPolicy) Representation {
	width := containerWidth(sig.Size)

	rep := Representation{
		Class:         ClassInteger,
		Size:          sig.Size,
		Signed:        sig.ValueType == dbc.Signed,
		UnsignedWidth: width,
		SignedWidth:   width,
	}

	switch {
	case sig.Size == 1:
		rep.Class = ClassBool
	case isScaled(sig.Factor, sig.Offset):
		rep.Class = ClassScaled
	}

	if policy == SignReinterpret && rep.Signed && sig.Size > 32 {
		rep.SignedAsUnsigned = true
	}

	return rep
}

// Kind returns the value kind produced when decoding.
func (r Representation) Kind() Kind {
	switch r.Class {
	case ClassBool:
		return KindBool
	case ClassScaled:
		return KindF64
	}

	if !r.Signed || r.SignedAsUnsigned {
		return unsignedKind(r.UnsignedWidth)
	}
	return signedKind(r.SignedWidth)
}

func isScaled(factor, offset float64) bool {
	return math.Abs(offset) > scalingEpsilon || math.Abs(factor-1) > scalingEpsilon
}

func containerWidth(size uint64) int {
	switch {
	case size <= 8:
		return 8
	case size <= 16:
		return 16
	case size <= 32:
		return 32
	default:
		return 64
	}
}
