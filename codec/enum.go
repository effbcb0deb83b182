package codec

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/squadracorsepolito/dbcpool/dbc"
)

// Variant is one value of a labelled signal. A variant is either
// named, carrying the label and its code, or the catch-all Other
// variant carrying a value without a label.
type Variant struct {
	Name  string
	Value Value
	other bool
}

// Other returns the catch-all variant carrying v.
func Other(v Value) Variant {
	return Variant{Value: v, other: true}
}

// Named returns a variant selecting the label with the given name.
// The value is resolved when encoding.
func Named(name string) Variant {
	return Variant{Name: name}
}

// IsOther reports whether the variant is the catch-all.
func (v Variant) IsOther() bool {
	return v.other
}

func (v Variant) String() string {
	if v.other {
		return fmt.Sprintf("Other(%s)", v.Value)
	}
	return v.Name
}

// Ident returns the label as an UpperCamelCase identifier.
// Labels not starting with a letter get an X prefix.
func (v Variant) Ident() string {
	if v.other {
		return "Other"
	}
	return Ident(v.Name)
}

// Ident converts a value label into an UpperCamelCase identifier.
func Ident(label string) string {
	var sb strings.Builder
	sb.Grow(len(label) + 1)

	upperNext := true
	for _, r := range label {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = true
			continue
		}

		if sb.Len() == 0 && !unicode.IsLetter(r) {
			sb.WriteByte('X')
		}

		if upperNext {
			sb.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			sb.WriteRune(r)
		}
	}

	if sb.Len() == 0 {
		return "X"
	}
	return sb.String()
}

// Enum is the value label view of a signal. Labels whose code
// is outside the declared range or not representable by the signal
// are kept as unreachable.
type Enum struct {
	signal string
	kind   Kind

	variants []Variant
	byValue  map[Value]int
	byName   map[string]int

	unreachable []dbc.ValueLabel
}

func newEnum(s *Signal) *Enum {
	e := &Enum{
		signal: s.desc.Name,
		kind:   s.kind,

		byValue: make(map[Value]int),
		byName:  make(map[string]int),
	}

	for _, label := range s.desc.Labels {
		v, ok := s.labelValue(label.Code)
		if !ok {
			e.unreachable = append(e.unreachable, label)
			continue
		}

		if _, dup := e.byName[label.Label]; dup {
			continue
		}

		e.byName[label.Label] = len(e.variants)
		// first declared label wins on decode
		if _, dup := e.byValue[v]; !dup {
			e.byValue[v] = len(e.variants)
		}

		e.variants = append(e.variants, Variant{Name: label.Label, Value: v})
	}

	return e
}

// labelValue converts a label code into a value of the signal kind.
// It fails when the code is outside the declared range or
// cannot be produced by decoding the field.
func (s *Signal) labelValue(code float64) (Value, bool) {
	if s.rangeDeclared && (code < s.desc.Min || code > s.desc.Max) {
		return Value{}, false
	}

	if code != math.Trunc(code) || math.IsInf(code, 0) {
		return Value{}, false
	}

	switch s.rep.Class {
	case ClassBool:
		switch code {
		case 0:
			return Bool(false), true
		case 1:
			return Bool(true), true
		}
		return Value{}, false

	case ClassScaled:
		return Value{}, false
	}

	if s.kind.IsSigned() {
		if code < -(1<<63) || code >= 1<<63 {
			return Value{}, false
		}
		v := newSigned(s.kind, int64(code))
		if _, err := s.ToRaw(v); err != nil || int64(v.bits) != int64(code) {
			return Value{}, false
		}
		return v, true
	}

	if code < 0 || code >= 1<<64 {
		return Value{}, false
	}
	v := newUnsigned(s.kind, uint64(code))
	if _, err := s.ToRaw(v); err != nil || v.bits != uint64(code) {
		return Value{}, false
	}
	return v, true
}

// Kind returns the kind of the values carried by the variants.
func (e *Enum) Kind() Kind {
	return e.kind
}

// Variants returns the reachable named variants in declaration order.
func (e *Enum) Variants() []Variant {
	return e.variants
}

// Unreachable returns the labels that can never be decoded.
func (e *Enum) Unreachable() []dbc.ValueLabel {
	return e.unreachable
}

// Lookup returns the reachable variant with the given name.
func (e *Enum) Lookup(name string) (Variant, bool) {
	idx, ok := e.byName[name]
	if !ok {
		return Variant{}, false
	}
	return e.variants[idx], true
}

// ToEnum maps a decoded value to its variant. Values without a
// label map to the catch-all variant, so the mapping never fails.
func (e *Enum) ToEnum(v Value) Variant {
	if v.kind == KindF64 {
		return Other(v)
	}

	if idx, ok := e.byValue[v]; ok {
		return e.variants[idx]
	}
	return Other(v)
}

// FromEnum returns the value selected by a variant.
func (e *Enum) FromEnum(variant Variant) (Value, error) {
	if variant.other {
		if variant.Value.kind != e.kind {
			return Value{}, typeMismatch(e.signal, e.kind, variant.Value.kind)
		}
		return variant.Value, nil
	}

	if idx, ok := e.byName[variant.Name]; ok {
		return e.variants[idx].Value, nil
	}

	for _, label := range e.unreachable {
		if label.Label == variant.Name {
			return Value{}, fmt.Errorf("%w: signal %s label %q code %g is not reachable",
				ErrOutOfRange, e.signal, label.Label, label.Code)
		}
	}

	return Value{}, fmt.Errorf("%w: signal %s has no label %q", ErrUnknownVariant, e.signal, variant.Name)
}
