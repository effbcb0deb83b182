// Package codec turns DBC signal descriptors into compiled codecs that
// read and write physical values from and to CAN frame payloads.
package codec

import (
	"fmt"
	"math"

	"github.com/squadracorsepolito/dbcpool/dbc"
)

// Options controls how signals are compiled.
type Options struct {
	// RangeCheck rejects scaled values outside the declared [min, max] on encode.
	RangeCheck bool
	SignPolicy SignPolicy
	// Enum builds the value label view of labelled signals.
	Enum bool
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions() Options {
	return Options{
		RangeCheck: true,
		SignPolicy: SignExtend,
		Enum:       true,
	}
}

// Signal is a compiled signal codec. It is immutable and safe for
// concurrent use.
type Signal struct {
	desc   *dbc.Signal
	layout Layout
	rep    Representation
	kind   Kind

	mask       uint64
	signExtend bool

	rangeCheck    bool
	rangeDeclared bool

	enum *Enum
}

// Compile resolves the layout of the signal inside a message of
// msgBytes bytes and selects its representation.
func Compile(desc *dbc.Signal, msgBytes uint64, opts Options) (*Signal, error) {
	layout, err := Resolve(desc, msgBytes)
	if err != nil {
		return nil, err
	}

	rep := Select(desc, opts.SignPolicy)

	s := &Signal{
		desc:   desc,
		layout: layout,
		rep:    rep,
		kind:   rep.Kind(),

		mask: sizeMask(desc.Size),

		rangeCheck: opts.RangeCheck,
		// [0, 0] is how DBC files leave the range unspecified
		rangeDeclared: desc.Min != 0 || desc.Max != 0,
	}

	if rep.Signed && !rep.SignedAsUnsigned {
		switch opts.SignPolicy {
		case SignExtend:
			s.signExtend = true
		case SignReinterpret:
			s.signExtend = desc.Size == uint64(rep.SignedWidth)
		}
	}

	// scaled values are never matched against labels
	if opts.Enum && desc.HasLabels() && rep.Class != ClassScaled {
		s.enum = newEnum(s)
	}

	return s, nil
}

func (s *Signal) Name() string {
	return s.desc.Name
}

// Descriptor returns the DBC descriptor the codec was compiled from.
func (s *Signal) Descriptor() *dbc.Signal {
	return s.desc
}

func (s *Signal) Layout() Layout {
	return s.layout
}

func (s *Signal) Representation() Representation {
	return s.rep
}

// Kind returns the kind of the values produced by Decode.
func (s *Signal) Kind() Kind {
	return s.kind
}

// Zero returns the baseline value of an unset signal.
func (s *Signal) Zero() Value {
	return zeroValue(s.kind)
}

// Enum returns the value label view, nil when the signal has no labels.
func (s *Signal) Enum() *Enum {
	return s.enum
}

// Range returns the declared physical range.
// The range is not declared when the DBC file uses [0, 0].
func (s *Signal) Range() (minimum, maximum float64, declared bool) {
	return s.desc.Min, s.desc.Max, s.rangeDeclared
}

func (s *Signal) fits(data []byte) bool {
	return uint64(len(data))*8 >= s.layout.End
}

// Extract returns the raw bits of the signal, right aligned.
// It reports false when data is too short.
func (s *Signal) Extract(data []byte) (uint64, bool) {
	if !s.fits(data) {
		return 0, false
	}

	if s.layout.ByteOrder == dbc.BigEndian {
		return extractBE(data, s.layout.Start, s.rep.Size), true
	}
	return extractLE(data, s.layout.Start, s.rep.Size), true
}

// Decode extracts the raw bits and converts them into the physical value.
// It reports false when data is too short.
func (s *Signal) Decode(data []byte) (Value, bool) {
	raw, ok := s.Extract(data)
	if !ok {
		return Value{}, false
	}
	return s.FromRaw(raw), true
}

// FromRaw converts right aligned raw bits into the physical value.
func (s *Signal) FromRaw(raw uint64) Value {
	raw &= s.mask

	switch s.rep.Class {
	case ClassBool:
		return Bool(raw == 1)

	case ClassScaled:
		var x float64
		if s.signExtend {
			x = float64(s.toSigned(raw))
		} else {
			x = float64(raw)
		}
		return F64(x*s.desc.Factor + s.desc.Offset)
	}

	if s.kind.IsSigned() {
		return newSigned(s.kind, s.toSigned(raw))
	}
	return newUnsigned(s.kind, raw)
}

func (s *Signal) toSigned(raw uint64) int64 {
	if s.signExtend && raw>>(s.rep.Size-1)&1 == 1 {
		return int64(raw | ^s.mask)
	}
	return int64(raw)
}

// ToRaw converts a physical value into the raw bits of the field.
// Scaled values are rounded to the nearest step and saturated to the
// representable raw range; integers that do not fit are rejected.
func (s *Signal) ToRaw(v Value) (uint64, error) {
	if v.kind != s.kind {
		return 0, typeMismatch(s.desc.Name, s.kind, v.kind)
	}

	switch s.rep.Class {
	case ClassBool:
		return v.bits & 1, nil

	case ClassScaled:
		phys := math.Float64frombits(v.bits)
		if math.IsNaN(phys) {
			return 0, fmt.Errorf("%w: signal %s value is NaN", ErrOutOfRange, s.desc.Name)
		}
		if s.rangeCheck && s.rangeDeclared && (phys < s.desc.Min || phys > s.desc.Max) {
			return 0, fmt.Errorf("%w: signal %s value %g not in [%g, %g]",
				ErrOutOfRange, s.desc.Name, phys, s.desc.Min, s.desc.Max)
		}
		return s.quantize(phys), nil
	}

	raw := v.bits & s.mask
	if s.kind.IsSigned() {
		if s.toSigned(raw) != int64(v.bits) {
			return 0, fmt.Errorf("%w: signal %s value %s does not fit in %d bits",
				ErrOutOfRange, s.desc.Name, v, s.rep.Size)
		}
		return raw, nil
	}

	if raw != v.bits {
		return 0, fmt.Errorf("%w: signal %s value %s does not fit in %d bits",
			ErrOutOfRange, s.desc.Name, v, s.rep.Size)
	}
	return raw, nil
}

func (s *Signal) quantize(phys float64) uint64 {
	raw := math.Round((phys - s.desc.Offset) / s.desc.Factor)

	if s.signExtend {
		hi := int64(s.mask >> 1)
		lo := -hi - 1
		switch {
		case math.IsNaN(raw):
			return 0
		case raw <= float64(lo):
			return uint64(lo) & s.mask
		case raw >= float64(hi):
			return uint64(hi) & s.mask
		}
		return uint64(int64(raw)) & s.mask
	}

	switch {
	case math.IsNaN(raw) || raw <= 0:
		return 0
	case raw >= float64(s.mask):
		return s.mask
	}
	return uint64(raw)
}

// Insert writes right aligned raw bits into data, leaving the
// bits outside the layout untouched.
func (s *Signal) Insert(data []byte, raw uint64) error {
	if !s.fits(data) {
		return fmt.Errorf("%w: signal %s needs %d bytes, got %d",
			ErrShortBuffer, s.desc.Name, s.layout.Bytes(), len(data))
	}

	raw &= s.mask
	if s.layout.ByteOrder == dbc.BigEndian {
		insertBE(data, s.layout.Start, s.rep.Size, raw)
	} else {
		insertLE(data, s.layout.Start, s.rep.Size, raw)
	}
	return nil
}

// Encode writes the physical value into data. On error data is not modified.
func (s *Signal) Encode(v Value, data []byte) error {
	raw, err := s.ToRaw(v)
	if err != nil {
		return err
	}
	return s.Insert(data, raw)
}

// EncodeVariant writes an enum variant into data.
func (s *Signal) EncodeVariant(variant Variant, data []byte) error {
	if s.enum == nil {
		return fmt.Errorf("%w: signal %s has no value labels", ErrUnknownVariant, s.desc.Name)
	}

	v, err := s.enum.FromEnum(variant)
	if err != nil {
		return err
	}
	return s.Encode(v, data)
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s [%d, %d) %s %s", s.desc.Name, s.layout.Start, s.layout.End, s.layout.ByteOrder, s.kind)
}
