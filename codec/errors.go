package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrLayout is returned when a signal does not fit in its message.
	ErrLayout = errors.New("codec: invalid signal layout")
	// ErrOutOfRange is returned when a value cannot be written
	// because it is outside the declared or representable range.
	ErrOutOfRange = errors.New("codec: value out of range")
	// ErrTypeMismatch is returned when a value of the wrong kind is supplied.
	ErrTypeMismatch = errors.New("codec: type mismatch")
	// ErrUnknownVariant is returned when an enum variant name is not declared.
	ErrUnknownVariant = errors.New("codec: unknown enum variant")
	// ErrShortBuffer is returned when the frame buffer is shorter than the signal layout.
	ErrShortBuffer = errors.New("codec: frame buffer too short")
)

// LayoutError reports a signal whose bit range exceeds the message bounds.
type LayoutError struct {
	Signal      string
	Start       uint64
	End         uint64
	MessageBits uint64
	Reason      string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("signal %s: %s: bits [%d, %d), message is %d bits", e.Signal, e.Reason, e.Start, e.End, e.MessageBits)
}

func (e *LayoutError) Unwrap() error {
	return ErrLayout
}

func typeMismatch(signal string, want, got Kind) error {
	return fmt.Errorf("%w: signal %s expects %s, got %s", ErrTypeMismatch, signal, want, got)
}
