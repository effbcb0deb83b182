// Package verify cross-checks the raw values extracted by a pool
// against the acmelib signal layout decoding of the same frames.
package verify

import (
	"errors"
	"fmt"

	"github.com/squadracorsepolito/acmelib"
	"github.com/squadracorsepolito/dbcpool/pool"
)

// ErrNoReference is returned when no reference message has the name
// of the checked message.
var ErrNoReference = errors.New("verify: no reference message")

// Mismatch is a signal whose raw value differs between
// the pool and the reference decoding.
type Mismatch struct {
	Message   string
	Signal    string
	Raw       uint64
	Reference uint64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s.%s: raw=0x%X reference=0x%X", m.Message, m.Signal, m.Raw, m.Reference)
}

// Checker decodes frames with the acmelib messages it is built from.
// Messages are matched by name.
type Checker struct {
	refs map[string]func([]byte) []*acmelib.SignalDecoding
}

func NewChecker(messages []*acmelib.Message) *Checker {
	refs := make(map[string]func([]byte) []*acmelib.SignalDecoding, len(messages))

	for _, msg := range messages {
		refs[msg.Name()] = msg.SignalLayout().Decode
	}

	return &Checker{
		refs: refs,
	}
}

// Check decodes data with both the pool message and its reference and
// returns the signals whose raw values differ. Signals known only by
// the reference are reported as an error.
func (c *Checker) Check(msg *pool.Message, data []byte) ([]Mismatch, error) {
	decode, ok := c.refs[msg.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReference, msg.Name())
	}

	var mismatches []Mismatch
	for _, dec := range decode(data) {
		sig, err := msg.Signal(dec.Signal.Name())
		if err != nil {
			return nil, err
		}

		raw, ok := sig.Codec().Extract(data)
		if !ok {
			return nil, fmt.Errorf("verify: frame too short for %s.%s", msg.Name(), sig.Name())
		}

		mask := sizeMask(sig.Codec().Layout().Size())
		ref := uint64(dec.RawValue) & mask

		if raw&mask != ref {
			mismatches = append(mismatches, Mismatch{
				Message:   msg.Name(),
				Signal:    sig.Name(),
				Raw:       raw,
				Reference: ref,
			})
		}
	}

	return mismatches, nil
}

func sizeMask(size uint64) uint64 {
	if size >= 64 {
		return ^uint64(0)
	}
	return 1<<size - 1
}
