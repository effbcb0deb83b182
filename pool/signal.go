package pool

import (
	"encoding/json"
	"fmt"

	"github.com/squadracorsepolito/dbcpool/codec"
	"github.com/squadracorsepolito/dbcpool/dbc"
)

// SignalListener is called after the signal is decoded by a message update.
// The returned value is added to the listener count of the message.
type SignalListener func(sig *Signal) int

// Signal is the state slot of a compiled signal: its last value,
// status and the timestamp of its last change.
//
// Getters do not lock, they are meant to be used by the goroutine
// driving the updates and by listeners. Other goroutines should use
// [Message.Snapshot].
type Signal struct {
	msg   *Message
	codec *codec.Signal

	value  codec.Value
	status Status
	stamp  uint64
	// set is false until the first successful decode after a reset
	set bool

	listener SignalListener
}

func newSignal(msg *Message, c *codec.Signal) *Signal {
	return &Signal{
		msg:   msg,
		codec: c,

		value: c.Zero(),
	}
}

func (s *Signal) Name() string {
	return s.codec.Name()
}

// Message returns the message owning the signal.
func (s *Signal) Message() *Message {
	return s.msg
}

func (s *Signal) Codec() *codec.Signal {
	return s.codec
}

func (s *Signal) Descriptor() *dbc.Signal {
	return s.codec.Descriptor()
}

// Value returns the last decoded value, the zero value of the
// signal kind when nothing was decoded yet.
func (s *Signal) Value() codec.Value {
	return s.value
}

func (s *Signal) Status() Status {
	return s.status
}

// Stamp returns the timestamp of the frame that last changed the value.
func (s *Signal) Stamp() uint64 {
	return s.stamp
}

// Variant returns the value label of the current value.
// It reports false when the signal has no enum view.
func (s *Signal) Variant() (codec.Variant, bool) {
	enum := s.codec.Enum()
	if enum == nil {
		return codec.Variant{}, false
	}
	return enum.ToEnum(s.value), true
}

// SetListener replaces the signal listener, nil removes it.
func (s *Signal) SetListener(listener SignalListener) error {
	if !s.msg.mux.TryLock() {
		return reentrant(s.msg.Name())
	}
	defer s.msg.mux.Unlock()

	s.listener = listener
	return nil
}

// update applies a frame to the signal and calls the listener.
// It returns the listener result.
func (s *Signal) update(data []byte, stamp uint64, status TransportStatus) int {
	switch {
	case status.decodes():
		s.decode(data, stamp)
	case status == TransportUnchanged:
		s.status = StatusUnchanged
	case status == TransportTimeout:
		s.status = StatusTimeout
	default:
		s.status = StatusError
	}

	if s.listener == nil {
		return 0
	}
	return s.listener(s)
}

func (s *Signal) decode(data []byte, stamp uint64) {
	value, ok := s.codec.Decode(data)
	if !ok {
		s.status = StatusError
		return
	}

	if s.set && value.Equal(s.value) {
		s.status = StatusUnchanged
		return
	}

	s.value = value
	s.status = StatusUpdated
	s.stamp = stamp
	s.set = true
}

func (s *Signal) reset() {
	s.value = s.codec.Zero()
	s.status = StatusUnset
	s.stamp = 0
	s.set = false
}

// SignalState is a copy of the state of a signal.
type SignalState struct {
	Name   string        `json:"name"`
	Value  codec.Value   `json:"value"`
	Status Status        `json:"status"`
	Stamp  uint64        `json:"stamp"`
	Label  string        `json:"label,omitempty"`
	Signal *codec.Signal `json:"-"`
}

// State returns a copy of the current state.
func (s *Signal) State() SignalState {
	state := SignalState{
		Name:   s.codec.Name(),
		Value:  s.value,
		Status: s.status,
		Stamp:  s.stamp,
		Signal: s.codec,
	}

	if variant, ok := s.Variant(); ok && !variant.IsOther() {
		state.Label = variant.Name
	}

	return state
}

func (s *Signal) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.State())
}

func (s *Signal) String() string {
	str := fmt.Sprintf("%s=%s status=%s stamp=%d", s.codec.Name(), s.value, s.status, s.stamp)
	if variant, ok := s.Variant(); ok && !variant.IsOther() {
		str += fmt.Sprintf(" label=%s", variant.Name)
	}
	return str
}
