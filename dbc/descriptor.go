// Package dbc contains the data model of a CAN database
// (messages, signals and value labels) and the loader that builds it
// from DBC text.
package dbc

import (
	"fmt"
	"strings"
)

// ByteOrder is the bit numbering convention of a signal.
type ByteOrder int

const (
	// LittleEndian is the Intel convention.
	LittleEndian ByteOrder = iota
	// BigEndian is the Motorola convention.
	BigEndian
)

func (bo ByteOrder) String() string {
	switch bo {
	case LittleEndian:
		return "little_endian"
	case BigEndian:
		return "big_endian"
	default:
		return "unknown"
	}
}

// ValueType is the signedness of the raw signal field.
type ValueType int

const (
	Unsigned ValueType = iota
	Signed
)

func (vt ValueType) String() string {
	switch vt {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	default:
		return "unknown"
	}
}

// MuxKind is the multiplexing role of a signal.
type MuxKind int

const (
	MuxPlain MuxKind = iota
	MuxMultiplexor
	MuxMultiplexed
	MuxMultiplexorAndMultiplexed
)

func (mk MuxKind) String() string {
	switch mk {
	case MuxPlain:
		return "plain"
	case MuxMultiplexor:
		return "multiplexor"
	case MuxMultiplexed:
		return "multiplexed"
	case MuxMultiplexorAndMultiplexed:
		return "multiplexor_and_multiplexed"
	default:
		return "unknown"
	}
}

// MuxRole is carried through from the DBC file, it is not acted on.
type MuxRole struct {
	Kind MuxKind
	// Switch is the multiplexor value selecting the signal,
	// only meaningful for multiplexed signals.
	Switch uint64
}

// ValueLabel maps a raw numeric code to a human readable name.
type ValueLabel struct {
	Code  float64
	Label string
}

// Signal describes a bit field inside a message.
type Signal struct {
	Name      string
	Mux       MuxRole
	StartBit  uint64
	Size      uint64
	ByteOrder ByteOrder
	ValueType ValueType
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Unit      string
	Receivers []string
	// Labels keeps the declaration order of the DBC file.
	Labels  []ValueLabel
	Comment string
}

// HasLabels reports whether the signal declares value labels.
func (s *Signal) HasLabels() bool {
	return len(s.Labels) > 0
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s: %d|%d@%s%s (%g,%g) [%g|%g] %q",
		s.Name, s.StartBit, s.Size, s.ByteOrder, s.ValueType, s.Factor, s.Offset, s.Min, s.Max, s.Unit)
}

// Message describes a CAN frame template.
type Message struct {
	// ID is the arbitration id without the extended flag.
	ID       uint32
	Extended bool
	Name     string
	// Size is the payload length in bytes.
	Size        uint64
	Transmitter string
	// Signals keeps the declaration order, it is the order
	// used for index based access.
	Signals []*Signal
	Comment string
}

// Signal returns the signal with the given name.
func (m *Message) Signal(name string) (*Signal, bool) {
	for _, sig := range m.Signals {
		if sig.Name == name {
			return sig, true
		}
	}
	return nil, false
}

func (m *Message) String() string {
	names := make([]string, 0, len(m.Signals))
	for _, sig := range m.Signals {
		names = append(names, sig.Name)
	}
	return fmt.Sprintf("%s (0x%X, %d bytes): %s", m.Name, m.ID, m.Size, strings.Join(names, ", "))
}

// Database is the content of a DBC file relevant to the signal codecs.
type Database struct {
	Version  string
	Nodes    []string
	Messages []*Message
}

// Message returns the message with the given id.
func (db *Database) Message(id uint32) (*Message, bool) {
	for _, msg := range db.Messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return nil, false
}

// MessageByName returns the message with the given name.
func (db *Database) MessageByName(name string) (*Message, bool) {
	for _, msg := range db.Messages {
		if msg.Name == name {
			return msg, true
		}
	}
	return nil, false
}
