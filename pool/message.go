package pool

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/squadracorsepolito/dbcpool/codec"
	"github.com/squadracorsepolito/dbcpool/dbc"
)

// MessageListener is called after all the signals of a message are updated.
type MessageListener func(msg *Message)

// Message aggregates the signals of a CAN message and applies
// received frames to them.
//
// Mutations are guarded by a lock taken without waiting: a mutation
// started while another one is in progress, including one started from
// a listener, fails with [ErrReentrant].
type Message struct {
	mux sync.Mutex

	desc *dbc.Message

	signals []*Signal
	byName  map[string]int

	status    TransportStatus
	stamp     uint64
	listeners int

	listener MessageListener
}

func newMessage(desc *dbc.Message, cfg *Config) (*Message, error) {
	msg := &Message{
		desc: desc,

		signals: make([]*Signal, 0, len(desc.Signals)),
		byName:  make(map[string]int, len(desc.Signals)),
	}

	for _, sigDesc := range desc.Signals {
		c, err := codec.Compile(sigDesc, desc.Size, cfg.codecOptions(desc.Name, sigDesc.Name))
		if err != nil {
			return nil, fmt.Errorf("message %s (0x%X): %w", desc.Name, desc.ID, err)
		}

		msg.byName[sigDesc.Name] = len(msg.signals)
		msg.signals = append(msg.signals, newSignal(msg, c))
	}

	return msg, nil
}

func (m *Message) ID() uint32 {
	return m.desc.ID
}

func (m *Message) Extended() bool {
	return m.desc.Extended
}

func (m *Message) Name() string {
	return m.desc.Name
}

// Size returns the payload length in bytes.
func (m *Message) Size() int {
	return int(m.desc.Size)
}

func (m *Message) Descriptor() *dbc.Message {
	return m.desc
}

// Signals returns the signals in declaration order.
func (m *Message) Signals() []*Signal {
	return m.signals
}

// SignalAt returns the signal at the given declaration index.
func (m *Message) SignalAt(idx int) (*Signal, bool) {
	if idx < 0 || idx >= len(m.signals) {
		return nil, false
	}
	return m.signals[idx], true
}

// Signal returns the signal with the given name.
func (m *Message) Signal(name string) (*Signal, error) {
	idx, ok := m.byName[name]
	if !ok {
		return nil, unknownSignal(m.desc.Name, name)
	}
	return m.signals[idx], nil
}

// Status returns the transport status of the last update.
func (m *Message) Status() TransportStatus {
	return m.status
}

// Stamp returns the timestamp of the last update.
func (m *Message) Stamp() uint64 {
	return m.stamp
}

// Listeners returns the sum of the signal listener results of the last update.
func (m *Message) Listeners() int {
	return m.listeners
}

// SetListener replaces the message listener, nil removes it.
func (m *Message) SetListener(listener MessageListener) error {
	if !m.mux.TryLock() {
		return reentrant(m.desc.Name)
	}
	defer m.mux.Unlock()

	m.listener = listener
	return nil
}

// Update applies a received frame to every signal in declaration order
// and returns the number of signals whose value changed.
func (m *Message) Update(data []byte, stamp uint64, status TransportStatus) (int, error) {
	if !m.mux.TryLock() {
		return 0, reentrant(m.desc.Name)
	}
	defer m.mux.Unlock()

	m.stamp = stamp
	m.status = status
	m.listeners = 0

	updated := 0
	for _, sig := range m.signals {
		m.listeners += sig.update(data, stamp, status)

		if sig.status == StatusUpdated {
			updated++
		}
	}

	if m.listener != nil {
		m.listener(m)
	}

	return updated, nil
}

// Reset brings every signal back to the unset state.
func (m *Message) Reset() error {
	if !m.mux.TryLock() {
		return reentrant(m.desc.Name)
	}
	defer m.mux.Unlock()

	m.reset()
	return nil
}

func (m *Message) reset() {
	m.status = TransportUnknown
	m.stamp = 0
	m.listeners = 0

	for _, sig := range m.signals {
		sig.reset()
	}
}

// SetValue encodes the value of the named signal into data.
// The signal state is not modified.
func (m *Message) SetValue(name string, value codec.Value, data []byte) error {
	if !m.mux.TryLock() {
		return reentrant(m.desc.Name)
	}
	defer m.mux.Unlock()

	sig, err := m.Signal(name)
	if err != nil {
		return err
	}
	return sig.codec.Encode(value, data)
}

// SetVariant encodes the value label of the named signal into data.
func (m *Message) SetVariant(name string, variant codec.Variant, data []byte) error {
	if !m.mux.TryLock() {
		return reentrant(m.desc.Name)
	}
	defer m.mux.Unlock()

	sig, err := m.Signal(name)
	if err != nil {
		return err
	}
	return sig.codec.EncodeVariant(variant, data)
}

// Encode builds a frame payload from the given signal values.
// Signals not listed are left at zero. Either every value is written
// or an error is returned.
func (m *Message) Encode(values map[string]codec.Value) ([]byte, error) {
	if !m.mux.TryLock() {
		return nil, reentrant(m.desc.Name)
	}
	defer m.mux.Unlock()

	for name := range values {
		if _, ok := m.byName[name]; !ok {
			return nil, unknownSignal(m.desc.Name, name)
		}
	}

	data := make([]byte, m.desc.Size)
	for _, sig := range m.signals {
		value, ok := values[sig.Name()]
		if !ok {
			continue
		}

		if err := sig.codec.Encode(value, data); err != nil {
			return nil, err
		}
	}

	return data, nil
}

// MessageSnapshot is a copy of the state of a message.
type MessageSnapshot struct {
	ID      uint32          `json:"id"`
	Name    string          `json:"name"`
	Status  TransportStatus `json:"status"`
	Stamp   uint64          `json:"stamp"`
	Signals []SignalState   `json:"signals"`
}

// Snapshot copies the state of the message. It fails with [ErrReentrant]
// when the message is being mutated.
func (m *Message) Snapshot() (MessageSnapshot, error) {
	if !m.mux.TryLock() {
		return MessageSnapshot{}, reentrant(m.desc.Name)
	}
	defer m.mux.Unlock()

	return m.snapshot(), nil
}

func (m *Message) snapshot() MessageSnapshot {
	snap := MessageSnapshot{
		ID:      m.desc.ID,
		Name:    m.desc.Name,
		Status:  m.status,
		Stamp:   m.stamp,
		Signals: make([]SignalState, 0, len(m.signals)),
	}

	for _, sig := range m.signals {
		snap.Signals = append(snap.Signals, sig.State())
	}

	return snap
}

func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.snapshot())
}

func (m *Message) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%s (0x%X) status=%s stamp=%d", m.desc.Name, m.desc.ID, m.status, m.stamp)
	for _, sig := range m.signals {
		sb.WriteString("\n\t")
		sb.WriteString(sig.String())
	}
	return sb.String()
}
