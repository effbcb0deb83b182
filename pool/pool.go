// Package pool holds the runtime state of a CAN database: one message
// aggregate per CAN id, each owning the state slots of its signals.
package pool

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/squadracorsepolito/dbcpool/dbc"
)

// Pool is an immutable set of messages sorted by CAN id.
type Pool struct {
	name string

	messages []*Message
	ids      []uint32
}

// New compiles the given messages. Messages filtered out by the
// allow and deny lists are skipped. Any layout error aborts the
// construction.
func New(messages []*dbc.Message, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	p := &Pool{
		name: cfg.Name,
	}

	for _, desc := range messages {
		if !cfg.accepts(desc.ID) {
			continue
		}

		msg, err := newMessage(desc, cfg)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", cfg.Name, err)
		}

		p.messages = append(p.messages, msg)
	}

	slices.SortStableFunc(p.messages, func(a, b *Message) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	p.ids = make([]uint32, 0, len(p.messages))
	for idx, msg := range p.messages {
		if idx > 0 && p.ids[idx-1] == msg.ID() {
			return nil, fmt.Errorf("pool %s: %w: 0x%X (%s, %s)",
				cfg.Name, ErrDuplicateID, msg.ID(), p.messages[idx-1].Name(), msg.Name())
		}
		p.ids = append(p.ids, msg.ID())
	}

	return p, nil
}

func (p *Pool) Name() string {
	return p.name
}

// IDs returns the CAN ids in strictly ascending order.
func (p *Pool) IDs() []uint32 {
	return p.ids
}

// Messages returns the messages sorted by CAN id.
func (p *Pool) Messages() []*Message {
	return p.messages
}

// Lookup returns the message with the given CAN id.
func (p *Pool) Lookup(id uint32) (*Message, error) {
	idx, ok := slices.BinarySearch(p.ids, id)
	if !ok {
		return nil, &NotFoundError{Pool: p.name, ID: id}
	}
	return p.messages[idx], nil
}

// Update applies a received frame to the message with the given CAN id.
// It returns the message and the number of signals whose value changed.
func (p *Pool) Update(id uint32, data []byte, stamp uint64, status TransportStatus) (*Message, int, error) {
	msg, err := p.Lookup(id)
	if err != nil {
		return nil, 0, err
	}

	updated, err := msg.Update(data, stamp, status)
	if err != nil {
		return msg, 0, err
	}

	return msg, updated, nil
}

// Reset brings every message back to the unset state.
func (p *Pool) Reset() error {
	for _, msg := range p.messages {
		if err := msg.Reset(); err != nil {
			return err
		}
	}
	return nil
}
