package dbc

import (
	"fmt"
	"os"

	"go.einride.tech/can/pkg/dbc"
)

// ParseFile reads and parses the DBC file at the given path.
func ParseFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dbc file: %w", err)
	}

	return Parse(path, data)
}

// Parse parses the DBC text. The name is only used in error positions.
func Parse(name string, data []byte) (*Database, error) {
	p := dbc.NewParser(name, data)
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("failed to parse dbc file: %w", err)
	}

	l := newLoader()
	l.collectMessages(p.Defs())
	l.addMetadata(p.Defs())

	return l.db, nil
}

type signalKey struct {
	messageID uint32
	name      string
}

type loader struct {
	db *Database

	messages map[uint32]*Message
	signals  map[signalKey]*Signal
}

func newLoader() *loader {
	return &loader{
		db: &Database{},

		messages: make(map[uint32]*Message),
		signals:  make(map[signalKey]*Signal),
	}
}

func (l *loader) collectMessages(defs []dbc.Def) {
	for _, def := range defs {
		switch def := def.(type) {
		case *dbc.VersionDef:
			l.db.Version = def.Version

		case *dbc.NodesDef:
			for _, node := range def.NodeNames {
				l.db.Nodes = append(l.db.Nodes, string(node))
			}

		case *dbc.MessageDef:
			if def.MessageID == dbc.IndependentSignalsMessageID {
				continue
			}

			msg := &Message{
				ID:          def.MessageID.ToCAN(),
				Extended:    def.MessageID.IsExtended(),
				Name:        string(def.Name),
				Size:        def.Size,
				Transmitter: string(def.Transmitter),
				Signals:     make([]*Signal, 0, len(def.Signals)),
			}

			for _, sigDef := range def.Signals {
				sig := newSignal(&sigDef)
				msg.Signals = append(msg.Signals, sig)
				l.signals[signalKey{msg.ID, sig.Name}] = sig
			}

			l.messages[msg.ID] = msg
			l.db.Messages = append(l.db.Messages, msg)
		}
	}
}

func newSignal(def *dbc.SignalDef) *Signal {
	sig := &Signal{
		Name:      string(def.Name),
		StartBit:  def.StartBit,
		Size:      def.Size,
		ByteOrder: LittleEndian,
		ValueType: Unsigned,
		Factor:    def.Factor,
		Offset:    def.Offset,
		Min:       def.Minimum,
		Max:       def.Maximum,
		Unit:      def.Unit,
	}

	if def.IsBigEndian {
		sig.ByteOrder = BigEndian
	}
	if def.IsSigned {
		sig.ValueType = Signed
	}

	switch {
	case def.IsMultiplexerSwitch && def.IsMultiplexed:
		sig.Mux = MuxRole{Kind: MuxMultiplexorAndMultiplexed, Switch: def.MultiplexerSwitch}
	case def.IsMultiplexerSwitch:
		sig.Mux = MuxRole{Kind: MuxMultiplexor}
	case def.IsMultiplexed:
		sig.Mux = MuxRole{Kind: MuxMultiplexed, Switch: def.MultiplexerSwitch}
	}

	for _, receiver := range def.Receivers {
		sig.Receivers = append(sig.Receivers, string(receiver))
	}

	return sig
}

func (l *loader) addMetadata(defs []dbc.Def) {
	for _, def := range defs {
		switch def := def.(type) {
		case *dbc.ValueDescriptionsDef:
			if def.ObjectType != dbc.ObjectTypeSignal || def.MessageID == dbc.IndependentSignalsMessageID {
				continue
			}

			sig, ok := l.signals[signalKey{def.MessageID.ToCAN(), string(def.SignalName)}]
			if !ok {
				continue
			}

			for _, desc := range def.ValueDescriptions {
				sig.Labels = append(sig.Labels, ValueLabel{Code: desc.Value, Label: desc.Description})
			}

		case *dbc.CommentDef:
			if def.MessageID == dbc.IndependentSignalsMessageID {
				continue
			}

			switch def.ObjectType {
			case dbc.ObjectTypeMessage:
				if msg, ok := l.messages[def.MessageID.ToCAN()]; ok {
					msg.Comment = def.Comment
				}

			case dbc.ObjectTypeSignal:
				if sig, ok := l.signals[signalKey{def.MessageID.ToCAN(), string(def.SignalName)}]; ok {
					sig.Comment = def.Comment
				}
			}
		}
	}
}
