package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/squadracorsepolito/dbcpool/connector"
	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/message"
)

// logSink logs every received signal change.
type logSink struct {
	l *internal.Logger

	in connector.Connector[*message.CANSignalBatch]
}

func newLogSink() *logSink {
	return &logSink{
		l: internal.NewLogger(string(internal.StageKindEgress), "log"),
	}
}

func (s *logSink) Init(_ context.Context) error {
	if s.in == nil {
		return errors.New("input connector not set")
	}
	return nil
}

func (s *logSink) Run(_ context.Context) {
	for {
		batch, err := s.in.Read()
		if err != nil {
			return
		}

		for i := range batch.SignalCount {
			sig := batch.Signals[i]
			s.l.Info("signal",
				"message", sig.Message,
				"name", sig.Name,
				"value", formatSignal(sig),
				"unit", sig.Unit,
				"raw", sig.RawValue,
			)
		}

		message.PutCANSignalBatch(batch)
	}
}

func (s *logSink) Stop() {
	s.in.Close()
}

func (s *logSink) SetInput(in connector.Connector[*message.CANSignalBatch]) {
	s.in = in
}

func formatSignal(sig message.CANSignal) string {
	switch sig.Table {
	case message.CANSignalTableFlag:
		return strconv.FormatBool(sig.ValueFlag)
	case message.CANSignalTableInt:
		return strconv.FormatInt(sig.ValueInt, 10)
	case message.CANSignalTableFloat:
		return strconv.FormatFloat(sig.ValueFloat, 'g', -1, 64)
	case message.CANSignalTableEnum:
		return sig.ValueEnum
	default:
		return ""
	}
}
