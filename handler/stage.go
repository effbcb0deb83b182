// Package handler contains the stages transforming the items
// read from an ingress into the items written by an egress.
package handler

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/squadracorsepolito/dbcpool/connector"
	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/message"
)

// handleFunc transforms an input item. It returns false
// when nothing has to be forwarded.
type handleFunc[MIn, MOut message.Message] func(ctx context.Context, msgIn MIn) (MOut, bool)

// stage reads and handles the input items from a single goroutine.
type stage[MIn, MOut message.Message] struct {
	tel *internal.Telemetry

	inputConnector  connector.Connector[MIn]
	outputConnector connector.Connector[MOut]

	skippedMessages atomic.Int64
}

func newStage[MIn, MOut message.Message](name string) *stage[MIn, MOut] {
	return &stage[MIn, MOut]{
		tel: internal.NewTelemetry(internal.StageKindHandler, name),
	}
}

func (s *stage[MIn, MOut]) init() error {
	if s.inputConnector == nil {
		return errors.New("input connector not set")
	}
	if s.outputConnector == nil {
		return errors.New("output connector not set")
	}

	s.tel.NewCounter("skipped_messages", s.skippedMessages.Load)

	return nil
}

func (s *stage[MIn, MOut]) run(ctx context.Context, handle handleFunc[MIn, MOut]) {
	s.tel.LogInfo("running")
	defer s.tel.LogInfo("stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgIn, err := s.inputConnector.Read()
		if err != nil {
			if errors.Is(err, connector.ErrClosed) {
				s.tel.LogInfo("input connector is closed, stopping")
				return
			}

			s.tel.LogError("failed to read from input connector", err)
			continue
		}

		msgOut, ok := handle(ctx, msgIn)
		if !ok {
			s.skippedMessages.Add(1)
			continue
		}

		if err := s.outputConnector.Write(msgOut); err != nil {
			s.tel.LogWarn("failed to write into output connector", "reason", err)
			return
		}
	}
}

func (s *stage[MIn, MOut]) close() {
	s.tel.LogInfo("closing")
	defer s.tel.LogInfo("closed")

	s.outputConnector.Close()
}

func (s *stage[MIn, MOut]) SetInput(inputConnector connector.Connector[MIn]) {
	s.inputConnector = inputConnector
}

func (s *stage[MIn, MOut]) SetOutput(outputConnector connector.Connector[MOut]) {
	s.outputConnector = outputConnector
}
