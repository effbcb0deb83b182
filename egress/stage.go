package egress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/squadracorsepolito/dbcpool/connector"
	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/worker"
)

type stage[M message.Message, Cfg worker.ConfigurablePool, W, WArgs any, WPtr worker.EgressWorkerPtr[W, WArgs, M]] struct {
	tel *internal.Telemetry

	cfg Cfg

	inputConnector connector.Connector[M]

	runWg *sync.WaitGroup

	workerPool *worker.EgressPool[W, WArgs, M, WPtr]

	skippedMessages atomic.Int64
}

func newStage[M message.Message, Cfg worker.ConfigurablePool, W, WArgs any, WPtr worker.EgressWorkerPtr[W, WArgs, M]](name string, cfg Cfg) *stage[M, Cfg, W, WArgs, WPtr] {
	tel := internal.NewTelemetry(internal.StageKindEgress, name)

	return &stage[M, Cfg, W, WArgs, WPtr]{
		tel: tel,

		cfg: cfg,

		runWg: &sync.WaitGroup{},

		workerPool: worker.NewEgressPool[W, WArgs, M, WPtr](tel, cfg.ToPoolConfig()),
	}
}

func (s *stage[M, Cfg, W, WArgs, WPtr]) init(ctx context.Context, workerArgs WArgs) error {
	s.tel.LogInfo("initializing")
	defer s.tel.LogInfo("initialized")

	if s.inputConnector == nil {
		return errors.New("input connector not set")
	}

	s.workerPool.Init(ctx, workerArgs)

	s.initMetrics()

	// released when run returns
	s.runWg.Add(1)

	return nil
}

func (s *stage[M, Cfg, W, WArgs, WPtr]) initMetrics() {
	s.tel.NewCounter("skipped_messages", s.skippedMessages.Load)
}

func (s *stage[M, Cfg, W, WArgs, WPtr]) run(ctx context.Context) {
	defer s.runWg.Done()

	s.tel.LogInfo("running")
	defer s.tel.LogInfo("stopped")

	s.workerPool.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		default:
		}

		msg, err := s.inputConnector.Read()
		if err != nil {
			if errors.Is(err, connector.ErrClosed) {
				s.tel.LogInfo("input connector is closed, stopping")
				return
			}

			s.tel.LogError("failed to read from input connector", err)
			continue
		}

		if !s.workerPool.AddTask(ctx, msg) {
			s.skippedMessages.Add(1)
		}
	}
}

func (s *stage[M, Cfg, W, WArgs, WPtr]) close() {
	s.tel.LogInfo("closing")
	defer s.tel.LogInfo("closed")

	s.inputConnector.Close()
	s.runWg.Wait()

	s.workerPool.Stop()
}

func (s *stage[M, Cfg, W, WArgs, WPtr]) SetInput(inputConnector connector.Connector[M]) {
	s.inputConnector = inputConnector
}
