package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/squadracorsepolito/dbcpool/internal"
)

// EgressPool runs a fixed number of egress workers fed by a shared queue.
type EgressPool[W, InitArgs, In any, WPtr EgressWorkerPtr[W, InitArgs, In]] struct {
	tel *internal.Telemetry

	cfg *PoolConfig

	initArgs InitArgs

	wg *sync.WaitGroup

	inputCh chan In

	activeWorkers  atomic.Int64
	deliveredTasks atomic.Int64
	failedTasks    atomic.Int64
}

func NewEgressPool[W, InitArgs, In any, WPtr EgressWorkerPtr[W, InitArgs, In]](tel *internal.Telemetry, cfg *PoolConfig) *EgressPool[W, InitArgs, In, WPtr] {
	return &EgressPool[W, InitArgs, In, WPtr]{
		tel: tel,

		cfg: cfg,

		wg: &sync.WaitGroup{},

		inputCh: make(chan In, cfg.queueSize()),
	}
}

func (ep *EgressPool[W, InitArgs, In, WPtr]) Init(_ context.Context, initArgs InitArgs) {
	ep.initArgs = initArgs

	ep.tel.NewGauge("active_workers", ep.activeWorkers.Load)
	ep.tel.NewCounter("delivered_tasks", ep.deliveredTasks.Load)
	ep.tel.NewCounter("failed_tasks", ep.failedTasks.Load)
}

// Run starts the workers, it does not block.
func (ep *EgressPool[W, InitArgs, In, WPtr]) Run(ctx context.Context) {
	workers := max(ep.cfg.Workers, 1)

	ep.wg.Add(workers)
	for workerID := range workers {
		go ep.runWorker(ctx, workerID)
	}
}

func (ep *EgressPool[W, InitArgs, In, WPtr]) runWorker(ctx context.Context, workerID int) {
	defer ep.wg.Done()

	var dummyWorker W
	worker := WPtr(&dummyWorker)
	worker.SetTelemetry(ep.tel)

	if err := worker.Init(ctx, ep.initArgs); err != nil {
		ep.tel.LogError("failed to init worker", err, "worker_id", workerID)
		return
	}

	ep.activeWorkers.Add(1)
	defer ep.activeWorkers.Add(-1)

	ep.tel.LogDebug("starting worker", "worker_id", workerID)

	defer func() {
		ep.tel.LogDebug("stopping worker", "worker_id", workerID)

		if err := worker.Stop(ctx); err != nil {
			ep.tel.LogError("failed to stop worker", err, "worker_id", workerID)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case task, ok := <-ep.inputCh:
			if !ok {
				return
			}

			if err := worker.Deliver(ctx, task); err != nil {
				ep.failedTasks.Add(1)
				ep.tel.LogError("failed to deliver", err, "worker_id", workerID)
				continue
			}

			ep.deliveredTasks.Add(1)
		}
	}
}

// AddTask queues a task without blocking. It reports false when the queue is full.
func (ep *EgressPool[W, InitArgs, In, WPtr]) AddTask(ctx context.Context, task In) bool {
	select {
	case <-ctx.Done():
		return false

	case ep.inputCh <- task:
		return true

	default:
		return false
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (ep *EgressPool[W, InitArgs, In, WPtr]) Stop() {
	close(ep.inputCh)
	ep.wg.Wait()
}
