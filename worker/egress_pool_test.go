package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/stretchr/testify/assert"
)

type sumArgs struct {
	mux *sync.Mutex
	sum *int
}

type sumWorker struct {
	tel  *internal.Telemetry
	args sumArgs
}

var errOdd = errors.New("odd")

func (w *sumWorker) Init(_ context.Context, args sumArgs) error {
	w.args = args
	return nil
}

func (w *sumWorker) Deliver(_ context.Context, task int) error {
	if task%2 != 0 {
		return errOdd
	}

	w.args.mux.Lock()
	defer w.args.mux.Unlock()

	*w.args.sum += task
	return nil
}

func (w *sumWorker) Stop(_ context.Context) error {
	return nil
}

func (w *sumWorker) SetTelemetry(tel *internal.Telemetry) {
	w.tel = tel
}

func Test_EgressPool(t *testing.T) {
	assert := assert.New(t)

	tel := internal.NewTelemetry(internal.StageKindEgress, "test")
	cfg := &PoolConfig{Workers: 3, QueueDepthPerWorker: 16}

	ep := NewEgressPool[sumWorker, sumArgs, int](tel, cfg)

	sum := 0
	ctx := context.Background()
	ep.Init(ctx, sumArgs{mux: &sync.Mutex{}, sum: &sum})
	ep.Run(ctx)

	expected := 0
	for i := range 40 {
		assert.True(ep.AddTask(ctx, i))
		if i%2 == 0 {
			expected += i
		}
	}

	ep.Stop()

	assert.Equal(expected, sum)
	assert.Equal(int64(20), ep.deliveredTasks.Load())
	assert.Equal(int64(20), ep.failedTasks.Load())
	assert.Zero(ep.activeWorkers.Load())
}

func Test_EgressPool_full(t *testing.T) {
	assert := assert.New(t)

	tel := internal.NewTelemetry(internal.StageKindEgress, "test")
	cfg := &PoolConfig{Workers: 1, QueueDepthPerWorker: 2}

	ep := NewEgressPool[sumWorker, sumArgs, int](tel, cfg)

	// workers not started, the queue fills up
	assert.True(ep.AddTask(context.Background(), 0))
	assert.True(ep.AddTask(context.Background(), 2))
	assert.False(ep.AddTask(context.Background(), 4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(ep.AddTask(ctx, 6))
}

func Test_PoolConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultPoolConfig()
	assert.GreaterOrEqual(cfg.Workers, 1)
	assert.LessOrEqual(cfg.Workers, 4)
	assert.Same(cfg, cfg.ToPoolConfig())

	assert.Equal(1, (&PoolConfig{}).queueSize())
	assert.Equal(6, (&PoolConfig{Workers: 2, QueueDepthPerWorker: 3}).queueSize())
}
