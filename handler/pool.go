package handler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/pool"
	"go.opentelemetry.io/otel/attribute"
)

type PoolConfig struct {
	Pool *pool.Pool
}

// Pool applies the received frames to a signal pool and forwards
// the signals whose value changed.
type Pool struct {
	*stage[*message.CANFrameBatch, *message.CANSignalBatch]

	pool *pool.Pool

	processedFrames atomic.Int64
	unknownFrames   atomic.Int64
	failedFrames    atomic.Int64
	updatedSignals  atomic.Int64
}

func NewPool(cfg *PoolConfig) *Pool {
	return &Pool{
		stage: newStage[*message.CANFrameBatch, *message.CANSignalBatch]("pool"),

		pool: cfg.Pool,
	}
}

func (h *Pool) Init(_ context.Context) error {
	h.tel.LogInfo("initializing", "pool", h.pool.Name(), "messages", len(h.pool.Messages()))
	defer h.tel.LogInfo("initialized")

	if err := h.stage.init(); err != nil {
		return err
	}

	h.tel.NewCounter("processed_frames", h.processedFrames.Load)
	h.tel.NewCounter("unknown_frames", h.unknownFrames.Load)
	h.tel.NewCounter("failed_frames", h.failedFrames.Load)
	h.tel.NewCounter("updated_signals", h.updatedSignals.Load)

	return nil
}

func (h *Pool) Run(ctx context.Context) {
	h.run(ctx, h.handle)
}

func (h *Pool) Stop() {
	h.close()
}

func (h *Pool) handle(ctx context.Context, batch *message.CANFrameBatch) (*message.CANSignalBatch, bool) {
	defer message.PutCANFrameBatch(batch)

	_, span := h.tel.NewTrace(batch.LoadSpanContext(ctx), "update pool")
	defer span.End()

	span.SetAttributes(attribute.Int("frame_count", batch.FrameCount))

	res := message.NewCANSignalBatch()

	for i := range batch.FrameCount {
		h.applyFrame(&batch.Frames[i], res)
	}

	span.SetAttributes(attribute.Int("signal_count", res.SignalCount))

	if res.SignalCount == 0 {
		message.PutCANSignalBatch(res)
		return nil, false
	}

	res.Timestamp = batch.GetReceiveTime()
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}
	res.SetReceiveTime(time.Now())
	res.SaveSpan(span)

	return res, true
}

// applyFrame updates the pool with a frame and appends
// the updated signals to res.
func (h *Pool) applyFrame(frame *message.CANFrame, res *message.CANSignalBatch) {
	h.processedFrames.Add(1)

	payload := frame.Payload()

	msg, updated, err := h.pool.Update(frame.ID, payload, frame.Timestamp, frame.Status)
	if err != nil {
		if errors.Is(err, pool.ErrNotFound) {
			h.unknownFrames.Add(1)
			return
		}

		h.failedFrames.Add(1)
		h.tel.LogWarn("failed to update message", "can_id", frame.ID, "reason", err)
		return
	}

	if updated == 0 {
		return
	}

	for _, sig := range msg.Signals() {
		if sig.Status() != pool.StatusUpdated {
			continue
		}

		raw, _ := sig.Codec().Extract(payload)
		res.Append(message.NewCANSignal(msg, sig.State(), raw))
	}

	h.updatedSignals.Add(int64(updated))
}
