package egress

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/worker"
	"go.einride.tech/can/pkg/socketcan"
	"go.opentelemetry.io/otel/attribute"
)

type SocketCANConfig struct {
	*worker.PoolConfig

	Interface string
}

// NewDefaultSocketCANConfig uses a single worker, so frames
// leave the interface in the order they were queued.
func NewDefaultSocketCANConfig() *SocketCANConfig {
	return &SocketCANConfig{
		PoolConfig: &worker.PoolConfig{
			Workers:             1,
			QueueDepthPerWorker: 256,
		},
		Interface: "can0",
	}
}

// SocketCAN transmits encoded frames on a SocketCAN interface.
type SocketCAN struct {
	*stage[*message.CANFrameBatch, *SocketCANConfig, socketCANWorker, string, *socketCANWorker]
}

func NewSocketCAN(cfg *SocketCANConfig) *SocketCAN {
	return &SocketCAN{
		stage: newStage[*message.CANFrameBatch, *SocketCANConfig, socketCANWorker, string]("socketcan", cfg),
	}
}

func (e *SocketCAN) Init(ctx context.Context) error {
	return e.init(ctx, e.cfg.Interface)
}

func (e *SocketCAN) Run(ctx context.Context) {
	e.run(ctx)
}

func (e *SocketCAN) Stop() {
	e.close()
}

type socketCANWorker struct {
	tel *internal.Telemetry

	conn net.Conn
	tx   *socketcan.Transmitter

	sentFrames atomic.Int64
}

func (w *socketCANWorker) Init(ctx context.Context, iface string) error {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return err
	}

	w.conn = conn
	w.tx = socketcan.NewTransmitter(conn)

	w.tel.NewCounter("sent_frames", w.sentFrames.Load)

	return nil
}

func (w *socketCANWorker) Deliver(ctx context.Context, batch *message.CANFrameBatch) error {
	defer message.PutCANFrameBatch(batch)

	ctx, span := w.tel.NewTrace(batch.LoadSpanContext(ctx), "transmit CAN frames")
	defer span.End()

	span.SetAttributes(attribute.Int("frame_count", batch.FrameCount))

	for i := range batch.FrameCount {
		if err := w.tx.TransmitFrame(ctx, batch.Frames[i].Frame); err != nil {
			return err
		}
		w.sentFrames.Add(1)
	}

	return nil
}

func (w *socketCANWorker) Stop(_ context.Context) error {
	return w.conn.Close()
}

func (w *socketCANWorker) SetTelemetry(tel *internal.Telemetry) {
	w.tel = tel
}
