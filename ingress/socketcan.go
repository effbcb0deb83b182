// Package ingress contains the stages reading CAN frames into the pipeline.
package ingress

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/squadracorsepolito/dbcpool/connector"
	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/message"
)

type SocketCANConfig struct {
	Interface string

	// Filters restricts the received ids, all frames are received when empty.
	Filters []Filter

	// BatchSize is the maximum number of frames per batch.
	BatchSize int
	// FlushInterval bounds how long a partial batch is kept.
	FlushInterval time.Duration

	// Timeout reports an id as timed out when no frame is received
	// within it. Zero disables the check.
	Timeout time.Duration
}

func NewDefaultSocketCANConfig() *SocketCANConfig {
	return &SocketCANConfig{
		Interface:     "can0",
		BatchSize:     message.DefaultCANFrameNum,
		FlushInterval: 50 * time.Millisecond,
	}
}

// rawSocket is a bound CAN_RAW socket.
type rawSocket interface {
	// read fills buf with a struct can_frame. It returns errReadTimeout
	// when nothing is received within the read deadline.
	read(buf []byte) (int, error)
	close() error
}

var errReadTimeout = errors.New("read timeout")

// defaultReadTimeout bounds a blocked read when no flush interval is set,
// so that Run notices the cancellation of its context.
const defaultReadTimeout = 100 * time.Millisecond

// SocketCAN reads frames from a SocketCAN interface.
type SocketCAN struct {
	tel   *internal.Telemetry
	stats *internal.Stats

	cfg *SocketCANConfig

	sock rawSocket

	out connector.Connector[*message.CANFrameBatch]

	timeouts *timeoutTracker

	receivedFrames atomic.Int64
	skippedFrames  atomic.Int64
	timedOutFrames atomic.Int64
}

func NewSocketCAN(cfg *SocketCANConfig) *SocketCAN {
	tel := internal.NewTelemetry(internal.StageKindIngress, "socketcan")

	return &SocketCAN{
		tel:   tel,
		stats: internal.NewStats(tel.Logger()),

		cfg: cfg,
	}
}

func (i *SocketCAN) Init(_ context.Context) error {
	i.tel.LogInfo("initializing", "interface", i.cfg.Interface, "filters", len(i.cfg.Filters))
	defer i.tel.LogInfo("initialized")

	if i.out == nil {
		return errors.New("output connector not set")
	}

	filters := i.cfg.Filters
	if len(filters) > maxKernelFilters {
		i.tel.LogWarn("too many filters, receiving every frame", "filters", len(filters))
		filters = nil
	}

	readTimeout := i.cfg.FlushInterval
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	sock, err := openRawSocket(i.cfg.Interface, filters, readTimeout)
	if err != nil {
		return err
	}
	i.sock = sock

	if i.cfg.Timeout > 0 {
		i.timeouts = newTimeoutTracker(i.cfg.Timeout)
	}

	i.tel.NewCounter("received_frames", i.receivedFrames.Load)
	i.tel.NewCounter("skipped_frames", i.skippedFrames.Load)
	i.tel.NewCounter("timed_out_frames", i.timedOutFrames.Load)

	return nil
}

func (i *SocketCAN) Run(ctx context.Context) {
	i.tel.LogInfo("running")
	defer i.tel.LogInfo("stopped")

	go i.stats.RunStats(ctx)

	// the socket is only closed once no read is in flight
	defer func() {
		if err := i.sock.close(); err != nil {
			i.tel.LogError("failed to close socket", err)
		}
	}()

	batchSize := max(i.cfg.BatchSize, 1)
	batch := message.NewCANFrameBatch()
	lastFlush := time.Now()

	buf := make([]byte, canFrameSize)
	for {
		if ctx.Err() != nil {
			message.PutCANFrameBatch(batch)
			return
		}

		n, err := i.sock.read(buf)

		now := time.Now()

		switch {
		case err == nil:
			frame, err := decodeFrame(buf[:n], uint64(now.UnixMicro()))
			if err != nil {
				i.skippedFrames.Add(1)
				i.tel.LogDebug("skipping frame", "reason", err)
				break
			}

			i.receivedFrames.Add(1)
			i.stats.IncrementFrameCount()
			i.stats.IncrementByteCountBy(n)

			if i.timeouts != nil {
				i.timeouts.seen(frame.ID, frame.IsExtended, now)
			}

			batch.Append(frame)

		case errors.Is(err, errReadTimeout):

		default:
			i.tel.LogError("failed to read socket", err)

			message.PutCANFrameBatch(batch)
			return
		}

		if i.timeouts != nil {
			for _, frame := range i.timeouts.expire(now) {
				i.timedOutFrames.Add(1)
				batch.Append(frame)
			}
		}

		if batch.FrameCount == 0 {
			continue
		}

		if batch.FrameCount < batchSize && now.Sub(lastFlush) < i.cfg.FlushInterval {
			continue
		}

		batch.SetReceiveTime(now)
		if err := i.out.Write(batch); err != nil {
			i.tel.LogWarn("failed to write into output connector", "reason", err)
			message.PutCANFrameBatch(batch)
			return
		}

		batch = message.NewCANFrameBatch()
		lastFlush = now
	}
}

func (i *SocketCAN) Stop() {
	defer i.tel.LogInfo("closed")

	i.out.Close()
}

func (i *SocketCAN) SetOutput(connector connector.Connector[*message.CANFrameBatch]) {
	i.out = connector
}
