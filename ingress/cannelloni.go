package ingress

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/squadracorsepolito/dbcpool/connector"
	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/pool"
	"go.einride.tech/can"
	"go.opentelemetry.io/otel/attribute"
)

// Cannelloni datagram layout.
const (
	cannelloniVersion    = 2
	cannelloniOpData     = 0
	cannelloniHeaderSize = 5

	cannelloniFDFlag = 0x80

	defaultUDPPayloadSize = 1474
)

var errCANFDFrame = errors.New("can fd frame")

type CannelloniConfig struct {
	IPAddr string
	Port   uint16

	// Timeout reports an id as timed out when no frame is received
	// within it. Zero disables the check.
	Timeout time.Duration
}

func NewDefaultCannelloniConfig() *CannelloniConfig {
	return &CannelloniConfig{
		IPAddr: "127.0.0.1",
		Port:   20_000,
	}
}

// Cannelloni receives CAN frames tunnelled over UDP by cannelloni.
// Every datagram becomes a batch.
type Cannelloni struct {
	tel   *internal.Telemetry
	stats *internal.Stats

	cfg *CannelloniConfig

	conn *net.UDPConn

	out connector.Connector[*message.CANFrameBatch]

	timeouts *timeoutTracker

	receivedBytes  atomic.Int64
	receivedFrames atomic.Int64
	skippedFrames  atomic.Int64
	droppedPackets atomic.Int64
}

func NewCannelloni(cfg *CannelloniConfig) *Cannelloni {
	tel := internal.NewTelemetry(internal.StageKindIngress, "cannelloni")

	return &Cannelloni{
		tel:   tel,
		stats: internal.NewStats(tel.Logger()),

		cfg: cfg,
	}
}

func (i *Cannelloni) Init(_ context.Context) error {
	i.tel.LogInfo("initializing", "ip_addr", i.cfg.IPAddr, "port", i.cfg.Port)
	defer i.tel.LogInfo("initialized")

	if i.out == nil {
		return errors.New("output connector not set")
	}

	parsedAddr, err := netip.ParseAddr(i.cfg.IPAddr)
	if err != nil {
		return err
	}

	addr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(parsedAddr, i.cfg.Port))
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	i.conn = conn

	if i.cfg.Timeout > 0 {
		i.timeouts = newTimeoutTracker(i.cfg.Timeout)
	}

	i.tel.NewCounter("received_bytes", i.receivedBytes.Load)
	i.tel.NewCounter("received_frames", i.receivedFrames.Load)
	i.tel.NewCounter("skipped_frames", i.skippedFrames.Load)
	i.tel.NewCounter("dropped_packets", i.droppedPackets.Load)

	return nil
}

func (i *Cannelloni) Run(ctx context.Context) {
	i.tel.LogInfo("running")
	defer i.tel.LogInfo("stopped")

	go i.stats.RunStats(ctx)

	go func() {
		<-ctx.Done()
		i.conn.Close()
	}()

	if i.timeouts != nil {
		go i.runTimeouts(ctx)
	}

	buf := make([]byte, defaultUDPPayloadSize)
	for {
		n, err := i.conn.Read(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				i.tel.LogError("failed to read connection", err)
			}
			return
		}

		i.receivedBytes.Add(int64(n))
		i.stats.IncrementByteCountBy(n)

		batch, ok := i.handleDatagram(ctx, buf[:n])
		if !ok {
			continue
		}

		if err := i.out.Write(batch); err != nil {
			i.tel.LogWarn("failed to write into output connector", "reason", err)
			message.PutCANFrameBatch(batch)
			return
		}
	}
}

func (i *Cannelloni) handleDatagram(ctx context.Context, buf []byte) (*message.CANFrameBatch, bool) {
	_, span := i.tel.NewTrace(ctx, "receive cannelloni datagram")
	defer span.End()

	now := time.Now()

	batch := message.NewCANFrameBatch()
	skipped, err := decodeCannelloni(buf, uint64(now.UnixMicro()), batch)
	if err != nil {
		i.droppedPackets.Add(1)
		i.tel.LogWarn("dropping datagram", "reason", err)
		message.PutCANFrameBatch(batch)
		return nil, false
	}

	i.skippedFrames.Add(int64(skipped))
	i.receivedFrames.Add(int64(batch.FrameCount))

	if i.timeouts != nil {
		i.markSeen(batch, now)
	}

	for range batch.FrameCount {
		i.stats.IncrementFrameCount()
	}

	span.SetAttributes(attribute.Int("frame_count", batch.FrameCount))

	if batch.FrameCount == 0 {
		message.PutCANFrameBatch(batch)
		return nil, false
	}

	batch.SetReceiveTime(now)
	batch.SaveSpan(span)

	return batch, true
}

// markSeen and runTimeouts share the tracker.
func (i *Cannelloni) markSeen(batch *message.CANFrameBatch, now time.Time) {
	i.timeouts.mux.Lock()
	defer i.timeouts.mux.Unlock()

	for idx := range batch.FrameCount {
		frame := &batch.Frames[idx]
		i.timeouts.seen(frame.ID, frame.IsExtended, now)
	}
}

func (i *Cannelloni) runTimeouts(ctx context.Context) {
	ticker := time.NewTicker(i.cfg.Timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			i.timeouts.mux.Lock()
			frames := i.timeouts.expire(now)
			i.timeouts.mux.Unlock()

			if len(frames) == 0 {
				continue
			}

			batch := message.NewCANFrameBatch()
			for _, frame := range frames {
				batch.Append(frame)
			}
			batch.SetReceiveTime(now)

			if err := i.out.Write(batch); err != nil {
				message.PutCANFrameBatch(batch)
				return
			}
		}
	}
}

func (i *Cannelloni) Stop() {
	defer i.tel.LogInfo("closed")

	i.out.Close()
}

func (i *Cannelloni) SetOutput(connector connector.Connector[*message.CANFrameBatch]) {
	i.out = connector
}

// decodeCannelloni appends the classic frames of a data datagram to batch.
// CAN FD frames are skipped and counted.
func decodeCannelloni(buf []byte, stamp uint64, batch *message.CANFrameBatch) (int, error) {
	if len(buf) < cannelloniHeaderSize {
		return 0, fmt.Errorf("%w: %d bytes header", errShortFrame, len(buf))
	}

	if buf[1] != cannelloniOpData {
		return 0, fmt.Errorf("unsupported cannelloni op code %d", buf[1])
	}

	count := int(binary.BigEndian.Uint16(buf[3:5]))

	skipped := 0
	pos := cannelloniHeaderSize
	for range count {
		frame, n, err := decodeCannelloniFrame(buf[pos:], stamp)
		pos += n

		switch {
		case err == nil:
			batch.Append(frame)
		case errors.Is(err, errCANFDFrame), errors.Is(err, errErrorFrame):
			skipped++
		default:
			return skipped, err
		}
	}

	return skipped, nil
}

// decodeCannelloniFrame returns the frame at the start of buf and its encoded size.
func decodeCannelloniFrame(buf []byte, stamp uint64) (message.CANFrame, int, error) {
	if len(buf) < 5 {
		return message.CANFrame{}, 0, fmt.Errorf("%w: %d bytes frame", errShortFrame, len(buf))
	}

	rawID := binary.BigEndian.Uint32(buf[0:4])

	n := 5
	length := int(buf[4])
	isFD := length&cannelloniFDFlag != 0
	if isFD {
		// the flags byte follows the length
		length &^= cannelloniFDFlag
		n++
	}

	if len(buf) < n+length {
		return message.CANFrame{}, 0, fmt.Errorf("%w: %d bytes payload", errShortFrame, len(buf)-n)
	}

	size := n + length
	if isFD || length > can.MaxDataLength {
		return message.CANFrame{}, size, errCANFDFrame
	}
	if rawID&canERRFlag != 0 {
		return message.CANFrame{}, size, errErrorFrame
	}

	frame := message.CANFrame{
		Frame: can.Frame{
			IsExtended: rawID&canEFFFlag != 0,
			IsRemote:   rawID&canRTRFlag != 0,
			Length:     uint8(length),
		},
		Timestamp: stamp,
		Status:    pool.TransportChanged,
	}

	if frame.IsExtended {
		frame.ID = rawID & canEFFMask
	} else {
		frame.ID = rawID & canSFFMask
	}

	copy(frame.Data[:], buf[n:size])

	return frame, size, nil
}
