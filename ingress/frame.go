package ingress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/pool"
	"go.einride.tech/can"
)

// Layout of struct can_frame and the flags of its id field.
const (
	canFrameSize = 16

	canEFFFlag = 0x80000000
	canRTRFlag = 0x40000000
	canERRFlag = 0x20000000

	canSFFMask = 0x000007FF
	canEFFMask = 0x1FFFFFFF

	// maximum number of filters accepted by CAN_RAW_FILTER
	maxKernelFilters = 512
)

var (
	errShortFrame = errors.New("short can frame")
	errErrorFrame = errors.New("can error frame")
)

// decodeFrame converts a struct can_frame read from a raw socket.
func decodeFrame(buf []byte, stamp uint64) (message.CANFrame, error) {
	if len(buf) < canFrameSize {
		return message.CANFrame{}, fmt.Errorf("%w: %d bytes", errShortFrame, len(buf))
	}

	rawID := binary.NativeEndian.Uint32(buf[0:4])
	if rawID&canERRFlag != 0 {
		return message.CANFrame{}, errErrorFrame
	}

	frame := message.CANFrame{
		Frame: can.Frame{
			IsExtended: rawID&canEFFFlag != 0,
			IsRemote:   rawID&canRTRFlag != 0,
			Length:     min(buf[4], can.MaxDataLength),
		},
		Timestamp: stamp,
		Status:    pool.TransportChanged,
	}

	if frame.IsExtended {
		frame.ID = rawID & canEFFMask
	} else {
		frame.ID = rawID & canSFFMask
	}

	copy(frame.Data[:], buf[8:16])

	return frame, nil
}

// Filter selects the frames accepted by the kernel.
type Filter struct {
	ID       uint32
	Extended bool
}

// FiltersFromPool returns one filter per message of the pool.
func FiltersFromPool(p *pool.Pool) []Filter {
	filters := make([]Filter, 0, len(p.Messages()))
	for _, msg := range p.Messages() {
		filters = append(filters, Filter{ID: msg.ID(), Extended: msg.Extended()})
	}
	return filters
}

// idMask returns the can_filter id and mask matching exactly
// the filter id, data frames only.
func (f Filter) idMask() (id, mask uint32) {
	if f.Extended {
		return f.ID&canEFFMask | canEFFFlag, canEFFMask | canEFFFlag | canRTRFlag
	}
	return f.ID & canSFFMask, canSFFMask | canEFFFlag | canRTRFlag
}

func timeoutFrame(id uint32, extended bool, now time.Time) message.CANFrame {
	return message.CANFrame{
		Frame: can.Frame{
			ID:         id,
			IsExtended: extended,
		},
		Timestamp: uint64(now.UnixMicro()),
		Status:    pool.TransportTimeout,
	}
}

type frameKey struct {
	id       uint32
	extended bool
}

// timeoutTracker reports the ids not received within the timeout.
// An id is reported once, then again only after being received.
// mux is held by callers sharing a tracker between goroutines.
type timeoutTracker struct {
	mux sync.Mutex

	timeout time.Duration

	lastSeen map[frameKey]time.Time
	expired  map[frameKey]bool
}

func newTimeoutTracker(timeout time.Duration) *timeoutTracker {
	return &timeoutTracker{
		timeout: timeout,

		lastSeen: make(map[frameKey]time.Time),
		expired:  make(map[frameKey]bool),
	}
}

func (t *timeoutTracker) seen(id uint32, extended bool, now time.Time) {
	key := frameKey{id, extended}
	t.lastSeen[key] = now
	delete(t.expired, key)
}

func (t *timeoutTracker) expire(now time.Time) []message.CANFrame {
	var frames []message.CANFrame

	for key, last := range t.lastSeen {
		if t.expired[key] || now.Sub(last) < t.timeout {
			continue
		}

		t.expired[key] = true
		frames = append(frames, timeoutFrame(key.id, key.extended, now))
	}

	return frames
}
