package message

import (
	"sync"

	"github.com/squadracorsepolito/dbcpool/pool"
	"go.einride.tech/can"
)

// DefaultCANFrameNum is the number of frames read from the socket
// before a batch is handed over.
const DefaultCANFrameNum = 64

// CANFrame is a frame as delivered by the CAN transport.
type CANFrame struct {
	can.Frame

	// Timestamp is the receive time in microseconds.
	Timestamp uint64
	Status    pool.TransportStatus
}

// Payload returns the data bytes covered by the frame length.
func (f *CANFrame) Payload() []byte {
	return f.Data[:f.Length]
}

type CANFrameBatch struct {
	embedded

	FrameCount int
	Frames     []CANFrame
}

var canFrameBatchPool = &sync.Pool{
	New: func() any {
		return &CANFrameBatch{
			Frames: make([]CANFrame, 0, DefaultCANFrameNum),
		}
	},
}

func NewCANFrameBatch() *CANFrameBatch {
	return canFrameBatchPool.Get().(*CANFrameBatch)
}

func PutCANFrameBatch(b *CANFrameBatch) {
	b.embedded.reset()
	b.FrameCount = 0
	b.Frames = b.Frames[:0]

	canFrameBatchPool.Put(b)
}

// Append adds a frame to the batch.
func (b *CANFrameBatch) Append(frame CANFrame) {
	b.Frames = append(b.Frames, frame)
	b.FrameCount++
}
