package message

import (
	"math"
	"sync"
	"time"

	"github.com/squadracorsepolito/dbcpool/codec"
	"github.com/squadracorsepolito/dbcpool/pool"
)

const (
	defaultCANSignalCount = 512
)

type CANSignalTable int

const (
	CANSignalTableFlag CANSignalTable = iota
	CANSignalTableInt
	CANSignalTableFloat
	CANSignalTableEnum
)

func (c CANSignalTable) String() string {
	switch c {
	case CANSignalTableFlag:
		return "flag_signals"
	case CANSignalTableInt:
		return "int_signals"
	case CANSignalTableFloat:
		return "float_signals"
	case CANSignalTableEnum:
		return "enum_signals"
	default:
		return "unknown"
	}
}

// CANSignal is a decoded signal change ready to be stored.
type CANSignal struct {
	CANID   int64
	Message string
	Name    string
	Unit    string

	// Stamp is the frame timestamp in microseconds.
	Stamp    uint64
	RawValue int64

	Table      CANSignalTable
	ValueFlag  bool
	ValueInt   int64
	ValueFloat float64
	ValueEnum  string
}

// NewCANSignal fills a row from the state of a pool signal.
// Unsigned values above the int64 range are stored as float.
func NewCANSignal(msg *pool.Message, state pool.SignalState, raw uint64) CANSignal {
	sig := CANSignal{
		CANID:    int64(msg.ID()),
		Message:  msg.Name(),
		Name:     state.Name,
		Stamp:    state.Stamp,
		RawValue: int64(raw),
	}

	if state.Signal != nil {
		sig.Unit = state.Signal.Descriptor().Unit
	}

	kind := state.Value.Kind()
	switch {
	case state.Label != "":
		sig.Table = CANSignalTableEnum
		sig.ValueEnum = state.Label

	case kind == codec.KindBool:
		sig.Table = CANSignalTableFlag
		sig.ValueFlag, _ = state.Value.Bool()

	case kind == codec.KindF64:
		sig.Table = CANSignalTableFloat
		sig.ValueFloat, _ = state.Value.Float64()

	case kind.IsSigned():
		sig.Table = CANSignalTableInt
		sig.ValueInt, _ = state.Value.Int64()

	default:
		u, _ := state.Value.Uint64()
		if u > math.MaxInt64 {
			sig.Table = CANSignalTableFloat
			sig.ValueFloat = float64(u)
			break
		}
		sig.Table = CANSignalTableInt
		sig.ValueInt = int64(u)
	}

	return sig
}

type CANSignalBatch struct {
	embedded

	Timestamp   time.Time
	SignalCount int
	Signals     []CANSignal
}

var canSignalBatchPool = &sync.Pool{
	New: func() any {
		return &CANSignalBatch{
			Signals: make([]CANSignal, 0, defaultCANSignalCount),
		}
	},
}

func NewCANSignalBatch() *CANSignalBatch {
	return canSignalBatchPool.Get().(*CANSignalBatch)
}

func PutCANSignalBatch(b *CANSignalBatch) {
	b.embedded.reset()
	b.Timestamp = time.Time{}
	b.SignalCount = 0
	b.Signals = b.Signals[:0]

	canSignalBatchPool.Put(b)
}

// Append adds a signal to the batch.
func (b *CANSignalBatch) Append(sig CANSignal) {
	b.Signals = append(b.Signals, sig)
	b.SignalCount++
}
