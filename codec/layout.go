package codec

import (
	"math"
	"math/bits"

	"github.com/squadracorsepolito/dbcpool/dbc"
)

const maxSignalSize = 64

// Layout is the half open bit range [Start, End) occupied by a signal.
// For little endian signals bits are numbered LSB first inside the frame,
// for big endian signals MSB first.
type Layout struct {
	Start       uint64
	End         uint64
	MessageBits uint64
	ByteOrder   dbc.ByteOrder
}

// Size returns the width of the signal in bits.
func (l Layout) Size() uint64 {
	return l.End - l.Start
}

// Bytes returns the minimum frame length needed to hold the signal.
func (l Layout) Bytes() uint64 {
	return (l.End + 7) / 8
}

// Resolve computes the bit range of the signal inside a message
// of msgBytes bytes.
func Resolve(sig *dbc.Signal, msgBytes uint64) (Layout, error) {
	if msgBytes > math.MaxUint64/8 {
		return Layout{}, &LayoutError{Signal: sig.Name, Start: sig.StartBit, Reason: "message size overflows"}
	}
	msgBits := msgBytes * 8

	start := sig.StartBit
	if sig.ByteOrder == dbc.BigEndian {
		// the DBC start bit is the MSB in a per byte reversed numbering
		start = (sig.StartBit/8)*8 + (7 - sig.StartBit%8)
	}

	end, carry := bits.Add64(start, sig.Size, 0)

	layout := Layout{
		Start:       start,
		End:         end,
		MessageBits: msgBits,
		ByteOrder:   sig.ByteOrder,
	}

	switch {
	case sig.Size == 0:
		return Layout{}, newLayoutError(sig, layout, "zero size")
	case sig.Size > maxSignalSize:
		return Layout{}, newLayoutError(sig, layout, "size exceeds 64 bits")
	case carry != 0:
		return Layout{}, newLayoutError(sig, layout, "end bit overflows")
	case start > msgBits:
		return Layout{}, newLayoutError(sig, layout, "start bit outside message")
	case end > msgBits:
		return Layout{}, newLayoutError(sig, layout, "end bit outside message")
	}

	return layout, nil
}

func newLayoutError(sig *dbc.Signal, layout Layout, reason string) *LayoutError {
	return &LayoutError{
		Signal:      sig.Name,
		Start:       layout.Start,
		End:         layout.End,
		MessageBits: layout.MessageBits,
		Reason:      reason,
	}
}
