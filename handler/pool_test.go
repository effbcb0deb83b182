package handler

import (
	"context"
	"testing"

	"github.com/squadracorsepolito/dbcpool/connector"
	"github.com/squadracorsepolito/dbcpool/dbc"
	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.einride.tech/can"
)

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()

	p, err := pool.New([]*dbc.Message{
		{
			ID:   0x200,
			Name: "Dashboard",
			Size: 8,
			Signals: []*dbc.Signal{
				{Name: "Speed", StartBit: 0, Size: 16, Factor: 0.1, Unit: "km/h"},
				{Name: "Gear", StartBit: 16, Size: 4, Factor: 1, Labels: []dbc.ValueLabel{
					{Code: 0, Label: "Neutral"},
					{Code: 1, Label: "First"},
				}},
				{Name: "Brake", StartBit: 20, Size: 1, Factor: 1},
			},
		},
	}, nil)
	require.NoError(t, err)

	return p
}

func newFrame(id uint32, stamp uint64, data ...byte) message.CANFrame {
	frame := message.CANFrame{
		Frame: can.Frame{
			ID:     id,
			Length: uint8(len(data)),
		},
		Timestamp: stamp,
		Status:    pool.TransportChanged,
	}
	copy(frame.Data[:], data)
	return frame
}

func Test_Pool_handle(t *testing.T) {
	assert := assert.New(t)

	h := NewPool(&PoolConfig{Pool: newTestPool(t)})
	ctx := context.Background()

	batch := message.NewCANFrameBatch()
	batch.Append(newFrame(0x200, 10, 0x64, 0x00, 0x11, 0, 0, 0, 0, 0))
	batch.Append(newFrame(0x7FF, 11, 0x01))

	res, ok := h.handle(ctx, batch)
	require.True(t, ok)
	defer message.PutCANSignalBatch(res)

	assert.Equal(3, res.SignalCount)
	assert.Equal(int64(2), h.processedFrames.Load())
	assert.Equal(int64(1), h.unknownFrames.Load())
	assert.Equal(int64(3), h.updatedSignals.Load())

	speed := res.Signals[0]
	assert.Equal("Speed", speed.Name)
	assert.Equal("Dashboard", speed.Message)
	assert.Equal(int64(0x200), speed.CANID)
	assert.Equal("km/h", speed.Unit)
	assert.Equal(message.CANSignalTableFloat, speed.Table)
	assert.InDelta(10.0, speed.ValueFloat, 1e-9)
	assert.Equal(int64(100), speed.RawValue)
	assert.Equal(uint64(10), speed.Stamp)

	gear := res.Signals[1]
	assert.Equal(message.CANSignalTableEnum, gear.Table)
	assert.Equal("First", gear.ValueEnum)

	brake := res.Signals[2]
	assert.Equal(message.CANSignalTableFlag, brake.Table)
	assert.True(brake.ValueFlag)

	// same payload, nothing changed
	batch = message.NewCANFrameBatch()
	batch.Append(newFrame(0x200, 20, 0x64, 0x00, 0x11, 0, 0, 0, 0, 0))

	_, ok = h.handle(ctx, batch)
	assert.False(ok)

	// only the speed changed
	batch = message.NewCANFrameBatch()
	batch.Append(newFrame(0x200, 30, 0xC8, 0x00, 0x11, 0, 0, 0, 0, 0))

	res2, ok := h.handle(ctx, batch)
	require.True(t, ok)
	defer message.PutCANSignalBatch(res2)

	if assert.Equal(1, res2.SignalCount) {
		assert.Equal("Speed", res2.Signals[0].Name)
		assert.InDelta(20.0, res2.Signals[0].ValueFloat, 1e-9)
	}
}

func Test_Pool_handle_timeout(t *testing.T) {
	assert := assert.New(t)

	p := newTestPool(t)
	h := NewPool(&PoolConfig{Pool: p})

	frame := newFrame(0x200, 10)
	frame.Status = pool.TransportTimeout

	batch := message.NewCANFrameBatch()
	batch.Append(frame)

	_, ok := h.handle(context.Background(), batch)
	assert.False(ok)

	msg, err := p.Lookup(0x200)
	require.NoError(t, err)
	assert.Equal(pool.TransportTimeout, msg.Status())
	for _, sig := range msg.Signals() {
		assert.Equal(pool.StatusTimeout, sig.Status())
	}
}

func Test_Pool_run(t *testing.T) {
	assert := assert.New(t)

	in := connector.NewRingBuffer[*message.CANFrameBatch](4)
	out := connector.NewRingBuffer[*message.CANSignalBatch](4)

	h := NewPool(&PoolConfig{Pool: newTestPool(t)})
	h.SetInput(in)
	h.SetOutput(out)

	ctx := context.Background()
	require.NoError(t, h.Init(ctx))

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	batch := message.NewCANFrameBatch()
	batch.Append(newFrame(0x200, 1, 0x01, 0x00, 0x00, 0, 0, 0, 0, 0))
	assert.NoError(in.Write(batch))

	res, err := out.Read()
	require.NoError(t, err)
	assert.Equal(3, res.SignalCount)
	message.PutCANSignalBatch(res)

	in.Close()
	<-done

	h.Stop()

	_, err = out.Read()
	assert.ErrorIs(err, connector.ErrClosed)
}
