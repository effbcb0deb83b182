package main

import (
	"bytes"
	"testing"

	"github.com/squadracorsepolito/acmelib"
	"github.com/squadracorsepolito/dbcpool/dbc"
	"github.com/squadracorsepolito/dbcpool/pool"
	"github.com/squadracorsepolito/dbcpool/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReferenceChecker(t *testing.T) *verify.Checker {
	t.Helper()

	sigType, err := acmelib.NewIntegerSignalType("byte_type", 8, false)
	require.NoError(t, err)

	msg := acmelib.NewMessage("Frame", acmelib.MessageID(1), 2)
	for idx, name := range []string{"Low", "High"} {
		sig, err := acmelib.NewStandardSignal(name, sigType)
		require.NoError(t, err)
		require.NoError(t, msg.InsertSignal(sig, idx*8))
	}

	return verify.NewChecker([]*acmelib.Message{msg})
}

func newFramePool(t *testing.T, highStart uint64) *pool.Pool {
	t.Helper()

	p, err := pool.New([]*dbc.Message{
		{
			ID:   0x10,
			Name: "Frame",
			Size: 2,
			Signals: []*dbc.Signal{
				{Name: "Low", StartBit: 0, Size: 8, Factor: 1},
				{Name: "High", StartBit: highStart, Size: 4, Factor: 1},
			},
		},
	}, nil)
	require.NoError(t, err)
	return p
}

func Test_verifyFrame(t *testing.T) {
	assert := assert.New(t)

	checker := newReferenceChecker(t)
	data := []byte{0x21, 0x43}

	msg, _, err := newFramePool(t, 8).Update(0x10, data, 1, pool.TransportRead)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	assert.NoError(verifyFrame(out, checker, msg, data))
	assert.Empty(out.String())

	// the high signal read from the wrong nibble
	msg, _, err = newFramePool(t, 12).Update(0x10, data, 1, pool.TransportRead)
	require.NoError(t, err)

	out.Reset()
	err = verifyFrame(out, checker, msg, data)
	assert.ErrorContains(err, "1 signals of Frame")
	assert.Contains(out.String(), "Frame.High")
}

func Test_printPool(t *testing.T) {
	assert := assert.New(t)

	out := &bytes.Buffer{}
	assert.NoError(printPool(out, newFramePool(t, 8)))

	text := out.String()
	assert.Contains(text, "0x010")
	assert.Contains(text, "Frame")
	assert.Contains(text, "Low")
	assert.Contains(text, "[8, 12)")
}
