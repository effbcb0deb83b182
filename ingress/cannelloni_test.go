package ingress

import (
	"encoding/binary"
	"testing"

	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannelloniFrame struct {
	id   uint32
	fd   bool
	data []byte
}

func newDatagram(opCode byte, frames ...cannelloniFrame) []byte {
	buf := []byte{cannelloniVersion, opCode, 7, 0, 0}
	binary.BigEndian.PutUint16(buf[3:5], uint16(len(frames)))

	for _, f := range frames {
		buf = binary.BigEndian.AppendUint32(buf, f.id)
		if f.fd {
			buf = append(buf, byte(len(f.data))|cannelloniFDFlag, 0x01)
		} else {
			buf = append(buf, byte(len(f.data)))
		}
		buf = append(buf, f.data...)
	}

	return buf
}

func Test_decodeCannelloni(t *testing.T) {
	assert := assert.New(t)

	datagram := newDatagram(cannelloniOpData,
		cannelloniFrame{id: 0x100, data: []byte{0x01, 0x02}},
		cannelloniFrame{id: 0x200, fd: true, data: make([]byte, 12)},
		cannelloniFrame{id: 0x18FEF1FE | canEFFFlag, data: []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00, 0x11}},
		cannelloniFrame{id: 0x10 | canERRFlag, data: []byte{0}},
	)

	batch := message.NewCANFrameBatch()
	defer message.PutCANFrameBatch(batch)

	skipped, err := decodeCannelloni(datagram, 99, batch)
	require.NoError(t, err)
	assert.Equal(2, skipped)
	require.Equal(t, 2, batch.FrameCount)

	first := batch.Frames[0]
	assert.Equal(uint32(0x100), first.ID)
	assert.False(first.IsExtended)
	assert.Equal([]byte{0x01, 0x02}, first.Payload())
	assert.Equal(uint64(99), first.Timestamp)
	assert.Equal(pool.TransportChanged, first.Status)

	second := batch.Frames[1]
	assert.Equal(uint32(0x18FEF1FE), second.ID)
	assert.True(second.IsExtended)
	assert.Equal(uint8(8), second.Length)
	assert.Equal(byte(0x11), second.Data[7])
}

func Test_decodeCannelloni_errors(t *testing.T) {
	assert := assert.New(t)

	batch := message.NewCANFrameBatch()
	defer message.PutCANFrameBatch(batch)

	_, err := decodeCannelloni([]byte{cannelloniVersion, 0}, 0, batch)
	assert.ErrorIs(err, errShortFrame)

	_, err = decodeCannelloni(newDatagram(1), 0, batch)
	assert.Error(err)

	// the header announces more frames than the datagram carries
	datagram := newDatagram(cannelloniOpData, cannelloniFrame{id: 0x100, data: []byte{1, 2, 3}})
	datagram[4] = 2
	_, err = decodeCannelloni(datagram, 0, batch)
	assert.ErrorIs(err, errShortFrame)

	// truncated payload
	datagram = newDatagram(cannelloniOpData, cannelloniFrame{id: 0x100, data: []byte{1, 2, 3}})
	_, err = decodeCannelloni(datagram[:len(datagram)-1], 0, batch)
	assert.ErrorIs(err, errShortFrame)
}
