package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/squadracorsepolito/dbcpool/dbc"
	"github.com/stretchr/testify/assert"
)

func newTestSignal(name string, start, size uint64, order dbc.ByteOrder, vt dbc.ValueType) *dbc.Signal {
	return &dbc.Signal{
		Name:      name,
		StartBit:  start,
		Size:      size,
		ByteOrder: order,
		ValueType: vt,
		Factor:    1,
	}
}

func mustCompile(t *testing.T, sig *dbc.Signal, opts Options) *Signal {
	t.Helper()

	s, err := Compile(sig, 8, opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func Test_Decode(t *testing.T) {
	assert := assert.New(t)

	opts := DefaultOptions()

	// big endian, start bit is the MSB of byte 0
	be := mustCompile(t, newTestSignal("be", 7, 16, dbc.BigEndian, dbc.Unsigned), opts)
	val, ok := be.Decode([]byte{0x01, 0x02, 0, 0, 0, 0, 0, 0})
	assert.True(ok)
	assert.Equal(U16(0x0102), val)

	le := mustCompile(t, newTestSignal("le", 0, 16, dbc.LittleEndian, dbc.Unsigned), opts)
	val, ok = le.Decode([]byte{0x02, 0x01, 0, 0, 0, 0, 0, 0})
	assert.True(ok)
	assert.Equal(U16(0x0102), val)

	beNibble := mustCompile(t, newTestSignal("be_nibble", 3, 12, dbc.BigEndian, dbc.Unsigned), opts)
	val, ok = beNibble.Decode([]byte{0xA5, 0x3C, 0, 0, 0, 0, 0, 0})
	assert.True(ok)
	assert.Equal(U16(0x53C), val)

	leNibble := mustCompile(t, newTestSignal("le_nibble", 4, 12, dbc.LittleEndian, dbc.Unsigned), opts)
	val, ok = leNibble.Decode([]byte{0xA5, 0x3C, 0, 0, 0, 0, 0, 0})
	assert.True(ok)
	assert.Equal(U16(0x3CA), val)

	flag := mustCompile(t, newTestSignal("flag", 3, 1, dbc.LittleEndian, dbc.Unsigned), opts)
	val, ok = flag.Decode([]byte{0x08, 0, 0, 0, 0, 0, 0, 0})
	assert.True(ok)
	assert.Equal(Bool(true), val)
	assert.Equal(KindBool, flag.Kind())

	scaledDesc := newTestSignal("scaled", 0, 8, dbc.LittleEndian, dbc.Unsigned)
	scaledDesc.Factor = 0.5
	scaledDesc.Offset = -10
	scaled := mustCompile(t, scaledDesc, opts)
	val, ok = scaled.Decode([]byte{40, 0, 0, 0, 0, 0, 0, 0})
	assert.True(ok)
	assert.Equal(F64(10), val)

	full := mustCompile(t, newTestSignal("full", 0, 64, dbc.LittleEndian, dbc.Unsigned), opts)
	val, ok = full.Decode([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	assert.True(ok)
	assert.Equal(U64(math.MaxUint64), val)

	// short frame
	_, ok = le.Decode([]byte{0x02})
	assert.False(ok)
}

func Test_Decode_singleBit(t *testing.T) {
	assert := assert.New(t)

	signedDesc := newTestSignal("signed_flag", 2, 1, dbc.LittleEndian, dbc.Signed)

	scaledDesc := newTestSignal("scaled_flag", 2, 1, dbc.LittleEndian, dbc.Unsigned)
	scaledDesc.Factor = 0.5
	scaledDesc.Offset = 3

	beDesc := newTestSignal("be_flag", 2, 1, dbc.BigEndian, dbc.Signed)
	beDesc.Factor = -2

	for _, desc := range []*dbc.Signal{signedDesc, scaledDesc, beDesc} {
		sig := mustCompile(t, desc, DefaultOptions())
		assert.Equal(ClassBool, sig.Representation().Class, desc.Name)
		assert.Equal(KindBool, sig.Kind(), desc.Name)

		val, ok := sig.Decode([]byte{0x04, 0, 0, 0, 0, 0, 0, 0})
		assert.True(ok)
		assert.Equal(Bool(true), val, desc.Name)

		val, ok = sig.Decode([]byte{0xFB, 0, 0, 0, 0, 0, 0, 0})
		assert.True(ok)
		assert.Equal(Bool(false), val, desc.Name)

		data := []byte{0xF0, 0, 0, 0, 0, 0, 0, 0}
		assert.NoError(sig.Encode(Bool(true), data))
		assert.Equal(byte(0xF4), data[0], desc.Name)

		assert.ErrorIs(sig.Encode(F64(1), data), ErrTypeMismatch)
	}
}

func Test_Decode_signed(t *testing.T) {
	assert := assert.New(t)

	desc := newTestSignal("signed", 0, 12, dbc.LittleEndian, dbc.Signed)
	data := []byte{0xFF, 0x0F, 0, 0, 0, 0, 0, 0}

	extend := mustCompile(t, desc, DefaultOptions())
	val, ok := extend.Decode(data)
	assert.True(ok)
	assert.Equal(I16(-1), val)

	legacy := DefaultOptions()
	legacy.SignPolicy = SignReinterpret
	reinterpret := mustCompile(t, desc, legacy)
	val, ok = reinterpret.Decode(data)
	assert.True(ok)
	assert.Equal(I16(4095), val)

	// full width fields are negative with both policies
	byteDesc := newTestSignal("byte", 0, 8, dbc.LittleEndian, dbc.Signed)
	val, _ = mustCompile(t, byteDesc, legacy).Decode([]byte{0x80, 0, 0, 0, 0, 0, 0, 0})
	assert.Equal(I8(-128), val)

	wideDesc := newTestSignal("wide", 0, 40, dbc.LittleEndian, dbc.Signed)
	wideData := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0}

	val, _ = mustCompile(t, wideDesc, DefaultOptions()).Decode(wideData)
	assert.Equal(I64(-1), val)

	val, _ = mustCompile(t, wideDesc, legacy).Decode(wideData)
	assert.Equal(U64(0xFFFFFFFFFF), val)

	scaledDesc := newTestSignal("scaled_signed", 0, 8, dbc.LittleEndian, dbc.Signed)
	scaledDesc.Factor = 0.1
	val, _ = mustCompile(t, scaledDesc, DefaultOptions()).Decode([]byte{0xF6, 0, 0, 0, 0, 0, 0, 0})
	f, err := val.Float64()
	assert.NoError(err)
	assert.InDelta(-1.0, f, 1e-9)
}

func Test_Encode(t *testing.T) {
	assert := assert.New(t)

	opts := DefaultOptions()

	be := mustCompile(t, newTestSignal("be", 7, 16, dbc.BigEndian, dbc.Unsigned), opts)
	data := make([]byte, 8)
	assert.NoError(be.Encode(U16(0x0102), data))
	assert.Equal([]byte{0x01, 0x02, 0, 0, 0, 0, 0, 0}, data)

	le := mustCompile(t, newTestSignal("le", 0, 16, dbc.LittleEndian, dbc.Unsigned), opts)
	data = make([]byte, 8)
	assert.NoError(le.Encode(U16(0x0102), data))
	assert.Equal([]byte{0x02, 0x01, 0, 0, 0, 0, 0, 0}, data)

	// wrong kind
	assert.ErrorIs(le.Encode(U32(1), data), ErrTypeMismatch)

	// does not fit in 12 bits
	nibble := mustCompile(t, newTestSignal("nibble", 4, 12, dbc.LittleEndian, dbc.Unsigned), opts)
	assert.ErrorIs(nibble.Encode(U16(0x1000), data), ErrOutOfRange)

	signed := mustCompile(t, newTestSignal("signed", 0, 12, dbc.LittleEndian, dbc.Signed), opts)
	assert.NoError(signed.Encode(I16(-2048), data))
	assert.ErrorIs(signed.Encode(I16(-2049), data), ErrOutOfRange)
	assert.ErrorIs(signed.Encode(I16(2048), data), ErrOutOfRange)

	// short buffer
	assert.ErrorIs(le.Encode(U16(1), []byte{0}), ErrShortBuffer)
}

func Test_Encode_range(t *testing.T) {
	assert := assert.New(t)

	desc := newTestSignal("pct", 0, 8, dbc.LittleEndian, dbc.Unsigned)
	desc.Factor = 0.5
	desc.Min = 0
	desc.Max = 100

	sig := mustCompile(t, desc, DefaultOptions())

	data := []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	orig := bytes.Clone(data)

	assert.ErrorIs(sig.Encode(F64(150), data), ErrOutOfRange)
	assert.Equal(orig, data)

	assert.ErrorIs(sig.Encode(F64(math.NaN()), data), ErrOutOfRange)
	assert.Equal(orig, data)

	assert.NoError(sig.Encode(F64(50), data))
	assert.Equal(byte(100), data[0])

	// without range checking the raw value saturates
	noCheck := DefaultOptions()
	noCheck.RangeCheck = false
	sig = mustCompile(t, desc, noCheck)
	assert.NoError(sig.Encode(F64(1000), data))
	assert.Equal(byte(0xFF), data[0])
	assert.NoError(sig.Encode(F64(-5), data))
	assert.Equal(byte(0), data[0])

	// [0, 0] leaves the range unspecified
	desc.Max = 0
	sig = mustCompile(t, desc, DefaultOptions())
	_, _, declared := sig.Range()
	assert.False(declared)
	assert.NoError(sig.Encode(F64(120), data))
	assert.Equal(byte(240), data[0])
}

func Test_Encode_preservesOtherBits(t *testing.T) {
	assert := assert.New(t)

	cases := []*dbc.Signal{
		newTestSignal("le_cross", 5, 13, dbc.LittleEndian, dbc.Unsigned),
		newTestSignal("be_cross", 12, 13, dbc.BigEndian, dbc.Unsigned),
		newTestSignal("le_tail", 60, 4, dbc.LittleEndian, dbc.Unsigned),
		newTestSignal("be_head", 7, 3, dbc.BigEndian, dbc.Unsigned),
	}

	for _, desc := range cases {
		sig := mustCompile(t, desc, DefaultOptions())
		layout := sig.Layout()

		data := bytes.Repeat([]byte{0xFF}, 8)
		assert.NoError(sig.Encode(sig.Zero(), data), desc.Name)

		for pos := range uint64(64) {
			var bit byte
			if layout.ByteOrder == dbc.BigEndian {
				bit = data[pos/8] >> (7 - pos%8) & 1
			} else {
				bit = data[pos/8] >> (pos % 8) & 1
			}

			inside := pos >= layout.Start && pos < layout.End
			if inside {
				assert.Equal(byte(0), bit, "%s bit %d", desc.Name, pos)
			} else {
				assert.Equal(byte(1), bit, "%s bit %d", desc.Name, pos)
			}
		}
	}
}

func Test_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	type testCase struct {
		desc  *dbc.Signal
		value Value
	}

	scaled := newTestSignal("scaled", 8, 16, dbc.LittleEndian, dbc.Signed)
	scaled.Factor = 0.01
	scaled.Offset = 5

	cases := []testCase{
		{newTestSignal("u8", 3, 8, dbc.LittleEndian, dbc.Unsigned), U8(0xA7)},
		{newTestSignal("u16_be", 23, 16, dbc.BigEndian, dbc.Unsigned), U16(0xBEEF)},
		{newTestSignal("u12_be", 9, 12, dbc.BigEndian, dbc.Unsigned), U16(0xABC)},
		{newTestSignal("i20", 10, 20, dbc.LittleEndian, dbc.Signed), I32(-345678)},
		{newTestSignal("i20_be", 20, 20, dbc.BigEndian, dbc.Signed), I32(-1)},
		{newTestSignal("u64", 0, 64, dbc.LittleEndian, dbc.Unsigned), U64(0x0123456789ABCDEF)},
		{newTestSignal("i64_be", 7, 64, dbc.BigEndian, dbc.Signed), I64(math.MinInt64)},
		{newTestSignal("bool_be", 55, 1, dbc.BigEndian, dbc.Unsigned), Bool(true)},
		{scaled, F64(-100.25)},
	}

	for _, tc := range cases {
		sig := mustCompile(t, tc.desc, DefaultOptions())

		data := make([]byte, 8)
		assert.NoError(sig.Encode(tc.value, data), tc.desc.Name)

		val, ok := sig.Decode(data)
		assert.True(ok, tc.desc.Name)

		if tc.value.Kind() == KindF64 {
			want, _ := tc.value.Float64()
			got, _ := val.Float64()
			assert.InDelta(want, got, 1e-9, tc.desc.Name)
			continue
		}
		assert.Equal(tc.value, val, tc.desc.Name)
	}
}

func Test_Compile_layoutError(t *testing.T) {
	assert := assert.New(t)

	cases := []*dbc.Signal{
		newTestSignal("past_end", 60, 8, dbc.LittleEndian, dbc.Unsigned),
		newTestSignal("be_past_end", 63, 16, dbc.BigEndian, dbc.Unsigned),
		newTestSignal("start_outside", 65, 1, dbc.LittleEndian, dbc.Unsigned),
		newTestSignal("empty", 0, 0, dbc.LittleEndian, dbc.Unsigned),
		newTestSignal("too_wide", 0, 65, dbc.LittleEndian, dbc.Unsigned),
		newTestSignal("overflow", math.MaxUint64, 2, dbc.LittleEndian, dbc.Unsigned),
	}

	for _, desc := range cases {
		_, err := Compile(desc, 8, DefaultOptions())
		assert.ErrorIs(err, ErrLayout, desc.Name)

		var layoutErr *LayoutError
		assert.ErrorAs(err, &layoutErr, desc.Name)
		assert.Equal(desc.Name, layoutErr.Signal)
	}

	// last bit of the message
	layout, err := Resolve(newTestSignal("last", 0, 1, dbc.BigEndian, dbc.Unsigned), 1)
	assert.NoError(err)
	assert.Equal(uint64(7), layout.Start)
	assert.Equal(uint64(8), layout.End)
	assert.Equal(uint64(1), layout.Bytes())
}

func Test_Select(t *testing.T) {
	assert := assert.New(t)

	kinds := map[uint64]Kind{1: KindBool, 2: KindU8, 8: KindU8, 9: KindU16, 16: KindU16, 17: KindU32, 32: KindU32, 33: KindU64, 64: KindU64}
	for size, kind := range kinds {
		rep := Select(newTestSignal("unsigned", 0, size, dbc.LittleEndian, dbc.Unsigned), SignExtend)
		assert.Equal(kind, rep.Kind(), "size %d", size)
	}

	signedKinds := map[uint64]Kind{2: KindI8, 8: KindI8, 12: KindI16, 32: KindI32, 33: KindI64, 64: KindI64}
	for size, kind := range signedKinds {
		rep := Select(newTestSignal("signed", 0, size, dbc.LittleEndian, dbc.Signed), SignExtend)
		assert.Equal(kind, rep.Kind(), "size %d", size)
	}

	rep := Select(newTestSignal("legacy", 0, 48, dbc.LittleEndian, dbc.Signed), SignReinterpret)
	assert.True(rep.SignedAsUnsigned)
	assert.Equal(KindU64, rep.Kind())

	desc := newTestSignal("almost_one", 0, 8, dbc.LittleEndian, dbc.Unsigned)
	desc.Factor = 1 + 1e-13
	assert.Equal(ClassInteger, Select(desc, SignExtend).Class)

	desc.Offset = 1e-6
	assert.Equal(ClassScaled, Select(desc, SignExtend).Class)
}

// Benchmark_Decode measures a big endian 16 bit decode.
func Benchmark_Decode(b *testing.B) {
	b.ReportAllocs()

	sig, err := Compile(newTestSignal("be", 7, 16, dbc.BigEndian, dbc.Unsigned), 8, DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	b.ResetTimer()
	for b.Loop() {
		if _, ok := sig.Decode(data); !ok {
			b.Fatal("short frame")
		}
	}
}
