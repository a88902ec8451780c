package command

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/cpu"

	"github.com/roach88/fnmodels/internal/checksum"
)

func TestEncodeDecode_PerOp(t *testing.T) {
	tests := []Command{
		{Op: OpStrcpy, First: 0x1000, Second: 0x2000, CharSize: 1, Defer: true},
		{Op: OpStrncpy, First: 0x1000, Second: 0x2000, Count: 3, CharSize: 4, Defer: true},
		{Op: OpStrlen, First: 0x1000, CharSize: 1, Result: 3},
		{Op: OpStrcmp, First: 0x1000, Second: 0x2000, CharSize: 1, Result: uint64(0xffffffffffffffd0)},
		{Op: OpStrncmp, First: 0x1000, Second: 0x2000, Count: 4, CharSize: 4, Result: 1, Defer: true},
		{Op: OpMemcpy, First: 0x1000, Second: 0x2000, Count: 8},
		{Op: OpMemcmp, First: 0x1000, Second: 0x2000, Count: 8, Result: uint64(0xffffffffffffffff)},
		{Op: OpStrcat, First: 0x1000, Second: 0x2000, CharSize: 4, Defer: true},
		{Op: OpStrncat, First: 0x1000, Second: 0x2000, Count: 2, CharSize: 1},
		{Op: OpCrc, First: 0x3000, Second: 0x4000, Count: 4, CRC: checksum.CRC32, Finalize: true, Result: 0xd87f7e0c, Defer: true},
	}
	for _, want := range tests {
		t.Run(want.Op.String(), func(t *testing.T) {
			msg := want.Encode()
			require.Len(t, msg, Size)

			got, err := Decode(msg)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEncode_FixedOffsets(t *testing.T) {
	if cpu.IsBigEndian {
		t.Skip("offsets are checked in little-endian")
	}
	c := Command{Op: OpStrncmp, First: 0x1111, Second: 0x2222, Count: 7, CharSize: 4, Result: uint64(0xffffffffffffffff), Defer: true}
	msg := c.Encode()

	le := binary.LittleEndian
	assert.Equal(t, uint32(OpStrncmp), le.Uint32(msg[0:]))
	assert.Equal(t, uint64(0x1111), le.Uint64(msg[8:]))
	assert.Equal(t, uint64(0x2222), le.Uint64(msg[16:]))
	assert.Equal(t, uint64(7), le.Uint64(msg[24:]))
	assert.Equal(t, uint32(4), le.Uint32(msg[32:]))
	assert.Equal(t, uint32(0xffffffff), le.Uint32(msg[36:]))
	assert.Equal(t, byte(1), msg[56])
	assert.Equal(t, make([]byte, 7), msg[57:], "trailing padding is zero")
}

func TestEncodeInto_ClearsStaleBytes(t *testing.T) {
	buf := bytes.Repeat([]byte{0xee}, Size)
	require.NoError(t, Command{Op: OpMemcpy, Count: 1}.EncodeInto(buf))

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Command{Op: OpMemcpy, Count: 1}, got)
	assert.ErrorIs(t, Command{}.EncodeInto(make([]byte, Size-1)), ErrShortMessage)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortMessage)

	msg := Command{Op: Op(42)}.Encode()
	_, err = Decode(msg)
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestReadVerdict(t *testing.T) {
	sent := Command{Op: OpStrcmp, First: 1, Second: 2, CharSize: 1, Defer: true}
	msg := sent.Encode()

	// The engine handled it and wrote a negative result.
	reply, err := Decode(msg)
	require.NoError(t, err)
	reply.Defer = false
	reply.Result = uint64(0xffffffffffffff9c)
	require.NoError(t, reply.EncodeInto(msg))

	got := sent
	ReadVerdict(msg, &got)
	assert.False(t, got.Defer)
	assert.Equal(t, int32(-100), got.Int32())
	assert.Equal(t, uint64(1), got.First, "request fields are not re-read")

	untouched := sent
	ReadVerdict(msg[:8], &untouched)
	assert.Equal(t, sent, untouched)
}

func TestReadVerdict_NoResultField(t *testing.T) {
	c := Command{Op: OpStrcpy, First: 1, Second: 2, CharSize: 1, Defer: true}
	msg := c.Encode()
	msg[deferOffset] = 0

	ReadVerdict(msg, &c)
	assert.False(t, c.Defer)
	assert.Zero(t, c.Result)
}

func TestLayouts_FitTheEnvelope(t *testing.T) {
	for _, op := range Ops() {
		fields, ok := Layout(op)
		require.True(t, ok, op.String())
		for _, f := range fields {
			assert.LessOrEqual(t, f.Offset+f.Width, unionSize, "%s.%s", op, f.Name)
		}
	}
	_, ok := Layout(Op(99))
	assert.False(t, ok)

	off, width, ok := ResultOffset(OpCrc)
	require.True(t, ok)
	assert.Equal(t, 40, off)
	assert.Equal(t, 8, width)
	_, _, ok = ResultOffset(OpMemcpy)
	assert.False(t, ok)
}

func TestOp_Names(t *testing.T) {
	for _, op := range Ops() {
		parsed, err := ParseOp(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
	assert.Equal(t, "op(77)", Op(77).String())
	_, err := ParseOp("strtok")
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestCommand_String(t *testing.T) {
	c := Command{Op: OpStrncmp, First: 0x10, Second: 0x20, Count: 4, CharSize: 1, Result: uint64(0xffffffffffffffff), Defer: true}
	assert.Equal(t, "strncmp str1=0x10 str2=0x20 n=4 char_size=1 ret=-1 defer=1", c.String())

	crc := Command{Op: OpCrc, First: 0x10, Second: 0x20, Count: 4, CRC: checksum.CRC16}
	assert.Equal(t, "crc initial_value_ptr=0x10 buffer=0x20 size=4 type=crc16 xor_result=0 ret=0 defer=0", crc.String())
}

func TestWriteLayout_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, op := range Ops() {
		var buf bytes.Buffer
		require.NoError(t, WriteLayout(&buf, op))
		g.Assert(t, "layout_"+op.String(), buf.Bytes())
	}

	assert.ErrorIs(t, WriteLayout(&bytes.Buffer{}, Op(50)), ErrUnknownOp)
}
