package checksum

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum32_GroundTruth(t *testing.T) {
	assert.Equal(t, uint32(0xd87f7e0c), Sum32(0, []byte("test")))
	assert.Equal(t, uint32(0), Sum32(0, nil))
	assert.Equal(t, uint32(0x12345678), Sum32(0x12345678, nil), "empty input returns the initial value")
}

func TestSum32_MatchesZlib(t *testing.T) {
	inputs := [][]byte{
		[]byte("a"),
		[]byte("The quick brown fox jumps over the lazy dog"),
		{0x00, 0xff, 0x10, 0x80},
	}
	for _, in := range inputs {
		assert.Equal(t, crc32.ChecksumIEEE(in), Sum32(0, in))
		assert.Equal(t, crc32.Update(0xabcdef01, crc32.IEEETable, in), Sum32(0xabcdef01, in))
	}
}

func TestSum32_Chains(t *testing.T) {
	whole := Sum32(0, []byte("hello world"))
	parts := Sum32(Sum32(0, []byte("hello ")), []byte("world"))
	assert.Equal(t, whole, parts)
}

func TestSum16_GroundTruth(t *testing.T) {
	assert.Equal(t, uint16(0xdc2e), Sum16(0, []byte("test")))
	// CRC-16/MODBUS check value.
	assert.Equal(t, uint16(0x4b37), Sum16(0, []byte("123456789")))
}

func TestSum16_EmptyInputYieldsPreset(t *testing.T) {
	// The register starts at ^crc and no bytes run through it.
	assert.Equal(t, uint16(0xffff), Sum16(0, nil))
	assert.Equal(t, uint16(0xffff), Sum16(0, []byte{}))
	assert.Equal(t, uint16(0x1234), Sum16(^uint16(0x1234), nil))
}

func TestRaw32_IsUncomplemented(t *testing.T) {
	assert.Equal(t, uint32(0), Raw32(0, nil))
	assert.Equal(t, ^Sum32(0, []byte("test")), Raw32(^uint32(0), []byte("test")))
	assert.Equal(t, Sum32(0, []byte("test")), ^Raw32(Raw32(^uint32(0), []byte("te")), []byte("st")))
}

func TestUpdate(t *testing.T) {
	assert.Equal(t, uint64(0xd87f7e0c), Update(CRC32, 0, []byte("test"), true))
	assert.Equal(t, uint64(Raw32(0, []byte("test"))), Update(CRC32, 0, []byte("test"), false))
	assert.Equal(t, uint64(0xdc2e), Update(CRC16, 0, []byte("test"), false))
	assert.Equal(t, uint64(0xdc2e), Update(CRC16, 0, []byte("test"), true))
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("crc16")
	require.NoError(t, err)
	assert.Equal(t, CRC16, typ)
	assert.Equal(t, 2, typ.Width())

	typ, err = ParseType("crc32")
	require.NoError(t, err)
	assert.Equal(t, "crc32", typ.String())
	assert.Equal(t, 4, typ.Width())

	_, err = ParseType("adler")
	assert.Error(t, err)
}
