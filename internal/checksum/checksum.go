// Package checksum holds the reference checksum algorithms the crc32 and
// crc16 models must reproduce bit for bit.
//
// Both sums are pure functions of the initial value and the input bytes.
package checksum

import (
	"fmt"
	"hash/crc32"
)

// Type selects an algorithm. The numeric values match the command wire tags.
type Type uint32

const (
	// CRC16 is the 16-bit algorithm (libz-style crc16).
	CRC16 Type = 0
	// CRC32 is the 32-bit zlib crc32.
	CRC32 Type = 1
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case CRC16:
		return "crc16"
	case CRC32:
		return "crc32"
	default:
		return fmt.Sprintf("crc(%d)", uint32(t))
	}
}

// ParseType maps "crc16"/"crc32" to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "crc16":
		return CRC16, nil
	case "crc32":
		return CRC32, nil
	}
	return 0, fmt.Errorf("unknown checksum algorithm %q", s)
}

// Width is the accumulator width in bytes.
func (t Type) Width() int {
	if t == CRC16 {
		return 2
	}
	return 4
}

// poly16 is 0x8005 reflected.
const poly16 = 0xA001

var table16 [256]uint16

func init() {
	for i := range 256 {
		c := uint16(i)
		for range 8 {
			if c&1 != 0 {
				c = c>>1 ^ poly16
			} else {
				c >>= 1
			}
		}
		table16[i] = c
	}
}

// Raw32 runs the reflected CRC-32 recurrence without any complement.
func Raw32(crc uint32, p []byte) uint32 {
	return ^crc32.Update(^crc, crc32.IEEETable, p)
}

// Raw16 runs the reflected CRC-16 recurrence without any preset.
func Raw16(crc uint16, p []byte) uint16 {
	for _, b := range p {
		crc = table16[byte(crc)^b] ^ crc>>8
	}
	return crc
}

// Sum32 matches zlib's crc32(crc, buf, len): the running value is
// complemented before and after the table recurrence, so results chain.
func Sum32(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, crc32.IEEETable, p)
}

// Sum16 presets the register with the complement of crc and returns the
// register unmodified. From 0 this is CRC-16/MODBUS, so an empty input
// from 0 yields 0xffff.
func Sum16(crc uint16, p []byte) uint16 {
	return Raw16(^crc, p)
}

// Update dispatches on t. finalize applies the CRC32 complement pair; it is
// ignored for CRC16, whose preset is part of the algorithm.
func Update(t Type, crc uint64, p []byte, finalize bool) uint64 {
	switch t {
	case CRC16:
		return uint64(Sum16(uint16(crc), p))
	default:
		if finalize {
			return uint64(Sum32(uint32(crc), p))
		}
		return uint64(Raw32(uint32(crc), p))
	}
}
