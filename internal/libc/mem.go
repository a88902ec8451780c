package libc

import "github.com/roach88/fnmodels/internal/checksum"

// Memcpy copies n bytes. Overlap is tolerated.
func (l *Library) Memcpy(dest, src, n uint64) uint64 {
	if err := l.space.Move(dest, src, n); err != nil {
		crash("memcpy", err)
	}
	return dest
}

// Memcmp returns the difference of the first mismatching bytes.
func (l *Library) Memcmp(s1, s2, n uint64) int32 {
	for i := uint64(0); i < n; i++ {
		a, err := l.space.Byte(s1 + i)
		if err != nil {
			crash("memcmp", err)
		}
		b, err := l.space.Byte(s2 + i)
		if err != nil {
			crash("memcmp", err)
		}
		if a != b {
			return int32(a) - int32(b)
		}
	}
	return 0
}

// Crc32 is zlib's crc32. A null buffer yields 0 whatever crc is.
func (l *Library) Crc32(crc uint32, buf uint64, n uint32) uint32 {
	if buf == 0 {
		return 0
	}
	p, err := l.space.Read(buf, uint64(n))
	if err != nil {
		crash("crc32", err)
	}
	return checksum.Sum32(crc, p)
}

// Crc16 is the 16-bit companion of Crc32 with the same null-buffer rule.
func (l *Library) Crc16(crc uint16, buf uint64, n uint32) uint16 {
	if buf == 0 {
		return 0
	}
	p, err := l.space.Read(buf, uint64(n))
	if err != nil {
		crash("crc16", err)
	}
	return checksum.Sum16(crc, p)
}
