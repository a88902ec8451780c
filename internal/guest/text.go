package guest

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// MaxScan bounds string scans so a missing terminator reports a fault
// instead of walking the whole address space.
const MaxScan = 1 << 20

// Narrow is the width of a plain char.
const Narrow = 1

// WideLinux is the width of wchar_t on Linux.
const WideLinux = 4

// wideEncoding returns the x/text encoding matching a wide-char width.
func wideEncoding(width int) (encoding.Encoding, error) {
	switch width {
	case 2:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case 4:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), nil
	default:
		return nil, fmt.Errorf("guest: unsupported wide char width %d", width)
	}
}

// EncodeUnits converts s to guest character units of the given width,
// without a terminator. Width 1 yields the raw bytes of s.
func EncodeUnits(s string, width int) ([]byte, error) {
	if width == Narrow {
		return []byte(s), nil
	}
	enc, err := wideEncoding(width)
	if err != nil {
		return nil, err
	}
	return enc.NewEncoder().Bytes([]byte(s))
}

// DecodeUnits converts raw guest units back to a Go string.
func DecodeUnits(raw []byte, width int) (string, error) {
	if width == Narrow {
		return string(raw), nil
	}
	enc, err := wideEncoding(width)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("guest: decode wide string: %w", err)
	}
	return string(out), nil
}

// WriteString stores s followed by a NUL unit.
func (s *Space) WriteString(addr uint64, str string, width int) error {
	raw, err := EncodeUnits(str, width)
	if err != nil {
		return err
	}
	raw = append(raw, make([]byte, width)...)
	return s.Write(addr, raw)
}

// AllocString allocates room for str (plus terminator) and writes it.
func (s *Space) AllocString(str string, width int) (uint64, error) {
	raw, err := EncodeUnits(str, width)
	if err != nil {
		return 0, err
	}
	addr := s.Alloc(uint64(len(raw) + width))
	if err := s.WriteString(addr, str, width); err != nil {
		return 0, err
	}
	return addr, nil
}

// Len counts units before the first NUL unit, like strlen/wcslen.
func (s *Space) Len(addr uint64, width int) (uint64, error) {
	for i := uint64(0); i < MaxScan; i++ {
		u, err := s.Unit(addr+i*uint64(width), width)
		if err != nil {
			return 0, err
		}
		if u == 0 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("guest: no terminator within %d units at %#x", MaxScan, addr)
}

// Units reads n units as raw little-endian bytes.
func (s *Space) Units(addr, n uint64, width int) ([]byte, error) {
	return s.Read(addr, n*uint64(width))
}

// String reads a NUL-terminated string of the given width.
func (s *Space) String(addr uint64, width int) (string, error) {
	n, err := s.Len(addr, width)
	if err != nil {
		return "", err
	}
	raw, err := s.Units(addr, n, width)
	if err != nil {
		return "", err
	}
	return DecodeUnits(raw, width)
}

// UnitsToRunes splits raw little-endian units into code points without
// validation, which is what a diagnostic dump wants for binary data.
func UnitsToRunes(raw []byte, width int) []rune {
	runes := make([]rune, 0, len(raw)/width)
	for i := 0; i+width <= len(raw); i += width {
		switch width {
		case 1:
			runes = append(runes, rune(raw[i]))
		case 2:
			runes = append(runes, rune(binary.LittleEndian.Uint16(raw[i:])))
		default:
			r := rune(binary.LittleEndian.Uint32(raw[i:]))
			if !utf8.ValidRune(r) {
				r = utf8.RuneError
			}
			runes = append(runes, r)
		}
	}
	return runes
}
