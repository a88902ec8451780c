package libc

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/fnmodels/internal/guest"
)

// Printf writes to stdout.
func (l *Library) Printf(format uint64, args VaList) int32 {
	return l.vfprintf("printf", Stdout, format, guest.Narrow, args)
}

// Fprintf writes to stream.
func (l *Library) Fprintf(stream, format uint64, args VaList) int32 {
	return l.vfprintf("fprintf", stream, format, guest.Narrow, args)
}

// Wprintf is Printf with a wide format string.
func (l *Library) Wprintf(format uint64, args VaList) int32 {
	return l.vfprintf("wprintf", Stdout, format, l.wide, args)
}

// Fwprintf is Fprintf with a wide format string.
func (l *Library) Fwprintf(stream, format uint64, args VaList) int32 {
	return l.vfprintf("fwprintf", stream, format, l.wide, args)
}

// Sprint renders format without writing it anywhere. It returns the
// rendered text and the character count the printf family would report.
func (l *Library) Sprint(format uint64, width int, args VaList) (string, int, error) {
	var (
		out   string
		count int
	)
	err := Catch(func() {
		f := &formatter{lib: l, routine: "format", width: width, args: args}
		f.run(format)
		out, count = string(f.out), f.count
	})
	return out, count, err
}

func (l *Library) vfprintf(routine string, stream, format uint64, width int, args VaList) int32 {
	if _, err := l.streams.writer(stream); err != nil {
		crash(routine, err)
	}
	f := &formatter{lib: l, routine: routine, width: width, args: args}
	f.run(format)
	if err := l.streams.write(stream, f.out); err != nil {
		return -1
	}
	return int32(f.count)
}

// formatter renders one printf call. width is the unit width of the
// format string; it also decides whether count is in bytes or wide chars.
type formatter struct {
	lib     *Library
	routine string
	width   int
	args    VaList
	next    int
	out     []byte
	count   int
}

// conversion is one parsed %-directive.
type conversion struct {
	flags     string
	width     int
	hasWidth  bool
	prec      int
	hasPrec   bool
	length    string
	verb      rune
	literally string
}

func (f *formatter) arg() uint64 {
	if f.next >= len(f.args) {
		return 0
	}
	v := f.args[f.next]
	f.next++
	return v
}

func (f *formatter) unit(addr uint64) rune {
	u, err := f.lib.space.Unit(addr, f.width)
	if err != nil {
		crash(f.routine, err)
	}
	return rune(u)
}

func (f *formatter) wideOut() bool {
	return f.width != guest.Narrow
}

func (f *formatter) literal(r rune) {
	if f.wideOut() {
		f.out = utf8.AppendRune(f.out, r)
	} else {
		f.out = append(f.out, byte(r))
	}
	f.count++
}

func (f *formatter) emit(s string) {
	f.out = append(f.out, s...)
	f.count += f.units(s)
}

func (f *formatter) units(s string) int {
	if f.wideOut() {
		return utf8.RuneCountInString(s)
	}
	return len(s)
}

func (f *formatter) run(format uint64) {
	step := uint64(f.width)
	addr := format
	for {
		r := f.unit(addr)
		if r == 0 {
			return
		}
		addr += step
		if r != '%' {
			f.literal(r)
			continue
		}
		var s conversion
		addr = f.parse(addr, &s)
		f.convert(&s)
	}
}

// parse reads flags, width, precision, length and the conversion letter
// starting just after a '%'. It returns the address after the directive.
func (f *formatter) parse(addr uint64, s *conversion) uint64 {
	step := uint64(f.width)
	var raw strings.Builder
	raw.WriteRune('%')
	next := func() rune {
		r := f.unit(addr)
		if r != 0 {
			addr += step
			raw.WriteRune(r)
		}
		return r
	}

	r := next()
	for strings.ContainsRune("-+ #0", r) && r != 0 {
		if !strings.ContainsRune(s.flags, r) {
			s.flags += string(r)
		}
		r = next()
	}
	if r == '*' {
		w := int32(f.arg())
		if w < 0 {
			s.flags += "-"
			w = -w
		}
		s.width, s.hasWidth = int(w), true
		r = next()
	} else {
		for r >= '0' && r <= '9' {
			s.width = s.width*10 + int(r-'0')
			s.hasWidth = true
			r = next()
		}
	}
	if r == '.' {
		s.hasPrec = true
		r = next()
		if r == '*' {
			p := int32(f.arg())
			if p < 0 {
				s.hasPrec = false
			} else {
				s.prec = int(p)
			}
			r = next()
		} else {
			for r >= '0' && r <= '9' {
				s.prec = s.prec*10 + int(r-'0')
				r = next()
			}
		}
	}
	for strings.ContainsRune("hlLqjzt", r) && r != 0 {
		s.length += string(r)
		r = next()
	}
	s.verb = r
	s.literally = raw.String()
	return addr
}

func (f *formatter) convert(s *conversion) {
	switch s.verb {
	case '%':
		f.literal('%')
	case 'd', 'i':
		f.emit(f.integer(s, 'd', true))
	case 'u':
		f.emit(f.integer(s, 'd', false))
	case 'x', 'X', 'o':
		f.emit(f.integer(s, s.verb, false))
	case 'c':
		f.emit(f.pad(s, f.char(s)))
	case 's':
		f.emit(f.pad(s, f.str(s)))
	case 'p':
		p := f.arg()
		out := "(nil)"
		if p != 0 {
			out = "0x" + strconv.FormatUint(p, 16)
		}
		f.emit(f.pad(s, out))
	default:
		// Unknown or truncated conversions are printed as written.
		f.emit(s.literally)
	}
}

func (f *formatter) integer(s *conversion, verb rune, signed bool) string {
	raw := f.arg()
	var v any
	switch s.length {
	case "hh":
		if signed {
			v = int8(raw)
		} else {
			v = uint8(raw)
		}
	case "h":
		if signed {
			v = int16(raw)
		} else {
			v = uint16(raw)
		}
	case "l", "ll", "q", "j", "z", "t":
		if signed {
			v = int64(raw)
		} else {
			v = raw
		}
	default:
		if signed {
			v = int32(raw)
		} else {
			v = uint32(raw)
		}
	}

	flags := s.flags
	if raw == 0 && (verb == 'x' || verb == 'X') {
		flags = strings.ReplaceAll(flags, "#", "")
	}
	var layout strings.Builder
	layout.WriteString("%" + flags)
	if s.hasWidth {
		layout.WriteString(strconv.Itoa(s.width))
	}
	if s.hasPrec {
		layout.WriteString("." + strconv.Itoa(s.prec))
	}
	layout.WriteRune(verb)
	return fmt.Sprintf(layout.String(), v)
}

func (f *formatter) char(s *conversion) string {
	v := f.arg()
	if s.length == "l" {
		return string(rune(uint32(v)))
	}
	if f.wideOut() {
		return string(rune(byte(v)))
	}
	return string([]byte{byte(v)})
}

// str reads the string argument: wide for %ls, narrow otherwise, and never
// past the precision.
func (f *formatter) str(s *conversion) string {
	p := f.arg()
	if p == 0 {
		if s.hasPrec && s.prec < 6 {
			return ""
		}
		return "(null)"
	}
	width := guest.Narrow
	if s.length == "l" {
		width = f.lib.wide
	}
	var n uint64
	for ; !s.hasPrec || n < uint64(s.prec); n++ {
		u, err := f.lib.space.Unit(p+n*uint64(width), width)
		if err != nil {
			crash(f.routine, err)
		}
		if u == 0 {
			break
		}
	}
	raw, err := f.lib.space.Units(p, n, width)
	if err != nil {
		crash(f.routine, err)
	}
	if width == guest.Narrow {
		return string(raw)
	}
	return string(guest.UnitsToRunes(raw, width))
}

func (f *formatter) pad(s *conversion, text string) string {
	n := f.units(text)
	if !s.hasWidth || n >= s.width {
		return text
	}
	fill := strings.Repeat(" ", s.width-n)
	if strings.ContainsRune(s.flags, '-') {
		return text + fill
	}
	return fill + text
}
