package libc

// text implements the str* and wcs* routines over units of one width.
type text struct {
	lib    *Library
	width  int
	prefix string
}

func (t text) name(suffix string) string {
	return t.prefix + suffix
}

func (t text) w() uint64 {
	return uint64(t.width)
}

func (t text) length(routine string, s uint64) uint64 {
	n, err := t.lib.space.Len(s, t.width)
	if err != nil {
		crash(routine, err)
	}
	return n
}

func (t text) unit(routine string, addr uint64) uint32 {
	u, err := t.lib.space.Unit(addr, t.width)
	if err != nil {
		crash(routine, err)
	}
	return u
}

func (t text) move(routine string, dst, src, units uint64) {
	if err := t.lib.space.Move(dst, src, units*t.w()); err != nil {
		crash(routine, err)
	}
}

func (t text) terminate(routine string, addr uint64) {
	if err := t.lib.space.PutUnit(addr, t.width, 0); err != nil {
		crash(routine, err)
	}
}

// diff orders two units the way glibc does: unsigned char difference for
// narrow strings, signed wchar_t comparison reduced to -1/1 for wide ones.
func (t text) diff(a, b uint32) int32 {
	if t.width == 1 {
		return int32(a) - int32(b)
	}
	if int32(a) < int32(b) {
		return -1
	}
	return 1
}

func (t text) cpy(dest, src uint64) uint64 {
	routine := t.name("cpy")
	n := t.length(routine, src)
	t.move(routine, dest, src, n+1)
	return dest
}

func (t text) ncpy(dest, src, n uint64) uint64 {
	routine := t.name("ncpy")
	var i uint64
	for ; i < n; i++ {
		if t.unit(routine, src+i*t.w()) == 0 {
			break
		}
	}
	t.move(routine, dest, src, i)
	if i < n {
		if err := t.lib.space.Fill(dest+i*t.w(), t.width, 0, n-i); err != nil {
			crash(routine, err)
		}
	}
	return dest
}

func (t text) len(s uint64) uint64 {
	return t.length(t.name("len"), s)
}

func (t text) cmp(s1, s2 uint64) int32 {
	routine := t.name("cmp")
	for i := uint64(0); ; i++ {
		a := t.unit(routine, s1+i*t.w())
		b := t.unit(routine, s2+i*t.w())
		if a != b {
			return t.diff(a, b)
		}
		if a == 0 {
			return 0
		}
	}
}

func (t text) ncmp(s1, s2, n uint64) int32 {
	routine := t.name("ncmp")
	for i := uint64(0); i < n; i++ {
		a := t.unit(routine, s1+i*t.w())
		b := t.unit(routine, s2+i*t.w())
		if a != b {
			return t.diff(a, b)
		}
		if a == 0 {
			return 0
		}
	}
	return 0
}

func (t text) cat(dest, src uint64) uint64 {
	routine := t.name("cat")
	end := dest + t.length(routine, dest)*t.w()
	n := t.length(routine, src)
	t.move(routine, end, src, n+1)
	return dest
}

// ncat appends at most n units of src and always writes a terminator.
func (t text) ncat(dest, src, n uint64) uint64 {
	routine := t.name("ncat")
	end := dest + t.length(routine, dest)*t.w()
	var i uint64
	for ; i < n; i++ {
		if t.unit(routine, src+i*t.w()) == 0 {
			break
		}
	}
	t.move(routine, end, src, i)
	t.terminate(routine, end+i*t.w())
	return dest
}

// Strcpy copies the NUL-terminated src to dest.
func (l *Library) Strcpy(dest, src uint64) uint64 { return l.narrow().cpy(dest, src) }

// Strncpy copies at most n bytes and pads with NULs up to n.
func (l *Library) Strncpy(dest, src, n uint64) uint64 { return l.narrow().ncpy(dest, src, n) }

// Strlen counts bytes before the terminator.
func (l *Library) Strlen(s uint64) uint64 { return l.narrow().len(s) }

// Strcmp compares as unsigned char.
func (l *Library) Strcmp(s1, s2 uint64) int32 { return l.narrow().cmp(s1, s2) }

// Strncmp compares at most n bytes.
func (l *Library) Strncmp(s1, s2, n uint64) int32 { return l.narrow().ncmp(s1, s2, n) }

// Strcat appends src to dest.
func (l *Library) Strcat(dest, src uint64) uint64 { return l.narrow().cat(dest, src) }

// Strncat appends at most n bytes of src and terminates dest.
func (l *Library) Strncat(dest, src, n uint64) uint64 { return l.narrow().ncat(dest, src, n) }

// Wcslen counts wide units before the terminator.
func (l *Library) Wcslen(s uint64) uint64 { return l.wideText().len(s) }

// Wcscmp compares as signed wchar_t.
func (l *Library) Wcscmp(s1, s2 uint64) int32 { return l.wideText().cmp(s1, s2) }

func (l *Library) narrow() text {
	return text{lib: l, width: 1, prefix: "str"}
}

func (l *Library) wideText() text {
	return text{lib: l, width: l.wide, prefix: "wcs"}
}
