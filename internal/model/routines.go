package model

import "github.com/roach88/fnmodels/internal/guest"

// Strcpy models strcpy(dest, src) and returns dest.
func (d *Dispatcher) Strcpy(dest, src guest.Arg) uint64 {
	return d.dispatch(d.strcpy, &call{args: []guest.Arg{dest, src}})
}

// Strncpy models strncpy(dest, src, n) and returns dest.
func (d *Dispatcher) Strncpy(dest, src, n guest.Arg) uint64 {
	return d.dispatch(d.strncpy, &call{args: []guest.Arg{dest, src, n}})
}

// Strlen models strlen(s).
func (d *Dispatcher) Strlen(s guest.Arg) uint64 {
	return d.dispatch(d.strlen, &call{args: []guest.Arg{s}})
}

// Strcmp models strcmp(s1, s2).
func (d *Dispatcher) Strcmp(s1, s2 guest.Arg) int32 {
	return int32(d.dispatch(d.strcmp, &call{args: []guest.Arg{s1, s2}}))
}

// Strncmp models strncmp(s1, s2, n).
func (d *Dispatcher) Strncmp(s1, s2, n guest.Arg) int32 {
	return int32(d.dispatch(d.strncmp, &call{args: []guest.Arg{s1, s2, n}}))
}

// Strcat models strcat(dest, src) and returns dest.
func (d *Dispatcher) Strcat(dest, src guest.Arg) uint64 {
	return d.dispatch(d.strcat, &call{args: []guest.Arg{dest, src}})
}

// Strncat models strncat(dest, src, n) and returns dest.
func (d *Dispatcher) Strncat(dest, src, n guest.Arg) uint64 {
	return d.dispatch(d.strncat, &call{args: []guest.Arg{dest, src, n}})
}

// Wcscpy is Strcpy over wide characters.
func (d *Dispatcher) Wcscpy(dest, src guest.Arg) uint64 {
	return d.dispatch(d.wcscpy, &call{args: []guest.Arg{dest, src}})
}

// Wcsncpy is Strncpy over wide characters.
func (d *Dispatcher) Wcsncpy(dest, src, n guest.Arg) uint64 {
	return d.dispatch(d.wcsncpy, &call{args: []guest.Arg{dest, src, n}})
}

// Wcslen is Strlen over wide characters.
func (d *Dispatcher) Wcslen(s guest.Arg) uint64 {
	return d.dispatch(d.wcslen, &call{args: []guest.Arg{s}})
}

// Wcscmp is Strcmp over wide characters.
func (d *Dispatcher) Wcscmp(s1, s2 guest.Arg) int32 {
	return int32(d.dispatch(d.wcscmp, &call{args: []guest.Arg{s1, s2}}))
}

// Wcsncmp is Strncmp over wide characters.
func (d *Dispatcher) Wcsncmp(s1, s2, n guest.Arg) int32 {
	return int32(d.dispatch(d.wcsncmp, &call{args: []guest.Arg{s1, s2, n}}))
}

// Wcscat is Strcat over wide characters.
func (d *Dispatcher) Wcscat(dest, src guest.Arg) uint64 {
	return d.dispatch(d.wcscat, &call{args: []guest.Arg{dest, src}})
}

// Wcsncat is Strncat over wide characters.
func (d *Dispatcher) Wcsncat(dest, src, n guest.Arg) uint64 {
	return d.dispatch(d.wcsncat, &call{args: []guest.Arg{dest, src, n}})
}

// Memcpy models memcpy(dest, src, n) and returns dest.
func (d *Dispatcher) Memcpy(dest, src, n guest.Arg) uint64 {
	return d.dispatch(d.memcpy, &call{args: []guest.Arg{dest, src, n}})
}

// Memcmp models memcmp(s1, s2, n).
func (d *Dispatcher) Memcmp(s1, s2, n guest.Arg) int32 {
	return int32(d.dispatch(d.memcmp, &call{args: []guest.Arg{s1, s2, n}}))
}

// Crc32 models zlib's crc32(crc, buf, len). The running value is passed to
// the engine by reference, so crc should carry the slot it was spilled to;
// a slotless crc is spilled on the caller's behalf.
func (d *Dispatcher) Crc32(crc, buf, n guest.Arg) uint32 {
	return uint32(d.dispatch(d.crc32, &call{args: []guest.Arg{crc, buf, n}}))
}

// Crc16 models crc16(crc, buf, len).
func (d *Dispatcher) Crc16(crc, buf, n guest.Arg) uint16 {
	return uint16(d.dispatch(d.crc16, &call{args: []guest.Arg{crc, buf, n}}))
}
