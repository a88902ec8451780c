// Package libc is the reference C library the dispatcher falls back to.
//
// Every routine operates on a guest.Space with the semantics of glibc and
// zlib on x86_64 Linux. A routine that touches unmapped memory panics with
// a *Crash, the in-process equivalent of the segmentation fault the real
// library would raise; callers that expect such a fault recover it with
// Catch.
//
// Routines exported by a Library, by family:
//
//	strings       strcpy strncpy strlen strcmp strncmp strcat strncat
//	wide strings  wcscpy wcsncpy wcslen wcscmp wcsncmp wcscat wcsncat
//	memory        memcpy memcmp
//	checksums     crc32 crc16
//	output        printf fprintf wprintf fwprintf
//
// The formatter understands %d %i %u %x %X %o %c %s %p and %% with the
// usual flags, field width, precision (both may be '*') and the hh, h, l,
// ll, j, z and t length modifiers. %ls and %lc take wide arguments.
package libc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/fnmodels/internal/guest"
)

// Function shapes of the modeled routines. Pointers are guest addresses.
type (
	CopyFunc           func(dest, src uint64) uint64
	BoundedCopyFunc    func(dest, src, n uint64) uint64
	LengthFunc         func(s uint64) uint64
	CompareFunc        func(s1, s2 uint64) int32
	BoundedCompareFunc func(s1, s2, n uint64) int32
	PrintfFunc         func(format uint64, args VaList) int32
	FprintfFunc        func(stream, format uint64, args VaList) int32
	CRC32Func          func(crc uint32, buf uint64, n uint32) uint32
	CRC16Func          func(crc uint16, buf uint64, n uint32) uint16
)

// VaList is a pre-materialized variadic argument list. Integers are stored
// as their 64-bit register image; pointers as guest addresses.
type VaList []uint64

// ErrUnknownRoutine is returned by Lookup for names the library lacks.
var ErrUnknownRoutine = errors.New("libc: unknown routine")

// Crash is the panic value of a routine that faulted.
type Crash struct {
	Routine string
	Err     error
}

// Error implements the error interface.
func (c *Crash) Error() string {
	return fmt.Sprintf("%s: %v", c.Routine, c.Err)
}

// Unwrap exposes the underlying fault.
func (c *Crash) Unwrap() error {
	return c.Err
}

func crash(routine string, err error) {
	panic(&Crash{Routine: routine, Err: err})
}

// Catch runs fn and converts a *Crash panic into an error. Other panics
// propagate.
func Catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(*Crash)
			if !ok {
				panic(r)
			}
			err = c
		}
	}()
	fn()
	return nil
}

// Option configures a Library.
type Option func(*Library)

// WithWideWidth sets sizeof(wchar_t). The default is guest.WideLinux.
func WithWideWidth(width int) Option {
	return func(l *Library) {
		l.wide = width
	}
}

// Library is one process image of the reference routines.
type Library struct {
	space   *guest.Space
	streams *Streams
	wide    int
	exports map[string]any
}

// New creates a library over space writing formatted output to streams.
func New(space *guest.Space, streams *Streams, opts ...Option) *Library {
	l := &Library{
		space:   space,
		streams: streams,
		wide:    guest.WideLinux,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.exports = l.exportTable()
	return l
}

// Space returns the address space the library operates on.
func (l *Library) Space() *guest.Space {
	return l.space
}

// Streams returns the FILE table.
func (l *Library) Streams() *Streams {
	return l.streams
}

// WideWidth returns sizeof(wchar_t).
func (l *Library) WideWidth() int {
	return l.wide
}

func (l *Library) exportTable() map[string]any {
	narrow := text{lib: l, width: guest.Narrow, prefix: "str"}
	wide := text{lib: l, width: l.wide, prefix: "wcs"}
	return map[string]any{
		"strcpy":   CopyFunc(narrow.cpy),
		"strncpy":  BoundedCopyFunc(narrow.ncpy),
		"strlen":   LengthFunc(narrow.len),
		"strcmp":   CompareFunc(narrow.cmp),
		"strncmp":  BoundedCompareFunc(narrow.ncmp),
		"strcat":   CopyFunc(narrow.cat),
		"strncat":  BoundedCopyFunc(narrow.ncat),
		"printf":   PrintfFunc(l.Printf),
		"fprintf":  FprintfFunc(l.Fprintf),
		"wcscpy":   CopyFunc(wide.cpy),
		"wcsncpy":  BoundedCopyFunc(wide.ncpy),
		"wcslen":   LengthFunc(wide.len),
		"wcscmp":   CompareFunc(wide.cmp),
		"wcsncmp":  BoundedCompareFunc(wide.ncmp),
		"wcscat":   CopyFunc(wide.cat),
		"wcsncat":  BoundedCopyFunc(wide.ncat),
		"wprintf":  PrintfFunc(l.Wprintf),
		"fwprintf": FprintfFunc(l.Fwprintf),
		"memcpy":   BoundedCopyFunc(l.Memcpy),
		"memcmp":   BoundedCompareFunc(l.Memcmp),
		"crc32":    CRC32Func(l.Crc32),
		"crc16":    CRC16Func(l.Crc16),
	}
}

// Lookup returns the exported routine called name.
func (l *Library) Lookup(name string) (any, error) {
	fn, ok := l.exports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoutine, name)
	}
	return fn, nil
}

// Names lists the exported routines, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.exports))
	for name := range l.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
