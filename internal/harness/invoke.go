package harness

import (
	"fmt"

	"github.com/roach88/fnmodels/internal/guest"
	"github.com/roach88/fnmodels/internal/libc"
	"github.com/roach88/fnmodels/internal/model"
)

// resultKind says how a routine's return value is compared and printed.
type resultKind int

const (
	resultPointer resultKind = iota
	resultLength
	resultCompare
	resultChecksum
	resultCount
)

// routine describes one callable routine: its fixed arity (the minimum for
// the variadic printf family) and the width of the strings it walks.
type routine struct {
	arity    int
	variadic bool
	wide     bool
	kind     resultKind
}

var routines = map[string]routine{
	"strcpy":   {arity: 2, kind: resultPointer},
	"strncpy":  {arity: 3, kind: resultPointer},
	"strlen":   {arity: 1, kind: resultLength},
	"strcmp":   {arity: 2, kind: resultCompare},
	"strncmp":  {arity: 3, kind: resultCompare},
	"strcat":   {arity: 2, kind: resultPointer},
	"strncat":  {arity: 3, kind: resultPointer},
	"wcscpy":   {arity: 2, wide: true, kind: resultPointer},
	"wcsncpy":  {arity: 3, wide: true, kind: resultPointer},
	"wcslen":   {arity: 1, wide: true, kind: resultLength},
	"wcscmp":   {arity: 2, wide: true, kind: resultCompare},
	"wcsncmp":  {arity: 3, wide: true, kind: resultCompare},
	"wcscat":   {arity: 2, wide: true, kind: resultPointer},
	"wcsncat":  {arity: 3, wide: true, kind: resultPointer},
	"memcpy":   {arity: 3, kind: resultPointer},
	"memcmp":   {arity: 3, kind: resultCompare},
	"crc32":    {arity: 3, kind: resultChecksum},
	"crc16":    {arity: 3, kind: resultChecksum},
	"printf":   {arity: 1, variadic: true, kind: resultCount},
	"fprintf":  {arity: 2, variadic: true, kind: resultCount},
	"wprintf":  {arity: 1, variadic: true, wide: true, kind: resultCount},
	"fwprintf": {arity: 2, variadic: true, wide: true, kind: resultCount},
}

func (r routine) accepts(n int) bool {
	if r.variadic {
		return n >= r.arity
	}
	return n == r.arity
}

func signed(v int32) uint64 {
	return uint64(int64(v))
}

// callModel invokes the intercepted form of name.
func callModel(d *model.Dispatcher, name string, a []guest.Arg) (uint64, error) {
	varargs := func(from int) libc.VaList {
		list := make(libc.VaList, 0, len(a)-from)
		for _, arg := range a[from:] {
			list = append(list, arg.Value)
		}
		return list
	}

	switch name {
	case "strcpy":
		return d.Strcpy(a[0], a[1]), nil
	case "strncpy":
		return d.Strncpy(a[0], a[1], a[2]), nil
	case "strlen":
		return d.Strlen(a[0]), nil
	case "strcmp":
		return signed(d.Strcmp(a[0], a[1])), nil
	case "strncmp":
		return signed(d.Strncmp(a[0], a[1], a[2])), nil
	case "strcat":
		return d.Strcat(a[0], a[1]), nil
	case "strncat":
		return d.Strncat(a[0], a[1], a[2]), nil
	case "wcscpy":
		return d.Wcscpy(a[0], a[1]), nil
	case "wcsncpy":
		return d.Wcsncpy(a[0], a[1], a[2]), nil
	case "wcslen":
		return d.Wcslen(a[0]), nil
	case "wcscmp":
		return signed(d.Wcscmp(a[0], a[1])), nil
	case "wcsncmp":
		return signed(d.Wcsncmp(a[0], a[1], a[2])), nil
	case "wcscat":
		return d.Wcscat(a[0], a[1]), nil
	case "wcsncat":
		return d.Wcsncat(a[0], a[1], a[2]), nil
	case "memcpy":
		return d.Memcpy(a[0], a[1], a[2]), nil
	case "memcmp":
		return signed(d.Memcmp(a[0], a[1], a[2])), nil
	case "crc32":
		return uint64(d.Crc32(a[0], a[1], a[2])), nil
	case "crc16":
		return uint64(d.Crc16(a[0], a[1], a[2])), nil
	case "printf":
		return signed(d.Printf(a[0], varargs(1))), nil
	case "fprintf":
		return signed(d.Fprintf(a[0].Value, a[1], varargs(2))), nil
	case "wprintf":
		return signed(d.Wprintf(a[0], varargs(1))), nil
	case "fwprintf":
		return signed(d.Fwprintf(a[0].Value, a[1], varargs(2))), nil
	}
	return 0, fmt.Errorf("unknown routine %q", name)
}

// callOriginal invokes the real routine exported by lib.
func callOriginal(lib *libc.Library, name string, a []uint64) (uint64, error) {
	fn, err := lib.Lookup(name)
	if err != nil {
		return 0, err
	}

	switch fn := fn.(type) {
	case libc.CopyFunc:
		return fn(a[0], a[1]), nil
	case libc.BoundedCopyFunc:
		return fn(a[0], a[1], a[2]), nil
	case libc.LengthFunc:
		return fn(a[0]), nil
	case libc.CompareFunc:
		return signed(fn(a[0], a[1])), nil
	case libc.BoundedCompareFunc:
		return signed(fn(a[0], a[1], a[2])), nil
	case libc.CRC32Func:
		return uint64(fn(uint32(a[0]), a[1], uint32(a[2]))), nil
	case libc.CRC16Func:
		return uint64(fn(uint16(a[0]), a[1], uint32(a[2]))), nil
	case libc.PrintfFunc:
		return signed(fn(a[0], libc.VaList(a[1:]))), nil
	case libc.FprintfFunc:
		return signed(fn(a[0], a[1], libc.VaList(a[2:]))), nil
	}
	return 0, fmt.Errorf("routine %q has unexpected type %T", name, fn)
}

// sameResult reports whether two results agree. Comparisons only promise
// the sign of their result.
func sameResult(kind resultKind, a, b uint64) bool {
	if kind != resultCompare {
		return a == b
	}
	return sign(int64(a)) == sign(int64(b))
}

func sign(v int64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// formatResult renders a result for the trace. Pointers equal to the first
// argument print as "dest" so traces do not depend on allocation addresses.
func formatResult(kind resultKind, v uint64, args []guest.Arg) string {
	switch kind {
	case resultPointer:
		if len(args) > 0 && v == args[0].Value {
			return "dest"
		}
		return fmt.Sprintf("%#x", v)
	case resultChecksum:
		return fmt.Sprintf("%#x", v)
	case resultCompare, resultCount:
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%d", v)
}
