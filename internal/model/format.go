package model

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/binding"
	"github.com/roach88/fnmodels/internal/guest"
	"github.com/roach88/fnmodels/internal/libc"
	"github.com/roach88/fnmodels/internal/taint"
)

// Diagnostics emitted by the format scan.
const (
	msgFormatAddress    = "Symbolic address for format string is not supported yet"
	msgFormatControlled = "Warning: user controllable format string can cause vulnerability"
)

// formatPlaceholder is what the scanned printf family returns in place of
// the number of characters written.
const formatPlaceholder = 0

// formatVariant is printf, fprintf or one of their wide forms. Exactly one
// of printf and fprintf is set.
type formatVariant struct {
	family
	printf  *binding.Slot[libc.PrintfFunc]
	fprintf *binding.Slot[libc.FprintfFunc]
}

func newFormat(set *binding.Set, name string, width int, toStream bool) *formatVariant {
	v := &formatVariant{family: family{routine: name, width: width}}
	if toStream {
		v.fprintf = binding.Add[libc.FprintfFunc](set, name)
	} else {
		v.printf = binding.Add[libc.PrintfFunc](set, name)
	}
	return v
}

func (v *formatVariant) original(stream, format uint64, args libc.VaList) int32 {
	if v.fprintf != nil {
		return v.fprintf.Func()(stream, format, args)
	}
	return v.printf.Func()(format, args)
}

// Printf models printf(format, ...).
func (d *Dispatcher) Printf(format guest.Arg, args libc.VaList) int32 {
	return d.format(d.printf, 0, format, args)
}

// Fprintf models fprintf(stream, format, ...). Only the console streams are
// scanned; output to anything else reaches the real formatter.
func (d *Dispatcher) Fprintf(stream uint64, format guest.Arg, args libc.VaList) int32 {
	return d.format(d.fprintf, stream, format, args)
}

// Wprintf is Printf with a wide format string.
func (d *Dispatcher) Wprintf(format guest.Arg, args libc.VaList) int32 {
	return d.format(d.wprintf, 0, format, args)
}

// Fwprintf is Fprintf with a wide format string.
func (d *Dispatcher) Fwprintf(stream uint64, format guest.Arg, args libc.VaList) int32 {
	return d.format(d.fwprintf, stream, format, args)
}

func (d *Dispatcher) format(v *formatVariant, stream uint64, format guest.Arg, args libc.VaList) int32 {
	return int32(d.formatCall(v, stream, format, args))
}

func (d *Dispatcher) formatCall(v *formatVariant, stream uint64, format guest.Arg, args libc.VaList) (result uint64) {
	rec := Record{Routine: v.name()}
	defer d.finish(&rec, &result)

	original := func() uint64 {
		return signExtend(v.original(stream, format.Value, args))
	}

	if !d.gate.Allows(v.name()) {
		d.passthrough(&rec)
		return original()
	}
	if v.fprintf != nil && stream != d.stdout && stream != d.stderr {
		rec.Route = RouteForwarded
		return original()
	}
	if format.IsNull() {
		d.log.Debug("degenerate input", zap.String("routine", v.name()), zap.String("reason", "null format"))
		rec.Route = RouteDegenerate
		return original()
	}

	d.scan(&rec, v, format)
	rec.Route = RouteScanned
	return formatPlaceholder
}

// scan walks the format string until the terminator or the first unit the
// engine considers symbolic.
func (d *Dispatcher) scan(rec *Record, v *formatVariant, format guest.Arg) {
	if cls := taint.Classify(d.engine, taint.Ptr(format)); cls.Symbolic() {
		d.diagnose(rec, msgFormatAddress)
		return
	}
	width := uint64(v.width)
	for i := uint64(0); i < guest.MaxScan; i++ {
		addr := format.Value + i*width
		if d.engine.IsSymbolic(addr, width) {
			d.diagnose(rec, msgFormatControlled)
			return
		}
		u, err := d.memory.Unit(addr, v.width)
		if err != nil {
			d.log.Debug("format scan stopped",
				zap.String("routine", v.name()),
				zap.String("addr", fmt.Sprintf("%#x", addr)),
				zap.Error(err),
			)
			return
		}
		if u == 0 {
			return
		}
	}
	d.log.Debug("format scan limit reached", zap.String("routine", v.name()))
}
