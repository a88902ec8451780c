// Package model intercepts string, wide-string, memory, checksum and
// formatted-output routines and routes each call either to the analysis
// engine's behavioral model or to the real implementation.
//
// # Dispatch
//
// Every modeled routine runs the same sequence:
//
//  1. If the gate does not allow the routine, resolve all bindings and call
//     the real routine.
//  2. Classify the storage of the address and length arguments. A symbolic
//     address or size is unsupported: emit a diagnostic and call the real
//     routine.
//  3. Apply the family's degenerate-input guards (null pointers, zero or
//     oversized counts).
//  4. Build the family's command with the defer flag set.
//  5. Send it to the engine on the configured channel.
//  6. If the engine cleared the defer flag, return its result (or the
//     destination pointer for routines that mutate in place).
//  7. Otherwise call the real routine with the original arguments.
//
// The printf family is never sent to the engine. Its model scans the
// format string for symbolic characters, reports what it finds and returns
// a placeholder 0.
//
// Nothing on this path fails the caller: unsupported or degenerate calls
// degrade to the real routine, which keeps its own failure behavior.
package model

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/binding"
	"github.com/roach88/fnmodels/internal/command"
	"github.com/roach88/fnmodels/internal/engine"
	"github.com/roach88/fnmodels/internal/gate"
	"github.com/roach88/fnmodels/internal/guest"
	"github.com/roach88/fnmodels/internal/libc"
	"github.com/roach88/fnmodels/internal/taint"
)

// DefaultMaxCount is the largest count the bounded concatenation and raw
// memory models accept.
const DefaultMaxCount = 4096

// Memory is the view of guest memory the dispatcher needs for itself: it
// scans format strings and spills by-value arguments the engine must read
// by reference.
type Memory interface {
	Unit(addr uint64, width int) (uint32, error)
	Spill(v uint64, size int) guest.Arg
}

// Dispatcher is the context every intercepted call runs in.
//
// Thread-safety: a Dispatcher may be shared by goroutines. Bindings resolve
// once, the gate is atomic, and everything else is read-only after New.
type Dispatcher struct {
	engine   engine.Engine
	memory   Memory
	gate     *gate.Gate
	bindings *binding.Set
	log      *zap.Logger
	observer Observer

	channel  string
	maxCount uint64
	wide     int
	stdout   uint64
	stderr   uint64

	strcpy, strcat, wcscpy, wcscat *copyVariant

	strncpy, strncat, wcsncpy, wcsncat, memcpy *boundedCopyVariant

	strlen, wcslen *lengthVariant

	strcmp, wcscmp *compareVariant

	strncmp, wcsncmp, memcmp *boundedCompareVariant

	crc32, crc16 *checksumVariant

	printf, fprintf, wprintf, fwprintf *formatVariant
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithGate shares an existing gate. The default gate is enabled.
func WithGate(g *gate.Gate) Option {
	return func(d *Dispatcher) {
		d.gate = g
	}
}

// WithMaxCount sets the oversized-count threshold.
func WithMaxCount(n uint64) Option {
	return func(d *Dispatcher) {
		d.maxCount = n
	}
}

// WithCharWidth sets sizeof(wchar_t) for the wide routines.
func WithCharWidth(width int) Option {
	return func(d *Dispatcher) {
		d.wide = width
	}
}

// WithChannel sets the engine channel commands are sent on.
func WithChannel(name string) Option {
	return func(d *Dispatcher) {
		d.channel = name
	}
}

// WithLogger sets the host-side logger. Guest-visible diagnostics go to the
// engine's Message hook regardless.
func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithObserver receives a Record for every call.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithStreams sets the handles treated as the console streams by the
// fprintf models.
func WithStreams(stdout, stderr uint64) Option {
	return func(d *Dispatcher) {
		d.stdout = stdout
		d.stderr = stderr
	}
}

// New creates a dispatcher. Real routines are found through r on first use.
func New(eng engine.Engine, mem Memory, r binding.Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:   eng,
		memory:   mem,
		bindings: binding.NewSet(r),
		log:      zap.NewNop(),
		observer: nopObserver{},
		channel:  command.Channel,
		maxCount: DefaultMaxCount,
		wide:     guest.WideLinux,
		stdout:   libc.Stdout,
		stderr:   libc.Stderr,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.gate == nil {
		d.gate = gate.New(true)
	}
	d.register()
	return d
}

func (d *Dispatcher) register() {
	set := d.bindings
	narrow, wide := guest.Narrow, d.wide

	d.strcpy = newCopy(set, "strcpy", command.OpStrcpy, narrow)
	d.strncpy = newBoundedCopy(set, "strncpy", command.OpStrncpy, narrow, zeroDegenerate, false)
	d.strlen = newLength(set, "strlen", narrow)
	d.strcmp = newCompare(set, "strcmp", narrow)
	d.strncmp = newBoundedCompare(set, "strncmp", command.OpStrncmp, narrow, zeroReturns, false)
	d.strcat = newCopy(set, "strcat", command.OpStrcat, narrow)
	d.strncat = newBoundedCopy(set, "strncat", command.OpStrncat, narrow, zeroDegenerate, true)
	d.printf = newFormat(set, "printf", narrow, false)
	d.fprintf = newFormat(set, "fprintf", narrow, true)

	d.wcscpy = newCopy(set, "wcscpy", command.OpStrcpy, wide)
	d.wcsncpy = newBoundedCopy(set, "wcsncpy", command.OpStrncpy, wide, zeroDegenerate, false)
	d.wcslen = newLength(set, "wcslen", wide)
	d.wcscmp = newCompare(set, "wcscmp", wide)
	d.wcsncmp = newBoundedCompare(set, "wcsncmp", command.OpStrncmp, wide, zeroReturns, false)
	d.wcscat = newCopy(set, "wcscat", command.OpStrcat, wide)
	d.wcsncat = newBoundedCopy(set, "wcsncat", command.OpStrncat, wide, zeroDegenerate, true)
	d.wprintf = newFormat(set, "wprintf", wide, false)
	d.fwprintf = newFormat(set, "fwprintf", wide, true)

	d.memcpy = newBoundedCopy(set, "memcpy", command.OpMemcpy, 0, zeroReturns, true)
	d.memcmp = newBoundedCompare(set, "memcmp", command.OpMemcmp, 0, zeroDegenerate, true)

	d.crc32 = newCRC32(set)
	d.crc16 = newCRC16(set)
}

// Gate returns the gate the dispatcher consults.
func (d *Dispatcher) Gate() *gate.Gate {
	return d.gate
}

// Bindings returns the original-routine slots.
func (d *Dispatcher) Bindings() *binding.Set {
	return d.bindings
}

// MaxCount returns the oversized-count threshold.
func (d *Dispatcher) MaxCount() uint64 {
	return d.maxCount
}

// Routines lists the intercepted routine names in registration order.
func (d *Dispatcher) Routines() []string {
	return d.bindings.Names()
}

// passthrough is step 1: the gate is closed for this routine.
func (d *Dispatcher) passthrough(rec *Record) {
	if err := d.bindings.ResolveAll(); err != nil {
		d.log.Warn("resolve bindings", zap.Error(err))
	}
	rec.Route = RoutePassthrough
}

// dispatch runs steps 1 to 7 for one call.
func (d *Dispatcher) dispatch(v variant, c *call) (result uint64) {
	rec := Record{Routine: v.name()}
	defer d.finish(&rec, &result)

	if !d.gate.Allows(v.name()) {
		d.passthrough(&rec)
		return v.fallback(c)
	}

	cls := v.classify(d.engine, c)
	if class, bad := cls.Unsupported(); bad {
		d.diagnose(&rec, taint.Message(class, v.subject()))
		rec.Route = RouteUnsupported
		return v.fallback(c)
	}

	switch g := v.guard(d, c); g.outcome {
	case guardDegenerate:
		d.log.Debug("degenerate input", zap.String("routine", v.name()), zap.String("reason", g.reason))
		rec.Route = RouteDegenerate
		return v.fallback(c)
	case guardShortCircuit:
		d.log.Debug("short circuit", zap.String("routine", v.name()), zap.String("reason", g.reason))
		rec.Route = RouteShortCircuit
		return g.value
	case guardOversized:
		d.diagnose(&rec, fmt.Sprintf("Size %d exceeds the modeling limit %d", c.count(), d.maxCount))
		rec.Route = RouteOversized
		return v.fallback(c)
	}

	cmd := v.buildCommand(d, c)
	cmd.Defer = true
	msg := cmd.Encode()
	if err := d.engine.Invoke(d.channel, msg); err != nil {
		d.log.Debug("engine declined",
			zap.String("routine", v.name()),
			zap.String("channel", d.channel),
			zap.Error(err),
		)
	}
	command.ReadVerdict(msg, &cmd)
	rec.Command = &cmd

	if !cmd.Defer {
		rec.Route = RouteHandled
		if v.probesResult() {
			if p, ok := d.engine.(engine.ResultProber); ok && p.ResultSymbolic(d.channel, msg) {
				d.diagnose(&rec, "return value is symbolic")
			}
		}
		return v.result(c, cmd)
	}

	rec.Route = RouteDeferred
	return v.fallback(c)
}

// finish publishes the record, including for calls whose real routine
// crashed; the crash is re-raised afterwards.
func (d *Dispatcher) finish(rec *Record, result *uint64) {
	if r := recover(); r != nil {
		rec.Fault = fmt.Sprint(r)
		d.observer.Observe(*rec)
		panic(r)
	}
	rec.Result = *result
	d.observer.Observe(*rec)
}

// diagnose emits a guest-visible diagnostic and keeps it on the record.
func (d *Dispatcher) diagnose(rec *Record, text string) {
	d.engine.Message(text)
	rec.Diagnostics = append(rec.Diagnostics, text)
}
