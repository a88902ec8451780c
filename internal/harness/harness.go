package harness

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/command"
	"github.com/roach88/fnmodels/internal/engine"
	"github.com/roach88/fnmodels/internal/gate"
	"github.com/roach88/fnmodels/internal/guest"
	"github.com/roach88/fnmodels/internal/libc"
	"github.com/roach88/fnmodels/internal/model"
)

// Option configures a run.
type Option func(*runner)

// WithLogger sets the logger handed to the engine and the dispatcher.
func WithLogger(log *zap.Logger) Option {
	return func(r *runner) {
		r.log = log
	}
}

// WithObserver receives every dispatcher record in addition to the trace.
func WithObserver(o model.Observer) Option {
	return func(r *runner) {
		r.observers = append(r.observers, o)
	}
}

// world is one process image: an address space, the real library over it
// and the streams it prints to.
type world struct {
	space  *guest.Space
	lib    *libc.Library
	output map[string]*bytes.Buffer
	file   uint64
}

func newWorld(space *guest.Space, width int) *world {
	w := &world{
		space: space,
		output: map[string]*bytes.Buffer{
			ArgStdout: {},
			ArgStderr: {},
			ArgFile:   {},
		},
	}
	streams := libc.NewStreams(w.output[ArgStdout], w.output[ArgStderr])
	w.file = streams.Open(w.output[ArgFile])
	w.lib = libc.New(space, streams, libc.WithWideWidth(width))
	return w
}

// allocation is where a buffer lives and how wide its units are.
type allocation struct {
	addr  uint64
	units uint64
	width int
}

func (a allocation) size() uint64 {
	return a.units * uint64(a.width)
}

type runner struct {
	scenario  *Scenario
	log       *zap.Logger
	observers model.Observers

	model   *world
	local   *engine.Local
	d       *model.Dispatcher
	buffers map[string]allocation
	clock   *engine.Clock
	last    *model.Record
	prev    uint64
	hasPrev bool
	result  *Result
}

// Run executes a scenario and returns the result.
//
// Each step runs twice from the same memory image: once through a
// dispatcher backed by an in-process engine, and once through the real
// routine on a clone of the address space taken just before the call. The
// dispatcher's world persists across steps; the clone is discarded.
//
// Run returns an error only when the scenario cannot be executed. Failed
// expectations are reported in Result.Errors.
func Run(s *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		scenario: s,
		log:      zap.NewNop(),
		buffers:  make(map[string]allocation),
		clock:    engine.NewClock(),
		result:   NewResult(s.Name),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.setup(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	for i, step := range s.Steps {
		if err := r.step(i, step); err != nil {
			return nil, fmt.Errorf("scenario %s: step %d (%s): %w", s.Name, i, step.Call, err)
		}
	}

	for _, msg := range EvaluateAssertions(r.result, s.Assertions) {
		r.result.AddError(msg)
	}
	r.result.Engine = r.local.Texts()

	return r.result, nil
}

func (r *runner) setup() error {
	s := r.scenario
	width := s.charWidth()

	policy, err := engine.ParsePolicy(s.Policy, s.DeferOps)
	if err != nil {
		return err
	}

	space := guest.NewSpace()
	r.model = newWorld(space, width)
	r.local = engine.NewLocal(space, engine.WithLogger(r.log))
	r.local.Handle(command.Channel, engine.NewExecutor(space, policy, r.log))

	capture := model.ObserverFunc(func(rec model.Record) {
		r.last = &rec
	})
	opts := []model.Option{
		model.WithGate(gate.New(!s.Disabled)),
		model.WithCharWidth(width),
		model.WithLogger(r.log),
		model.WithObserver(append(model.Observers{capture}, r.observers...)),
	}
	if s.MaxCount > 0 {
		opts = append(opts, model.WithMaxCount(s.MaxCount))
	}
	r.d = model.New(r.local, space, r.model.lib, opts...)

	for _, b := range s.Buffers {
		if err := r.allocate(b, width); err != nil {
			return fmt.Errorf("buffer %s: %w", b.Name, err)
		}
	}
	return nil
}

func (r *runner) allocate(b Buffer, wide int) error {
	width := guest.Narrow
	if b.Wide {
		width = wide
	}
	text := []rune(b.Text)
	units := b.Units
	if units == 0 {
		units = uint64(len(text)) + 1
	}

	space := r.model.space
	a := allocation{addr: space.Alloc(units * uint64(width)), units: units, width: width}
	r.buffers[b.Name] = a

	if b.Fill != "" {
		if err := space.Fill(a.addr, width, uint32([]rune(b.Fill)[0]), units); err != nil {
			return err
		}
	}
	if b.Text != "" || b.Fill == "" {
		if err := space.WriteString(a.addr, b.Text, width); err != nil {
			return err
		}
	}
	if b.Symbolic && len(text) > 0 {
		if err := space.MakeSymbolic(a.addr, uint64(len(text))*uint64(width), b.Name); err != nil {
			return err
		}
	}
	return nil
}

// resolve turns the textual arguments of a step into spilled arguments in
// the dispatcher's address space.
func (r *runner) resolve(step Step) ([]guest.Arg, error) {
	space := r.model.space
	args := make([]guest.Arg, len(step.Args))
	for i, raw := range step.Args {
		v, err := r.value(raw)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		args[i] = space.Spill(v, argSize(step.Call, i))
	}
	for _, i := range step.SymbolicArgs {
		a := args[i]
		if err := space.MakeSymbolic(a.Slot, uint64(a.Size), fmt.Sprintf("arg%d", i)); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (r *runner) value(raw string) (uint64, error) {
	switch raw {
	case ArgNull:
		return 0, nil
	case ArgStdout:
		return libc.Stdout, nil
	case ArgStderr:
		return libc.Stderr, nil
	case ArgFile:
		return r.model.file, nil
	case ArgPrev:
		if !r.hasPrev {
			return 0, fmt.Errorf("%s used before any step returned", ArgPrev)
		}
		return r.prev, nil
	}
	if a, ok := r.buffers[raw]; ok {
		return a.addr, nil
	}
	return parseInt(raw)
}

func parseInt(raw string) (uint64, error) {
	if v, err := strconv.ParseInt(raw, 0, 64); err == nil {
		return uint64(v), nil
	}
	v, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a buffer nor an integer", raw)
	}
	return v, nil
}

// argSize is the width of the caller's slot for argument i. Checksum seeds
// and lengths are narrower than a pointer.
func argSize(call string, i int) int {
	switch {
	case call == "crc32" && i == 0, (call == "crc32" || call == "crc16") && i == 2:
		return 4
	case call == "crc16" && i == 0:
		return 2
	}
	return guest.PointerSize
}

// outcome is what one side of a step produced.
type outcome struct {
	result uint64
	fault  error
	memory map[string][]byte
}

func (r *runner) step(i int, step Step) error {
	rt := routines[step.Call]
	args, err := r.resolve(step)
	if err != nil {
		return err
	}

	values := make([]uint64, len(args))
	for j, a := range args {
		values[j] = a.Value
	}
	original := newWorld(r.model.space.Clone(), r.scenario.charWidth())

	var want outcome
	want.fault = libc.Catch(func() {
		want.result, err = callOriginal(original.lib, step.Call, values)
	})
	if err != nil {
		return err
	}
	want.memory = r.snapshot(original.space)

	r.last = nil
	var got outcome
	got.fault = libc.Catch(func() {
		got.result, err = callModel(r.d, step.Call, args)
	})
	if err != nil {
		return err
	}
	got.memory = r.snapshot(r.model.space)
	if r.last == nil {
		return fmt.Errorf("dispatcher produced no record")
	}
	rec := *r.last

	ev := TraceEvent{
		Seq:         r.clock.Next(),
		Routine:     step.Call,
		Route:       string(rec.Route),
		Result:      formatResult(rt.kind, got.result, args),
		Op:          opName(rec.Command),
		Deferred:    rec.Command != nil && rec.Command.Defer,
		Diagnostics: rec.Diagnostics,
		Fault:       rec.Fault,
	}
	if got.fault != nil {
		ev.Result = ""
	}
	r.result.AddTrace(ev)

	if got.fault == nil {
		r.prev, r.hasPrev = got.result, true
		if want.fault == nil {
			r.local.PrintExpression("res1", want.result)
			r.local.PrintExpression("res2", got.result)
		}
	}

	r.check(i, step, rt, rec, got, want)
	return nil
}

func (r *runner) snapshot(space *guest.Space) map[string][]byte {
	mem := make(map[string][]byte, len(r.buffers))
	for name, a := range r.buffers {
		raw, err := space.Read(a.addr, a.size())
		if err != nil {
			continue
		}
		mem[name] = raw
	}
	return mem
}

// check compares one step against its expectations.
func (r *runner) check(i int, step Step, rt routine, rec model.Record, got, want outcome) {
	fail := func(format string, args ...any) {
		r.result.AddError(fmt.Sprintf("step %d (%s): ", i, step.Call) + fmt.Sprintf(format, args...))
	}
	exp := step.Expect

	if exp.Equivalent {
		switch {
		case (got.fault != nil) != (want.fault != nil):
			fail("fault mismatch: dispatcher %v, original %v", got.fault, want.fault)
		case got.fault == nil && rec.Route != model.RouteScanned && !sameResult(rt.kind, got.result, want.result):
			fail("result mismatch: dispatcher %d, original %d", int64(got.result), int64(want.result))
		}
		if diff := cmp.Diff(want.memory, got.memory); diff != "" {
			fail("memory mismatch (-original +dispatcher):\n%s", diff)
		}
	}

	if exp.Fault && got.fault == nil {
		fail("expected a fault, got result %d", int64(got.result))
	}
	if !exp.Fault && got.fault != nil && !exp.Equivalent {
		fail("unexpected fault: %v", got.fault)
	}

	if exp.Result != nil && got.fault == nil && int64(got.result) != *exp.Result {
		fail("result: expected %d, got %d", *exp.Result, int64(got.result))
	}

	if exp.Route != "" && exp.Route != string(rec.Route) {
		fail("route: expected %s, got %s", exp.Route, rec.Route)
	}

	if exp.Diagnostics != nil {
		if diff := cmp.Diff(*exp.Diagnostics, rec.Diagnostics, cmpopts.EquateEmpty()); diff != "" {
			fail("diagnostics mismatch (-expected +actual):\n%s", diff)
		}
	}

	for name, text := range exp.Memory {
		a := r.buffers[name]
		actual := decodeBuffer(got.memory[name], a.width)
		if actual != text {
			fail("memory %s: expected %q, got %q", name, text, actual)
		}
	}

	for name, text := range exp.Output {
		if actual := r.model.output[name].String(); actual != text {
			fail("output %s: expected %q, got %q", name, text, actual)
		}
	}
}

// decodeBuffer renders a buffer up to its first NUL unit, or whole when it
// has none.
func decodeBuffer(raw []byte, width int) string {
	var b strings.Builder
	for _, u := range guest.UnitsToRunes(raw, width) {
		if u == 0 {
			break
		}
		b.WriteRune(u)
	}
	return b.String()
}
