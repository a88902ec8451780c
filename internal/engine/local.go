package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/guest"
)

// Note is one diagnostic emitted through an engine.
type Note struct {
	Seq  int64
	Text string
}

// Local is an in-process Engine over a guest address space.
//
// Thread-safety: Local is safe for concurrent use.
type Local struct {
	space *guest.Space
	mux   *Mux
	log   *zap.Logger
	clock *Clock

	mu          sync.Mutex
	notes       []Note
	invocations map[string]int
}

// LocalOption configures a Local engine.
type LocalOption func(*Local)

// WithLogger sets the logger for engine diagnostics.
func WithLogger(log *zap.Logger) LocalOption {
	return func(l *Local) {
		l.log = log
	}
}

// WithClock sets the clock stamping notes.
func WithClock(c *Clock) LocalOption {
	return func(l *Local) {
		l.clock = c
	}
}

// NewLocal creates an engine with no channels registered.
func NewLocal(space *guest.Space, opts ...LocalOption) *Local {
	l := &Local{
		space:       space,
		mux:         NewMux(),
		log:         zap.NewNop(),
		clock:       NewClock(),
		invocations: make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Handle registers h for channel.
func (l *Local) Handle(channel string, h Handler) {
	l.mux.Register(channel, h)
}

// Space returns the address space queried by IsSymbolic.
func (l *Local) Space() *guest.Space {
	return l.space
}

// IsSymbolic implements Engine.
func (l *Local) IsSymbolic(addr, size uint64) bool {
	return l.space.IsSymbolic(addr, size)
}

// Invoke implements Engine.
func (l *Local) Invoke(channel string, msg []byte) error {
	l.mu.Lock()
	l.invocations[channel]++
	l.mu.Unlock()

	err := l.mux.Dispatch(channel, msg)
	if err != nil {
		l.log.Debug("invoke failed",
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
	return err
}

// Message implements Engine.
func (l *Local) Message(text string) {
	l.note(text)
	l.log.Info(text)
}

// PrintExpression implements Engine.
func (l *Local) PrintExpression(tag string, value uint64) {
	l.note(fmt.Sprintf("%s: %#x", tag, value))
	l.log.Info("expression",
		zap.String("tag", tag),
		zap.Uint64("value", value),
	)
}

// ResultSymbolic implements ResultProber by asking the channel's handler.
func (l *Local) ResultSymbolic(channel string, msg []byte) bool {
	h, ok := l.mux.Lookup(channel)
	if !ok {
		return false
	}
	p, ok := h.(interface{ ResultSymbolic(msg []byte) bool })
	return ok && p.ResultSymbolic(msg)
}

func (l *Local) note(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notes = append(l.notes, Note{Seq: l.clock.Next(), Text: text})
}

// Notes returns the diagnostics emitted so far, oldest first.
func (l *Local) Notes() []Note {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Note{}, l.notes...)
}

// Texts returns the text of every note, oldest first.
func (l *Local) Texts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.notes))
	for i, n := range l.notes {
		out[i] = n.Text
	}
	return out
}

// Invocations returns how many messages were sent on channel.
func (l *Local) Invocations(channel string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.invocations[channel]
}

// Reset forgets notes and invocation counts.
func (l *Local) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notes = nil
	l.invocations = make(map[string]int)
}
