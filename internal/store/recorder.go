package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/engine"
	"github.com/roach88/fnmodels/internal/model"
)

// Recorder is a model.Observer that writes every record to a session.
//
// Observe cannot fail the intercepted call, so write errors are logged and
// the first one is kept for Err.
type Recorder struct {
	ctx     context.Context
	store   *Store
	session string
	clock   *engine.Clock
	log     *zap.Logger

	mu  sync.Mutex
	err error
}

// NewRecorder records into session. A nil clock starts at seq 1; a nil
// logger discards.
func NewRecorder(ctx context.Context, s *Store, session string, clock *engine.Clock, log *zap.Logger) *Recorder {
	if clock == nil {
		clock = engine.NewClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{ctx: ctx, store: s, session: session, clock: clock, log: log}
}

// Observe implements model.Observer.
func (r *Recorder) Observe(rec model.Record) {
	d := Dispatch{
		SessionID:   r.session,
		Seq:         r.clock.Next(),
		Routine:     rec.Routine,
		Route:       string(rec.Route),
		Result:      rec.Result,
		Command:     rec.Command,
		Diagnostics: rec.Diagnostics,
		Fault:       rec.Fault,
	}
	if err := r.store.WriteDispatch(r.ctx, d); err != nil {
		r.log.Warn("record dispatch",
			zap.String("session", r.session),
			zap.Int64("seq", d.Seq),
			zap.Error(err),
		)
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
