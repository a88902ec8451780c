package cli

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/harness"
	"github.com/roach88/fnmodels/internal/model"
	"github.com/roach88/fnmodels/internal/store"
)

// recording is an open trace session. A nil recording records nothing.
type recording struct {
	store    *store.Store
	recorder *store.Recorder
	session  store.Session
}

// startRecording opens the configured trace store and starts a session
// labeled label. It returns nil when no store is configured.
func (o *RootOptions) startRecording(ctx context.Context, label string) (*recording, error) {
	path := o.Config.Store.Path
	if path == "" {
		return nil, nil
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	sess, err := st.CreateSession(ctx, label, o.Config.Hash())
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create trace session", err)
	}
	o.Logger.Info("recording dispatches",
		zap.String("store", path),
		zap.String("session", sess.ID),
		zap.Int64("seq", sess.Seq),
	)

	return &recording{
		store:    st,
		recorder: store.NewRecorder(ctx, st, sess.ID, nil, o.Logger),
		session:  sess,
	}, nil
}

// observer returns the recorder as a dispatcher observer, or nil.
func (r *recording) observer() model.Observer {
	if r == nil {
		return nil
	}
	return r.recorder
}

// harnessOptions returns the run options that attach the recorder.
func (r *recording) harnessOptions(log *zap.Logger) []harness.Option {
	opts := []harness.Option{harness.WithLogger(log)}
	if r != nil {
		opts = append(opts, harness.WithObserver(r.recorder))
	}
	return opts
}

// Close reports the first write error and closes the store.
func (r *recording) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.recorder.Err(), r.store.Close())
}

// applyConfig fills the fields a scenario leaves unset from the
// configuration. The scenario itself is not modified.
func (o *RootOptions) applyConfig(s *harness.Scenario) *harness.Scenario {
	c := *s
	if c.CharWidth == 0 {
		c.CharWidth = o.Config.CharWidth
	}
	if c.MaxCount == 0 {
		c.MaxCount = o.Config.MaxCount
	}
	return &c
}
