package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/checksum"
	"github.com/roach88/fnmodels/internal/engine"
	"github.com/roach88/fnmodels/internal/gate"
	"github.com/roach88/fnmodels/internal/guest"
	"github.com/roach88/fnmodels/internal/libc"
	"github.com/roach88/fnmodels/internal/model"
)

// CRCOptions holds flags for the crc command.
type CRCOptions struct {
	*RootOptions
	Algo     string
	Init     uint64
	Symbolic bool
}

// CRCResult is the outcome of one checksum call.
type CRCResult struct {
	File        string   `json:"file"`
	Algo        string   `json:"algo"`
	Size        int      `json:"size"`
	Checksum    uint64   `json:"checksum"`
	Route       string   `json:"route"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// NewCRCCommand creates the crc command.
func NewCRCCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CRCOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "crc <file>",
		Short: "Checksum a file through the dispatcher",
		Long: `Load a file into guest memory and checksum it with the crc32 or crc16
model, printing the value and the route the call took.

The engine policy, modeling limit, disabled routines and trace store come
from the configuration.

Examples:
  fnmodels crc firmware.bin
  fnmodels crc firmware.bin --algo crc16 --init 0xffff
  fnmodels crc payload --symbolic --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCRC(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Algo, "algo", "crc32", "checksum algorithm (crc32|crc16)")
	cmd.Flags().Uint64Var(&opts.Init, "init", 0, "initial checksum value")
	cmd.Flags().BoolVar(&opts.Symbolic, "symbolic", false, "mark the file contents symbolic")

	return cmd
}

func runCRC(ctx context.Context, opts *CRCOptions, file string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	algo, err := checksum.ParseType(opts.Algo)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --algo", err)
	}
	if limit := uint64(1)<<(8*algo.Width()) - 1; opts.Init > limit {
		return NewExitError(ExitCommandError, fmt.Sprintf("--init %#x does not fit %s", opts.Init, algo))
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s is too large to checksum", file))
	}

	rec, err := opts.startRecording(ctx, "crc "+file)
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			opts.Logger.Warn("close trace store", zap.Error(err))
		}
	}()

	var last model.Record
	capture := model.ObserverFunc(func(r model.Record) { last = r })

	space := guest.NewSpace()
	lib := libc.New(space, libc.NewStreams(io.Discard, io.Discard), libc.WithWideWidth(opts.Config.CharWidth))
	d, err := opts.newDispatcher(space, lib, capture, rec.observer())
	if err != nil {
		return err
	}

	buf := space.Alloc(uint64(len(data)))
	if err := space.Write(buf, data); err != nil {
		return WrapExitError(ExitCommandError, "failed to load input", err)
	}
	if opts.Symbolic && len(data) > 0 {
		if err := space.MakeSymbolic(buf, uint64(len(data)), "file"); err != nil {
			return WrapExitError(ExitCommandError, "failed to mark input symbolic", err)
		}
	}

	seed := space.Spill(opts.Init, algo.Width())
	ptr := space.SpillPointer(buf)
	n := space.Spill(uint64(len(data)), 4)
	var sum uint64
	err = libc.Catch(func() {
		switch algo {
		case checksum.CRC16:
			sum = uint64(d.Crc16(seed, ptr, n))
		default:
			sum = uint64(d.Crc32(seed, ptr, n))
		}
	})
	if err != nil {
		return WrapExitError(ExitFailure, "checksum crashed", err)
	}
	opts.Logger.Debug("checksum",
		zap.String("algo", algo.String()),
		zap.Int("size", len(data)),
		zap.String("route", string(last.Route)),
	)

	result := CRCResult{
		File:        file,
		Algo:        algo.String(),
		Size:        len(data),
		Checksum:    sum,
		Route:       string(last.Route),
		Diagnostics: last.Diagnostics,
	}
	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s: %#0*x (%s)\n", result.Algo, file, 2*algo.Width(), sum, result.Route)
		for _, msg := range result.Diagnostics {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	})
}

// newDispatcher builds an in-process engine over space and a dispatcher
// configured from the loaded configuration. The real routines come from lib.
// Nil observers are skipped.
func (o *RootOptions) newDispatcher(space *guest.Space, lib *libc.Library, observers ...model.Observer) (*model.Dispatcher, error) {
	cfg := o.Config
	policy, err := engine.ParsePolicy(cfg.Engine.Policy, cfg.Engine.DeferOps)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid engine policy", err)
	}

	local := engine.NewLocal(space, engine.WithLogger(o.Logger))
	local.Handle(cfg.Channel, engine.NewExecutor(space, policy, o.Logger))

	g := gate.New(cfg.Enabled)
	g.Exclude(cfg.DisabledRoutines...)

	opts := []model.Option{
		model.WithGate(g),
		model.WithChannel(cfg.Channel),
		model.WithMaxCount(cfg.MaxCount),
		model.WithCharWidth(cfg.CharWidth),
		model.WithLogger(o.Logger),
	}
	var fanout model.Observers
	for _, obs := range observers {
		if obs != nil {
			fanout = append(fanout, obs)
		}
	}
	if len(fanout) > 0 {
		opts = append(opts, model.WithObserver(fanout))
	}
	return model.New(local, space, lib, opts...), nil
}
