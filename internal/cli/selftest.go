package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/fnmodels/internal/harness"
)

// NewSelftestCommand creates the selftest command.
func NewSelftestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest [routine...]",
		Short: "Check every model against the real routine",
		Long: `Run the built-in scenario of each modeled routine.

Every scenario feeds concolic input through the dispatcher, expects the
engine to serve the call, and compares the result and the memory it
leaves behind with the real routine. With no arguments all routines are
checked; scenarios run concurrently.

Examples:
  fnmodels selftest
  fnmodels selftest strncat wcsncat
  fnmodels selftest --config fnmodels.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest(cmd.Context(), rootOpts, args, cmd)
		},
	}
	return cmd
}

func runSelftest(ctx context.Context, opts *RootOptions, names []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(names) == 0 {
		names = harness.BuiltinNames()
	}

	scenarios := make([]*harness.Scenario, len(names))
	for i, name := range names {
		s, err := harness.Builtin(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "unknown routine", err)
		}
		scenarios[i] = opts.applyConfig(s)
	}

	rec, err := opts.startRecording(ctx, "selftest")
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			opts.Logger.Warn("close trace store", zap.Error(err))
		}
	}()

	results := make([]ScenarioResult, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := harness.Run(s, rec.harnessOptions(opts.Logger)...)
			if err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			results[i] = ScenarioResult{
				Name:   s.Name,
				Pass:   result.Pass,
				Steps:  len(result.Trace),
				Errors: result.Errors,
			}
			opts.Logger.Debug("selftest", zap.String("routine", s.Name), zap.Bool("pass", result.Pass))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "selftest could not run", err)
	}

	summary := TestResult{Scenarios: make([]ScenarioResult, 0, len(results))}
	for _, r := range results {
		summary.add(r)
	}

	f := opts.formatter(cmd)
	if !f.JSON() {
		w := cmd.OutOrStdout()
		for _, r := range summary.Scenarios {
			printScenario(w, r)
		}
	}
	if summary.Failed > 0 {
		msg := fmt.Sprintf("%d routine(s) disagree with the real implementation", summary.Failed)
		return f.Failure(ExitFailure, ErrCodeFailed, msg, summary, func(w io.Writer) {
			fmt.Fprintf(w, "\n%d passed, %d failed\n", summary.Passed, summary.Failed)
		})
	}
	return f.Success(summary, func(w io.Writer) {
		fmt.Fprintf(w, "\n✓ %d routine(s) match the real implementation\n", summary.Passed)
	})
}
