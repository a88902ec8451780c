// Package cli implements the fnmodels command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/fnmodels/internal/config"
	"github.com/roach88/fnmodels/internal/logging"
)

// RootOptions holds global flags for all commands, and the configuration
// and logger derived from them before any subcommand runs.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	Config config.Config
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fnmodels CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Config: config.Default(), Logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "fnmodels",
		Short: "Function models for symbolic analysis",
		Long: `Route string, wide-string, memory, checksum and printf-family calls
to a symbolic analysis engine, or to the real routine when the engine
cannot model them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSelftestCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCRCCommand(opts))
	cmd.AddCommand(NewLayoutCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// load reads the configuration and builds the logger. Verbose lowers the
// log level to debug.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	log, err := logging.NewWriter(cmd.ErrOrStderr(), level, cfg.Log.Format)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	o.Config = cfg
	o.Logger = log
	return nil
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
