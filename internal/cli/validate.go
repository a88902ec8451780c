package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fnmodels/internal/config"
)

// ValidationError is one configuration problem.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	File   string            `json:"file,omitempty"`
	Valid  bool              `json:"valid"`
	Hash   string            `json:"hash,omitempty"`
	Config *config.Config    `json:"config,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Check a YAML configuration against the schema without running anything.

Every violation is reported with the field it concerns. A valid file
prints the hash recorded with trace sessions that use it; --verbose also
prints the merged configuration. With no argument the file given to
--config is checked.

Examples:
  fnmodels validate fnmodels.yaml
  fnmodels validate fnmodels.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if path == "" {
		return NewExitError(ExitCommandError, "no configuration file: pass one or use --config")
	}

	f.VerboseLog("Validating %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		result := ValidationResult{File: path, Errors: validationErrors(err)}
		if len(result.Errors) == 0 {
			// Unreadable file, not a schema violation.
			return WrapExitError(ExitCommandError, "failed to read configuration", err)
		}
		msg := fmt.Sprintf("%d validation error(s) in %s", len(result.Errors), path)
		return f.Failure(ExitFailure, ErrCodeInvalid, msg, result, func(w io.Writer) {
			fmt.Fprintf(w, "✗ %s\n", path)
			for _, e := range result.Errors {
				if e.Field == "" {
					fmt.Fprintf(w, "  %s\n", e.Message)
					continue
				}
				fmt.Fprintf(w, "  %s: %s\n", e.Field, e.Message)
			}
		})
	}

	result := ValidationResult{File: path, Valid: true, Hash: cfg.Hash()}
	if opts.Verbose {
		result.Config = &cfg
	}
	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is valid (hash %s)\n", path, result.Hash)
		if opts.Verbose {
			fmt.Fprintf(w, "  channel=%s max_count=%d char_width=%d policy=%s\n",
				cfg.Channel, cfg.MaxCount, cfg.CharWidth, cfg.Engine.Policy)
		}
	})
}

// validationErrors flattens the *config.ConfigError values carried by err.
func validationErrors(err error) []ValidationError {
	var out []ValidationError
	var visit func(error)
	visit = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				visit(e)
			}
			return
		}
		var ce *config.ConfigError
		if errors.As(err, &ce) {
			out = append(out, ValidationError{Field: ce.Path, Message: ce.Message})
		}
	}
	visit(err)
	return out
}
