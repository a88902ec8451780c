package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fnmodels/internal/model"
	"github.com/roach88/fnmodels/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // empty selects the latest session
	Routine  string // optional - filter to one routine
}

// TraceEvent is one recorded call in the timeline.
type TraceEvent struct {
	Seq         int64    `json:"seq"`
	Routine     string   `json:"routine"`
	Route       string   `json:"route"`
	Result      uint64   `json:"result"`
	Command     string   `json:"command,omitempty"`
	Deferred    bool     `json:"deferred,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Fault       string   `json:"fault,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session    string         `json:"session"`
	Label      string         `json:"label"`
	ConfigHash string         `json:"config_hash"`
	Timeline   []TraceEvent   `json:"timeline"`
	Routes     map[string]int `json:"routes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded dispatches",
		Long: `Show the calls recorded in a trace database.

Each entry is one intercepted call with the route it took, the value it
returned and, with --verbose, the command exchanged with the engine. The
route tally covers the whole session even when --routine filters the
timeline.

Examples:
  fnmodels trace --db ./trace.db
  fnmodels trace --db ./trace.db --session 0b6f6c1e-... --routine strcmp
  fnmodels trace --db ./trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to store.path)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show (defaults to the latest)")
	cmd.Flags().StringVar(&opts.Routine, "routine", "", "filter to a single routine")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	path := opts.Database
	if path == "" {
		path = opts.Config.Store.Path
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no trace database: pass --db or set store.path")
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sess, err := st.Session(ctx, opts.Session)
	if errors.Is(err, store.ErrNotFound) {
		return f.Failure(ExitCommandError, ErrCodeNotFound, err.Error(), nil, nil)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	dispatches, err := st.ReadDispatches(ctx, sess.ID, opts.Routine)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read dispatches", err)
	}
	routes, err := st.RouteCounts(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count routes", err)
	}

	result := TraceResult{
		Session:    sess.ID,
		Label:      sess.Label,
		ConfigHash: sess.ConfigHash,
		Timeline:   buildTimeline(dispatches),
		Routes:     routes,
	}

	return f.Success(result, func(w io.Writer) {
		writeTraceText(w, result, opts.Verbose)
	})
}

// buildTimeline converts stored dispatches to timeline events.
func buildTimeline(dispatches []store.Dispatch) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(dispatches))
	for _, d := range dispatches {
		ev := TraceEvent{
			Seq:         d.Seq,
			Routine:     d.Routine,
			Route:       d.Route,
			Result:      d.Result,
			Diagnostics: d.Diagnostics,
			Fault:       d.Fault,
		}
		if d.Command != nil {
			ev.Command = d.Command.String()
			ev.Deferred = d.Command.Defer
		}
		timeline = append(timeline, ev)
	}
	return timeline
}

// writeTraceText renders the trace result as text.
func writeTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Session: %s (%s)\n", truncateID(result.Session), result.Label)
	if verbose {
		fmt.Fprintf(w, "Config:  %s\n", result.ConfigHash)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no calls)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Routes ===")
	fmt.Fprintf(w, "  %s\n", formatRoutes(result.Routes))
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, ev TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s %s -> %s\n", ev.Seq, ev.Routine, ev.Route, formatValue(ev))
	for _, msg := range ev.Diagnostics {
		fmt.Fprintf(w, "       %s\n", msg)
	}
	if verbose && ev.Command != "" {
		fmt.Fprintf(w, "       Command: %s\n", ev.Command)
	}
}

// formatValue renders what the call produced: the fault when the real
// routine crashed, a signed decimal for lengths and comparisons, otherwise
// hex.
func formatValue(ev TraceEvent) string {
	if ev.Fault != "" {
		return "fault: " + ev.Fault
	}
	if strings.Contains(ev.Routine, "cmp") || strings.Contains(ev.Routine, "len") || strings.Contains(ev.Routine, "printf") {
		return strconv.FormatInt(int64(ev.Result), 10)
	}
	return fmt.Sprintf("%#x", ev.Result)
}

// formatRoutes renders the tally in route order, skipping routes never
// taken.
func formatRoutes(counts map[string]int) string {
	if len(counts) == 0 {
		return "(none)"
	}
	known := make(map[string]bool)
	var parts []string
	for _, r := range model.Routes() {
		known[string(r)] = true
		if n := counts[string(r)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", r, n))
		}
	}
	var extra []string
	for r, n := range counts {
		if !known[r] {
			extra = append(extra, fmt.Sprintf("%s=%d", r, n))
		}
	}
	sort.Strings(extra)
	return strings.Join(append(parts, extra...), " ")
}

// truncateID shortens a session ID for display.
func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
