package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fnmodels/internal/command"
	"github.com/roach88/fnmodels/internal/store"
)

// seedTrace writes two sessions and returns the database path and the ID of
// the latest session.
func seedTrace(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trace.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	old, err := st.CreateSession(ctx, "old", "aaaa")
	require.NoError(t, err)
	require.NoError(t, st.WriteDispatch(ctx, store.Dispatch{
		SessionID: old.ID, Seq: 1, Routine: "strlen", Route: "passthrough", Result: 3,
	}))

	sess, err := st.CreateSession(ctx, "selftest", "bbbb")
	require.NoError(t, err)
	dispatches := []store.Dispatch{
		{
			SessionID: sess.ID, Seq: 1, Routine: "strcmp", Route: "deferred",
			Result:  ^uint64(0),
			Command: &command.Command{Op: command.OpStrcmp, First: 0x1000, Second: 0x2000, Defer: true},
		},
		{
			SessionID: sess.ID, Seq: 2, Routine: "strlen", Route: "handled", Result: 3,
			Command: &command.Command{Op: command.OpStrlen, First: 0x1000, Result: 3},
		},
		{
			SessionID: sess.ID, Seq: 3, Routine: "strcpy", Route: "unsupported", Result: 0x3000,
			Diagnostics: []string{"Symbolic address for a string is not supported yet"},
		},
		{
			SessionID: sess.ID, Seq: 4, Routine: "strlen", Route: "degenerate",
			Fault: "strlen: guest: fault at 0x0",
		},
	}
	for _, d := range dispatches {
		require.NoError(t, st.WriteDispatch(ctx, d))
	}
	return path, sess.ID
}

func TestTraceMissingDatabase(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trace database")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")

	_, err := execute(t, "trace", "--db", db)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no sessions")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceUnknownSessionJSON(t *testing.T) {
	db, _ := seedTrace(t)

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--session", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeNotFound, response.Error.Code)
}

func TestTraceLatestSession(t *testing.T) {
	db, id := seedTrace(t)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Session: "+truncateID(id)+" (selftest)")
	assert.Contains(t, out, "[1] strcmp deferred -> -1")
	assert.Contains(t, out, "[2] strlen handled -> 3")
	assert.Contains(t, out, "[3] strcpy unsupported -> 0x3000")
	assert.Contains(t, out, "       Symbolic address for a string is not supported yet")
	assert.Contains(t, out, "[4] strlen degenerate -> fault: strlen: guest: fault at 0x0")
	assert.Contains(t, out, "unsupported=1 degenerate=1 handled=1 deferred=1")
	assert.NotContains(t, out, "Command:")
}

func TestTraceVerboseShowsCommands(t *testing.T) {
	db, _ := seedTrace(t)

	out, err := execute(t, "--verbose", "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Config:  bbbb")
	assert.Contains(t, out, "Command: ")
}

func TestTraceRoutineFilterJSON(t *testing.T) {
	db, id := seedTrace(t)

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--session", id, "--routine", "strlen")
	require.NoError(t, err)

	var response struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, id, response.Data.Session)
	assert.Equal(t, "bbbb", response.Data.ConfigHash)

	require.Len(t, response.Data.Timeline, 2)
	assert.Equal(t, int64(2), response.Data.Timeline[0].Seq)
	assert.Equal(t, int64(4), response.Data.Timeline[1].Seq)
	assert.NotEmpty(t, response.Data.Timeline[0].Command)
	assert.Empty(t, response.Data.Timeline[1].Command)

	// The tally covers the whole session.
	assert.Equal(t, map[string]int{"deferred": 1, "handled": 1, "unsupported": 1, "degenerate": 1}, response.Data.Routes)
}

func TestTraceOldSession(t *testing.T) {
	ctx := context.Background()
	db, _ := seedTrace(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	sessions, err := st.Sessions(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, sessions, 2)

	out, err := execute(t, "trace", "--db", db, "--session", sessions[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "(old)")
	assert.Contains(t, out, "[1] strlen passthrough -> 3")
	assert.Contains(t, out, "passthrough=1")
}

func TestBuildTimeline(t *testing.T) {
	timeline := buildTimeline([]store.Dispatch{
		{Seq: 7, Routine: "memcpy", Route: "handled", Result: 0x10, Command: &command.Command{Op: command.OpMemcpy}},
	})
	require.Len(t, timeline, 1)
	assert.Equal(t, int64(7), timeline[0].Seq)
	assert.False(t, timeline[0].Deferred)
	assert.Contains(t, timeline[0].Command, "memcpy")

	assert.Empty(t, buildTimeline(nil))
	assert.NotNil(t, buildTimeline(nil))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		ev   TraceEvent
		want string
	}{
		{TraceEvent{Routine: "strcmp", Result: ^uint64(0)}, "-1"},
		{TraceEvent{Routine: "wcslen", Result: 4}, "4"},
		{TraceEvent{Routine: "printf", Result: 0}, "0"},
		{TraceEvent{Routine: "crc32", Result: 0xd87f7e0c}, "0xd87f7e0c"},
		{TraceEvent{Routine: "strcpy", Result: 0x2000}, "0x2000"},
		{TraceEvent{Routine: "strcpy", Fault: "boom"}, "fault: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.ev))
		})
	}
}

func TestFormatRoutes(t *testing.T) {
	assert.Equal(t, "(none)", formatRoutes(nil))
	assert.Equal(t, "handled=2 scanned=1 zzz=1",
		formatRoutes(map[string]int{"scanned": 1, "handled": 2, "zzz": 1}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "0b6f6c1e", truncateID("0b6f6c1e-7d2a-4a55-9b1e-8c1f2d3e4f50"))
}
