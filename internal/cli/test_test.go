package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lengthScenario = `name: length
description: "strlen of concolic text is served by the engine"
buffers:
  - name: s
    text: hello
    symbolic: true
steps:
  - call: strlen
    args: [s]
    expect:
      equivalent: true
      route: handled
      result: 5
`

const wrongLengthScenario = `name: wrong-length
description: "an expectation that cannot hold"
buffers:
  - name: s
    text: hello
steps:
  - call: strlen
    args: [s]
    expect:
      result: 4
`

// scenarioDir creates a directory holding the given scenario files.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandPasses(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"length.yaml": lengthScenario})

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ length (1 steps)")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandFails(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"length.yaml": lengthScenario,
		"wrong.yaml":  wrongLengthScenario,
	})

	out, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeFailed, response.Error.Code)
	assert.Equal(t, 2, response.Data.Total)
	assert.Equal(t, 1, response.Data.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range response.Data.Scenarios {
		byName[s.Name] = s
	}
	assert.True(t, byName["length"].Pass)
	assert.False(t, byName["wrong-length"].Pass)
	assert.Contains(t, byName["wrong-length"].Errors[0], "result: expected 4, got 5")
}

func TestTestCommandFilter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"length.yaml": lengthScenario,
		"wrong.yaml":  wrongLengthScenario,
	})

	out, err := execute(t, "test", dir, "--filter", "len*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandGolden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"length.yaml": lengthScenario})
	golden := filepath.Join(dir, "golden", "length.golden")

	_, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	require.FileExists(t, golden)

	_, err = execute(t, "test", dir)
	require.NoError(t, err, "trace must match the golden it just wrote")

	require.NoError(t, os.WriteFile(golden, []byte("{}"), 0o644))
	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandRecordsSessions(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"length.yaml": lengthScenario})
	db := filepath.Join(t.TempDir(), "trace.db")
	cfg := writeFile(t, "fnmodels.yaml", "store:\n  path: "+db+"\n")

	_, err := execute(t, "--config", cfg, "test", dir)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)

	var response struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "test "+dir, response.Data.Label)
	require.Len(t, response.Data.Timeline, 1)
	assert.Equal(t, "strlen", response.Data.Timeline[0].Routine)
	assert.Equal(t, "handled", response.Data.Timeline[0].Route)
	assert.Equal(t, uint64(5), response.Data.Timeline[0].Result)
}

func TestFindScenarioFiles(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"a.yaml":      "",
		"b.yml":       "",
		"notes.txt":   "",
		"strcmp.yaml": "",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c.yaml"), nil, 0o644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "strcmp.yaml"),
		filepath.Join(dir, "b.yml"),
	}, files)

	files, err = findScenarioFiles(dir, "str*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "strcmp.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "strcmp.golden"),
		goldenFilePath(filepath.Join("scenarios", "strcmp.yaml")))
	assert.Equal(t, "strcmp", scenarioName("/tmp/strcmp.yml"))
}
