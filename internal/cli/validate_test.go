package cli

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fnmodels/internal/config"
)

func TestValidateValidConfig(t *testing.T) {
	path := writeFile(t, "fnmodels.yaml", "max_count: 64\ndisabled_routines: [printf]\n")

	want, err := config.Load(path)
	require.NoError(t, err)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid (hash "+want.Hash()+")")
}

func TestValidateValidConfigJSON(t *testing.T) {
	path := writeFile(t, "fnmodels.yaml", "engine:\n  policy: defer-ops\n  defer_ops: [crc]\n")

	out, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var response struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.True(t, response.Data.Valid)
	assert.NotEmpty(t, response.Data.Hash)
	assert.Nil(t, response.Data.Config)
}

func TestValidateVerboseOutput(t *testing.T) {
	path := writeFile(t, "fnmodels.yaml", "char_width: 2\n")

	out, err := execute(t, "--verbose", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "char_width=2")
	assert.Contains(t, out, "policy=handle-all")
}

func TestValidateUsesConfigFlag(t *testing.T) {
	path := writeFile(t, "fnmodels.yaml", "enabled: false\n")

	out, err := execute(t, "--config", path, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path)
}

func TestValidateNoFile(t *testing.T) {
	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateNonExistentFile(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read configuration")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateMultipleErrors(t *testing.T) {
	path := writeFile(t, "fnmodels.yaml", "char_width: 3\nmax_count: 0\n")

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+path)
	assert.Contains(t, out, "char_width")
	assert.Contains(t, out, "max_count")
}

func TestValidateInvalidJSON(t *testing.T) {
	path := writeFile(t, "fnmodels.yaml", "disabled_routines: [strdup]\n")

	out, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)

	var response struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeInvalid, response.Error.Code)
	assert.False(t, response.Data.Valid)
	require.NotEmpty(t, response.Data.Errors)
	assert.Contains(t, response.Data.Errors[0].Field, "disabled_routines")
}

func TestValidateUnknownKey(t *testing.T) {
	path := writeFile(t, "fnmodels.yaml", "max_cnt: 5\n")

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "max_cnt")
}

func TestValidationErrors(t *testing.T) {
	err := errors.Join(
		&config.ConfigError{Path: "char_width", Message: "bad"},
		errors.New("not a config error"),
		&config.ConfigError{Message: "top level"},
	)

	assert.Equal(t, []ValidationError{
		{Field: "char_width", Message: "bad"},
		{Message: "top level"},
	}, validationErrors(err))
	assert.Empty(t, validationErrors(errors.New("read failed")))
}
