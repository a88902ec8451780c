package cli

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crcJSON(t *testing.T, args ...string) CRCResult {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err)

	var response struct {
		Status string    `json:"status"`
		Data   CRCResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Equal(t, "ok", response.Status)
	return response.Data
}

func TestCRC_Text(t *testing.T) {
	path := writeFile(t, "data.bin", "test")

	out, err := execute(t, "crc", path)
	require.NoError(t, err)
	assert.Equal(t, "crc32 "+path+": 0xd87f7e0c (handled)\n", out)
}

func TestCRC_Algorithms(t *testing.T) {
	path := writeFile(t, "data.bin", "test")

	tests := []struct {
		name string
		args []string
		want uint64
	}{
		{"crc32", []string{"--algo", "crc32"}, 0xd87f7e0c},
		{"crc16", []string{"--algo", "crc16"}, 0xdc2e},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := crcJSON(t, append([]string{"crc", path}, tt.args...)...)
			assert.Equal(t, tt.want, got.Checksum)
			assert.Equal(t, tt.name, got.Algo)
			assert.Equal(t, 4, got.Size)
			assert.Equal(t, "handled", got.Route)
			assert.Empty(t, got.Diagnostics)
		})
	}
}

func TestCRC_SymbolicInputIsHandled(t *testing.T) {
	path := writeFile(t, "data.bin", "test")

	got := crcJSON(t, "crc", path, "--symbolic")
	assert.Equal(t, uint64(0xd87f7e0c), got.Checksum)
	assert.Equal(t, "handled", got.Route)
}

func TestCRC_Chained(t *testing.T) {
	// crc32 of "te" continued over "st" equals crc32 of "test".
	head := crcJSON(t, "crc", writeFile(t, "head.bin", "te"))
	tail := crcJSON(t, "crc", writeFile(t, "tail.bin", "st"), "--init", strconv.FormatUint(head.Checksum, 10))
	assert.Equal(t, uint64(0xd87f7e0c), tail.Checksum)
}

func TestCRC_EmptyFileReturnsSeed(t *testing.T) {
	got := crcJSON(t, "crc", writeFile(t, "empty.bin", ""), "--init", "1234")
	assert.Equal(t, uint64(1234), got.Checksum)
	assert.Equal(t, "handled", got.Route)
}

func TestCRC_DisabledRoutinePassesThrough(t *testing.T) {
	cfg := writeFile(t, "fnmodels.yaml", "disabled_routines: [crc32]\n")
	path := writeFile(t, "data.bin", "test")

	got := crcJSON(t, "--config", cfg, "crc", path)
	assert.Equal(t, uint64(0xd87f7e0c), got.Checksum)
	assert.Equal(t, "passthrough", got.Route)
}

func TestCRC_DeferredByPolicy(t *testing.T) {
	cfg := writeFile(t, "fnmodels.yaml", "engine:\n  policy: defer-all\n")
	path := writeFile(t, "data.bin", "test")

	got := crcJSON(t, "--config", cfg, "crc", path, "--algo", "crc16")
	assert.Equal(t, uint64(0xdc2e), got.Checksum)
	assert.Equal(t, "deferred", got.Route)
}

func TestCRC_Errors(t *testing.T) {
	path := writeFile(t, "data.bin", "test")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing_file", []string{"crc", path + ".missing"}, "failed to read input"},
		{"bad_algo", []string{"crc", path, "--algo", "md5"}, "invalid --algo"},
		{"seed_too_wide", []string{"crc", path, "--algo", "crc16", "--init", "65536"}, "does not fit crc16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}
