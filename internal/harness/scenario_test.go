package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "oversized.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "oversized", s.Name)
	assert.Equal(t, uint64(4), s.MaxCount)
	assert.Equal(t, 4, s.charWidth())
	require.Len(t, s.Buffers, 2)
	assert.Equal(t, Buffer{Name: "dst", Units: 16, Text: "AB"}, s.Buffers[0])
	require.Len(t, s.Steps, 3)
	assert.Equal(t, Args{"dst", "src", "5"}, s.Steps[0].Args)
	assert.True(t, s.Steps[0].Expect.Equivalent)
	require.NotNil(t, s.Steps[0].Expect.Diagnostics)
	assert.Equal(t, []string{"Size 5 exceeds the modeling limit 4"}, *s.Steps[0].Expect.Diagnostics)
	require.NotNil(t, s.Steps[2].Expect.Diagnostics)
	assert.Empty(t, *s.Steps[2].Expect.Diagnostics)
	assert.Len(t, s.Assertions, 3)
}

func TestLoadScenario_NullKeyword(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "null.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "null", s.Name)
	assert.Equal(t, Args{ArgNull, "src"}, s.Steps[0].Args)
	assert.Equal(t, Args{ArgNull}, s.Steps[1].Args)
	assert.Equal(t, Args{"7", ArgNull, "8"}, s.Steps[5].Args)
}

func TestParseScenario_NullArguments(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: nulls
description: every spelling of a YAML null is the null pointer
buffers:
  - name: src
    text: abc
steps:
  - call: strcpy
    args: [null, src]
  - call: strcmp
    args: [~, "null"]
  - call: strlen
    args:
      -
`))
	require.NoError(t, err)
	assert.Equal(t, Args{ArgNull, "src"}, s.Steps[0].Args)
	assert.Equal(t, Args{ArgNull, ArgNull}, s.Steps[1].Args)
	assert.Equal(t, Args{ArgNull}, s.Steps[2].Args)
}

func TestParseScenario_ArgsMustBeScalars(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: nested
description: nested arguments are rejected
steps:
  - call: strlen
    args: [[a]]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a scalar")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios")
}

func TestLoadDir_NamesBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: x\n"), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: x
stpes: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	const header = "name: x\ndescription: y\n"

	tests := map[string]struct {
		yaml string
		want string
	}{
		"no name": {
			yaml: "description: y\nsteps: [{call: strlen, args: [\"1\"]}]\n",
			want: "name is required",
		},
		"no description": {
			yaml: "name: x\nsteps: [{call: strlen, args: [\"1\"]}]\n",
			want: "description is required",
		},
		"no steps": {
			yaml: header,
			want: "steps list is required",
		},
		"bad width": {
			yaml: header + "char_width: 3\nsteps: [{call: strlen, args: [\"1\"]}]\n",
			want: "char_width must be 2 or 4",
		},
		"bad policy": {
			yaml: header + "policy: sometimes\nsteps: [{call: strlen, args: [\"1\"]}]\n",
			want: "sometimes",
		},
		"unknown routine": {
			yaml: header + "steps: [{call: sprintf, args: []}]\n",
			want: `unknown routine "sprintf"`,
		},
		"arity": {
			yaml: header + "steps: [{call: strcpy, args: [\"1\"]}]\n",
			want: "strcpy takes 2 arguments, got 1",
		},
		"printf needs a format": {
			yaml: header + "steps: [{call: fprintf, args: [stdout]}]\n",
			want: "fprintf takes 2 arguments, got 1",
		},
		"unknown arg": {
			yaml: header + "steps: [{call: strlen, args: [nowhere]}]\n",
			want: "neither a buffer nor an integer",
		},
		"symbolic arg out of range": {
			yaml: header + "steps: [{call: strlen, args: [\"1\"], symbolic_args: [1]}]\n",
			want: "symbolic arg 1 out of range",
		},
		"duplicate buffer": {
			yaml: header + "buffers: [{name: a}, {name: a}]\nsteps: [{call: strlen, args: [a]}]\n",
			want: `duplicate name "a"`,
		},
		"reserved buffer": {
			yaml: header + "buffers: [{name: stdout}]\nsteps: [{call: strlen, args: [\"1\"]}]\n",
			want: `"stdout" is reserved`,
		},
		"long fill": {
			yaml: header + "buffers: [{name: a, fill: AB}]\nsteps: [{call: strlen, args: [a]}]\n",
			want: "fill must be a single character",
		},
		"small buffer": {
			yaml: header + "buffers: [{name: a, units: 3, text: abc}]\nsteps: [{call: strlen, args: [a]}]\n",
			want: "3 units cannot hold",
		},
		"unknown memory buffer": {
			yaml: header + "steps: [{call: strlen, args: [\"1\"], expect: {memory: {b: x}}}]\n",
			want: `unknown buffer "b"`,
		},
		"unknown stream": {
			yaml: header + "steps: [{call: strlen, args: [\"1\"], expect: {output: {tty: x}}}]\n",
			want: `unknown stream "tty"`,
		},
		"assertion without type": {
			yaml: header + "steps: [{call: strlen, args: [\"1\"]}]\nassertions: [{routine: strlen}]\n",
			want: "type is required",
		},
		"unknown assertion": {
			yaml: header + "steps: [{call: strlen, args: [\"1\"]}]\nassertions: [{type: final_state}]\n",
			want: `unknown assertion type "final_state"`,
		},
		"order without routines": {
			yaml: header + "steps: [{call: strlen, args: [\"1\"]}]\nassertions: [{type: trace_order}]\n",
			want: "routines list is required",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseInt(t *testing.T) {
	for raw, want := range map[string]uint64{
		"0":                  0,
		"42":                 42,
		"-1":                 ^uint64(0),
		"0x10":               16,
		"0xffffffffffffffff": ^uint64(0),
	} {
		got, err := parseInt(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := parseInt("ten")
	assert.Error(t, err)
}
