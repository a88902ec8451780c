package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fnmodels/internal/command"
	"github.com/roach88/fnmodels/internal/engine"
)

// Scenario is a differential test: every step runs once through the
// dispatcher and once through the real routine on a copy of the same memory.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// CharWidth is sizeof(wchar_t). Defaults to 4.
	CharWidth int `yaml:"char_width,omitempty"`

	// MaxCount overrides the oversized-count threshold.
	MaxCount uint64 `yaml:"max_count,omitempty"`

	// Policy is the engine policy: handle-all (default), defer-all or
	// defer-ops with DeferOps.
	Policy   string   `yaml:"policy,omitempty"`
	DeferOps []string `yaml:"defer_ops,omitempty"`

	// Disabled starts the dispatcher with its gate closed.
	Disabled bool `yaml:"disabled,omitempty"`

	// Buffers are allocated in order before the first step.
	Buffers []Buffer `yaml:"buffers"`

	// Steps are the calls under test.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Buffer is a named region of guest memory.
type Buffer struct {
	Name string `yaml:"name"`

	// Wide buffers hold units of CharWidth bytes.
	Wide bool `yaml:"wide,omitempty"`

	// Units is the capacity. Defaults to the text length plus terminator.
	Units uint64 `yaml:"units,omitempty"`

	// Fill is a single character written to every unit first.
	Fill string `yaml:"fill,omitempty"`

	// Text is written at the start of the buffer followed by a NUL unit.
	Text string `yaml:"text,omitempty"`

	// Symbolic marks the text units (not the terminator) concolic.
	Symbolic bool `yaml:"symbolic,omitempty"`
}

// Step is one intercepted call.
type Step struct {
	// Call is the routine name.
	Call string `yaml:"call"`

	// Args are buffer names, integers, or one of null, stdout, stderr,
	// file and $prev (the previous step's result).
	Args Args `yaml:"args"`

	// SymbolicArgs lists argument indexes whose slots are symbolic.
	SymbolicArgs []int `yaml:"symbolic_args,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Args is the argument list of a step. A bare YAML null (null, ~ or an
// empty item) stands for the null pointer.
type Args []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Args) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: args must be a list", node.Line)
	}
	out := make(Args, len(node.Content))
	for i, n := range node.Content {
		if n.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: argument %d must be a scalar", n.Line, i)
		}
		if n.ShortTag() == "!!null" {
			out[i] = ArgNull
			continue
		}
		out[i] = n.Value
	}
	*a = out
	return nil
}

// Expect lists what a step must satisfy. Unset fields are not checked.
type Expect struct {
	// Equivalent requires the dispatcher and the real routine to agree on
	// the result (its sign for comparisons), every buffer and faulting.
	Equivalent bool `yaml:"equivalent,omitempty"`

	// Result is the exact value returned by the dispatcher.
	Result *int64 `yaml:"result,omitempty"`

	// Route is the dispatcher route.
	Route string `yaml:"route,omitempty"`

	// Diagnostics are the messages emitted, in order. An empty list
	// requires silence.
	Diagnostics *[]string `yaml:"diagnostics,omitempty"`

	// Memory maps buffer names to the string they hold afterwards.
	Memory map[string]string `yaml:"memory,omitempty"`

	// Output maps stdout, stderr or file to everything written so far.
	Output map[string]string `yaml:"output,omitempty"`

	// Fault requires the call to crash.
	Fault bool `yaml:"fault,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type is trace_contains, trace_order or trace_count.
	Type string `yaml:"type"`

	// Routine is used by trace_contains and trace_count.
	Routine string `yaml:"routine,omitempty"`

	// Route narrows trace_contains and trace_count when set.
	Route string `yaml:"route,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Routines is the expected order (trace_order).
	Routines []string `yaml:"routines,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// Special argument names.
const (
	ArgNull   = "null"
	ArgStdout = "stdout"
	ArgStderr = "stderr"
	ArgFile   = "file"
	ArgPrev   = "$prev"
)

// Output stream names.
var outputNames = []string{ArgStdout, ArgStderr, ArgFile}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (s *Scenario) charWidth() int {
	if s.CharWidth == 0 {
		return 4
	}
	return s.CharWidth
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if w := s.charWidth(); w != 2 && w != 4 {
		return fmt.Errorf("char_width must be 2 or 4, got %d", w)
	}
	if _, err := engine.ParsePolicy(s.Policy, s.DeferOps); err != nil {
		return err
	}

	names := map[string]bool{}
	for i, b := range s.Buffers {
		switch {
		case b.Name == "":
			return fmt.Errorf("buffers[%d]: name is required", i)
		case reservedArg(b.Name):
			return fmt.Errorf("buffers[%d]: %q is reserved", i, b.Name)
		case names[b.Name]:
			return fmt.Errorf("buffers[%d]: duplicate name %q", i, b.Name)
		case len([]rune(b.Fill)) > 1:
			return fmt.Errorf("buffers[%d]: fill must be a single character", i)
		case b.Units != 0 && b.Units < uint64(len([]rune(b.Text)))+1:
			return fmt.Errorf("buffers[%d]: %d units cannot hold %q", i, b.Units, b.Text)
		}
		names[b.Name] = true
	}

	for i, step := range s.Steps {
		if step.Call == "" {
			return fmt.Errorf("steps[%d]: call is required", i)
		}
		rt, ok := routines[step.Call]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown routine %q", i, step.Call)
		}
		if !rt.accepts(len(step.Args)) {
			return fmt.Errorf("steps[%d]: %s takes %d arguments, got %d", i, step.Call, rt.arity, len(step.Args))
		}
		for j, arg := range step.Args {
			if !names[arg] && !reservedArg(arg) {
				if _, err := parseInt(arg); err != nil {
					return fmt.Errorf("steps[%d].args[%d]: %w", i, j, err)
				}
			}
		}
		for _, idx := range step.SymbolicArgs {
			if idx < 0 || idx >= len(step.Args) {
				return fmt.Errorf("steps[%d]: symbolic arg %d out of range", i, idx)
			}
		}
		for name := range step.Expect.Memory {
			if !names[name] {
				return fmt.Errorf("steps[%d].expect.memory: unknown buffer %q", i, name)
			}
		}
		for name := range step.Expect.Output {
			if !isOutput(name) {
				return fmt.Errorf("steps[%d].expect.output: unknown stream %q", i, name)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

func reservedArg(name string) bool {
	switch name {
	case ArgNull, ArgStdout, ArgStderr, ArgFile, ArgPrev:
		return true
	}
	return false
}

func isOutput(name string) bool {
	for _, n := range outputNames {
		if n == name {
			return true
		}
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Routine == "" {
			return fmt.Errorf("assertions[%d]: routine is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Routines) == 0 {
			return fmt.Errorf("assertions[%d]: routines list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Routine == "" {
			return fmt.Errorf("assertions[%d]: routine is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// opName is the trace name of a command op.
func opName(cmd *command.Command) string {
	if cmd == nil {
		return ""
	}
	return cmd.Op.String()
}
