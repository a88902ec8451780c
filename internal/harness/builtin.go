package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/fnmodels/internal/model"
)

// builtins are the self-test scenarios: one per modeled routine, each with
// concolic input so the engine serves the call, checked against the real
// routine.
var builtins = []*Scenario{
	copyCase("strcpy", false, nil, "abc"),
	boundedCopyCase("strncpy", false, "123AAAAA"),
	lengthCase("strlen", false),
	compareCase("strcmp", false, ""),
	compareCase("strncmp", false, "4"),
	catCase("strcat", false, nil, "ABCDabc"),
	catCase("strncat", false, []string{"3"}, "ABCD123"),

	copyCase("wcscpy", true, nil, "abc"),
	boundedCopyCase("wcsncpy", true, "123AAAAA"),
	lengthCase("wcslen", true),
	compareCase("wcscmp", true, ""),
	compareCase("wcsncmp", true, "4"),
	catCase("wcscat", true, nil, "ABCDabc"),
	catCase("wcsncat", true, []string{"3"}, "ABCD123"),

	copyCase("memcpy", false, []string{"3"}, "abcAAAAA"),
	compareCase("memcmp", false, "3"),

	checksumCase("crc32", 0xd87f7e0c),
	checksumCase("crc16", 0xdc2e),
}

// BuiltinNames lists the self-test scenarios in run order.
func BuiltinNames() []string {
	names := make([]string, len(builtins))
	for i, s := range builtins {
		names[i] = s.Name
	}
	return names
}

// Builtin returns the self-test scenario for a routine.
func Builtin(name string) (*Scenario, error) {
	for _, s := range builtins {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no builtin scenario for %q (have %s)", name, strings.Join(BuiltinNames(), ", "))
}

func int64Ptr(v int64) *int64 {
	return &v
}

func handled(s *Scenario, ex Expect) *Scenario {
	ex.Equivalent = true
	ex.Route = string(model.RouteHandled)
	s.Steps[0].Expect = ex
	s.Assertions = []Assertion{
		{Type: AssertTraceCount, Routine: s.Name, Route: string(model.RouteHandled), Count: 1},
	}
	return s
}

func describe(name, what string) string {
	return fmt.Sprintf("%s %s through the engine and matches the real routine", name, what)
}

// copyCase copies symbolic "abc" into an 8-unit buffer of 'A'.
func copyCase(name string, wide bool, extra []string, want string) *Scenario {
	return handled(&Scenario{
		Name:        name,
		Description: describe(name, "copies symbolic text"),
		Buffers: []Buffer{
			{Name: "dst", Wide: wide, Units: 8, Fill: "A"},
			{Name: "src", Wide: wide, Text: "abc", Symbolic: true},
		},
		Steps: []Step{{Call: name, Args: append([]string{"dst", "src"}, extra...)}},
	}, Expect{Memory: map[string]string{"dst": want}})
}

// boundedCopyCase copies three units, leaving dest unterminated.
func boundedCopyCase(name string, wide bool, want string) *Scenario {
	return handled(&Scenario{
		Name:        name,
		Description: describe(name, "copies a bounded prefix of symbolic text"),
		Buffers: []Buffer{
			{Name: "dst", Wide: wide, Units: 8, Fill: "A"},
			{Name: "src", Wide: wide, Text: "123", Symbolic: true},
		},
		Steps: []Step{{Call: name, Args: []string{"dst", "src", "3"}}},
	}, Expect{Memory: map[string]string{"dst": want}})
}

func lengthCase(name string, wide bool) *Scenario {
	return handled(&Scenario{
		Name:        name,
		Description: describe(name, "measures symbolic text"),
		Buffers: []Buffer{
			{Name: "s", Wide: wide, Text: "abc", Symbolic: true},
		},
		Steps: []Step{{Call: name, Args: []string{"s"}}},
	}, Expect{Result: int64Ptr(3)})
}

// compareCase compares symbolic "ABCD" with "ABCE"; n bounds the bounded
// forms.
func compareCase(name string, wide bool, n string) *Scenario {
	args := []string{"a", "b"}
	if n != "" {
		args = append(args, n)
	}
	return handled(&Scenario{
		Name:        name,
		Description: describe(name, "compares symbolic text"),
		Buffers: []Buffer{
			{Name: "a", Wide: wide, Text: "ABCD", Symbolic: true},
			{Name: "b", Wide: wide, Text: "ABCE"},
		},
		Steps: []Step{{Call: name, Args: args}},
	}, Expect{})
}

// catCase appends symbolic text to "ABCD" in an 8-unit buffer.
func catCase(name string, wide bool, extra []string, want string) *Scenario {
	src := "abc"
	if len(extra) > 0 {
		src = "123"
	}
	return handled(&Scenario{
		Name:        name,
		Description: describe(name, "appends symbolic text"),
		Buffers: []Buffer{
			{Name: "dst", Wide: wide, Units: 8, Text: "ABCD"},
			{Name: "src", Wide: wide, Text: src, Symbolic: true},
		},
		Steps: []Step{{Call: name, Args: append([]string{"dst", "src"}, extra...)}},
	}, Expect{Memory: map[string]string{"dst": want}})
}

// checksumCase first passes a null buffer, which answers 0 without a
// routine, then chains that value as the seed over "test".
func checksumCase(name string, want int64) *Scenario {
	return &Scenario{
		Name:        name,
		Description: describe(name, "checksums symbolic data"),
		Buffers: []Buffer{
			{Name: "data", Text: "test", Symbolic: true},
		},
		Steps: []Step{
			{
				Call: name,
				Args: []string{"0", ArgNull, "0"},
				Expect: Expect{
					Result: int64Ptr(0),
					Route:  string(model.RouteShortCircuit),
				},
			},
			{
				Call: name,
				Args: []string{ArgPrev, "data", "4"},
				Expect: Expect{
					Equivalent: true,
					Result:     int64Ptr(want),
					Route:      string(model.RouteHandled),
				},
			},
		},
		Assertions: []Assertion{
			{Type: AssertTraceOrder, Routines: []string{name}},
			{Type: AssertTraceCount, Routine: name, Count: 2},
		},
	}
}
