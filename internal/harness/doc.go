// Package harness runs differential scenarios against the dispatcher.
//
// Every step of a scenario is executed twice from the same memory image:
// through a model.Dispatcher backed by an in-process engine, and through
// the real routine on a clone of the address space. Expectations compare
// the two, or pin the dispatcher's route, result, diagnostics, memory and
// output.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: strncat_oversized
//	description: "What this scenario validates"
//	char_width: 4          # sizeof(wchar_t), 2 or 4
//	max_count: 4           # oversized-count threshold
//	policy: handle-all     # or defer-all, defer-ops
//	defer_ops: [strcmp]    # with policy defer-ops
//	disabled: false        # start with the gate closed
//	buffers:
//	  - name: dst
//	    units: 8
//	    fill: A
//	  - name: src
//	    wide: true
//	    text: abc
//	    symbolic: true
//	steps:
//	  - call: strncat
//	    args: [dst, src, "5"]
//	    symbolic_args: [2]
//	    expect:
//	      equivalent: true
//	      route: oversized
//	      result: 0
//	      diagnostics: ["Size 5 exceeds the modeling limit 4"]
//	      memory: { dst: "AAAA" }
//	      output: { stdout: "" }
//	      fault: false
//	assertions:
//	  - type: trace_count
//	    routine: strncat
//	    route: oversized
//	    count: 1
//
// Arguments are buffer names, integers, or one of null, stdout, stderr,
// file and $prev, the previous step's result.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies a routine appears in the trace, optionally on a route
//   - trace_order: Verifies routines appear in specified order
//   - trace_count: Verifies a routine appears exactly N times
//
// # Deterministic Testing
//
// Allocation in a fresh address space is deterministic, results equal to
// the destination print as "dest", and trace events are numbered by a
// logical clock, so traces can be compared with golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/oversized.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
