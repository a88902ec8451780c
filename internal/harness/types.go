package harness

// TraceEvent is one step as the dispatcher served it.
type TraceEvent struct {
	Seq         int64    `json:"seq"`
	Routine     string   `json:"routine"`
	Route       string   `json:"route"`
	Result      string   `json:"result"`
	Op          string   `json:"op,omitempty"`
	Deferred    bool     `json:"deferred,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Fault       string   `json:"fault,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Scenario is the name of the scenario that ran.
	Scenario string `json:"scenario"`

	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Engine holds what the engine printed: diagnostics and the res1/res2
	// expressions of every step that returned on both sides.
	Engine []string `json:"engine,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
