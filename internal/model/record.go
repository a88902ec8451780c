package model

import "github.com/roach88/fnmodels/internal/command"

// Route says how a call was served.
type Route string

const (
	// RoutePassthrough: the gate was closed; the real routine ran.
	RoutePassthrough Route = "passthrough"
	// RouteUnsupported: a symbolic address or size; the real routine ran.
	RouteUnsupported Route = "unsupported"
	// RouteDegenerate: a guard matched; the real routine ran.
	RouteDegenerate Route = "degenerate"
	// RouteShortCircuit: a guard answered without any routine running.
	RouteShortCircuit Route = "short-circuit"
	// RouteOversized: the count exceeded the modeling limit.
	RouteOversized Route = "oversized"
	// RouteHandled: the engine served the call.
	RouteHandled Route = "handled"
	// RouteDeferred: the engine declined; the real routine ran.
	RouteDeferred Route = "deferred"
	// RouteScanned: a printf-family format string was scanned.
	RouteScanned Route = "scanned"
	// RouteForwarded: output to a file went to the real formatter.
	RouteForwarded Route = "forwarded"
)

// Routes lists every route.
func Routes() []Route {
	return []Route{
		RoutePassthrough, RouteUnsupported, RouteDegenerate, RouteShortCircuit,
		RouteOversized, RouteHandled, RouteDeferred, RouteScanned, RouteForwarded,
	}
}

// RanOriginal reports whether the real routine was called on this route.
func (r Route) RanOriginal() bool {
	switch r {
	case RoutePassthrough, RouteUnsupported, RouteDegenerate, RouteOversized, RouteDeferred, RouteForwarded:
		return true
	}
	return false
}

// Record describes one intercepted call after it returned.
type Record struct {
	Routine string
	Route   Route

	// Result is the value returned to the caller: a pointer, a length, a
	// sign-extended comparison result or a checksum.
	Result uint64

	// Command is the message as it came back from the engine, nil when
	// none was sent.
	Command *command.Command

	// Diagnostics are the guest-visible messages emitted for this call.
	Diagnostics []string

	// Fault is set when the real routine crashed. The crash still reaches
	// the caller.
	Fault string
}

// Observer receives every Record. Observe runs on the caller's goroutine
// before the intercepted call returns.
type Observer interface {
	Observe(rec Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec Record)

// Observe implements Observer.
func (f ObserverFunc) Observe(rec Record) {
	f(rec)
}

// Observers fans a record out to several observers in order.
type Observers []Observer

// Observe implements Observer.
func (os Observers) Observe(rec Record) {
	for _, o := range os {
		o.Observe(rec)
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Record) {}
