// Package engine is the boundary between the dispatcher and the analysis
// engine.
//
// The dispatcher consumes four primitives, collected in the Engine
// interface: a taint query, a blocking command round trip, and two
// best-effort logging hooks. Everything behind that interface (symbolic
// tracking, constraint solving, the decision to handle or defer) belongs
// to the engine.
//
// ARCHITECTURE:
//
// Channel Multiplexing:
// Commands are addressed to a named channel. Mux routes a message to the
// Handler registered for that channel; the function-model protocol uses
// command.Channel. A message for an unknown channel is left untouched, so
// its defer flag stays set and the caller runs the real routine.
//
// In-process Engine:
// Local implements Engine over a guest.Space. Symbolic queries read the
// space's shadow; messages go to zap and are retained with a logical
// sequence number for inspection by tests and traces.
//
// Concrete Executor:
// Executor is a Handler for the function-model channel that performs each
// command on concrete guest memory. A Policy decides per command whether
// it handles the operation (clearing the defer flag) or declines it.
//
// CRITICAL PATTERNS:
//
// Round trips are synchronous. Invoke returns only after the handler has
// rewritten the message in place; there is no queue and no cancellation.
//
// Handlers never fail the caller. A handler error is reported to Invoke's
// caller for logging, and the message keeps whatever defer flag it had.
package engine
