// Package taint decides whether the arguments of an intercepted call can be
// modeled.
//
// Only the storage of each argument is queried, never what a pointer points
// to: symbolic contents are what the models exist for, while a symbolic
// address or size leaves the model nothing concrete to describe.
package taint

import (
	"fmt"

	"github.com/roach88/fnmodels/internal/guest"
)

// Querier is the engine primitive asking whether a memory region holds a
// symbolic value.
type Querier interface {
	IsSymbolic(addr, size uint64) bool
}

// Class is the verdict for one argument.
type Class int

const (
	Concrete Class = iota
	SymbolicAddress
	SymbolicLength
	SymbolicValue
)

var classNames = [...]string{
	Concrete:        "concrete",
	SymbolicAddress: "symbolic-address",
	SymbolicLength:  "symbolic-length",
	SymbolicValue:   "symbolic-value",
}

// String implements fmt.Stringer.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Supported reports whether a call with this argument may be modeled.
func (c Class) Supported() bool {
	return c == Concrete || c == SymbolicValue
}

// Kind says how a symbolic argument is to be read.
type Kind int

const (
	// Pointer arguments are addresses.
	Pointer Kind = iota
	// Length arguments are sizes or counts.
	Length
	// Value arguments are plain data, such as a checksum seed.
	Value
)

// Input pairs an argument with its kind.
type Input struct {
	Arg  guest.Arg
	Kind Kind
}

// Ptr marks a as a pointer argument.
func Ptr(a guest.Arg) Input { return Input{Arg: a, Kind: Pointer} }

// Len marks a as a length argument.
func Len(a guest.Arg) Input { return Input{Arg: a, Kind: Length} }

// Val marks a as a data argument.
func Val(a guest.Arg) Input { return Input{Arg: a, Kind: Value} }

// Result holds one Class per classified input, in input order.
type Result struct {
	Classes []Class
}

// Classify queries the slot of every input. Inputs without a slot are
// concrete by construction and never reach the engine.
func Classify(q Querier, inputs ...Input) Result {
	res := Result{Classes: make([]Class, len(inputs))}
	for i, in := range inputs {
		if in.Arg.Slot == 0 {
			continue
		}
		size := in.Arg.Size
		if size <= 0 {
			size = guest.PointerSize
		}
		if !q.IsSymbolic(in.Arg.Slot, uint64(size)) {
			continue
		}
		switch in.Kind {
		case Pointer:
			res.Classes[i] = SymbolicAddress
		case Length:
			res.Classes[i] = SymbolicLength
		default:
			res.Classes[i] = SymbolicValue
		}
	}
	return res
}

// Supported reports whether every input is supported.
func (r Result) Supported() bool {
	_, bad := r.Unsupported()
	return !bad
}

// Unsupported returns the first unsupported class, if any. An address
// problem is reported before a length problem.
func (r Result) Unsupported() (Class, bool) {
	found := Concrete
	for _, c := range r.Classes {
		switch c {
		case SymbolicAddress:
			return c, true
		case SymbolicLength:
			found = c
		}
	}
	return found, found != Concrete
}

// Symbolic reports whether any input is symbolic, supported or not.
func (r Result) Symbolic() bool {
	for _, c := range r.Classes {
		if c != Concrete {
			return true
		}
	}
	return false
}

// Diagnostic renders the message for the first unsupported class; subject
// names what the pointers point at, such as "string" or "wide string".
// It is empty when the call is supported.
func (r Result) Diagnostic(subject string) string {
	c, bad := r.Unsupported()
	if !bad {
		return ""
	}
	return Message(c, subject)
}

// Message renders the diagnostic for an unsupported class.
func Message(c Class, subject string) string {
	switch c {
	case SymbolicAddress:
		return fmt.Sprintf("Symbolic address for a %s is not supported yet", subject)
	case SymbolicLength:
		return fmt.Sprintf("Symbolic size for a %s is not supported yet", subject)
	}
	return ""
}
