// Package guest models the address space of the program under analysis.
//
// A Space is sparse, page-backed, little-endian memory with a symbolic
// shadow: every byte may carry a label saying the analysis engine tracks it
// as a symbolic value. Marking is concolic - the concrete byte stays
// readable - so the real library routines and the models can run over the
// same memory.
//
// # Faults
//
// Address 0 and every unmapped page fault. Reads and writes return an error
// wrapping ErrFault instead of crashing the host; the caller decides whether
// that is the expected outcome (a null pointer handed to the real routine)
// or a bug.
//
// # Arguments
//
// Intercepted calls receive their arguments as Arg values: the concrete
// value plus the guest slot the caller spilled it to. The engine is asked
// about the slot, not the pointee, which is how a symbolic address is told
// apart from symbolic contents.
package guest
