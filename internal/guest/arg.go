package guest

// PointerSize is the size of a guest pointer and of size_t.
const PointerSize = 8

// Arg is one argument of an intercepted call.
//
// Value is what the callee received. Slot is the guest address the caller
// spilled the value to and Size its width; the engine is asked about the
// slot so a symbolic pointer value can be detected without looking at the
// pointee. Slot 0 means the value never lived in guest memory and is
// concrete by construction.
type Arg struct {
	Value uint64
	Slot  uint64
	Size  int
}

// Const wraps a value that has no guest slot.
func Const(v uint64) Arg {
	return Arg{Value: v}
}

// IsNull reports whether the argument is a null pointer.
func (a Arg) IsNull() bool {
	return a.Value == 0
}

// Spill allocates a slot of the given size, stores v there and returns the
// matching Arg. This is what the caller's stack frame looks like to the
// engine.
func (s *Space) Spill(v uint64, size int) Arg {
	slot := s.Alloc(uint64(size))
	_ = s.PutUint(slot, size, v)
	return Arg{Value: v, Slot: slot, Size: size}
}

// SpillPointer spills a pointer-sized value.
func (s *Space) SpillPointer(v uint64) Arg {
	return s.Spill(v, PointerSize)
}
