package model

import (
	"github.com/roach88/fnmodels/internal/binding"
	"github.com/roach88/fnmodels/internal/checksum"
	"github.com/roach88/fnmodels/internal/command"
	"github.com/roach88/fnmodels/internal/guest"
	"github.com/roach88/fnmodels/internal/libc"
	"github.com/roach88/fnmodels/internal/taint"
)

// call is an intercepted call with its arguments in declaration order.
type call struct {
	args []guest.Arg
}

// count returns the length argument of bounded routines.
func (c *call) count() uint64 {
	if len(c.args) < 3 {
		return 0
	}
	return c.args[2].Value
}

type guardOutcome int

const (
	guardProceed guardOutcome = iota
	guardDegenerate
	guardShortCircuit
	guardOversized
)

type guardResult struct {
	outcome guardOutcome
	value   uint64
	reason  string
}

var proceed = guardResult{outcome: guardProceed}

func degenerate(reason string) guardResult {
	return guardResult{outcome: guardDegenerate, reason: reason}
}

func shortCircuit(value uint64, reason string) guardResult {
	return guardResult{outcome: guardShortCircuit, value: value, reason: reason}
}

// zeroPolicy is what a bounded routine does with a count of 0.
type zeroPolicy int

const (
	// zeroDegenerate hands the call to the real routine.
	zeroDegenerate zeroPolicy = iota
	// zeroReturns answers at once: the destination for copies, 0 for
	// comparisons.
	zeroReturns
)

// variant is one routine family at one character width. Each holds the
// slot of the real routine it falls back to.
type variant interface {
	name() string
	subject() string
	classify(q taint.Querier, c *call) taint.Result
	guard(d *Dispatcher, c *call) guardResult
	buildCommand(d *Dispatcher, c *call) command.Command
	result(c *call, cmd command.Command) uint64
	fallback(c *call) uint64
	probesResult() bool
}

// family carries what all variants share.
type family struct {
	routine string
	width   int
}

func (f family) name() string { return f.routine }

func (f family) subject() string {
	if f.width > 1 {
		return "wide string"
	}
	return "string"
}

func (f family) probesResult() bool { return false }

func nullPair(c *call) bool {
	return c.args[0].IsNull() || c.args[1].IsNull()
}

// copyVariant: strcpy, strcat and their wide forms.
type copyVariant struct {
	family
	op   command.Op
	slot *binding.Slot[libc.CopyFunc]
}

func newCopy(set *binding.Set, name string, op command.Op, width int) *copyVariant {
	return &copyVariant{
		family: family{routine: name, width: width},
		op:     op,
		slot:   binding.Add[libc.CopyFunc](set, name),
	}
}

func (v *copyVariant) classify(q taint.Querier, c *call) taint.Result {
	return taint.Classify(q, taint.Ptr(c.args[0]), taint.Ptr(c.args[1]))
}

func (v *copyVariant) guard(_ *Dispatcher, c *call) guardResult {
	if nullPair(c) {
		return degenerate("null pointer")
	}
	return proceed
}

func (v *copyVariant) buildCommand(_ *Dispatcher, c *call) command.Command {
	return command.Command{Op: v.op, First: c.args[0].Value, Second: c.args[1].Value, CharSize: uint32(v.width)}
}

func (v *copyVariant) result(c *call, _ command.Command) uint64 {
	return c.args[0].Value
}

func (v *copyVariant) fallback(c *call) uint64 {
	return v.slot.Func()(c.args[0].Value, c.args[1].Value)
}

// boundedCopyVariant: strncpy, strncat, memcpy and the wide forms.
type boundedCopyVariant struct {
	family
	op      command.Op
	zero    zeroPolicy
	limited bool
	slot    *binding.Slot[libc.BoundedCopyFunc]
}

func newBoundedCopy(set *binding.Set, name string, op command.Op, width int, zero zeroPolicy, limited bool) *boundedCopyVariant {
	return &boundedCopyVariant{
		family:  family{routine: name, width: width},
		op:      op,
		zero:    zero,
		limited: limited,
		slot:    binding.Add[libc.BoundedCopyFunc](set, name),
	}
}

func (v *boundedCopyVariant) classify(q taint.Querier, c *call) taint.Result {
	return taint.Classify(q, taint.Ptr(c.args[0]), taint.Ptr(c.args[1]), taint.Len(c.args[2]))
}

func (v *boundedCopyVariant) guard(d *Dispatcher, c *call) guardResult {
	if nullPair(c) {
		return degenerate("null pointer")
	}
	if c.count() == 0 {
		if v.zero == zeroReturns {
			return shortCircuit(c.args[0].Value, "zero count")
		}
		return degenerate("zero count")
	}
	if v.limited && c.count() > d.maxCount {
		return guardResult{outcome: guardOversized}
	}
	return proceed
}

func (v *boundedCopyVariant) buildCommand(_ *Dispatcher, c *call) command.Command {
	return command.Command{
		Op:       v.op,
		First:    c.args[0].Value,
		Second:   c.args[1].Value,
		Count:    c.count(),
		CharSize: uint32(v.width),
	}
}

func (v *boundedCopyVariant) result(c *call, _ command.Command) uint64 {
	return c.args[0].Value
}

func (v *boundedCopyVariant) fallback(c *call) uint64 {
	return v.slot.Func()(c.args[0].Value, c.args[1].Value, c.count())
}

// lengthVariant: strlen and wcslen.
type lengthVariant struct {
	family
	slot *binding.Slot[libc.LengthFunc]
}

func newLength(set *binding.Set, name string, width int) *lengthVariant {
	return &lengthVariant{
		family: family{routine: name, width: width},
		slot:   binding.Add[libc.LengthFunc](set, name),
	}
}

func (v *lengthVariant) classify(q taint.Querier, c *call) taint.Result {
	return taint.Classify(q, taint.Ptr(c.args[0]))
}

func (v *lengthVariant) guard(_ *Dispatcher, c *call) guardResult {
	if c.args[0].IsNull() {
		return degenerate("null pointer")
	}
	return proceed
}

func (v *lengthVariant) buildCommand(_ *Dispatcher, c *call) command.Command {
	return command.Command{Op: command.OpStrlen, First: c.args[0].Value, CharSize: uint32(v.width)}
}

func (v *lengthVariant) result(_ *call, cmd command.Command) uint64 {
	return cmd.Result
}

func (v *lengthVariant) fallback(c *call) uint64 {
	return v.slot.Func()(c.args[0].Value)
}

// compareVariant: strcmp and wcscmp.
type compareVariant struct {
	family
	slot *binding.Slot[libc.CompareFunc]
}

func newCompare(set *binding.Set, name string, width int) *compareVariant {
	return &compareVariant{
		family: family{routine: name, width: width},
		slot:   binding.Add[libc.CompareFunc](set, name),
	}
}

func (v *compareVariant) classify(q taint.Querier, c *call) taint.Result {
	return taint.Classify(q, taint.Ptr(c.args[0]), taint.Ptr(c.args[1]))
}

func (v *compareVariant) guard(_ *Dispatcher, c *call) guardResult {
	if nullPair(c) {
		return degenerate("null pointer")
	}
	return proceed
}

func (v *compareVariant) buildCommand(_ *Dispatcher, c *call) command.Command {
	return command.Command{Op: command.OpStrcmp, First: c.args[0].Value, Second: c.args[1].Value, CharSize: uint32(v.width)}
}

func (v *compareVariant) result(_ *call, cmd command.Command) uint64 {
	return signExtend(cmd.Int32())
}

func (v *compareVariant) fallback(c *call) uint64 {
	return signExtend(v.slot.Func()(c.args[0].Value, c.args[1].Value))
}

// boundedCompareVariant: strncmp, wcsncmp and memcmp.
type boundedCompareVariant struct {
	family
	op      command.Op
	zero    zeroPolicy
	limited bool
	slot    *binding.Slot[libc.BoundedCompareFunc]
}

func newBoundedCompare(set *binding.Set, name string, op command.Op, width int, zero zeroPolicy, limited bool) *boundedCompareVariant {
	return &boundedCompareVariant{
		family:  family{routine: name, width: width},
		op:      op,
		zero:    zero,
		limited: limited,
		slot:    binding.Add[libc.BoundedCompareFunc](set, name),
	}
}

func (v *boundedCompareVariant) classify(q taint.Querier, c *call) taint.Result {
	return taint.Classify(q, taint.Ptr(c.args[0]), taint.Ptr(c.args[1]), taint.Len(c.args[2]))
}

func (v *boundedCompareVariant) guard(d *Dispatcher, c *call) guardResult {
	if nullPair(c) {
		return degenerate("null pointer")
	}
	if c.count() == 0 {
		if v.zero == zeroReturns {
			return shortCircuit(0, "zero count")
		}
		return degenerate("zero count")
	}
	if v.limited && c.count() > d.maxCount {
		return guardResult{outcome: guardOversized}
	}
	return proceed
}

func (v *boundedCompareVariant) buildCommand(_ *Dispatcher, c *call) command.Command {
	return command.Command{
		Op:       v.op,
		First:    c.args[0].Value,
		Second:   c.args[1].Value,
		Count:    c.count(),
		CharSize: uint32(v.width),
	}
}

func (v *boundedCompareVariant) result(_ *call, cmd command.Command) uint64 {
	return signExtend(cmd.Int32())
}

func (v *boundedCompareVariant) fallback(c *call) uint64 {
	return signExtend(v.slot.Func()(c.args[0].Value, c.args[1].Value, c.count()))
}

// probesResult is set for memcmp, whose handled result is checked for
// symbolic data.
func (v *boundedCompareVariant) probesResult() bool {
	return v.op == command.OpMemcmp
}

// checksumVariant: crc32 and crc16. Arguments are (crc, buf, len).
type checksumVariant struct {
	family
	typ      checksum.Type
	finalize bool
	call     func(crc, buf uint64, n uint32) uint64
}

func newCRC32(set *binding.Set) *checksumVariant {
	slot := binding.Add[libc.CRC32Func](set, "crc32")
	return &checksumVariant{
		family:   family{routine: "crc32", width: 1},
		typ:      checksum.CRC32,
		finalize: true,
		call: func(crc, buf uint64, n uint32) uint64 {
			return uint64(slot.Func()(uint32(crc), buf, n))
		},
	}
}

func newCRC16(set *binding.Set) *checksumVariant {
	slot := binding.Add[libc.CRC16Func](set, "crc16")
	return &checksumVariant{
		family: family{routine: "crc16", width: 1},
		typ:    checksum.CRC16,
		call: func(crc, buf uint64, n uint32) uint64 {
			return uint64(slot.Func()(uint16(crc), buf, n))
		},
	}
}

func (v *checksumVariant) classify(q taint.Querier, c *call) taint.Result {
	return taint.Classify(q, taint.Val(c.args[0]), taint.Ptr(c.args[1]), taint.Len(c.args[2]))
}

func (v *checksumVariant) guard(_ *Dispatcher, c *call) guardResult {
	if c.args[1].IsNull() {
		return shortCircuit(0, "null buffer")
	}
	return proceed
}

// buildCommand passes the seed by reference. A seed that never lived in
// guest memory is spilled first. len is an unsigned int, so only its low
// 32 bits count.
func (v *checksumVariant) buildCommand(d *Dispatcher, c *call) command.Command {
	seed := c.args[0]
	if seed.Slot == 0 {
		seed = d.memory.Spill(seed.Value, v.typ.Width())
	}
	return command.Command{
		Op:       command.OpCrc,
		First:    seed.Slot,
		Second:   c.args[1].Value,
		Count:    uint64(uint32(c.count())),
		CRC:      v.typ,
		Finalize: v.finalize,
	}
}

func (v *checksumVariant) result(_ *call, cmd command.Command) uint64 {
	if v.typ == checksum.CRC16 {
		return uint64(uint16(cmd.Result))
	}
	return uint64(uint32(cmd.Result))
}

func (v *checksumVariant) fallback(c *call) uint64 {
	return v.call(c.args[0].Value, c.args[1].Value, uint32(c.count()))
}

func signExtend(v int32) uint64 {
	return uint64(int64(v))
}
