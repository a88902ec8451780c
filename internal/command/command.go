// Package command defines the fixed-layout message exchanged with the
// analysis engine for every modeled routine.
//
// # Wire Shape
//
//	offset  size  field
//	0       4     op tag (Op)
//	4       4     padding
//	8       48    per-op fields (see Layout)
//	56      1     defer flag ("still run the original")
//	57      7     padding
//
// The envelope is always Size bytes and the op tag alone decides where the
// remaining fields sit, so the engine can decode any message without extra
// context. Integers use host byte order because both ends of the boundary
// run on the same machine. There is no versioning.
package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/cpu"

	"github.com/roach88/fnmodels/internal/checksum"
)

// Channel is the name the engine's multiplexer routes these messages by.
const Channel = "FunctionModels"

// Size is the length of every encoded command.
const Size = 64

// FieldsOffset is where the per-op fields start.
const FieldsOffset = 8

const (
	tagOffset   = 0
	unionSize   = 48
	deferOffset = 56
)

var (
	// ErrShortMessage is returned when a buffer is smaller than Size.
	ErrShortMessage = errors.New("command: message shorter than envelope")

	// ErrUnknownOp is returned when the tag names no known layout.
	ErrUnknownOp = errors.New("command: unknown op")
)

// order is the host byte order.
var order = nativeOrder()

func nativeOrder() binary.ByteOrder {
	if cpu.IsBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Op identifies the routine family a command belongs to.
type Op uint32

const (
	OpStrcpy Op = iota
	OpStrncpy
	OpStrlen
	OpStrcmp
	OpStrncmp
	OpMemcpy
	OpMemcmp
	OpStrcat
	OpStrncat
	OpCrc
)

var opNames = map[Op]string{
	OpStrcpy:  "strcpy",
	OpStrncpy: "strncpy",
	OpStrlen:  "strlen",
	OpStrcmp:  "strcmp",
	OpStrncmp: "strncmp",
	OpMemcpy:  "memcpy",
	OpMemcmp:  "memcmp",
	OpStrcat:  "strcat",
	OpStrncat: "strncat",
	OpCrc:     "crc",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint32(o))
}

// Ops returns every known op in tag order.
func Ops() []Op {
	return []Op{OpStrcpy, OpStrncpy, OpStrlen, OpStrcmp, OpStrncmp, OpMemcpy, OpMemcmp, OpStrcat, OpStrncat, OpCrc}
}

// ParseOp maps a name printed by Op.String back to the op.
func ParseOp(name string) (Op, error) {
	for op, n := range opNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOp, name)
}

// Command is the decoded form of a message.
//
// The meaning of First and Second depends on Op: dest/src for copies and
// concatenations, the two operands for comparisons, the string for strlen
// (Second unused), and the initial-value slot and buffer for checksums.
type Command struct {
	Op       Op
	First    uint64
	Second   uint64
	Count    uint64
	CharSize uint32
	CRC      checksum.Type
	Finalize bool
	Result   uint64
	Defer    bool
}

// Int32 returns Result interpreted as a C int, the return type of the
// comparison routines.
func (c Command) Int32() int32 {
	return int32(uint32(c.Result))
}

// Encode returns the Size-byte wire form. Unknown ops encode the tag and
// defer flag only.
func (c Command) Encode() []byte {
	buf := make([]byte, Size)
	_ = c.EncodeInto(buf)
	return buf
}

// EncodeInto writes the wire form into buf, which must hold Size bytes.
func (c Command) EncodeInto(buf []byte) error {
	if len(buf) < Size {
		return ErrShortMessage
	}
	clear(buf[:Size])
	order.PutUint32(buf[tagOffset:], uint32(c.Op))
	for _, f := range layouts[c.Op] {
		f.put(buf[FieldsOffset+f.Offset:], c.get(f.Kind))
	}
	if c.Defer {
		buf[deferOffset] = 1
	}
	return nil
}

// Decode parses a message. It is meant for the engine side, which must
// reject foreign tags.
func Decode(msg []byte) (Command, error) {
	if len(msg) < Size {
		return Command{}, fmt.Errorf("%w: %d < %d", ErrShortMessage, len(msg), Size)
	}
	c := Command{Op: Op(order.Uint32(msg[tagOffset:]))}
	fields, ok := layouts[c.Op]
	if !ok {
		return Command{}, fmt.Errorf("%w: tag %d", ErrUnknownOp, uint32(c.Op))
	}
	for _, f := range fields {
		c.set(f.Kind, f.load(msg[FieldsOffset+f.Offset:]))
	}
	c.Defer = msg[deferOffset] != 0
	return c, nil
}

// ReadVerdict copies the fields the engine may change (defer flag and
// result) from msg into c. The layout is fixed and shared, so this cannot
// fail; a truncated buffer leaves c untouched.
func ReadVerdict(msg []byte, c *Command) {
	if len(msg) < Size {
		return
	}
	c.Defer = msg[deferOffset] != 0
	for _, f := range layouts[c.Op] {
		if f.Kind == FieldResult {
			c.Result = f.load(msg[FieldsOffset+f.Offset:])
		}
	}
}

// String renders the command for logs and traces.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Op.String())
	for _, f := range layouts[c.Op] {
		v := c.get(f.Kind)
		switch f.Kind {
		case FieldFirst, FieldSecond:
			fmt.Fprintf(&b, " %s=%#x", f.Name, v)
		case FieldCRC:
			fmt.Fprintf(&b, " %s=%s", f.Name, checksum.Type(v))
		case FieldResult:
			if c.Op == OpStrcmp || c.Op == OpStrncmp || c.Op == OpMemcmp {
				fmt.Fprintf(&b, " %s=%d", f.Name, c.Int32())
			} else {
				fmt.Fprintf(&b, " %s=%d", f.Name, v)
			}
		default:
			fmt.Fprintf(&b, " %s=%d", f.Name, v)
		}
	}
	if c.Defer {
		b.WriteString(" defer=1")
	} else {
		b.WriteString(" defer=0")
	}
	return b.String()
}

func (c Command) get(k FieldKind) uint64 {
	switch k {
	case FieldFirst:
		return c.First
	case FieldSecond:
		return c.Second
	case FieldCount:
		return c.Count
	case FieldCharSize:
		return uint64(c.CharSize)
	case FieldCRC:
		return uint64(c.CRC)
	case FieldFinalize:
		if c.Finalize {
			return 1
		}
		return 0
	case FieldResult:
		return c.Result
	}
	return 0
}

func (c *Command) set(k FieldKind, v uint64) {
	switch k {
	case FieldFirst:
		c.First = v
	case FieldSecond:
		c.Second = v
	case FieldCount:
		c.Count = v
	case FieldCharSize:
		c.CharSize = uint32(v)
	case FieldCRC:
		c.CRC = checksum.Type(v)
	case FieldFinalize:
		c.Finalize = v != 0
	case FieldResult:
		c.Result = v
	}
}
