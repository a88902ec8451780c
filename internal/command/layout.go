package command

import (
	"fmt"
	"io"
)

// FieldKind names which Command member a wire field carries.
type FieldKind int

const (
	FieldFirst FieldKind = iota
	FieldSecond
	FieldCount
	FieldCharSize
	FieldCRC
	FieldFinalize
	FieldResult
)

// Field is one entry of an op's sub-layout. Offset is relative to the start
// of the per-op area. Signed results are stored in Width bytes and sign
// extended on load.
type Field struct {
	Name   string
	Kind   FieldKind
	Offset int
	Width  int
	Signed bool
}

func (f Field) put(b []byte, v uint64) {
	switch f.Width {
	case 1:
		b[0] = byte(v)
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
}

func (f Field) load(b []byte) uint64 {
	switch f.Width {
	case 1:
		return uint64(b[0])
	case 4:
		v := order.Uint32(b)
		if f.Signed {
			return uint64(int64(int32(v)))
		}
		return uint64(v)
	default:
		return order.Uint64(b)
	}
}

var layouts = map[Op][]Field{
	OpStrcpy: {
		{Name: "dest", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "src", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "char_size", Kind: FieldCharSize, Offset: 16, Width: 4},
	},
	OpStrncpy: {
		{Name: "dest", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "src", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "n", Kind: FieldCount, Offset: 16, Width: 8},
		{Name: "char_size", Kind: FieldCharSize, Offset: 24, Width: 4},
	},
	OpStrlen: {
		{Name: "str", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "char_size", Kind: FieldCharSize, Offset: 8, Width: 4},
		{Name: "ret", Kind: FieldResult, Offset: 16, Width: 8},
	},
	OpStrcmp: {
		{Name: "str1", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "str2", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "char_size", Kind: FieldCharSize, Offset: 16, Width: 4},
		{Name: "ret", Kind: FieldResult, Offset: 20, Width: 4, Signed: true},
	},
	OpStrncmp: {
		{Name: "str1", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "str2", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "n", Kind: FieldCount, Offset: 16, Width: 8},
		{Name: "char_size", Kind: FieldCharSize, Offset: 24, Width: 4},
		{Name: "ret", Kind: FieldResult, Offset: 28, Width: 4, Signed: true},
	},
	OpMemcpy: {
		{Name: "dest", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "src", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "n", Kind: FieldCount, Offset: 16, Width: 8},
	},
	OpMemcmp: {
		{Name: "str1", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "str2", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "n", Kind: FieldCount, Offset: 16, Width: 8},
		{Name: "ret", Kind: FieldResult, Offset: 24, Width: 4, Signed: true},
	},
	OpStrcat: {
		{Name: "dest", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "src", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "char_size", Kind: FieldCharSize, Offset: 16, Width: 4},
	},
	OpStrncat: {
		{Name: "dest", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "src", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "n", Kind: FieldCount, Offset: 16, Width: 8},
		{Name: "char_size", Kind: FieldCharSize, Offset: 24, Width: 4},
	},
	OpCrc: {
		{Name: "initial_value_ptr", Kind: FieldFirst, Offset: 0, Width: 8},
		{Name: "buffer", Kind: FieldSecond, Offset: 8, Width: 8},
		{Name: "size", Kind: FieldCount, Offset: 16, Width: 8},
		{Name: "type", Kind: FieldCRC, Offset: 24, Width: 4},
		{Name: "xor_result", Kind: FieldFinalize, Offset: 28, Width: 1},
		{Name: "ret", Kind: FieldResult, Offset: 32, Width: 8},
	},
}

// Layout returns a copy of the sub-layout selected by op.
func Layout(op Op) ([]Field, bool) {
	fields, ok := layouts[op]
	if !ok {
		return nil, false
	}
	return append([]Field(nil), fields...), true
}

// ResultOffset returns the absolute offset and width of op's result field.
func ResultOffset(op Op) (offset, width int, ok bool) {
	for _, f := range layouts[op] {
		if f.Kind == FieldResult {
			return FieldsOffset + f.Offset, f.Width, true
		}
	}
	return 0, 0, false
}

// WriteLayout renders the full envelope of op as a table.
func WriteLayout(w io.Writer, op Op) error {
	fields, ok := layouts[op]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	if _, err := fmt.Fprintf(w, "%s (tag %d, %d bytes)\n", op, uint32(op), Size); err != nil {
		return err
	}
	fmt.Fprintf(w, "  %-6s %-4s %s\n", "offset", "size", "field")
	fmt.Fprintf(w, "  %-6d %-4d %s\n", tagOffset, 4, "tag")
	for _, f := range fields {
		name := f.Name
		if f.Signed {
			name += " (signed)"
		}
		fmt.Fprintf(w, "  %-6d %-4d %s\n", FieldsOffset+f.Offset, f.Width, name)
	}
	_, err := fmt.Fprintf(w, "  %-6d %-4d %s\n", deferOffset, 1, "defer")
	return err
}
