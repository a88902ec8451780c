package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fnmodels/internal/command"
)

// FieldInfo describes one field of a command envelope.
type FieldInfo struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Width  int    `json:"width"`
	Signed bool   `json:"signed,omitempty"`
}

// LayoutInfo describes the envelope of one op.
type LayoutInfo struct {
	Op     string      `json:"op"`
	Tag    uint32      `json:"tag"`
	Size   int         `json:"size"`
	Fields []FieldInfo `json:"fields"`
}

// NewLayoutCommand creates the layout command.
func NewLayoutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout [op...]",
		Short: "Print the command wire layout",
		Long: `Print the byte layout of the command message sent to the engine for
each op. With no arguments every op is printed.

Examples:
  fnmodels layout
  fnmodels layout strncat crc
  fnmodels layout memcmp --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runLayout(opts *RootOptions, names []string, cmd *cobra.Command) error {
	ops := command.Ops()
	if len(names) > 0 {
		ops = ops[:0:0]
		for _, name := range names {
			op, err := command.ParseOp(name)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown op", err)
			}
			ops = append(ops, op)
		}
	}

	infos := make([]LayoutInfo, 0, len(ops))
	var text bytes.Buffer
	for i, op := range ops {
		fields, _ := command.Layout(op)
		info := LayoutInfo{Op: op.String(), Tag: uint32(op), Size: command.Size}
		for _, f := range fields {
			info.Fields = append(info.Fields, FieldInfo{
				Name:   f.Name,
				Offset: command.FieldsOffset + f.Offset,
				Width:  f.Width,
				Signed: f.Signed,
			})
		}
		infos = append(infos, info)

		if i > 0 {
			text.WriteByte('\n')
		}
		if err := command.WriteLayout(&text, op); err != nil {
			return WrapExitError(ExitCommandError, "failed to render layout", err)
		}
	}

	return opts.formatter(cmd).Success(infos, func(w io.Writer) {
		fmt.Fprint(w, text.String())
	})
}
