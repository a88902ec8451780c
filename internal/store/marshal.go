package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/fnmodels/internal/command"
)

// marshalDiagnostics converts diagnostics to JSON TEXT.
// HTML escaping is disabled so messages are stored as emitted.
func marshalDiagnostics(diags []string) (string, error) {
	if diags == nil {
		diags = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(diags); err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalDiagnostics(data string) ([]string, error) {
	diags := []string{}
	if data == "" || data == "[]" {
		return diags, nil
	}
	if err := json.Unmarshal([]byte(data), &diags); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	return diags, nil
}

// marshalCommand returns the wire form of cmd, nil when absent.
func marshalCommand(cmd *command.Command) []byte {
	if cmd == nil {
		return nil
	}
	return cmd.Encode()
}

func unmarshalCommand(raw []byte) (*command.Command, error) {
	if raw == nil {
		return nil, nil
	}
	cmd, err := command.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}
	return &cmd, nil
}
