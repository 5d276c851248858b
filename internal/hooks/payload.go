package hooks

import (
	"encoding/json"
	"errors"
	"strings"
)

// ToolPayload is the JSON document an agent's post-tool hook emits. Output
// may arrive either as "output" or as "tool_response", the latter being a
// plain string or an object with stdout/stderr/content fields.
type ToolPayload struct {
	ToolName     string          `json:"tool_name"`
	Output       string          `json:"output,omitempty"`
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`
}

var ErrMissingToolName = errors.New("tool_name is required")

// DecodeToolPayload parses and validates a hook payload.
func DecodeToolPayload(data []byte) (ToolPayload, error) {
	var p ToolPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.ToolName) == "" {
		return p, ErrMissingToolName
	}
	return p, nil
}

// Text returns the tool output to scan.
func (p ToolPayload) Text() string {
	if p.Output != "" || len(p.ToolResponse) == 0 {
		return p.Output
	}

	var s string
	if err := json.Unmarshal(p.ToolResponse, &s); err == nil {
		return s
	}

	var obj struct {
		Stdout  string `json:"stdout"`
		Stderr  string `json:"stderr"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(p.ToolResponse, &obj); err == nil {
		parts := make([]string, 0, 3)
		for _, part := range []string{obj.Stdout, obj.Stderr, obj.Content} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}

	if string(p.ToolResponse) == "null" {
		return ""
	}
	return string(p.ToolResponse)
}
