package toolsrt

import (
	"context"
	"encoding/json"
)

// Tool is one entry in the registry: a name, a human description, a
// JSON-schema describing its parameters, and the execution function
// itself. Execute returns the tool's result as a plain string (never
// an error for expected failure modes — §7 requires tool_exec_error to
// be absorbed into the result string, never propagated to the loop).
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, arguments map[string]any) (string, error)
}

// LLMTool is the wire shape sent to a Provider as part of toolSpecs:
// {type:"function", function:{name, description, parameters}}, the
// OpenAI-style tool descriptor shape both dialects in
// internal/agent/providers normalize to/from.
type LLMTool struct {
	Type     string      `json:"type"`
	Function LLMFunction `json:"function"`
}

// LLMFunction is the nested function descriptor of an LLMTool.
type LLMFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
