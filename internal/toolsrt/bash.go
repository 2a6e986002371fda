package toolsrt

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// BashTool implements bash(command): execute a shell command through
// a Runtime and return combined stdout+stderr with a hard wall-clock
// timeout. Grounded on original_source/agent/src/agent/tools/bash.py
// and (for the remote binding) sprites_exec.py.
type BashTool struct {
	Runtime Runtime
	Timeout time.Duration // defaults to 30s when zero
}

// NewBashTool returns a bash tool bound to rt with the default 30s
// per-execution timeout.
func NewBashTool(rt Runtime) *BashTool {
	return &BashTool{Runtime: rt, Timeout: 30 * time.Second}
}

func (t *BashTool) Name() string        { return "bash" }
func (t *BashTool) Description() string { return "Execute a shell command and return its combined stdout and stderr." }

func (t *BashTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"command": {"type": "string"}},
		"required": ["command"]
	}`)
}

func (t *BashTool) Execute(ctx context.Context, arguments map[string]any) (string, error) {
	command, _ := arguments["command"].(string)
	if command == "" {
		return "ERROR: command is required", nil
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	out, err := t.Runtime.Run(ctx, command, "", timeout)
	if errors.Is(err, ErrTimeout) {
		return "ERROR: command timed out after " + timeout.String(), nil
	}
	if err != nil {
		return "ERROR: " + err.Error(), nil
	}
	return out, nil
}
