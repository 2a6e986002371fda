// Package toolsrt implements the tool registry & runtime (C2): the
// name -> tool descriptor mapping and the capability that actually
// executes a command, locally or in a remote sandbox.
//
// Grounded on the teacher's internal/agent/tool_registry.go (registry
// shape, thread-safety via sync.RWMutex) and
// internal/agent/tool_exec.go's executeWithTimeout (context+goroutine
// timeout pattern), narrowed to the spec's four core tools and
// sequential-only execution (ExecuteConcurrently has no analogue here:
// spec.md §4.4 explicitly disallows concurrent tool execution).
package toolsrt

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runtime is the capability that actually executes a shell command,
// either as a local process or against a remote sandbox addressed by
// a per-user VM configuration. Of the four core tools only bash
// executes through this interface; file_read, file_write and
// file_edit access the local filesystem directly and do not use a
// Runtime.
type Runtime interface {
	// Run executes cmd, optionally feeding stdin, and returns combined
	// stdout+stderr. It must respect timeout and return promptly once
	// it elapses.
	Run(ctx context.Context, cmd string, stdin string, timeout time.Duration) (string, error)
}

// ErrTimeout is returned by a Runtime when execution exceeds its
// timeout budget.
var ErrTimeout = fmt.Errorf("tool execution timed out")

// LocalRuntime runs commands as local OS processes via sh -c, the
// binding used by the single-process deployment. Grounded on
// original_source/agent/src/agent/tools/local_exec.py.
type LocalRuntime struct {
	Shell string // defaults to "/bin/sh" when empty
}

// NewLocalRuntime returns a Runtime bound to local process execution.
func NewLocalRuntime() *LocalRuntime {
	return &LocalRuntime{Shell: "/bin/sh"}
}

// Run implements Runtime by shelling out and killing the shell process
// on timeout.
func (r *LocalRuntime) Run(ctx context.Context, cmdStr string, stdin string, timeout time.Duration) (string, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, shell, "-c", cmdStr)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	out, err := cmd.CombinedOutput()
	if runCtx.Err() != nil {
		return "", ErrTimeout
	}
	if err != nil {
		// Non-zero exit is not a Runtime-level error: the combined
		// output (including any error text the command itself wrote)
		// is still the result the tool layer wants to see.
		return string(out), nil
	}
	return string(out), nil
}

// RemoteRuntime dispatches execution to a remote sandbox addressed by
// a per-user VM endpoint. The concrete transport (how the sandbox is
// reached, authenticated, provisioned) is an out-of-scope external
// collaborator per spec.md §1; this type exists so internal/toolsrt
// never hard-codes "local only" and a real binding can be substituted
// without changing the registry.
type RemoteRuntime struct {
	// Dial is supplied by the deployment: given a command, stdin, and
	// timeout, it performs the remote call and returns combined output.
	Dial func(ctx context.Context, cmd string, stdin string, timeout time.Duration) (string, error)
}

// Run implements Runtime by delegating to Dial.
func (r *RemoteRuntime) Run(ctx context.Context, cmd string, stdin string, timeout time.Duration) (string, error) {
	if r.Dial == nil {
		return "", fmt.Errorf("remote runtime not configured")
	}
	return r.Dial(ctx, cmd, stdin, timeout)
}
