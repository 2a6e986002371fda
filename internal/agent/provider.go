// Package agent implements the agent loop (C4) and the approval
// protocol's backfill primitive (C5): the iterative chat -> tool-call
// -> tool-result -> chat state machine, its incremental persistence,
// resumption after a persisted pause, and result backfilling for
// denied/cancelled tool calls.
//
// Grounded on the teacher's internal/agent/loop.go phase-based state
// machine (PhaseInit/PhaseStream/PhaseExecuteTools/PhaseContinue/
// PhaseComplete naming) and internal/agent/provider_types.go's
// LLMProvider/CompletionRequest/CompletionMessage shapes, but the
// Provider capability here is the single non-streaming round trip
// spec.md §6 requires rather than the teacher's <-chan
// *CompletionChunk streaming contract — streaming token-level output
// is an explicit Non-goal.
package agent

import (
	"context"

	"github.com/haasonsaas/agentcore/internal/toolsrt"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Request is the normalized input to one Provider.Call round trip.
type Request struct {
	Messages     []models.Message
	SystemPrompt string
	Tools        []toolsrt.LLMTool
	MaxTokens    int
}

// Result is the normalized output of one Provider.Call round trip:
// {content, tool_calls?, model, provider} per spec.md §6.
type Result struct {
	Content   string
	ToolCalls []models.ToolCall
	Model     string
	Provider  string
}

// Provider performs one non-streaming chat-completion round trip.
// Two dialects are accommodated by two separate implementations under
// internal/agent/providers; the loop only ever sees this normalized
// shape.
type Provider interface {
	Call(ctx context.Context, req Request) (*Result, error)
	Name() string
}
