package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/haasonsaas/agentcore/internal/permissions"
	"github.com/haasonsaas/agentcore/internal/toolsrt"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// maxToolResultLen and truncationSuffix implement spec.md §4.2/§4.4:
// truncation is enforced by the agent loop, not the tools.
const (
	maxToolResultLen = 10000
	truncationSuffix = "\n... (truncated)"
)

// LoopStatus tags the terminal outcome of one Loop.Run invocation.
type LoopStatus string

const (
	StatusCompleted      LoopStatus = "completed"
	StatusApprovalNeeded LoopStatus = "approval_needed"
	StatusInterrupted    LoopStatus = "interrupted"
	StatusMaxIterations  LoopStatus = "max_iterations"
	StatusError          LoopStatus = "error"
)

// LoopResult is the terminal record of one loop invocation.
type LoopResult struct {
	Status   LoopStatus
	Appended []models.Message
	Err      error
}

// Config bounds one Loop invocation.
type Config struct {
	MaxIterations int // default 50
	SystemPrompt  string
}

// DefaultConfig returns the spec's default iteration cap.
func DefaultConfig() Config {
	return Config{MaxIterations: 50}
}

// Hooks are the callbacks/flags spec.md §4.4 requires as loop input,
// kept as functions so the caller decides where each value comes
// from. CheckInterrupted in particular is polled at the top of every
// iteration, so a binding that reads the store sees a stop raised
// mid-run.
type Hooks struct {
	AutoApprove      func() bool
	MessageCallback  func(models.Message)
	CheckInterrupted func() bool
}

// Loop drives the Provider <-> tool-result cycle (C4).
type Loop struct {
	Provider    Provider
	Tools       *toolsrt.Registry
	Permissions *permissions.Evaluator
	Config      Config
}

// New builds a Loop with the given collaborators and DefaultConfig.
func New(p Provider, tools *toolsrt.Registry, perms *permissions.Evaluator) *Loop {
	return &Loop{Provider: p, Tools: tools, Permissions: perms, Config: DefaultConfig()}
}

// Run executes the loop over messages (callers should pass the full
// persisted history) until it reaches a terminal status. messages is not mutated; Run returns the
// messages appended during this invocation in LoopResult.Appended.
func (l *Loop) Run(ctx context.Context, messages []models.Message, hooks Hooks) LoopResult {
	if l.Provider == nil {
		return LoopResult{Status: StatusError, Err: ErrNoProvider}
	}

	working := append([]models.Message(nil), messages...)
	var appended []models.Message

	emit := func(m models.Message) {
		working = append(working, m)
		appended = append(appended, m)
		if hooks.MessageCallback != nil {
			hooks.MessageCallback(m)
		}
	}

	// 1. Resume phase: handle any unhandled tool calls left over from a
	// prior invocation before making a new model call.
	if res, done := l.resumePhase(ctx, &working, emit, hooks); done {
		res.Appended = appended
		return res
	}

	maxIter := l.Config.MaxIterations
	if maxIter <= 0 {
		maxIter = 50
	}

	for iter := 0; iter < maxIter; iter++ {
		if hooks.CheckInterrupted != nil && hooks.CheckInterrupted() {
			return LoopResult{Status: StatusInterrupted, Appended: appended}
		}

		result, err := l.Provider.Call(ctx, Request{
			Messages:     working,
			SystemPrompt: l.Config.SystemPrompt,
			Tools:        l.Tools.AsLLMTools(),
		})
		if err != nil {
			return l.handleProviderError(err, emit, appended)
		}

		if len(result.ToolCalls) == 0 {
			iso, unix := models.NowStamps()
			parentID := ""
			if len(working) > 0 {
				parentID = working[len(working)-1].ID
			}
			emit(models.Message{
				ID:            models.NewID(),
				ParentID:      parentID,
				Role:          models.RoleAssistant,
				Content:       result.Content,
				Timestamp:     iso,
				UnixTimestamp: unix,
				Model:         result.Model,
				Provider:      result.Provider,
			})
			return LoopResult{Status: StatusCompleted, Appended: appended}
		}

		assistantMsg := l.annotateToolCalls(result, hooks)
		if len(working) > 0 {
			assistantMsg.ParentID = working[len(working)-1].ID
		}
		emit(assistantMsg)

		if messageHasPending(assistantMsg) {
			// spec.md scenario 4: a pending call anywhere in this
			// message stops the line before any execution happens,
			// even for earlier calls already marked approved. Those
			// run on the next invocation's resume phase, once the
			// pending call has been decided.
			return LoopResult{Status: StatusApprovalNeeded, Appended: appended}
		}

		if _, err := l.executeUnhandled(ctx, &working, emit); err != nil {
			return LoopResult{Status: StatusError, Err: err, Appended: appended}
		}
		// Every tool call on this assistant message now has a matching
		// tool message; continue to the next iteration.
	}

	return LoopResult{Status: StatusMaxIterations, Appended: appended}
}

// resumePhase implements spec.md §4.4 step 1.
func (l *Loop) resumePhase(ctx context.Context, working *[]models.Message, emit func(models.Message), hooks Hooks) (LoopResult, bool) {
	_, unhandled, ok := Unhandled(*working)
	if !ok || len(unhandled) == 0 {
		return LoopResult{}, false
	}
	for _, tc := range unhandled {
		if tc.EffectiveStatus() == models.ToolCallPending {
			return LoopResult{Status: StatusApprovalNeeded}, true
		}
	}

	sawPending, err := l.executeUnhandled(ctx, working, emit)
	if err != nil {
		return LoopResult{Status: StatusError, Err: err}, true
	}
	if sawPending {
		return LoopResult{Status: StatusApprovalNeeded}, true
	}
	return LoopResult{}, false
}

// annotateToolCalls implements spec.md §4.4 step 2d's "pending stops
// the line" rule: each tool call in array order is marked approved
// until the first one that isn't pre-authorized, after which it and
// every remaining call in the same message are marked pending.
func (l *Loop) annotateToolCalls(result *Result, hooks Hooks) models.Message {
	calls := append([]models.ToolCall(nil), result.ToolCalls...)
	stopped := false

	for i := range calls {
		if stopped {
			calls[i].Status = models.ToolCallPending
			continue
		}

		name := calls[i].Function.Name
		_, known := l.Tools.Get(name)
		if !known {
			calls[i].Status = models.ToolCallApproved
			continue
		}

		autoApprove := hooks.AutoApprove != nil && hooks.AutoApprove()
		args := decodeArguments(calls[i].Function.Arguments)
		if autoApprove || (l.Permissions != nil && l.Permissions.IsAllowed(name, args)) {
			calls[i].Status = models.ToolCallApproved
			continue
		}

		calls[i].Status = models.ToolCallPending
		stopped = true
	}

	iso, unix := models.NowStamps()
	return models.Message{
		ID:            models.NewID(),
		Role:          models.RoleAssistant,
		Content:       result.Content,
		Timestamp:     iso,
		UnixTimestamp: unix,
		Model:         result.Model,
		Provider:      result.Provider,
		ToolCalls:     calls,
	}
}

// executeUnhandled runs spec.md §4.4 step 2e / §4.4 step 1's shared
// sub-routine: for each unhandled call on the most recent assistant-
// with-tool-calls message, in order, produce a tool message. It stops
// (returning sawPending=true) the first time it encounters a pending
// call, leaving any later calls in that message untouched.
func (l *Loop) executeUnhandled(ctx context.Context, working *[]models.Message, emit func(models.Message)) (sawPending bool, err error) {
	for {
		assistantIdx, unhandled, ok := Unhandled(*working)
		if !ok || len(unhandled) == 0 {
			return false, nil
		}

		tc := unhandled[0]
		switch tc.EffectiveStatus() {
		case models.ToolCallPending:
			return true, nil

		case models.ToolCallApproved:
			content := l.runTool(ctx, tc)
			emit(toolMessage((*working)[assistantIdx].ID, tc, content))

		case models.ToolCallRejected:
			emit(toolMessage((*working)[assistantIdx].ID, tc, DeniedMessage(tc.Function.Name, tc.Function.Arguments)))

		case models.ToolCallCancelled:
			emit(toolMessage((*working)[assistantIdx].ID, tc, CancelledMessage(tc.Function.Name)))
		}
	}
}

// messageHasPending reports whether any tool call on msg is pending.
func messageHasPending(msg models.Message) bool {
	for _, tc := range msg.ToolCalls {
		if tc.EffectiveStatus() == models.ToolCallPending {
			return true
		}
	}
	return false
}

func toolMessage(parentID string, tc models.ToolCall, content string) models.Message {
	iso, unix := models.NowStamps()
	return models.Message{
		ID:            models.NewID(),
		ParentID:      parentID,
		Role:          models.RoleTool,
		Content:       content,
		Timestamp:     iso,
		UnixTimestamp: unix,
		Tool:          tc.Function.Name,
		ToolCallID:    tc.ID,
	}
}

// runTool executes one approved tool call and truncates its result
// per spec.md §4.2.
func (l *Loop) runTool(ctx context.Context, tc models.ToolCall) string {
	args := decodeArguments(tc.Function.Arguments)
	res := l.Tools.Execute(ctx, tc.Function.Name, args)
	return truncate(res.Content)
}

func truncate(s string) string {
	if len(s) <= maxToolResultLen {
		return s
	}
	return s[:maxToolResultLen] + truncationSuffix
}

// decodeArguments parses a tool call's JSON-encoded arguments string,
// treating any parse failure as an empty object per spec.md §4.4's
// tie-break rule ("the agent never fails for this reason").
func decodeArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}

// handleProviderError classifies a Provider.Call error per spec.md §7:
// a ClientError is terminal and carries a synthetic assistant message;
// anything else is a transport_error and returns without mutating the
// message log further.
func (l *Loop) handleProviderError(err error, emit func(models.Message), appended []models.Message) LoopResult {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		iso, unix := models.NowStamps()
		emit(models.Message{
			ID:            models.NewID(),
			Role:          models.RoleAssistant,
			Content:       clientErr.Error(),
			Timestamp:     iso,
			UnixTimestamp: unix,
		})
		return LoopResult{Status: StatusError, Err: clientErr, Appended: appended}
	}
	return LoopResult{Status: StatusError, Err: err, Appended: appended}
}
