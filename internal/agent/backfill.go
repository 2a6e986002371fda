package agent

import (
	"fmt"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// BackfillMode selects which unhandled tool calls a Backfill pass
// synthesizes results for.
type BackfillMode string

const (
	// BackfillRejected synthesizes tool messages only for calls
	// already marked rejected (used by the approve endpoint).
	BackfillRejected BackfillMode = "rejected"

	// BackfillCancelled synthesizes tool messages for every still-
	// unhandled call and mutates each one's status to cancelled (used
	// by the worker on interruption and by the new-message endpoint
	// before it appends a user message).
	BackfillCancelled BackfillMode = "cancelled"
)

// DeniedMessage is the fixed wording tests depend on for a rejected
// tool call (spec.md §4.4/§7 - the exact string is part of the
// contract).
func DeniedMessage(name string, argsJSON string) string {
	return fmt.Sprintf(
		"ERROR: User denied execution of %s with args %s. The command was NOT executed. Do NOT proceed as if it succeeded.",
		name, argsJSON,
	)
}

// CancelledMessage is the fixed wording for a cancelled tool call.
func CancelledMessage(name string) string {
	return fmt.Sprintf("ERROR: Execution of %s was cancelled. The command was NOT executed.", name)
}

// lastAssistantWithToolCalls returns the index of the most recent
// message that is an assistant message carrying tool calls, or -1.
func lastAssistantWithToolCalls(messages []models.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].HasToolCalls() {
			return i
		}
	}
	return -1
}

// satisfiedToolCallIDs returns the set of tool_call_id values that
// already have a matching role=tool message anywhere in messages.
func satisfiedToolCallIDs(messages []models.Message) map[string]bool {
	satisfied := make(map[string]bool)
	for _, m := range messages {
		if m.Role == models.RoleTool && m.ToolCallID != "" {
			satisfied[m.ToolCallID] = true
		}
	}
	return satisfied
}

// Unhandled returns the ToolCalls on the most recent assistant-with-
// tool-calls message that do not yet have a matching tool message, in
// ToolCall array order. ok is false when there is no such assistant
// message at all.
func Unhandled(messages []models.Message) (assistantIdx int, calls []models.ToolCall, ok bool) {
	idx := lastAssistantWithToolCalls(messages)
	if idx < 0 {
		return -1, nil, false
	}
	satisfied := satisfiedToolCallIDs(messages)

	var unhandled []models.ToolCall
	for _, tc := range messages[idx].ToolCalls {
		if !satisfied[tc.ID] {
			unhandled = append(unhandled, tc)
		}
	}
	return idx, unhandled, true
}

// Backfill synthesizes tool-result messages for unhandled tool calls
// on the most recent assistant-with-tool-calls message, per spec.md
// §4.5, and returns the updated message slice (insertions applied).
// `rejected` mode targets only calls already marked rejected;
// `cancelled` mode targets every unhandled call, `pending` ones
// included.
func Backfill(messages []models.Message, mode BackfillMode) []models.Message {
	assistantIdx, unhandled, ok := Unhandled(messages)
	if !ok || len(unhandled) == 0 {
		return messages
	}

	var targets []models.ToolCall
	switch mode {
	case BackfillRejected:
		for _, tc := range unhandled {
			if tc.Status == models.ToolCallRejected {
				targets = append(targets, tc)
			}
		}
	case BackfillCancelled:
		targets = unhandled
	}
	if len(targets) == 0 {
		return messages
	}

	assistantMsg := messages[assistantIdx]

	// Insertion point: immediately after any tool messages already
	// present for this assistant message, and before the next
	// user/assistant message.
	insertAt := assistantIdx + 1
	for insertAt < len(messages) && messages[insertAt].Role == models.RoleTool && messages[insertAt].ParentID == assistantMsg.ID {
		insertAt++
	}

	targetSet := make(map[string]bool, len(targets))
	for _, tc := range targets {
		targetSet[tc.ID] = true
	}

	synthesized := make([]models.Message, 0, len(targets))
	updatedToolCalls := make([]models.ToolCall, len(assistantMsg.ToolCalls))
	copy(updatedToolCalls, assistantMsg.ToolCalls)

	for i, tc := range updatedToolCalls {
		if !targetSet[tc.ID] {
			continue
		}

		var content string
		switch mode {
		case BackfillRejected:
			content = DeniedMessage(tc.Function.Name, tc.Function.Arguments)
		case BackfillCancelled:
			content = CancelledMessage(tc.Function.Name)
			updatedToolCalls[i].Status = models.ToolCallCancelled
		}

		iso, unix := models.NowStamps()
		synthesized = append(synthesized, models.Message{
			ID:            models.NewID(),
			ParentID:      assistantMsg.ID,
			Role:          models.RoleTool,
			Content:       content,
			Timestamp:     iso,
			UnixTimestamp: unix,
			Tool:          tc.Function.Name,
			ToolCallID:    tc.ID,
		})
	}

	out := make([]models.Message, 0, len(messages)+len(synthesized))
	out = append(out, messages[:assistantIdx]...)
	assistantMsg.ToolCalls = updatedToolCalls
	out = append(out, assistantMsg)
	out = append(out, messages[assistantIdx+1:insertAt]...)
	out = append(out, synthesized...)
	out = append(out, messages[insertAt:]...)
	return out
}
