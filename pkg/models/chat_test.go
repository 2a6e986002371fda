package models

import (
	"encoding/json"
	"testing"
)

func TestToolCallEffectiveStatusDefaultsApproved(t *testing.T) {
	tc := ToolCall{ID: "tc1", Function: ToolCallFunction{Name: "bash"}}
	if tc.EffectiveStatus() != ToolCallApproved {
		t.Fatalf("expected legacy absent status to be approved, got %q", tc.EffectiveStatus())
	}

	tc.Status = ToolCallPending
	if tc.EffectiveStatus() != ToolCallPending {
		t.Fatalf("expected explicit status to be preserved, got %q", tc.EffectiveStatus())
	}
}

func TestChatRoundTripJSON(t *testing.T) {
	chat := Chat{
		UserID: "u1",
		ChatID: "c1",
		Title:  "say hi",
		Messages: []Message{
			{ID: "m1", Role: RoleUser, Content: "say hi", UnixTimestamp: 1},
			{
				ID:            "m2",
				ParentID:      "m1",
				Role:          RoleAssistant,
				UnixTimestamp: 2,
				ToolCalls: []ToolCall{
					{ID: "tc1", Function: ToolCallFunction{Name: "bash", Arguments: `{"command":"ls"}`}, Status: ToolCallApproved},
				},
			},
		},
	}

	raw, err := json.Marshal(chat)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Chat
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	raw2, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if string(raw) != string(raw2) {
		t.Fatalf("round trip mismatch:\n%s\n%s", raw, raw2)
	}
}

func TestTitleFromPromptTruncates(t *testing.T) {
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'a'
	}
	title := TitleFromPrompt(string(long))
	if len([]rune(title)) != 100 {
		t.Fatalf("expected 100 rune title, got %d", len([]rune(title)))
	}
}
