package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/agentcore/internal/jobs"
	"github.com/haasonsaas/agentcore/internal/store"
	"github.com/haasonsaas/agentcore/pkg/models"
)

const testUserID = "local-user"

func newTestHandler(t *testing.T) (*Handler, store.Store, jobs.Dispatcher) {
	t.Helper()
	st := store.NewMemoryStore()
	d, err := jobs.NewLocalDispatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalDispatcher: %v", err)
	}
	h := NewHandler(Config{Store: st, Dispatcher: d, DefaultUserID: testUserID})
	return h, st, d
}

func doJSON(t *testing.T, h *Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateChatEnqueuesJob(t *testing.T) {
	h, st, d := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/chat", createChatRequest{Prompt: "hello there"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp createChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ChatID == "" {
		t.Fatal("expected a non-empty chat_id")
	}

	chat, err := st.GetChat(context.Background(), testUserID, resp.ChatID)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if len(chat.Messages) != 1 || chat.Messages[0].Content != "hello there" {
		t.Fatalf("unexpected messages: %+v", chat.Messages)
	}

	del, err := d.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if del.Job.ChatID != resp.ChatID {
		t.Fatalf("job.ChatID = %q, want %q", del.Job.ChatID, resp.ChatID)
	}
}

func TestCreateChatRejectsEmptyPrompt(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/chat", createChatRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostMessageClearsInterruptedAndEnqueues(t *testing.T) {
	h, st, d := newTestHandler(t)
	ctx := context.Background()
	chat := &models.Chat{ChatID: "c1", Interrupted: true}
	if err := st.CreateChat(ctx, testUserID, chat); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/chat/message", postMessageRequest{ChatID: "c1", Prompt: "continue"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got, err := st.GetChat(ctx, testUserID, "c1")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got.Interrupted {
		t.Fatal("expected Interrupted to be cleared")
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "continue" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}

	if _, err := d.Receive(ctx); err != nil {
		t.Fatalf("expected a job to have been enqueued: %v", err)
	}
}

func TestPostMessageMissingChatReturns404(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/chat/message", postMessageRequest{ChatID: "missing", Prompt: "hi"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestApproveRejectsWhenNoPendingCalls(t *testing.T) {
	h, st, _ := newTestHandler(t)
	ctx := context.Background()
	chat := &models.Chat{ChatID: "c1", Messages: []models.Message{{ID: "m1", Role: models.RoleUser, Content: "hi"}}}
	if err := st.CreateChat(ctx, testUserID, chat); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/chat/approve", approveRequest{ChatID: "c1", Decisions: map[string]bool{"tc1": true}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestApproveBackfillsRejectedAndEnqueuesOnceSettled(t *testing.T) {
	h, st, d := newTestHandler(t)
	ctx := context.Background()
	chat := &models.Chat{
		ChatID: "c1",
		Messages: []models.Message{
			{ID: "m1", Role: models.RoleUser, Content: "run it"},
			{
				ID:   "m2",
				Role: models.RoleAssistant,
				ToolCalls: []models.ToolCall{
					{ID: "tc1", Function: models.ToolCallFunction{Name: "shell", Arguments: `{"cmd":"rm -rf /"}`}, Status: models.ToolCallPending},
					{ID: "tc2", Function: models.ToolCallFunction{Name: "read_file", Arguments: `{"path":"a.txt"}`}, Status: models.ToolCallPending},
				},
			},
		},
	}
	if err := st.CreateChat(ctx, testUserID, chat); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/chat/approve", approveRequest{
		ChatID:    "c1",
		Decisions: map[string]bool{"tc1": false, "tc2": true},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got, err := st.GetChat(ctx, testUserID, "c1")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}

	var toolMsgs int
	for _, m := range got.Messages {
		if m.Role == models.RoleTool {
			toolMsgs++
			if m.ToolCallID == "tc1" && m.Content == "" {
				t.Fatal("expected a denied-tool synthetic message for tc1")
			}
		}
	}
	if toolMsgs != 1 {
		t.Fatalf("expected exactly one synthesized tool message (for the rejected call), got %d", toolMsgs)
	}

	if got.Messages[1].ToolCalls[1].Status != models.ToolCallApproved {
		t.Fatalf("tc2 status = %q, want approved (approved-but-still-pending-execution does not get backfilled)", got.Messages[1].ToolCalls[1].Status)
	}

	if _, err := d.Receive(ctx); err != nil {
		t.Fatalf("expected a job to be enqueued now that nothing is pending: %v", err)
	}
}

func TestStopSetsInterrupted(t *testing.T) {
	h, st, _ := newTestHandler(t)
	ctx := context.Background()
	if err := st.CreateChat(ctx, testUserID, &models.Chat{ChatID: "c1"}); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/chat/stop", stopRequest{ChatID: "c1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got, err := st.GetChat(ctx, testUserID, "c1")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if !got.Interrupted {
		t.Fatal("expected Interrupted to be set")
	}
}

func TestAutoApproveTogglesFlag(t *testing.T) {
	h, st, _ := newTestHandler(t)
	ctx := context.Background()
	if err := st.CreateChat(ctx, testUserID, &models.Chat{ChatID: "c1"}); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/chat/auto_approve", autoApproveRequest{ChatID: "c1", AutoApprove: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got, err := st.GetChat(ctx, testUserID, "c1")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if !got.AutoApprove {
		t.Fatal("expected AutoApprove to be set")
	}
}

func TestListChatsAndDetail(t *testing.T) {
	h, st, _ := newTestHandler(t)
	ctx := context.Background()
	if err := st.CreateChat(ctx, testUserID, &models.Chat{ChatID: "c1", Title: "first"}); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, "/chat/list", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var summaries []models.ChatSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ChatID != "c1" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	rec = doJSON(t, h, http.MethodGet, "/chat/detail?chat_id=c1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
