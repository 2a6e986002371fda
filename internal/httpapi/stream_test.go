package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/internal/jobs"
	"github.com/haasonsaas/agentcore/internal/store"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func TestStreamMessagesEmitsDoneForSettledChat(t *testing.T) {
	st := store.NewMemoryStore()
	d, err := jobs.NewLocalDispatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalDispatcher: %v", err)
	}
	h := NewHandler(Config{Store: st, Dispatcher: d, DefaultUserID: testUserID})

	ctx := context.Background()
	chat := &models.Chat{
		ChatID: "c1",
		Messages: []models.Message{
			{ID: "m1", Role: models.RoleUser, Content: "hi"},
			{ID: "m2", Role: models.RoleAssistant, Content: "hello back"},
		},
	}
	if err := st.CreateChat(ctx, testUserID, chat); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/chat/messages?chat_id=c1&last_index=0", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: message") {
		t.Fatalf("expected message events, got body: %s", body)
	}
	if !strings.Contains(body, `event: done`) {
		t.Fatalf("expected a done event, got body: %s", body)
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Fatalf("expected done status=completed, got body: %s", body)
	}
}

func TestStreamMessagesEmitsAskForPendingToolCalls(t *testing.T) {
	st := store.NewMemoryStore()
	d, err := jobs.NewLocalDispatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalDispatcher: %v", err)
	}
	h := NewHandler(Config{Store: st, Dispatcher: d, DefaultUserID: testUserID})

	ctx := context.Background()
	chat := &models.Chat{
		ChatID: "c1",
		Messages: []models.Message{
			{ID: "m1", Role: models.RoleUser, Content: "run it"},
			{
				ID:   "m2",
				Role: models.RoleAssistant,
				ToolCalls: []models.ToolCall{
					{ID: "tc1", Function: models.ToolCallFunction{Name: "shell"}, Status: models.ToolCallPending},
				},
			},
		},
		Interrupted: true,
	}
	if err := st.CreateChat(ctx, testUserID, chat); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/chat/messages?chat_id=c1&last_index=0", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: ask") {
		t.Fatalf("expected an ask event, got body: %s", body)
	}
	if !strings.Contains(body, `"status":"interrupted"`) {
		t.Fatalf("expected done status=interrupted, got body: %s", body)
	}
}

func TestStreamMessagesRejectsMissingChatID(t *testing.T) {
	st := store.NewMemoryStore()
	d, err := jobs.NewLocalDispatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalDispatcher: %v", err)
	}
	h := NewHandler(Config{Store: st, Dispatcher: d, DefaultUserID: testUserID})

	req := httptest.NewRequest(http.MethodGet, "/chat/messages", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
