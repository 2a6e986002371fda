package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// pollInterval is the SSE poll cadence spec.md §4.8 names.
const pollInterval = 1 * time.Second

type messageEvent struct {
	Index int            `json:"index"`
	Type  string         `json:"type"`
	Data  models.Message `json:"data"`
}

type askEvent struct {
	ToolCalls []models.ToolCall `json:"tool_calls"`
}

type doneEvent struct {
	Status string `json:"status"`
}

// streamMessages handles GET /chat/messages?chat_id=&last_index=N: a
// read-only SSE stream per spec.md §4.8. It emits a message event for
// every message at index >= last_index, one ask event the first time
// the last assistant message carries pending tool calls, and a done
// event that closes the stream once the chat is settled (a plain-text
// assistant reply, or the interrupted flag is set).
func (h *Handler) streamMessages(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		h.jsonError(w, "chat_id is required", http.StatusBadRequest)
		return
	}
	lastIndex := 0
	if v := r.URL.Query().Get("last_index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.jsonError(w, "last_index must be a non-negative integer", http.StatusBadRequest)
			return
		}
		lastIndex = n
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.jsonError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	userID := h.userID(r)
	ctx := r.Context()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	asked := false
	for {
		chat, err := h.cfg.Store.GetChat(ctx, userID, chatID)
		if err != nil {
			h.cfg.Logger.Error("httpapi: stream load chat", "error", err)
			return
		}

		for lastIndex < len(chat.Messages) {
			if !writeEvent(w, "message", messageEvent{Index: lastIndex, Type: "message", Data: chat.Messages[lastIndex]}) {
				return
			}
			lastIndex++
		}
		flusher.Flush()

		if !asked {
			if _, unhandled, ok := agent.Unhandled(chat.Messages); ok {
				var pending []models.ToolCall
				for _, tc := range unhandled {
					if tc.EffectiveStatus() == models.ToolCallPending {
						pending = append(pending, tc)
					}
				}
				if len(pending) > 0 {
					if !writeEvent(w, "ask", askEvent{ToolCalls: pending}) {
						return
					}
					flusher.Flush()
					asked = true
				}
			}
		}

		if chat.Interrupted {
			writeEvent(w, "done", doneEvent{Status: "interrupted"})
			flusher.Flush()
			return
		}
		if lastAssistantIsPlainText(chat.Messages) {
			writeEvent(w, "done", doneEvent{Status: "completed"})
			flusher.Flush()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// lastAssistantIsPlainText reports whether the most recent message is
// an assistant reply with no tool calls at all - the "settled" state
// spec.md §4.8 closes the stream on.
func lastAssistantIsPlainText(messages []models.Message) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.Role == models.RoleAssistant && !last.HasToolCalls()
}

func writeEvent(w http.ResponseWriter, event string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return false
	}
	return true
}
