package httpapi

import (
	"errors"
	"net/http"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/store"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type createChatRequest struct {
	Prompt      string `json:"prompt"`
	BotName     string `json:"bot_name,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`
	AutoApprove bool   `json:"auto_approve,omitempty"`
}

type createChatResponse struct {
	ChatID string `json:"chat_id"`
}

// createChat handles POST /chat: opens a new chat seeded with the
// first user message, per spec.md §6.
func (h *Handler) createChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		h.jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	userID := h.userID(r)
	chatID := req.ChatID
	if chatID == "" {
		chatID = models.NewID()
	}

	iso, unix := models.NowStamps()
	chat := &models.Chat{
		UserID:      userID,
		ChatID:      chatID,
		BotName:     req.BotName,
		Title:       models.TitleFromPrompt(req.Prompt),
		AutoApprove: req.AutoApprove,
		Messages: []models.Message{{
			ID:            models.NewID(),
			Role:          models.RoleUser,
			Content:       req.Prompt,
			Timestamp:     iso,
			UnixTimestamp: unix,
		}},
	}

	if err := h.cfg.Store.CreateChat(r.Context(), userID, chat); err != nil {
		h.cfg.Logger.Error("httpapi: create chat", "error", err)
		h.jsonError(w, "failed to create chat", http.StatusInternalServerError)
		return
	}

	if err := h.enqueue(r, models.Job{ChatID: chatID, BotName: req.BotName, UserID: userID}); err != nil {
		h.cfg.Logger.Error("httpapi: enqueue job", "error", err)
		h.jsonError(w, "failed to enqueue job", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, createChatResponse{ChatID: chatID})
}

type postMessageRequest struct {
	ChatID  string `json:"chat_id"`
	Prompt  string `json:"prompt"`
	BotName string `json:"bot_name,omitempty"`
}

// postMessage handles POST /chat/message: appends a user message to an
// existing chat and re-enqueues a job, clearing any prior interruption.
func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.ChatID == "" || req.Prompt == "" {
		h.jsonError(w, "chat_id and prompt are required", http.StatusBadRequest)
		return
	}

	userID := h.userID(r)
	chat, err := h.cfg.Store.GetChat(r.Context(), userID, req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		h.jsonError(w, "chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.cfg.Logger.Error("httpapi: load chat", "error", err)
		h.jsonError(w, "failed to load chat", http.StatusInternalServerError)
		return
	}

	// Built against the loaded chat and saved in one shot (rather than a
	// separate AppendMessage write) so clearing Interrupted below can
	// never race with or be overwritten by the append.
	if chat.Interrupted {
		// This message is the "following message" spec.md §8 scenario 5
		// describes: cover any tool call left unhandled by the stop that
		// set this flag before resuming, the same way the worker would
		// on its next observation of it.
		chat.Messages = agent.Backfill(chat.Messages, agent.BackfillCancelled)
		chat.Interrupted = false
	}

	iso, unix := models.NowStamps()
	chat.Messages = append(chat.Messages, models.Message{
		ID:            models.NewID(),
		Role:          models.RoleUser,
		Content:       req.Prompt,
		Timestamp:     iso,
		UnixTimestamp: unix,
	})

	if err := h.cfg.Store.SaveChat(r.Context(), userID, chat); err != nil {
		h.cfg.Logger.Error("httpapi: save chat", "error", err)
		h.jsonError(w, "failed to append message", http.StatusInternalServerError)
		return
	}

	botName := req.BotName
	if botName == "" {
		botName = chat.BotName
	}
	if err := h.enqueue(r, models.Job{ChatID: req.ChatID, BotName: botName, UserID: userID}); err != nil {
		h.cfg.Logger.Error("httpapi: enqueue job", "error", err)
		h.jsonError(w, "failed to enqueue job", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]bool{"ok": true})
}

type approveRequest struct {
	ChatID      string          `json:"chat_id"`
	Decisions   map[string]bool `json:"decisions"`
	UserMessage string          `json:"user_message,omitempty"`
}

// approve handles POST /chat/approve per spec.md §4.5: statuses the
// named pending tool calls approved/rejected, backfills synthetic tool
// results for any rejected call, optionally appends a follow-up user
// message, and re-enqueues a job only once nothing is left pending.
func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.ChatID == "" {
		h.jsonError(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	userID := h.userID(r)
	chat, err := h.cfg.Store.GetChat(r.Context(), userID, req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		h.jsonError(w, "chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.cfg.Logger.Error("httpapi: load chat", "error", err)
		h.jsonError(w, "failed to load chat", http.StatusInternalServerError)
		return
	}

	assistantIdx, unhandled, ok := agent.Unhandled(chat.Messages)
	hasPending := false
	for _, tc := range unhandled {
		if tc.EffectiveStatus() == models.ToolCallPending {
			hasPending = true
		}
	}
	if !ok || !hasPending {
		h.jsonError(w, "no pending tool calls on this chat", http.StatusBadRequest)
		return
	}

	toolCalls := chat.Messages[assistantIdx].ToolCalls
	for i, tc := range toolCalls {
		approved, decided := req.Decisions[tc.ID]
		if !decided || tc.EffectiveStatus() != models.ToolCallPending {
			continue
		}
		if approved {
			toolCalls[i].Status = models.ToolCallApproved
		} else {
			toolCalls[i].Status = models.ToolCallRejected
		}
	}
	chat.Messages[assistantIdx].ToolCalls = toolCalls
	chat.Messages = agent.Backfill(chat.Messages, agent.BackfillRejected)

	if req.UserMessage != "" {
		iso, unix := models.NowStamps()
		chat.Messages = append(chat.Messages, models.Message{
			ID:            models.NewID(),
			Role:          models.RoleUser,
			Content:       req.UserMessage,
			Timestamp:     iso,
			UnixTimestamp: unix,
		})
	}

	if err := h.cfg.Store.SaveChat(r.Context(), userID, chat); err != nil {
		h.cfg.Logger.Error("httpapi: save chat", "error", err)
		h.jsonError(w, "failed to save chat", http.StatusInternalServerError)
		return
	}

	stillPending := false
	if _, unhandledNow, ok := agent.Unhandled(chat.Messages); ok {
		for _, tc := range unhandledNow {
			if tc.EffectiveStatus() == models.ToolCallPending {
				stillPending = true
			}
		}
	}
	if !stillPending {
		if err := h.enqueue(r, models.Job{ChatID: req.ChatID, BotName: chat.BotName, UserID: userID}); err != nil {
			h.cfg.Logger.Error("httpapi: enqueue job", "error", err)
			h.jsonError(w, "failed to enqueue job", http.StatusInternalServerError)
			return
		}
	}

	h.jsonResponse(w, map[string]bool{"ok": true})
}

type stopRequest struct {
	ChatID string `json:"chat_id"`
}

// stop handles POST /chat/stop: raises the interrupted flag. This
// endpoint never touches the message log itself; the backfill of any
// in-flight tool calls as cancelled (agent.BackfillCancelled) happens
// wherever the flag is next observed true - the worker's process()
// (redelivered or explicitly re-enqueued job) or postMessage (the
// following message, per spec.md §8 scenario 5) - whichever comes
// first.
func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.ChatID == "" {
		h.jsonError(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	userID := h.userID(r)
	chat, err := h.cfg.Store.GetChat(r.Context(), userID, req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		h.jsonError(w, "chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.cfg.Logger.Error("httpapi: load chat", "error", err)
		h.jsonError(w, "failed to load chat", http.StatusInternalServerError)
		return
	}

	chat.Interrupted = true
	if err := h.cfg.Store.SaveChat(r.Context(), userID, chat); err != nil {
		h.cfg.Logger.Error("httpapi: save chat", "error", err)
		h.jsonError(w, "failed to save chat", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]bool{"ok": true})
}

type autoApproveRequest struct {
	ChatID      string `json:"chat_id"`
	AutoApprove bool   `json:"auto_approve"`
}

// autoApprove handles POST /chat/auto_approve.
func (h *Handler) autoApprove(w http.ResponseWriter, r *http.Request) {
	var req autoApproveRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.ChatID == "" {
		h.jsonError(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	userID := h.userID(r)
	chat, err := h.cfg.Store.GetChat(r.Context(), userID, req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		h.jsonError(w, "chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.cfg.Logger.Error("httpapi: load chat", "error", err)
		h.jsonError(w, "failed to load chat", http.StatusInternalServerError)
		return
	}

	chat.AutoApprove = req.AutoApprove
	if err := h.cfg.Store.SaveChat(r.Context(), userID, chat); err != nil {
		h.cfg.Logger.Error("httpapi: save chat", "error", err)
		h.jsonError(w, "failed to save chat", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]any{"ok": true, "auto_approve": chat.AutoApprove})
}

// listChats handles GET /chat/list?query=.
func (h *Handler) listChats(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	opts := store.ListOptions{Query: r.URL.Query().Get("query")}
	summaries, err := h.cfg.Store.ListChats(r.Context(), userID, opts)
	if err != nil {
		h.cfg.Logger.Error("httpapi: list chats", "error", err)
		h.jsonError(w, "failed to list chats", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, summaries)
}

// chatDetail handles GET /chat/detail?chat_id=.
func (h *Handler) chatDetail(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		h.jsonError(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	userID := h.userID(r)
	chat, err := h.cfg.Store.GetChat(r.Context(), userID, chatID)
	if errors.Is(err, store.ErrNotFound) {
		h.jsonError(w, "chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.cfg.Logger.Error("httpapi: load chat", "error", err)
		h.jsonError(w, "failed to load chat", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]any{"chat_id": chat.ChatID, "auto_approve": chat.AutoApprove})
}
