// Package httpapi implements the HTTP surface for C5's approval
// protocol endpoints and C8's event stream, per spec.md §6/§4.8.
//
// Grounded on the teacher's internal/web.Handler: a Config struct of
// collaborators, one mux built in NewHandler, jsonResponse/jsonError
// helpers, userFromContext pulling the authenticated identity off the
// request context via internal/auth. The teacher's html/template
// dashboard is dropped (spec.md's Non-goals exclude any admin UI) —
// only the JSON API shape survives.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/haasonsaas/agentcore/internal/auth"
	"github.com/haasonsaas/agentcore/internal/jobs"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/store"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Config holds Handler's collaborators. Bearer-token validation itself
// happens one layer up, via auth.Middleware wrapping this Handler - it
// never needs the JWTService directly, only the identity the
// middleware already attached to the request context.
type Config struct {
	Store      store.Store
	Dispatcher jobs.Dispatcher
	Metrics    *observability.Metrics
	Logger     *slog.Logger
	// DefaultUserID is used for any request that didn't go through auth
	// middleware (local/dev mode, auth disabled).
	DefaultUserID string
}

// Handler serves C5/C8's JSON+SSE HTTP surface.
type Handler struct {
	cfg Config
	mux *http.ServeMux
}

// NewHandler builds a Handler with all routes registered.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "local-user"
	}

	h := &Handler{cfg: cfg, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /chat", h.createChat)
	h.mux.HandleFunc("POST /chat/message", h.postMessage)
	h.mux.HandleFunc("POST /chat/approve", h.approve)
	h.mux.HandleFunc("POST /chat/stop", h.stop)
	h.mux.HandleFunc("POST /chat/auto_approve", h.autoApprove)
	h.mux.HandleFunc("GET /chat/list", h.listChats)
	h.mux.HandleFunc("GET /chat/detail", h.chatDetail)
	h.mux.HandleFunc("GET /chat/messages", h.streamMessages)
	return h
}

// ServeHTTP lets Handler itself be mounted as an http.Handler, wrapped
// by auth.Middleware by the caller (cmd/agentcore) so bearer-token
// validation happens once, outside this package.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// userID resolves the acting user: the authenticated identity if
// middleware attached one, else Config.DefaultUserID for local/no-auth
// deployments.
func (h *Handler) userID(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.ID
	}
	return h.cfg.DefaultUserID
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.cfg.Logger.Error("httpapi: encode response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.cfg.Logger.Error("httpapi: encode error response", "error", err)
	}
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// enqueue wraps Dispatcher.Enqueue with the jobs-queued metric.
func (h *Handler) enqueue(r *http.Request, job models.Job) error {
	if err := h.cfg.Dispatcher.Enqueue(r.Context(), job); err != nil {
		return err
	}
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.JobsQueued.Inc()
	}
	return nil
}
