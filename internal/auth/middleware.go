package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// Middleware enforces bearer-token auth on net/http handlers, adapted
// from the teacher's internal/auth.UnaryInterceptor (the grpc
// metadata/codes plumbing is dropped since C5's HTTP surface speaks
// net/http, not grpc; the bearer-extraction and resolve-then-attach
// shape is unchanged). A nil/disabled Service is a deliberate no-auth
// mode for local development, matching the teacher's "service == nil
// -> pass through" branch.
func Middleware(svc *JWTService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !svc.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			user, err := svc.Validate(token)
			if err != nil {
				if logger != nil {
					logger.Warn("auth: token validation failed", "error", err)
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func extractBearer(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
