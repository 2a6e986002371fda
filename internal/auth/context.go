package auth

import (
	"context"

	"github.com/haasonsaas/agentcore/pkg/models"
)

type userContextKey struct{}

// WithUser attaches a resolved user to ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the user a middleware attached earlier.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*models.User)
	return user, ok
}
