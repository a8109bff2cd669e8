package auth

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

type ctxKey string

const userKey ctxKey = "user"

// WithUser attaches the authenticated user to the context. Credential fields are
// stripped before storage.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey, user.Sanitized())
}

// UserFromContext returns the authenticated user attached by the session middleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	if ctx == nil {
		return models.User{}, false
	}
	user, ok := ctx.Value(userKey).(models.User)
	if !ok || user.ID == "" {
		return models.User{}, false
	}
	return user, true
}
