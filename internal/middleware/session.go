package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
)

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "accessToken"

// AccessVerifier resolves an access token to the identity it was issued for.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (models.User, error)
}

// RequireSession rejects requests without a valid access token and attaches the
// authenticated user to the request context. The token is read from the
// accessToken cookie first and the Authorization bearer header second.
func RequireSession(verifier AccessVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := accessToken(r)
			if token == "" {
				m.AuthFailure("token missing")
				response.Error(ctx, w, auth.ErrTokenMissing)
				return
			}

			user, err := verifier.VerifyAccess(ctx, token)
			if err != nil {
				m.AuthFailure(failureReason(err))
				response.Error(ctx, w, err)
				return
			}

			ctx = auth.WithUser(ctx, user)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("userId", user.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession attaches the user when a valid access token is presented and
// otherwise lets the request through anonymously.
func OptionalSession(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			user, err := verifier.VerifyAccess(ctx, token)
			if err != nil {
				logging.FromContext(ctx).Debug("ignoring unusable access token", "reason", failureReason(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(ctx, user)))
		})
	}
}

func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessCookie); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func failureReason(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindUnauthorized && appErr.Reason != "" {
		return appErr.Reason
	}
	return apperr.KindOf(err).String()
}
