package middleware

import (
	"context"
	"net/http"
	"time"
)

// Deadline bounds the context of every request passing through it. Handlers that
// need longer, such as media uploads, derive their own context before this applies.
func Deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
