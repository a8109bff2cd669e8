package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/middleware"
)

var errTooManyAttempts = apperr.New(apperr.KindRateLimited, "too many attempts, please retry later")

func allowRequest(limiter middleware.RateLimiter, m *metrics.Metrics, r *http.Request, scope string) error {
	if limiter == nil {
		return nil
	}
	if limiter.Allow(r.Context(), middleware.RateKey(r, scope)) {
		return nil
	}
	m.RateLimited(scope)
	return errTooManyAttempts
}
