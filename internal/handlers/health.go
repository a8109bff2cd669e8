package handlers

import (
	"context"
	"net/http"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/response"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Check probes the backing store. A nil Check always reports healthy.
	Check func(ctx context.Context) error
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Check != nil {
		if err := h.Check(ctx); err != nil {
			logging.FromContext(ctx).Error("health check failed", "error", err)
			response.Error(ctx, w, apperr.Unavailable(err))
			return
		}
	}
	response.OK(ctx, w, map[string]string{"status": "ok"}, "healthy")
}
