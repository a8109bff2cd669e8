// Package response writes the uniform JSON envelope every endpoint answers with.
package response

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
)

type ctxKey struct{}

// WithDiagnostics marks the request as allowed to see the diagnostic reason of a
// failure in the envelope's detail field.
func WithDiagnostics(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, ctxKey{}, enabled)
}

func diagnosticsEnabled(ctx context.Context) bool {
	enabled, _ := ctx.Value(ctxKey{}).(bool)
	return enabled
}

type success struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type failure struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
	Detail     string   `json:"detail,omitempty"`
}

// JSON writes a successful envelope carrying data.
func JSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	write(ctx, w, status, success{StatusCode: status, Data: data, Message: message, Success: status < http.StatusBadRequest})
}

// OK writes a 200 envelope.
func OK(ctx context.Context, w http.ResponseWriter, data any, message string) {
	JSON(ctx, w, http.StatusOK, data, message)
}

// Created writes a 201 envelope.
func Created(ctx context.Context, w http.ResponseWriter, data any, message string) {
	JSON(ctx, w, http.StatusCreated, data, message)
}

// Error classifies err and writes the matching failure envelope. Client errors are
// logged at warn level and server errors at error level, both with the diagnostic
// reason the client may not see.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	status := appErr.Kind.Status()

	body := failure{
		StatusCode: status,
		Message:    appErr.Message,
		Errors:     appErr.Details,
	}
	if body.Errors == nil {
		body.Errors = []string{}
	}
	if diagnosticsEnabled(ctx) {
		body.Detail = appErr.Error()
	}

	logger := logging.FromContext(ctx)
	attrs := []any{
		slog.Int("status", status),
		slog.String("kind", appErr.Kind.String()),
		slog.String("error", appErr.Error()),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request returned client error", attrs...)
	}

	write(ctx, w, status, body)
}

func write(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}
