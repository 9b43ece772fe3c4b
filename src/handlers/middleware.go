package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/services"
	"github.com/username/goldfolio/backend/src/utils"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// ContextualLoggerMiddleware creates a logger with a requestID for each request.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sendServiceError maps the service error taxonomy onto HTTP status codes.
// Anything outside the taxonomy is reported as a generic internal failure.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrConflict):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrPaymentDeclined):
		utils.SendJSONError(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, services.ErrUpstreamUnavailable):
		utils.SendJSONError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logger.FromContext(r.Context()).Error("Unhandled service error", "path", r.URL.Path, "error", err)
		utils.SendJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
