package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errMissingSessionToken = errors.New("authentication required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	r.writeJSON(ctx, w, status, api.Response{Success: true, Data: data})
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
	}
	r.writeJSON(ctx, w, status, api.Response{Error: message})
}

// handleServiceError is the single place where service errors become HTTP
// statuses.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err, "error_kind", application.ErrorKind(err))
	}
	r.writeJSON(ctx, w, status, resp)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// errorResponse classifies err. Unexpected errors are reported with a
// generic message.
func errorResponse(err error) (int, api.Response) {
	var vErr *application.ValidationError
	switch {
	case err == nil:
		return http.StatusInternalServerError, api.Response{Error: "internal server error"}
	case errors.As(err, &vErr):
		return http.StatusBadRequest, api.Response{Error: "validation failed", Details: api.FieldErrors(vErr)}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusBadRequest, api.Response{Error: "resource already exists"}
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, api.Response{Error: "invalid email or password"}
	case errors.Is(err, application.ErrSessionExpired):
		return http.StatusUnauthorized, api.Response{Error: "session expired"}
	case errors.Is(err, application.ErrSessionRevoked):
		return http.StatusUnauthorized, api.Response{Error: "session revoked"}
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusUnauthorized, api.Response{Error: "authentication required"}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, api.Response{Error: "resource not found"}
	case errors.Is(err, application.ErrConflict):
		return http.StatusConflict, api.Response{Error: "todo was changed by another request, reload and retry"}
	}
	return http.StatusInternalServerError, api.Response{Error: "internal server error"}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errBadRequestBody
	}
	return nil
}
