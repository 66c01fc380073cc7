package http

import (
	"context"
	"log/slog"

	"github.com/example/todosync/internal/application"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handlerLogger scopes the request logger to one handler operation and tags it
// with the caller and, when the request came from a live client, its realtime
// session so mutation logs can be correlated with broadcast logs.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := make([]any, 0, 8+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if principal, ok := PrincipalFromContext(ctx); ok && principal.UserID != "" {
		pairs = append(pairs, "user_id", principal.UserID)
	}
	if origin := application.OriginFromContext(ctx); origin != "" {
		pairs = append(pairs, "realtime_session", origin)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
