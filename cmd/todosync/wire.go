package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/todosync/internal/application"
	"github.com/example/todosync/internal/config"
	httptransport "github.com/example/todosync/internal/http"
	"github.com/example/todosync/internal/persistence/sqlite"
	"github.com/example/todosync/internal/realtime"
)

const sessionCacheSize = 1024

// openStorage opens the configured database and brings its schema up to date.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlite.Storage, error) {
	storage, err := sqlite.OpenPath(cfg.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	applied, err := storage.Migrate(ctx)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	if applied > 0 {
		logger.Info("migrations applied", "count", applied)
	}
	return storage, nil
}

// server is the fully wired application behind `todosync serve`.
type server struct {
	handler  http.Handler
	registry *realtime.Registry
	auth     *application.AuthService
}

func buildServer(cfg config.Config, storage *sqlite.Storage, logger *slog.Logger) (*server, error) {
	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	users := newUserRepositoryAdapter(storage.Users)
	sessions := newSessionRepositoryAdapter(storage.Sessions)
	categories := newCategoryRepositoryAdapter(storage.Categories)
	todos := newTodoRepositoryAdapter(storage.Todos)
	teams := storage.Teams

	registry := realtime.NewRegistryWithLogger(cfg.OutboxSize, idGenerator, logger)
	notifier := realtime.NewNotifier(registry, logger)

	authService := application.NewAuthServiceWithLogger(users, sessions, nil, tokenGenerator, now, cfg.SessionTTL, logger)
	authService.EnableSessionCache(sessionCacheSize, cfg.SessionCacheTTL)

	locks := application.NewTodoLocks()
	todoService := application.NewTodoServiceWithLogger(todos, categories, teams, notifier, idGenerator, now, logger)
	todoService.UseLocks(locks)
	subtaskService := application.NewSubtaskServiceWithLogger(todos, todos, notifier, idGenerator, now, logger)
	subtaskService.UseLocks(locks)
	commentService := application.NewCommentServiceWithLogger(todos, todos, notifier, idGenerator, now, logger)
	commentService.UseLocks(locks)
	categoryService := application.NewCategoryServiceWithLogger(categories, idGenerator, now, logger)

	gateway, err := realtime.NewGateway(registry, authService, teams, realtime.GatewayConfig{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:             httptransport.NewAuthHandler(authService, logger),
		Todos:            httptransport.NewTodoHandler(todoService, logger),
		Subtasks:         httptransport.NewSubtaskHandler(subtaskService, logger),
		Comments:         httptransport.NewCommentHandler(commentService, logger),
		Categories:       httptransport.NewCategoryHandler(categoryService, logger),
		Realtime:         gateway,
		RealtimeSessions: registry,
		Sessions:         authService,
		RequestTimeout:   cfg.RequestTimeout,
		Logger:           logger,
		Middleware:       []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &server{handler: handler, registry: registry, auth: authService}, nil
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
