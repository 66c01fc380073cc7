package http

import (
	"log/slog"
	"net/http"
	"time"
)

// RouterConfig collects the handlers mounted by NewRouter. Nil handlers are
// not mounted.
type RouterConfig struct {
	Auth       *AuthHandler
	Todos      *TodoHandler
	Subtasks   *SubtaskHandler
	Comments   *CommentHandler
	Categories *CategoryHandler
	// Realtime serves GET /realtime. It authenticates its own handshake.
	Realtime http.Handler
	// RealtimeSessions validates X-Realtime-Session. Without it the header
	// is ignored.
	RealtimeSessions RealtimeSessions
	// Sessions guards every endpoint except login, health and realtime.
	Sessions       SessionValidator
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	responder := newResponder(cfg.Logger)

	protect := func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = RealtimeOrigin(cfg.RealtimeSessions)(h)
		if cfg.Sessions != nil {
			handler = RequireSession(cfg.Sessions, cfg.Logger)(handler)
		}
		return RequestTimeout(cfg.RequestTimeout)(handler)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		responder.writeData(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Auth != nil {
		mux.Handle("POST /sessions", RequestTimeout(cfg.RequestTimeout)(http.HandlerFunc(cfg.Auth.CreateSession)))
		mux.HandleFunc("DELETE /sessions/current", cfg.Auth.DeleteCurrentSession)
	}

	if cfg.Todos != nil {
		mux.Handle("GET /todos", protect(cfg.Todos.List))
		mux.Handle("POST /todos", protect(cfg.Todos.Create))
		mux.Handle("POST /todos/batch", protect(cfg.Todos.Batch))
		mux.Handle("GET /todos/{id}", protect(cfg.Todos.Get))
		mux.Handle("PATCH /todos/{id}", protect(cfg.Todos.Update))
		mux.Handle("DELETE /todos/{id}", protect(cfg.Todos.Delete))
	}

	if cfg.Subtasks != nil {
		mux.Handle("POST /todos/{id}/subtasks", protect(cfg.Subtasks.Create))
		mux.Handle("PATCH /todos/{id}/subtasks/{subtaskId}", protect(cfg.Subtasks.Update))
		mux.Handle("DELETE /todos/{id}/subtasks/{subtaskId}", protect(cfg.Subtasks.Delete))
	}

	if cfg.Comments != nil {
		mux.Handle("POST /todos/{id}/comments", protect(cfg.Comments.Create))
		mux.Handle("DELETE /todos/{id}/comments/{commentId}", protect(cfg.Comments.Delete))
	}

	if cfg.Categories != nil {
		mux.Handle("GET /categories", protect(cfg.Categories.List))
		mux.Handle("POST /categories", protect(cfg.Categories.Create))
		mux.Handle("DELETE /categories/{id}", protect(cfg.Categories.Delete))
	}

	if cfg.Realtime != nil {
		mux.Handle("GET /realtime", cfg.Realtime)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
