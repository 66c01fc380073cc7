package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

type todoService interface {
	CreateTodo(ctx context.Context, params application.CreateTodoParams) (application.Todo, error)
	UpdateTodo(ctx context.Context, params application.UpdateTodoParams) (application.Todo, error)
	BatchUpdateTodos(ctx context.Context, principal application.Principal, items []application.BatchUpdateItem) ([]application.BatchUpdateResult, error)
	DeleteTodo(ctx context.Context, principal application.Principal, todoID string) error
	GetTodo(ctx context.Context, principal application.Principal, todoID string) (application.Todo, error)
	ListTodos(ctx context.Context, principal application.Principal, filter application.TodoFilter) ([]application.Todo, error)
}

// TodoHandler serves the /todos collection and its members.
type TodoHandler struct {
	service   todoService
	responder responder
	logger    *slog.Logger
}

func NewTodoHandler(service todoService, logger *slog.Logger) *TodoHandler {
	base := defaultLogger(logger)
	return &TodoHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TodoHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "TodoHandler", operation, attrs...)
}

// List handles GET /todos.
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	principal, _ := PrincipalFromContext(r.Context())
	todos, err := h.service.ListTodos(r.Context(), principal, application.TodoFilter{
		Status:     application.Status(query.Get("status")),
		Priority:   application.Priority(query.Get("priority")),
		CategoryID: query.Get("category"),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, api.FromTodos(todos))
}

// Create handles POST /todos.
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req api.CreateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	todo, err := h.service.CreateTodo(r.Context(), application.CreateTodoParams{
		Principal: principal,
		Input:     req.Input(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusCreated, api.FromTodo(todo))
}

// Get handles GET /todos/{id}.
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	todo, err := h.service.GetTodo(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, api.FromTodo(todo))
}

// Update handles PATCH /todos/{id}.
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req api.UpdateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	todo, err := h.service.UpdateTodo(r.Context(), application.UpdateTodoParams{
		Principal: principal,
		TodoID:    r.PathValue("id"),
		Patch:     req.Patch(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, api.FromTodo(todo))
}

// Delete handles DELETE /todos/{id}.
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteTodo(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, nil)
}

// Batch handles POST /todos/batch. The response is 200 whenever the batch
// itself was accepted; each item carries its own outcome.
func (h *TodoHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req api.BatchUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	items := make([]application.BatchUpdateItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, application.BatchUpdateItem{TodoID: item.ID, Patch: item.Patch.Patch()})
	}

	principal, _ := PrincipalFromContext(r.Context())
	results, err := h.service.BatchUpdateTodos(r.Context(), principal, items)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]api.BatchUpdateResult, 0, len(results))
	failed := 0
	for _, result := range results {
		entry := api.BatchUpdateResult{ID: result.TodoID}
		if result.Err != nil {
			failed++
			status, resp := errorResponse(result.Err)
			if status == http.StatusInternalServerError {
				h.log(r.Context(), "Batch", "todo_id", result.TodoID).
					ErrorContext(r.Context(), "batch item failed unexpectedly", "error", result.Err, "error_kind", application.ErrorKind(result.Err))
			}
			entry.Error = resp.Error
			entry.Details = resp.Details
		} else if result.Todo != nil {
			todo := api.FromTodo(*result.Todo)
			entry.Success = true
			entry.Data = &todo
		}
		out = append(out, entry)
	}

	h.log(r.Context(), "Batch", "item_count", len(out), "failed_count", failed).InfoContext(r.Context(), "batch processed")
	h.responder.writeData(r.Context(), w, http.StatusOK, out)
}
