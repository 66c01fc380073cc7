package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

type subtaskService interface {
	AddSubtask(ctx context.Context, principal application.Principal, todoID string, input application.SubtaskInput) (application.Todo, error)
	UpdateSubtask(ctx context.Context, principal application.Principal, todoID, subtaskID string, patch application.SubtaskPatch) (application.Todo, error)
	DeleteSubtask(ctx context.Context, principal application.Principal, todoID, subtaskID string) (application.Todo, error)
}

// SubtaskHandler serves /todos/{id}/subtasks. Every operation answers with
// the parent todo.
type SubtaskHandler struct {
	service   subtaskService
	responder responder
}

func NewSubtaskHandler(service subtaskService, logger *slog.Logger) *SubtaskHandler {
	return &SubtaskHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *SubtaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req api.CreateSubtaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	todo, err := h.service.AddSubtask(r.Context(), principal, r.PathValue("id"), application.SubtaskInput{Title: req.Title})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusCreated, api.FromTodo(todo))
}

func (h *SubtaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req api.UpdateSubtaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	todo, err := h.service.UpdateSubtask(r.Context(), principal, r.PathValue("id"), r.PathValue("subtaskId"), application.SubtaskPatch{
		Title:     req.Title,
		Completed: req.Completed,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, api.FromTodo(todo))
}

func (h *SubtaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	todo, err := h.service.DeleteSubtask(r.Context(), principal, r.PathValue("id"), r.PathValue("subtaskId"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, api.FromTodo(todo))
}
