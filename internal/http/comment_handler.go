package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

type commentService interface {
	AddComment(ctx context.Context, principal application.Principal, todoID string, input application.CommentInput) (application.Comment, error)
	DeleteComment(ctx context.Context, principal application.Principal, todoID, commentID string) (application.Todo, error)
}

// CommentHandler serves /todos/{id}/comments.
type CommentHandler struct {
	service   commentService
	responder responder
}

func NewCommentHandler(service commentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req api.CreateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	comment, err := h.service.AddComment(r.Context(), principal, r.PathValue("id"), application.CommentInput{Body: req.Body})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusCreated, api.FromComment(comment))
}

// Delete answers with the parent todo.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	todo, err := h.service.DeleteComment(r.Context(), principal, r.PathValue("id"), r.PathValue("commentId"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, api.FromTodo(todo))
}
