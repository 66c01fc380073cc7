package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

type categoryService interface {
	CreateCategory(ctx context.Context, principal application.Principal, input application.CategoryInput) (application.Category, error)
	ListCategories(ctx context.Context, principal application.Principal) ([]application.Category, error)
	DeleteCategory(ctx context.Context, principal application.Principal, categoryID string) error
}

// CategoryHandler serves /categories.
type CategoryHandler struct {
	service   categoryService
	responder responder
}

func NewCategoryHandler(service categoryService, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	categories, err := h.service.ListCategories(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]api.Category, 0, len(categories))
	for _, c := range categories {
		out = append(out, api.FromCategory(c))
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, out)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req api.CreateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	category, err := h.service.CreateCategory(r.Context(), principal, application.CategoryInput{Name: req.Name, Color: req.Color})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusCreated, api.FromCategory(category))
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteCategory(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeData(r.Context(), w, http.StatusOK, nil)
}
