package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/todosync/internal/api"
)

// Store performs mutations optimistically against the local cache and
// settles them with the REST answer.
type Store struct {
	api        *API
	reconciler *Reconciler
	now        func() time.Time
	logger     *slog.Logger

	// OnAuthFailure is called when the server rejects the credential; it is
	// where the caller forces a logout.
	OnAuthFailure func(error)
}

// NewStore pairs a REST client with a cache.
func NewStore(client *API, reconciler *Reconciler, logger *slog.Logger) *Store {
	if reconciler == nil {
		reconciler = NewReconciler()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:        client,
		reconciler: reconciler,
		now:        time.Now,
		logger:     logger.With("component", "client_store"),
	}
}

// Reconciler exposes the cache the store writes to.
func (s *Store) Reconciler() *Reconciler { return s.reconciler }

// Refresh reloads every todo from the server. It is the full refresh run
// after a reconnect.
func (s *Store) Refresh(ctx context.Context) error {
	todos, err := s.api.ListTodos(ctx, api.TodoQuery{})
	if err != nil {
		return s.fail(ctx, "Refresh", err)
	}
	s.reconciler.Replace(todos)
	return nil
}

// CreateTodo shows the todo under a provisional id and replaces it with the
// created resource.
func (s *Store) CreateTodo(ctx context.Context, req api.CreateTodoRequest) (api.Todo, error) {
	now := s.now().UTC()
	draft := api.Todo{
		ID:          "pending-" + uuid.NewString(),
		TeamID:      req.TeamID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    defaultString(req.Priority, "MEDIUM"),
		Status:      defaultString(req.Status, "TODO"),
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	token, err := s.reconciler.BeginCreate(draft)
	if err != nil {
		return api.Todo{}, err
	}

	created, err := s.api.CreateTodo(ctx, req)
	if err != nil {
		_ = s.reconciler.Rollback(token)
		return api.Todo{}, s.fail(ctx, "CreateTodo", err)
	}
	_ = s.reconciler.Confirm(token, created)
	return created, nil
}

// UpdateTodo applies req locally and then on the server.
func (s *Store) UpdateTodo(ctx context.Context, id string, req api.UpdateTodoRequest) (api.Todo, error) {
	token, err := s.reconciler.BeginUpdate(id, func(todo *api.Todo) { applyPatch(todo, req) })
	if err != nil {
		return api.Todo{}, err
	}

	updated, err := s.api.UpdateTodo(ctx, id, req)
	if err != nil {
		_ = s.reconciler.Rollback(token)
		return api.Todo{}, s.fail(ctx, "UpdateTodo", err)
	}
	_ = s.reconciler.Confirm(token, updated)
	return updated, nil
}

// SetSubtaskCompleted toggles one subtask of a cached todo.
func (s *Store) SetSubtaskCompleted(ctx context.Context, todoID, subtaskID string, completed bool) (api.Todo, error) {
	token, err := s.reconciler.BeginUpdate(todoID, func(todo *api.Todo) {
		done := 0
		for i := range todo.Subtasks {
			if todo.Subtasks[i].ID == subtaskID {
				todo.Subtasks[i].Completed = completed
			}
			if todo.Subtasks[i].Completed {
				done++
			}
		}
		todo.CompletedSubtasks = done
	})
	if err != nil {
		return api.Todo{}, err
	}

	updated, err := s.api.UpdateSubtask(ctx, todoID, subtaskID, api.UpdateSubtaskRequest{Completed: &completed})
	if err != nil {
		_ = s.reconciler.Rollback(token)
		return api.Todo{}, s.fail(ctx, "SetSubtaskCompleted", err)
	}
	_ = s.reconciler.Confirm(token, updated)
	return updated, nil
}

// DeleteTodo hides the todo and removes it on the server.
func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	token, err := s.reconciler.BeginDelete(id)
	if err != nil {
		return err
	}
	if err := s.api.DeleteTodo(ctx, id); err != nil {
		_ = s.reconciler.Rollback(token)
		return s.fail(ctx, "DeleteTodo", err)
	}
	_ = s.reconciler.Confirm(token, api.Todo{ID: id})
	return nil
}

// AddComment posts a comment and records it on the cached todo.
func (s *Store) AddComment(ctx context.Context, todoID, body string) (api.Comment, error) {
	comment, err := s.api.AddComment(ctx, todoID, body)
	if err != nil {
		return api.Comment{}, s.fail(ctx, "AddComment", err)
	}
	if msg, encErr := api.NewMessage(api.TypeCommentAdded, comment); encErr == nil {
		_ = s.reconciler.Apply(msg)
	}
	return comment, nil
}

func (s *Store) fail(ctx context.Context, operation string, err error) error {
	s.logger.WarnContext(ctx, "client mutation failed", "operation", operation, "error", err)
	if IsAuthError(err) && s.OnAuthFailure != nil {
		s.OnAuthFailure(err)
	}
	return err
}

func applyPatch(todo *api.Todo, req api.UpdateTodoRequest) {
	if req.Title != nil {
		todo.Title = *req.Title
	}
	if req.Description != nil {
		todo.Description = *req.Description
	}
	if req.Priority != nil {
		todo.Priority = *req.Priority
	}
	if req.Status != nil {
		todo.Status = *req.Status
	}
	if req.ClearDueDate {
		todo.DueDate = nil
	} else if req.DueDate != nil {
		due := *req.DueDate
		todo.DueDate = &due
	}
	if req.CategoryIDs != nil {
		// Names are unknown until the server answers.
		refs := make([]api.CategoryRef, 0, len(*req.CategoryIDs))
		for _, id := range *req.CategoryIDs {
			refs = append(refs, api.CategoryRef{ID: id})
		}
		todo.Categories = refs
	}
	todo.UpdatedAt = time.Now().UTC()
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
