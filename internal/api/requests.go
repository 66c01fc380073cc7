package api

import (
	"strings"
	"time"

	"github.com/example/todosync/internal/application"
)

// LoginRequest is the body of POST /sessions.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateTodoRequest is the body of POST /todos.
type CreateTodoRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Status      string     `json:"status,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CategoryIDs []string   `json:"categoryIds,omitempty"`
	TeamID      *string    `json:"teamId,omitempty"`
}

// Input converts the request to service input.
func (r CreateTodoRequest) Input() application.TodoInput {
	return application.TodoInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    application.Priority(r.Priority),
		Status:      application.Status(r.Status),
		DueDate:     r.DueDate,
		CategoryIDs: r.CategoryIDs,
		TeamID:      r.TeamID,
	}
}

// UpdateTodoRequest is the body of PATCH /todos/{id}. Absent fields are left
// unchanged. clearDueDate removes the due date.
type UpdateTodoRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Priority     *string    `json:"priority,omitempty"`
	Status       *string    `json:"status,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	ClearDueDate bool       `json:"clearDueDate,omitempty"`
	CategoryIDs  *[]string  `json:"categoryIds,omitempty"`
}

// Patch converts the request to a service patch.
func (r UpdateTodoRequest) Patch() application.TodoPatch {
	patch := application.TodoPatch{
		Title:        r.Title,
		Description:  r.Description,
		DueDate:      r.DueDate,
		ClearDueDate: r.ClearDueDate,
	}
	if r.Priority != nil {
		p := application.Priority(strings.TrimSpace(*r.Priority))
		patch.Priority = &p
	}
	if r.Status != nil {
		s := application.Status(strings.TrimSpace(*r.Status))
		patch.Status = &s
	}
	if r.CategoryIDs != nil {
		ids := append([]string{}, (*r.CategoryIDs)...)
		patch.CategoryIDs = &ids
	}
	return patch
}

// BatchUpdateRequest is the body of POST /todos/batch.
type BatchUpdateRequest struct {
	Items []BatchUpdateItem `json:"items"`
}

// BatchUpdateItem is one patch of a batch.
type BatchUpdateItem struct {
	ID    string            `json:"id"`
	Patch UpdateTodoRequest `json:"patch"`
}

// BatchUpdateResult is the per-item outcome of a batch.
type BatchUpdateResult struct {
	ID      string       `json:"id"`
	Success bool         `json:"success"`
	Data    *Todo        `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// CreateSubtaskRequest is the body of POST /todos/{id}/subtasks.
type CreateSubtaskRequest struct {
	Title string `json:"title"`
}

// UpdateSubtaskRequest is the body of PATCH /todos/{id}/subtasks/{subtaskId}.
type UpdateSubtaskRequest struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// CreateCommentRequest is the body of POST /todos/{id}/comments.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// CreateCategoryRequest is the body of POST /categories.
type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// TodoQuery carries the filters of GET /todos.
type TodoQuery struct {
	Status     string
	Priority   string
	CategoryID string
}
