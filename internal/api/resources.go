package api

import (
	"time"

	"github.com/example/todosync/internal/application"
)

// Todo is the wire form of a todo with its full graph.
type Todo struct {
	ID                string        `json:"id"`
	OwnerID           string        `json:"ownerId"`
	TeamID            *string       `json:"teamId,omitempty"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Priority          string        `json:"priority"`
	Status            string        `json:"status"`
	DueDate           *time.Time    `json:"dueDate,omitempty"`
	Categories        []CategoryRef `json:"categories"`
	Subtasks          []Subtask     `json:"subtasks"`
	Comments          []Comment     `json:"comments"`
	CompletedSubtasks int           `json:"completedSubtasks"`
	TotalSubtasks     int           `json:"totalSubtasks"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// CategoryRef is a category as embedded in a todo.
type CategoryRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Subtask is the wire form of a checklist entry.
type Subtask struct {
	ID        string    `json:"id"`
	TodoID    string    `json:"todoId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is the wire form of a note on a todo.
type Comment struct {
	ID        string    `json:"id"`
	TodoID    string    `json:"todoId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Category is the wire form of a category resource.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Session is returned by a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Clone returns a deep copy of t.
func (t Todo) Clone() Todo {
	out := t
	if t.TeamID != nil {
		team := *t.TeamID
		out.TeamID = &team
	}
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	out.Categories = append([]CategoryRef(nil), t.Categories...)
	out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	out.Comments = append([]Comment(nil), t.Comments...)
	return out
}

// HasComment reports whether a comment with id is attached.
func (t Todo) HasComment(id string) bool {
	for _, c := range t.Comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

// FromTodo converts an application todo to its wire form.
func FromTodo(todo application.Todo) Todo {
	out := Todo{
		ID:                todo.ID,
		OwnerID:           todo.OwnerID,
		Title:             todo.Title,
		Description:       todo.Description,
		Priority:          string(todo.Priority),
		Status:            string(todo.Status),
		Categories:        make([]CategoryRef, 0, len(todo.Categories)),
		Subtasks:          make([]Subtask, 0, len(todo.Subtasks)),
		Comments:          make([]Comment, 0, len(todo.Comments)),
		CompletedSubtasks: todo.CompletedSubtasks(),
		TotalSubtasks:     todo.TotalSubtasks(),
		CreatedAt:         todo.CreatedAt,
		UpdatedAt:         todo.UpdatedAt,
	}
	if todo.TeamID != nil {
		team := *todo.TeamID
		out.TeamID = &team
	}
	if todo.DueDate != nil {
		due := *todo.DueDate
		out.DueDate = &due
	}
	for _, c := range todo.Categories {
		out.Categories = append(out.Categories, CategoryRef{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	for _, s := range todo.Subtasks {
		out.Subtasks = append(out.Subtasks, FromSubtask(s))
	}
	for _, c := range todo.Comments {
		out.Comments = append(out.Comments, FromComment(c))
	}
	return out
}

// FromTodos converts a slice of application todos.
func FromTodos(todos []application.Todo) []Todo {
	out := make([]Todo, 0, len(todos))
	for _, todo := range todos {
		out = append(out, FromTodo(todo))
	}
	return out
}

// FromSubtask converts an application subtask.
func FromSubtask(s application.Subtask) Subtask {
	return Subtask{
		ID:        s.ID,
		TodoID:    s.TodoID,
		Title:     s.Title,
		Completed: s.Completed,
		Position:  s.Position,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// FromComment converts an application comment.
func FromComment(c application.Comment) Comment {
	return Comment{ID: c.ID, TodoID: c.TodoID, AuthorID: c.AuthorID, Body: c.Body, CreatedAt: c.CreatedAt}
}

// FromCategory converts an application category.
func FromCategory(c application.Category) Category {
	return Category{ID: c.ID, Name: c.Name, Color: c.Color, CreatedAt: c.CreatedAt}
}

// FromUser converts an application user.
func FromUser(u application.User) User {
	return User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}
