package persistence

import "time"

// User represents an account that owns todos.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// Category groups todos for a single owner.
type Category struct {
	ID        string
	UserID    string
	Name      string
	Color     string
	CreatedAt time.Time
}

// Todo is the stored todo row together with its loaded associations.
//
// On writes only the IDs of Categories are consulted; Subtasks and Comments are
// managed through their own repository methods.
type Todo struct {
	ID          string
	UserID      string
	TeamID      *string
	Title       string
	Description string
	Priority    string
	Status      string
	DueDate     *time.Time
	Categories  []Category
	Subtasks    []Subtask
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subtask is a checklist entry bound to a parent todo.
type Subtask struct {
	ID        string
	TodoID    string
	Title     string
	Completed bool
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment is a note attached to a todo.
type Comment struct {
	ID        string
	TodoID    string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
