package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// CategoryRepository stores per-owner categories.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category Category) error
	ListCategories(ctx context.Context, ownerID string) ([]Category, error)
	// MissingCategoryIDs returns the subset of ids that do not exist for ownerID.
	MissingCategoryIDs(ctx context.Context, ownerID string, ids []string) ([]string, error)
	DeleteCategory(ctx context.Context, ownerID, id string) error
}

// TodoFilter narrows todo listings for one owner.
type TodoFilter struct {
	OwnerID    string
	Status     string
	Priority   string
	CategoryID string
}

// TodoRepository stores todos together with their subtasks, comments and
// category links. Every todo lookup is keyed by owner so that rows belonging to
// other users surface as ErrNotFound.
type TodoRepository interface {
	CreateTodo(ctx context.Context, todo Todo) error
	// UpdateTodo rewrites the todo row and replaces its category links in one transaction.
	// UpdateTodo rewrites the todo only while its stored updated_at still
	// equals expectedUpdatedAt, and returns ErrConflict otherwise. A zero
	// expectedUpdatedAt writes unconditionally.
	UpdateTodo(ctx context.Context, todo Todo, expectedUpdatedAt time.Time) error
	GetTodo(ctx context.Context, ownerID, id string) (Todo, error)
	ListTodos(ctx context.Context, filter TodoFilter) ([]Todo, error)
	DeleteTodo(ctx context.Context, ownerID, id string) error

	CreateSubtask(ctx context.Context, subtask Subtask) error
	UpdateSubtask(ctx context.Context, subtask Subtask) error
	GetSubtask(ctx context.Context, todoID, id string) (Subtask, error)
	DeleteSubtask(ctx context.Context, todoID, id string) error

	CreateComment(ctx context.Context, comment Comment) error
	DeleteComment(ctx context.Context, todoID, id string) error
}

// TeamRepository records which users belong to which teams.
type TeamRepository interface {
	AddTeamMember(ctx context.Context, teamID, userID string) error
	IsTeamMember(ctx context.Context, teamID, userID string) (bool, error)
}
