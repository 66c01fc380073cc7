package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
}

// Priority ranks how urgent a todo is.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status is the workflow state of a todo.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	maxCommentLength     = 2000
)

// Todo is a work item together with its loaded associations.
type Todo struct {
	ID          string
	OwnerID     string
	TeamID      *string
	Title       string
	Description string
	Priority    Priority
	Status      Status
	DueDate     *time.Time
	Categories  []Category
	Subtasks    []Subtask
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CompletedSubtasks counts subtasks marked completed.
func (t Todo) CompletedSubtasks() int {
	n := 0
	for _, s := range t.Subtasks {
		if s.Completed {
			n++
		}
	}
	return n
}

// TotalSubtasks counts all subtasks.
func (t Todo) TotalSubtasks() int {
	return len(t.Subtasks)
}

// CategoryIDs lists the ids of the attached categories in order.
func (t Todo) CategoryIDs() []string {
	ids := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// Subtask is a checklist entry of a todo.
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

// Category groups todos for one owner.
type Category struct {
	ID        string
	OwnerID   string
	Name      string
	Color     string
	CreatedAt time.Time
}

// TodoInput captures caller provided fields for a new todo. Empty priority
// and status fall back to MEDIUM and TODO.
type TodoInput struct {
	Title       string
	Description string
	Priority    Priority
	Status      Status
	DueDate     *time.Time
	CategoryIDs []string
	TeamID      *string
}

// TodoPatch is a partial update. Nil fields are left unchanged; a non-nil
// CategoryIDs replaces the whole category set.
type TodoPatch struct {
	Title        *string
	Description  *string
	Priority     *Priority
	Status       *Status
	DueDate      *time.Time
	ClearDueDate bool
	CategoryIDs  *[]string
}

// TodoFilter narrows todo listings.
type TodoFilter struct {
	OwnerID    string
	Status     Status
	Priority   Priority
	CategoryID string
}

// CreateTodoParams wraps the data required to create a todo.
type CreateTodoParams struct {
	Principal Principal
	Input     TodoInput
}

// UpdateTodoParams wraps the data required to patch a todo.
type UpdateTodoParams struct {
	Principal Principal
	TodoID    string
	Patch     TodoPatch
}

// BatchUpdateItem is one entry of a batch update.
type BatchUpdateItem struct {
	TodoID string
	Patch  TodoPatch
}

// BatchUpdateResult is the per-item outcome of a batch update. Exactly one of
// Todo and Err is set.
type BatchUpdateResult struct {
	TodoID string
	Todo   *Todo
	Err    error
}

// SubtaskInput captures fields for a new subtask.
type SubtaskInput struct {
	Title string
}

// SubtaskPatch is a partial subtask update.
type SubtaskPatch struct {
	Title     *string
	Completed *bool
}

// CommentInput captures fields for a new comment.
type CommentInput struct {
	Body string
}

// CategoryInput captures fields for a new category.
type CategoryInput struct {
	Name  string
	Color string
}

// User is an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// UserInput captures the attributes of a new account.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}
