package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/todosync/internal/application"
	"github.com/example/todosync/internal/persistence"
)

var (
	userCounter     uint64
	sessionCounter  uint64
	categoryCounter uint64
	todoCounter     uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    fmt.Sprintf("user-%03d", idx),
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: created.Add(8 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUserID sets the user ID.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the token value.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt sets the optional revoked timestamp.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

// ----------------------------- Category fixtures ------------------------

// CategoryFixture represents a deterministic category owned by one user.
type CategoryFixture struct {
	ID        string
	OwnerID   string
	Name      string
	Color     string
	CreatedAt time.Time
}

// CategoryOption configures the generated category fixture.
type CategoryOption func(*CategoryFixture)

// NewCategoryFixture returns a deterministic category fixture.
func NewCategoryFixture(opts ...CategoryOption) CategoryFixture {
	idx := atomic.AddUint64(&categoryCounter, 1)
	fixture := CategoryFixture{
		ID:        fmt.Sprintf("category-%03d", idx),
		OwnerID:   "user-001",
		Name:      fmt.Sprintf("Category %03d", idx),
		Color:     "#3366ff",
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCategoryID overrides the category ID.
func WithCategoryID(id string) CategoryOption {
	return func(f *CategoryFixture) {
		f.ID = id
	}
}

// WithCategoryOwner sets the owning user.
func WithCategoryOwner(ownerID string) CategoryOption {
	return func(f *CategoryFixture) {
		f.OwnerID = ownerID
	}
}

// WithCategoryName overrides the name.
func WithCategoryName(name string) CategoryOption {
	return func(f *CategoryFixture) {
		f.Name = name
	}
}

// Application returns the fixture as an application.Category value.
func (f CategoryFixture) Application() application.Category {
	return application.Category{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Name:      f.Name,
		Color:     f.Color,
		CreatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Category value.
func (f CategoryFixture) Persistence() persistence.Category {
	return persistence.Category{
		ID:        f.ID,
		UserID:    f.OwnerID,
		Name:      f.Name,
		Color:     f.Color,
		CreatedAt: f.CreatedAt,
	}
}

// ----------------------------- Todo fixtures ----------------------------

// TodoFixture represents a deterministic todo with optional subtasks.
type TodoFixture struct {
	ID          string
	OwnerID     string
	TeamID      *string
	Title       string
	Description string
	Priority    application.Priority
	Status      application.Status
	DueDate     *time.Time
	CategoryIDs []string
	Subtasks    []application.Subtask
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoOption configures the generated todo fixture.
type TodoOption func(*TodoFixture)

// NewTodoFixture returns a deterministic MEDIUM/TODO todo.
func NewTodoFixture(opts ...TodoOption) TodoFixture {
	idx := atomic.AddUint64(&todoCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := TodoFixture{
		ID:        fmt.Sprintf("todo-%03d", idx),
		OwnerID:   "user-001",
		Title:     fmt.Sprintf("Todo %03d", idx),
		Priority:  application.PriorityMedium,
		Status:    application.StatusTodo,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTodoID overrides the todo ID.
func WithTodoID(id string) TodoOption {
	return func(f *TodoFixture) {
		f.ID = id
	}
}

// WithTodoOwner sets the owning user.
func WithTodoOwner(ownerID string) TodoOption {
	return func(f *TodoFixture) {
		f.OwnerID = ownerID
	}
}

// WithTodoTeam scopes the todo to a team.
func WithTodoTeam(teamID string) TodoOption {
	return func(f *TodoFixture) {
		team := teamID
		f.TeamID = &team
	}
}

// WithTodoTitle overrides the title.
func WithTodoTitle(title string) TodoOption {
	return func(f *TodoFixture) {
		f.Title = title
	}
}

// WithTodoStatus overrides the status.
func WithTodoStatus(status application.Status) TodoOption {
	return func(f *TodoFixture) {
		f.Status = status
	}
}

// WithTodoPriority overrides the priority.
func WithTodoPriority(priority application.Priority) TodoOption {
	return func(f *TodoFixture) {
		f.Priority = priority
	}
}

// WithTodoDueDate sets the due date.
func WithTodoDueDate(t time.Time) TodoOption {
	return func(f *TodoFixture) {
		due := t
		f.DueDate = &due
	}
}

// WithTodoCategories attaches the given category ids.
func WithTodoCategories(ids ...string) TodoOption {
	return func(f *TodoFixture) {
		f.CategoryIDs = append([]string(nil), ids...)
	}
}

// WithTodoSubtask appends a subtask at the next position. Subtask ids derive
// from the todo id at the time the option runs.
func WithTodoSubtask(title string, completed bool) TodoOption {
	return func(f *TodoFixture) {
		position := len(f.Subtasks)
		f.Subtasks = append(f.Subtasks, application.Subtask{
			ID:        fmt.Sprintf("%s-subtask-%d", f.ID, position+1),
			TodoID:    f.ID,
			Title:     title,
			Completed: completed,
			Position:  position,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.CreatedAt,
		})
	}
}

// Application returns the fixture as an application.Todo value.
func (f TodoFixture) Application() application.Todo {
	todo := application.Todo{
		ID:          f.ID,
		OwnerID:     f.OwnerID,
		TeamID:      copyStringPtr(f.TeamID),
		Title:       f.Title,
		Description: f.Description,
		Priority:    f.Priority,
		Status:      f.Status,
		DueDate:     copyTimePtr(f.DueDate),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	for _, id := range f.CategoryIDs {
		todo.Categories = append(todo.Categories, application.Category{ID: id, OwnerID: f.OwnerID})
	}
	for _, s := range f.Subtasks {
		s.TodoID = f.ID
		todo.Subtasks = append(todo.Subtasks, s)
	}
	return todo
}

// Input returns the fixture as an application.TodoInput.
func (f TodoFixture) Input() application.TodoInput {
	return application.TodoInput{
		Title:       f.Title,
		Description: f.Description,
		Priority:    f.Priority,
		Status:      f.Status,
		DueDate:     copyTimePtr(f.DueDate),
		CategoryIDs: append([]string(nil), f.CategoryIDs...),
		TeamID:      copyStringPtr(f.TeamID),
	}
}

// Persistence returns the todo row. Subtasks are not included because they
// are written through their own repository methods; see PersistenceSubtasks.
func (f TodoFixture) Persistence() persistence.Todo {
	todo := persistence.Todo{
		ID:          f.ID,
		UserID:      f.OwnerID,
		TeamID:      copyStringPtr(f.TeamID),
		Title:       f.Title,
		Description: f.Description,
		Priority:    string(f.Priority),
		Status:      string(f.Status),
		DueDate:     copyTimePtr(f.DueDate),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	for _, id := range f.CategoryIDs {
		todo.Categories = append(todo.Categories, persistence.Category{ID: id, UserID: f.OwnerID})
	}
	return todo
}

// PersistenceSubtasks returns the fixture subtasks as persistence rows.
func (f TodoFixture) PersistenceSubtasks() []persistence.Subtask {
	if len(f.Subtasks) == 0 {
		return nil
	}
	out := make([]persistence.Subtask, 0, len(f.Subtasks))
	for _, s := range f.Subtasks {
		out = append(out, persistence.Subtask{
			ID:        s.ID,
			TodoID:    f.ID,
			Title:     s.Title,
			Completed: s.Completed,
			Position:  s.Position,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return out
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
