package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/todosync/internal/persistence"
	"github.com/example/todosync/internal/persistence/sqlite"
	"github.com/example/todosync/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Users      persistence.UserRepository
	Sessions   persistence.SessionRepository
	Categories persistence.CategoryRepository
	Todos      persistence.TodoRepository
	Teams      persistence.TeamRepository

	// Storage is the underlying SQLite storage for callers that wire services.
	Storage *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "todosync.db")

	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if _, err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Users:      storage.Users,
		Sessions:   storage.Sessions,
		Categories: storage.Categories,
		Todos:      storage.Todos,
		Teams:      storage.Teams,
		Storage:    storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUser inserts a user fixture and returns it.
func (h *SQLiteHarness) SeedUser(tb testing.TB, opts ...UserOption) UserFixture {
	tb.Helper()
	user := NewUserFixture(opts...)
	if err := h.Users.CreateUser(context.Background(), user.Persistence()); err != nil {
		tb.Fatalf("failed to seed user: %v", err)
	}
	return user
}

// SeedCategory inserts a category fixture and returns it.
func (h *SQLiteHarness) SeedCategory(tb testing.TB, opts ...CategoryOption) CategoryFixture {
	tb.Helper()
	category := NewCategoryFixture(opts...)
	if err := h.Categories.CreateCategory(context.Background(), category.Persistence()); err != nil {
		tb.Fatalf("failed to seed category: %v", err)
	}
	return category
}

// SeedTodo inserts a todo fixture together with its subtasks and returns it.
func (h *SQLiteHarness) SeedTodo(tb testing.TB, opts ...TodoOption) TodoFixture {
	tb.Helper()
	ctx := context.Background()
	todo := NewTodoFixture(opts...)
	if err := h.Todos.CreateTodo(ctx, todo.Persistence()); err != nil {
		tb.Fatalf("failed to seed todo: %v", err)
	}
	for _, subtask := range todo.PersistenceSubtasks() {
		if err := h.Todos.CreateSubtask(ctx, subtask); err != nil {
			tb.Fatalf("failed to seed subtask: %v", err)
		}
	}
	return todo
}
