// Package sqlite implements the persistence repositories on top of SQLite via
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/todosync/internal/logging"
	"github.com/example/todosync/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite repositories that share one connection pool.
type Storage struct {
	pool *ConnectionPool

	Users      *UserRepository
	Sessions   *SessionRepository
	Categories *CategoryRepository
	Todos      *TodoRepository
	Teams      *TeamRepository
}

// Open connects to the database described by config. Call Migrate before use
// on a fresh database.
func Open(config migration.SQLiteConfig) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:       pool,
		Users:      NewUserRepository(pool),
		Sessions:   NewSessionRepository(pool),
		Categories: NewCategoryRepository(pool),
		Todos:      NewTodoRepository(pool),
		Teams:      NewTeamRepository(pool),
	}, nil
}

// OpenPath opens a file-backed database with the default configuration.
func OpenPath(path string) (*Storage, error) {
	return Open(migration.DefaultSQLiteConfig(path))
}

// Migrate applies the embedded schema migrations and returns how many ran.
func (s *Storage) Migrate(ctx context.Context) (int, error) {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = slog.Default()
	}
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		logger,
	)
	applied, err := manager.RunMigrations(ctx)
	if err != nil {
		return applied, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return applied, nil
}

// Ping verifies that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
