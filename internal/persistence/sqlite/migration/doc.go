// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_initial_schema.sql") and are read from an fs.FS, which lets the
// storage package ship them embedded in the binary. Applied versions are tracked
// in a schema_migrations table so each file runs exactly once, inside its own
// transaction.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewSQLiteExecutor(db), logger)
//	if _, err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
