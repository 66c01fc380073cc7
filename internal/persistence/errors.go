package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist or is not
	// visible to the requesting owner.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects the write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record fails a CHECK or required field rule.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConflict is returned when a guarded write finds the record changed
	// since the caller read it.
	ErrConflict = errors.New("persistence: concurrent modification")
)
