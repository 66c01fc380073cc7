package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/todosync/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_Fields(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("title", "title is required")

	other := &ValidationError{}
	other.add("priority", "priority is invalid")
	base.merge(other)
	base.merge(nil)

	fields := base.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected two field errors, got %#v", fields)
	}
	if fields[0].Field != "priority" || fields[1].Field != "title" {
		t.Fatalf("expected fields sorted by name, got %#v", fields)
	}
	if (&ValidationError{}).HasErrors() {
		t.Fatal("expected HasErrors to report false for empty error")
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"not found", persistence.ErrNotFound, ErrNotFound},
		{"foreign key", fmt.Errorf("wrapped: %w", persistence.ErrForeignKeyViolation), ErrNotFound},
		{"duplicate", persistence.ErrDuplicate, ErrAlreadyExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapRepoError(tc.in); !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	boom := errors.New("boom")
	if got := mapRepoError(boom); got != boom {
		t.Fatalf("expected unknown errors to pass through, got %v", got)
	}
	if mapRepoError(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
}
