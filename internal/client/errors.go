package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/example/todosync/internal/api"
)

var (
	// ErrUnknownTodo is returned when a mutation targets a todo that is not
	// visible in the local cache.
	ErrUnknownTodo = errors.New("client: todo is not cached")
	// ErrUnknownToken is returned by Confirm and Rollback for a token that was
	// never issued or has already been settled.
	ErrUnknownToken = errors.New("client: unknown mutation token")
	// ErrClosed is returned once the connection manager has been closed.
	ErrClosed = errors.New("client: connection manager closed")
)

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Message string
	Details []api.FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsAuth reports whether the server rejected the credential.
func (e *APIError) IsAuth() bool { return e != nil && e.Status == http.StatusUnauthorized }

// IsNotFound reports whether the resource does not exist for this user.
func (e *APIError) IsNotFound() bool { return e != nil && e.Status == http.StatusNotFound }

// IsValidation reports whether the request was rejected as invalid input.
func (e *APIError) IsValidation() bool { return e != nil && e.Status == http.StatusBadRequest }

// IsConflict reports whether a concurrent write won and the caller should refresh.
func (e *APIError) IsConflict() bool { return e != nil && e.Status == http.StatusConflict }

// IsAuthError reports whether err is an APIError for a rejected credential.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// ConnectionError is reported when the reconnect budget is exhausted. It
// wraps the last dial failure.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("realtime connection lost after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
