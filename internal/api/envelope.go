package api

import (
	"encoding/json"

	"github.com/example/todosync/internal/application"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response is the envelope written by the server.
type Response struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// Envelope is the envelope as read by clients; Data is decoded later into the
// type the caller expects.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details []FieldError    `json:"details,omitempty"`
}

// FieldErrors flattens a validation error into wire details.
func FieldErrors(vErr *application.ValidationError) []FieldError {
	fields := vErr.Fields()
	if len(fields) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldError{Field: f.Field, Message: f.Message})
	}
	return out
}
