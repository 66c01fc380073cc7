package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is returned when a session is opened without a valid credential.
	ErrAuth = errors.New("realtime: authentication failed")
	// ErrInvalidTransition is returned when an operation is not allowed in the session's current state.
	ErrInvalidTransition = errors.New("realtime: invalid session transition")
	// ErrInvalidRoom is returned for malformed room ids.
	ErrInvalidRoom = errors.New("realtime: invalid room")
	// ErrForbiddenRoom is returned when a session asks for a room it may not join.
	ErrForbiddenRoom = errors.New("realtime: room not permitted")
	// ErrUnknownSession is returned for ids that are not open, including
	// sessions that were disconnected.
	ErrUnknownSession = fmt.Errorf("%w: session is not open", ErrInvalidTransition)
)
