package realtime

import (
	"sort"

	"github.com/example/todosync/internal/api"
)

// State is a step of the session lifecycle.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is one live connection. All fields are guarded by the owning
// registry's lock; callers read them through the accessor methods.
type Session struct {
	registry *Registry
	id       string
	userID   string
	state    State
	rooms    map[RoomID]struct{}
	outbox   chan api.Message
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Outbox yields messages queued for this session. It is closed on disconnect.
func (s *Session) Outbox() <-chan api.Message { return s.outbox }

// UserID returns the authenticated user, or empty before authentication.
func (s *Session) UserID() string {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()
	return s.userID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()
	return s.state
}

// Rooms returns the joined rooms in sorted order.
func (s *Session) Rooms() []RoomID {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()
	return s.roomsLocked()
}

func (s *Session) roomsLocked() []RoomID {
	rooms := make([]RoomID, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// enqueueLocked performs a non-blocking send. It reports false when the
// outbox is full.
func (s *Session) enqueueLocked(msg api.Message) bool {
	select {
	case s.outbox <- msg:
		return true
	default:
		return false
	}
}
