package realtime

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/todosync/internal/api"
)

// DefaultOutboxSize bounds the per-session queue when no size is configured.
const DefaultOutboxSize = 64

// DisconnectHook observes a session leaving. It runs after the registry lock
// is released and receives the rooms the session was joined to.
type DisconnectHook func(sessionID, userID string, rooms []RoomID)

// Registry tracks live sessions and room membership. The zero value is not
// usable; create instances with NewRegistry.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	rooms        map[RoomID]map[string]struct{}
	outboxSize   int
	idGenerator  func() string
	onDisconnect []DisconnectHook
	logger       *slog.Logger
}

type departure struct {
	sessionID string
	userID    string
	rooms     []RoomID
}

// NewRegistry creates an empty registry whose sessions buffer up to outboxSize messages.
func NewRegistry(outboxSize int) *Registry {
	return NewRegistryWithLogger(outboxSize, nil, nil)
}

// NewRegistryWithLogger creates a registry with a custom session id generator and logger.
func NewRegistryWithLogger(outboxSize int, idGenerator func() string, logger *slog.Logger) *Registry {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:    make(map[string]*Session),
		rooms:       make(map[RoomID]map[string]struct{}),
		outboxSize:  outboxSize,
		idGenerator: idGenerator,
		logger:      logger.With("component", "realtime"),
	}
}

// OnDisconnect registers a hook that runs whenever a session is disconnected,
// including disconnects caused by a full outbox.
func (r *Registry) OnDisconnect(hook DisconnectHook) {
	if hook == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisconnect = append(r.onDisconnect, hook)
}

// Open registers a new session in the Connecting state.
func (r *Registry) Open() *Session {
	session := &Session{
		registry: r,
		state:    StateConnecting,
		rooms:    make(map[RoomID]struct{}),
		outbox:   make(chan api.Message, r.outboxSize),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		session.id = r.idGenerator()
		if _, taken := r.sessions[session.id]; !taken && session.id != "" {
			break
		}
	}
	r.sessions[session.id] = session
	return session
}

// Authenticate binds a user to a Connecting session. An empty user id fails
// with ErrAuth and disconnects the session.
func (r *Registry) Authenticate(sessionID, userID string) error {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownSession
	}
	if session.state != StateConnecting {
		state := session.state
		r.mu.Unlock()
		return fmt.Errorf("%w: authenticate from %s", ErrInvalidTransition, state)
	}
	if userID == "" {
		gone := r.disconnectLocked(session)
		hooks := r.onDisconnect
		r.mu.Unlock()
		r.notify(hooks, []departure{gone})
		return ErrAuth
	}
	session.userID = userID
	session.state = StateAuthenticated
	r.mu.Unlock()
	return nil
}

// Join adds the session to room and reports whether membership changed.
// A user room is only open to its own user; team membership is the caller's
// responsibility.
func (r *Registry) Join(sessionID string, room RoomID) (bool, error) {
	kind, target, err := ParseRoom(string(room))
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return false, ErrUnknownSession
	}
	if session.state != StateAuthenticated && session.state != StateJoined {
		return false, fmt.Errorf("%w: join from %s", ErrInvalidTransition, session.state)
	}
	if kind == RoomUser && target != session.userID {
		return false, fmt.Errorf("%w: %s", ErrForbiddenRoom, room)
	}

	session.state = StateJoined
	if _, joined := session.rooms[room]; joined {
		return false, nil
	}
	session.rooms[room] = struct{}{}
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[sessionID] = struct{}{}
	return true, nil
}

// Leave removes the session from room and reports whether membership changed.
func (r *Registry) Leave(sessionID string, room RoomID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return false, ErrUnknownSession
	}
	if _, joined := session.rooms[room]; !joined {
		return false, nil
	}
	delete(session.rooms, room)
	// The room entry itself is pruned lazily.
	delete(r.rooms[room], sessionID)
	if len(session.rooms) == 0 {
		session.state = StateAuthenticated
	}
	return true, nil
}

// Send queues msg for a single session.
func (r *Registry) Send(sessionID string, msg api.Message) error {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownSession
	}
	if session.enqueueLocked(msg) {
		r.mu.Unlock()
		return nil
	}
	gone := r.disconnectLocked(session)
	hooks := r.onDisconnect
	r.mu.Unlock()

	r.logger.Warn("outbox full, session disconnected", "session_id", sessionID)
	r.notify(hooks, []departure{gone})
	return fmt.Errorf("%w: outbox full", ErrUnknownSession)
}

// Broadcast queues msg for every session joined to room except
// excludeSessionID and returns how many sessions received it. The member set
// is fixed for the duration of the call. A session whose outbox is full is
// disconnected without affecting the others.
func (r *Registry) Broadcast(room RoomID, msg api.Message, excludeSessionID string) int {
	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		r.mu.Unlock()
		return 0
	}
	if len(members) == 0 {
		delete(r.rooms, room)
		r.mu.Unlock()
		return 0
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		if id != excludeSessionID {
			ids = append(ids, id)
		}
	}

	delivered := 0
	var dropped []departure
	for _, id := range ids {
		session := r.sessions[id]
		if session == nil {
			continue
		}
		if session.enqueueLocked(msg) {
			delivered++
			continue
		}
		dropped = append(dropped, r.disconnectLocked(session))
	}
	if len(r.rooms[room]) == 0 {
		delete(r.rooms, room)
	}
	hooks := r.onDisconnect
	r.mu.Unlock()

	for _, d := range dropped {
		r.logger.Warn("outbox full, session disconnected", "session_id", d.sessionID, "room", string(room))
	}
	r.notify(hooks, dropped)
	return delivered
}

// Publish broadcasts event to its room, skipping exclude.
func (r *Registry) Publish(event ChangeEvent, exclude string) int {
	return r.Broadcast(event.Room(), event.Message(), exclude)
}

// Disconnect terminates a session: it leaves every room at once and its outbox
// is closed. It returns the rooms the session had joined. Disconnecting an
// unknown or already disconnected session is a no-op.
func (r *Registry) Disconnect(sessionID string) []RoomID {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	gone := r.disconnectLocked(session)
	hooks := r.onDisconnect
	r.mu.Unlock()

	r.notify(hooks, []departure{gone})
	return gone.rooms
}

// DisconnectAll terminates every open session and returns how many there were.
// It is used on shutdown, when hijacked websocket connections are not closed
// by the HTTP server.
func (r *Registry) DisconnectAll() int {
	r.mu.Lock()
	departures := make([]departure, 0, len(r.sessions))
	for _, session := range r.sessions {
		departures = append(departures, r.disconnectLocked(session))
	}
	hooks := r.onDisconnect
	r.mu.Unlock()

	r.notify(hooks, departures)
	return len(departures)
}

func (r *Registry) disconnectLocked(session *Session) departure {
	gone := departure{sessionID: session.id, userID: session.userID, rooms: session.roomsLocked()}
	for room := range session.rooms {
		delete(r.rooms[room], session.id)
	}
	session.rooms = make(map[RoomID]struct{})
	session.state = StateDisconnected
	close(session.outbox)
	delete(r.sessions, session.id)
	return gone
}

func (r *Registry) notify(hooks []DisconnectHook, departures []departure) {
	for _, d := range departures {
		for _, hook := range hooks {
			hook(d.sessionID, d.userID, d.rooms)
		}
	}
}

// Members returns the ids of the sessions joined to room, sorted.
func (r *Registry) Members(room RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[room]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Session returns the open session with id.
func (r *Registry) Session(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// SessionOwner returns the user an open, authenticated session belongs to.
func (r *Registry) SessionOwner(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok || session.userID == "" {
		return "", false
	}
	return session.userID, true
}

// SessionCount returns the number of open sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RoomCount returns the number of room entries, including empty ones not yet pruned.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Prune drops empty room entries and returns how many were removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for room, members := range r.rooms {
		if len(members) == 0 {
			delete(r.rooms, room)
			removed++
		}
	}
	return removed
}
