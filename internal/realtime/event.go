package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/example/todosync/internal/api"
)

// EventKind is the transition an event describes.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// EntityKind is the entity an event describes.
type EntityKind string

const (
	EntityTodo    EntityKind = "todo"
	EntityComment EntityKind = "comment"
)

// ChangeEvent is an immutable description of one committed change, addressed
// to a single room. The payload is copied at construction and on every read.
type ChangeEvent struct {
	kind    EventKind
	entity  EntityKind
	room    RoomID
	id      string
	payload []byte
	origin  string
}

// NewChangeEvent encodes payload for created and updated events. Deleted
// events carry only id.
func NewChangeEvent(kind EventKind, entity EntityKind, room RoomID, id string, payload any, origin string) (ChangeEvent, error) {
	if _, _, err := ParseRoom(string(room)); err != nil {
		return ChangeEvent{}, err
	}
	event := ChangeEvent{kind: kind, entity: entity, room: room, id: id, origin: origin}
	if _, err := event.messageType(); err != nil {
		return ChangeEvent{}, err
	}

	var data any = payload
	if kind == EventDeleted {
		data = api.DeletedPayload{ID: id}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("encode %s %s payload: %w", entity, kind, err)
	}
	event.payload = raw
	return event, nil
}

func (e ChangeEvent) Kind() EventKind    { return e.kind }
func (e ChangeEvent) Entity() EntityKind { return e.entity }
func (e ChangeEvent) Room() RoomID       { return e.room }
func (e ChangeEvent) ID() string         { return e.id }

// Origin is the session that caused the change, or empty.
func (e ChangeEvent) Origin() string { return e.origin }

// Payload returns a copy of the encoded payload.
func (e ChangeEvent) Payload() []byte {
	return append([]byte(nil), e.payload...)
}

// Message renders the frame clients receive.
func (e ChangeEvent) Message() api.Message {
	messageType, _ := e.messageType()
	return api.Message{Type: messageType, Room: string(e.room), Data: e.Payload()}
}

func (e ChangeEvent) messageType() (string, error) {
	switch {
	case e.entity == EntityTodo && e.kind == EventCreated:
		return api.TypeTodoCreated, nil
	case e.entity == EntityTodo && e.kind == EventUpdated:
		return api.TypeTodoUpdated, nil
	case e.entity == EntityTodo && e.kind == EventDeleted:
		return api.TypeTodoDeleted, nil
	case e.entity == EntityComment && e.kind == EventCreated:
		return api.TypeCommentAdded, nil
	}
	return "", fmt.Errorf("realtime: unsupported event %s %s", e.entity, e.kind)
}
