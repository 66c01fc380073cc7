package api

import (
	"encoding/json"
	"fmt"
)

// Realtime message types.
const (
	TypeConnected     = "connected"
	TypeError         = "error"
	TypeTodoCreated   = "todo-created"
	TypeTodoUpdated   = "todo-updated"
	TypeTodoDeleted   = "todo-deleted"
	TypeCommentAdded  = "comment-added"
	TypeUserJoined    = "user-joined"
	TypeUserLeft      = "user-left"
	TypeJoinUserRoom  = "join-user-room"
	TypeJoinTeamRoom  = "join-team-room"
	TypeLeaveTeamRoom = "leave-team-room"
)

// Message is one realtime frame in either direction. Room is set on frames the
// server fans out to a room.
type Message struct {
	Type string          `json:"type"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data into a frame of the given type.
func NewMessage(messageType string, data any) (Message, error) {
	msg := Message{Type: messageType}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", messageType, err)
	}
	msg.Data = raw
	return msg, nil
}

// Decode unmarshals the frame payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// ConnectedPayload is sent once after the websocket handshake.
type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// ErrorPayload reports a rejected client message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DeletedPayload identifies a removed todo.
type DeletedPayload struct {
	ID string `json:"id"`
}

// PresencePayload announces a member entering or leaving a team room.
type PresencePayload struct {
	UserID string `json:"userId"`
	TeamID string `json:"teamId"`
}

// JoinUserRoomPayload is the data of join-user-room.
type JoinUserRoomPayload struct {
	UserID string `json:"userId"`
}

// TeamRoomPayload is the data of join-team-room and leave-team-room.
type TeamRoomPayload struct {
	TeamID string `json:"teamId"`
}
