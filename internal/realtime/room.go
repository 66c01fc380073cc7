package realtime

import (
	"fmt"
	"strings"
)

// RoomKind distinguishes personal rooms from team rooms.
type RoomKind string

const (
	RoomUser RoomKind = "user"
	RoomTeam RoomKind = "team"
)

// RoomID names a broadcast scope: user-<id> or team-<id>.
type RoomID string

// UserRoom returns the personal room of userID.
func UserRoom(userID string) RoomID { return RoomID(string(RoomUser) + "-" + userID) }

// TeamRoom returns the room of teamID.
func TeamRoom(teamID string) RoomID { return RoomID(string(RoomTeam) + "-" + teamID) }

// ParseRoom splits a room id into its kind and target id.
func ParseRoom(value string) (RoomKind, string, error) {
	for _, kind := range []RoomKind{RoomUser, RoomTeam} {
		prefix := string(kind) + "-"
		if strings.HasPrefix(value, prefix) {
			id := strings.TrimPrefix(value, prefix)
			if id == "" || strings.TrimSpace(id) != id {
				break
			}
			return kind, id, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidRoom, value)
}

// Kind returns the room kind, or an empty kind when r is malformed.
func (r RoomID) Kind() RoomKind {
	kind, _, err := ParseRoom(string(r))
	if err != nil {
		return ""
	}
	return kind
}

// Target returns the user or team id the room belongs to.
func (r RoomID) Target() string {
	_, id, err := ParseRoom(string(r))
	if err != nil {
		return ""
	}
	return id
}

func (r RoomID) String() string { return string(r) }
