package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/todosync/internal/api"
)

func TestChangeEventIsImmutable(t *testing.T) {
	t.Parallel()

	payload := api.Todo{ID: "t1", Title: "Buy milk"}
	event, err := NewChangeEvent(EventCreated, EntityTodo, UserRoom("42"), "t1", payload, "origin")
	require.NoError(t, err)

	payload.Title = "changed after construction"
	raw := event.Payload()
	raw[0] = 'X'

	var decoded api.Todo
	require.NoError(t, event.Message().Decode(&decoded))
	assert.Equal(t, "Buy milk", decoded.Title)
	assert.Equal(t, "origin", event.Origin())
	assert.Equal(t, RoomID("user-42"), event.Room())
}

func TestChangeEventMessageTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind   EventKind
		entity EntityKind
		want   string
	}{
		{EventCreated, EntityTodo, api.TypeTodoCreated},
		{EventUpdated, EntityTodo, api.TypeTodoUpdated},
		{EventDeleted, EntityTodo, api.TypeTodoDeleted},
		{EventCreated, EntityComment, api.TypeCommentAdded},
	}
	for _, tc := range tests {
		event, err := NewChangeEvent(tc.kind, tc.entity, TeamRoom("core"), "t1", map[string]string{"id": "t1"}, "")
		require.NoError(t, err)
		msg := event.Message()
		assert.Equal(t, tc.want, msg.Type)
		assert.Equal(t, "team-core", msg.Room)
	}

	_, err := NewChangeEvent(EventDeleted, EntityComment, UserRoom("42"), "c1", nil, "")
	assert.Error(t, err, "comment deletions are announced as todo updates")

	_, err = NewChangeEvent(EventCreated, EntityTodo, "nowhere", "t1", nil, "")
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func TestDeletedEventCarriesOnlyTheID(t *testing.T) {
	t.Parallel()

	event, err := NewChangeEvent(EventDeleted, EntityTodo, UserRoom("42"), "t9", api.Todo{ID: "t9", Title: "ignored"}, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t9"}`, string(event.Payload()))
}

func TestParseRoom(t *testing.T) {
	t.Parallel()

	kind, id, err := ParseRoom("team-alpha-1")
	require.NoError(t, err)
	assert.Equal(t, RoomTeam, kind)
	assert.Equal(t, "alpha-1", id)

	assert.Equal(t, RoomUser, UserRoom("42").Kind())
	assert.Equal(t, "42", UserRoom("42").Target())
	assert.Equal(t, RoomKind(""), RoomID("bogus").Kind())
}
