package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

// todoStore is a minimal application.TodoRepository for end-to-end publishing tests.
type todoStore struct {
	mu    sync.Mutex
	todos map[string]application.Todo
}

func newTodoStore() *todoStore {
	return &todoStore{todos: make(map[string]application.Todo)}
}

func (s *todoStore) CreateTodo(ctx context.Context, todo application.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos[todo.ID] = todo
	return nil
}

func (s *todoStore) UpdateTodo(ctx context.Context, todo application.Todo, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[todo.ID]; !ok {
		return application.ErrNotFound
	}
	s.todos[todo.ID] = todo
	return nil
}

func (s *todoStore) GetTodo(ctx context.Context, ownerID, id string) (application.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	todo, ok := s.todos[id]
	if !ok || todo.OwnerID != ownerID {
		return application.Todo{}, application.ErrNotFound
	}
	return todo, nil
}

func (s *todoStore) ListTodos(ctx context.Context, filter application.TodoFilter) ([]application.Todo, error) {
	return nil, nil
}

func (s *todoStore) DeleteTodo(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.todos, id)
	return nil
}

type staticTeams map[string]bool

func (t staticTeams) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	return t[teamID+"/"+userID], nil
}

func joined(t *testing.T, r *Registry, userID string, rooms ...RoomID) *Session {
	t.Helper()
	s := openAs(t, r, userID)
	for _, room := range rooms {
		_, err := r.Join(s.ID(), room)
		require.NoError(t, err)
	}
	return s
}

func TestNotifierCreateScenario(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(8)
	origin := joined(t, registry, "42", UserRoom("42"))
	other := joined(t, registry, "42", UserRoom("42"))
	stranger := joined(t, registry, "7", UserRoom("7"))

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	svc := application.NewTodoService(newTodoStore(), nil, nil, NewNotifier(registry, nil),
		func() string { return "todo-1" }, func() time.Time { return now })

	ctx := application.ContextWithOrigin(context.Background(), origin.ID())
	created, err := svc.CreateTodo(ctx, application.CreateTodoParams{
		Principal: application.Principal{UserID: "42"},
		Input:     application.TodoInput{Title: "Buy milk"},
	})
	require.NoError(t, err)
	assert.Equal(t, application.PriorityMedium, created.Priority)
	assert.Equal(t, application.StatusTodo, created.Status)

	assert.Empty(t, drain(origin), "originator does not receive its own echo")
	assert.Empty(t, drain(stranger))

	got := drain(other)
	require.Len(t, got, 1)
	assert.Equal(t, api.TypeTodoCreated, got[0].Type)
	assert.Equal(t, "user-42", got[0].Room)

	var todo api.Todo
	require.NoError(t, got[0].Decode(&todo))
	assert.Equal(t, "todo-1", todo.ID)
	assert.Equal(t, "Buy milk", todo.Title)
	assert.Equal(t, "MEDIUM", string(todo.Priority))
	assert.Equal(t, "TODO", string(todo.Status))
}

func TestNotifierTargetsOwnerAndTeamRooms(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(8)
	owner := joined(t, registry, "42", UserRoom("42"))
	teammate := joined(t, registry, "7", TeamRoom("core"))
	ownerOnTeam := joined(t, registry, "42", UserRoom("42"), TeamRoom("core"))

	team := "core"
	notifier := NewNotifier(registry, nil)
	notifier.Publish(context.Background(), application.Change{
		Kind:    application.ChangeDeleted,
		Entity:  application.EntityTodo,
		TodoID:  "t1",
		OwnerID: "42",
		TeamID:  &team,
	})

	ownerMsgs := drain(owner)
	require.Len(t, ownerMsgs, 1)
	assert.Equal(t, api.TypeTodoDeleted, ownerMsgs[0].Type)
	assert.JSONEq(t, `{"id":"t1"}`, string(ownerMsgs[0].Data))

	teamMsgs := drain(teammate)
	require.Len(t, teamMsgs, 1)
	assert.Equal(t, "team-core", teamMsgs[0].Room)

	assert.Len(t, drain(ownerOnTeam), 2, "one event per joined target room")
}

func TestNotifierCommentAdded(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(8)
	owner := joined(t, registry, "42", UserRoom("42"))

	NewNotifier(registry, nil).Publish(context.Background(), application.Change{
		Kind:    application.ChangeCreated,
		Entity:  application.EntityComment,
		TodoID:  "t1",
		OwnerID: "42",
		Comment: &application.Comment{ID: "c1", TodoID: "t1", AuthorID: "42", Body: "hi"},
	})

	got := drain(owner)
	require.Len(t, got, 1)
	assert.Equal(t, api.TypeCommentAdded, got[0].Type)

	var comment api.Comment
	require.NoError(t, got[0].Decode(&comment))
	assert.Equal(t, "c1", comment.ID)
	assert.Equal(t, "t1", comment.TodoID)
}
