package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/todosync/internal/api"
)

func TestStoreCreateTodo(t *testing.T) {
	t.Parallel()

	t.Run("confirms with the server entity", func(t *testing.T) {
		r := NewReconciler()
		release := make(chan struct{})
		seen := make(chan api.Todo, 1)
		_, client := newFakeServer(t, func(w http.ResponseWriter, req *http.Request) {
			<-release
			writeEnvelope(w, http.StatusCreated, api.Response{Success: true, Data: api.Todo{ID: "t1", Title: "Buy milk", Priority: "MEDIUM", Status: "TODO"}})
		})
		store := NewStore(client, r, nil)

		go func() {
			for r.Len() == 0 {
				time.Sleep(time.Millisecond)
			}
			seen <- r.Todos(Filter{})[0]
			close(release)
		}()

		created, err := store.CreateTodo(context.Background(), api.CreateTodoRequest{Title: "Buy milk"})
		require.NoError(t, err)
		assert.Equal(t, "t1", created.ID)

		optimistic := <-seen
		assert.Equal(t, "Buy milk", optimistic.Title)
		assert.Equal(t, "MEDIUM", optimistic.Priority)
		assert.Equal(t, "TODO", optimistic.Status)
		assert.NotEqual(t, "t1", optimistic.ID)

		assert.Equal(t, []string{"t1"}, ids(r.Todos(Filter{})))
		assert.Zero(t, r.Pending())
	})

	t.Run("rolls back and surfaces validation errors", func(t *testing.T) {
		r := NewReconciler()
		_, client := newFakeServer(t, func(w http.ResponseWriter, req *http.Request) {
			writeEnvelope(w, http.StatusBadRequest, api.Response{Error: "validation failed", Details: []api.FieldError{{Field: "title", Message: "title is required"}}})
		})
		store := NewStore(client, r, nil)
		store.OnAuthFailure = func(error) { t.Fatal("not an auth failure") }

		_, err := store.CreateTodo(context.Background(), api.CreateTodoRequest{})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.IsValidation())
		assert.Zero(t, r.Len())
		assert.Zero(t, r.Pending())
	})
}

func TestStoreUpdateRollsBackAndReportsAuthFailure(t *testing.T) {
	t.Parallel()

	r := NewReconciler()
	r.Replace([]api.Todo{{ID: "t1", Title: "before", Status: "TODO"}})
	_, client := newFakeServer(t, func(w http.ResponseWriter, req *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, api.Response{Error: "authentication required"})
	})
	store := NewStore(client, r, nil)
	var loggedOut error
	store.OnAuthFailure = func(err error) { loggedOut = err }

	status := "COMPLETED"
	_, err := store.UpdateTodo(context.Background(), "t1", api.UpdateTodoRequest{Status: &status})
	require.Error(t, err)
	assert.True(t, IsAuthError(loggedOut))

	got, _ := r.Get("t1")
	assert.Equal(t, "TODO", got.Status)

	_, err = store.UpdateTodo(context.Background(), "missing", api.UpdateTodoRequest{})
	assert.ErrorIs(t, err, ErrUnknownTodo)
}

func TestStoreDeleteAndSubtasks(t *testing.T) {
	t.Parallel()

	r := NewReconciler()
	r.Replace([]api.Todo{
		{ID: "t1", Subtasks: []api.Subtask{{ID: "s1"}, {ID: "s2"}}, TotalSubtasks: 2},
		{ID: "t2"},
	})
	_, client := newFakeServer(t, func(w http.ResponseWriter, req *http.Request) {
		switch {
		case req.Method == http.MethodDelete && req.URL.Path == "/todos/t2":
			writeEnvelope(w, http.StatusNotFound, api.Response{Error: "todo not found"})
		case req.Method == http.MethodDelete:
			writeEnvelope(w, http.StatusOK, api.Response{Success: true})
		default:
			writeEnvelope(w, http.StatusOK, api.Response{Success: true, Data: api.Todo{
				ID:                "t1",
				Subtasks:          []api.Subtask{{ID: "s1", Completed: true}, {ID: "s2"}},
				CompletedSubtasks: 1,
				TotalSubtasks:     2,
			}})
		}
	})
	store := NewStore(client, r, nil)
	ctx := context.Background()

	_, err := store.SetSubtaskCompleted(ctx, "t1", "s1", true)
	require.NoError(t, err)
	got, _ := r.Get("t1")
	assert.Equal(t, 1, got.CompletedSubtasks)

	var apiErr *APIError
	err = store.DeleteTodo(ctx, "t2")
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
	_, ok := r.Get("t2")
	assert.True(t, ok, "failed delete is rolled back")

	require.NoError(t, store.DeleteTodo(ctx, "t1"))
	assert.Equal(t, []string{"t2"}, ids(r.Todos(Filter{})))
}

func TestStoreRefreshAndAddComment(t *testing.T) {
	t.Parallel()

	r := NewReconciler()
	_, client := newFakeServer(t, func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPost {
			writeEnvelope(w, http.StatusCreated, api.Response{Success: true, Data: api.Comment{ID: "c1", TodoID: "t1", Body: "hi"}})
			return
		}
		writeEnvelope(w, http.StatusOK, api.Response{Success: true, Data: []api.Todo{{ID: "t1"}, {ID: "t2"}}})
	})
	store := NewStore(client, r, nil)

	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, 2, r.Len())

	_, err := store.AddComment(context.Background(), "t1", "hi")
	require.NoError(t, err)
	got, _ := r.Get("t1")
	assert.True(t, got.HasComment("c1"))
}
