package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

var handlerNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type authServiceStub struct {
	result       application.AuthenticateResult
	err          error
	revokeErr    error
	lastParams   application.AuthenticateParams
	revokedToken string
}

func (s *authServiceStub) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.lastParams = params
	return s.result, s.err
}

func (s *authServiceStub) RevokeSession(ctx context.Context, token string) error {
	s.revokedToken = token
	return s.revokeErr
}

type todoServiceStub struct {
	todo       application.Todo
	err        error
	batch      []application.BatchUpdateResult
	lastFilter application.TodoFilter
	lastID     string
	lastOrigin string
	lastUser   string
	lastPatch  application.TodoPatch
}

func (s *todoServiceStub) CreateTodo(ctx context.Context, params application.CreateTodoParams) (application.Todo, error) {
	s.lastOrigin = application.OriginFromContext(ctx)
	s.lastUser = params.Principal.UserID
	if s.err != nil {
		return application.Todo{}, s.err
	}
	todo := s.todo
	todo.Title = params.Input.Title
	return todo, nil
}

func (s *todoServiceStub) UpdateTodo(ctx context.Context, params application.UpdateTodoParams) (application.Todo, error) {
	s.lastID = params.TodoID
	s.lastPatch = params.Patch
	return s.todo, s.err
}

func (s *todoServiceStub) BatchUpdateTodos(ctx context.Context, principal application.Principal, items []application.BatchUpdateItem) ([]application.BatchUpdateResult, error) {
	return s.batch, s.err
}

func (s *todoServiceStub) DeleteTodo(ctx context.Context, principal application.Principal, todoID string) error {
	s.lastID = todoID
	return s.err
}

func (s *todoServiceStub) GetTodo(ctx context.Context, principal application.Principal, todoID string) (application.Todo, error) {
	s.lastID = todoID
	return s.todo, s.err
}

func (s *todoServiceStub) ListTodos(ctx context.Context, principal application.Principal, filter application.TodoFilter) ([]application.Todo, error) {
	s.lastFilter = filter
	s.lastUser = principal.UserID
	return []application.Todo{s.todo}, s.err
}

type nestedServiceStub struct {
	todo    application.Todo
	calls   []string
	comment application.Comment
}

func (s *nestedServiceStub) AddSubtask(ctx context.Context, principal application.Principal, todoID string, input application.SubtaskInput) (application.Todo, error) {
	s.calls = append(s.calls, "AddSubtask "+todoID+" "+input.Title)
	return s.todo, nil
}

func (s *nestedServiceStub) UpdateSubtask(ctx context.Context, principal application.Principal, todoID, subtaskID string, patch application.SubtaskPatch) (application.Todo, error) {
	s.calls = append(s.calls, "UpdateSubtask "+todoID+" "+subtaskID)
	return s.todo, nil
}

func (s *nestedServiceStub) DeleteSubtask(ctx context.Context, principal application.Principal, todoID, subtaskID string) (application.Todo, error) {
	s.calls = append(s.calls, "DeleteSubtask "+todoID+" "+subtaskID)
	return s.todo, nil
}

func (s *nestedServiceStub) AddComment(ctx context.Context, principal application.Principal, todoID string, input application.CommentInput) (application.Comment, error) {
	s.calls = append(s.calls, "AddComment "+todoID+" "+input.Body)
	return s.comment, nil
}

func (s *nestedServiceStub) DeleteComment(ctx context.Context, principal application.Principal, todoID, commentID string) (application.Todo, error) {
	s.calls = append(s.calls, "DeleteComment "+todoID+" "+commentID)
	return s.todo, nil
}

func (s *nestedServiceStub) CreateCategory(ctx context.Context, principal application.Principal, input application.CategoryInput) (application.Category, error) {
	s.calls = append(s.calls, "CreateCategory "+input.Name)
	return application.Category{ID: "cat-1", Name: input.Name}, nil
}

func (s *nestedServiceStub) ListCategories(ctx context.Context, principal application.Principal) ([]application.Category, error) {
	s.calls = append(s.calls, "ListCategories")
	return []application.Category{{ID: "cat-1", Name: "work"}}, nil
}

func (s *nestedServiceStub) DeleteCategory(ctx context.Context, principal application.Principal, categoryID string) error {
	s.calls = append(s.calls, "DeleteCategory "+categoryID)
	return nil
}

func sampleTodo() application.Todo {
	return application.Todo{
		ID:        "todo-1",
		OwnerID:   "user-42",
		Title:     "Buy milk",
		Priority:  application.PriorityMedium,
		Status:    application.StatusTodo,
		CreatedAt: handlerNow,
		UpdatedAt: handlerNow,
	}
}

func newTestRouter(todos todoService, nested *nestedServiceStub) http.Handler {
	cfg := RouterConfig{
		Todos:            NewTodoHandler(todos, nil),
		Sessions:         &fakeSessionValidator{principal: application.Principal{UserID: "user-42"}},
		RealtimeSessions: sessionOwners{"rt-1": "user-42", "rt-2": "user-7"},
	}
	if nested != nil {
		cfg.Subtasks = NewSubtaskHandler(nested, nil)
		cfg.Comments = NewCommentHandler(nested, nil)
		cfg.Categories = NewCategoryHandler(nested, nil)
	}
	return NewRouter(cfg)
}

func serve(handler http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer tok")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()

		service := &authServiceStub{result: application.AuthenticateResult{
			User:    application.User{ID: "user-42", Email: "ada@example.com", DisplayName: "Ada"},
			Session: application.Session{Token: "tok-1", ExpiresAt: handlerNow.Add(time.Hour)},
		}}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		recorder := serve(router, http.MethodPost, "/sessions", `{"email":" Ada@Example.com ","password":"secret-pass"}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if got := recorder.Header().Get("X-Session-Token"); got != "tok-1" {
			t.Fatalf("expected X-Session-Token header, got %q", got)
		}
		if cookie := recorder.Result().Cookies(); len(cookie) != 1 || cookie[0].Value != "tok-1" || !cookie[0].HttpOnly {
			t.Fatalf("unexpected cookies %+v", cookie)
		}
		if service.lastParams.Email != "ada@example.com" {
			t.Fatalf("expected normalized email, got %q", service.lastParams.Email)
		}

		var session api.Session
		envelope := decodeEnvelope(t, recorder)
		if err := json.Unmarshal(envelope.Data, &session); err != nil {
			t.Fatalf("decode session: %v", err)
		}
		if !envelope.Success || session.Token != "tok-1" || session.User.ID != "user-42" {
			t.Fatalf("unexpected session payload %+v", session)
		}
	})

	t.Run("login rejects invalid credentials and bodies", func(t *testing.T) {
		t.Parallel()

		service := &authServiceStub{err: application.ErrInvalidCredentials}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		if recorder := serve(router, http.MethodPost, "/sessions", `{"email":"a@b.c","password":"nope"}`); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if recorder := serve(router, http.MethodPost, "/sessions", `{`); recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		t.Parallel()

		service := &authServiceStub{}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		recorder := serve(router, http.MethodDelete, "/sessions/current", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if service.revokedToken != "tok" {
			t.Fatalf("expected bearer token to be revoked, got %q", service.revokedToken)
		}
		cookies := recorder.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Fatalf("expected session cookie to be cleared, got %+v", cookies)
		}

		req := httptest.NewRequest(http.MethodDelete, "/sessions/current", nil)
		anonymous := httptest.NewRecorder()
		router.ServeHTTP(anonymous, req)
		if anonymous.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without token, got %d", anonymous.Code)
		}
	})
}

func TestTodoHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create returns the envelope and forwards the realtime origin", func(t *testing.T) {
		t.Parallel()

		service := &todoServiceStub{todo: sampleTodo()}
		recorder := serve(newTestRouter(service, nil), http.MethodPost, "/todos", `{"title":"Buy milk"}`, RealtimeSessionHeader, "rt-1")
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.lastOrigin != "rt-1" || service.lastUser != "user-42" {
			t.Fatalf("unexpected origin %q / user %q", service.lastOrigin, service.lastUser)
		}

		var todo api.Todo
		if err := json.Unmarshal(decodeEnvelope(t, recorder).Data, &todo); err != nil {
			t.Fatalf("decode todo: %v", err)
		}
		if todo.ID != "todo-1" || todo.Priority != "MEDIUM" || todo.Status != "TODO" || todo.Title != "Buy milk" {
			t.Fatalf("unexpected todo %+v", todo)
		}
	})

	t.Run("ignores a realtime session owned by someone else", func(t *testing.T) {
		t.Parallel()

		service := &todoServiceStub{todo: sampleTodo()}
		recorder := serve(newTestRouter(service, nil), http.MethodPost, "/todos", `{"title":"Buy milk"}`, RealtimeSessionHeader, "rt-2")
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.lastOrigin != "" {
			t.Fatalf("expected foreign session to be dropped, got origin %q", service.lastOrigin)
		}
	})

	t.Run("map service errors to status codes", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{"title": "title is required"}}
		tests := []struct {
			name    string
			err     error
			status  int
			message string
		}{
			{name: "validation", err: vErr, status: http.StatusBadRequest, message: "validation failed"},
			{name: "not found", err: application.ErrNotFound, status: http.StatusNotFound, message: "resource not found"},
			{name: "duplicate", err: application.ErrAlreadyExists, status: http.StatusBadRequest, message: "resource already exists"},
			{name: "lost concurrent update", err: application.ErrConflict, status: http.StatusConflict, message: "todo was changed by another request, reload and retry"},
			{name: "unauthorized", err: application.ErrUnauthorized, status: http.StatusUnauthorized, message: "authentication required"},
			{name: "unexpected", err: errors.New("disk full"), status: http.StatusInternalServerError, message: "internal server error"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				service := &todoServiceStub{err: tc.err}
				recorder := serve(newTestRouter(service, nil), http.MethodPatch, "/todos/todo-1", `{"title":""}`)
				if recorder.Code != tc.status {
					t.Fatalf("expected %d, got %d", tc.status, recorder.Code)
				}
				envelope := decodeEnvelope(t, recorder)
				if envelope.Success || envelope.Error != tc.message {
					t.Fatalf("unexpected envelope %+v", envelope)
				}
				if tc.name == "validation" && (len(envelope.Details) != 1 || envelope.Details[0].Field != "title") {
					t.Fatalf("expected field details, got %+v", envelope.Details)
				}
			})
		}
	})

	t.Run("update converts the patch", func(t *testing.T) {
		t.Parallel()

		service := &todoServiceStub{todo: sampleTodo()}
		recorder := serve(newTestRouter(service, nil), http.MethodPatch, "/todos/todo-1", `{"status":"COMPLETED","categoryIds":[],"clearDueDate":true}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		patch := service.lastPatch
		if service.lastID != "todo-1" || patch.Status == nil || *patch.Status != application.StatusCompleted {
			t.Fatalf("unexpected patch %+v for %q", patch, service.lastID)
		}
		if patch.CategoryIDs == nil || len(*patch.CategoryIDs) != 0 || !patch.ClearDueDate || patch.Title != nil {
			t.Fatalf("unexpected patch %+v", patch)
		}
	})

	t.Run("list passes query filters", func(t *testing.T) {
		t.Parallel()

		service := &todoServiceStub{todo: sampleTodo()}
		recorder := serve(newTestRouter(service, nil), http.MethodGet, "/todos?status=TODO&priority=HIGH&category=cat-1", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		want := application.TodoFilter{Status: application.StatusTodo, Priority: application.PriorityHigh, CategoryID: "cat-1"}
		if service.lastFilter != want {
			t.Fatalf("unexpected filter %+v", service.lastFilter)
		}
	})

	t.Run("batch reports per item outcomes", func(t *testing.T) {
		t.Parallel()

		good := sampleTodo()
		service := &todoServiceStub{batch: []application.BatchUpdateResult{
			{TodoID: "todo-1", Todo: &good},
			{TodoID: "missing", Err: application.ErrNotFound},
			{TodoID: "bad", Err: &application.ValidationError{FieldErrors: map[string]string{"priority": "priority is invalid"}}},
		}}
		recorder := serve(newTestRouter(service, nil), http.MethodPost, "/todos/batch", `{"items":[{"id":"todo-1","patch":{}},{"id":"missing","patch":{}},{"id":"bad","patch":{"priority":"NOPE"}}]}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}

		var results []api.BatchUpdateResult
		if err := json.Unmarshal(decodeEnvelope(t, recorder).Data, &results); err != nil {
			t.Fatalf("decode results: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Success || results[0].Data == nil || results[0].Data.ID != "todo-1" {
			t.Fatalf("unexpected first result %+v", results[0])
		}
		if results[1].Success || results[1].Error != "resource not found" {
			t.Fatalf("unexpected second result %+v", results[1])
		}
		if results[2].Success || len(results[2].Details) != 1 || results[2].Details[0].Field != "priority" {
			t.Fatalf("unexpected third result %+v", results[2])
		}
	})

	t.Run("delete and get use the path id", func(t *testing.T) {
		t.Parallel()

		service := &todoServiceStub{todo: sampleTodo()}
		router := newTestRouter(service, nil)
		if recorder := serve(router, http.MethodDelete, "/todos/todo-9", ""); recorder.Code != http.StatusOK || service.lastID != "todo-9" {
			t.Fatalf("unexpected delete: %d %q", recorder.Code, service.lastID)
		}
		if recorder := serve(router, http.MethodGet, "/todos/todo-3", ""); recorder.Code != http.StatusOK || service.lastID != "todo-3" {
			t.Fatalf("unexpected get: %d %q", recorder.Code, service.lastID)
		}
	})

	t.Run("rejects requests without a session", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{
			Todos:    NewTodoHandler(&todoServiceStub{}, nil),
			Sessions: &fakeSessionValidator{err: application.ErrUnauthorized},
		})
		if recorder := serve(router, http.MethodGet, "/todos", ""); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})
}

func TestNestedResourceRoutes(t *testing.T) {
	t.Parallel()

	nested := &nestedServiceStub{todo: sampleTodo(), comment: application.Comment{ID: "c1", TodoID: "todo-1", Body: "hi"}}
	router := newTestRouter(&todoServiceStub{}, nested)

	requests := []struct {
		method, target, body string
		status               int
	}{
		{http.MethodPost, "/todos/todo-1/subtasks", `{"title":"step"}`, http.StatusCreated},
		{http.MethodPatch, "/todos/todo-1/subtasks/s1", `{"completed":true}`, http.StatusOK},
		{http.MethodDelete, "/todos/todo-1/subtasks/s1", "", http.StatusOK},
		{http.MethodPost, "/todos/todo-1/comments", `{"body":"hi"}`, http.StatusCreated},
		{http.MethodDelete, "/todos/todo-1/comments/c1", "", http.StatusOK},
		{http.MethodGet, "/categories", "", http.StatusOK},
		{http.MethodPost, "/categories", `{"name":"work"}`, http.StatusCreated},
		{http.MethodDelete, "/categories/cat-1", "", http.StatusOK},
	}
	for _, req := range requests {
		if recorder := serve(router, req.method, req.target, req.body); recorder.Code != req.status {
			t.Fatalf("%s %s: expected %d, got %d: %s", req.method, req.target, req.status, recorder.Code, recorder.Body.String())
		}
	}

	want := []string{
		"AddSubtask todo-1 step",
		"UpdateSubtask todo-1 s1",
		"DeleteSubtask todo-1 s1",
		"AddComment todo-1 hi",
		"DeleteComment todo-1 c1",
		"ListCategories",
		"CreateCategory work",
		"DeleteCategory cat-1",
	}
	if strings.Join(nested.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected calls:\n%v", nested.calls)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	recorder := serve(NewRouter(RouterConfig{}), http.MethodGet, "/healthz", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if envelope := decodeEnvelope(t, recorder); !envelope.Success {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
}
