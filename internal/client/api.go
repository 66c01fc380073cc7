package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/example/todosync/internal/api"
)

// RealtimeSessionHeader names the realtime session that issued a mutation so
// the server does not echo the resulting event back to it.
const RealtimeSessionHeader = "X-Realtime-Session"

// API is a thin client of the REST endpoints. It is safe for concurrent use.
type API struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	token     string
	sessionID string
}

// NewAPI returns a client for the service rooted at baseURL. A nil
// httpClient uses http.DefaultClient.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// SetToken sets the bearer credential sent with every request.
func (c *API) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer credential.
func (c *API) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetRealtimeSession records the live realtime session id. Empty clears it.
func (c *API) SetRealtimeSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// Login exchanges credentials for a session and stores its token.
func (c *API) Login(ctx context.Context, email, password string) (api.Session, error) {
	var session api.Session
	err := c.do(ctx, http.MethodPost, "/sessions", api.LoginRequest{Email: email, Password: password}, &session)
	if err != nil {
		return api.Session{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

// Logout revokes the current session and forgets its token.
func (c *API) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/sessions/current", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// ListTodos returns the caller's todos narrowed by query.
func (c *API) ListTodos(ctx context.Context, query api.TodoQuery) ([]api.Todo, error) {
	values := url.Values{}
	if query.Status != "" {
		values.Set("status", query.Status)
	}
	if query.Priority != "" {
		values.Set("priority", query.Priority)
	}
	if query.CategoryID != "" {
		values.Set("category", query.CategoryID)
	}
	path := "/todos"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var todos []api.Todo
	if err := c.do(ctx, http.MethodGet, path, nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// GetTodo returns one todo with its full graph.
func (c *API) GetTodo(ctx context.Context, id string) (api.Todo, error) {
	var todo api.Todo
	err := c.do(ctx, http.MethodGet, "/todos/"+url.PathEscape(id), nil, &todo)
	return todo, err
}

// CreateTodo creates a todo.
func (c *API) CreateTodo(ctx context.Context, req api.CreateTodoRequest) (api.Todo, error) {
	var todo api.Todo
	err := c.do(ctx, http.MethodPost, "/todos", req, &todo)
	return todo, err
}

// UpdateTodo patches a todo.
func (c *API) UpdateTodo(ctx context.Context, id string, req api.UpdateTodoRequest) (api.Todo, error) {
	var todo api.Todo
	err := c.do(ctx, http.MethodPatch, "/todos/"+url.PathEscape(id), req, &todo)
	return todo, err
}

// DeleteTodo removes a todo.
func (c *API) DeleteTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil)
}

// BatchUpdateTodos applies several patches. Per-item failures are reported in
// the results, not as an error.
func (c *API) BatchUpdateTodos(ctx context.Context, items []api.BatchUpdateItem) ([]api.BatchUpdateResult, error) {
	var results []api.BatchUpdateResult
	err := c.do(ctx, http.MethodPost, "/todos/batch", api.BatchUpdateRequest{Items: items}, &results)
	return results, err
}

// AddSubtask appends a subtask and returns the parent todo.
func (c *API) AddSubtask(ctx context.Context, todoID, title string) (api.Todo, error) {
	var todo api.Todo
	err := c.do(ctx, http.MethodPost, "/todos/"+url.PathEscape(todoID)+"/subtasks", api.CreateSubtaskRequest{Title: title}, &todo)
	return todo, err
}

// UpdateSubtask patches a subtask and returns the parent todo.
func (c *API) UpdateSubtask(ctx context.Context, todoID, subtaskID string, req api.UpdateSubtaskRequest) (api.Todo, error) {
	var todo api.Todo
	err := c.do(ctx, http.MethodPatch, "/todos/"+url.PathEscape(todoID)+"/subtasks/"+url.PathEscape(subtaskID), req, &todo)
	return todo, err
}

// DeleteSubtask removes a subtask and returns the parent todo.
func (c *API) DeleteSubtask(ctx context.Context, todoID, subtaskID string) (api.Todo, error) {
	var todo api.Todo
	err := c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(todoID)+"/subtasks/"+url.PathEscape(subtaskID), nil, &todo)
	return todo, err
}

// AddComment attaches a comment to a todo.
func (c *API) AddComment(ctx context.Context, todoID, body string) (api.Comment, error) {
	var comment api.Comment
	err := c.do(ctx, http.MethodPost, "/todos/"+url.PathEscape(todoID)+"/comments", api.CreateCommentRequest{Body: body}, &comment)
	return comment, err
}

// DeleteComment removes a comment and returns the parent todo.
func (c *API) DeleteComment(ctx context.Context, todoID, commentID string) (api.Todo, error) {
	var todo api.Todo
	err := c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(todoID)+"/comments/"+url.PathEscape(commentID), nil, &todo)
	return todo, err
}

// ListCategories returns the caller's categories.
func (c *API) ListCategories(ctx context.Context) ([]api.Category, error) {
	var categories []api.Category
	err := c.do(ctx, http.MethodGet, "/categories", nil, &categories)
	return categories, err
}

// CreateCategory creates a category.
func (c *API) CreateCategory(ctx context.Context, req api.CreateCategoryRequest) (api.Category, error) {
	var category api.Category
	err := c.do(ctx, http.MethodPost, "/categories", req, &category)
	return category, err
}

// DeleteCategory removes a category.
func (c *API) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil)
}

func (c *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	token, sessionID := c.token, c.sessionID
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set(RealtimeSessionHeader, sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var envelope api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !envelope.Success {
		return &APIError{Status: resp.StatusCode, Message: envelope.Error, Details: envelope.Details}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
