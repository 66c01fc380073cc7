// Package http exposes the todo service over JSON HTTP.
//
// Every response uses the envelope defined in internal/api:
// {"success":true,"data":...} or {"success":false,"error":"...","details":[...]}.
// Errors map to 400 (validation), 401 (authentication), 404 (missing or not
// owned) and 500 (anything else).
//
// Endpoints:
//   - POST /sessions: login. The token is returned in the body, the
//     X-Session-Token header and a session_token cookie.
//   - DELETE /sessions/current: logout of the presented token.
//   - GET /todos?status=&priority=&category=, POST /todos, POST /todos/batch.
//   - GET, PATCH, DELETE /todos/{id}.
//   - POST /todos/{id}/subtasks, PATCH and DELETE /todos/{id}/subtasks/{subtaskId}.
//     Subtask endpoints answer with the parent todo.
//   - POST /todos/{id}/comments, DELETE /todos/{id}/comments/{commentId}.
//   - GET, POST /categories, DELETE /categories/{id}.
//   - GET /realtime: websocket upgrade, served by internal/realtime.
//   - GET /healthz.
//
// Authenticated endpoints accept a bearer token or the session_token cookie.
// A request carrying X-Realtime-Session names the caller's realtime session,
// which is then excluded from the broadcast of the resulting change.
package http
