package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

type fakeSessionValidator struct {
	principal application.Principal
	err       error
	lastToken string
}

func (f *fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	f.lastToken = token
	return f.principal, f.err
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) api.Envelope {
	t.Helper()
	var envelope api.Envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return envelope
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		cookie         *http.Cookie
		header         string
		validatorErr   error
		expectedStatus int
		expectedToken  string
	}{
		{name: "missing credentials", expectedStatus: http.StatusUnauthorized},
		{name: "non bearer header", header: "Basic abc", expectedStatus: http.StatusUnauthorized},
		{name: "expired session", header: "Bearer old", validatorErr: application.ErrSessionExpired, expectedStatus: http.StatusUnauthorized, expectedToken: "old"},
		{name: "revoked cookie session", cookie: &http.Cookie{Name: "session_token", Value: "revoked"}, validatorErr: application.ErrSessionRevoked, expectedStatus: http.StatusUnauthorized, expectedToken: "revoked"},
		{name: "unknown session", header: "Bearer nope", validatorErr: application.ErrNotFound, expectedStatus: http.StatusUnauthorized, expectedToken: "nope"},
		{name: "repository failure", header: "Bearer tok", validatorErr: errors.New("database is locked"), expectedStatus: http.StatusInternalServerError, expectedToken: "tok"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			validator := &fakeSessionValidator{err: tc.validatorErr}
			handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler should not be called when authentication fails")
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if recorder.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d", tc.expectedStatus, recorder.Code)
			}
			envelope := decodeEnvelope(t, recorder)
			if envelope.Success || envelope.Error == "" {
				t.Fatalf("expected failure envelope, got %+v", envelope)
			}
			if tc.expectedStatus == http.StatusInternalServerError && envelope.Error != "internal server error" {
				t.Fatalf("internal error details leaked: %q", envelope.Error)
			}
			if validator.lastToken != tc.expectedToken {
				t.Fatalf("expected token %q, got %q", tc.expectedToken, validator.lastToken)
			}
		})
	}

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		validator := &fakeSessionValidator{principal: application.Principal{UserID: "user-42"}}
		var captured application.Principal
		handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				t.Fatal("expected principal in request context")
			}
			captured = p
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "valid-token"})
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", recorder.Code)
		}
		if captured.UserID != "user-42" {
			t.Fatalf("unexpected principal %+v", captured)
		}
		if validator.lastToken != "valid-token" {
			t.Fatalf("expected cookie token, got %q", validator.lastToken)
		}
	})
}

// sessionOwners maps realtime session ids to their users.
type sessionOwners map[string]string

func (s sessionOwners) SessionOwner(id string) (string, bool) {
	owner, ok := s[id]
	return owner, ok
}

func TestRealtimeOrigin(t *testing.T) {
	t.Parallel()

	owners := sessionOwners{"rt-7": "user-42", "rt-9": "user-7"}
	tests := []struct {
		name     string
		sessions RealtimeSessions
		userID   string
		header   string
		want     string
	}{
		{name: "own session is trimmed and recorded", sessions: owners, userID: "user-42", header: " rt-7 ", want: "rt-7"},
		{name: "no header", sessions: owners, userID: "user-42"},
		{name: "session of another user is ignored", sessions: owners, userID: "user-42", header: "rt-9"},
		{name: "unknown session is ignored", sessions: owners, userID: "user-42", header: "rt-404"},
		{name: "anonymous caller is ignored", sessions: owners, header: "rt-7"},
		{name: "no session lookup configured", userID: "user-42", header: "rt-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			origin := "unset"
			handler := RealtimeOrigin(tt.sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				origin = application.OriginFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/todos", nil)
			if tt.header != "" {
				req.Header.Set(RealtimeSessionHeader, tt.header)
			}
			if tt.userID != "" {
				req = req.WithContext(ContextWithPrincipal(req.Context(), application.Principal{UserID: tt.userID}))
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if origin != tt.want {
				t.Fatalf("expected origin %q, got %q", tt.want, origin)
			}
		})
	}
}

func TestRequestLoggerAttachesLogger(t *testing.T) {
	t.Parallel()

	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFromContext(r.Context()) == nil {
			t.Fatal("expected request logger in context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if recorder.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", recorder.Code)
	}
}
