package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/example/todosync/internal/api"
)

// ConnState is the lifecycle of a ConnectionManager.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDegraded
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}

// Backoff computes reconnect delays: Base for the first attempt, doubling
// after each failure and capped at Max. MaxRetries bounds the attempts.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultBackoff is used for zero fields of ConnectionConfig.Backoff.
var DefaultBackoff = Backoff{Base: time.Second, Max: 30 * time.Second, MaxRetries: 8}

// Delay returns the wait before attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max {
			return b.Max
		}
	}
	return min(delay, b.Max)
}

// Sink consumes pushed events. *Reconciler implements it.
type Sink interface {
	Apply(msg api.Message) error
}

// Refresher reloads full state after a reconnect. *Store implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ConnectionConfig wires a ConnectionManager.
type ConnectionConfig struct {
	// URL is the websocket endpoint, e.g. ws://host/realtime.
	URL string
	// Token returns the bearer credential for each dial.
	Token  func() string
	UserID string
	Teams  []string

	Backoff    Backoff
	HTTPClient *http.Client

	Sink      Sink
	Refresher Refresher

	// OnSession receives the server session id after every successful
	// connect, and "" when the connection is lost.
	OnSession func(sessionID string)
	// OnDegraded is called once the reconnect budget is exhausted.
	OnDegraded func(err *ConnectionError)
	// OnMessage sees every frame, including presence and error frames.
	OnMessage func(msg api.Message)

	Logger *slog.Logger
}

// ConnectionManager keeps one realtime connection alive and feeds its events
// to the Sink.
type ConnectionManager struct {
	config ConnectionConfig
	logger *slog.Logger

	mu        sync.Mutex
	state     ConnState
	conn      *websocket.Conn
	sessionID string
}

// NewConnectionManager returns an idle manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.Backoff.Base <= 0 {
		config.Backoff.Base = DefaultBackoff.Base
	}
	if config.Backoff.Max <= 0 {
		config.Backoff.Max = DefaultBackoff.Max
	}
	if config.Backoff.MaxRetries <= 0 {
		config.Backoff.MaxRetries = DefaultBackoff.MaxRetries
	}
	if config.Token == nil {
		config.Token = func() string { return "" }
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		config: config,
		logger: logger.With("component", "client_realtime"),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (m *ConnectionManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the server session id of the live connection.
func (m *ConnectionManager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Connect dials, waits for the connected frame and joins the user and team
// rooms.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}
	previous := m.state
	if previous != StateReconnecting {
		m.state = StateConnecting
	}
	m.mu.Unlock()

	conn, sessionID, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		if m.state == StateConnecting {
			m.state = previous
		}
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		conn.CloseNow()
		return ErrClosed
	}
	m.conn = conn
	m.sessionID = sessionID
	m.state = StateConnected
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "realtime connected", "session_id", sessionID)
	if m.config.OnSession != nil {
		m.config.OnSession(sessionID)
	}
	return nil
}

func (m *ConnectionManager) dial(ctx context.Context) (*websocket.Conn, string, error) {
	header := http.Header{}
	if token := m.config.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.Dial(ctx, m.config.URL, &websocket.DialOptions{
		HTTPClient: m.config.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, "", &APIError{Status: resp.StatusCode, Message: "authentication required"}
		}
		return nil, "", fmt.Errorf("dial realtime: %w", err)
	}

	var hello api.Message
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		conn.CloseNow()
		return nil, "", fmt.Errorf("read connected frame: %w", err)
	}
	var payload api.ConnectedPayload
	if hello.Type != api.TypeConnected || hello.Decode(&payload) != nil || payload.SessionID == "" {
		conn.CloseNow()
		return nil, "", fmt.Errorf("unexpected first frame %q", hello.Type)
	}

	joins := make([]api.Message, 0, 1+len(m.config.Teams))
	if m.config.UserID != "" {
		msg, err := api.NewMessage(api.TypeJoinUserRoom, api.JoinUserRoomPayload{UserID: m.config.UserID})
		if err != nil {
			conn.CloseNow()
			return nil, "", err
		}
		joins = append(joins, msg)
	}
	for _, team := range m.config.Teams {
		msg, err := api.NewMessage(api.TypeJoinTeamRoom, api.TeamRoomPayload{TeamID: team})
		if err != nil {
			conn.CloseNow()
			return nil, "", err
		}
		joins = append(joins, msg)
	}
	for _, msg := range joins {
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			conn.CloseNow()
			return nil, "", fmt.Errorf("join %s: %w", msg.Type, err)
		}
	}
	return conn, payload.SessionID, nil
}

// Run reads events until ctx ends or Close is called. A lost connection is
// redialled with backoff; after each reconnect the Refresher reloads state.
// When the retry budget runs out Run returns a *ConnectionError and the
// state is Degraded.
func (m *ConnectionManager) Run(ctx context.Context) error {
	if m.State() != StateConnected {
		if err := m.Connect(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			m.logger.WarnContext(ctx, "initial realtime connect failed", "error", err)
			if err := m.reconnect(ctx, err); err != nil {
				return err
			}
		}
	}

	for {
		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()
		if conn == nil {
			return nil
		}

		err := m.readLoop(ctx, conn)
		if m.State() == StateClosed {
			return nil
		}
		if ctx.Err() != nil {
			m.Close()
			return ctx.Err()
		}
		m.logger.WarnContext(ctx, "realtime connection lost", "error", err)
		if err := m.reconnect(ctx, err); err != nil {
			return err
		}
	}
}

func (m *ConnectionManager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg api.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		if m.config.OnMessage != nil {
			m.config.OnMessage(msg)
		}
		if msg.Type == api.TypeError {
			var payload api.ErrorPayload
			_ = msg.Decode(&payload)
			m.logger.WarnContext(ctx, "realtime server error", "message", payload.Message)
			continue
		}
		if m.config.Sink == nil {
			continue
		}
		if err := m.config.Sink.Apply(msg); err != nil {
			m.logger.WarnContext(ctx, "realtime event ignored", "message_type", msg.Type, "error", err)
		}
	}
}

func (m *ConnectionManager) reconnect(ctx context.Context, cause error) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	if m.conn != nil {
		m.conn.CloseNow()
		m.conn = nil
	}
	m.sessionID = ""
	m.state = StateReconnecting
	m.mu.Unlock()
	if m.config.OnSession != nil {
		m.config.OnSession("")
	}

	last := cause
	backoff := m.config.Backoff
	for attempt := 1; attempt <= backoff.MaxRetries; attempt++ {
		timer := time.NewTimer(backoff.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			m.Close()
			return ctx.Err()
		case <-timer.C:
		}

		err := m.Connect(ctx)
		if err == nil {
			if m.config.Refresher != nil {
				if err := m.config.Refresher.Refresh(ctx); err != nil {
					m.logger.WarnContext(ctx, "refresh after reconnect failed", "error", err)
				}
			}
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return nil
		}
		last = err
		m.logger.InfoContext(ctx, "realtime reconnect failed", "attempt", attempt, "error", err)
	}

	connErr := &ConnectionError{Attempts: backoff.MaxRetries, Err: last}
	m.mu.Lock()
	m.state = StateDegraded
	m.mu.Unlock()
	m.logger.ErrorContext(ctx, "realtime degraded", "error", connErr)
	if m.config.OnDegraded != nil {
		m.config.OnDegraded(connErr)
	}
	return connErr
}

// Close ends the connection. It is idempotent; a closed manager cannot be
// reused.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	conn := m.conn
	m.conn = nil
	m.sessionID = ""
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}
