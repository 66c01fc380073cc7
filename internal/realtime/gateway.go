package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
)

// Authenticator resolves a bearer credential to a principal.
type Authenticator interface {
	ValidateSession(ctx context.Context, token string) (application.Principal, error)
}

// TeamDirectory answers whether a user may join a team room.
type TeamDirectory interface {
	IsTeamMember(ctx context.Context, teamID, userID string) (bool, error)
}

// GatewayConfig tunes the websocket endpoint.
type GatewayConfig struct {
	// HandshakeTimeout bounds credential validation before the upgrade.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each frame written to a client.
	WriteTimeout time.Duration
	// OriginPatterns is passed to websocket.Accept. Empty means same origin only.
	OriginPatterns []string
}

// Gateway serves GET /realtime.
type Gateway struct {
	registry  *Registry
	auth      Authenticator
	teams     TeamDirectory
	validator *messageValidator
	config    GatewayConfig
	logger    *slog.Logger
}

// NewGateway wires a websocket endpoint onto registry. It also announces
// user-left to team rooms whenever a session disconnects.
func NewGateway(registry *Registry, auth Authenticator, teams TeamDirectory, config GatewayConfig, logger *slog.Logger) (*Gateway, error) {
	if registry == nil {
		return nil, errors.New("realtime: registry is required")
	}
	if auth == nil {
		return nil, errors.New("realtime: authenticator is required")
	}
	validator, err := newMessageValidator()
	if err != nil {
		return nil, err
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		registry:  registry,
		auth:      auth,
		teams:     teams,
		validator: validator,
		config:    config,
		logger:    logger.With("component", "realtime"),
	}
	registry.OnDisconnect(g.announceDeparture)
	return g, nil
}

// ServeHTTP authenticates the request, upgrades it and runs the session until
// either side closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := credential(r)
	if token == "" {
		writeUnauthorized(w, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.config.HandshakeTimeout)
	principal, err := g.auth.ValidateSession(ctx, token)
	cancel()
	if err != nil || principal.UserID == "" {
		g.logger.WarnContext(r.Context(), "realtime handshake rejected", "error", err, "error_kind", application.ErrorKind(err))
		writeUnauthorized(w, "authentication required")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: g.config.OriginPatterns})
	if err != nil {
		g.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	session := g.registry.Open()
	logger := g.logger.With("session_id", session.ID(), "user_id", principal.UserID)
	if err := g.registry.Authenticate(session.ID(), principal.UserID); err != nil {
		logger.Warn("session authentication failed", "error", err)
		_ = conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}
	logger.Info("realtime session opened")

	connCtx, stop := context.WithCancel(r.Context())
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.writeLoop(connCtx, conn, session, logger)
	}()

	if connected, err := api.NewMessage(api.TypeConnected, api.ConnectedPayload{SessionID: session.ID(), UserID: principal.UserID}); err == nil {
		_ = g.registry.Send(session.ID(), connected)
	}

	g.readLoop(connCtx, conn, session, principal.UserID, logger)

	g.registry.Disconnect(session.ID())
	stop()
	<-done
	_ = conn.Close(websocket.StatusNormalClosure, "")
	logger.Info("realtime session closed")
}

// writeLoop is the only writer of conn. It ends when the outbox is closed.
func (g *Gateway) writeLoop(ctx context.Context, conn *websocket.Conn, session *Session, logger *slog.Logger) {
	for msg := range session.Outbox() {
		writeCtx, cancel := context.WithTimeout(ctx, g.config.WriteTimeout)
		err := wsjson.Write(writeCtx, conn, msg)
		cancel()
		if err != nil {
			logger.Warn("realtime write failed", "error", err, "message_type", msg.Type)
			g.registry.Disconnect(session.ID())
			break
		}
	}
	// Drain so a racing Broadcast never blocks on a dead session.
	for range session.Outbox() {
	}
	conn.CloseNow()
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, session *Session, userID string, logger *slog.Logger) {
	for {
		kind, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				logger.Debug("realtime read ended", "error", err)
			}
			return
		}
		if kind != websocket.MessageText {
			g.reply(session, "binary messages are not supported")
			continue
		}

		msg, err := g.validator.decode(data)
		if err != nil {
			g.reply(session, err.Error())
			continue
		}
		if err := g.dispatch(ctx, session, userID, msg); err != nil {
			logger.Debug("realtime message rejected", "message_type", msg.Type, "error", err)
			g.reply(session, err.Error())
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, session *Session, userID string, msg api.Message) error {
	switch msg.Type {
	case api.TypeJoinUserRoom:
		var payload api.JoinUserRoomPayload
		if err := msg.Decode(&payload); err != nil {
			return err
		}
		_, err := g.registry.Join(session.ID(), UserRoom(payload.UserID))
		return err

	case api.TypeJoinTeamRoom:
		var payload api.TeamRoomPayload
		if err := msg.Decode(&payload); err != nil {
			return err
		}
		if err := g.checkTeam(ctx, payload.TeamID, userID); err != nil {
			return err
		}
		room := TeamRoom(payload.TeamID)
		changed, err := g.registry.Join(session.ID(), room)
		if err != nil {
			return err
		}
		if changed {
			g.announce(api.TypeUserJoined, room, userID, session.ID())
		}
		return nil

	case api.TypeLeaveTeamRoom:
		var payload api.TeamRoomPayload
		if err := msg.Decode(&payload); err != nil {
			return err
		}
		room := TeamRoom(payload.TeamID)
		changed, err := g.registry.Leave(session.ID(), room)
		if err != nil {
			return err
		}
		if changed {
			g.announce(api.TypeUserLeft, room, userID, session.ID())
		}
		return nil
	}
	return errors.New("unsupported message type")
}

func (g *Gateway) checkTeam(ctx context.Context, teamID, userID string) error {
	if g.teams == nil {
		return ErrForbiddenRoom
	}
	member, err := g.teams.IsTeamMember(ctx, teamID, userID)
	if err != nil {
		g.logger.ErrorContext(ctx, "team lookup failed", "team_id", teamID, "error", err, "error_kind", application.ErrorKind(err))
		return errors.New("team lookup failed")
	}
	if !member {
		return ErrForbiddenRoom
	}
	return nil
}

func (g *Gateway) announce(messageType string, room RoomID, userID, exclude string) {
	msg, err := api.NewMessage(messageType, api.PresencePayload{UserID: userID, TeamID: room.Target()})
	if err != nil {
		return
	}
	msg.Room = string(room)
	g.registry.Broadcast(room, msg, exclude)
}

func (g *Gateway) announceDeparture(sessionID, userID string, rooms []RoomID) {
	for _, room := range rooms {
		if room.Kind() == RoomTeam {
			g.announce(api.TypeUserLeft, room, userID, sessionID)
		}
	}
}

func (g *Gateway) reply(session *Session, text string) {
	msg, err := api.NewMessage(api.TypeError, api.ErrorPayload{Message: text})
	if err != nil {
		return
	}
	_ = g.registry.Send(session.ID(), msg)
}

// credential reads a bearer token from the Authorization header or the token
// query parameter. Browsers cannot set headers on a websocket handshake.
func credential(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(api.Response{Success: false, Error: message})
}
