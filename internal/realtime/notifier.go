package realtime

import (
	"context"
	"log/slog"

	"github.com/example/todosync/internal/api"
	"github.com/example/todosync/internal/application"
	"github.com/example/todosync/internal/logging"
)

// Notifier publishes application changes to the registry. Every change goes
// to the owner's user room and, for team todos, to the team room.
type Notifier struct {
	registry *Registry
	logger   *slog.Logger
}

var _ application.ChangePublisher = (*Notifier)(nil)

// NewNotifier returns a publisher that fans changes out through registry.
func NewNotifier(registry *Registry, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{registry: registry, logger: logger.With("component", "realtime")}
}

// Publish implements application.ChangePublisher.
func (n *Notifier) Publish(ctx context.Context, change application.Change) {
	if n == nil || n.registry == nil {
		return
	}
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = n.logger
	}
	logger = logger.With("todo_id", change.TodoID, "change", string(change.Entity)+"."+string(change.Kind))

	events, err := EventsForChange(change)
	if err != nil {
		logger.Error("failed to build change events", "error", err)
		return
	}
	for _, event := range events {
		delivered := n.registry.Publish(event, change.Origin)
		logger.Debug("change published", "room", string(event.Room()), "delivered", delivered)
	}
}

// EventsForChange builds one event per target room.
func EventsForChange(change application.Change) ([]ChangeEvent, error) {
	rooms := []RoomID{UserRoom(change.OwnerID)}
	if change.TeamID != nil && *change.TeamID != "" {
		rooms = append(rooms, TeamRoom(*change.TeamID))
	}

	kind := EventKind(change.Kind)
	entity := EntityKind(change.Entity)
	var payload any
	switch {
	case change.Kind == application.ChangeDeleted:
	case change.Entity == application.EntityComment && change.Comment != nil:
		payload = api.FromComment(*change.Comment)
	case change.Todo != nil:
		payload = api.FromTodo(*change.Todo)
	}

	events := make([]ChangeEvent, 0, len(rooms))
	for _, room := range rooms {
		event, err := NewChangeEvent(kind, entity, room, change.TodoID, payload, change.Origin)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
