package application

import "context"

// ChangeKind says what happened to an entity.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// EntityKind names the entity a change is about.
type EntityKind string

const (
	EntityTodo    EntityKind = "todo"
	EntityComment EntityKind = "comment"
)

// Change describes one committed mutation. Todo is set for created and
// updated todos, Comment for created comments; deletions carry only TodoID.
type Change struct {
	Kind    ChangeKind
	Entity  EntityKind
	TodoID  string
	OwnerID string
	TeamID  *string
	Todo    *Todo
	Comment *Comment
	// Origin is the realtime session that caused the change, if any. It is
	// excluded from the broadcast.
	Origin string
}

// ChangePublisher receives committed changes. Publish must not block on slow
// subscribers.
type ChangePublisher interface {
	Publish(ctx context.Context, change Change)
}

type originKey struct{}

// ContextWithOrigin records the realtime session id that issued a request.
func ContextWithOrigin(ctx context.Context, sessionID string) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, sessionID)
}

// OriginFromContext returns the realtime session id recorded by ContextWithOrigin.
func OriginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

func publish(ctx context.Context, publisher ChangePublisher, change Change) {
	if publisher == nil {
		return
	}
	change.Origin = OriginFromContext(ctx)
	publisher.Publish(ctx, change)
}
