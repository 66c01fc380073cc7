package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/todosync/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks. Every todo, subtask and comment
// service it builds shares Locks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Locks       *application.TodoLocks
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Locks:       application.NewTodoLocks(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// TodoServiceDeps captures dependencies for constructing a todo service.
type TodoServiceDeps struct {
	Todos       application.TodoRepository
	Categories  application.CategoryDirectory
	Teams       application.TeamDirectory
	Publisher   application.ChangePublisher
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewTodoService builds a todo service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewTodoService(deps TodoServiceDeps) *application.TodoService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	svc := application.NewTodoServiceWithLogger(
		deps.Todos,
		deps.Categories,
		deps.Teams,
		deps.Publisher,
		idGen,
		now,
		deps.Logger,
	)
	svc.UseLocks(f.Locks)
	return svc
}

// SubtaskServiceDeps captures dependencies for constructing a subtask service.
type SubtaskServiceDeps struct {
	Todos       application.TodoRepository
	Subtasks    application.SubtaskRepository
	Publisher   application.ChangePublisher
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewSubtaskService builds a subtask service using the supplied dependencies.
func (f *ServiceFactory) NewSubtaskService(deps SubtaskServiceDeps) *application.SubtaskService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	svc := application.NewSubtaskServiceWithLogger(deps.Todos, deps.Subtasks, deps.Publisher, idGen, now, deps.Logger)
	svc.UseLocks(f.Locks)
	return svc
}

// CommentServiceDeps captures dependencies for constructing a comment service.
type CommentServiceDeps struct {
	Todos       application.TodoRepository
	Comments    application.CommentRepository
	Publisher   application.ChangePublisher
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewCommentService builds a comment service using the supplied dependencies.
func (f *ServiceFactory) NewCommentService(deps CommentServiceDeps) *application.CommentService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	svc := application.NewCommentServiceWithLogger(deps.Todos, deps.Comments, deps.Publisher, idGen, now, deps.Logger)
	svc.UseLocks(f.Locks)
	return svc
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users       application.UserRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewUserServiceWithLogger(deps.Users, idGen, now, deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	Verifier       application.PasswordVerifier
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service. Tokens come from the factory id
// generator unless TokenGenerator is set, and SessionTTL defaults to one hour.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	tokens, now := f.defaults(deps.TokenGenerator, deps.Now)
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.Verifier,
		tokens,
		now,
		ttl,
		deps.Logger,
	)
}
