package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/todosync/internal/application"
)

type capturingUserRepo struct {
	created application.UserCredentials
}

func (c *capturingUserRepo) CreateUser(ctx context.Context, user application.UserCredentials) error {
	c.created = user
	return nil
}

func (c *capturingUserRepo) GetUser(ctx context.Context, id string) (application.User, error) {
	return application.User{}, application.ErrNotFound
}

type capturingTodoRepo struct {
	created application.Todo
}

func (c *capturingTodoRepo) CreateTodo(ctx context.Context, todo application.Todo) error {
	c.created = todo
	return nil
}

func (c *capturingTodoRepo) UpdateTodo(ctx context.Context, todo application.Todo, expectedUpdatedAt time.Time) error {
	c.created = todo
	return nil
}

func (c *capturingTodoRepo) GetTodo(ctx context.Context, ownerID, id string) (application.Todo, error) {
	if c.created.ID != id || c.created.OwnerID != ownerID {
		return application.Todo{}, application.ErrNotFound
	}
	return c.created, nil
}

func (c *capturingTodoRepo) ListTodos(ctx context.Context, filter application.TodoFilter) ([]application.Todo, error) {
	return nil, nil
}

func (c *capturingTodoRepo) DeleteTodo(ctx context.Context, ownerID, id string) error {
	return nil
}

type capturingPublisher struct {
	changes []application.Change
}

func (c *capturingPublisher) Publish(ctx context.Context, change application.Change) {
	c.changes = append(c.changes, change)
}

func TestServiceFactoryNewUserService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingUserRepo{}

	svc := factory.NewUserService(UserServiceDeps{Users: repo})
	input := application.UserInput{Email: "user@example.com", DisplayName: "User", Password: "long-enough"}

	user, err := svc.CreateUser(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if user.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", user.ID)
	}
	if repo.created.User.ID != user.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.User.ID)
	}
	if repo.created.PasswordHash == "" || repo.created.PasswordHash == input.Password {
		t.Fatalf("expected a hashed password, got %q", repo.created.PasswordHash)
	}
	if !user.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), user.CreatedAt)
	}
}

func TestServiceFactoryNewTodoService(t *testing.T) {
	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("todo")))
	repo := &capturingTodoRepo{}
	publisher := &capturingPublisher{}
	owner := NewUserFixture()

	svc := factory.NewTodoService(TodoServiceDeps{Todos: repo, Publisher: publisher})
	todo, err := svc.CreateTodo(context.Background(), application.CreateTodoParams{
		Principal: owner.Principal(),
		Input:     application.TodoInput{Title: "Buy milk"},
	})
	if err != nil {
		t.Fatalf("CreateTodo returned error: %v", err)
	}

	if todo.ID != "todo-1" || factory.IDGenerator.Last() != todo.ID {
		t.Fatalf("expected generated ID todo-1, got %q", todo.ID)
	}
	if todo.Priority != application.PriorityMedium || todo.Status != application.StatusTodo {
		t.Fatalf("expected MEDIUM/TODO defaults, got %s/%s", todo.Priority, todo.Status)
	}
	if len(publisher.changes) != 1 || publisher.changes[0].Kind != application.ChangeCreated {
		t.Fatalf("expected one created change, got %+v", publisher.changes)
	}
}

func TestServiceFactoryTickingClockOrdersUpdates(t *testing.T) {
	factory := NewServiceFactory(WithClock(NewTickingClock(ReferenceTime(), time.Second)))
	repo := &capturingTodoRepo{}
	owner := NewUserFixture()

	svc := factory.NewTodoService(TodoServiceDeps{Todos: repo, Publisher: &capturingPublisher{}})
	created, err := svc.CreateTodo(context.Background(), application.CreateTodoParams{
		Principal: owner.Principal(),
		Input:     application.TodoInput{Title: "Buy milk"},
	})
	if err != nil {
		t.Fatalf("CreateTodo returned error: %v", err)
	}

	title := "Buy oat milk"
	updated, err := svc.UpdateTodo(context.Background(), application.UpdateTodoParams{
		Principal: owner.Principal(),
		TodoID:    created.ID,
		Patch:     application.TodoPatch{Title: &title},
	})
	if err != nil {
		t.Fatalf("UpdateTodo returned error: %v", err)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("expected updated_at to move forward: %v then %v", created.UpdatedAt, updated.UpdatedAt)
	}
}
