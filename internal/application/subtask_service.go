package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// SubtaskRepository captures the persistence operations for subtasks.
type SubtaskRepository interface {
	CreateSubtask(ctx context.Context, subtask Subtask) error
	UpdateSubtask(ctx context.Context, subtask Subtask) error
	GetSubtask(ctx context.Context, todoID, id string) (Subtask, error)
	DeleteSubtask(ctx context.Context, todoID, id string) error
}

// SubtaskService manages the checklist of a todo. Every successful mutation
// returns the parent todo with its full graph and announces it as updated.
type SubtaskService struct {
	todos       TodoRepository
	subtasks    SubtaskRepository
	publisher   ChangePublisher
	idGenerator func() string
	now         func() time.Time
	locks       *TodoLocks
	logger      *slog.Logger
}

// NewSubtaskService constructs a subtask service with the provided dependencies.
func NewSubtaskService(todos TodoRepository, subtasks SubtaskRepository, publisher ChangePublisher, idGenerator func() string, now func() time.Time) *SubtaskService {
	return NewSubtaskServiceWithLogger(todos, subtasks, publisher, idGenerator, now, nil)
}

// NewSubtaskServiceWithLogger constructs a subtask service with a specified logger.
func NewSubtaskServiceWithLogger(todos TodoRepository, subtasks SubtaskRepository, publisher ChangePublisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SubtaskService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SubtaskService{
		todos:       todos,
		subtasks:    subtasks,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		locks:       NewTodoLocks(),
		logger:      defaultLogger(logger),
	}
}

// UseLocks replaces the per-todo lock table, so that services mutating the
// same todos serialise against each other.
func (s *SubtaskService) UseLocks(locks *TodoLocks) {
	if s != nil && locks != nil {
		s.locks = locks
	}
}

func (s *SubtaskService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SubtaskService", operation, attrs...)
}

// AddSubtask appends a subtask to an owned todo.
func (s *SubtaskService) AddSubtask(ctx context.Context, principal Principal, todoID string, input SubtaskInput) (todo Todo, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "AddSubtask", "principal_id", principal.UserID, "todo_id", todoID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add subtask", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "subtask added", "subtask_count", todo.TotalSubtasks())
	}()

	unlock := s.locks.Lock(strings.TrimSpace(todoID))
	defer unlock()

	var parent Todo
	if parent, err = ownedTodo(ctx, s.todos, principal, todoID); err != nil {
		return
	}

	title := strings.TrimSpace(input.Title)
	if vErr := validateSubtaskTitle(title); vErr.HasErrors() {
		err = vErr
		return
	}

	position := 0
	for _, existing := range parent.Subtasks {
		if existing.Position >= position {
			position = existing.Position + 1
		}
	}

	now := s.now().UTC()
	subtask := Subtask{
		ID:        s.idGenerator(),
		TodoID:    parent.ID,
		Title:     title,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = mapRepoError(s.subtasks.CreateSubtask(ctx, subtask)); err != nil {
		return
	}

	todo, err = s.announce(ctx, parent)
	return
}

// UpdateSubtask changes the title or completion flag of a subtask.
func (s *SubtaskService) UpdateSubtask(ctx context.Context, principal Principal, todoID, subtaskID string, patch SubtaskPatch) (todo Todo, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateSubtask",
		"principal_id", principal.UserID,
		"todo_id", todoID,
		"subtask_id", subtaskID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update subtask", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "subtask updated")
	}()

	unlock := s.locks.Lock(strings.TrimSpace(todoID))
	defer unlock()

	var parent Todo
	if parent, err = ownedTodo(ctx, s.todos, principal, todoID); err != nil {
		return
	}

	var subtask Subtask
	if subtask, err = s.subtasks.GetSubtask(ctx, parent.ID, subtaskID); err != nil {
		err = mapRepoError(err)
		return
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if vErr := validateSubtaskTitle(title); vErr.HasErrors() {
			err = vErr
			return
		}
		subtask.Title = title
	}
	if patch.Completed != nil {
		subtask.Completed = *patch.Completed
	}
	subtask.UpdatedAt = s.now().UTC()

	if err = mapRepoError(s.subtasks.UpdateSubtask(ctx, subtask)); err != nil {
		return
	}
	todo, err = s.announce(ctx, parent)
	return
}

// DeleteSubtask removes a subtask from an owned todo.
func (s *SubtaskService) DeleteSubtask(ctx context.Context, principal Principal, todoID, subtaskID string) (todo Todo, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteSubtask",
		"principal_id", principal.UserID,
		"todo_id", todoID,
		"subtask_id", subtaskID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete subtask", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "subtask deleted")
	}()

	unlock := s.locks.Lock(strings.TrimSpace(todoID))
	defer unlock()

	var parent Todo
	if parent, err = ownedTodo(ctx, s.todos, principal, todoID); err != nil {
		return
	}
	if err = mapRepoError(s.subtasks.DeleteSubtask(ctx, parent.ID, subtaskID)); err != nil {
		return
	}
	todo, err = s.announce(ctx, parent)
	return
}

func (s *SubtaskService) ready() error {
	if s == nil {
		return fmt.Errorf("SubtaskService is nil")
	}
	if s.todos == nil || s.subtasks == nil {
		return fmt.Errorf("subtask repositories not configured")
	}
	return nil
}

// announce reloads the parent graph after a committed child write and
// publishes it as an updated todo.
func (s *SubtaskService) announce(ctx context.Context, parent Todo) (Todo, error) {
	todo, err := s.todos.GetTodo(ctx, parent.OwnerID, parent.ID)
	if err != nil {
		return Todo{}, mapRepoError(err)
	}
	publish(ctx, s.publisher, todoChange(ChangeUpdated, todo))
	return todo, nil
}

func ownedTodo(ctx context.Context, todos TodoRepository, principal Principal, todoID string) (Todo, error) {
	if principal.UserID == "" {
		return Todo{}, ErrUnauthorized
	}
	todoID = strings.TrimSpace(todoID)
	if todoID == "" {
		return Todo{}, ErrNotFound
	}
	todo, err := todos.GetTodo(ctx, principal.UserID, todoID)
	if err != nil {
		return Todo{}, mapRepoError(err)
	}
	return todo, nil
}

func validateSubtaskTitle(title string) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case title == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	return vErr
}
