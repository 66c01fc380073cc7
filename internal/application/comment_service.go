package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// CommentRepository captures the persistence operations for comments.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment Comment) error
	DeleteComment(ctx context.Context, todoID, id string) error
}

// CommentService attaches notes to todos.
type CommentService struct {
	todos       TodoRepository
	comments    CommentRepository
	publisher   ChangePublisher
	idGenerator func() string
	now         func() time.Time
	locks       *TodoLocks
	logger      *slog.Logger
}

// NewCommentService constructs a comment service with the provided dependencies.
func NewCommentService(todos TodoRepository, comments CommentRepository, publisher ChangePublisher, idGenerator func() string, now func() time.Time) *CommentService {
	return NewCommentServiceWithLogger(todos, comments, publisher, idGenerator, now, nil)
}

// NewCommentServiceWithLogger constructs a comment service with a specified logger.
func NewCommentServiceWithLogger(todos TodoRepository, comments CommentRepository, publisher ChangePublisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CommentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CommentService{
		todos:       todos,
		comments:    comments,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		locks:       NewTodoLocks(),
		logger:      defaultLogger(logger),
	}
}

// UseLocks replaces the per-todo lock table, so that services mutating the
// same todos serialise against each other.
func (s *CommentService) UseLocks(locks *TodoLocks) {
	if s != nil && locks != nil {
		s.locks = locks
	}
}

func (s *CommentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CommentService", operation, attrs...)
}

// AddComment stores a comment authored by the principal on one of their todos
// and announces it as comment-added.
func (s *CommentService) AddComment(ctx context.Context, principal Principal, todoID string, input CommentInput) (comment Comment, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "AddComment", "principal_id", principal.UserID, "todo_id", todoID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add comment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("comment_id", comment.ID).InfoContext(ctx, "comment added")
	}()

	unlock := s.locks.Lock(strings.TrimSpace(todoID))
	defer unlock()

	var parent Todo
	if parent, err = ownedTodo(ctx, s.todos, principal, todoID); err != nil {
		return
	}

	body := strings.TrimSpace(input.Body)
	vErr := &ValidationError{}
	switch {
	case body == "":
		vErr.add("body", "body is required")
	case utf8.RuneCountInString(body) > maxCommentLength:
		vErr.add("body", fmt.Sprintf("body must be at most %d characters", maxCommentLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	candidate := Comment{
		ID:        s.idGenerator(),
		TodoID:    parent.ID,
		AuthorID:  principal.UserID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err = mapRepoError(s.comments.CreateComment(ctx, candidate)); err != nil {
		return
	}
	comment = candidate

	snapshot := comment
	publish(ctx, s.publisher, Change{
		Kind:    ChangeCreated,
		Entity:  EntityComment,
		TodoID:  parent.ID,
		OwnerID: parent.OwnerID,
		TeamID:  cloneString(parent.TeamID),
		Comment: &snapshot,
	})
	return
}

// DeleteComment removes a comment and announces the parent todo as updated.
func (s *CommentService) DeleteComment(ctx context.Context, principal Principal, todoID, commentID string) (todo Todo, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteComment",
		"principal_id", principal.UserID,
		"todo_id", todoID,
		"comment_id", commentID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete comment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "comment deleted")
	}()

	unlock := s.locks.Lock(strings.TrimSpace(todoID))
	defer unlock()

	var parent Todo
	if parent, err = ownedTodo(ctx, s.todos, principal, todoID); err != nil {
		return
	}
	if err = mapRepoError(s.comments.DeleteComment(ctx, parent.ID, commentID)); err != nil {
		return
	}

	if todo, err = s.todos.GetTodo(ctx, parent.OwnerID, parent.ID); err != nil {
		err = mapRepoError(err)
		return
	}
	publish(ctx, s.publisher, todoChange(ChangeUpdated, todo))
	return
}

func (s *CommentService) ready() error {
	if s == nil {
		return fmt.Errorf("CommentService is nil")
	}
	if s.todos == nil || s.comments == nil {
		return fmt.Errorf("comment repositories not configured")
	}
	return nil
}
