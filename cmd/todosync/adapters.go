package main

import (
	"context"
	"time"

	"github.com/example/todosync/internal/application"
	"github.com/example/todosync/internal/persistence"
)

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.UserCredentials) error {
	return a.repo.CreateUser(ctx, toPersistenceUser(user))
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// GetUserCredentialsByEmail lets the adapter double as the auth credential store.
func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type categoryRepositoryAdapter struct {
	repo persistence.CategoryRepository
}

func newCategoryRepositoryAdapter(repo persistence.CategoryRepository) *categoryRepositoryAdapter {
	return &categoryRepositoryAdapter{repo: repo}
}

func (a *categoryRepositoryAdapter) CreateCategory(ctx context.Context, category application.Category) error {
	return a.repo.CreateCategory(ctx, toPersistenceCategory(category))
}

func (a *categoryRepositoryAdapter) ListCategories(ctx context.Context, ownerID string) ([]application.Category, error) {
	models, err := a.repo.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	categories := make([]application.Category, 0, len(models))
	for _, model := range models {
		categories = append(categories, toApplicationCategory(model))
	}
	return categories, nil
}

func (a *categoryRepositoryAdapter) MissingCategoryIDs(ctx context.Context, ownerID string, ids []string) ([]string, error) {
	return a.repo.MissingCategoryIDs(ctx, ownerID, ids)
}

func (a *categoryRepositoryAdapter) DeleteCategory(ctx context.Context, ownerID, id string) error {
	return a.repo.DeleteCategory(ctx, ownerID, id)
}

// todoRepositoryAdapter serves the todo, subtask and comment services, which
// share one SQLite repository.
type todoRepositoryAdapter struct {
	repo persistence.TodoRepository
}

func newTodoRepositoryAdapter(repo persistence.TodoRepository) *todoRepositoryAdapter {
	return &todoRepositoryAdapter{repo: repo}
}

func (a *todoRepositoryAdapter) CreateTodo(ctx context.Context, todo application.Todo) error {
	return a.repo.CreateTodo(ctx, toPersistenceTodo(todo))
}

func (a *todoRepositoryAdapter) UpdateTodo(ctx context.Context, todo application.Todo, expectedUpdatedAt time.Time) error {
	return a.repo.UpdateTodo(ctx, toPersistenceTodo(todo), expectedUpdatedAt)
}

func (a *todoRepositoryAdapter) GetTodo(ctx context.Context, ownerID, id string) (application.Todo, error) {
	stored, err := a.repo.GetTodo(ctx, ownerID, id)
	if err != nil {
		return application.Todo{}, err
	}
	return toApplicationTodo(stored), nil
}

func (a *todoRepositoryAdapter) ListTodos(ctx context.Context, filter application.TodoFilter) ([]application.Todo, error) {
	models, err := a.repo.ListTodos(ctx, persistence.TodoFilter{
		OwnerID:    filter.OwnerID,
		Status:     string(filter.Status),
		Priority:   string(filter.Priority),
		CategoryID: filter.CategoryID,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	todos := make([]application.Todo, 0, len(models))
	for _, model := range models {
		todos = append(todos, toApplicationTodo(model))
	}
	return todos, nil
}

func (a *todoRepositoryAdapter) DeleteTodo(ctx context.Context, ownerID, id string) error {
	return a.repo.DeleteTodo(ctx, ownerID, id)
}

func (a *todoRepositoryAdapter) CreateSubtask(ctx context.Context, subtask application.Subtask) error {
	return a.repo.CreateSubtask(ctx, toPersistenceSubtask(subtask))
}

func (a *todoRepositoryAdapter) UpdateSubtask(ctx context.Context, subtask application.Subtask) error {
	return a.repo.UpdateSubtask(ctx, toPersistenceSubtask(subtask))
}

func (a *todoRepositoryAdapter) GetSubtask(ctx context.Context, todoID, id string) (application.Subtask, error) {
	stored, err := a.repo.GetSubtask(ctx, todoID, id)
	if err != nil {
		return application.Subtask{}, err
	}
	return toApplicationSubtask(stored), nil
}

func (a *todoRepositoryAdapter) DeleteSubtask(ctx context.Context, todoID, id string) error {
	return a.repo.DeleteSubtask(ctx, todoID, id)
}

func (a *todoRepositoryAdapter) CreateComment(ctx context.Context, comment application.Comment) error {
	return a.repo.CreateComment(ctx, persistence.Comment{
		ID:        comment.ID,
		TodoID:    comment.TodoID,
		AuthorID:  comment.AuthorID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	})
}

func (a *todoRepositoryAdapter) DeleteComment(ctx context.Context, todoID, id string) error {
	return a.repo.DeleteComment(ctx, todoID, id)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(credentials application.UserCredentials) persistence.User {
	user := credentials.User
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: credentials.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func toApplicationCategory(model persistence.Category) application.Category {
	return application.Category{
		ID:        model.ID,
		OwnerID:   model.UserID,
		Name:      model.Name,
		Color:     model.Color,
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceCategory(category application.Category) persistence.Category {
	return persistence.Category{
		ID:        category.ID,
		UserID:    category.OwnerID,
		Name:      category.Name,
		Color:     category.Color,
		CreatedAt: category.CreatedAt,
	}
}

func toApplicationSubtask(model persistence.Subtask) application.Subtask {
	return application.Subtask{
		ID:        model.ID,
		TodoID:    model.TodoID,
		Title:     model.Title,
		Completed: model.Completed,
		Position:  model.Position,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceSubtask(subtask application.Subtask) persistence.Subtask {
	return persistence.Subtask{
		ID:        subtask.ID,
		TodoID:    subtask.TodoID,
		Title:     subtask.Title,
		Completed: subtask.Completed,
		Position:  subtask.Position,
		CreatedAt: subtask.CreatedAt,
		UpdatedAt: subtask.UpdatedAt,
	}
}

func toApplicationTodo(model persistence.Todo) application.Todo {
	todo := application.Todo{
		ID:          model.ID,
		OwnerID:     model.UserID,
		TeamID:      cloneString(model.TeamID),
		Title:       model.Title,
		Description: model.Description,
		Priority:    application.Priority(model.Priority),
		Status:      application.Status(model.Status),
		DueDate:     cloneTime(model.DueDate),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	for _, category := range model.Categories {
		todo.Categories = append(todo.Categories, toApplicationCategory(category))
	}
	for _, subtask := range model.Subtasks {
		todo.Subtasks = append(todo.Subtasks, toApplicationSubtask(subtask))
	}
	for _, comment := range model.Comments {
		todo.Comments = append(todo.Comments, application.Comment{
			ID:        comment.ID,
			TodoID:    comment.TodoID,
			AuthorID:  comment.AuthorID,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt,
		})
	}
	return todo
}

// toPersistenceTodo carries only the category ids; subtasks and comments are
// written through their own repository methods.
func toPersistenceTodo(todo application.Todo) persistence.Todo {
	model := persistence.Todo{
		ID:          todo.ID,
		UserID:      todo.OwnerID,
		TeamID:      cloneString(todo.TeamID),
		Title:       todo.Title,
		Description: todo.Description,
		Priority:    string(todo.Priority),
		Status:      string(todo.Status),
		DueDate:     cloneTime(todo.DueDate),
		CreatedAt:   todo.CreatedAt,
		UpdatedAt:   todo.UpdatedAt,
	}
	for _, category := range todo.Categories {
		model.Categories = append(model.Categories, persistence.Category{ID: category.ID, UserID: todo.OwnerID})
	}
	return model
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
