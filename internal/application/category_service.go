package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CategoryRepository captures the persistence operations for categories.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category Category) error
	ListCategories(ctx context.Context, ownerID string) ([]Category, error)
	DeleteCategory(ctx context.Context, ownerID, id string) error
}

// CategoryService manages per-user categories. Category changes are not
// broadcast.
type CategoryService struct {
	categories  CategoryRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCategoryService constructs a category service.
func NewCategoryService(categories CategoryRepository, idGenerator func() string, now func() time.Time) *CategoryService {
	return NewCategoryServiceWithLogger(categories, idGenerator, now, nil)
}

// NewCategoryServiceWithLogger constructs a category service with a specified logger.
func NewCategoryServiceWithLogger(categories CategoryRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CategoryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CategoryService{categories: categories, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *CategoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CategoryService", operation, attrs...)
}

// CreateCategory stores a category whose name is unique for the principal.
func (s *CategoryService) CreateCategory(ctx context.Context, principal Principal, input CategoryInput) (category Category, err error) {
	if s == nil {
		err = fmt.Errorf("CategoryService is nil")
		return
	}
	if s.categories == nil {
		err = fmt.Errorf("category repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateCategory", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create category", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("category_id", category.ID).InfoContext(ctx, "category created")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		err = vErr
		return
	}

	candidate := Category{
		ID:        s.idGenerator(),
		OwnerID:   principal.UserID,
		Name:      name,
		Color:     strings.TrimSpace(input.Color),
		CreatedAt: s.now().UTC(),
	}
	if err = mapRepoError(s.categories.CreateCategory(ctx, candidate)); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			vErr := &ValidationError{}
			vErr.add("name", "a category with this name already exists")
			err = vErr
		}
		return
	}
	category = candidate
	return
}

// ListCategories returns the principal's categories ordered by name.
func (s *CategoryService) ListCategories(ctx context.Context, principal Principal) ([]Category, error) {
	if s == nil {
		return nil, fmt.Errorf("CategoryService is nil")
	}
	if s.categories == nil {
		return nil, fmt.Errorf("category repository not configured")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	categories, err := s.categories.ListCategories(ctx, principal.UserID)
	if err != nil {
		err = mapRepoError(err)
		s.loggerWith(ctx, "ListCategories").ErrorContext(ctx, "failed to list categories", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return categories, nil
}

// DeleteCategory removes an owned category and detaches it from todos.
func (s *CategoryService) DeleteCategory(ctx context.Context, principal Principal, categoryID string) (err error) {
	if s == nil {
		return fmt.Errorf("CategoryService is nil")
	}
	if s.categories == nil {
		return fmt.Errorf("category repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteCategory", "principal_id", principal.UserID, "category_id", categoryID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete category", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "category deleted")
	}()

	if principal.UserID == "" {
		return ErrUnauthorized
	}
	return mapRepoError(s.categories.DeleteCategory(ctx, principal.UserID, categoryID))
}
