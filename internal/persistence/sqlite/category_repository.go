package sqlite

import (
	"context"
	"fmt"

	"github.com/example/todosync/internal/persistence"
)

// CategoryRepository implements persistence.CategoryRepository using SQLite
type CategoryRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewCategoryRepository creates a new SQLite category repository
func NewCategoryRepository(pool *ConnectionPool) *CategoryRepository {
	return &CategoryRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateCategory inserts a category. A name already used by the same owner
// yields persistence.ErrDuplicate.
func (r *CategoryRepository) CreateCategory(ctx context.Context, category persistence.Category) error {
	if category.ID == "" || category.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx,
		`INSERT INTO categories (id, user_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		category.ID, category.UserID, category.Name, category.Color, formatTime(category.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// ListCategories returns the owner's categories ordered by name.
func (r *CategoryRepository) ListCategories(ctx context.Context, ownerID string) ([]persistence.Category, error) {
	rows, err := r.helper.Query(ctx,
		`SELECT id, user_id, name, color, created_at FROM categories WHERE user_id = ? ORDER BY name ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var categories []persistence.Category
	for rows.Next() {
		var category persistence.Category
		var createdAt string
		if err := rows.Scan(&category.ID, &category.UserID, &category.Name, &category.Color, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if category.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return categories, nil
}

// MissingCategoryIDs returns, in input order and without repeats, the ids that
// do not name a category owned by ownerID.
func (r *CategoryRepository) MissingCategoryIDs(ctx context.Context, ownerID string, ids []string) ([]string, error) {
	unique := uniqueStrings(ids)
	if len(unique) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(unique)+1)
	args = append(args, ownerID)
	for _, id := range unique {
		args = append(args, id)
	}
	rows, err := r.helper.Query(ctx,
		`SELECT id FROM categories WHERE user_id = ? AND id IN (`+placeholders(len(unique))+`)`,
		args...,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(unique))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.mapper.MapError(err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	var missing []string
	for _, id := range unique {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// DeleteCategory removes a category and, through the foreign key cascade, its todo links.
func (r *CategoryRepository) DeleteCategory(ctx context.Context, ownerID, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}
