package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/todosync/internal/persistence"
)

// TodoRepository implements persistence.TodoRepository using SQLite. Reads
// return the full graph: categories, subtasks ordered by position and comments
// ordered by creation time.
type TodoRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTodoRepository creates a new SQLite todo repository
func NewTodoRepository(pool *ConnectionPool) *TodoRepository {
	return &TodoRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const todoColumns = `t.id, t.user_id, t.team_id, t.title, t.description, t.priority, t.status, t.due_date, t.created_at, t.updated_at`

// CreateTodo inserts the todo row and its category links in one transaction.
func (r *TodoRepository) CreateTodo(ctx context.Context, todo persistence.Todo) error {
	if todo.ID == "" || todo.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(ctx, tx, `
			INSERT INTO todos (id, user_id, team_id, title, description, priority, status, due_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			todo.ID,
			todo.UserID,
			nullString(todo.TeamID),
			todo.Title,
			todo.Description,
			todo.Priority,
			todo.Status,
			formatTimePtr(todo.DueDate),
			formatTime(todo.CreatedAt),
			formatTime(todo.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertCategoryLinks(ctx, tx, todo.ID, todo.Categories)
	})
}

// UpdateTodo rewrites the mutable columns of an owned todo and replaces its
// category links. Either both happen or neither does. The row is only
// written while its updated_at still matches expectedUpdatedAt.
func (r *TodoRepository) UpdateTodo(ctx context.Context, todo persistence.Todo, expectedUpdatedAt time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE todos
			SET team_id = ?, title = ?, description = ?, priority = ?, status = ?, due_date = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`
		args := []any{
			nullString(todo.TeamID),
			todo.Title,
			todo.Description,
			todo.Priority,
			todo.Status,
			formatTimePtr(todo.DueDate),
			formatTime(todo.UpdatedAt),
			todo.ID,
			todo.UserID,
		}
		if !expectedUpdatedAt.IsZero() {
			query += ` AND updated_at = ?`
			args = append(args, formatTime(expectedUpdatedAt))
		}

		result, err := r.helper.ExecTx(ctx, tx, query, args...)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			if errors.Is(err, persistence.ErrNotFound) && !expectedUpdatedAt.IsZero() {
				return r.staleOrMissing(ctx, tx, todo.UserID, todo.ID)
			}
			return err
		}

		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM todo_categories WHERE todo_id = ?`, todo.ID); err != nil {
			return r.mapper.MapError(err)
		}
		return r.insertCategoryLinks(ctx, tx, todo.ID, todo.Categories)
	})
}

// staleOrMissing tells a lost version guard apart from a missing row.
func (r *TodoRepository) staleOrMissing(ctx context.Context, tx *sql.Tx, ownerID, id string) error {
	var one int
	err := r.helper.QueryRowTx(ctx, tx, `SELECT 1 FROM todos WHERE id = ? AND user_id = ?`, id, ownerID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return persistence.ErrNotFound
	case err != nil:
		return r.mapper.MapError(err)
	}
	return persistence.ErrConflict
}

func (r *TodoRepository) insertCategoryLinks(ctx context.Context, tx *sql.Tx, todoID string, categories []persistence.Category) error {
	seen := make(map[string]struct{}, len(categories))
	for _, category := range categories {
		if _, dup := seen[category.ID]; dup {
			continue
		}
		seen[category.ID] = struct{}{}
		if _, err := r.helper.ExecTx(ctx, tx,
			`INSERT INTO todo_categories (todo_id, category_id) VALUES (?, ?)`,
			todoID, category.ID,
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

// GetTodo loads one owned todo with its associations.
func (r *TodoRepository) GetTodo(ctx context.Context, ownerID, id string) (persistence.Todo, error) {
	if ownerID == "" || id == "" {
		return persistence.Todo{}, persistence.ErrNotFound
	}
	todos, err := r.queryTodos(ctx, `SELECT `+todoColumns+` FROM todos t WHERE t.id = ? AND t.user_id = ?`, id, ownerID)
	if err != nil {
		return persistence.Todo{}, err
	}
	if len(todos) == 0 {
		return persistence.Todo{}, persistence.ErrNotFound
	}
	return todos[0], nil
}

// ListTodos returns the owner's todos matching filter, newest first.
func (r *TodoRepository) ListTodos(ctx context.Context, filter persistence.TodoFilter) ([]persistence.Todo, error) {
	var clauses []string
	args := []any{filter.OwnerID}
	clauses = append(clauses, "t.user_id = ?")

	if filter.Status != "" {
		clauses = append(clauses, "t.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		clauses = append(clauses, "t.priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.CategoryID != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM todo_categories tc WHERE tc.todo_id = t.id AND tc.category_id = ?)")
		args = append(args, filter.CategoryID)
	}

	query := `SELECT ` + todoColumns + ` FROM todos t WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY t.created_at DESC, t.id DESC`
	return r.queryTodos(ctx, query, args...)
}

// DeleteTodo removes an owned todo. Subtasks, comments and category links
// follow through ON DELETE CASCADE.
func (r *TodoRepository) DeleteTodo(ctx context.Context, ownerID, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM todos WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// CreateSubtask inserts a subtask under an existing todo.
func (r *TodoRepository) CreateSubtask(ctx context.Context, subtask persistence.Subtask) error {
	if subtask.ID == "" || subtask.TodoID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx, `
		INSERT INTO subtasks (id, todo_id, title, completed, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		subtask.ID,
		subtask.TodoID,
		subtask.Title,
		subtask.Completed,
		subtask.Position,
		formatTime(subtask.CreatedAt),
		formatTime(subtask.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateSubtask rewrites title, completion and position.
func (r *TodoRepository) UpdateSubtask(ctx context.Context, subtask persistence.Subtask) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE subtasks SET title = ?, completed = ?, position = ?, updated_at = ?
		WHERE id = ? AND todo_id = ?
	`,
		subtask.Title,
		subtask.Completed,
		subtask.Position,
		formatTime(subtask.UpdatedAt),
		subtask.ID,
		subtask.TodoID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetSubtask loads a subtask that belongs to todoID.
func (r *TodoRepository) GetSubtask(ctx context.Context, todoID, id string) (persistence.Subtask, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT id, todo_id, title, completed, position, created_at, updated_at
		FROM subtasks WHERE id = ? AND todo_id = ?
	`, id, todoID)
	subtask, err := scanSubtask(row)
	if err != nil {
		return persistence.Subtask{}, r.mapper.MapError(err)
	}
	return subtask, nil
}

// DeleteSubtask removes a subtask that belongs to todoID.
func (r *TodoRepository) DeleteSubtask(ctx context.Context, todoID, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM subtasks WHERE id = ? AND todo_id = ?`, id, todoID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// CreateComment inserts a comment under an existing todo.
func (r *TodoRepository) CreateComment(ctx context.Context, comment persistence.Comment) error {
	if comment.ID == "" || comment.TodoID == "" || comment.AuthorID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx,
		`INSERT INTO comments (id, todo_id, author_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		comment.ID, comment.TodoID, comment.AuthorID, comment.Body, formatTime(comment.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// DeleteComment removes a comment that belongs to todoID.
func (r *TodoRepository) DeleteComment(ctx context.Context, todoID, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM comments WHERE id = ? AND todo_id = ?`, id, todoID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// queryTodos runs a todo row query and then loads the associations of every
// returned todo with one query per association table. Rows are drained and
// closed before the next query so a single-connection pool never blocks.
func (r *TodoRepository) queryTodos(ctx context.Context, query string, args ...any) ([]persistence.Todo, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	var todos []persistence.Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			rows.Close()
			return nil, r.mapper.MapError(err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	if len(todos) == 0 {
		return todos, nil
	}
	if err := r.loadAssociations(ctx, todos); err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *TodoRepository) loadAssociations(ctx context.Context, todos []persistence.Todo) error {
	index := make(map[string]int, len(todos))
	ids := make([]any, 0, len(todos))
	for i, todo := range todos {
		index[todo.ID] = i
		ids = append(ids, todo.ID)
	}
	in := placeholders(len(ids))

	categoryRows, err := r.helper.Query(ctx, `
		SELECT tc.todo_id, c.id, c.user_id, c.name, c.color, c.created_at
		FROM todo_categories tc JOIN categories c ON c.id = tc.category_id
		WHERE tc.todo_id IN (`+in+`)
		ORDER BY c.name ASC, c.id ASC
	`, ids...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	err = eachRow(categoryRows, func(rows *sql.Rows) error {
		var todoID, createdAt string
		var category persistence.Category
		if err := rows.Scan(&todoID, &category.ID, &category.UserID, &category.Name, &category.Color, &createdAt); err != nil {
			return err
		}
		var err error
		if category.CreatedAt, err = parseTime(createdAt); err != nil {
			return fmt.Errorf("failed to parse category created_at: %w", err)
		}
		todos[index[todoID]].Categories = append(todos[index[todoID]].Categories, category)
		return nil
	})
	if err != nil {
		return r.mapper.MapError(err)
	}

	subtaskRows, err := r.helper.Query(ctx, `
		SELECT id, todo_id, title, completed, position, created_at, updated_at
		FROM subtasks WHERE todo_id IN (`+in+`)
		ORDER BY position ASC, created_at ASC, id ASC
	`, ids...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	err = eachRow(subtaskRows, func(rows *sql.Rows) error {
		subtask, err := scanSubtask(rows)
		if err != nil {
			return err
		}
		todos[index[subtask.TodoID]].Subtasks = append(todos[index[subtask.TodoID]].Subtasks, subtask)
		return nil
	})
	if err != nil {
		return r.mapper.MapError(err)
	}

	commentRows, err := r.helper.Query(ctx, `
		SELECT id, todo_id, author_id, body, created_at
		FROM comments WHERE todo_id IN (`+in+`)
		ORDER BY created_at ASC, id ASC
	`, ids...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	err = eachRow(commentRows, func(rows *sql.Rows) error {
		var comment persistence.Comment
		var createdAt string
		if err := rows.Scan(&comment.ID, &comment.TodoID, &comment.AuthorID, &comment.Body, &createdAt); err != nil {
			return err
		}
		var err error
		if comment.CreatedAt, err = parseTime(createdAt); err != nil {
			return fmt.Errorf("failed to parse comment created_at: %w", err)
		}
		todos[index[comment.TodoID]].Comments = append(todos[index[comment.TodoID]].Comments, comment)
		return nil
	})
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func scanTodo(row rowScanner) (persistence.Todo, error) {
	var todo persistence.Todo
	var teamID, dueDate sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&todo.ID,
		&todo.UserID,
		&teamID,
		&todo.Title,
		&todo.Description,
		&todo.Priority,
		&todo.Status,
		&dueDate,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Todo{}, err
	}

	todo.TeamID = stringPtr(teamID)
	var err error
	if todo.DueDate, err = parseTimePtr(dueDate); err != nil {
		return persistence.Todo{}, fmt.Errorf("failed to parse due_date: %w", err)
	}
	if todo.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Todo{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if todo.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Todo{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return todo, nil
}

func scanSubtask(row rowScanner) (persistence.Subtask, error) {
	var subtask persistence.Subtask
	var createdAt, updatedAt string
	if err := row.Scan(
		&subtask.ID,
		&subtask.TodoID,
		&subtask.Title,
		&subtask.Completed,
		&subtask.Position,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Subtask{}, err
	}
	var err error
	if subtask.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Subtask{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if subtask.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Subtask{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return subtask, nil
}

// eachRow calls fn for every row and always closes rows.
func eachRow(rows *sql.Rows, fn func(*sql.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
