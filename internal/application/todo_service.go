package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// TodoRepository captures the persistence operations needed by the todo services.
// Lookups are scoped by owner so foreign todos surface as ErrNotFound.
type TodoRepository interface {
	CreateTodo(ctx context.Context, todo Todo) error
	// UpdateTodo must fail with a conflict when the stored todo no longer
	// carries expectedUpdatedAt.
	UpdateTodo(ctx context.Context, todo Todo, expectedUpdatedAt time.Time) error
	GetTodo(ctx context.Context, ownerID, id string) (Todo, error)
	ListTodos(ctx context.Context, filter TodoFilter) ([]Todo, error)
	DeleteTodo(ctx context.Context, ownerID, id string) error
}

// CategoryDirectory verifies category references.
type CategoryDirectory interface {
	MissingCategoryIDs(ctx context.Context, ownerID string, ids []string) ([]string, error)
}

// TeamDirectory answers team membership questions.
type TeamDirectory interface {
	IsTeamMember(ctx context.Context, teamID, userID string) (bool, error)
}

// TodoService validates and persists todos and publishes a change after
// every successful write.
type TodoService struct {
	todos       TodoRepository
	categories  CategoryDirectory
	teams       TeamDirectory
	publisher   ChangePublisher
	idGenerator func() string
	now         func() time.Time
	locks       *TodoLocks
	logger      *slog.Logger
}

// NewTodoService constructs a todo service with the provided dependencies.
func NewTodoService(todos TodoRepository, categories CategoryDirectory, teams TeamDirectory, publisher ChangePublisher, idGenerator func() string, now func() time.Time) *TodoService {
	return NewTodoServiceWithLogger(todos, categories, teams, publisher, idGenerator, now, nil)
}

// NewTodoServiceWithLogger constructs a todo service with a specified logger.
func NewTodoServiceWithLogger(todos TodoRepository, categories CategoryDirectory, teams TeamDirectory, publisher ChangePublisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TodoService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TodoService{
		todos:       todos,
		categories:  categories,
		teams:       teams,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		locks:       NewTodoLocks(),
		logger:      defaultLogger(logger),
	}
}

// UseLocks replaces the per-todo lock table, so that services mutating the
// same todos serialise against each other.
func (s *TodoService) UseLocks(locks *TodoLocks) {
	if s != nil && locks != nil {
		s.locks = locks
	}
}

func (s *TodoService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TodoService", operation, attrs...)
}

// CreateTodo validates input, persists a new todo and announces it.
func (s *TodoService) CreateTodo(ctx context.Context, params CreateTodoParams) (todo Todo, err error) {
	if s == nil {
		err = fmt.Errorf("TodoService is nil")
		return
	}
	if s.todos == nil {
		err = fmt.Errorf("todo repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateTodo", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create todo", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("todo_id", todo.ID).InfoContext(ctx, "todo created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	input := normalizeTodoInput(params.Input)
	if vErr := validateTodoInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = s.checkCategories(ctx, params.Principal.UserID, input.CategoryIDs); err != nil {
		return
	}
	if err = s.checkTeam(ctx, params.Principal.UserID, input.TeamID); err != nil {
		return
	}

	now := s.now().UTC()
	candidate := Todo{
		ID:          s.idGenerator(),
		OwnerID:     params.Principal.UserID,
		TeamID:      input.TeamID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      input.Status,
		DueDate:     cloneTime(input.DueDate),
		Categories:  categoryRefs(input.CategoryIDs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	unlock := s.locks.Lock(candidate.ID)
	defer unlock()

	if err = mapRepoError(s.todos.CreateTodo(ctx, candidate)); err != nil {
		return
	}
	if todo, err = s.reload(ctx, candidate); err != nil {
		return
	}

	publish(ctx, s.publisher, todoChange(ChangeCreated, todo))
	return
}

// UpdateTodo applies a partial update to an owned todo and announces it.
func (s *TodoService) UpdateTodo(ctx context.Context, params UpdateTodoParams) (todo Todo, err error) {
	if s == nil {
		err = fmt.Errorf("TodoService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateTodo",
		"principal_id", params.Principal.UserID,
		"todo_id", params.TodoID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update todo", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "todo updated")
	}()

	todo, err = s.updateTodo(ctx, params.Principal, params.TodoID, params.Patch)
	return
}

// BatchUpdateTodos applies each patch independently. A failing item is
// reported in its result and never prevents the remaining items.
func (s *TodoService) BatchUpdateTodos(ctx context.Context, principal Principal, items []BatchUpdateItem) ([]BatchUpdateResult, error) {
	if s == nil {
		return nil, fmt.Errorf("TodoService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	if len(items) == 0 {
		vErr := &ValidationError{}
		vErr.add("items", "at least one item is required")
		return nil, vErr
	}

	logger := s.loggerWith(ctx, "BatchUpdateTodos",
		"principal_id", principal.UserID,
		"item_count", len(items),
	)

	results := make([]BatchUpdateResult, 0, len(items))
	failed := 0
	for _, item := range items {
		result := BatchUpdateResult{TodoID: item.TodoID}
		todo, err := s.updateTodo(ctx, principal, item.TodoID, item.Patch)
		if err != nil {
			failed++
			result.Err = err
			logger.WarnContext(ctx, "batch item failed", "todo_id", item.TodoID, "error", err, "error_kind", ErrorKind(err))
		} else {
			result.Todo = &todo
		}
		results = append(results, result)
	}

	logger.InfoContext(ctx, "batch update finished", "failed_count", failed)
	return results, nil
}

func (s *TodoService) updateTodo(ctx context.Context, principal Principal, todoID string, patch TodoPatch) (Todo, error) {
	if s.todos == nil {
		return Todo{}, fmt.Errorf("todo repository not configured")
	}
	if principal.UserID == "" {
		return Todo{}, ErrUnauthorized
	}
	todoID = strings.TrimSpace(todoID)
	if todoID == "" {
		return Todo{}, ErrNotFound
	}

	unlock := s.locks.Lock(todoID)
	defer unlock()

	current, err := s.todos.GetTodo(ctx, principal.UserID, todoID)
	if err != nil {
		return Todo{}, mapRepoError(err)
	}

	patch = normalizeTodoPatch(patch)
	if vErr := validateTodoPatch(patch); vErr.HasErrors() {
		return Todo{}, vErr
	}

	updated := current
	if patch.Title != nil {
		updated.Title = *patch.Title
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Priority != nil {
		updated.Priority = *patch.Priority
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
	}
	if patch.ClearDueDate {
		updated.DueDate = nil
	} else if patch.DueDate != nil {
		updated.DueDate = cloneTime(patch.DueDate)
	}
	if patch.CategoryIDs != nil {
		ids := *patch.CategoryIDs
		if err := s.checkCategories(ctx, principal.UserID, ids); err != nil {
			return Todo{}, err
		}
		updated.Categories = categoryRefs(ids)
	}
	updated.UpdatedAt = s.now().UTC()

	if err := mapRepoError(s.todos.UpdateTodo(ctx, updated, current.UpdatedAt)); err != nil {
		return Todo{}, err
	}
	todo, err := s.reload(ctx, updated)
	if err != nil {
		return Todo{}, err
	}

	publish(ctx, s.publisher, todoChange(ChangeUpdated, todo))
	return todo, nil
}

// DeleteTodo removes an owned todo with its subtasks, comments and category
// links, then announces the deletion.
func (s *TodoService) DeleteTodo(ctx context.Context, principal Principal, todoID string) (err error) {
	if s == nil {
		return fmt.Errorf("TodoService is nil")
	}
	if s.todos == nil {
		return fmt.Errorf("todo repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteTodo",
		"principal_id", principal.UserID,
		"todo_id", todoID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete todo", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "todo deleted")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	todoID = strings.TrimSpace(todoID)
	unlock := s.locks.Lock(todoID)
	defer unlock()

	var current Todo
	current, err = s.todos.GetTodo(ctx, principal.UserID, todoID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if err = mapRepoError(s.todos.DeleteTodo(ctx, principal.UserID, todoID)); err != nil {
		return
	}

	publish(ctx, s.publisher, Change{
		Kind:    ChangeDeleted,
		Entity:  EntityTodo,
		TodoID:  current.ID,
		OwnerID: current.OwnerID,
		TeamID:  cloneString(current.TeamID),
	})
	return nil
}

// GetTodo returns one owned todo with its full graph.
func (s *TodoService) GetTodo(ctx context.Context, principal Principal, todoID string) (Todo, error) {
	if s == nil {
		return Todo{}, fmt.Errorf("TodoService is nil")
	}
	if s.todos == nil {
		return Todo{}, fmt.Errorf("todo repository not configured")
	}
	if principal.UserID == "" {
		return Todo{}, ErrUnauthorized
	}
	todo, err := s.todos.GetTodo(ctx, principal.UserID, todoID)
	if err != nil {
		err = mapRepoError(err)
		s.loggerWith(ctx, "GetTodo", "todo_id", todoID).
			ErrorContext(ctx, "failed to load todo", "error", err, "error_kind", ErrorKind(err))
		return Todo{}, err
	}
	return todo, nil
}

// ListTodos returns the principal's todos, newest first, narrowed by filter.
func (s *TodoService) ListTodos(ctx context.Context, principal Principal, filter TodoFilter) (todos []Todo, err error) {
	if s == nil {
		return nil, fmt.Errorf("TodoService is nil")
	}
	if s.todos == nil {
		return nil, fmt.Errorf("todo repository not configured")
	}

	logger := s.loggerWith(ctx, "ListTodos", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list todos", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(todos)).InfoContext(ctx, "todos listed")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	if filter.Status != "" && !filter.Status.Valid() {
		vErr.add("status", statusMessage)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		vErr.add("priority", priorityMessage)
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	filter.OwnerID = principal.UserID
	todos, err = s.todos.ListTodos(ctx, filter)
	err = mapRepoError(err)
	return
}

func (s *TodoService) reload(ctx context.Context, todo Todo) (Todo, error) {
	stored, err := s.todos.GetTodo(ctx, todo.OwnerID, todo.ID)
	if err != nil {
		return Todo{}, mapRepoError(err)
	}
	return stored, nil
}

func (s *TodoService) checkCategories(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if s.categories == nil {
		return fmt.Errorf("%w: categories unavailable", ErrNotFound)
	}
	missing, err := s.categories.MissingCategoryIDs(ctx, ownerID, ids)
	if err != nil {
		return mapRepoError(err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: category %s", ErrNotFound, strings.Join(missing, ", "))
	}
	return nil
}

func (s *TodoService) checkTeam(ctx context.Context, userID string, teamID *string) error {
	if teamID == nil {
		return nil
	}
	if s.teams == nil {
		return fmt.Errorf("%w: team %s", ErrNotFound, *teamID)
	}
	member, err := s.teams.IsTeamMember(ctx, *teamID, userID)
	if err != nil {
		return mapRepoError(err)
	}
	if !member {
		return fmt.Errorf("%w: team %s", ErrNotFound, *teamID)
	}
	return nil
}

func todoChange(kind ChangeKind, todo Todo) Change {
	snapshot := todo
	return Change{
		Kind:    kind,
		Entity:  EntityTodo,
		TodoID:  todo.ID,
		OwnerID: todo.OwnerID,
		TeamID:  cloneString(todo.TeamID),
		Todo:    &snapshot,
	}
}

func categoryRefs(ids []string) []Category {
	if len(ids) == 0 {
		return nil
	}
	refs := make([]Category, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, Category{ID: id})
	}
	return refs
}

const (
	priorityMessage = "priority must be one of LOW, MEDIUM, HIGH, URGENT"
	statusMessage   = "status must be one of TODO, IN_PROGRESS, COMPLETED, CANCELLED"
)

func normalizeTodoInput(input TodoInput) TodoInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Priority = Priority(strings.ToUpper(strings.TrimSpace(string(input.Priority))))
	input.Status = Status(strings.ToUpper(strings.TrimSpace(string(input.Status))))
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	if input.Status == "" {
		input.Status = StatusTodo
	}
	input.CategoryIDs = normalizeIDs(input.CategoryIDs)
	if input.TeamID != nil {
		team := strings.TrimSpace(*input.TeamID)
		if team == "" {
			input.TeamID = nil
		} else {
			input.TeamID = &team
		}
	}
	return input
}

func validateTodoInput(input TodoInput) *ValidationError {
	vErr := &ValidationError{}
	validateTitle(vErr, input.Title)
	validateDescription(vErr, input.Description)
	if !input.Priority.Valid() {
		vErr.add("priority", priorityMessage)
	}
	if !input.Status.Valid() {
		vErr.add("status", statusMessage)
	}
	return vErr
}

func normalizeTodoPatch(patch TodoPatch) TodoPatch {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		patch.Description = &desc
	}
	if patch.Priority != nil {
		p := Priority(strings.ToUpper(strings.TrimSpace(string(*patch.Priority))))
		patch.Priority = &p
	}
	if patch.Status != nil {
		st := Status(strings.ToUpper(strings.TrimSpace(string(*patch.Status))))
		patch.Status = &st
	}
	if patch.CategoryIDs != nil {
		ids := normalizeIDs(*patch.CategoryIDs)
		patch.CategoryIDs = &ids
	}
	return patch
}

func validateTodoPatch(patch TodoPatch) *ValidationError {
	vErr := &ValidationError{}
	if patch.Title != nil {
		validateTitle(vErr, *patch.Title)
	}
	if patch.Description != nil {
		validateDescription(vErr, *patch.Description)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		vErr.add("priority", priorityMessage)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		vErr.add("status", statusMessage)
	}
	return vErr
}

func validateTitle(vErr *ValidationError, title string) {
	switch {
	case title == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
}

func validateDescription(vErr *ValidationError, description string) {
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		vErr.add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
}

// normalizeIDs trims ids, drops blanks and removes repeats while keeping order.
func normalizeIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
