package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/example/todosync/internal/persistence"
)

// memoryStore implements the todo, subtask, comment, category and team
// repositories in memory for service tests.
type memoryStore struct {
	mu         sync.Mutex
	todos      map[string]Todo
	categories map[string]Category
	members    map[string]bool

	createErr error
	updateErr error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		todos:      make(map[string]Todo),
		categories: make(map[string]Category),
		members:    make(map[string]bool),
	}
}

func (m *memoryStore) addMember(teamID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[teamID+"/"+userID] = true
}

func (m *memoryStore) seedTodo(todo Todo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.todos[todo.ID] = todo
}

func (m *memoryStore) seedCategory(category Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[category.ID] = category
}

func (m *memoryStore) CreateTodo(ctx context.Context, todo Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.todos[todo.ID]; exists {
		return ErrAlreadyExists
	}
	m.todos[todo.ID] = todo
	return nil
}

func (m *memoryStore) UpdateTodo(ctx context.Context, todo Todo, expectedUpdatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	current, ok := m.todos[todo.ID]
	if !ok || current.OwnerID != todo.OwnerID {
		return ErrNotFound
	}
	if !expectedUpdatedAt.IsZero() && !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return persistence.ErrConflict
	}
	todo.Subtasks = current.Subtasks
	todo.Comments = current.Comments
	m.todos[todo.ID] = todo
	return nil
}

func (m *memoryStore) GetTodo(ctx context.Context, ownerID, id string) (Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo, ok := m.todos[id]
	if !ok || todo.OwnerID != ownerID {
		return Todo{}, ErrNotFound
	}
	return m.hydrate(todo), nil
}

func (m *memoryStore) hydrate(todo Todo) Todo {
	categories := make([]Category, 0, len(todo.Categories))
	for _, ref := range todo.Categories {
		if c, ok := m.categories[ref.ID]; ok {
			categories = append(categories, c)
		}
	}
	todo.Categories = categories
	todo.Subtasks = append([]Subtask(nil), todo.Subtasks...)
	todo.Comments = append([]Comment(nil), todo.Comments...)
	return todo
}

func (m *memoryStore) ListTodos(ctx context.Context, filter TodoFilter) ([]Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Todo
	for _, todo := range m.todos {
		if todo.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && todo.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && todo.Priority != filter.Priority {
			continue
		}
		out = append(out, m.hydrate(todo))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) DeleteTodo(ctx context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	todo, ok := m.todos[id]
	if !ok || todo.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.todos, id)
	return nil
}

func (m *memoryStore) CreateSubtask(ctx context.Context, subtask Subtask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo, ok := m.todos[subtask.TodoID]
	if !ok {
		return ErrNotFound
	}
	todo.Subtasks = append(todo.Subtasks, subtask)
	m.todos[todo.ID] = todo
	return nil
}

func (m *memoryStore) UpdateSubtask(ctx context.Context, subtask Subtask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo, ok := m.todos[subtask.TodoID]
	if !ok {
		return ErrNotFound
	}
	for i := range todo.Subtasks {
		if todo.Subtasks[i].ID == subtask.ID {
			todo.Subtasks[i] = subtask
			m.todos[todo.ID] = todo
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) GetSubtask(ctx context.Context, todoID, id string) (Subtask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.todos[todoID].Subtasks {
		if s.ID == id {
			return s, nil
		}
	}
	return Subtask{}, ErrNotFound
}

func (m *memoryStore) DeleteSubtask(ctx context.Context, todoID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo, ok := m.todos[todoID]
	if !ok {
		return ErrNotFound
	}
	for i, s := range todo.Subtasks {
		if s.ID == id {
			todo.Subtasks = append(todo.Subtasks[:i:i], todo.Subtasks[i+1:]...)
			m.todos[todoID] = todo
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) CreateComment(ctx context.Context, comment Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo, ok := m.todos[comment.TodoID]
	if !ok {
		return ErrNotFound
	}
	todo.Comments = append(todo.Comments, comment)
	m.todos[todo.ID] = todo
	return nil
}

func (m *memoryStore) DeleteComment(ctx context.Context, todoID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo, ok := m.todos[todoID]
	if !ok {
		return ErrNotFound
	}
	for i, c := range todo.Comments {
		if c.ID == id {
			todo.Comments = append(todo.Comments[:i:i], todo.Comments[i+1:]...)
			m.todos[todoID] = todo
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) CreateCategory(ctx context.Context, category Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.OwnerID == category.OwnerID && existing.Name == category.Name {
			return fmt.Errorf("%w: name taken", ErrAlreadyExists)
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *memoryStore) ListCategories(ctx context.Context, ownerID string) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Category
	for _, c := range m.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) MissingCategoryIDs(ctx context.Context, ownerID string, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var missing []string
	for _, id := range ids {
		if c, ok := m.categories[id]; !ok || c.OwnerID != ownerID {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *memoryStore) DeleteCategory(ctx context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok || c.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *memoryStore) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[teamID+"/"+userID], nil
}

func (m *memoryStore) AddTeamMember(ctx context.Context, teamID, userID string) error {
	m.addMember(teamID, userID)
	return nil
}

// recordingPublisher captures published changes.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []Change
}

func (p *recordingPublisher) Publish(ctx context.Context, change Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
}

func (p *recordingPublisher) published() []Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Change(nil), p.changes...)
}

func idSequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func stringRef(s string) *string { return &s }
func statusRef(s Status) *Status { return &s }
