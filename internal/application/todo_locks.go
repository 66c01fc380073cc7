package application

import "sync"

// TodoLocks serialises mutations of one todo. A holder reads, writes, reloads
// and publishes before the next writer of the same todo may read, so the
// broadcast order for a todo always matches its commit order. Services that
// touch the same todos (todo, subtask, comment) must share one TodoLocks.
type TodoLocks struct {
	mu    sync.Mutex
	locks map[string]*todoLock
}

type todoLock struct {
	mu      sync.Mutex
	holders int
}

// NewTodoLocks returns an empty lock table.
func NewTodoLocks() *TodoLocks {
	return &TodoLocks{locks: make(map[string]*todoLock)}
}

// Lock blocks until the caller owns todoID and returns the matching unlock.
// Entries are dropped once nobody holds or waits for them.
func (l *TodoLocks) Lock(todoID string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[todoID]
	if !ok {
		entry = &todoLock{}
		l.locks[todoID] = entry
	}
	entry.holders++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.holders--
		if entry.holders == 0 {
			delete(l.locks, todoID)
		}
		l.mu.Unlock()
	}
}

// Len reports how many todos currently have holders or waiters.
func (l *TodoLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
