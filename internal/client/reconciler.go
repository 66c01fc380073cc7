package client

import (
	"fmt"
	"slices"
	"sync"

	"github.com/example/todosync/internal/api"
)

// Token identifies one pending optimistic mutation.
type Token uint64

type overlayKind int

const (
	overlayCreate overlayKind = iota
	overlayUpdate
	overlayDelete
)

type overlay struct {
	token    Token
	kind     overlayKind
	value    api.Todo
	revision uint64 // server revision when the overlay was pushed
}

// entry holds the confirmed server state of one todo and the optimistic
// overlays stacked on it, oldest first.
type entry struct {
	base     *api.Todo
	revision uint64 // server revision that last set base
	overlays []overlay
}

func (e *entry) visible() (api.Todo, bool) {
	if n := len(e.overlays); n > 0 {
		top := e.overlays[n-1]
		if top.kind == overlayDelete {
			return api.Todo{}, false
		}
		return top.value, true
	}
	if e.base == nil {
		return api.Todo{}, false
	}
	return *e.base, true
}

func (e *entry) drop(token Token) (overlay, bool) {
	for i, o := range e.overlays {
		if o.token == token {
			e.overlays = append(e.overlays[:i], e.overlays[i+1:]...)
			return o, true
		}
	}
	return overlay{}, false
}

// Filter narrows Todos. Empty fields match everything.
type Filter struct {
	Status     string
	Priority   string
	CategoryID string
}

func (f Filter) match(todo api.Todo) bool {
	if f.Status != "" && todo.Status != f.Status {
		return false
	}
	if f.Priority != "" && todo.Priority != f.Priority {
		return false
	}
	if f.CategoryID != "" && !slices.ContainsFunc(todo.Categories, func(c api.CategoryRef) bool { return c.ID == f.CategoryID }) {
		return false
	}
	return true
}

// Counts summarises the visible todos.
type Counts struct {
	Total             int
	ByStatus          map[string]int
	CompletedSubtasks int
	TotalSubtasks     int
}

// Reconciler is the local todo cache. Server events update the confirmed
// base of an entry; optimistic overlays stay on top until they are confirmed
// or rolled back. All methods are safe for concurrent use.
type Reconciler struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // newest first
	pending map[Token]string
	next    Token
	// revision counts base changes that came from the server outside of
	// Confirm: events and snapshots.
	revision uint64
}

// NewReconciler returns an empty cache.
func NewReconciler() *Reconciler {
	return &Reconciler{
		entries: make(map[string]*entry),
		pending: make(map[Token]string),
	}
}

// Apply folds one server event into the cache. Message types that carry no
// todo state are ignored.
func (r *Reconciler) Apply(msg api.Message) error {
	switch msg.Type {
	case api.TypeTodoCreated, api.TypeTodoUpdated:
		var todo api.Todo
		if err := msg.Decode(&todo); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		if todo.ID == "" {
			return fmt.Errorf("decode %s: missing id", msg.Type)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if msg.Type == api.TypeTodoCreated {
			if e, ok := r.entries[todo.ID]; ok && e.base != nil {
				return nil
			}
		}
		r.setBaseLocked(todo)
		r.markLocked(todo.ID)
		return nil

	case api.TypeTodoDeleted:
		var payload api.DeletedPayload
		if err := msg.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.entries[payload.ID]; ok {
			e.base = nil
			r.markLocked(payload.ID)
			r.removeIfEmptyLocked(payload.ID)
		}
		return nil

	case api.TypeCommentAdded:
		var comment api.Comment
		if err := msg.Decode(&comment); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.addCommentLocked(comment)
		return nil
	}
	return nil
}

// BeginCreate shows todo immediately. todo.ID is the provisional id the entry
// is kept under until Confirm replaces it with the server's.
func (r *Reconciler) BeginCreate(todo api.Todo) (Token, error) {
	if todo.ID == "" {
		return 0, fmt.Errorf("client: provisional todo id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.ensureLocked(todo.ID)
	return r.pushLocked(todo.ID, e, overlayCreate, todo.Clone()), nil
}

// BeginUpdate stacks a modified copy of the visible todo.
func (r *Reconciler) BeginUpdate(id string, mutate func(*api.Todo)) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, ErrUnknownTodo
	}
	current, ok := e.visible()
	if !ok {
		return 0, ErrUnknownTodo
	}
	next := current.Clone()
	if mutate != nil {
		mutate(&next)
	}
	return r.pushLocked(id, e, overlayUpdate, next), nil
}

// BeginDelete hides the todo until the deletion is settled.
func (r *Reconciler) BeginDelete(id string) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, ErrUnknownTodo
	}
	if _, ok := e.visible(); !ok {
		return 0, ErrUnknownTodo
	}
	return r.pushLocked(id, e, overlayDelete, api.Todo{ID: id}), nil
}

// Confirm settles a mutation with the server's answer. For deletions server
// is ignored and the entry is forgotten. When a server event for the todo
// arrived after the mutation began and is not older than server, the event
// stays as the base and only the overlay is dropped.
func (r *Reconciler) Confirm(token Token, server api.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, e, o, err := r.settleLocked(token)
	if err != nil {
		return err
	}

	if o.kind == overlayDelete {
		e.base = nil
		r.removeIfEmptyLocked(id)
		return nil
	}
	if server.ID == "" {
		server.ID = id
	}
	if server.ID != id {
		// The provisional entry takes the server id in place.
		if len(e.overlays) == 0 && e.base == nil {
			r.renameLocked(id, server.ID)
		} else {
			r.removeIfEmptyLocked(id)
		}
	}
	if r.supersededLocked(r.entries[server.ID], o.revision, server) {
		r.removeIfEmptyLocked(server.ID)
		return nil
	}
	r.setBaseLocked(server)
	return nil
}

// Rollback discards a mutation and falls back to the last confirmed state,
// including any server events received meanwhile.
func (r *Reconciler) Rollback(token Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, _, _, err := r.settleLocked(token)
	if err != nil {
		return err
	}
	r.removeIfEmptyLocked(id)
	return nil
}

// Replace installs a full server snapshot. Pending overlays stay on top of
// the new bases; provisional creations stay at the head.
func (r *Reconciler) Replace(todos []api.Todo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make(map[string]bool, len(todos))
	order := make([]string, 0, len(todos)+len(r.pending))
	for _, id := range r.order {
		if e := r.entries[id]; e.base == nil && len(e.overlays) > 0 {
			order = append(order, id)
			fresh[id] = true
		}
	}
	for _, todo := range todos {
		if todo.ID == "" || fresh[todo.ID] && r.entries[todo.ID].base != nil {
			continue
		}
		e := r.entries[todo.ID]
		if e == nil {
			e = &entry{}
			r.entries[todo.ID] = e
		}
		base := todo.Clone()
		e.base = &base
		r.markLocked(todo.ID)
		if !fresh[todo.ID] {
			order = append(order, todo.ID)
			fresh[todo.ID] = true
		}
	}
	for id, e := range r.entries {
		if fresh[id] {
			continue
		}
		if e.base != nil {
			e.base = nil
			r.markLocked(id)
		}
		if len(e.overlays) == 0 {
			delete(r.entries, id)
			continue
		}
		order = append(order, id)
	}
	r.order = order
}

// Todos returns the visible todos matching filter, newest first.
func (r *Reconciler) Todos(filter Filter) []api.Todo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.Todo, 0, len(r.order))
	for _, id := range r.order {
		todo, ok := r.entries[id].visible()
		if ok && filter.match(todo) {
			out = append(out, todo.Clone())
		}
	}
	return out
}

// Get returns the visible state of one todo.
func (r *Reconciler) Get(id string) (api.Todo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return api.Todo{}, false
	}
	todo, ok := e.visible()
	if !ok {
		return api.Todo{}, false
	}
	return todo.Clone(), true
}

// Counts summarises the visible todos.
func (r *Reconciler) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := Counts{ByStatus: make(map[string]int)}
	for _, id := range r.order {
		todo, ok := r.entries[id].visible()
		if !ok {
			continue
		}
		counts.Total++
		counts.ByStatus[todo.Status]++
		counts.CompletedSubtasks += todo.CompletedSubtasks
		counts.TotalSubtasks += todo.TotalSubtasks
	}
	return counts
}

// Len is the number of visible todos.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.order {
		if _, ok := r.entries[id].visible(); ok {
			n++
		}
	}
	return n
}

// Pending is the number of unsettled optimistic mutations.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Reconciler) ensureLocked(id string) *entry {
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
		r.order = append([]string{id}, r.order...)
	}
	return e
}

func (r *Reconciler) pushLocked(id string, e *entry, kind overlayKind, value api.Todo) Token {
	r.next++
	token := r.next
	e.overlays = append(e.overlays, overlay{token: token, kind: kind, value: value})
	r.pending[token] = id
	e.overlays[len(e.overlays)-1].revision = r.revision
	return token
}

func (r *Reconciler) settleLocked(token Token) (string, *entry, overlay, error) {
	id, ok := r.pending[token]
	if !ok {
		return "", nil, overlay{}, ErrUnknownToken
	}
	delete(r.pending, token)
	e := r.entries[id]
	o, _ := e.drop(token)
	return id, e, o, nil
}

func (r *Reconciler) setBaseLocked(todo api.Todo) {
	e := r.ensureLocked(todo.ID)
	base := todo.Clone()
	e.base = &base
}

// markLocked records that the base of id was just set by the server.
func (r *Reconciler) markLocked(id string) {
	r.revision++
	if e, ok := r.entries[id]; ok {
		e.revision = r.revision
	}
}

func (r *Reconciler) supersededLocked(target *entry, pushed uint64, server api.Todo) bool {
	if target == nil || target.revision <= pushed {
		return false
	}
	if target.base == nil {
		return true
	}
	return !target.base.UpdatedAt.Before(server.UpdatedAt)
}

func (r *Reconciler) addCommentLocked(comment api.Comment) {
	e, ok := r.entries[comment.TodoID]
	if !ok || e.base == nil || e.base.HasComment(comment.ID) {
		return
	}
	e.base.Comments = append(e.base.Comments, comment)
}

func (r *Reconciler) removeIfEmptyLocked(id string) {
	e, ok := r.entries[id]
	if !ok || e.base != nil || len(e.overlays) > 0 {
		return
	}
	delete(r.entries, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
}

// renameLocked moves an entry to a new id, keeping its position. An existing
// entry under the new id wins.
func (r *Reconciler) renameLocked(from, to string) {
	e := r.entries[from]
	delete(r.entries, from)
	if _, exists := r.entries[to]; exists {
		r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == from })
		return
	}
	r.entries[to] = e
	for i, v := range r.order {
		if v == from {
			r.order[i] = to
		}
	}
}
