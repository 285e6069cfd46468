package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Result is what a handler reports when it finishes. Total is the number of
// items processed; Detail is marshalled to JSON into Task.Detail.
type Result struct {
	Total  int
	Detail any
	Note   string
}

// Handler executes the work for one task type. It should report progress
// through p and return once its batch settles. A non-nil error fails the
// task; item-level failures belong in Result.Detail instead.
type Handler interface {
	Handle(ctx context.Context, t *Task, p *Progress) (*Result, error)
}

// InputValidator is implemented by handlers that can reject a task's input
// before the task record is created.
type InputValidator interface {
	ValidateInput(spec CreateSpec) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t *Task, p *Progress) (*Result, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, t *Task, p *Progress) (*Result, error) {
	return f(ctx, t, p)
}

// Registry maps task types to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Type]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Type]Handler)}
}

// Register binds h to taskType. Registering a type twice is an error.
func (r *Registry) Register(taskType Type, h Handler) error {
	if taskType == "" {
		return errors.New("task type cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("nil handler for task type %q", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("handler for task type %q already registered", taskType)
	}
	r.handlers[taskType] = h
	return nil
}

// Lookup returns the handler registered for taskType.
func (r *Registry) Lookup(taskType Type) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}

// Types lists the registered task types in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
