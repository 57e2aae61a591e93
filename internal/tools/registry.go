package tools

import (
	"context"
	"sync"
	"time"

	"mentor/internal/metrics"
	"mentor/pkg/errors"
)

// Registry stores tools by name for discovery and dispatch.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds or replaces a tool under its own name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name if registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}

	return list
}

// Dispatch looks up a tool and invokes it synchronously. Unregistered names
// yield ErrToolNotFound; validation failures from the handler pass through
// unwrapped so callers can recover within the turn.
func (r *Registry) Dispatch(ctx context.Context, name string, req Request) (*Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrToolNotFound, "tool %q is not registered", name)
	}

	started := time.Now()
	result, err := t.Execute(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
		if errors.IsValidation(err) {
			status = "validation_error"
		}
	}
	metrics.RecordToolExecution(name, time.Since(started), status)

	return result, err
}
