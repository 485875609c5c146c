package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/datallboy/resample/internal/domain"
)

// Handler executes one named command. args is the raw JSON object sent by
// the caller; the returned value is marshalled back as the call result.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Registry maps command names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	// OnCall, when set, is invoked after every dispatched call.
	OnCall func(command string, err error)
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering the same name twice replaces the first.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Commands lists the registered names in sorted order.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke dispatches a call by name.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrUnknownCommand, name)
		r.observe(name, err)
		return nil, err
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	v, err := h(ctx, args)
	r.observe(name, err)
	return v, err
}

func (r *Registry) observe(name string, err error) {
	if r.OnCall != nil {
		r.OnCall(name, err)
	}
}

// Bind wraps a typed function as a Handler, decoding args into A.
func Bind[A any](fn func(ctx context.Context, args A) (any, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return fn(ctx, args)
	}
}

// NoArgs wraps a function that takes no arguments.
func NoArgs(fn func(ctx context.Context) (any, error)) Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return fn(ctx)
	}
}
