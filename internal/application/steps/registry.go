package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"

	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// Builder collects handlers at startup. Build freezes them into a Registry.
type Builder struct {
	handlers []Handler
}

// NewBuilder creates an empty registry builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Register adds handlers. Conflicts are reported by Build.
func (b *Builder) Register(handlers ...Handler) *Builder {
	b.handlers = append(b.handlers, handlers...)
	return b
}

// Build validates the collected handlers and returns a read-only registry.
// Every duplicate key is reported, not just the first.
func (b *Builder) Build() (*Registry, error) {
	r := &Registry{handlers: make(map[Key]Handler, len(b.handlers))}

	var errs []error
	for _, h := range b.handlers {
		switch {
		case h.StepID == "":
			errs = append(errs, fmt.Errorf("handler %q has no step id", h.Name))
			continue
		case !h.Operation.IsValid():
			errs = append(errs, fmt.Errorf("handler %s has unknown operation %q", h.StepID, h.Operation))
			continue
		case h.Fn == nil:
			errs = append(errs, fmt.Errorf("handler %s has no function", h.Key))
			continue
		}
		if existing, dup := r.handlers[h.Key]; dup {
			errs = append(errs, fmt.Errorf("%w: %s registered by %q and %q",
				domainwf.ErrDuplicateHandler, h.Key, existing.Name, h.Name))
			continue
		}
		r.handlers[h.Key] = h
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Registry maps (step id, operation) to handlers. Safe for concurrent use;
// it is never modified after Build.
type Registry struct {
	handlers map[Key]Handler
}

// Lookup returns the handler for the step operation
func (r *Registry) Lookup(stepID string, op Operation) (Handler, bool) {
	h, ok := r.handlers[Key{StepID: stepID, Operation: op}]
	return h, ok
}

// Has reports whether the step operation has a handler
func (r *Registry) Has(stepID string, op Operation) bool {
	_, ok := r.Lookup(stepID, op)
	return ok
}

// Run invokes the handler for the step operation
func (r *Registry) Run(ctx context.Context, stepID string, op Operation, req Request) (interface{}, error) {
	h, ok := r.Lookup(stepID, op)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrHandlerNotFound, Key{StepID: stepID, Operation: op})
	}
	return h.Fn(ctx, req)
}

// Keys lists the registered keys ordered by step id then operation
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].StepID != keys[j].StepID {
			return keys[i].StepID < keys[j].StepID
		}
		return keys[i].Operation < keys[j].Operation
	})
	return keys
}

// Len returns the number of registered handlers
func (r *Registry) Len() int {
	return len(r.handlers)
}
