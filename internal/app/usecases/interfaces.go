package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

// Component is the unit-operation contract consumed by the executor. Step
// receives the streams currently present on the node's input ports (keyed by
// port name; absent keys mean the port has no value yet) and the simulation
// timestep, and returns the streams produced on its output ports.
//
// A component must be deterministic given identical inputs and internal
// state. It may hold internal state across calls (integrator state is the
// typical case) but must never touch another component's state: all coupling
// goes through edge values.
type Component interface {
	Step(ctx context.Context, dt float64, inputs map[string]flowsheet.Stream) (map[string]flowsheet.Stream, error)
}

// Factory builds a component instance for one node from its resolved
// parameters.
type Factory func(nodeID string, width int, params flowsheet.Params) (Component, error)

// Registry errors
var (
	ErrUnknownComponentType = errors.New("no factory registered for component type")
	ErrDuplicateFactory     = errors.New("component type already registered")
	ErrNilFactory           = errors.New("factory cannot be nil")
)

// Registry maps component-type tags to factories. Polymorphic component
// behavior is selected here rather than by inheritance, keeping the set of
// unit operations open for extension.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a component-type tag.
func (r *Registry) Register(kind string, f Factory) error {
	if f == nil {
		return ErrNilFactory
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("type %q: %w", kind, ErrDuplicateFactory)
	}
	r.factories[kind] = f
	return nil
}

// New instantiates a component for the given node.
func (r *Registry) New(kind, nodeID string, width int, params flowsheet.Params) (Component, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("type %q: %w", kind, ErrUnknownComponentType)
	}
	return f(nodeID, width, params)
}

// Kinds returns the registered component-type tags, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
