// Package di implements the resolution and orchestration core: descriptor
// store, scope manager, auto-wiring resolver, context boundaries and the
// per-instance lifecycle state machine.
package di

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scope is the instance-lifetime policy of a component.
type Scope int

const (
	// Singleton components have one instance per owning context.
	Singleton Scope = iota
	// Transient components yield a fresh instance on every resolution.
	Transient
	// Scoped components have one instance per scope key.
	Scoped
)

// String returns a human-readable representation of the scope.
func (s Scope) String() string {
	switch s {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	case Scoped:
		return "scoped"
	default:
		return "unknown"
	}
}

// State represents the lifecycle state of an instance record.
type State string

const (
	StateCreated      State = "created"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateStopping     State = "stopping"
	StateDisposed     State = "disposed"
	StateFailed       State = "failed"
)

// Dependency is a single entry of a descriptor's dependency list.
type Dependency struct {
	// TypeID is the identifier of the required component.
	TypeID string
	// Optional dependencies resolve to nil instead of failing when the
	// type is not registered or imported.
	Optional bool
}

// Factory builds a component value from its resolved dependencies, in
// declared parameter order.
type Factory func(ctx context.Context, deps []any) (any, error)

// Descriptor holds the registration metadata of a component type. It is
// immutable after registration.
type Descriptor struct {
	TypeID       string
	Scope        Scope
	Dependencies []Dependency
	Tags         map[string]string
	Exportable   bool
	Factory      Factory

	registeredAt time.Time
}

// RegisteredAt returns the registration timestamp.
func (d *Descriptor) RegisteredAt() time.Time { return d.registeredAt }

// Instance is the record of one created component instance. Its state is
// mutated only by the lifecycle orchestrator.
type Instance struct {
	ID        string
	TypeID    string
	Context   string
	Scope     Scope
	Value     any
	CreatedAt time.Time

	mu    sync.RWMutex
	state State
}

func newInstance(typeID, contextName string, scope Scope, value any) *Instance {
	return &Instance{
		ID:        uuid.NewString(),
		TypeID:    typeID,
		Context:   contextName,
		Scope:     scope,
		Value:     value,
		CreatedAt: time.Now(),
		state:     StateCreated,
	}
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Instance) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}

// Lifecycle hook interfaces. Component values may implement any subset;
// the orchestrator invokes whichever are present.
type (
	// Initializer is invoked once after construction, before the instance
	// is returned to any caller.
	Initializer interface {
		Initialize(ctx context.Context) error
	}

	// Starter is invoked after initialization succeeds, in dependency
	// order. Purely additive to readiness.
	Starter interface {
		Start(ctx context.Context) error
	}

	// Stopper is invoked during shutdown, in reverse startup order.
	Stopper interface {
		Stop(ctx context.Context) error
	}

	// Cleaner releases resources after stop. Failures are collected and
	// never abort remaining cleanups.
	Cleaner interface {
		Cleanup(ctx context.Context) error
	}
)

// Summary describes the registration surface of a context.
type Summary struct {
	Name           string `json:"name"`
	ComponentCount int    `json:"component_count"`
	ImportCount    int    `json:"import_count"`
	ExportCount    int    `json:"export_count"`
}
