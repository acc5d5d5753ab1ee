package di

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/loomdi/loom/errors"
)

// Context is an isolated registration and resolution boundary with its own
// descriptor store, scope manager and resolver, plus an explicit
// import/export surface toward other contexts.
type Context struct {
	name    string
	log     *zap.Logger
	metrics *Metrics

	store     *Store
	scopes    *ScopeManager
	lifecycle *Orchestrator

	mu          sync.RWMutex
	imports     map[string]*ImportBinding
	importOrder []string
	frozen      bool
	starting    bool
	started     bool
	stopped     bool
}

// ImportBinding is a frozen, read-only reference to a component owned by
// another context.
type ImportBinding struct {
	// TypeID is the provider type ID in the source context.
	TypeID string
	// LocalName is the name the component is known by in the importing
	// context (the alias, or TypeID when not aliased).
	LocalName string
	// Source is the owning context. Already built when the binding is
	// resolved.
	Source *Context
}

// ContextOption configures a context.
type ContextOption func(*Context)

// WithLogger sets the context logger.
func WithLogger(log *zap.Logger) ContextOption {
	return func(c *Context) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics sets the metric sink.
func WithMetrics(m *Metrics) ContextOption {
	return func(c *Context) { c.metrics = m }
}

// NewContext creates an empty named context.
func NewContext(name string, opts ...ContextOption) *Context {
	c := &Context{
		name:    name,
		log:     zap.NewNop(),
		imports: make(map[string]*ImportBinding),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = NewStore(name, c.log)
	c.scopes = NewScopeManager(name, c.log, c.metrics)
	c.lifecycle = NewOrchestrator(name, c.log, c.metrics)
	return c
}

// Name returns the context name.
func (c *Context) Name() string { return c.name }

// RegisterComponent registers a component descriptor. Registration is only
// allowed before the context starts.
func (c *Context) RegisterComponent(d Descriptor) error {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if started {
		return errors.ErrInvalidDefinition(d.TypeID, errors.ErrContextStarted)
	}

	// An import already bound under this name would be silently shadowed.
	c.mu.RLock()
	_, collides := c.imports[d.TypeID]
	c.mu.RUnlock()
	if collides {
		return errors.ErrDuplicateRegistration(d.TypeID, c.name)
	}

	if err := c.store.Register(d); err != nil {
		return err
	}
	c.metrics.ComponentRegistered(c.name)
	return nil
}

// BindImport binds a component exported by source under localName. The
// export check happens here, at bind time, not at first use. A local name
// colliding with a registered component or a previous import is an error
// rather than a silent shadow.
func (c *Context) BindImport(typeID, localName string, source *Context) error {
	if localName == "" {
		localName = typeID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return errors.ErrInvalidDefinition(localName, errors.ErrContextFrozen)
	}
	if source == nil || source == c {
		return errors.ErrInvalidDefinition(localName, errors.New("import source must be another context"))
	}
	if _, owned := c.store.Lookup(localName); owned {
		return errors.ErrDuplicateRegistration(localName, c.name)
	}
	if _, bound := c.imports[localName]; bound {
		return errors.ErrDuplicateRegistration(localName, c.name)
	}

	d, ok := source.store.Lookup(typeID)
	if !ok {
		return errors.ErrMissingDependency(typeID, source.name)
	}
	if !d.Exportable {
		return errors.ErrImportNotExported(typeID, source.name)
	}

	c.imports[localName] = &ImportBinding{TypeID: typeID, LocalName: localName, Source: source}
	c.importOrder = append(c.importOrder, localName)

	c.log.Debug("import bound",
		zap.String("context", c.name),
		zap.String("type_id", typeID),
		zap.String("local_name", localName),
		zap.String("source", source.name),
	)
	return nil
}

// Freeze seals the import surface. Bindings are resolved once during the
// build phase and read-only afterwards.
func (c *Context) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Start eagerly creates, initializes and starts every singleton component
// in dependency order. A failure rolls back already-initialized siblings in
// reverse order and leaves the context unstarted.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.ErrLifecycle("start", errors.ErrContextStarted)
	}
	c.frozen = true
	c.starting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	order, err := c.componentOrder()
	if err != nil {
		return err
	}

	// Creation pass: resolving in topological order means each factory
	// finds its dependencies already cached.
	for _, typeID := range order {
		d, ok := c.store.Lookup(typeID)
		if !ok || d.Scope != Singleton {
			continue
		}
		if _, err := c.resolve(ctx, typeID, "", newResolutionChain()); err != nil {
			return err
		}
	}

	if err := c.lifecycle.StartAll(ctx, c.scopes.Singletons()); err != nil {
		return err
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	c.log.Info("context started",
		zap.String("context", c.name),
		zap.Int("components", c.store.Count()),
	)
	return nil
}

// componentOrder returns locally-owned type IDs in dependency order.
// Imported dependencies are edges into other contexts and are skipped here;
// the context build order guarantees they are already running.
func (c *Context) componentOrder() ([]string, error) {
	g := NewGraph()
	for _, typeID := range c.store.TypeIDs() {
		d, _ := c.store.Lookup(typeID)
		deps := make([]string, 0, len(d.Dependencies))
		for _, dep := range d.Dependencies {
			deps = append(deps, dep.TypeID)
		}
		g.AddNode(typeID, deps)
	}
	return g.TopoSort()
}

// Resolve resolves an instance of the requested type.
func (c *Context) Resolve(ctx context.Context, typeID string) (any, error) {
	return c.ResolveScoped(ctx, typeID, "")
}

// ResolveScoped resolves an instance of the requested type within the given
// scope key. Scoped components resolved with the same key share an
// instance; different keys yield independent instances.
func (c *Context) ResolveScoped(ctx context.Context, typeID, scopeKey string) (any, error) {
	start := time.Now()
	value, err := c.resolve(ctx, typeID, scopeKey, newResolutionChain())
	c.metrics.Resolution(c.name, start, err)
	if err != nil {
		if errors.IsCircularDependency(err) {
			return nil, err
		}
		return nil, errors.ErrComponentResolution(typeID, err)
	}
	return value, nil
}

// EndScope disposes all instances cached under the scope key, in reverse
// creation order. Disposal errors are collected, never aborting the rest.
func (c *Context) EndScope(ctx context.Context, scopeKey string) error {
	instances := c.scopes.TakeScope(scopeKey)
	var errs error
	for i := len(instances) - 1; i >= 0; i-- {
		if err := c.lifecycle.Dispose(ctx, instances[i]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if len(instances) > 0 {
		c.log.Debug("scope ended",
			zap.String("context", c.name),
			zap.String("scope_key", scopeKey),
			zap.Int("instances", len(instances)),
		)
	}
	return errs
}

// Shutdown stops and cleans up every instance owned by the context, in the
// exact reverse of startup order. Best-effort: every disposal is attempted
// and failures are reported in aggregate.
func (c *Context) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.started = false
	c.mu.Unlock()

	var errs error

	// Active scopes first: scoped instances may depend on singletons.
	for _, key := range c.scopes.ScopeKeys() {
		if err := c.EndScope(ctx, key); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if err := c.lifecycle.ShutdownAll(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	c.scopes.Clear()

	c.log.Info("context stopped", zap.String("context", c.name), zap.Error(errs))
	return errs
}

// Summary reports the registration surface of the context.
func (c *Context) Summary() Summary {
	c.mu.RLock()
	importCount := len(c.imports)
	c.mu.RUnlock()

	return Summary{
		Name:           c.name,
		ComponentCount: c.store.Count(),
		ImportCount:    importCount,
		ExportCount:    len(c.store.Exported()),
	}
}

// Exports returns the exported type IDs.
func (c *Context) Exports() []string { return c.store.Exported() }

// Imports returns the bound import local names in binding order.
func (c *Context) Imports() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.importOrder))
	copy(out, c.importOrder)
	return out
}

// Store exposes the descriptor store.
func (c *Context) Store() *Store { return c.store }

// Instances returns the started instances in start order.
func (c *Context) Instances() []*Instance { return c.lifecycle.Started() }

// isStarting reports whether the eager startup sequence is running, in
// which case singleton lifecycle phases belong to StartAll.
func (c *Context) isStarting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.starting
}
