package loom

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/loomdi/loom/errors"
	"github.com/loomdi/loom/internal/di"
)

// Builder constructs a set of contexts from module definitions. It computes
// the import dependency graph between contexts, rejects cycles, and builds
// contexts in topological order, parallelizing independent branches.
type Builder struct {
	defs     []ModuleDefinition
	opts     Options
	log      *zap.Logger
	metrics  *di.Metrics
	consumed bool
}

// BuilderOption configures a builder.
type BuilderOption func(*Builder)

// WithOptions sets the build configuration.
func WithOptions(opts Options) BuilderOption {
	return func(b *Builder) { b.opts = opts }
}

// WithBuildLogger sets the logger shared by the builder and the contexts it
// creates.
func WithBuildLogger(log *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetricsRegistry enables engine metrics on the given registerer.
func WithMetricsRegistry(reg prometheus.Registerer) BuilderOption {
	return func(b *Builder) { b.metrics = di.NewMetrics(reg) }
}

// NewBuilder creates a builder with default options.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{opts: DefaultOptions(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends module definitions. Input order does not influence the build
// order beyond tie-breaking among independent contexts.
func (b *Builder) Add(defs ...ModuleDefinition) *Builder {
	b.defs = append(b.defs, defs...)
	return b
}

// Build validates the definitions, orders the contexts and starts them.
// Any context failure rolls back the already-built contexts in reverse
// completion order before the error is returned.
func (b *Builder) Build(ctx context.Context) (*Module, error) {
	if b.consumed {
		return nil, errors.ErrInvalidDefinition("builder", errors.ErrBuilderConsumed)
	}
	b.consumed = true
	opts := b.opts.withDefaults()

	byName, err := b.validate()
	if err != nil {
		return nil, err
	}

	levels, err := b.contextLevels(byName)
	if err != nil {
		return nil, err
	}

	buildCtx := ctx
	if opts.StartupTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, opts.StartupTimeout)
		defer cancel()
	}

	m := &Module{contexts: make(map[string]*Context, len(b.defs)), log: b.log}
	var mu sync.Mutex

	for _, level := range levels {
		if err := b.buildLevel(buildCtx, opts, level, byName, m, &mu); err != nil {
			b.rollback(ctx, m)
			return nil, err
		}
	}

	b.log.Info("module built",
		zap.Int("contexts", len(m.contexts)),
		zap.Strings("start_order", m.startOrder),
	)
	return m, nil
}

// validate checks cross-module invariants: unique context names, a single
// owning context per type ID, and required imports referencing known
// contexts.
func (b *Builder) validate() (map[string]ModuleDefinition, error) {
	byName := make(map[string]ModuleDefinition, len(b.defs))
	owner := make(map[string]string)

	for _, def := range b.defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[def.Name]; dup {
			return nil, errors.ErrInvalidDefinition(def.Name, errors.New("duplicate context name"))
		}
		byName[def.Name] = def

		for _, comp := range def.Components {
			if prev, owned := owner[comp.TypeID]; owned {
				return nil, errors.ErrDuplicateRegistration(comp.TypeID, def.Name).
					WithContext("already_owned_by", prev)
			}
			owner[comp.TypeID] = def.Name
		}
	}

	for _, def := range b.defs {
		for _, imp := range def.Imports {
			if _, known := byName[imp.FromContext]; !known && !imp.Optional {
				return nil, errors.ErrMissingDependency(imp.TypeID, imp.FromContext)
			}
		}
	}
	return byName, nil
}

// contextLevels computes the topological levels of the context import
// graph. A cycle among contexts is fatal before any component is
// constructed.
func (b *Builder) contextLevels(byName map[string]ModuleDefinition) ([][]string, error) {
	g := di.NewGraph()
	for _, def := range b.defs {
		var deps []string
		for _, dep := range def.contextDependencies() {
			if _, known := byName[dep]; known {
				deps = append(deps, dep)
			}
		}
		g.AddNode(def.Name, deps)
	}
	return g.Levels()
}

// buildLevel builds the mutually independent contexts of one level, either
// sequentially or concurrently under the configured limit.
func (b *Builder) buildLevel(ctx context.Context, opts Options, level []string, byName map[string]ModuleDefinition, m *Module, mu *sync.Mutex) error {
	if !opts.ParallelStartup || len(level) == 1 {
		for _, name := range level {
			if err := b.buildOne(ctx, opts, byName[name], m, mu); err != nil {
				return err
			}
		}
		return nil
	}

	if opts.FailFast {
		// The group context is cancelled on the first failure so sibling
		// builds abort at their next suspension point.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.MaxParallelBuilds)
		for _, name := range level {
			name := name
			g.Go(func() error {
				return b.buildOne(gctx, opts, byName[name], m, mu)
			})
		}
		return g.Wait()
	}

	// Without fail-fast the whole level runs to completion and failures
	// are reported in aggregate.
	var g errgroup.Group
	g.SetLimit(opts.MaxParallelBuilds)
	var errsMu sync.Mutex
	var errs error
	for _, name := range level {
		name := name
		g.Go(func() error {
			if err := b.buildOne(ctx, opts, byName[name], m, mu); err != nil {
				errsMu.Lock()
				errs = multierr.Append(errs, err)
				errsMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// buildOne constructs and starts a single context: registers its
// components, binds its imports against the already-built sources, freezes
// the import surface and runs the eager startup sequence.
func (b *Builder) buildOne(ctx context.Context, opts Options, def ModuleDefinition, m *Module, mu *sync.Mutex) error {
	cctx := ctx
	if opts.ContextTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, opts.ContextTimeout)
		defer cancel()
	}

	c := di.NewContext(def.Name, di.WithLogger(b.log), di.WithMetrics(b.metrics))

	for _, comp := range def.Components {
		if err := c.RegisterComponent(comp.descriptor()); err != nil {
			return errors.ErrContextStartup(def.Name, err)
		}
	}

	for _, imp := range def.Imports {
		mu.Lock()
		source, built := m.contexts[imp.FromContext]
		mu.Unlock()
		if !built {
			if imp.Optional {
				continue
			}
			// Topological order guarantees required sources are built.
			return errors.ErrContextStartup(def.Name,
				errors.ErrMissingDependency(imp.TypeID, imp.FromContext))
		}
		if err := c.BindImport(imp.TypeID, imp.LocalName(), source); err != nil {
			// Optional imports tolerate an absent component. A present but
			// non-exported target is a declaration error either way.
			if imp.Optional && errors.IsMissingDependency(err) {
				continue
			}
			return errors.ErrContextStartup(def.Name, err)
		}
	}

	c.Freeze()

	if err := c.Start(cctx); err != nil {
		// A start-phase failure can leave earlier components of this
		// context running; dispose them before discarding the context.
		if downErr := c.Shutdown(context.WithoutCancel(ctx)); downErr != nil {
			b.log.Error("context cleanup failed after start failure",
				zap.String("context", def.Name),
				zap.Error(downErr),
			)
		}
		if cctx.Err() != nil && ctx.Err() == nil {
			err = errors.ErrTimeout("context start", opts.ContextTimeout).WithContext("cause", err.Error())
		}
		return errors.ErrContextStartup(def.Name, err)
	}

	mu.Lock()
	m.contexts[def.Name] = c
	m.startOrder = append(m.startOrder, def.Name)
	mu.Unlock()

	b.log.Info("context built", zap.String("context", def.Name))
	return nil
}

// rollback shuts down the already-built contexts in reverse completion
// order. Best-effort: failures are logged, never propagated.
func (b *Builder) rollback(ctx context.Context, m *Module) {
	cleanupCtx := context.WithoutCancel(ctx)
	for i := len(m.startOrder) - 1; i >= 0; i-- {
		name := m.startOrder[i]
		if err := m.contexts[name].Shutdown(cleanupCtx); err != nil {
			b.log.Error("context cleanup failed during rollback",
				zap.String("context", name),
				zap.Error(err),
			)
		}
	}
}

// Module is a built set of contexts with a recorded startup order.
type Module struct {
	contexts   map[string]*Context
	startOrder []string
	log        *zap.Logger
}

// Context returns the named context.
func (m *Module) Context(name string) (*Context, bool) {
	c, ok := m.contexts[name]
	return c, ok
}

// Contexts returns all contexts by name.
func (m *Module) Contexts() map[string]*Context {
	out := make(map[string]*Context, len(m.contexts))
	for name, c := range m.contexts {
		out[name] = c
	}
	return out
}

// StartOrder returns the context names in completion order.
func (m *Module) StartOrder() []string {
	out := make([]string, len(m.startOrder))
	copy(out, m.startOrder)
	return out
}

// Summaries reports the registration surface of every context.
func (m *Module) Summaries() map[string]Summary {
	out := make(map[string]Summary, len(m.contexts))
	for name, c := range m.contexts {
		out[name] = c.Summary()
	}
	return out
}

// Shutdown stops every context in the exact reverse of startup order.
// Best-effort: every context is attempted and failures are reported in
// aggregate.
func (m *Module) Shutdown(ctx context.Context) error {
	var errs error
	for i := len(m.startOrder) - 1; i >= 0; i-- {
		name := m.startOrder[i]
		if err := m.contexts[name].Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, err)
			m.log.Error("context shutdown failed",
				zap.String("context", name),
				zap.Error(err),
			)
		}
	}
	return errs
}

// Build is a convenience for building definitions with default options.
func Build(ctx context.Context, defs ...ModuleDefinition) (*Module, error) {
	return NewBuilder().Add(defs...).Build(ctx)
}
