package di

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/loomdi/loom/errors"
)

// Orchestrator drives the initialize/start/stop/cleanup state machine for
// the instances of one context. Startup runs in dependency order, shutdown
// in the exact reverse.
type Orchestrator struct {
	contextName string
	log         *zap.Logger
	metrics     *Metrics

	// startOrder records every instance this orchestrator started, in
	// start order. Shutdown walks it backwards.
	mu         sync.Mutex
	startOrder []*Instance
}

// NewOrchestrator creates a lifecycle orchestrator for the named context.
func NewOrchestrator(contextName string, log *zap.Logger, metrics *Metrics) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{contextName: contextName, log: log, metrics: metrics}
}

// Initialize transitions the instance created -> initializing -> ready,
// invoking its Initialize hook if present. Failure transitions to failed.
func (o *Orchestrator) Initialize(ctx context.Context, inst *Instance) error {
	if err := ctx.Err(); err != nil {
		return errors.ErrContextCancelled("initialize").WithContext("type_id", inst.TypeID)
	}

	inst.setState(StateInitializing)
	if hook, ok := inst.Value.(Initializer); ok {
		if err := hook.Initialize(ctx); err != nil {
			inst.setState(StateFailed)
			o.metrics.LifecycleFailure(o.contextName, "initialize")
			o.log.Error("component initialization failed",
				zap.String("context", o.contextName),
				zap.String("type_id", inst.TypeID),
				zap.Error(err),
			)
			return errors.ErrComponentInitialization(inst.TypeID, err)
		}
	}
	inst.setState(StateReady)
	return nil
}

// Start invokes the instance's Start hook if present and records the
// instance for shutdown ordering. Start failure does not transition the
// instance out of ready; it fails the surrounding context build instead.
func (o *Orchestrator) Start(ctx context.Context, inst *Instance) error {
	if err := ctx.Err(); err != nil {
		return errors.ErrContextCancelled("start").WithContext("type_id", inst.TypeID)
	}

	if err := o.StartEphemeral(ctx, inst); err != nil {
		return err
	}
	o.mu.Lock()
	o.startOrder = append(o.startOrder, inst)
	o.mu.Unlock()
	return nil
}

// StartEphemeral invokes the Start hook without recording the instance for
// context shutdown. Used for transient and scoped instances, whose disposal
// is owned by their resolution site or scope key.
func (o *Orchestrator) StartEphemeral(ctx context.Context, inst *Instance) error {
	if hook, ok := inst.Value.(Starter); ok {
		if err := hook.Start(ctx); err != nil {
			o.metrics.LifecycleFailure(o.contextName, "start")
			return errors.ErrLifecycle("start", err).WithContext("type_id", inst.TypeID)
		}
	}
	return nil
}

// StartAll runs the two-phase startup for eagerly created instances:
// initialize every instance in order, then start every instance in order.
// An initialize failure rolls back the already-initialized instances in
// reverse order, each receiving exactly one cleanup call. Instances that
// already ran their phases inline (resolved before the context started)
// are skipped; Initialize is invoked at most once per instance.
func (o *Orchestrator) StartAll(ctx context.Context, instances []*Instance) error {
	pending := make([]*Instance, 0, len(instances))
	for _, inst := range instances {
		if inst.State() == StateCreated {
			pending = append(pending, inst)
		}
	}

	for i, inst := range pending {
		if err := o.Initialize(ctx, inst); err != nil {
			o.rollback(ctx, pending[:i])
			return err
		}
	}
	for _, inst := range pending {
		if err := o.Start(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

// rollback cleans up initialized-but-unstarted instances in reverse order.
// Best-effort: failures are logged, not propagated.
func (o *Orchestrator) rollback(ctx context.Context, initialized []*Instance) {
	for i := len(initialized) - 1; i >= 0; i-- {
		inst := initialized[i]
		if err := o.Cleanup(ctx, inst); err != nil {
			o.log.Error("cleanup failed during rollback",
				zap.String("context", o.contextName),
				zap.String("type_id", inst.TypeID),
				zap.Error(err),
			)
		}
	}
}

// Stop transitions ready -> stopping and invokes the Stop hook if present.
// Failure transitions to failed.
func (o *Orchestrator) Stop(ctx context.Context, inst *Instance) error {
	inst.setState(StateStopping)
	if hook, ok := inst.Value.(Stopper); ok {
		if err := hook.Stop(ctx); err != nil {
			inst.setState(StateFailed)
			o.metrics.LifecycleFailure(o.contextName, "stop")
			return errors.ErrLifecycle("stop", err).WithContext("type_id", inst.TypeID)
		}
	}
	return nil
}

// Cleanup invokes the Cleanup hook if present and marks the instance
// disposed. A cleanup failure leaves the instance failed but is still
// returned for aggregate reporting, never panicking the shutdown.
func (o *Orchestrator) Cleanup(ctx context.Context, inst *Instance) error {
	if hook, ok := inst.Value.(Cleaner); ok {
		if err := hook.Cleanup(ctx); err != nil {
			inst.setState(StateFailed)
			o.metrics.LifecycleFailure(o.contextName, "cleanup")
			return errors.ErrLifecycle("cleanup", err).WithContext("type_id", inst.TypeID)
		}
	}
	inst.setState(StateDisposed)
	return nil
}

// Dispose stops and cleans up a single instance, collecting both errors.
func (o *Orchestrator) Dispose(ctx context.Context, inst *Instance) error {
	var errs error
	if err := o.Stop(ctx, inst); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := o.Cleanup(ctx, inst); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// ShutdownAll stops and cleans up every started instance in the exact
// reverse of start order. Failures are collected and never abort the
// remaining disposals.
func (o *Orchestrator) ShutdownAll(ctx context.Context) error {
	o.mu.Lock()
	started := o.startOrder
	o.startOrder = nil
	o.mu.Unlock()

	var errs error
	for i := len(started) - 1; i >= 0; i-- {
		inst := started[i]
		if inst.State() == StateDisposed {
			continue
		}
		if err := o.Dispose(ctx, inst); err != nil {
			errs = multierr.Append(errs, err)
			o.log.Error("component shutdown failed",
				zap.String("context", o.contextName),
				zap.String("type_id", inst.TypeID),
				zap.Error(err),
			)
		}
	}
	return errs
}

// Started returns the started instances in start order.
func (o *Orchestrator) Started() []*Instance {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Instance, len(o.startOrder))
	copy(out, o.startOrder)
	return out
}
