package di

import (
	"context"

	"github.com/loomdi/loom/errors"
)

// resolutionChain is the in-flight stack of type IDs being resolved within
// one top-level resolve call. It exists only for the duration of that call
// and is the component-level cycle detector.
type resolutionChain struct {
	entries []string
	seen    map[string]int
}

func newResolutionChain() *resolutionChain {
	return &resolutionChain{seen: make(map[string]int)}
}

// push appends typeID to the chain, failing with the full offending chain
// when the type is already being resolved.
func (rc *resolutionChain) push(typeID string) error {
	if first, ok := rc.seen[typeID]; ok {
		chain := append(append([]string{}, rc.entries[first:]...), typeID)
		return errors.ErrCircularDependency(chain)
	}
	rc.seen[typeID] = len(rc.entries)
	rc.entries = append(rc.entries, typeID)
	return nil
}

func (rc *resolutionChain) pop() {
	last := rc.entries[len(rc.entries)-1]
	rc.entries = rc.entries[:len(rc.entries)-1]
	delete(rc.seen, last)
}

// resolve is the auto-wiring core: it resolves typeID transitively,
// delegating instance identity to the scope manager and redirecting through
// frozen import bindings when the type is not locally owned.
func (c *Context) resolve(ctx context.Context, typeID, scopeKey string, chain *resolutionChain) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ErrContextCancelled("resolve").WithContext("type_id", typeID)
	}

	d, ok := c.store.Lookup(typeID)
	if !ok {
		c.mu.RLock()
		binding, bound := c.imports[typeID]
		c.mu.RUnlock()
		if bound {
			// Redirect without a chain entry: only the owning context
			// pushes the ID. A non-aliased import shares its name with the
			// provider and would otherwise collide with the source's push.
			return binding.Source.resolve(ctx, binding.TypeID, scopeKey, chain)
		}
		return nil, errors.ErrMissingDependency(typeID, c.name)
	}

	// Only owned type IDs enter the chain; ownership is unique across
	// contexts, so each entry is unambiguous.
	if err := chain.push(typeID); err != nil {
		return nil, err
	}
	defer chain.pop()

	// Dependencies are resolved inside the factory closure so a cache hit
	// never constructs them: a shared singleton in a diamond is built once
	// per top-level call, transients stay per-consumer.
	factory := func() (any, error) {
		args := make([]any, len(d.Dependencies))
		for i, dep := range d.Dependencies {
			v, err := c.resolve(ctx, dep.TypeID, scopeKey, chain)
			if err != nil {
				if dep.Optional && errors.IsMissingDependency(err) {
					args[i] = nil
					continue
				}
				return nil, err
			}
			args[i] = v
		}
		return d.Factory(ctx, args)
	}

	inst, created, err := c.scopes.GetOrCreate(typeID, d.Scope, scopeKey, factory)
	if err != nil {
		return nil, err
	}

	if created {
		if err := c.activate(ctx, inst, d.Scope); err != nil {
			return nil, err
		}
	}
	return inst.Value, nil
}

// activate runs the lifecycle phases owed to a freshly created instance.
// Singletons created by the eager startup sequence are left in created
// state for the two-phase StartAll; every other creation, including a
// singleton resolved on a context that was never started, is initialized
// and started inline before the value reaches any caller.
func (c *Context) activate(ctx context.Context, inst *Instance, scope Scope) error {
	if scope == Singleton && c.isStarting() {
		return nil
	}

	if err := c.lifecycle.Initialize(ctx, inst); err != nil {
		if scope == Singleton {
			c.scopes.Evict(inst)
		}
		return err
	}

	switch scope {
	case Singleton:
		return c.lifecycle.Start(ctx, inst)
	default:
		// Transient and scoped instances are not tracked for context
		// shutdown; scoped disposal belongs to EndScope.
		return c.lifecycle.StartEphemeral(ctx, inst)
	}
}
