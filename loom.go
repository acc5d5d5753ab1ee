// Package loom is a multi-context dependency injection engine. Components
// are registered into named contexts with singleton, transient or scoped
// lifetimes; contexts expose explicit export surfaces and consume each
// other through declared imports. A builder orders the context graph
// topologically, starts independent branches in parallel and rolls back on
// failure, and shutdown walks the exact reverse of startup order.
//
// The usual flow is declarative: describe contexts as ModuleDefinition
// values, derive component definitions from constructors with Provide, and
// hand everything to a Builder. Contexts can also be assembled imperatively
// through NewContext for tests and small programs.
package loom

import (
	"context"
	"fmt"

	"github.com/loomdi/loom/errors"
	"github.com/loomdi/loom/internal/di"
)

// ContextOption configures a standalone context.
type ContextOption = di.ContextOption

// Standalone context constructors and options, re-exported from the core.
var (
	NewContext  = di.NewContext
	WithLogger  = di.WithLogger
	WithMetrics = di.WithMetrics
)

// Resolve resolves T from the context by its derived type name and asserts
// the result.
func Resolve[T any](ctx context.Context, c *Context) (T, error) {
	return ResolveScoped[T](ctx, c, "")
}

// ResolveScoped is Resolve for scoped components, keyed by scopeKey.
func ResolveScoped[T any](ctx context.Context, c *Context, scopeKey string) (T, error) {
	var zero T
	typeID := TypeName[T]()
	v, err := c.ResolveScoped(ctx, typeID, scopeKey)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.ErrComponentResolution(typeID,
			fmt.Errorf("instance has type %T, not %s", v, typeID))
	}
	return out, nil
}

// ResolveNamed resolves by explicit type ID, for components registered
// under a custom identifier.
func ResolveNamed[T any](ctx context.Context, c *Context, typeID string) (T, error) {
	var zero T
	v, err := c.Resolve(ctx, typeID)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.ErrComponentResolution(typeID,
			fmt.Errorf("instance has type %T", v))
	}
	return out, nil
}
