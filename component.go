package loom

import (
	"context"
	"fmt"
	"reflect"

	"github.com/loomdi/loom/errors"
	"github.com/loomdi/loom/internal/di"
)

// Re-exported core types so callers only import the root package.
type (
	// Scope is the instance-lifetime policy of a component.
	Scope = di.Scope
	// Dependency is one entry of a component's dependency list.
	Dependency = di.Dependency
	// Factory builds a component from its resolved dependencies.
	Factory = di.Factory
	// Instance is the record of one created component instance.
	Instance = di.Instance
	// Summary describes a context's registration surface.
	Summary = di.Summary
	// Context is an isolated registration/resolution boundary.
	Context = di.Context
)

const (
	// ScopeSingleton yields one instance per owning context.
	ScopeSingleton = di.Singleton
	// ScopeTransient yields a fresh instance per resolution.
	ScopeTransient = di.Transient
	// ScopeScoped yields one instance per scope key.
	ScopeScoped = di.Scoped
)

// ComponentDefinition describes one component to register: its type
// identity, scope, ordered dependency list, tags, export eligibility and
// the factory that constructs it.
type ComponentDefinition struct {
	TypeID       string
	Scope        Scope
	Dependencies []Dependency
	Tags         map[string]string
	Exportable   bool
	Factory      Factory
}

func (d ComponentDefinition) descriptor() di.Descriptor {
	return di.Descriptor{
		TypeID:       d.TypeID,
		Scope:        d.Scope,
		Dependencies: d.Dependencies,
		Tags:         d.Tags,
		Exportable:   d.Exportable,
		Factory:      d.Factory,
	}
}

// ComponentOption adjusts a definition produced by Provide.
type ComponentOption func(*ComponentDefinition)

// WithScope sets the component scope.
func WithScope(s Scope) ComponentOption {
	return func(d *ComponentDefinition) { d.Scope = s }
}

// WithTypeID overrides the derived type identifier.
func WithTypeID(typeID string) ComponentOption {
	return func(d *ComponentDefinition) { d.TypeID = typeID }
}

// WithTag attaches a tag.
func WithTag(key, value string) ComponentOption {
	return func(d *ComponentDefinition) {
		if d.Tags == nil {
			d.Tags = make(map[string]string)
		}
		d.Tags[key] = value
	}
}

// Exported marks the component visible to importing contexts.
func Exported() ComponentOption {
	return func(d *ComponentDefinition) { d.Exportable = true }
}

// WithOptionalDependency marks the dependency on typeID as optional: it
// resolves to nil instead of failing when the type is absent.
func WithOptionalDependency(typeID string) ComponentOption {
	return func(d *ComponentDefinition) {
		for i := range d.Dependencies {
			if d.Dependencies[i].TypeID == typeID {
				d.Dependencies[i].Optional = true
			}
		}
	}
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Provide derives a component definition from a constructor function. The
// type ID comes from the first return value, the dependency list from the
// parameter types in declared order. context.Context parameters receive the
// resolution context instead of becoming dependencies. The constructor may
// return (T) or (T, error).
//
// The resolver itself never reflects; it consumes the descriptor this
// produces. Definitions can equally be written by hand.
func Provide(constructor any, opts ...ComponentOption) (ComponentDefinition, error) {
	ctorType := reflect.TypeOf(constructor)
	if ctorType == nil || ctorType.Kind() != reflect.Func {
		return ComponentDefinition{}, errors.ErrInvalidDefinition("constructor",
			errors.New("constructor must be a function"))
	}
	if ctorType.NumOut() == 0 || ctorType.NumOut() > 2 {
		return ComponentDefinition{}, errors.ErrInvalidDefinition("constructor",
			errors.New("constructor must return (T) or (T, error)"))
	}
	if ctorType.NumOut() == 2 && !ctorType.Out(1).Implements(errorType) {
		return ComponentDefinition{}, errors.ErrInvalidDefinition("constructor",
			errors.New("second return value must be error"))
	}

	ctorValue := reflect.ValueOf(constructor)

	// depIndex maps constructor parameter position to position in the
	// resolved dependency slice; -1 marks context.Context parameters.
	depIndex := make([]int, ctorType.NumIn())
	var deps []Dependency
	for i := 0; i < ctorType.NumIn(); i++ {
		paramType := ctorType.In(i)
		if paramType == contextType {
			depIndex[i] = -1
			continue
		}
		depIndex[i] = len(deps)
		deps = append(deps, Dependency{TypeID: typeName(paramType)})
	}

	def := ComponentDefinition{
		TypeID:       typeName(ctorType.Out(0)),
		Scope:        ScopeSingleton,
		Dependencies: deps,
		Factory: func(ctx context.Context, resolved []any) (any, error) {
			params := make([]reflect.Value, ctorType.NumIn())
			for i := 0; i < ctorType.NumIn(); i++ {
				if depIndex[i] == -1 {
					params[i] = reflect.ValueOf(ctx)
					continue
				}
				v := resolved[depIndex[i]]
				if v == nil {
					params[i] = reflect.Zero(ctorType.In(i))
					continue
				}
				params[i] = reflect.ValueOf(v)
			}

			results := ctorValue.Call(params)
			if len(results) == 2 && !results[1].IsNil() {
				return nil, results[1].Interface().(error)
			}
			return results[0].Interface(), nil
		},
	}

	for _, opt := range opts {
		opt(&def)
	}
	return def, nil
}

// MustProvide is Provide that panics on a malformed constructor. Intended
// for package-level wiring where the constructor shape is static.
func MustProvide(constructor any, opts ...ComponentOption) ComponentDefinition {
	def, err := Provide(constructor, opts...)
	if err != nil {
		panic(fmt.Sprintf("loom: %v", err))
	}
	return def
}

// TypeName returns the stable type identifier used for registration and
// resolution of T.
func TypeName[T any]() string {
	return typeName(reflect.TypeOf((*T)(nil)).Elem())
}

// typeName interns a reflect type to its identifier: the package-qualified
// type string, with pointers collapsed to their element type.
func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
