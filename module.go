package loom

import (
	"github.com/loomdi/loom/errors"
)

// ImportDeclaration declares that a context consumes a component owned by
// another named context.
type ImportDeclaration struct {
	// TypeID is the provider type ID in the source context.
	TypeID string
	// FromContext names the owning context.
	FromContext string
	// Alias renames the component locally. Empty means the provider name.
	Alias string
	// Optional imports are skipped silently when the source context or the
	// export is missing. Imports are required by default.
	Optional bool
}

// LocalName returns the name the import is known by in the importing
// context.
func (d ImportDeclaration) LocalName() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.TypeID
}

// Key returns a unique identifier for the import edge.
func (d ImportDeclaration) Key() string {
	return d.FromContext + ":" + d.TypeID
}

// ModuleDefinition declares one context: its name, the components it owns
// and the imports it consumes. Export eligibility lives on the component
// definitions.
type ModuleDefinition struct {
	Name       string
	Components []ComponentDefinition
	Imports    []ImportDeclaration
}

// Validate checks the definition for structural problems that do not need
// knowledge of other modules.
func (m ModuleDefinition) Validate() error {
	if m.Name == "" {
		return errors.ErrInvalidDefinition("module", errors.New("module name must not be empty"))
	}
	seen := make(map[string]bool, len(m.Components))
	for _, c := range m.Components {
		if c.TypeID == "" {
			return errors.ErrInvalidDefinition(m.Name, errors.New("component type ID must not be empty"))
		}
		if seen[c.TypeID] {
			return errors.ErrDuplicateRegistration(c.TypeID, m.Name)
		}
		seen[c.TypeID] = true
	}
	for _, imp := range m.Imports {
		if imp.TypeID == "" || imp.FromContext == "" {
			return errors.ErrInvalidDefinition(m.Name, errors.New("import needs a type ID and a source context"))
		}
		if imp.FromContext == m.Name {
			return errors.ErrInvalidDefinition(m.Name, errors.New("context cannot import from itself"))
		}
	}
	return nil
}

// contextDependencies returns the distinct context names this module
// imports from, in declaration order. Optional imports still order the
// build: if the source exists it must be running first.
func (m ModuleDefinition) contextDependencies() []string {
	var out []string
	seen := make(map[string]bool)
	for _, imp := range m.Imports {
		if !seen[imp.FromContext] {
			seen[imp.FromContext] = true
			out = append(out, imp.FromContext)
		}
	}
	return out
}
