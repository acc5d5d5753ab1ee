package di

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loomdi/loom/errors"
)

// Store is the component descriptor store of a single context. Descriptors
// are immutable once registered; the store itself is safe for concurrent use.
type Store struct {
	contextName string
	log         *zap.Logger

	mu          sync.RWMutex
	descriptors map[string]*Descriptor
	order       []string
}

// NewStore creates a descriptor store for the named context.
func NewStore(contextName string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		contextName: contextName,
		log:         log,
		descriptors: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor to the store. Registering the same type ID
// twice in one context is an error.
func (s *Store) Register(d Descriptor) error {
	if d.TypeID == "" {
		return errors.ErrInvalidDefinition("component", errors.New("type ID must not be empty"))
	}
	if d.Factory == nil {
		return errors.ErrInvalidDefinition(d.TypeID, errors.ErrNilFactory)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.descriptors[d.TypeID]; exists {
		return errors.ErrDuplicateRegistration(d.TypeID, s.contextName)
	}

	d.registeredAt = time.Now()
	stored := d
	s.descriptors[d.TypeID] = &stored
	s.order = append(s.order, d.TypeID)

	s.log.Debug("component registered",
		zap.String("context", s.contextName),
		zap.String("type_id", d.TypeID),
		zap.String("scope", d.Scope.String()),
		zap.Int("dependencies", len(d.Dependencies)),
		zap.Bool("exportable", d.Exportable),
	)

	return nil
}

// Lookup returns the descriptor for a type ID.
func (s *Store) Lookup(typeID string) (*Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[typeID]
	return d, ok
}

// TypeIDs returns all registered type IDs in registration order.
func (s *Store) TypeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ByTag returns descriptors carrying the given tag value, in registration
// order.
func (s *Store) ByTag(key, value string) []*Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Descriptor
	for _, typeID := range s.order {
		d := s.descriptors[typeID]
		if d.Tags[key] == value {
			out = append(out, d)
		}
	}
	return out
}

// Exported returns the type IDs forming the context's export surface.
func (s *Store) Exported() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, typeID := range s.order {
		if s.descriptors[typeID].Exportable {
			out = append(out, typeID)
		}
	}
	return out
}

// Unregister removes a descriptor. Returns false if the type was not
// registered. Only valid before the owning context starts.
func (s *Store) Unregister(typeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.descriptors[typeID]; !ok {
		return false
	}
	delete(s.descriptors, typeID)
	for i, id := range s.order {
		if id == typeID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes all descriptors.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors = make(map[string]*Descriptor)
	s.order = nil
}

// Count returns the number of registered descriptors.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.descriptors)
}
