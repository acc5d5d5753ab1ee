package di

import (
	"sync"

	"go.uber.org/zap"

	"github.com/loomdi/loom/errors"
)

// ScopeManager owns instance identity per scope semantics. Singleton
// instances are cached by type ID, scoped instances by (scope key, type ID),
// transient instances are never cached.
type ScopeManager struct {
	contextName string
	log         *zap.Logger
	metrics     *Metrics

	mu         sync.Mutex
	singletons map[string]*Instance
	scoped     map[string]map[string]*Instance
	// scopedOrder preserves creation order per scope key for disposal.
	scopedOrder map[string][]*Instance
	// order preserves singleton creation order for lifecycle sequencing.
	order []*Instance
	// locks holds per-cache-key creation locks so concurrent first
	// resolutions share a single factory invocation.
	locks map[string]*sync.Mutex
}

// NewScopeManager creates a scope manager for the named context.
func NewScopeManager(contextName string, log *zap.Logger, metrics *Metrics) *ScopeManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScopeManager{
		contextName: contextName,
		log:         log,
		metrics:     metrics,
		singletons:  make(map[string]*Instance),
		scoped:      make(map[string]map[string]*Instance),
		scopedOrder: make(map[string][]*Instance),
		locks:       make(map[string]*sync.Mutex),
	}
}

// GetOrCreate returns the instance for the type under the given scope
// semantics, invoking factory when a new instance is needed. The boolean
// reports whether the instance was created by this call. A failed factory
// is never cached; the next resolution retries.
func (m *ScopeManager) GetOrCreate(typeID string, scope Scope, scopeKey string, factory func() (any, error)) (*Instance, bool, error) {
	switch scope {
	case Transient:
		return m.create(typeID, scope, factory)

	case Singleton:
		m.mu.Lock()
		if inst, ok := m.singletons[typeID]; ok {
			m.mu.Unlock()
			return inst, false, nil
		}
		lock := m.creationLock(typeID)
		m.mu.Unlock()

		lock.Lock()
		defer lock.Unlock()

		// Double-check under the creation lock: a concurrent caller may
		// have finished the factory while we waited.
		m.mu.Lock()
		if inst, ok := m.singletons[typeID]; ok {
			m.mu.Unlock()
			return inst, false, nil
		}
		m.mu.Unlock()

		inst, created, err := m.create(typeID, scope, factory)
		if err != nil {
			return nil, false, err
		}

		m.mu.Lock()
		m.singletons[typeID] = inst
		m.order = append(m.order, inst)
		m.mu.Unlock()
		return inst, created, nil

	case Scoped:
		if scopeKey == "" {
			return nil, false, errors.ErrComponentResolution(typeID,
				errors.New("scoped component requires a scope key"))
		}

		cacheKey := scopeKey + "\x00" + typeID

		m.mu.Lock()
		if inst, ok := m.scoped[scopeKey][typeID]; ok {
			m.mu.Unlock()
			return inst, false, nil
		}
		lock := m.creationLock(cacheKey)
		m.mu.Unlock()

		lock.Lock()
		defer lock.Unlock()

		m.mu.Lock()
		if inst, ok := m.scoped[scopeKey][typeID]; ok {
			m.mu.Unlock()
			return inst, false, nil
		}
		m.mu.Unlock()

		inst, created, err := m.create(typeID, scope, factory)
		if err != nil {
			return nil, false, err
		}

		m.mu.Lock()
		if m.scoped[scopeKey] == nil {
			m.scoped[scopeKey] = make(map[string]*Instance)
		}
		m.scoped[scopeKey][typeID] = inst
		m.scopedOrder[scopeKey] = append(m.scopedOrder[scopeKey], inst)
		m.mu.Unlock()
		return inst, created, nil

	default:
		return nil, false, errors.ErrComponentResolution(typeID, errors.ErrUnknownScope)
	}
}

func (m *ScopeManager) create(typeID string, scope Scope, factory func() (any, error)) (*Instance, bool, error) {
	value, err := factory()
	if err != nil {
		// Cycle errors surface with their full chain intact; wrapping them
		// here would bury the chain under a generic initialization error.
		if errors.IsCircularDependency(err) {
			return nil, false, err
		}
		return nil, false, errors.ErrComponentInitialization(typeID, err)
	}

	inst := newInstance(typeID, m.contextName, scope, value)
	if m.metrics != nil {
		m.metrics.InstanceCreated(m.contextName, scope)
	}
	m.log.Debug("instance created",
		zap.String("context", m.contextName),
		zap.String("type_id", typeID),
		zap.String("scope", scope.String()),
		zap.String("instance_id", inst.ID),
	)
	return inst, true, nil
}

func (m *ScopeManager) creationLock(key string) *sync.Mutex {
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// Singleton returns the cached singleton instance for a type, if any.
func (m *ScopeManager) Singleton(typeID string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.singletons[typeID]
	return inst, ok
}

// Singletons returns cached singletons in creation order.
func (m *ScopeManager) Singletons() []*Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Instance, len(m.order))
	copy(out, m.order)
	return out
}

// Evict removes a singleton whose initialization failed so that the next
// resolution retries.
func (m *ScopeManager) Evict(inst *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.singletons[inst.TypeID]; ok && cached == inst {
		delete(m.singletons, inst.TypeID)
		for i, o := range m.order {
			if o == inst {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
}

// ScopeKeys returns the active scope keys.
func (m *ScopeManager) ScopeKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.scopedOrder))
	for key := range m.scopedOrder {
		keys = append(keys, key)
	}
	return keys
}

// TakeScope removes and returns the instances of a scope key in creation
// order. The caller is responsible for disposing them.
func (m *ScopeManager) TakeScope(scopeKey string) []*Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	instances := m.scopedOrder[scopeKey]
	delete(m.scoped, scopeKey)
	delete(m.scopedOrder, scopeKey)
	return instances
}

// Clear drops all cached instances.
func (m *ScopeManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.singletons = make(map[string]*Instance)
	m.scoped = make(map[string]map[string]*Instance)
	m.scopedOrder = make(map[string][]*Instance)
	m.order = nil
}
