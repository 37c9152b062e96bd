package cart

import "sync"

// Manager hands out one Store per session so independent sessions never share
// cart state. Stores are created lazily on first use.
type Manager struct {
	mu      sync.Mutex
	stores  map[string]*Store
	limits  Limits
	pricing PricingPolicy
}

func NewManager(limits Limits, pricing PricingPolicy) *Manager {
	return &Manager{
		stores:  make(map[string]*Store),
		limits:  limits,
		pricing: pricing,
	}
}

// StoreFor returns the session's cart, creating it if needed.
func (m *Manager) StoreFor(sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[sessionID]; ok {
		return store
	}
	store := NewStore(sessionID, m.limits, m.pricing)
	m.stores[sessionID] = store
	return store
}

// Drop forgets the session's cart, e.g. after checkout or logout.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, sessionID)
}
