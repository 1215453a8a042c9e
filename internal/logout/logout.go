package logout

import "sync"

// Handler defines a function that handles a forced logout
type Handler func(reason string)

// DefaultHandler panics with a descriptive message
// This will be caught by the recover() in the application's graceful shutdown handler
func DefaultHandler(reason string) {
	panic("LICENSE GUARD: forced logout: " + reason)
}

// Manager handles forced-logout behavior
type Manager struct {
	handler Handler
	mu      sync.RWMutex
}

// New creates a new logout manager with the default handler
func New() *Manager {
	return &Manager{
		handler: DefaultHandler,
	}
}

// SetHandler updates the forced-logout handler
// This should be called during application startup, before the guard runs
func (m *Manager) SetHandler(handler Handler) {
	if handler == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Trigger invokes the forced-logout handler
func (m *Manager) Trigger(reason string) {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()

	handler(reason)
}
