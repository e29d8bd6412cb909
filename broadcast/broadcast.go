// Package broadcast is the same-device change channel: a fire-and-forget
// fan-out to every open view in this process, with no server hop.
package broadcast

import (
	"sync"

	"arcane-atlas/messages"
)

// Handler receives published messages. Delivery is at-most-once and
// unordered relative to network writes; handlers must tolerate seeing a
// notification before the corresponding store write is visible.
type Handler func(messages.BroadcastMessage)

// Manager fans messages out to subscribed handlers.
type Manager struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
}

// NewManager creates an empty broadcast manager.
func NewManager() *Manager {
	return &Manager{handlers: make(map[int]Handler)}
}

// Subscribe registers a handler and returns a function that removes it.
func (m *Manager) Subscribe(h Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.handlers[id] = h

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}
}

// Publish delivers msg to every subscribed handler. Delivery happens on a
// separate goroutine so a publisher holding its own view lock never
// deadlocks on its own subscription.
func (m *Manager) Publish(msg messages.BroadcastMessage) {
	m.mu.Lock()
	snapshot := make([]Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		snapshot = append(snapshot, h)
	}
	m.mu.Unlock()

	go func() {
		for _, h := range snapshot {
			h(msg)
		}
	}()
}

// Close drops all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = make(map[int]Handler)
}
