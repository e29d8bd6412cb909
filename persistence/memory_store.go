package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory. It backs tests and can
// serve as a throwaway store for local experimentation.
type MemoryStore struct {
	mu     sync.RWMutex
	worlds map[string]map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		worlds: make(map[string]map[string]json.RawMessage),
	}
}

// GetDocument loads a document body.
func (ms *MemoryStore) GetDocument(_ context.Context, worldID, name string) (json.RawMessage, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	docs, ok := ms.worlds[worldID]
	if !ok {
		return nil, ErrNotFound
	}
	body, ok := docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(body))
	copy(out, body)
	return out, nil
}

// PutDocument stores a copy of the document body.
func (ms *MemoryStore) PutDocument(_ context.Context, worldID, name string, body json.RawMessage) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	docs, ok := ms.worlds[worldID]
	if !ok {
		docs = make(map[string]json.RawMessage)
		ms.worlds[worldID] = docs
	}
	stored := make(json.RawMessage, len(body))
	copy(stored, body)
	docs[name] = stored
	return nil
}

// DeleteDocument removes a document if present.
func (ms *MemoryStore) DeleteDocument(_ context.Context, worldID, name string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if docs, ok := ms.worlds[worldID]; ok {
		delete(docs, name)
	}
	return nil
}

// ListWorlds returns all world ids in stable order.
func (ms *MemoryStore) ListWorlds(_ context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	worlds := make([]string, 0, len(ms.worlds))
	for id := range ms.worlds {
		worlds = append(worlds, id)
	}
	sort.Strings(worlds)
	return worlds, nil
}

// CreateWorld registers a world id.
func (ms *MemoryStore) CreateWorld(_ context.Context, worldID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.worlds[worldID]; !ok {
		ms.worlds[worldID] = make(map[string]json.RawMessage)
	}
	return nil
}

// DeleteWorld removes a world and all of its documents.
func (ms *MemoryStore) DeleteWorld(_ context.Context, worldID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.worlds, worldID)
	return nil
}

// Close closes the store (no-op for the memory store).
func (ms *MemoryStore) Close() error {
	return nil
}
