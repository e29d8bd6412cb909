package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"arcane-atlas/models"
	"arcane-atlas/persistence"
)

// ApplyRemote updates the cache in place from an inbound network
// notification, without touching the store. Routing is by document name:
// the world document replaces world metadata, the index document replaces
// the map index wholesale, anything else is merged as a single map
// document. A nil payload is a delete. Applying the same payload twice
// yields the same state.
//
// A malformed payload returns an error and leaves the cache untouched;
// the caller skips that one message and continues.
func (wc *WorldCache) ApplyRemote(ctx context.Context, worldID, name string, payload json.RawMessage) error {
	// Make sure an entry exists so a notification arriving before the
	// first local read still lands somewhere.
	if _, ok := wc.getEntry(worldID); !ok {
		wc.Load(ctx, worldID)
	}

	switch name {
	case persistence.WorldDocument:
		return wc.applyWorld(worldID, payload)
	case persistence.MapIndexDocument:
		return wc.applyIndex(worldID, payload)
	default:
		mapID, ok := persistence.MapIDFromDocument(name)
		if !ok {
			return fmt.Errorf("unroutable document name %q", name)
		}
		return wc.applyMap(worldID, mapID, payload)
	}
}

func (wc *WorldCache) applyWorld(worldID string, payload json.RawMessage) error {
	if payload == nil {
		wc.mu.Lock()
		delete(wc.worlds, worldID)
		wc.mu.Unlock()
		return nil
	}

	var world models.World
	if err := json.Unmarshal(payload, &world); err != nil {
		return fmt.Errorf("malformed world payload: %w", err)
	}
	if world.ID == "" {
		world.ID = worldID
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()
	e, ok := wc.worlds[worldID]
	if !ok {
		e = &entry{full: make(map[string]bool)}
		wc.worlds[worldID] = e
	}
	e.world = world
	return nil
}

func (wc *WorldCache) applyIndex(worldID string, payload json.RawMessage) error {
	var maps []models.Map
	if payload != nil {
		if err := json.Unmarshal(payload, &maps); err != nil {
			return fmt.Errorf("malformed map index payload: %w", err)
		}
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()
	e, ok := wc.worlds[worldID]
	if !ok {
		e = &entry{world: models.World{ID: worldID}, full: make(map[string]bool)}
		wc.worlds[worldID] = e
	}
	// The index carries lightweight records only, so every cached map
	// loses its full status and must go through EnsureFull again.
	e.maps = maps
	e.full = make(map[string]bool)
	return nil
}

func (wc *WorldCache) applyMap(worldID, mapID string, payload json.RawMessage) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	e, ok := wc.worlds[worldID]
	if !ok {
		e = &entry{world: models.World{ID: worldID}, full: make(map[string]bool)}
		wc.worlds[worldID] = e
	}

	if payload == nil {
		kept := e.maps[:0]
		for _, m := range e.maps {
			if m.ID != mapID {
				kept = append(kept, m)
			}
		}
		e.maps = kept
		delete(e.full, mapID)
		return nil
	}

	var m models.Map
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("malformed map payload: %w", err)
	}
	if m.ID == "" {
		return fmt.Errorf("map payload for %q carries no id", mapID)
	}
	upsertMap(e, m)
	// The broadcast carries the full document body.
	e.full[m.ID] = true
	return nil
}
