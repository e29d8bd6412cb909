// Package cache holds the per-process working copy of world state. The
// document store remains the single source of truth; the cache is the
// synchronous read path for views and is rebuilt on demand.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"arcane-atlas/models"
	"arcane-atlas/persistence"
)

// entry is the cached state for one world. full records which map ids
// currently hold their elements; index entries start out light and only
// EnsureFull promotes them.
type entry struct {
	world models.World
	maps  []models.Map
	full  map[string]bool
}

// WorldCache maps world ids to their cached state. It is owned by the
// composition root and is the only mutation surface over cached state;
// there is no package-level instance.
type WorldCache struct {
	store  persistence.DocumentStore
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	worlds map[string]*entry
}

// NewWorldCache creates an empty cache backed by the given store.
func NewWorldCache(store persistence.DocumentStore) *WorldCache {
	return &WorldCache{
		store:  store,
		logger: slog.With("component", "cache"),
		now:    time.Now,
		worlds: make(map[string]*entry),
	}
}

func (wc *WorldCache) getEntry(worldID string) (*entry, bool) {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	e, ok := wc.worlds[worldID]
	return e, ok
}

// Init hydrates the cache for every world the store knows about. Listing
// failures leave the cache empty; per-world failures skip that world.
func (wc *WorldCache) Init(ctx context.Context) {
	ids, err := wc.store.ListWorlds(ctx)
	if err != nil {
		wc.logger.Warn("could not list worlds, starting with empty cache", "error", err)
		return
	}
	for _, id := range ids {
		wc.Load(ctx, id)
	}
}

// Load returns the cached world and map index, hydrating from the store on
// first access. It never fails: on read errors the world degrades to an
// empty record so callers always have something to render.
func (wc *WorldCache) Load(ctx context.Context, worldID string) (models.World, []models.Map) {
	if e, ok := wc.getEntry(worldID); ok {
		wc.mu.RLock()
		defer wc.mu.RUnlock()
		return e.world, cloneMaps(e.maps)
	}

	world := models.World{ID: worldID}
	if data, err := wc.store.GetDocument(ctx, worldID, persistence.WorldDocument); err != nil {
		wc.logger.Warn("world document unavailable, using empty world",
			"world", worldID, "error", err)
	} else if err := json.Unmarshal(data, &world); err != nil {
		wc.logger.Warn("malformed world document", "world", worldID, "error", err)
		world = models.World{ID: worldID}
	}
	if world.ID == "" {
		world.ID = worldID
	}

	var maps []models.Map
	if data, err := wc.store.GetDocument(ctx, worldID, persistence.MapIndexDocument); err != nil {
		wc.logger.Warn("map index unavailable, using empty index",
			"world", worldID, "error", err)
	} else if err := json.Unmarshal(data, &maps); err != nil {
		wc.logger.Warn("malformed map index", "world", worldID, "error", err)
		maps = nil
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()
	if existing, ok := wc.worlds[worldID]; ok {
		// Another loader won the race; keep its state.
		return existing.world, cloneMaps(existing.maps)
	}
	wc.worlds[worldID] = &entry{world: world, maps: maps, full: make(map[string]bool)}
	return world, cloneMaps(maps)
}

// Refresh drops the cached entry and re-hydrates it from the store.
func (wc *WorldCache) Refresh(ctx context.Context, worldID string) (models.World, []models.Map) {
	wc.mu.Lock()
	delete(wc.worlds, worldID)
	wc.mu.Unlock()
	return wc.Load(ctx, worldID)
}

// AllWorlds returns every cached world record.
func (wc *WorldCache) AllWorlds() []models.World {
	wc.mu.RLock()
	defer wc.mu.RUnlock()

	out := make([]models.World, 0, len(wc.worlds))
	for _, e := range wc.worlds {
		out = append(out, e.world)
	}
	return out
}

// GetWorld returns the cached world record, if present.
func (wc *WorldCache) GetWorld(worldID string) (models.World, bool) {
	e, ok := wc.getEntry(worldID)
	if !ok {
		return models.World{}, false
	}
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return e.world, true
}

// MapsForWorld returns a copy of the cached map index.
func (wc *WorldCache) MapsForWorld(worldID string) []models.Map {
	e, ok := wc.getEntry(worldID)
	if !ok {
		return nil
	}
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return cloneMaps(e.maps)
}

// GetMap is a pure lookup into the index. The returned record may be the
// lightweight form; callers that need elements go through EnsureFull.
func (wc *WorldCache) GetMap(worldID, mapID string) (models.Map, bool) {
	if mapID == "" {
		return models.Map{}, false
	}
	wc.mu.RLock()
	defer wc.mu.RUnlock()

	e, ok := wc.worlds[worldID]
	if !ok {
		return models.Map{}, false
	}
	for _, m := range e.maps {
		if m.ID == mapID {
			return m, true
		}
	}
	return models.Map{}, false
}

// EnsureFull returns the full record for a map, fetching the per-map
// document when the cache only holds the index form. Fetch failures fall
// back to the lightweight entry: a degraded read beats blocking the view.
// A map absent from the index is still fetched once directly, which covers
// index/document write-ordering races.
func (wc *WorldCache) EnsureFull(ctx context.Context, worldID, mapID string) (models.Map, bool) {
	if mapID == "" {
		return models.Map{}, false
	}

	wc.mu.RLock()
	e, ok := wc.worlds[worldID]
	var indexed models.Map
	var haveIndexed, haveFull bool
	if ok {
		for _, m := range e.maps {
			if m.ID == mapID {
				indexed = m
				haveIndexed = true
				haveFull = e.full[mapID]
				break
			}
		}
	}
	wc.mu.RUnlock()
	if !ok {
		return models.Map{}, false
	}
	if haveFull {
		return indexed, true
	}

	data, err := wc.store.GetDocument(ctx, worldID, persistence.MapDocument(mapID))
	if err != nil {
		if haveIndexed {
			wc.logger.Warn("map document unavailable, returning index entry",
				"world", worldID, "map", mapID, "error", err)
			return indexed, true
		}
		return models.Map{}, false
	}

	var full models.Map
	if err := json.Unmarshal(data, &full); err != nil || full.ID == "" {
		wc.logger.Warn("malformed map document", "world", worldID, "map", mapID, "error", err)
		if haveIndexed {
			return indexed, true
		}
		return models.Map{}, false
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()
	if e, ok := wc.worlds[worldID]; ok {
		upsertMap(e, full)
		e.full[full.ID] = true
	}
	return full, true
}

// upsertMap merges a record into the index by id. Caller holds wc.mu.
func upsertMap(e *entry, m models.Map) {
	for i := range e.maps {
		if e.maps[i].ID == m.ID {
			e.maps[i] = m
			return
		}
	}
	e.maps = append(e.maps, m)
}

func cloneMaps(maps []models.Map) []models.Map {
	out := make([]models.Map, len(maps))
	copy(out, maps)
	return out
}

// indexSnapshot builds the lightweight index for persistence. Caller holds
// wc.mu.
func indexSnapshot(e *entry) []models.Map {
	index := make([]models.Map, 0, len(e.maps))
	for _, m := range e.maps {
		index = append(index, m.IndexEntry())
	}
	return index
}

// putJSON marshals and writes one document, logging failures. Writes are
// at-least-once with no rollback; the cache already holds the optimistic
// value.
func (wc *WorldCache) putJSON(ctx context.Context, worldID, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		wc.logger.Error("failed to encode document", "world", worldID, "doc", name, "error", err)
		return
	}
	if err := wc.store.PutDocument(ctx, worldID, name, data); err != nil {
		wc.logger.Error("failed to persist document", "world", worldID, "doc", name, "error", err)
	}
}

// CreateWorld creates a world record and persists its initial documents.
func (wc *WorldCache) CreateWorld(ctx context.Context, id, name string) models.World {
	created := wc.now()
	world := models.World{ID: id, Name: name, CreatedAt: created, UpdatedAt: created}

	wc.mu.Lock()
	wc.worlds[id] = &entry{world: world, full: make(map[string]bool)}
	wc.mu.Unlock()

	if err := wc.store.CreateWorld(ctx, id); err != nil {
		wc.logger.Error("failed to create world container", "world", id, "error", err)
	}
	wc.putJSON(ctx, id, persistence.WorldDocument, world)
	wc.putJSON(ctx, id, persistence.MapIndexDocument, []models.Map{})
	return world
}

// SaveWorld merges world metadata into the cache and persists it.
func (wc *WorldCache) SaveWorld(ctx context.Context, world models.World) {
	wc.mu.Lock()
	e, ok := wc.worlds[world.ID]
	if !ok {
		e = &entry{full: make(map[string]bool)}
		wc.worlds[world.ID] = e
	}
	e.world = world
	wc.mu.Unlock()

	wc.putJSON(ctx, world.ID, persistence.WorldDocument, world)
}

// DeleteWorld drops the cached entry and deletes the world on the store.
func (wc *WorldCache) DeleteWorld(ctx context.Context, worldID string) {
	wc.mu.Lock()
	delete(wc.worlds, worldID)
	wc.mu.Unlock()

	if err := wc.store.DeleteWorld(ctx, worldID); err != nil {
		wc.logger.Error("failed to delete world", "world", worldID, "error", err)
	}
}

// SaveMap stores a full map record: the per-map document first, then the
// recomputed lightweight index, then the world's updatedAt. The steps are
// not atomic; a crash in between leaves the index stale, which EnsureFull
// repairs lazily on the next read.
func (wc *WorldCache) SaveMap(ctx context.Context, worldID string, m models.Map) {
	wc.mu.Lock()
	e, ok := wc.worlds[worldID]
	if !ok {
		e = &entry{world: models.World{ID: worldID}, full: make(map[string]bool)}
		wc.worlds[worldID] = e
	}
	upsertMap(e, m)
	e.full[m.ID] = true
	e.world.UpdatedAt = wc.now()
	index := indexSnapshot(e)
	world := e.world
	wc.mu.Unlock()

	wc.putJSON(ctx, worldID, persistence.MapDocument(m.ID), m)
	wc.putJSON(ctx, worldID, persistence.MapIndexDocument, index)
	wc.putJSON(ctx, worldID, persistence.WorldDocument, world)
}

// DeleteMap removes a map from the cache and the store. If the world's
// root map was deleted, the root pointer moves to the level-0 map, else
// the first remaining map, else it is cleared.
func (wc *WorldCache) DeleteMap(ctx context.Context, worldID, mapID string) {
	wc.mu.Lock()
	e, ok := wc.worlds[worldID]
	if !ok {
		wc.mu.Unlock()
		return
	}
	kept := e.maps[:0]
	for _, m := range e.maps {
		if m.ID != mapID {
			kept = append(kept, m)
		}
	}
	e.maps = kept
	delete(e.full, mapID)
	if e.world.RootMapID == mapID {
		e.world.RootMapID = FallbackMapID(e.maps)
	}
	e.world.UpdatedAt = wc.now()
	index := indexSnapshot(e)
	world := e.world
	wc.mu.Unlock()

	if err := wc.store.DeleteDocument(ctx, worldID, persistence.MapDocument(mapID)); err != nil {
		wc.logger.Error("failed to delete map document", "world", worldID, "map", mapID, "error", err)
	}
	wc.putJSON(ctx, worldID, persistence.MapIndexDocument, index)
	wc.putJSON(ctx, worldID, persistence.WorldDocument, world)
}

// FallbackMapID picks the level-0 map, else the first map, else "".
func FallbackMapID(maps []models.Map) string {
	for _, m := range maps {
		if m.Level == 0 {
			return m.ID
		}
	}
	if len(maps) > 0 {
		return maps[0].ID
	}
	return ""
}
