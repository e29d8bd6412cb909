package cache

import (
	"context"
	"errors"

	"arcane-atlas/models"
)

// Domain errors for element and player mutations.
var (
	ErrMapNotFound   = errors.New("map not found")
	ErrWorldNotFound = errors.New("world not found")
)

// AddElement appends an element to a map and persists the map. The map is
// promoted to its full form first so a lightweight index entry never
// clobbers elements written by someone else.
func (wc *WorldCache) AddElement(ctx context.Context, worldID, mapID string, el models.InteractiveElement) error {
	m, ok := wc.EnsureFull(ctx, worldID, mapID)
	if !ok {
		return ErrMapNotFound
	}
	m.Elements = append(cloneElements(m.Elements), el)
	wc.SaveMap(ctx, worldID, m)
	return nil
}

// cloneElements copies the element slice so mutations never write through
// to the slice still referenced by the cache.
func cloneElements(els []models.InteractiveElement) []models.InteractiveElement {
	out := make([]models.InteractiveElement, len(els))
	copy(out, els)
	return out
}

func clonePlayers(players []models.Player) []models.Player {
	out := make([]models.Player, len(players))
	copy(out, players)
	return out
}

// UpdateElement replaces an element by id, appending if absent, and
// persists the map.
func (wc *WorldCache) UpdateElement(ctx context.Context, worldID, mapID string, el models.InteractiveElement) error {
	m, ok := wc.EnsureFull(ctx, worldID, mapID)
	if !ok {
		return ErrMapNotFound
	}
	m.Elements = cloneElements(m.Elements)
	if i := m.FindElement(el.ID); i >= 0 {
		m.Elements[i] = el
	} else {
		m.Elements = append(m.Elements, el)
	}
	wc.SaveMap(ctx, worldID, m)
	return nil
}

// DeleteElement removes an element by id and persists the map.
func (wc *WorldCache) DeleteElement(ctx context.Context, worldID, mapID, elementID string) error {
	m, ok := wc.EnsureFull(ctx, worldID, mapID)
	if !ok {
		return ErrMapNotFound
	}
	kept := make([]models.InteractiveElement, 0, len(m.Elements))
	for _, e := range m.Elements {
		if e.ID != elementID {
			kept = append(kept, e)
		}
	}
	m.Elements = kept
	wc.SaveMap(ctx, worldID, m)
	return nil
}

// AddPlayer appends a player to the world roster and persists the world.
func (wc *WorldCache) AddPlayer(ctx context.Context, worldID string, p models.Player) error {
	w, ok := wc.GetWorld(worldID)
	if !ok {
		return ErrWorldNotFound
	}
	w.Players = append(clonePlayers(w.Players), p)
	w.UpdatedAt = wc.now()
	wc.SaveWorld(ctx, w)
	return nil
}

// UpdatePlayer replaces a player by id, appending if absent, and persists
// the world.
func (wc *WorldCache) UpdatePlayer(ctx context.Context, worldID string, p models.Player) error {
	w, ok := wc.GetWorld(worldID)
	if !ok {
		return ErrWorldNotFound
	}
	w.Players = clonePlayers(w.Players)
	if i := w.FindPlayer(p.ID); i >= 0 {
		w.Players[i] = p
	} else {
		w.Players = append(w.Players, p)
	}
	w.UpdatedAt = wc.now()
	wc.SaveWorld(ctx, w)
	return nil
}

// DeletePlayer removes a player by id and persists the world.
func (wc *WorldCache) DeletePlayer(ctx context.Context, worldID, playerID string) error {
	w, ok := wc.GetWorld(worldID)
	if !ok {
		return ErrWorldNotFound
	}
	kept := make([]models.Player, 0, len(w.Players))
	for _, p := range w.Players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	w.Players = kept
	w.UpdatedAt = wc.now()
	wc.SaveWorld(ctx, w)
	return nil
}
