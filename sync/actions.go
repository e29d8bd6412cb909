package sync

import (
	"context"
	"errors"
	"time"

	"arcane-atlas/cache"
	"arcane-atlas/messages"
	"arcane-atlas/models"
)

// ErrNoSelection is returned by operations that need a selected map.
var ErrNoSelection = errors.New("no map selected")

// SelectMap switches the view to the given map and, for a leading view,
// persists it as the world's root map so reloads land there.
func (v *View) SelectMap(ctx context.Context, mapID string) error {
	full, ok := v.cache.EnsureFull(ctx, v.worldID, mapID)
	if !ok {
		return cache.ErrMapNotFound
	}

	v.mu.Lock()
	v.current = &full
	v.maps = v.cache.MapsForWorld(v.worldID)
	v.persistRootLocked(ctx, mapID, rootChangeSuppression)
	v.mu.Unlock()

	v.tabs.Publish(messages.BroadcastMessage{
		Type:    messages.MessageTypeMapUpdate,
		WorldID: v.worldID,
		MapID:   mapID,
	})
	return nil
}

// persistRootLocked updates the world's root map pointer under suppression,
// since the resulting world-metadata broadcast would only echo our own
// change. Caller holds v.mu.
func (v *View) persistRootLocked(ctx context.Context, mapID string, window time.Duration) {
	if !v.persistRoot {
		return
	}
	w := v.world
	w.RootMapID = mapID
	v.world = w
	v.suppress.Arm(window)
	v.cache.SaveWorld(ctx, w)
}

// ActivateElement handles a click on a map element. Portals navigate to
// their target map; creatures publish a point-of-view message for the POV
// window. Everything else is inert here.
func (v *View) ActivateElement(ctx context.Context, el models.InteractiveElement) error {
	if el.IsCreature() {
		v.tabs.Publish(messages.BroadcastMessage{
			Type:         messages.MessageTypeCreaturePOV,
			WorldID:      v.worldID,
			ElementID:    el.ID,
			ImageURL:     el.ImageURL,
			CreatureName: el.Name,
		})
		return nil
	}
	if el.Type == models.ElementPortal && el.TargetMapID != "" {
		return v.activatePortal(ctx, el.TargetMapID)
	}
	return nil
}

// activatePortal resolves the target map and updates the selection before
// anything else, so an in-flight notification handler reads the new
// selection rather than a stale one.
func (v *View) activatePortal(ctx context.Context, targetMapID string) error {
	full, ok := v.cache.EnsureFull(ctx, v.worldID, targetMapID)
	if !ok {
		return cache.ErrMapNotFound
	}

	v.mu.Lock()
	v.current = &full
	v.maps = v.cache.MapsForWorld(v.worldID)
	v.persistRootLocked(ctx, targetMapID, portalSuppression)
	v.mu.Unlock()

	v.tabs.Publish(messages.BroadcastMessage{
		Type:    messages.MessageTypeMapUpdate,
		WorldID: v.worldID,
		MapID:   targetMapID,
	})
	return nil
}

// SaveMap persists a full map record and selects it.
func (v *View) SaveMap(ctx context.Context, m models.Map) {
	v.mu.Lock()
	v.suppress.Arm(elementSuppression)
	v.cache.SaveMap(ctx, v.worldID, m)
	v.maps = v.cache.MapsForWorld(v.worldID)
	if w, ok := v.cache.GetWorld(v.worldID); ok {
		v.world = w
	}
	v.current = &m
	v.mu.Unlock()

	v.tabs.Publish(messages.BroadcastMessage{
		Type:    messages.MessageTypeMapUpdate,
		WorldID: v.worldID,
		MapID:   m.ID,
	})
}

// DeleteMap removes a map. If it was selected, the selection falls back to
// the level-0 map, then the first remaining map, then none. The cache also
// repairs the world's root pointer if it referenced the deleted map.
func (v *View) DeleteMap(ctx context.Context, mapID string) {
	v.mu.Lock()
	v.suppress.Arm(portalSuppression)
	v.cache.DeleteMap(ctx, v.worldID, mapID)
	v.maps = v.cache.MapsForWorld(v.worldID)
	if w, ok := v.cache.GetWorld(v.worldID); ok {
		v.world = w
	}
	if v.current != nil && v.current.ID == mapID {
		v.fallbackSelection(ctx)
	}
	v.mu.Unlock()

	v.tabs.Publish(messages.BroadcastMessage{
		Type:    messages.MessageTypeMapDeleted,
		WorldID: v.worldID,
		MapID:   mapID,
	})
}

// AddElement adds an element to the selected map.
func (v *View) AddElement(ctx context.Context, el models.InteractiveElement) error {
	v.mu.Lock()
	if v.current == nil {
		v.mu.Unlock()
		return ErrNoSelection
	}
	mapID := v.current.ID
	el.WorldID = v.worldID
	el.MapID = mapID

	v.suppress.Arm(elementSuppression)
	err := v.cache.AddElement(ctx, v.worldID, mapID, el)
	if err == nil {
		if full, ok := v.cache.EnsureFull(ctx, v.worldID, mapID); ok {
			v.current = &full
		}
		v.maps = v.cache.MapsForWorld(v.worldID)
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.tabs.Publish(messages.BroadcastMessage{
		Type:      messages.MessageTypeElementUpdate,
		WorldID:   v.worldID,
		MapID:     mapID,
		ElementID: el.ID,
	})
	return nil
}

// ToggleElementVisibility flips an element's visibility on the selected
// map. The selection is updated synchronously before the write goes out so
// the notification handler never reads the stale element list.
func (v *View) ToggleElementVisibility(ctx context.Context, elementID string) error {
	v.mu.Lock()
	if v.current == nil {
		v.mu.Unlock()
		return ErrNoSelection
	}
	m := *v.current
	i := m.FindElement(elementID)
	if i < 0 {
		v.mu.Unlock()
		return cache.ErrMapNotFound
	}
	elements := make([]models.InteractiveElement, len(m.Elements))
	copy(elements, m.Elements)
	elements[i].Visible = !elements[i].Visible
	m.Elements = elements
	v.current = &m
	updated := elements[i]

	v.suppress.Arm(elementSuppression)
	err := v.cache.UpdateElement(ctx, v.worldID, m.ID, updated)
	if err == nil {
		if full, ok := v.cache.EnsureFull(ctx, v.worldID, m.ID); ok {
			v.current = &full
		}
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.tabs.Publish(messages.BroadcastMessage{
		Type:      messages.MessageTypeElementUpdate,
		WorldID:   v.worldID,
		MapID:     m.ID,
		ElementID: elementID,
	})
	return nil
}

// UpdatePlayer upserts a world player and announces it.
func (v *View) UpdatePlayer(ctx context.Context, p models.Player) error {
	v.mu.Lock()
	v.suppress.Arm(rootChangeSuppression)
	err := v.cache.UpdatePlayer(ctx, v.worldID, p)
	if w, ok := v.cache.GetWorld(v.worldID); ok {
		v.world = w
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.tabs.Publish(messages.BroadcastMessage{
		Type:     messages.MessageTypePlayerUpdate,
		WorldID:  v.worldID,
		PlayerID: p.ID,
	})
	return nil
}

// DeletePlayer removes a world player and announces it.
func (v *View) DeletePlayer(ctx context.Context, playerID string) error {
	v.mu.Lock()
	v.suppress.Arm(rootChangeSuppression)
	err := v.cache.DeletePlayer(ctx, v.worldID, playerID)
	if w, ok := v.cache.GetWorld(v.worldID); ok {
		v.world = w
	}
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.tabs.Publish(messages.BroadcastMessage{
		Type:     messages.MessageTypePlayerDeleted,
		WorldID:  v.worldID,
		PlayerID: playerID,
	})
	return nil
}
