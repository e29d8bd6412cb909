package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	gosync "sync"
	"time"

	"arcane-atlas/broadcast"
	"arcane-atlas/cache"
	"arcane-atlas/messages"
	"arcane-atlas/models"
	"arcane-atlas/persistence"
)

// Suppression windows, sized to outlast the write-broadcast round trip.
const (
	rootChangeSuppression = 1 * time.Second
	portalSuppression     = 2 * time.Second
	elementSuppression    = 3 * time.Second
)

// View is one open window onto a world: it tracks the currently selected
// map and reconciles it against inbound notifications. Notifications about
// a map the user is not viewing never change what they see.
//
// All notification handling and selection changes are serialized on one
// mutex, so a handler always reads the latest selection before issuing
// further fetches.
type View struct {
	worldID  string
	cache    *cache.WorldCache
	tabs     *broadcast.Manager
	suppress *Suppressor
	logger   *slog.Logger

	followTabs  bool
	persistRoot bool

	mu      gosync.Mutex
	world   models.World
	maps    []models.Map
	current *models.Map
}

// Option configures a View.
type Option func(*View)

// FollowTabs makes the view switch its selection when another view in the
// same process announces a map change. The player window follows; the
// manage window leads.
func FollowTabs() Option {
	return func(v *View) { v.followTabs = true }
}

// PersistRoot makes navigation persist the world's root map pointer, so a
// reload lands on the same map.
func PersistRoot() Option {
	return func(v *View) { v.persistRoot = true }
}

// withSuppressor swaps in a deterministic suppressor for tests.
func withSuppressor(s *Suppressor) Option {
	return func(v *View) { v.suppress = s }
}

// NewView creates a view over one world. The caller wires it up with
// tabs.Subscribe(v.HandleTabMessage) and routes network notifications to
// HandleDocumentChanged.
func NewView(worldID string, c *cache.WorldCache, tabs *broadcast.Manager, opts ...Option) *View {
	v := &View{
		worldID:  worldID,
		cache:    c,
		tabs:     tabs,
		suppress: NewSuppressor(),
		logger:   slog.With("component", "view", "world", worldID),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Open hydrates the view and selects the world's root map, falling back to
// the first available map.
func (v *View) Open(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.world, v.maps = v.cache.Load(ctx, v.worldID)

	pick := v.world.RootMapID
	if _, ok := v.cache.GetMap(v.worldID, pick); !ok {
		pick = cache.FallbackMapID(v.maps)
	}
	if pick == "" {
		return
	}
	if full, ok := v.cache.EnsureFull(ctx, v.worldID, pick); ok {
		v.current = &full
	}
}

// World returns the view's world snapshot.
func (v *View) World() models.World {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.world
}

// Maps returns the view's map index snapshot.
func (v *View) Maps() []models.Map {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Map, len(v.maps))
	copy(out, v.maps)
	return out
}

// CurrentMap returns the selected map, if any.
func (v *View) CurrentMap() (models.Map, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return models.Map{}, false
	}
	return *v.current, true
}

// HandleDocumentChanged processes one inbound network notification. This
// is the selective-refresh policy: apply the payload to the cache, then
// decide whether the selection must move, refresh, or stay untouched.
func (v *View) HandleDocumentChanged(ctx context.Context, name string, payload json.RawMessage) {
	if v.suppress.Consume() {
		v.logger.Debug("dropped own echo", "doc", name)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if mapID, ok := persistence.MapIDFromDocument(name); ok {
		if err := v.cache.ApplyRemote(ctx, v.worldID, name, payload); err != nil {
			v.logger.Warn("skipping malformed notification", "doc", name, "error", err)
			return
		}
		v.onMapDocument(ctx, mapID)
		return
	}

	if name == persistence.WorldDocument || name == persistence.MapIndexDocument {
		if err := v.cache.ApplyRemote(ctx, v.worldID, name, payload); err != nil {
			v.logger.Warn("skipping malformed notification", "doc", name, "error", err)
			return
		}
		v.onIndexOrWorldDocument(ctx)
		return
	}

	// Unrecognized notification: defensive full re-hydration.
	v.logger.Warn("unrecognized notification, re-hydrating", "doc", name)
	v.world, v.maps = v.cache.Refresh(ctx, v.worldID)
	if v.current != nil {
		v.refreshOrHealSelection(ctx)
	}
}

// onMapDocument handles a notification about a single map document.
func (v *View) onMapDocument(ctx context.Context, mapID string) {
	v.maps = v.cache.MapsForWorld(v.worldID)

	switch {
	case v.current == nil:
		pick := mapID
		if _, ok := v.cache.GetMap(v.worldID, pick); !ok {
			pick = cache.FallbackMapID(v.maps)
		}
		if pick == "" {
			return
		}
		if full, ok := v.cache.EnsureFull(ctx, v.worldID, pick); ok {
			v.current = &full
		}
	case v.current.ID == mapID:
		v.refreshOrHealSelection(ctx)
	default:
		// The user is viewing a different map; leave their selection alone.
	}
}

// onIndexOrWorldDocument handles notifications about the index or world
// metadata documents.
func (v *View) onIndexOrWorldDocument(ctx context.Context) {
	if w, ok := v.cache.GetWorld(v.worldID); ok {
		v.world = w
	}
	v.maps = v.cache.MapsForWorld(v.worldID)
	if v.current != nil {
		v.refreshOrHealSelection(ctx)
	}
}

// refreshOrHealSelection re-fetches the selected map. EnsureFull tries the
// per-map document directly even when the map vanished from the index,
// which covers index/document write-ordering races; only when that fetch
// also fails does the selection fall back. Caller holds v.mu.
func (v *View) refreshOrHealSelection(ctx context.Context) {
	if full, ok := v.cache.EnsureFull(ctx, v.worldID, v.current.ID); ok {
		v.current = &full
		return
	}
	v.fallbackSelection(ctx)
}

// fallbackSelection moves the selection to the level-0 map, else the first
// remaining map, else clears it. Caller holds v.mu.
func (v *View) fallbackSelection(ctx context.Context) {
	id := cache.FallbackMapID(v.maps)
	if id == "" {
		v.current = nil
		return
	}
	if full, ok := v.cache.EnsureFull(ctx, v.worldID, id); ok {
		v.current = &full
		return
	}
	if light, ok := v.cache.GetMap(v.worldID, id); ok {
		v.current = &light
		return
	}
	v.current = nil
}

// HandleTabMessage processes a cross-tab notification. Messages carry
// identifiers only, so all state comes from the shared cache.
func (v *View) HandleTabMessage(msg messages.BroadcastMessage) {
	if msg.WorldID != v.worldID || msg.Type == messages.MessageTypeCreaturePOV {
		return
	}
	ctx := context.Background()

	v.mu.Lock()
	defer v.mu.Unlock()

	switch msg.Type {
	case messages.MessageTypeMapUpdate:
		v.maps = v.cache.MapsForWorld(v.worldID)
		if v.followTabs && msg.MapID != "" {
			if full, ok := v.cache.EnsureFull(ctx, v.worldID, msg.MapID); ok {
				v.current = &full
			}
		}
	case messages.MessageTypeMapDeleted:
		v.maps = v.cache.MapsForWorld(v.worldID)
		if v.current != nil && v.current.ID == msg.MapID {
			v.fallbackSelection(ctx)
		}
	case messages.MessageTypeElementUpdate:
		if v.current != nil && v.current.ID == msg.MapID {
			if full, ok := v.cache.EnsureFull(ctx, v.worldID, v.current.ID); ok {
				v.current = &full
			}
		}
	case messages.MessageTypeWorldUpdate:
		if w, ok := v.cache.GetWorld(v.worldID); ok {
			v.world = w
		}
		if v.followTabs && v.world.RootMapID != "" {
			if full, ok := v.cache.EnsureFull(ctx, v.worldID, v.world.RootMapID); ok {
				v.current = &full
			}
		}
	case messages.MessageTypePlayerUpdate, messages.MessageTypePlayerDeleted:
		if w, ok := v.cache.GetWorld(v.worldID); ok {
			v.world = w
		}
	}
}
