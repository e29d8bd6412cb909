package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"arcane-atlas/broadcast"
	"arcane-atlas/cache"
	"arcane-atlas/models"
	"arcane-atlas/persistence"
)

// notify replays the server-side broadcast for one document: the payload
// is whatever the store currently holds, nil if the document is gone.
func notify(t *testing.T, store persistence.DocumentStore, v *View, worldID, name string) {
	t.Helper()
	body, err := store.GetDocument(context.Background(), worldID, name)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("reading %s: %v", name, err)
	}
	v.HandleDocumentChanged(context.Background(), name, body)
}

// notifyAll replays the three broadcasts a SaveMap produces, in write order.
func notifyAll(t *testing.T, store persistence.DocumentStore, v *View, worldID, mapID string) {
	t.Helper()
	notify(t, store, v, worldID, persistence.MapDocument(mapID))
	notify(t, store, v, worldID, persistence.MapIndexDocument)
	notify(t, store, v, worldID, persistence.WorldDocument)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}

// seedCampaign writes a world with maps M1 (root, level 0, one visible
// element E1) and M3 (level 0) through its own cache.
func seedCampaign(t *testing.T, store persistence.DocumentStore) {
	t.Helper()
	ctx := context.Background()
	seed := cache.NewWorldCache(store)
	w := seed.CreateWorld(ctx, "W1", "Campaign")
	seed.SaveMap(ctx, "W1", models.Map{
		ID: "M1", WorldID: "W1", Name: "Overworld", Level: 0,
		Elements: []models.InteractiveElement{
			{ID: "E1", WorldID: "W1", MapID: "M1", Type: models.ElementNPC, Name: "guard", Visible: true},
		},
	})
	seed.SaveMap(ctx, "W1", models.Map{ID: "M3", WorldID: "W1", Name: "Caves", Level: 0})
	w, _ = seed.GetWorld("W1")
	w.RootMapID = "M1"
	seed.SaveWorld(ctx, w)
}

func newTestView(store persistence.DocumentStore, opts ...Option) *View {
	opts = append(opts, withSuppressor(NewSuppressorWithClock(func() time.Time { return time.Unix(0, 0) })))
	return NewView("W1", cache.NewWorldCache(store), broadcast.NewManager(), opts...)
}

func TestOpenSelectsRootMap(t *testing.T) {
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	v := newTestView(store)
	v.Open(context.Background())

	cur, ok := v.CurrentMap()
	if !ok {
		t.Fatal("no map selected after Open")
	}
	assert.Equal(t, cur.ID, "M1")
	assert.Equal(t, len(cur.Elements), 1)
}

func TestNotificationAboutOtherMapKeepsSelection(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	v := newTestView(store)
	v.Open(ctx)

	// A different GM saves a brand-new map elsewhere in the world.
	writer := cache.NewWorldCache(store)
	writer.Load(ctx, "W1")
	writer.SaveMap(ctx, "W1", models.Map{ID: "M9", WorldID: "W1", Name: "Crypt", Level: 2, ParentMapID: "M3"})
	notifyAll(t, store, v, "W1", "M9")

	cur, ok := v.CurrentMap()
	if !ok {
		t.Fatal("selection lost")
	}
	assert.Equal(t, cur.ID, "M1")

	// The index still learned about the new map.
	found := false
	for _, m := range v.Maps() {
		if m.ID == "M9" {
			found = true
		}
	}
	if !found {
		t.Fatal("index missing the new map")
	}
}

func TestNotificationSelectsMapWhenNothingSelected(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	v := newTestView(store)
	v.Open(ctx) // empty world, nothing to select

	writer := cache.NewWorldCache(store)
	writer.CreateWorld(ctx, "W1", "Campaign")
	writer.SaveMap(ctx, "W1", models.Map{ID: "M1", WorldID: "W1", Level: 0})
	notify(t, store, v, "W1", persistence.MapDocument("M1"))

	cur, ok := v.CurrentMap()
	if !ok {
		t.Fatal("expected the announced map to be selected")
	}
	assert.Equal(t, cur.ID, "M1")
}

func TestSelectedMapEditRefreshesLive(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	v := newTestView(store)
	v.Open(ctx)

	writer := cache.NewWorldCache(store)
	writer.Load(ctx, "W1")
	m, _ := writer.EnsureFull(ctx, "W1", "M1")
	m.Name = "Overworld, annotated"
	writer.SaveMap(ctx, "W1", m)
	notifyAll(t, store, v, "W1", "M1")

	cur, _ := v.CurrentMap()
	assert.Equal(t, cur.Name, "Overworld, annotated")
}

func TestIndexRemovalWithSurvivingDocumentKeepsSelection(t *testing.T) {
	// maps.json can be written before or after the per-map file; if the
	// per-map document still answers, the selection must survive.
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	v := newTestView(store)
	v.Open(ctx)
	if err := v.SelectMap(ctx, "M3"); err != nil {
		t.Fatalf("SelectMap: %v", err)
	}

	index, _ := json.Marshal([]models.Map{{ID: "M1", WorldID: "W1", Level: 0}})
	v.HandleDocumentChanged(ctx, persistence.MapIndexDocument, index)

	cur, ok := v.CurrentMap()
	if !ok {
		t.Fatal("selection lost despite surviving document")
	}
	assert.Equal(t, cur.ID, "M3")
}

func TestRemovedSelectionFallsBackToLevelZero(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	v := newTestView(store)
	v.Open(ctx)
	if err := v.SelectMap(ctx, "M3"); err != nil {
		t.Fatalf("SelectMap: %v", err)
	}

	// Server-side delete: document gone, then index without it.
	store.DeleteDocument(ctx, "W1", persistence.MapDocument("M3"))
	index, _ := json.Marshal([]models.Map{{ID: "M1", WorldID: "W1", Level: 0}})
	v.HandleDocumentChanged(ctx, persistence.MapIndexDocument, index)

	cur, ok := v.CurrentMap()
	if !ok {
		t.Fatal("expected fallback selection")
	}
	assert.Equal(t, cur.ID, "M1")
}

func TestRemovedSelectionWithNoMapsLeftClearsSelection(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	v := newTestView(store)
	v.Open(ctx)

	store.DeleteDocument(ctx, "W1", persistence.MapDocument("M1"))
	store.DeleteDocument(ctx, "W1", persistence.MapDocument("M3"))
	v.HandleDocumentChanged(ctx, persistence.MapIndexDocument, json.RawMessage(`[]`))

	if _, ok := v.CurrentMap(); ok {
		t.Fatal("expected no selection after all maps vanished")
	}
}

func TestMalformedNotificationIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	v := newTestView(store)
	v.Open(ctx)
	before, _ := v.CurrentMap()

	v.HandleDocumentChanged(ctx, persistence.MapDocument("M1"), json.RawMessage(`{"id":`))

	after, ok := v.CurrentMap()
	if !ok {
		t.Fatal("selection lost")
	}
	assert.Equal(t, after.ID, before.ID)

	// The next, well-formed notification is processed normally.
	update, _ := json.Marshal(models.Map{ID: "M1", WorldID: "W1", Name: "fixed", Level: 0})
	v.HandleDocumentChanged(ctx, persistence.MapDocument("M1"), update)
	cur, _ := v.CurrentMap()
	assert.Equal(t, cur.Name, "fixed")
}

func TestSuppressionSwallowsExactlyOneNotification(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	v := newTestView(store)
	v.Open(ctx)

	// A local save arms suppression; the echo that follows is dropped.
	cur, _ := v.CurrentMap()
	v.SaveMap(ctx, cur)

	newMap, _ := json.Marshal(models.Map{ID: "M9", WorldID: "W1", Level: 1})
	v.HandleDocumentChanged(ctx, persistence.MapDocument("M9"), newMap)
	if _, ok := v.cache.GetMap("W1", "M9"); ok {
		t.Fatal("suppressed notification must not be applied")
	}

	// The very next notification goes through.
	v.HandleDocumentChanged(ctx, persistence.MapDocument("M9"), newMap)
	if _, ok := v.cache.GetMap("W1", "M9"); !ok {
		t.Fatal("second notification should be processed")
	}
}

func TestScenarioPortalNavigation(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	c := cache.NewWorldCache(store)
	manage := NewView("W1", c, broadcast.NewManager(), PersistRoot())

	c.CreateWorld(ctx, "W1", "Campaign")
	manage.Open(ctx)

	manage.SaveMap(ctx, models.Map{ID: "M1", WorldID: "W1", Name: "Overworld", Level: 0})
	manage.SaveMap(ctx, models.Map{ID: "M2", WorldID: "W1", Name: "Dungeon", Level: 1, ParentMapID: "M1"})
	if err := manage.SelectMap(ctx, "M1"); err != nil {
		t.Fatalf("SelectMap: %v", err)
	}

	portal := models.InteractiveElement{
		ID: "E1", Type: models.ElementPortal, Name: "stairs down",
		TargetMapID: "M2", Visible: true,
	}
	if err := manage.AddElement(ctx, portal); err != nil {
		t.Fatalf("AddElement: %v", err)
	}

	if err := manage.ActivateElement(ctx, portal); err != nil {
		t.Fatalf("ActivateElement: %v", err)
	}

	cur, ok := manage.CurrentMap()
	if !ok {
		t.Fatal("no selection after portal")
	}
	assert.Equal(t, cur.ID, "M2")
	assert.Equal(t, manage.World().RootMapID, "M2")

	// The new root pointer was persisted.
	body, err := store.GetDocument(ctx, "W1", persistence.WorldDocument)
	if err != nil {
		t.Fatalf("world document: %v", err)
	}
	var stored models.World
	json.Unmarshal(body, &stored)
	assert.Equal(t, stored.RootMapID, "M2")
}

func TestScenarioVisibilityTogglePropagates(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	gm := newTestView(store)
	player := newTestView(store)
	other := newTestView(store)
	gm.Open(ctx)
	player.Open(ctx)
	other.Open(ctx)
	if err := other.SelectMap(ctx, "M3"); err != nil {
		t.Fatalf("SelectMap: %v", err)
	}

	if err := gm.ToggleElementVisibility(ctx, "E1"); err != nil {
		t.Fatalf("ToggleElementVisibility: %v", err)
	}

	// Server fans the writes out to the other clients.
	notifyAll(t, store, player, "W1", "M1")
	notifyAll(t, store, other, "W1", "M1")

	cur, _ := player.CurrentMap()
	assert.Equal(t, cur.ID, "M1")
	assert.Equal(t, len(cur.Elements), 1)
	if cur.Elements[0].Visible {
		t.Fatal("visibility flip did not reach the second view")
	}

	unaffected, _ := other.CurrentMap()
	assert.Equal(t, unaffected.ID, "M3")
}

func TestScenarioDeleteRootMapRepointsRoot(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	c := cache.NewWorldCache(store)
	manage := NewView("W1", c, broadcast.NewManager(), PersistRoot())

	c.CreateWorld(ctx, "W1", "Campaign")
	manage.Open(ctx)
	manage.SaveMap(ctx, models.Map{ID: "M1", WorldID: "W1", Level: 0})
	manage.SaveMap(ctx, models.Map{ID: "M2", WorldID: "W1", Level: 1, ParentMapID: "M1"})
	if err := manage.SelectMap(ctx, "M2"); err != nil {
		t.Fatalf("SelectMap: %v", err)
	}
	assert.Equal(t, manage.World().RootMapID, "M2")

	manage.DeleteMap(ctx, "M2")

	assert.Equal(t, manage.World().RootMapID, "M1")
	cur, ok := manage.CurrentMap()
	if !ok {
		t.Fatal("expected fallback selection after delete")
	}
	assert.Equal(t, cur.ID, "M1")
}

func TestCrossTabFollow(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	// Manage and player windows share one device: one cache, one channel.
	c := cache.NewWorldCache(store)
	tabs := broadcast.NewManager()
	manage := NewView("W1", c, tabs, PersistRoot())
	player := NewView("W1", c, tabs, FollowTabs())
	tabs.Subscribe(player.HandleTabMessage)

	manage.Open(ctx)
	player.Open(ctx)

	if err := manage.SelectMap(ctx, "M3"); err != nil {
		t.Fatalf("SelectMap: %v", err)
	}

	waitFor(t, func() bool {
		cur, ok := player.CurrentMap()
		return ok && cur.ID == "M3"
	})
}

func TestCreaturePOV(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	seedCampaign(t, store)

	c := cache.NewWorldCache(store)
	tabs := broadcast.NewManager()
	manage := NewView("W1", c, tabs)
	pov := NewPovView("W1")
	povOther := NewPovView("W2")
	tabs.Subscribe(pov.HandleTabMessage)
	tabs.Subscribe(povOther.HandleTabMessage)
	manage.Open(ctx)

	creature := models.InteractiveElement{
		ID: "E1", Type: models.ElementEnemy, Name: "ogre", ImageURL: "ogre.png",
	}
	if err := manage.ActivateElement(ctx, creature); err != nil {
		t.Fatalf("ActivateElement: %v", err)
	}

	waitFor(t, func() bool {
		name, url, ok := pov.Current()
		return ok && name == "ogre" && url == "ogre.png"
	})

	// A POV window for a different world ignores the message.
	if _, _, ok := povOther.Current(); ok {
		t.Fatal("POV view for another world picked up the message")
	}

	pov.Dismiss()
	if _, _, ok := pov.Current(); ok {
		t.Fatal("Dismiss() left the popup active")
	}
}
