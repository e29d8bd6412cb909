package models

// ElementType identifies what kind of marker an element is.
type ElementType string

const (
	ElementPortal ElementType = "portal"
	ElementNPC    ElementType = "npc"
	ElementEnemy  ElementType = "enemy"
	ElementItem   ElementType = "item"
	ElementLoot   ElementType = "loot"
)

// InteractiveElement is a clickable marker placed on a map. Position is
// expressed as percentages of the map image bounds so it survives resizes.
type InteractiveElement struct {
	ID      string      `json:"id"`
	WorldID string      `json:"worldId,omitempty"`
	MapID   string      `json:"mapId,omitempty"`
	Type    ElementType `json:"type"`
	Name    string      `json:"name"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Visible bool        `json:"visible"`

	// Combat stats, used by npc/enemy elements.
	HPMax     int `json:"hp_max,omitempty"`
	HPCurrent int `json:"hp_current,omitempty"`
	HPBonus   int `json:"hp_bonus,omitempty"`
	AC        int `json:"ac,omitempty"`

	// TargetMapID is set on portals only.
	TargetMapID string `json:"targetMapId,omitempty"`
	// ImageURL is the creature portrait for npc/enemy elements.
	ImageURL string `json:"imageUrl,omitempty"`
}

// IsCreature reports whether the element has a point-of-view portrait.
func (e InteractiveElement) IsCreature() bool {
	return e.Type == ElementNPC || e.Type == ElementEnemy
}
