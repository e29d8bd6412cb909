package models

// Player is a party member. Players belong to a world, not a map; the
// optional MapID is only a grouping hint for listings.
type Player struct {
	ID      string `json:"id"`
	WorldID string `json:"worldId"`
	MapID   string `json:"mapId,omitempty"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`

	HPMax     int `json:"hp_max,omitempty"`
	HPCurrent int `json:"hp_current,omitempty"`
	HPBonus   int `json:"hp_bonus,omitempty"`
	AC        int `json:"ac,omitempty"`
}
