package models

// Map is one image-backed scene in a world. Maps form a tree through
// ParentMapID; the parent is fixed at creation and never reassigned, so
// the chain is acyclic by construction. Root maps have Level 0.
//
// A Map value exists in two shapes: the lightweight index entry stored in
// the map index document (Elements nil) and the full per-map document
// (Elements populated). The cache tracks which shape it holds.
type Map struct {
	ID          string               `json:"id"`
	WorldID     string               `json:"worldId"`
	Name        string               `json:"name,omitempty"`
	ImageURL    string               `json:"imageUrl,omitempty"`
	ParentMapID string               `json:"parentMapId,omitempty"`
	Level       int                  `json:"level"`
	MusicURL    string               `json:"musicUrl,omitempty"`
	Elements    []InteractiveElement `json:"elements,omitempty"`
}

// IndexEntry returns the lightweight form written into the map index
// document. Elements and music are intentionally stripped.
func (m Map) IndexEntry() Map {
	return Map{
		ID:          m.ID,
		WorldID:     m.WorldID,
		Name:        m.Name,
		ImageURL:    m.ImageURL,
		ParentMapID: m.ParentMapID,
		Level:       m.Level,
	}
}

// FindElement returns the index of the element with the given id, or -1.
func (m *Map) FindElement(elementID string) int {
	for i, e := range m.Elements {
		if e.ID == elementID {
			return i
		}
	}
	return -1
}
