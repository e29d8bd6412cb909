package persistence

import "strings"

// Document names used inside a world. Everything else ending in .json is a
// per-map document named after the map id.
const (
	WorldDocument    = "world.json"
	MapIndexDocument = "maps.json"
)

// MapDocument returns the document name holding the full record for a map.
func MapDocument(mapID string) string {
	return mapID + ".json"
}

// MapIDFromDocument extracts the map id from a per-map document name. It
// returns false for the world and index documents and for names that are
// not JSON documents at all.
func MapIDFromDocument(name string) (string, bool) {
	if name == WorldDocument || name == MapIndexDocument {
		return "", false
	}
	id, ok := strings.CutSuffix(name, ".json")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
