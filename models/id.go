package models

import "github.com/oklog/ulid/v2"

// NewID returns a fresh identifier for worlds, maps, elements and players.
// ULIDs sort by creation time, which keeps listings stable without a
// separate ordering field.
func NewID() string {
	return ulid.Make().String()
}
