package models

import "time"

// World is the top-level campaign container. It owns the player roster;
// maps live in their own documents and are only referenced from here.
type World struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
	RootMapID   string    `json:"rootMapId,omitempty"`
	Players     []Player  `json:"players,omitempty"`
}

// FindPlayer returns the index of the player with the given id, or -1.
func (w *World) FindPlayer(playerID string) int {
	for i, p := range w.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}
