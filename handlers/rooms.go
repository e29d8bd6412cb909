package handlers

import (
	"encoding/json"
	"log/slog"
	"sync"

	"arcane-atlas/messages"
)

// DocumentNotifier receives a document-changed event after every
// successful store write or delete. Payload is nil for deletes.
type DocumentNotifier interface {
	DocumentChanged(worldID, name string, payload json.RawMessage)
}

// RoomClient is one subscribed connection. network.Connection satisfies it.
type RoomClient interface {
	SendMessage(msg any) error
}

// RoomManager groups connections into per-world rooms and fans document
// changes out to them. There is no origin filtering: a writer receives the
// broadcast for its own write, and suppressing that echo is the client's
// job.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[string]map[RoomClient]bool
	logger *slog.Logger
}

// NewRoomManager creates an empty room manager.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:  make(map[string]map[RoomClient]bool),
		logger: slog.With("component", "rooms"),
	}
}

// Join subscribes a client to one world's room. A client may join several
// rooms; it leaves all of them through Leave.
func (rm *RoomManager) Join(worldID string, client RoomClient) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[worldID]
	if !ok {
		room = make(map[RoomClient]bool)
		rm.rooms[worldID] = room
	}
	room[client] = true
}

// Leave removes a client from every room.
func (rm *RoomManager) Leave(client RoomClient) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for worldID, room := range rm.rooms {
		delete(room, client)
		if len(room) == 0 {
			delete(rm.rooms, worldID)
		}
	}
}

// RoomSize returns the number of clients in a world's room.
func (rm *RoomManager) RoomSize(worldID string) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms[worldID])
}

// DocumentChanged broadcasts a change to every client in the world's room.
func (rm *RoomManager) DocumentChanged(worldID, name string, payload json.RawMessage) {
	data, err := json.Marshal(messages.DocumentChanged{Name: name, Payload: payload})
	if err != nil {
		rm.logger.Error("failed to encode update", "world", worldID, "doc", name, "error", err)
		return
	}
	env := messages.Envelope{Event: messages.EventWorldUpdate, Data: data}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for client := range rm.rooms[worldID] {
		if err := client.SendMessage(env); err != nil {
			rm.logger.Warn("failed to send update", "world", worldID, "doc", name, "error", err)
		}
	}
}
