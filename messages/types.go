package messages

import "encoding/json"

// MessageType tags a cross-tab notification.
type MessageType string

const (
	MessageTypeMapUpdate     MessageType = "map_update"
	MessageTypeMapDeleted    MessageType = "map_deleted"
	MessageTypePlayerDeleted MessageType = "player_deleted"
	MessageTypeCreaturePOV   MessageType = "creature_pov"
	MessageTypePlayerUpdate  MessageType = "player_update"
	MessageTypeElementUpdate MessageType = "element_update"
	MessageTypeWorldUpdate   MessageType = "world_update"
)

// BroadcastMessage is a cross-tab notification. It carries identifiers
// only, never document bodies; receivers decide relevance and re-read the
// cache themselves.
type BroadcastMessage struct {
	Type         MessageType `json:"type"`
	WorldID      string      `json:"worldId"`
	MapID        string      `json:"mapId,omitempty"`
	PlayerID     string      `json:"playerId,omitempty"`
	ElementID    string      `json:"elementId,omitempty"`
	ImageURL     string      `json:"imageUrl,omitempty"`
	CreatureName string      `json:"creatureName,omitempty"`
}

// Network channel events.
const (
	EventJoin        = "join"
	EventWorldUpdate = "world:update"
)

// Envelope is the wire frame on the network channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest subscribes the connection to one world's room.
type JoinRequest struct {
	WorldID string `json:"worldId"`
}

// DocumentChanged announces that a document was written or deleted.
// Payload is the full document body, or nil for a delete. The server fans
// it out to every room member, the writer included; echo suppression is
// the client's job.
type DocumentChanged struct {
	Name    string          `json:"file"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
