package persistence

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a world or document does not exist.
var ErrNotFound = errors.New("document not found")

// DocumentStore is the single source of truth for world documents. A
// document is an opaque JSON body addressed by (worldID, name).
type DocumentStore interface {
	GetDocument(ctx context.Context, worldID, name string) (json.RawMessage, error)
	PutDocument(ctx context.Context, worldID, name string, body json.RawMessage) error
	DeleteDocument(ctx context.Context, worldID, name string) error
	ListWorlds(ctx context.Context) ([]string, error)
	CreateWorld(ctx context.Context, worldID string) error
	DeleteWorld(ctx context.Context, worldID string) error
	Close() error
}
