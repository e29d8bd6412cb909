package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const bridgeChannelPrefix = "atlas:rooms:"

// bridgeFrame is what travels between server instances.
type bridgeFrame struct {
	Origin  string          `json:"origin"`
	Name    string          `json:"file"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RedisBridge spans room broadcasts across server instances. Local writes
// are published to a per-world redis channel; frames published by other
// instances are re-fanned into the local rooms. Frames from this instance
// are skipped, since the local fan-out already happened.
type RedisBridge struct {
	id     string
	rdb    *redis.Client
	rooms  *RoomManager
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewRedisBridge connects the bridge and starts listening. id must be
// unique per server instance.
func NewRedisBridge(ctx context.Context, url, id string, rooms *RoomManager) (*RedisBridge, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBridge{
		id:     id,
		rdb:    rdb,
		rooms:  rooms,
		logger: slog.With("component", "redis_bridge", "instance", id),
		cancel: cancel,
	}
	go b.listen(runCtx)
	b.logger.Info("redis room bridge connected")
	return b, nil
}

// DocumentChanged fans the change into local rooms and publishes it for
// the other instances.
func (b *RedisBridge) DocumentChanged(worldID, name string, payload json.RawMessage) {
	b.rooms.DocumentChanged(worldID, name, payload)

	frame, err := json.Marshal(bridgeFrame{Origin: b.id, Name: name, Payload: payload})
	if err != nil {
		b.logger.Error("failed to encode bridge frame", "doc", name, "error", err)
		return
	}
	if err := b.rdb.Publish(context.Background(), bridgeChannelPrefix+worldID, frame).Err(); err != nil {
		b.logger.Warn("failed to publish bridge frame", "world", worldID, "error", err)
	}
}

func (b *RedisBridge) listen(ctx context.Context) {
	sub := b.rdb.PSubscribe(ctx, bridgeChannelPrefix+"*")
	defer sub.Close()

	for msg := range sub.Channel() {
		worldID := strings.TrimPrefix(msg.Channel, bridgeChannelPrefix)

		var frame bridgeFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			b.logger.Warn("dropping malformed bridge frame", "world", worldID, "error", err)
			continue
		}
		if frame.Origin == b.id {
			continue
		}
		b.rooms.DocumentChanged(worldID, frame.Name, frame.Payload)
	}
}

// Close stops the listener and closes the redis connection.
func (b *RedisBridge) Close() error {
	b.cancel()
	return b.rdb.Close()
}
