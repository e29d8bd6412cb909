package network

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"arcane-atlas/messages"
)

// DocumentChangedFunc receives one document-changed notification. Payload
// is nil for deletes.
type DocumentChangedFunc func(name string, payload json.RawMessage)

// Client is the view side of the network change channel: it joins one
// world's room and forwards every document-changed broadcast to a handler.
type Client struct {
	worldID string
	conn    *Connection
	onDoc   DocumentChangedFunc
	logger  *slog.Logger
	done    chan struct{}
}

// Dial connects to the server's notification endpoint, joins the world's
// room and starts delivering notifications to onDoc.
func Dial(url, worldID string, onDoc DocumentChangedFunc) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect notification channel: %w", err)
	}

	c := &Client{
		worldID: worldID,
		conn:    NewConnection(ws),
		onDoc:   onDoc,
		logger:  slog.With("component", "netclient", "world", worldID),
		done:    make(chan struct{}),
	}

	go c.conn.WritePump()
	go func() {
		defer close(c.done)
		c.conn.ReadPump(c)
	}()

	join, _ := json.Marshal(messages.JoinRequest{WorldID: worldID})
	if err := c.conn.SendMessage(messages.Envelope{Event: messages.EventJoin, Data: join}); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to join world room: %w", err)
	}
	return c, nil
}

// HandleMessage decodes envelopes from the server. Anything that is not a
// well-formed world:update is logged and dropped.
func (c *Client) HandleMessage(_ *Connection, message []byte) {
	var env messages.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	if env.Event != messages.EventWorldUpdate {
		return
	}
	var change messages.DocumentChanged
	if err := json.Unmarshal(env.Data, &change); err != nil {
		c.logger.Warn("dropping malformed update", "error", err)
		return
	}
	c.onDoc(change.Name, change.Payload)
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down.
func (c *Client) Close() {
	c.conn.Close()
}
