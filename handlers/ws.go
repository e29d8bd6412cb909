package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"arcane-atlas/messages"
	"arcane-atlas/network"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The document API already carries a permissive CORS policy; the
		// notification channel mirrors it.
		return true
	},
}

// wsSession handles inbound frames from one connected view. The only
// client-to-server message is the room join.
type wsSession struct {
	rooms  *RoomManager
	logger *slog.Logger
}

func (s *wsSession) HandleMessage(conn *network.Connection, message []byte) {
	var env messages.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	if env.Event != messages.EventJoin {
		return
	}
	var join messages.JoinRequest
	if err := json.Unmarshal(env.Data, &join); err != nil || join.WorldID == "" {
		s.logger.Warn("dropping malformed join", "error", err)
		return
	}
	s.rooms.Join(join.WorldID, conn)
	s.logger.Debug("client joined room", "world", join.WorldID)
}

// ServeWS upgrades an HTTP request to the notification channel and pumps
// it until the client disconnects.
func ServeWS(rooms *RoomManager) http.HandlerFunc {
	logger := slog.With("component", "ws")
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", "error", err)
			return
		}

		conn := network.NewConnection(ws)
		go conn.WritePump()
		conn.ReadPump(&wsSession{rooms: rooms, logger: logger})

		rooms.Leave(conn)
		conn.Close()
	}
}
