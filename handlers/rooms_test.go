package handlers

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"

	"arcane-atlas/messages"
)

// fakeClient records everything sent to it.
type fakeClient struct {
	sent []messages.Envelope
}

func (fc *fakeClient) SendMessage(msg any) error {
	fc.sent = append(fc.sent, msg.(messages.Envelope))
	return nil
}

func TestBroadcastIsScopedToRoom(t *testing.T) {
	rm := NewRoomManager()
	inRoom := &fakeClient{}
	elsewhere := &fakeClient{}
	rm.Join("w1", inRoom)
	rm.Join("w2", elsewhere)

	rm.DocumentChanged("w1", "m1.json", json.RawMessage(`{"id":"m1"}`))

	assert.Equal(t, len(inRoom.sent), 1)
	assert.Equal(t, len(elsewhere.sent), 0)

	env := inRoom.sent[0]
	assert.Equal(t, env.Event, messages.EventWorldUpdate)
	var change messages.DocumentChanged
	if err := json.Unmarshal(env.Data, &change); err != nil {
		t.Fatalf("malformed update: %v", err)
	}
	assert.Equal(t, change.Name, "m1.json")
}

func TestBroadcastIncludesTheWriter(t *testing.T) {
	// No server-side origin filtering: suppressing echoes is the client's
	// job, so every room member gets the update.
	rm := NewRoomManager()
	writer := &fakeClient{}
	reader := &fakeClient{}
	rm.Join("w1", writer)
	rm.Join("w1", reader)

	rm.DocumentChanged("w1", "maps.json", json.RawMessage(`[]`))

	assert.Equal(t, len(writer.sent), 1)
	assert.Equal(t, len(reader.sent), 1)
}

func TestDeleteBroadcastCarriesNilPayload(t *testing.T) {
	rm := NewRoomManager()
	client := &fakeClient{}
	rm.Join("w1", client)

	rm.DocumentChanged("w1", "m1.json", nil)

	var change messages.DocumentChanged
	if err := json.Unmarshal(client.sent[0].Data, &change); err != nil {
		t.Fatalf("malformed update: %v", err)
	}
	if change.Payload != nil {
		t.Fatalf("delete payload = %s, want nil", change.Payload)
	}
}

func TestLeaveRemovesClientFromAllRooms(t *testing.T) {
	rm := NewRoomManager()
	client := &fakeClient{}
	rm.Join("w1", client)
	rm.Join("w2", client)
	assert.Equal(t, rm.RoomSize("w1"), 1)

	rm.Leave(client)

	assert.Equal(t, rm.RoomSize("w1"), 0)
	assert.Equal(t, rm.RoomSize("w2"), 0)
	rm.DocumentChanged("w1", "m1.json", nil)
	assert.Equal(t, len(client.sent), 0)
}
