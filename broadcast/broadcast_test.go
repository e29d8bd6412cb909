package broadcast

import (
	"testing"
	"time"

	"arcane-atlas/messages"
)

func receive(t *testing.T, ch <-chan messages.BroadcastMessage) messages.BroadcastMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered within deadline")
		return messages.BroadcastMessage{}
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	m := NewManager()
	a := make(chan messages.BroadcastMessage, 1)
	b := make(chan messages.BroadcastMessage, 1)
	m.Subscribe(func(msg messages.BroadcastMessage) { a <- msg })
	m.Subscribe(func(msg messages.BroadcastMessage) { b <- msg })

	sent := messages.BroadcastMessage{Type: messages.MessageTypeMapUpdate, WorldID: "w1", MapID: "m1"}
	m.Publish(sent)

	if got := receive(t, a); got != sent {
		t.Fatalf("subscriber a got %+v, want %+v", got, sent)
	}
	if got := receive(t, b); got != sent {
		t.Fatalf("subscriber b got %+v, want %+v", got, sent)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager()
	gone := make(chan messages.BroadcastMessage, 1)
	kept := make(chan messages.BroadcastMessage, 1)
	unsub := m.Subscribe(func(msg messages.BroadcastMessage) { gone <- msg })
	m.Subscribe(func(msg messages.BroadcastMessage) { kept <- msg })

	unsub()
	m.Publish(messages.BroadcastMessage{Type: messages.MessageTypeWorldUpdate, WorldID: "w1"})

	receive(t, kept)
	select {
	case <-gone:
		t.Fatal("unsubscribed handler still received a message")
	default:
	}
}
