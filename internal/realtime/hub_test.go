package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for realtime message")
	}
	return Message{}
}

func TestHubOrderingAndReconnect(t *testing.T) {
	hub := NewHub(logger.Nop())
	channel := uuid.New().String()

	clientA := hub.NewClient(uuid.New())
	hub.AddChannel(clientA, channel)

	hub.Broadcast(Message{Channel: channel, Event: EventSessionStarted, Data: map[string]any{"seq": 1}})
	hub.Broadcast(Message{Channel: channel, Event: EventSessionAdvanced, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != EventSessionStarted {
		t.Fatalf("first event: want=%s got=%s", EventSessionStarted, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != EventSessionAdvanced {
		t.Fatalf("second event: want=%s got=%s", EventSessionAdvanced, got.Event)
	}

	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed after disconnect")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("expected no subscribers after close, got %d", n)
	}
	// A second close is a no-op.
	hub.CloseClient(clientA)

	clientB := hub.NewClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(Message{Channel: channel, Event: EventSessionCompleted})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != EventSessionCompleted {
		t.Fatalf("reconnected client: want=%s got=%s", EventSessionCompleted, got.Event)
	}
}

func TestHubIgnoresOtherChannels(t *testing.T) {
	hub := NewHub(logger.Nop())
	client := hub.NewClient(uuid.New())
	hub.AddChannel(client, "teacher-a")

	hub.Broadcast(Message{Channel: "teacher-b", Event: EventJobDone})
	hub.Broadcast(Message{Event: EventJobDone})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(logger.Nop())
	client := hub.NewClient(uuid.New())
	hub.AddChannel(client, "c")
	for i := 0; i < cap(client.Outbound)+5; i++ {
		hub.Broadcast(Message{Channel: "c", Event: EventJobProgress, Data: i})
	}
	if len(client.Outbound) != cap(client.Outbound) {
		t.Fatalf("expected full buffer, got %d/%d", len(client.Outbound), cap(client.Outbound))
	}
}
