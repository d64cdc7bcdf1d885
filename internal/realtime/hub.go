package realtime

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/tutorloop-backend/internal/platform/logger"
)

// Hub fans messages out to the clients subscribed to their channel.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "RealtimeHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (hub *Hub) NewClient(userID uuid.UUID) *Client {
	id := uuid.New()
	return &Client{
		ID:       id,
		UserID:   userID,
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 32),
		done:     make(chan struct{}),
		Logger:   hub.log.With("client_id", id.String()),
	}
}

func (hub *Hub) AddChannel(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()

	client.Channels[channel] = true
	clients, ok := hub.subscriptions[channel]
	if !ok {
		clients = make(map[*Client]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true
	hub.log.Debug("client subscribed", "client_id", client.ID, "channel", channel)
}

func (hub *Hub) removeLocked(client *Client) {
	for ch := range client.Channels {
		if subs, ok := hub.subscriptions[ch]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
}

// Broadcast never blocks; a client with a full buffer misses the message.
func (hub *Hub) Broadcast(msg Message) {
	if msg.Channel == "" {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for c := range hub.subscriptions[msg.Channel] {
		select {
		case c.Outbound <- msg:
		default:
			hub.log.Warn("dropping realtime message; outbound buffer full", "client_id", c.ID, "event", msg.Event)
		}
	}
}

func (hub *Hub) CloseClient(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	select {
	case <-client.done:
		return
	default:
	}
	close(client.done)
	hub.removeLocked(client)
	close(client.Outbound)
}

// Subscribers reports how many clients listen on channel.
func (hub *Hub) Subscribers(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[channel])
}
