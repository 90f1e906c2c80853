package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/leaderboard-api/internal/domain"
	"github.com/leaderboard-api/internal/event"
)

// Message types
const (
	MessageTypeStandings   = "standings"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message represents a WebSocket message pushed to clients. For change
// events, Type carries the topic name (upsertPlayer or deletePlayer).
type Message struct {
	Type      string      `json:"type"`
	Operation string      `json:"operation,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients and forwards change events from
// the event bus to clients subscribed to each topic. A topic subscription
// lives exactly as long as the underlying connection.
type Hub struct {
	// Registered clients by topic
	clients map[event.Topic]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Broadcasts to every connected client
	broadcast chan *Message

	bus *event.Bus

	mu sync.RWMutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	topic  event.Topic
}

// NewHub creates a new Hub fed by the given event bus
func NewHub(bus *event.Bus, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[event.Topic]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		broadcast:   make(chan *Message, 256),
		bus:         bus,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	sub := h.bus.Subscribe(event.TopicUpsertPlayer, event.TopicDeletePlayer)
	defer sub.Cancel()

	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Drop every topic subscription with the connection.
				for topic, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, topic)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.topic]; !ok {
				h.clients[req.topic] = make(map[*Client]bool)
			}
			h.clients[req.topic][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "topic", req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.topic]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "topic", req.topic)

		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			h.deliverEvent(ev)

		case message := <-h.broadcast:
			h.deliverToAll(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// deliverEvent fans a change event out to the topic's subscribers
func (h *Hub) deliverEvent(ev event.PlayerEvent) {
	message := &Message{
		Type:      string(ev.Topic),
		Operation: string(ev.Operation),
		Data:      ev.Player,
		Timestamp: ev.Timestamp,
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[ev.Topic] {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// deliverToAll sends a message to every connected client
func (h *Hub) deliverToAll(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.allClients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastStandings pushes the current score-descending standings to every
// connected client.
func (h *Hub) BroadcastStandings(players []domain.Player) {
	message := &Message{
		Type:      MessageTypeStandings,
		Data:      players,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub. A no-op once the hub is stopped, so
// late connection teardown never blocks.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe adds a client to a topic subscription
func (h *Hub) Subscribe(client *Client, topic event.Topic) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, topic: topic}:
	case <-h.ctx.Done():
	}
}

// Unsubscribe removes a client from a topic subscription
func (h *Hub) Unsubscribe(client *Client, topic event.Topic) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}:
	case <-h.ctx.Done():
	}
}

// GetSubscriberCount returns the number of subscribers for a topic
func (h *Hub) GetSubscriberCount(topic event.Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
