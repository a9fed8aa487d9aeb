package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/duckhunt/internal/domain"
	"github.com/google/uuid"
)

// Message types
const (
	MessageTypeChatAction    = "chat_action"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypeSubscriptions = "subscriptions"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

// Message represents a WebSocket message. Channel is the "network/channel"
// topic the message belongs to.
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans chat actions out to websocket clients subscribed to a channel.
// It also serves as the chat adapter when no message broker is configured.
type Hub struct {
	// Subscribed clients by channel topic
	clients map[string]map[*Client]bool

	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
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
			h.logger.Debug("client subscribed", "client_id", req.client.id, "channel", req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.topic]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "channel", req.topic)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to the clients subscribed to its topic
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	for client := range h.clients[message.Channel] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// Publish queues a chat action for the subscribers of its channel. Delivery
// is best effort; a full queue drops the action.
func (h *Hub) Publish(action domain.ChatAction) {
	message := &Message{
		Type:      MessageTypeChatAction,
		Channel:   action.Key().String(),
		Data:      action,
		Timestamp: action.Timestamp,
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message",
			"channel", message.Channel,
			"action", action.Type,
		)
	}
}

// SendAnnouncement publishes a new announcement and returns its reference
func (h *Hub) SendAnnouncement(_ context.Context, key domain.ChannelKey, a domain.Announcement) (domain.AnnouncementRef, error) {
	ref := domain.AnnouncementRef(uuid.NewString())
	h.Publish(domain.ChatAction{
		Type:         domain.ChatActionAnnounce,
		Network:      key.Network,
		Channel:      key.Channel,
		Ref:          ref,
		Announcement: &a,
		Timestamp:    time.Now(),
	})
	return ref, nil
}

// EditAnnouncement publishes a replacement for an earlier announcement
func (h *Hub) EditAnnouncement(_ context.Context, key domain.ChannelKey, ref domain.AnnouncementRef, a domain.Announcement) error {
	h.Publish(domain.ChatAction{
		Type:         domain.ChatActionEdit,
		Network:      key.Network,
		Channel:      key.Channel,
		Ref:          ref,
		Announcement: &a,
		Timestamp:    time.Now(),
	})
	return nil
}

// Reply publishes a plain text reply
func (h *Hub) Reply(_ context.Context, key domain.ChannelKey, text string) error {
	h.Publish(domain.ChatAction{
		Type:      domain.ChatActionReply,
		Network:   key.Network,
		Channel:   key.Channel,
		Text:      text,
		Timestamp: time.Now(),
	})
	return nil
}

// MuteUser publishes a mute request for a user
func (h *Hub) MuteUser(_ context.Context, key domain.ChannelKey, userID string) error {
	h.Publish(domain.ChatAction{
		Type:      domain.ChatActionMute,
		Network:   key.Network,
		Channel:   key.Channel,
		UserID:    userID,
		Timestamp: time.Now(),
	})
	return nil
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a channel topic
func (h *Hub) Subscribe(client *Client, topic string) {
	h.subscribe <- &subscriptionRequest{client: client, topic: topic}
}

// Unsubscribe removes a client from a channel topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}
}

// SubscriberCount returns the number of subscribers of a channel topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// TotalConnections returns the number of connected clients
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
