package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/duckhunt/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxRequestSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection following a set of chat channels.
// topics is only touched by the read goroutine.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]struct{}
	logger *slog.Logger
}

// ClientMessage is a request from the client. Channel uses the
// "network/channel" form.
type ClientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

// NewClient creates a client for an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]struct{}),
		logger: logger.With("client_id", id),
	}
}

func (c *Client) follow(key domain.ChannelKey) {
	topic := key.String()
	if _, ok := c.topics[topic]; !ok {
		c.topics[topic] = struct{}{}
		c.hub.Subscribe(c, topic)
	}
	c.sendAck("subscribed", topic)
}

func (c *Client) unfollow(key domain.ChannelKey) {
	topic := key.String()
	if _, ok := c.topics[topic]; ok {
		delete(c.topics, topic)
		c.hub.Unsubscribe(c, topic)
	}
	c.sendAck("unsubscribed", topic)
}

func (c *Client) following() []string {
	topics := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxRequestSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req ClientMessage
		if err := c.conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.sendError("invalid message format")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.dispatch(req)
	}
}

func (c *Client) dispatch(req ClientMessage) {
	switch req.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		key, err := domain.ParseChannelKey(req.Channel)
		if err != nil {
			c.sendError("channel must be network/channel")
			return
		}
		if req.Type == MessageTypeSubscribe {
			c.follow(key)
		} else {
			c.unfollow(key)
		}

	case MessageTypeSubscriptions:
		c.enqueue(Message{
			Type:      MessageTypeSubscriptions,
			Data:      c.following(),
			Timestamp: time.Now(),
		})

	case MessageTypePing:
		c.enqueue(Message{Type: MessageTypePong, Timestamp: time.Now()})

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one frame per message so clients can decode each as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue drops the message when the client is too slow to keep up
func (c *Client) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("dropping message for slow client", "type", msg.Type)
	}
}

func (c *Client) sendError(reason string) {
	c.enqueue(Message{
		Type:      MessageTypeError,
		Data:      map[string]string{"error": reason},
		Timestamp: time.Now(),
	})
}

func (c *Client) sendAck(kind, topic string) {
	c.enqueue(Message{
		Type:      kind,
		Channel:   topic,
		Data:      map[string]string{"status": "ok"},
		Timestamp: time.Now(),
	})
}

// ServeWs upgrades the request and starts the client loops. Channels given
// as repeated ?channel=network/channel parameters are followed right away.
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	var initial []domain.ChannelKey
	for _, raw := range r.URL.Query()["channel"] {
		key, err := domain.ParseChannelKey(raw)
		if err != nil {
			http.Error(w, "channel must be network/channel", http.StatusBadRequest)
			return
		}
		initial = append(initial, key)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)
	for _, key := range initial {
		client.follow(key)
	}

	go client.writeLoop()
	go client.readLoop()

	client.logger.Debug("websocket connected", "channels", len(initial))
}
