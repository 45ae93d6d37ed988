package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message types for real-time updates
const (
	MessageTypeFeedUpdate    = "feed_update"
	MessageTypeUnreadCount   = "unread_count"
	MessageTypeTransferState = "transfer_state"
	MessageTypeCartUpdate    = "cart_update"
	MessageTypeSession       = "session"
)

// Topics a client can narrow its stream to.
const (
	TopicNotifications = "notifications"
	TopicCart          = "cart"
	TopicTransfer      = "transfer"
	TopicSession       = "session"
)

var messageTopics = map[string]string{
	MessageTypeFeedUpdate:    TopicNotifications,
	MessageTypeUnreadCount:   TopicNotifications,
	MessageTypeCartUpdate:    TopicCart,
	MessageTypeTransferState: TopicTransfer,
	MessageTypeSession:       TopicSession,
}

// WebSocket message structure
type Message struct {
	Type   string      `json:"type"`
	UserID string      `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
	Time   int64       `json:"time"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	UserID string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan Message
	Topics map[string]bool // empty means every topic
	mutex  sync.RWMutex
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by user ID
	Clients map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Message

	// initial builds the messages a client receives right after it connects.
	initial func() []Message
	log     logrus.FieldLogger
	done    chan struct{}
	mutex   sync.RWMutex
}

func NewHub(initial func() []Message, log logrus.FieldLogger) *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Message, 64),
		initial:    initial,
		log:        log.WithField("component", "websocket"),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. When ctx ends every client is disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.Broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.Clients[client.UserID] == nil {
		h.Clients[client.UserID] = make(map[*Client]bool)
	}
	h.Clients[client.UserID][client] = true

	h.log.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   client.UserID,
		"clients":   len(h.Clients[client.UserID]),
	}).Info("Client registered")

	if h.initial == nil {
		return
	}
	for _, message := range h.initial() {
		select {
		case client.Send <- message:
		default:
		}
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeClient(client)
}

// removeClient drops a client and closes its send channel. Callers hold the write lock.
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.Clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.Clients, client.UserID)
	}

	h.log.WithFields(logrus.Fields{
		"client_id": client.ID,
		"user_id":   client.UserID,
		"clients":   len(clients),
	}).Info("Client unregistered")
}

// broadcastMessage sends a message to its user, or to everyone when it names none.
// Clients too slow to keep up are dropped.
func (h *Hub) broadcastMessage(message Message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	topic := messageTopics[message.Type]
	var slow []*Client
	for userID, clients := range h.Clients {
		if message.UserID != "" && message.UserID != userID {
			continue
		}
		for client := range clients {
			if !client.Wants(topic) {
				continue
			}
			select {
			case client.Send <- message:
			default:
				slow = append(slow, client)
			}
		}
	}
	for _, client := range slow {
		h.log.WithField("client_id", client.ID).Warn("Dropping slow client")
		h.removeClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, clients := range h.Clients {
		for client := range clients {
			h.removeClient(client)
		}
	}
}

// Publish queues a message for broadcast. It gives up once the hub has stopped.
func (h *Hub) Publish(messageType string, data interface{}) {
	h.PublishTo("", messageType, data)
}

func (h *Hub) PublishTo(userID, messageType string, data interface{}) {
	message := Message{Type: messageType, UserID: userID, Data: data, Time: time.Now().Unix()}
	select {
	case h.Broadcast <- message:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, clients := range h.Clients {
		count += len(clients)
	}
	return count
}

// Subscribe narrows the client's stream to topic.
func (c *Client) Subscribe(topic string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.Topics == nil {
		c.Topics = make(map[string]bool)
	}
	c.Topics[topic] = true
}

func (c *Client) Unsubscribe(topic string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.Topics != nil {
		delete(c.Topics, topic)
	}
}

// Wants reports whether the client receives messages of topic.
func (c *Client) Wants(topic string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.Topics) == 0 || topic == "" || c.Topics[topic]
}

// NewUpgrader builds the upgrader, admitting only the configured UI origins.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(c *gin.Context, upgrader websocket.Upgrader, userID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		ID:     "client_" + uuid.NewString(),
		UserID: userID,
		Hub:    h,
		Conn:   conn,
		Send:   make(chan Message, 256),
		Topics: make(map[string]bool),
	}

	select {
	case h.Register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// deliver sends a message to one registered client, dropping it if its buffer is full.
func (h *Hub) deliver(client *Client, message Message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.Clients[client.UserID][client] {
		return
	}
	select {
	case client.Send <- message:
	default:
		h.removeClient(client)
	}
}
