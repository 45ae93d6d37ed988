package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// ClientMessage represents incoming messages from clients
type ClientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// Client message types
const (
	ClientMessageSubscribe   = "subscribe"
	ClientMessageUnsubscribe = "unsubscribe"
	ClientMessagePing        = "ping"
)

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.WithError(err).WithField("client_id", c.ID).Warn("WebSocket error")
			}
			break
		}

		var clientMessage ClientMessage
		if err := json.Unmarshal(messageBytes, &clientMessage); err != nil {
			c.Hub.log.WithError(err).WithField("client_id", c.ID).Debug("Failed to unmarshal client message")
			continue
		}

		c.handleClientMessage(clientMessage)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			message.Time = time.Now().Unix()
			messageBytes, err := json.Marshal(message)
			if err != nil {
				c.Hub.log.WithError(err).WithField("type", message.Type).Error("Failed to marshal message")
				continue
			}

			// One JSON document per frame; the UI parses each frame on its own.
			if err := c.Conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes incoming messages from the client. Replies go through the
// hub so they never race with the hub closing Send.
func (c *Client) handleClientMessage(message ClientMessage) {
	switch message.Type {
	case ClientMessageSubscribe:
		if _, known := topicNames[message.Topic]; known {
			c.Subscribe(message.Topic)
			c.reply("subscribed", map[string]interface{}{"topic": message.Topic, "status": "subscribed"})
		}

	case ClientMessageUnsubscribe:
		if _, known := topicNames[message.Topic]; known {
			c.Unsubscribe(message.Topic)
			c.reply("unsubscribed", map[string]interface{}{"topic": message.Topic, "status": "unsubscribed"})
		}

	case ClientMessagePing:
		c.reply("pong", map[string]interface{}{"timestamp": time.Now().Unix()})

	default:
		c.Hub.log.WithField("type", message.Type).Debug("Unknown client message type")
	}
}

var topicNames = map[string]struct{}{
	TopicNotifications: {},
	TopicCart:          {},
	TopicTransfer:      {},
	TopicSession:       {},
}

func (c *Client) reply(messageType string, data interface{}) {
	c.Hub.deliver(c, Message{Type: messageType, UserID: c.UserID, Data: data})
}
