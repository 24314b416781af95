package realtime

import (
	"encoding/json"
	"log"
	"time"

	"talkio/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// SDP offers can run a few KB; keep headroom above plain chat messages.
	maxMessageSize = 16 * 1024
)

// WSClient implements the Client interface over a gorilla websocket
// connection.
type WSClient struct {
	connID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan models.Event
}

// NewWSClient wraps an upgraded connection. The caller registers it with the
// hub and then calls Run.
func NewWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		connID: uuid.New().String(),
		conn:   conn,
		hub:    hub,
		send:   make(chan models.Event, 256),
	}
}

func (c *WSClient) GetConnID() string { return c.connID }

func (c *WSClient) GetSendChannel() chan<- models.Event { return c.send }

// Run starts the read and write pumps.
func (c *WSClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close shuts down the outbound channel, which stops the write pump. The
// read pump stops when the connection closes.
func (c *WSClient) Close() {
	close(c.send)
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c.connID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("Error decoding JSON from connection %s: %v", c.connID, err)
			continue // Skip the bad frame, keep the connection.
		}

		c.hub.Dispatch(c.connID, env)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by the hub, tell the peer goodbye.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error encoding JSON for connection %s: %v", c.connID, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			// Keep the connection alive.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
