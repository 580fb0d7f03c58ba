package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 20 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

// Client is one websocket connection. All writes go through WritePump, so the
// connection never sees concurrent writers.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	key    string
	name   string
	role   string
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// SetIdentity records who this connection joined as.
func (c *Client) SetIdentity(key, name, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key, c.name, c.role = key, name, role
}

// Identity returns the joined identity; ok is false before a join.
func (c *Client) Identity() (key, name, role string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key, c.name, c.role, c.key != ""
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops accepting messages. WritePump drains what is queued, sends a
// close frame and closes the connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump decodes inbound frames and hands them to handle until the
// connection fails. onPong is called whenever the peer answers a ping.
func (c *Client) ReadPump(handle func(Envelope), onPong func()) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if onPong != nil {
			onPong()
		}
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Warn("ws: read error", "client", c.ID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.Send(ErrorEvent{Message: "malformed message"})
			continue
		}
		handle(env)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("ws: write error", "client", c.ID, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues evt for this client only.
func (c *Client) Send(evt Event) bool {
	data, err := Encode(evt)
	if err != nil {
		slog.Error("ws: marshal error", "type", evt.EventType(), "error", err)
		return false
	}
	return c.enqueue(data)
}
