package coordinator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Large enough for SDP bodies
	// and one audio chunk.
	maxMessageSize = 128 * 1024

	// Outbound queue depth per connection.
	sendQueueSize = 256
)

// Client wraps a single participant connection. Its identifier is assigned
// by the coordinator on connect and is unique per connection. The room
// pointer is written only under registry/room locks and read only from the
// client's own read goroutine.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	id   string
	name string
	room *Room

	sendMu sync.Mutex
	closed bool
	send   chan *protocol.Message
}

// NewClient registers a fresh participant for the given connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan *protocol.Message, sendQueueSize),
	}
	hub.register(c)
	return c
}

// ID returns the coordinator-assigned participant identifier.
func (c *Client) ID() string { return c.id }

// enqueue hands a message to the connection's write pump without blocking.
// Delivery is fire-and-forget; a slow consumer loses messages rather than
// stalling the room, and a message racing the disconnect is dropped.
func (c *Client) enqueue(msg *protocol.Message) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		c.hub.diag.Drop(diag.Event{
			Reason:      diag.DropTargetGone,
			Participant: c.id,
			Detail:      string(msg.Kind),
		})
		return
	}
	select {
	case c.send <- msg:
	default:
		c.hub.diag.Drop(diag.Event{
			Reason:      diag.DropSlowConsumer,
			Participant: c.id,
			Detail:      string(msg.Kind),
		})
	}
}

// closeSend shuts the outbound queue exactly once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.sendMu.Unlock()
}

// ReadPump pumps messages from the websocket connection to the hub. The
// application runs ReadPump in a per-connection goroutine; all reads on a
// connection happen here, so every event for this participant is handled
// in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.OnDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("read error", "participant", c.id, "err", err)
			}
			break
		}
		c.hub.Dispatch(c, &msg)
	}
}

// WritePump pumps messages from the hub to the websocket connection and
// keeps the connection alive with periodic pings. It is the only writer
// for the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
