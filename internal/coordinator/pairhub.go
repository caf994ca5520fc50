package coordinator

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/protocol"
)

// PairRoom holds exactly two peers with asymmetric roles. The host created
// the room and owns the data channel; the guest joined it. There is no
// re-negotiation: once a guest is present the room is full for good.
type PairRoom struct {
	ID    string
	Host  *PairClient
	Guest *PairClient
}

func (r *PairRoom) count() int {
	n := 0
	if r.Host != nil {
		n++
	}
	if r.Guest != nil {
		n++
	}
	return n
}

// other returns the opposite side of the room from c, if present.
func (r *PairRoom) other(c *PairClient) *PairClient {
	if r.Host == c {
		return r.Guest
	}
	return r.Host
}

type pairEvent struct {
	client *PairClient
	msg    *protocol.PairMessage
}

// PairHub manages pairwise host/join rooms. All state is owned by the
// single goroutine running Run; clients talk to it over channels, so no
// event for a room ever interleaves with another.
type PairHub struct {
	log  *slog.Logger
	diag *diag.Recorder

	rooms map[string]*PairRoom

	register   chan *PairClient
	unregister chan *PairClient
	inbound    chan pairEvent
}

func NewPairHub(log *slog.Logger, rec *diag.Recorder) *PairHub {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = diag.NewRecorder()
	}
	return &PairHub{
		log:        log,
		diag:       rec,
		rooms:      make(map[string]*PairRoom),
		register:   make(chan *PairClient),
		unregister: make(chan *PairClient),
		inbound:    make(chan pairEvent),
	}
}

// newRoomCode generates a memorable word-word-word room code that is not
// currently in use.
func (h *PairHub) newRoomCode() string {
	for {
		code := fmt.Sprintf("%s-%s-%s",
			pickWord(codeAdjectives), pickWord(codeNouns), pickWord(codeTails))
		if _, ok := h.rooms[code]; !ok {
			return code
		}
	}
}

func pickWord(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; fall back to a time-derived index.
		return words[int(time.Now().UnixNano())%len(words)]
	}
	return words[n.Int64()]
}

// Run starts the hub's event loop. It owns every room and client slot.
func (h *PairHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.log.Debug("pair client connected")
			_ = c

		case c := <-h.unregister:
			h.dropClient(c)

		case ev := <-h.inbound:
			h.handle(ev.client, ev.msg)
		}
	}
}

func (h *PairHub) dropClient(c *PairClient) {
	if room, ok := h.rooms[c.roomID]; ok {
		var other *PairClient
		switch c {
		case room.Host:
			room.Host = nil
			other = room.Guest
		case room.Guest:
			room.Guest = nil
			other = room.Host
		}
		if room.count() == 0 {
			delete(h.rooms, room.ID)
			h.log.Info("pair room deleted", "room", room.ID)
		} else if other != nil {
			other.reply(&protocol.PairMessage{Kind: protocol.PairKindPeerLeft})
			h.sendRoomState(room, other, false)
		}
	}
	close(c.send)
}

func (h *PairHub) handle(c *PairClient, msg *protocol.PairMessage) {
	switch msg.Kind {
	case protocol.PairKindCreateRoom:
		code := h.newRoomCode()
		h.rooms[code] = &PairRoom{ID: code, Host: c}
		c.roomID = code
		c.reply(&protocol.PairMessage{Kind: protocol.PairKindRoomCreated, RoomID: code})
		h.sendRoomState(h.rooms[code], c, false)
		h.log.Info("pair room created", "room", code)

	case protocol.PairKindJoinRoom:
		room, ok := h.rooms[msg.RoomID]
		if !ok {
			c.replyError("room not found")
			return
		}
		if room.Guest != nil {
			// Exactly 1:1; a third participant is always rejected.
			c.replyError("room is full")
			return
		}
		room.Guest = c
		c.roomID = room.ID
		c.reply(&protocol.PairMessage{Kind: protocol.PairKindJoinOK, RoomID: room.ID})
		h.sendRoomState(room, c, false)
		if room.Host != nil {
			// The count crossing one is the host's explicit cue to offer.
			h.sendRoomState(room, room.Host, true)
		}
		h.log.Info("pair room joined", "room", room.ID)

	case protocol.PairKindSignal:
		room, ok := h.rooms[c.roomID]
		if !ok {
			c.replyError("not in a room")
			return
		}
		if other := room.other(c); other != nil {
			other.reply(msg)
		} else {
			h.diag.Drop(diag.Event{Reason: diag.DropTargetGone, Room: room.ID, Detail: "pair signal"})
		}

	default:
		h.diag.Drop(diag.Event{Reason: diag.DropBadKind, Detail: string(msg.Kind)})
	}
}

// sendRoomState reports the occupancy count to one side of the room.
func (h *PairHub) sendRoomState(room *PairRoom, to *PairClient, initiator bool) {
	msg, err := protocol.NewPairMessage(protocol.PairKindRoomState, room.ID,
		protocol.RoomState{Count: room.count(), Initiator: initiator})
	if err != nil {
		return
	}
	to.reply(msg)
}

// PairClient wraps one websocket connection speaking the pairwise dialect.
type PairClient struct {
	hub    *PairHub
	conn   *websocket.Conn
	roomID string
	send   chan *protocol.PairMessage
}

func NewPairClient(hub *PairHub, conn *websocket.Conn) *PairClient {
	c := &PairClient{
		hub:  hub,
		conn: conn,
		send: make(chan *protocol.PairMessage, sendQueueSize),
	}
	hub.register <- c
	return c
}

// reply queues a message without blocking the hub loop.
func (c *PairClient) reply(msg *protocol.PairMessage) {
	select {
	case c.send <- msg:
	default:
		c.hub.diag.Drop(diag.Event{Reason: diag.DropSlowConsumer, Room: c.roomID})
	}
}

func (c *PairClient) replyError(text string) {
	c.reply(&protocol.PairMessage{Kind: protocol.PairKindError, Error: text})
}

// ReadPump pumps messages from the websocket connection to the hub.
func (c *PairClient) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.PairMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		c.hub.inbound <- pairEvent{client: c, msg: &msg}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *PairClient) WritePump() {
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
