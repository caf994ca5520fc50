package coordinator

import (
	"errors"
	"log/slog"
	"time"

	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/protocol"
)

// Hub is the coordinator's event API for the mesh dialect. Each inbound
// event is handled to completion, registry mutation plus broadcast, before
// the next event for that room is considered; different rooms share no
// state and proceed concurrently.
type Hub struct {
	log      *slog.Logger
	diag     *diag.Recorder
	registry *Registry
	router   *Router
}

func NewHub(log *slog.Logger, rec *diag.Recorder) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = diag.NewRecorder()
	}
	return &Hub{
		log:      log,
		diag:     rec,
		registry: NewRegistry(),
		router:   NewRouter(log, rec),
	}
}

// Registry exposes the room registry for presence queries.
func (h *Hub) Registry() *Registry { return h.registry }

// Diagnostics exposes the drop recorder.
func (h *Hub) Diagnostics() *diag.Recorder { return h.diag }

// register adds a freshly connected participant to the live index.
func (h *Hub) register(c *Client) {
	h.router.add(c)
	h.log.Debug("participant connected", "participant", c.id)
}

// Dispatch routes one inbound message from a participant's transport.
func (h *Hub) Dispatch(c *Client, msg *protocol.Message) {
	if err := msg.ValidateInbound(); err != nil {
		// A join without a room id is the one malformed input that earns an
		// explicit error event, to the sender only, never broadcast.
		if msg.Kind == protocol.KindJoin && errors.Is(err, protocol.ErrMissingRoom) {
			c.enqueue(&protocol.Message{Kind: protocol.KindError, Error: "join requires a room id"})
			h.diag.Drop(diag.Event{Reason: diag.DropMalformed, Participant: c.id, Detail: "join without room"})
			return
		}
		if msg.Kind.Targeted() && errors.Is(err, protocol.ErrMissingTarget) {
			h.log.Warn("targeted message without target", "kind", msg.Kind, "participant", c.id)
			h.diag.Drop(diag.Event{Reason: diag.DropMissingTarget, Participant: c.id, Detail: string(msg.Kind)})
			return
		}
		h.log.Debug("dropping malformed message", "kind", msg.Kind, "participant", c.id, "err", err)
		h.diag.Drop(diag.Event{Reason: diag.DropMalformed, Participant: c.id, Detail: string(msg.Kind)})
		return
	}

	switch {
	case msg.Kind == protocol.KindJoin:
		h.OnJoin(c, msg.Room, msg.Name)
	case msg.Kind == protocol.KindLeave:
		h.OnLeave(c)
	case msg.Kind == protocol.KindChat:
		h.OnChat(c, msg.Text)
	case msg.Kind.Targeted() || msg.Kind.Broadcast():
		h.OnRelay(c, msg)
	default:
		h.diag.Drop(diag.Event{Reason: diag.DropBadKind, Participant: c.id, Detail: string(msg.Kind)})
	}
}

// OnJoin places the participant in the room, sends the pre-join membership
// snapshot to the joiner only, and announces the arrival to everyone else.
// The snapshot doubles as the explicit initiation instruction: the
// newcomer offers toward exactly the ids it lists, and nobody else acts.
func (h *Hub) OnJoin(c *Client, roomID, name string) {
	// A participant belongs to at most one room; switching rooms is an
	// implicit leave of the old one.
	if c.room != nil {
		h.OnLeave(c)
	}
	c.name = name

	h.registry.Join(c, roomID, func(before []*Client) {
		ids := make([]string, len(before))
		for i, member := range before {
			ids[i] = member.id
		}
		c.enqueue(&protocol.Message{
			Kind:           protocol.KindRoomMembers,
			Room:           roomID,
			Members:        ids,
			InitiateToward: ids,
		})
		arrived := &protocol.Message{
			Kind:        protocol.KindPeerJoined,
			Room:        roomID,
			Participant: c.id,
			Name:        name,
		}
		for _, member := range before {
			member.enqueue(arrived)
		}
		h.log.Info("participant joined", "participant", c.id, "room", roomID, "peers", len(before))
	})
}

// OnLeave removes the participant from its room and announces the
// departure to the remaining members. It is idempotent: a second leave, or
// the disconnect path after an explicit leave, does nothing.
func (h *Hub) OnLeave(c *Client) {
	h.registry.Leave(c, func(roomID string, remaining []*Client) {
		departed := &protocol.Message{
			Kind:        protocol.KindPeerLeft,
			Room:        roomID,
			Participant: c.id,
		}
		for _, member := range remaining {
			member.enqueue(departed)
		}
		h.log.Info("participant left", "participant", c.id, "room", roomID)
	})
}

// OnDisconnect is an implicit leave plus removal from the live index. In-
// flight targeted messages toward this participant are simply dropped by
// the router from here on.
func (h *Hub) OnDisconnect(c *Client) {
	h.OnLeave(c)
	h.router.remove(c)
	c.closeSend()
	h.log.Debug("participant disconnected", "participant", c.id)
}

// OnRelay forwards an already-validated message per the routing rules.
func (h *Hub) OnRelay(c *Client, msg *protocol.Message) {
	if msg.Kind.Targeted() {
		h.router.Relay(c, msg)
		return
	}
	h.router.Broadcast(c, msg)
}

// OnChat wraps the text with the sender's identity and a server-assigned
// timestamp before broadcasting it to the sender's room. The sender shows
// its own message locally and never receives the relayed copy.
func (h *Hub) OnChat(c *Client, text string) {
	h.router.Broadcast(c, &protocol.Message{
		Kind:      protocol.KindChat,
		Text:      text,
		Name:      c.name,
		Timestamp: time.Now().UnixMilli(),
	})
}
