package coordinator

import (
	"log/slog"
	"sync"

	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/protocol"
)

// Router delivers a signaling message to exactly its intended
// destination(s). It owns the index of live participants; liveness is tied
// one-to-one to the transport connection.
type Router struct {
	log  *slog.Logger
	diag *diag.Recorder

	mu           sync.Mutex
	participants map[string]*Client
}

func NewRouter(log *slog.Logger, rec *diag.Recorder) *Router {
	return &Router{
		log:          log,
		diag:         rec,
		participants: make(map[string]*Client),
	}
}

func (r *Router) add(c *Client) {
	r.mu.Lock()
	r.participants[c.id] = c
	r.mu.Unlock()
}

func (r *Router) remove(c *Client) {
	r.mu.Lock()
	delete(r.participants, c.id)
	r.mu.Unlock()
}

// lookup resolves a participant id to a live connection.
func (r *Router) lookup(id string) (*Client, bool) {
	r.mu.Lock()
	c, ok := r.participants[id]
	r.mu.Unlock()
	return c, ok
}

// Live reports the number of connected participants.
func (r *Router) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// Broadcast delivers msg to every other current member of the sender's
// room, never back to the sender. The sender field is overwritten with the
// router's own knowledge of the originating participant, so provenance in
// the relayed stream cannot be spoofed. The room lock is held across the
// fan-out, keeping broadcasts ordered with membership events.
func (r *Router) Broadcast(sender *Client, msg *protocol.Message) {
	room := sender.room
	if room == nil {
		r.diag.Drop(diag.Event{
			Reason:      diag.DropBadKind,
			Participant: sender.id,
			Detail:      "broadcast outside room",
		})
		return
	}
	msg.Sender = sender.id
	msg.Room = room.id

	room.mu.Lock()
	for id, member := range room.members {
		if id == sender.id {
			continue
		}
		member.enqueue(msg)
	}
	room.mu.Unlock()
}

// Relay delivers a targeted message to exactly the participant named by
// its target. The target id is trusted as supplied; it was learned from an
// earlier room-members or peer-joined event. A target that is no longer
// live is a normal race (it disconnected mid-negotiation) and the message
// is silently dropped.
func (r *Router) Relay(sender *Client, msg *protocol.Message) {
	msg.Sender = sender.id
	target, ok := r.lookup(msg.Target)
	if !ok {
		r.log.Debug("relay target gone", "kind", msg.Kind, "target", msg.Target)
		r.diag.Drop(diag.Event{
			Reason:      diag.DropTargetGone,
			Participant: sender.id,
			Detail:      msg.Target,
		})
		return
	}
	target.enqueue(msg)
}
