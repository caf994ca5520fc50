package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/protocol"
)

// Presenter receives the agent's side effects toward the local user. The
// agent never renders anything itself.
type Presenter interface {
	ShowParticipant(id, name string)
	RemoveParticipant(id string)
	ShowChat(sender, name, text string, at time.Time)
	Notice(text string)
}

// NopPresenter discards all presentation events.
type NopPresenter struct{}

func (NopPresenter) ShowParticipant(string, string)             {}
func (NopPresenter) RemoveParticipant(string)                   {}
func (NopPresenter) ShowChat(string, string, string, time.Time) {}
func (NopPresenter) Notice(string)                              {}

// Options configures a session agent.
type Options struct {
	Room        string
	DisplayName string
	Transport   Transport
	NewConn     ConnFactory
	Presenter   Presenter
	Diagnostics *diag.Recorder
	Logger      *slog.Logger

	// Audio receives decoded inbound audio chunks; nil discards them.
	Audio *Receiver

	// OnAppEvent receives relayed application events; nil discards them.
	OnAppEvent func(sender string, event json.RawMessage)
}

// connEvent is a pion callback re-serialized onto the agent loop.
type connEvent struct {
	remoteID  string
	candidate *protocol.CandidateInit
	state     ConnState
	hasState  bool
}

// Agent drives one negotiation state machine per remote peer, reacting to
// coordinator events. It is a single logical actor: every signaling
// message and every connection callback is applied on one goroutine, in
// arrival order per peer.
type Agent struct {
	opts  Options
	log   *slog.Logger
	diag  *diag.Recorder
	links map[string]*PeerLink

	events chan connEvent
}

func New(opts Options) *Agent {
	if opts.Presenter == nil {
		opts.Presenter = NopPresenter{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = diag.NewRecorder()
	}
	return &Agent{
		opts:   opts,
		log:    opts.Logger,
		diag:   opts.Diagnostics,
		links:  make(map[string]*PeerLink),
		events: make(chan connEvent, 128),
	}
}

// Diagnostics exposes the drop recorder.
func (a *Agent) Diagnostics() *diag.Recorder { return a.diag }

// Links reports the number of live peer links.
func (a *Agent) Links() int { return len(a.links) }

// Run joins the room and processes events until the context is canceled
// or the signaling connection drops. It returns ErrDisconnected when the
// coordinator goes away.
func (a *Agent) Run(ctx context.Context) error {
	a.opts.Transport.Send(&protocol.Message{
		Kind: protocol.KindJoin,
		Room: a.opts.Room,
		Name: a.opts.DisplayName,
	})

	defer a.teardownAll()

	for {
		select {
		case <-ctx.Done():
			a.opts.Transport.Send(&protocol.Message{Kind: protocol.KindLeave})
			return ctx.Err()

		case msg, ok := <-a.opts.Transport.Incoming():
			if !ok {
				return ErrDisconnected
			}
			a.handleSignal(msg)

		case ev := <-a.events:
			a.handleConnEvent(ev)
		}
	}
}

// handleSignal applies one coordinator message.
func (a *Agent) handleSignal(msg *protocol.Message) {
	switch msg.Kind {
	case protocol.KindRoomMembers:
		// The snapshot is the explicit initiation instruction: this agent
		// is the newcomer and offers toward exactly the listed peers.
		for _, id := range msg.InitiateToward {
			a.opts.Presenter.ShowParticipant(id, "")
			a.initiate(id)
		}

	case protocol.KindPeerJoined:
		// The newcomer initiates; the existing side creates an idle link
		// and waits for the offer.
		a.opts.Presenter.ShowParticipant(msg.Participant, msg.Name)
		if _, ok := a.links[msg.Participant]; ok {
			return
		}
		link, err := a.newLink(msg.Participant)
		if err != nil {
			a.opts.Presenter.Notice("could not prepare connection for new peer")
			return
		}
		link.state = LinkIdle
		a.links[msg.Participant] = link

	case protocol.KindPeerLeft:
		a.teardownLink(msg.Participant, "peer departed")

	case protocol.KindOffer:
		a.handleOffer(msg)

	case protocol.KindAnswer:
		a.handleAnswer(msg)

	case protocol.KindCandidate:
		a.handleCandidate(msg)

	case protocol.KindChat:
		a.opts.Presenter.ShowChat(msg.Sender, msg.Name, msg.Text, time.UnixMilli(msg.Timestamp))

	case protocol.KindAudioChunk:
		if a.opts.Audio != nil && msg.Audio != nil {
			a.opts.Audio.Deliver(msg.Sender, msg.Audio)
		}

	case protocol.KindAppEvent:
		if a.opts.OnAppEvent != nil {
			a.opts.OnAppEvent(msg.Sender, msg.Event)
		}

	case protocol.KindError:
		a.opts.Presenter.Notice(msg.Error)

	default:
		a.diag.Drop(diag.Event{Reason: diag.DropBadKind, Detail: string(msg.Kind)})
	}
}

// newLink builds a connection for remoteID with callbacks feeding the
// agent loop.
func (a *Agent) newLink(remoteID string) (*PeerLink, error) {
	events := ConnEvents{
		LocalCandidate: func(cand protocol.CandidateInit) {
			a.post(connEvent{remoteID: remoteID, candidate: &cand})
		},
		StateChange: func(state ConnState) {
			a.post(connEvent{remoteID: remoteID, state: state, hasState: true})
		},
	}
	conn, mediaAttached, err := a.opts.NewConn(remoteID, events)
	if err != nil {
		a.log.Warn("peer connection setup failed", "peer", remoteID, "err", err)
		return nil, NewError("create peer connection", err)
	}
	return &PeerLink{remoteID: remoteID, conn: conn, mediaAttached: mediaAttached}, nil
}

// post delivers a connection callback to the agent loop without blocking
// the callback's goroutine.
func (a *Agent) post(ev connEvent) {
	select {
	case a.events <- ev:
	default:
		a.diag.Drop(diag.Event{Reason: diag.DropQueueFull, Participant: ev.remoteID})
	}
}

// initiate creates a link toward an existing peer and sends the offer.
func (a *Agent) initiate(remoteID string) {
	if _, ok := a.links[remoteID]; ok {
		return
	}
	link, err := a.newLink(remoteID)
	if err != nil {
		a.opts.Presenter.Notice("could not connect to peer")
		return
	}
	link.state = LinkOffering
	a.links[remoteID] = link

	offer, err := link.conn.CreateOffer()
	if err != nil {
		a.log.Warn("offer failed", "peer", remoteID, "err", err)
		a.teardownLink(remoteID, "offer failed")
		return
	}
	a.opts.Transport.Send(&protocol.Message{
		Kind:   protocol.KindOffer,
		Target: remoteID,
		SDP:    &offer,
	})
	link.state = LinkAnswerPending
}

// handleOffer answers an inbound offer, creating the link if the arrival
// event has not been seen yet.
func (a *Agent) handleOffer(msg *protocol.Message) {
	link, ok := a.links[msg.Sender]
	if !ok {
		created, err := a.newLink(msg.Sender)
		if err != nil {
			a.opts.Presenter.Notice("could not accept connection from peer")
			return
		}
		link = created
		a.links[msg.Sender] = link
	}

	answer, err := link.conn.HandleOffer(*msg.SDP)
	if err != nil {
		a.log.Warn("answer failed", "peer", msg.Sender, "err", err)
		a.teardownLink(msg.Sender, "answer failed")
		return
	}
	link.flushCandidates()
	a.opts.Transport.Send(&protocol.Message{
		Kind:   protocol.KindAnswer,
		Target: msg.Sender,
		SDP:    &answer,
	})
	// Connected pending underlying transport confirmation.
	link.state = LinkConnected
}

// handleAnswer completes a negotiation this agent initiated. An answer
// with no matching link, or for a link not waiting on one, is an
// out-of-order race and is dropped.
func (a *Agent) handleAnswer(msg *protocol.Message) {
	link, ok := a.links[msg.Sender]
	if !ok || link.state != LinkAnswerPending {
		a.log.Debug("orphan answer", "peer", msg.Sender)
		a.diag.Drop(diag.Event{Reason: diag.DropOrphanAnswer, Participant: msg.Sender})
		return
	}
	if err := link.conn.HandleAnswer(*msg.SDP); err != nil {
		a.log.Warn("apply answer failed", "peer", msg.Sender, "err", err)
		a.teardownLink(msg.Sender, "apply answer failed")
		return
	}
	link.flushCandidates()
	link.state = LinkConnected
}

// handleCandidate buffers or applies a remote candidate. A candidate for
// an unknown peer is dropped without touching any other link.
func (a *Agent) handleCandidate(msg *protocol.Message) {
	link, ok := a.links[msg.Sender]
	if !ok {
		a.diag.Drop(diag.Event{Reason: diag.DropLinkClosed, Participant: msg.Sender, Detail: "candidate"})
		return
	}
	if err := link.bufferOrApply(*msg.Candidate); err != nil {
		a.log.Debug("candidate rejected", "peer", msg.Sender, "err", err)
	}
}

// handleConnEvent applies one re-serialized connection callback.
func (a *Agent) handleConnEvent(ev connEvent) {
	link, ok := a.links[ev.remoteID]
	if !ok {
		return
	}

	if ev.candidate != nil {
		a.opts.Transport.Send(&protocol.Message{
			Kind:      protocol.KindCandidate,
			Target:    ev.remoteID,
			Candidate: ev.candidate,
		})
		return
	}

	if ev.hasState {
		if ev.state.terminal() {
			a.teardownLink(ev.remoteID, ev.state.String())
			return
		}
		if ev.state == ConnConnected && link.state != LinkConnected {
			link.state = LinkConnected
		}
	}
}

// teardownLink closes and removes one link along with its presentation
// surface. Idempotent; the departure broadcast and the local failure edge
// converge here.
func (a *Agent) teardownLink(remoteID, reason string) {
	link, ok := a.links[remoteID]
	if !ok {
		return
	}
	_ = link.conn.Close()
	link.state = LinkClosed
	delete(a.links, remoteID)
	a.opts.Presenter.RemoveParticipant(remoteID)
	a.log.Info("peer link closed", "peer", remoteID, "reason", reason)
}

func (a *Agent) teardownAll() {
	for id := range a.links {
		a.teardownLink(id, "session ended")
	}
}

// SendChat publishes a chat line to the room. The local echo is the
// caller's job; the coordinator never reflects it back.
func (a *Agent) SendChat(text string) {
	a.opts.Transport.Send(&protocol.Message{Kind: protocol.KindChat, Text: text})
}

// SendAppEvent publishes an application event to the room.
func (a *Agent) SendAppEvent(event json.RawMessage) {
	a.opts.Transport.Send(&protocol.Message{Kind: protocol.KindAppEvent, Event: event})
}
