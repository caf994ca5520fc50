package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/protocol"
)

// stubTransport records outbound messages and feeds inbound ones.
type stubTransport struct {
	sent     []*protocol.Message
	incoming chan *protocol.Message
}

func newStubTransport() *stubTransport {
	return &stubTransport{incoming: make(chan *protocol.Message, 16)}
}

func (t *stubTransport) Send(msg *protocol.Message)         { t.sent = append(t.sent, msg) }
func (t *stubTransport) Incoming() <-chan *protocol.Message { return t.incoming }
func (t *stubTransport) Close()                             {}
func (t *stubTransport) sentKinds() []protocol.Kind {
	out := make([]protocol.Kind, len(t.sent))
	for i, m := range t.sent {
		out[i] = m.Kind
	}
	return out
}

// stubConn is a scripted PeerConn.
type stubConn struct {
	remoteID string
	events   ConnEvents

	offers   int
	answers  int
	added    []protocol.CandidateInit
	closed   int
	offerErr error
}

func (c *stubConn) CreateOffer() (protocol.SessionDescription, error) {
	if c.offerErr != nil {
		return protocol.SessionDescription{}, c.offerErr
	}
	c.offers++
	return protocol.SessionDescription{Type: "offer", SDP: "offer-for-" + c.remoteID}, nil
}

func (c *stubConn) HandleOffer(offer protocol.SessionDescription) (protocol.SessionDescription, error) {
	return protocol.SessionDescription{Type: "answer", SDP: "answer-from-" + c.remoteID}, nil
}

func (c *stubConn) HandleAnswer(answer protocol.SessionDescription) error {
	c.answers++
	return nil
}

func (c *stubConn) AddCandidate(cand protocol.CandidateInit) error {
	c.added = append(c.added, cand)
	return nil
}

func (c *stubConn) Close() error {
	c.closed++
	return nil
}

// stubPresenter records roster changes and chat lines.
type stubPresenter struct {
	shown   []string
	removed []string
	chat    []string
	notices []string
}

func (p *stubPresenter) ShowParticipant(id, name string) { p.shown = append(p.shown, id) }
func (p *stubPresenter) RemoveParticipant(id string)     { p.removed = append(p.removed, id) }
func (p *stubPresenter) ShowChat(sender, name, text string, at time.Time) {
	p.chat = append(p.chat, fmt.Sprintf("%s:%s", name, text))
}
func (p *stubPresenter) Notice(text string) { p.notices = append(p.notices, text) }

type harness struct {
	agent     *Agent
	transport *stubTransport
	presenter *stubPresenter
	conns     map[string]*stubConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: newStubTransport(),
		presenter: &stubPresenter{},
		conns:     make(map[string]*stubConn),
	}
	h.agent = New(Options{
		Room:        "r1",
		DisplayName: "tester",
		Transport:   h.transport,
		Presenter:   h.presenter,
		Diagnostics: diag.NewRecorder(),
		NewConn: func(remoteID string, events ConnEvents) (PeerConn, bool, error) {
			conn := &stubConn{remoteID: remoteID, events: events}
			h.conns[remoteID] = conn
			return conn, false, nil
		},
	})
	return h
}

func (h *harness) link(t *testing.T, id string) *PeerLink {
	t.Helper()
	link, ok := h.agent.links[id]
	if !ok {
		t.Fatalf("no link for %s", id)
	}
	return link
}

func TestAgent_SnapshotDrivesOffersTowardListedPeers(t *testing.T) {
	h := newHarness(t)

	h.agent.handleSignal(&protocol.Message{
		Kind:           protocol.KindRoomMembers,
		Members:        []string{"b", "c"},
		InitiateToward: []string{"b", "c"},
	})

	if got := h.transport.sentKinds(); len(got) != 2 {
		t.Fatalf("sent %v, want two offers", got)
	}
	for _, msg := range h.transport.sent {
		if msg.Kind != protocol.KindOffer || msg.Target == "" || msg.SDP == nil {
			t.Fatalf("bad offer %+v", msg)
		}
	}
	for _, id := range []string{"b", "c"} {
		if state := h.link(t, id).State(); state != LinkAnswerPending {
			t.Fatalf("link %s state = %s, want answer-pending", id, state)
		}
	}
}

func TestAgent_ArrivalCreatesIdleLinkWithoutOffering(t *testing.T) {
	h := newHarness(t)

	h.agent.handleSignal(&protocol.Message{Kind: protocol.KindPeerJoined, Participant: "b", Name: "bob"})

	if got := h.transport.sentKinds(); len(got) != 0 {
		t.Fatalf("existing side sent %v, want nothing", got)
	}
	if state := h.link(t, "b").State(); state != LinkIdle {
		t.Fatalf("link state = %s, want idle", state)
	}
	if len(h.presenter.shown) != 1 || h.presenter.shown[0] != "b" {
		t.Fatalf("presenter shown = %v", h.presenter.shown)
	}
}

func TestAgent_OfferGetsAnswered(t *testing.T) {
	h := newHarness(t)
	h.agent.handleSignal(&protocol.Message{Kind: protocol.KindPeerJoined, Participant: "b"})

	h.agent.handleSignal(&protocol.Message{
		Kind:   protocol.KindOffer,
		Sender: "b",
		SDP:    &protocol.SessionDescription{Type: "offer", SDP: "v=0"},
	})

	if got := h.transport.sentKinds(); len(got) != 1 || got[0] != protocol.KindAnswer {
		t.Fatalf("sent %v, want [answer]", got)
	}
	if h.transport.sent[0].Target != "b" {
		t.Fatalf("answer target = %q, want b", h.transport.sent[0].Target)
	}
	if state := h.link(t, "b").State(); state != LinkConnected {
		t.Fatalf("link state = %s, want connected", state)
	}
}

func TestAgent_OfferBeforeArrivalStillWorks(t *testing.T) {
	h := newHarness(t)

	// The offer can outrun the peer-joined broadcast.
	h.agent.handleSignal(&protocol.Message{
		Kind:   protocol.KindOffer,
		Sender: "b",
		SDP:    &protocol.SessionDescription{Type: "offer", SDP: "v=0"},
	})

	if got := h.transport.sentKinds(); len(got) != 1 || got[0] != protocol.KindAnswer {
		t.Fatalf("sent %v, want [answer]", got)
	}
}

func TestAgent_AnswerCompletesInitiatedNegotiation(t *testing.T) {
	h := newHarness(t)
	h.agent.handleSignal(&protocol.Message{
		Kind:           protocol.KindRoomMembers,
		InitiateToward: []string{"b"},
	})

	h.agent.handleSignal(&protocol.Message{
		Kind:   protocol.KindAnswer,
		Sender: "b",
		SDP:    &protocol.SessionDescription{Type: "answer", SDP: "v=0"},
	})

	if state := h.link(t, "b").State(); state != LinkConnected {
		t.Fatalf("link state = %s, want connected", state)
	}
	if h.conns["b"].answers != 1 {
		t.Fatalf("HandleAnswer calls = %d, want 1", h.conns["b"].answers)
	}
}

func TestAgent_OrphanAnswerIsDropped(t *testing.T) {
	h := newHarness(t)

	h.agent.handleSignal(&protocol.Message{
		Kind:   protocol.KindAnswer,
		Sender: "ghost",
		SDP:    &protocol.SessionDescription{Type: "answer", SDP: "v=0"},
	})

	if n := h.agent.Diagnostics().Count(diag.DropOrphanAnswer); n != 1 {
		t.Fatalf("orphan_answer drops = %d, want 1", n)
	}
	if h.agent.Links() != 0 {
		t.Fatalf("links = %d, want 0", h.agent.Links())
	}
}

func TestAgent_AnswerForIdleLinkIsDropped(t *testing.T) {
	h := newHarness(t)
	h.agent.handleSignal(&protocol.Message{Kind: protocol.KindPeerJoined, Participant: "b"})

	h.agent.handleSignal(&protocol.Message{
		Kind:   protocol.KindAnswer,
		Sender: "b",
		SDP:    &protocol.SessionDescription{Type: "answer", SDP: "v=0"},
	})

	if n := h.agent.Diagnostics().Count(diag.DropOrphanAnswer); n != 1 {
		t.Fatalf("orphan_answer drops = %d, want 1", n)
	}
	if state := h.link(t, "b").State(); state != LinkIdle {
		t.Fatalf("link state = %s, want idle untouched", state)
	}
}

func TestAgent_EarlyCandidatesBufferThenFlushInOrder(t *testing.T) {
	h := newHarness(t)
	h.agent.handleSignal(&protocol.Message{Kind: protocol.KindPeerJoined, Participant: "b"})

	for i := 0; i < 3; i++ {
		h.agent.handleSignal(&protocol.Message{
			Kind:      protocol.KindCandidate,
			Sender:    "b",
			Candidate: &protocol.CandidateInit{Candidate: fmt.Sprintf("candidate:%d", i)},
		})
	}
	if added := h.conns["b"].added; len(added) != 0 {
		t.Fatalf("candidates applied before remote description: %v", added)
	}

	h.agent.handleSignal(&protocol.Message{
		Kind:   protocol.KindOffer,
		Sender: "b",
		SDP:    &protocol.SessionDescription{Type: "offer", SDP: "v=0"},
	})

	added := h.conns["b"].added
	if len(added) != 3 {
		t.Fatalf("flushed %d candidates, want 3", len(added))
	}
	for i, cand := range added {
		if cand.Candidate != fmt.Sprintf("candidate:%d", i) {
			t.Fatalf("candidate %d = %q, flush out of order", i, cand.Candidate)
		}
	}

	// Later candidates apply directly.
	h.agent.handleSignal(&protocol.Message{
		Kind:      protocol.KindCandidate,
		Sender:    "b",
		Candidate: &protocol.CandidateInit{Candidate: "candidate:late"},
	})
	if added := h.conns["b"].added; len(added) != 4 {
		t.Fatalf("late candidate not applied, have %d", len(added))
	}
}

func TestAgent_CandidateForUnknownPeerIsDropped(t *testing.T) {
	h := newHarness(t)

	h.agent.handleSignal(&protocol.Message{
		Kind:      protocol.KindCandidate,
		Sender:    "ghost",
		Candidate: &protocol.CandidateInit{Candidate: "candidate:1"},
	})

	if n := h.agent.Diagnostics().Count(diag.DropLinkClosed); n != 1 {
		t.Fatalf("link_closed drops = %d, want 1", n)
	}
}

func TestAgent_DepartureTearsDownOnlyThatLink(t *testing.T) {
	h := newHarness(t)
	h.agent.handleSignal(&protocol.Message{
		Kind:           protocol.KindRoomMembers,
		InitiateToward: []string{"b", "c"},
	})

	h.agent.handleSignal(&protocol.Message{Kind: protocol.KindPeerLeft, Participant: "b"})

	if h.conns["b"].closed != 1 {
		t.Fatalf("b closed %d times, want 1", h.conns["b"].closed)
	}
	if h.conns["c"].closed != 0 {
		t.Fatal("unrelated link was closed")
	}
	if h.agent.Links() != 1 {
		t.Fatalf("links = %d, want 1", h.agent.Links())
	}
	if len(h.presenter.removed) != 1 || h.presenter.removed[0] != "b" {
		t.Fatalf("presenter removed = %v", h.presenter.removed)
	}

	// A second departure for the same peer is a no-op.
	h.agent.handleSignal(&protocol.Message{Kind: protocol.KindPeerLeft, Participant: "b"})
	if h.conns["b"].closed != 1 {
		t.Fatal("teardown ran twice")
	}
}

func TestAgent_LocalCandidateIsRelayedToPeer(t *testing.T) {
	h := newHarness(t)
	h.agent.handleSignal(&protocol.Message{
		Kind:           protocol.KindRoomMembers,
		InitiateToward: []string{"b"},
	})
	h.transport.sent = nil

	h.agent.handleConnEvent(connEvent{
		remoteID:  "b",
		candidate: &protocol.CandidateInit{Candidate: "candidate:local"},
	})

	if len(h.transport.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(h.transport.sent))
	}
	msg := h.transport.sent[0]
	if msg.Kind != protocol.KindCandidate || msg.Target != "b" {
		t.Fatalf("relayed candidate = %+v", msg)
	}
}

func TestAgent_TerminalConnStateTearsDown(t *testing.T) {
	h := newHarness(t)
	h.agent.handleSignal(&protocol.Message{
		Kind:           protocol.KindRoomMembers,
		InitiateToward: []string{"b"},
	})

	h.agent.handleConnEvent(connEvent{remoteID: "b", state: ConnFailed, hasState: true})

	if h.agent.Links() != 0 {
		t.Fatalf("links = %d, want 0 after failure", h.agent.Links())
	}
	if h.conns["b"].closed != 1 {
		t.Fatalf("conn closed %d times, want 1", h.conns["b"].closed)
	}
}

func TestAgent_ChatReachesPresenter(t *testing.T) {
	h := newHarness(t)

	h.agent.handleSignal(&protocol.Message{
		Kind:      protocol.KindChat,
		Sender:    "b",
		Name:      "bob",
		Text:      "hi there",
		Timestamp: time.Now().UnixMilli(),
	})

	if len(h.presenter.chat) != 1 || h.presenter.chat[0] != "bob:hi there" {
		t.Fatalf("chat lines = %v", h.presenter.chat)
	}
}

func TestAgent_RunJoinsThenLeavesOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.agent.Run(ctx) }()

	// Give the loop a beat to send the join, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	got := h.transport.sentKinds()
	if len(got) != 2 || got[0] != protocol.KindJoin || got[1] != protocol.KindLeave {
		t.Fatalf("sent %v, want [join leave]", got)
	}
	if h.transport.sent[0].Room != "r1" || h.transport.sent[0].Name != "tester" {
		t.Fatalf("join = %+v", h.transport.sent[0])
	}
}

func TestAgent_RunReturnsErrDisconnectedWhenTransportDies(t *testing.T) {
	h := newHarness(t)

	done := make(chan error, 1)
	go func() { done <- h.agent.Run(context.Background()) }()

	close(h.transport.incoming)

	select {
	case err := <-done:
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("Run = %v, want ErrDisconnected", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after transport close")
	}
}
