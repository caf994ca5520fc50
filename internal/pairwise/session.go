package pairwise

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/huddlewire/huddle/internal/agent"
	"github.com/huddlewire/huddle/internal/config"
	"github.com/huddlewire/huddle/internal/protocol"
)

const (
	// Label of the single shared data channel.
	channelLabel = "huddle-collab"

	// How long to wait for the coordinator's reply to create/join.
	setupTimeout = 15 * time.Second
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrSetupTimeout = errors.New("timeout waiting for coordinator")
)

// Role distinguishes the two asymmetric sides of a pairwise session.
type Role string

const (
	RoleHost Role = "host"
	RoleJoin Role = "join"
)

// Events are the session's callbacks toward the application.
type Events struct {
	// Open fires once the data channel is usable.
	Open func()

	// Hello receives the other side's introduction.
	Hello func(name string)

	// Event receives one collaboration event from the other side.
	Event func(ev EventPayload)

	// PeerLeft fires when the other side departs.
	PeerLeft func()

	// Notice receives one-time, non-fatal condition reports.
	Notice func(text string)
}

// Session is one side of a pairwise host/join room: exactly two
// participants sharing a single data channel. The host creates the
// channel and initiates negotiation once the room's occupancy count
// exceeds one; the joiner waits for the channel to be handed to it.
// Re-negotiation is not supported.
type Session struct {
	cfg    *config.ClientConfig
	client *SignalClient
	role   Role
	roomID string
	events Events
	log    *slog.Logger

	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	neg negotiator

	// Data channel open notification, fired from pion goroutines.
	opened chan struct{}
}

// RoomID returns the coordinator-assigned room code.
func (s *Session) RoomID() string { return s.roomID }

// Role returns which side of the session this is.
func (s *Session) Role() Role { return s.role }

// NewHostSession creates a room and prepares the data channel. The
// returned session has a room code ready to share; Run drives it.
func NewHostSession(cfg *config.ClientConfig, events Events) (*Session, error) {
	s, err := newSession(cfg, RoleHost, events)
	if err != nil {
		return nil, err
	}

	s.client.Send(&protocol.PairMessage{Kind: protocol.PairKindCreateRoom})
	reply, err := s.awaitReply(protocol.PairKindRoomCreated)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.roomID = reply.RoomID

	// The host owns the channel. It exists before any peer does; the
	// offer waits for the room count to exceed one.
	ordered := true
	dc, err := s.pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		s.Close()
		return nil, agent.NewError("create data channel", err)
	}
	s.bindChannel(dc)

	return s, nil
}

// NewJoinSession joins an existing room by code. The data channel arrives
// from the host via the connection layer.
func NewJoinSession(cfg *config.ClientConfig, code string, events Events) (*Session, error) {
	s, err := newSession(cfg, RoleJoin, events)
	if err != nil {
		return nil, err
	}

	s.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		s.bindChannel(dc)
	})

	s.client.Send(&protocol.PairMessage{Kind: protocol.PairKindJoinRoom, RoomID: code})
	reply, err := s.awaitReply(protocol.PairKindJoinOK)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.roomID = reply.RoomID

	return s, nil
}

func newSession(cfg *config.ClientConfig, role Role, events Events) (*Session, error) {
	client := NewSignalClient(cfg.PairURL())
	if err := client.Connect(); err != nil {
		return nil, agent.NewError("connect to coordinator", err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: agent.ICEServers(cfg),
	})
	if err != nil {
		client.Close()
		return nil, agent.NewError("create peer connection", err)
	}

	s := &Session{
		cfg:    cfg,
		client: client,
		role:   role,
		events: events,
		log:    slog.Default(),
		pc:     pc,
		opened: make(chan struct{}, 1),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		msg, err := protocol.NewPairMessage(protocol.PairKindSignal, s.roomID, protocol.PairSignal{
			Candidate: &protocol.CandidateInit{
				Candidate:        init.Candidate,
				SDPMid:           init.SDPMid,
				SDPMLineIndex:    init.SDPMLineIndex,
				UsernameFragment: init.UsernameFragment,
			},
		})
		if err != nil {
			return
		}
		client.Send(msg)
	})

	return s, nil
}

// bindChannel wires the shared data channel into the session callbacks.
func (s *Session) bindChannel(dc *webrtc.DataChannel) {
	s.dc = dc
	dc.OnOpen(func() {
		select {
		case s.opened <- struct{}{}:
		default:
		}
		if s.events.Open != nil {
			s.events.Open()
		}
	})
	dc.OnMessage(func(m webrtc.DataChannelMessage) {
		msg, err := Decode(m.Data)
		if err != nil {
			s.log.Debug("undecodable channel message", "err", err)
			return
		}
		switch msg.Type {
		case TypeEvent:
			var ev EventPayload
			if err := msg.DecodePayload(&ev); err != nil {
				return
			}
			if s.events.Event != nil {
				s.events.Event(ev)
			}
		case TypeHello:
			var hello HelloPayload
			if err := msg.DecodePayload(&hello); err != nil {
				return
			}
			if s.events.Hello != nil {
				s.events.Hello(hello.Name)
			}
		case TypeBye:
			if s.events.PeerLeft != nil {
				s.events.PeerLeft()
			}
		}
	})
}

// awaitReply consumes signaling messages until the wanted kind or an
// error arrives.
func (s *Session) awaitReply(want protocol.PairKind) (*protocol.PairMessage, error) {
	timer := time.NewTimer(setupTimeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-s.client.Incoming():
			if !ok {
				return nil, agent.ErrDisconnected
			}
			switch msg.Kind {
			case want:
				return msg, nil
			case protocol.PairKindError:
				return nil, coordinatorError(msg.Error)
			default:
				// Room-state and similar may arrive first; ignore here,
				// Run re-derives occupancy from later events.
			}
		case <-timer.C:
			return nil, ErrSetupTimeout
		}
	}
}

func coordinatorError(text string) error {
	switch text {
	case "room not found":
		return ErrRoomNotFound
	case "room is full":
		return ErrRoomFull
	}
	return agent.WrapError("coordinator", agent.ErrServerRejected, text)
}

// Run processes signaling until the context is canceled, the peer leaves,
// or the coordinator disconnects.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-s.client.Incoming():
			if !ok {
				return agent.ErrDisconnected
			}
			if err := s.handle(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handle(msg *protocol.PairMessage) error {
	switch msg.Kind {
	case protocol.PairKindRoomState:
		var state protocol.RoomState
		if err := msg.DecodePayload(&state); err != nil {
			return nil
		}
		// Only the host offers, and only once a second participant is
		// present; a lone host has no peer to negotiate with.
		if s.role == RoleHost && s.neg.shouldOffer(state) {
			if err := s.sendOffer(); err != nil {
				return err
			}
		}

	case protocol.PairKindSignal:
		var sig protocol.PairSignal
		if err := msg.DecodePayload(&sig); err != nil {
			return nil
		}
		return s.handleSignal(sig)

	case protocol.PairKindPeerLeft:
		if s.events.PeerLeft != nil {
			s.events.PeerLeft()
		}
		return agent.ErrPeerGone

	case protocol.PairKindError:
		if s.events.Notice != nil {
			s.events.Notice(msg.Error)
		}
	}
	return nil
}

func (s *Session) sendOffer() error {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return agent.NewError("create offer", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return agent.NewError("set local description", err)
	}
	local := s.pc.LocalDescription()
	msg, err := protocol.NewPairMessage(protocol.PairKindSignal, s.roomID, protocol.PairSignal{
		SDP: &protocol.SessionDescription{Type: local.Type.String(), SDP: local.SDP},
	})
	if err != nil {
		return err
	}
	s.client.Send(msg)
	return nil
}

func (s *Session) handleSignal(sig protocol.PairSignal) error {
	if sig.SDP != nil {
		switch sig.SDP.Type {
		case "offer":
			if s.role != RoleJoin {
				return nil
			}
			if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer, SDP: sig.SDP.SDP,
			}); err != nil {
				return agent.NewError("set remote description", err)
			}
			for _, cand := range s.neg.remoteReady() {
				_ = s.pc.AddICECandidate(toICEInit(cand))
			}
			answer, err := s.pc.CreateAnswer(nil)
			if err != nil {
				return agent.NewError("create answer", err)
			}
			if err := s.pc.SetLocalDescription(answer); err != nil {
				return agent.NewError("set local description", err)
			}
			local := s.pc.LocalDescription()
			msg, err := protocol.NewPairMessage(protocol.PairKindSignal, s.roomID, protocol.PairSignal{
				SDP: &protocol.SessionDescription{Type: local.Type.String(), SDP: local.SDP},
			})
			if err != nil {
				return err
			}
			s.client.Send(msg)

		case "answer":
			if s.role != RoleHost {
				return nil
			}
			if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer, SDP: sig.SDP.SDP,
			}); err != nil {
				return agent.NewError("set remote description", err)
			}
			for _, cand := range s.neg.remoteReady() {
				_ = s.pc.AddICECandidate(toICEInit(cand))
			}
		}
		return nil
	}

	if sig.Candidate != nil {
		if cand, apply := s.neg.candidate(*sig.Candidate); apply {
			if err := s.pc.AddICECandidate(toICEInit(cand)); err != nil {
				s.log.Debug("candidate rejected", "err", err)
			}
		}
	}
	return nil
}

func toICEInit(c protocol.CandidateInit) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// SendHello introduces this side once the channel opens.
func (s *Session) SendHello(name, version string) error {
	return s.sendChannel(TypeHello, HelloPayload{Name: name, Version: version})
}

// SendBye tells the peer this side is leaving deliberately.
func (s *Session) SendBye() error {
	return s.sendChannel(TypeBye, nil)
}

// SendEvent publishes one collaboration event over the data channel.
func (s *Session) SendEvent(kind string, body []byte) error {
	return s.sendChannel(TypeEvent, EventPayload{Kind: kind, Body: body})
}

func (s *Session) sendChannel(t string, payload any) error {
	if s.dc == nil {
		return agent.NewError("send on channel", errors.New("channel not open"))
	}
	msg, err := NewMessage(t, payload)
	if err != nil {
		return err
	}
	frame, err := msg.Encode()
	if err != nil {
		return err
	}
	return s.dc.Send(frame)
}

// WaitOpen blocks until the data channel opens or the context ends.
func (s *Session) WaitOpen(ctx context.Context) error {
	select {
	case <-s.opened:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the session down.
func (s *Session) Close() {
	if s.dc != nil {
		s.dc.Close()
	}
	if s.pc != nil {
		s.pc.Close()
	}
	s.client.Close()
}
