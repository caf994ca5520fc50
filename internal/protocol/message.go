package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the variant of a signaling message. The set is closed:
// the coordinator drops anything it does not recognize instead of relaying
// arbitrary client-supplied structure.
type Kind string

const (
	// Client -> coordinator.
	KindJoin  Kind = "join"
	KindLeave Kind = "leave"

	// Coordinator -> client.
	KindRoomMembers Kind = "room-members"
	KindPeerJoined  Kind = "peer-joined"
	KindPeerLeft    Kind = "peer-left"
	KindError       Kind = "error"

	// Relayed, targeted at exactly one participant.
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "candidate"

	// Relayed, broadcast to the rest of the sender's room.
	KindChat       Kind = "chat"
	KindAudioChunk Kind = "audio-chunk"
	KindAppEvent   Kind = "app-event"
)

var (
	ErrUnknownKind      = errors.New("protocol: unknown message kind")
	ErrMissingRoom      = errors.New("protocol: missing room id")
	ErrMissingTarget    = errors.New("protocol: missing target")
	ErrMissingPayload   = errors.New("protocol: missing payload for kind")
	ErrNotClientMessage = errors.New("protocol: kind not accepted from clients")
)

// SessionDescription is a JSON-friendly SDP offer or answer. The protocol
// package models the wire surface only and deliberately carries no WebRTC
// library types.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// CandidateInit mirrors the standard ICE candidate JSON shape so the agent
// can convert to and from its WebRTC stack without re-mapping fields.
type CandidateInit struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// AudioChunk is one relayed frame of PCM audio, base64 int16 samples.
type AudioChunk struct {
	Data       string `json:"data"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Message is the mesh-dialect envelope exchanged with the coordinator.
// Sender is stamped by the coordinator on every relayed message; a value
// supplied by the client is ignored.
type Message struct {
	Kind   Kind   `json:"kind"`
	Room   string `json:"room,omitempty"`
	Sender string `json:"sender,omitempty"`
	Target string `json:"target,omitempty"`

	// Join.
	Name string `json:"name,omitempty"`

	// Room membership events. InitiateToward tells the newcomer exactly
	// which peers it must send offers to, so initiator roles are carried
	// in the payload instead of being inferred client-side.
	Members        []string `json:"members,omitempty"`
	InitiateToward []string `json:"initiate_toward,omitempty"`
	Participant    string   `json:"participant,omitempty"`

	// Negotiation.
	SDP       *SessionDescription `json:"sdp,omitempty"`
	Candidate *CandidateInit      `json:"candidate,omitempty"`

	// Application payloads.
	Text      string          `json:"text,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Audio     *AudioChunk     `json:"audio,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`

	Error string `json:"error,omitempty"`
}

// Targeted reports whether k must be delivered to exactly one participant.
func (k Kind) Targeted() bool {
	switch k {
	case KindOffer, KindAnswer, KindCandidate:
		return true
	}
	return false
}

// Broadcast reports whether k fans out to the rest of the sender's room.
func (k Kind) Broadcast() bool {
	switch k {
	case KindChat, KindAudioChunk, KindAppEvent, KindPeerJoined, KindPeerLeft:
		return true
	}
	return false
}

// ValidateInbound checks a client-supplied message against the required
// shape for its kind. Messages that fail validation are dropped by the
// coordinator, never relayed.
func (m *Message) ValidateInbound() error {
	switch m.Kind {
	case KindJoin:
		if m.Room == "" {
			return ErrMissingRoom
		}
	case KindLeave:
		// Room is inferred from the connection.
	case KindOffer, KindAnswer:
		if m.Target == "" {
			return ErrMissingTarget
		}
		if m.SDP == nil || m.SDP.SDP == "" {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Kind)
		}
	case KindCandidate:
		if m.Target == "" {
			return ErrMissingTarget
		}
		if m.Candidate == nil || m.Candidate.Candidate == "" {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Kind)
		}
	case KindChat:
		if m.Text == "" {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Kind)
		}
	case KindAudioChunk:
		if m.Audio == nil || m.Audio.Data == "" {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Kind)
		}
	case KindAppEvent:
		if len(m.Event) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Kind)
		}
	case KindRoomMembers, KindPeerJoined, KindPeerLeft, KindError:
		return fmt.Errorf("%w: %s", ErrNotClientMessage, m.Kind)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return nil
}
