package protocol

import "encoding/json"

// Pairwise dialect. Exactly two participants with asymmetric roles; room
// state is reported as an occupancy count, never as identities, and the
// signal payload is untargeted because there is only ever one other side.
type PairKind string

const (
	PairKindCreateRoom PairKind = "create_room"
	PairKindJoinRoom   PairKind = "join_room"
	PairKindSignal     PairKind = "signal"

	PairKindRoomCreated PairKind = "room_created"
	PairKindJoinOK      PairKind = "join_ok"
	PairKindRoomState   PairKind = "room_state"
	PairKindPeerLeft    PairKind = "peer_left"
	PairKindError       PairKind = "error"
)

// PairMessage is the envelope for the pairwise host/join dialect.
type PairMessage struct {
	Kind    PairKind        `json:"kind"`
	RoomID  string          `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PairSignal carries one negotiation step over a PairMessage payload.
type PairSignal struct {
	SDP       *SessionDescription `json:"sdp,omitempty"`
	Candidate *CandidateInit      `json:"candidate,omitempty"`
}

// RoomState reports how many participants occupy the room. Initiator is
// true only on the event delivered to the host once a second participant
// is present; it is the explicit go-ahead to send the offer.
type RoomState struct {
	Count     int  `json:"count"`
	Initiator bool `json:"initiator,omitempty"`
}

// NewPairMessage marshals payload into a PairMessage of the given kind.
func NewPairMessage(kind PairKind, roomID string, payload any) (*PairMessage, error) {
	msg := &PairMessage{Kind: kind, RoomID: roomID}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = b
	}
	return msg, nil
}

// DecodePayload unmarshals the message payload into v.
func (m *PairMessage) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}
