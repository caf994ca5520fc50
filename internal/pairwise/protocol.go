package pairwise

import "github.com/vmihailenco/msgpack/v5"

// Data-channel message types. The channel carries small collaboration
// events between exactly two participants; payloads are msgpack so binary
// bodies travel without re-encoding.
const (
	TypeHello = "hello"
	TypeEvent = "event"
	TypeBye   = "bye"
)

// Message represents all data channel messages.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// HelloPayload is exchanged once when the channel opens.
type HelloPayload struct {
	Name    string `msgpack:"name"`
	Version string `msgpack:"version"`
}

// EventPayload is one application collaboration event, opaque to this
// layer.
type EventPayload struct {
	Kind string `msgpack:"kind"`
	Body []byte `msgpack:"body"`
}

// DecodePayload decodes the message payload into the provided struct.
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload.
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// Encode marshals the full message for the wire.
func (m Message) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// Decode unmarshals a wire frame into a Message.
func Decode(b []byte) (Message, error) {
	var m Message
	err := msgpack.Unmarshal(b, &m)
	return m, err
}
