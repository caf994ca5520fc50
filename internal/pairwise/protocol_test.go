package pairwise

import (
	"bytes"
	"testing"
)

func TestMessage_EventRoundTrip(t *testing.T) {
	body := []byte{0x00, 0x01, 0xFF, 0xFE}
	msg, err := NewMessage(TypeEvent, EventPayload{Kind: "cursor", Body: body})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	frame, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Type != TypeEvent {
		t.Fatalf("type = %q, want %q", decoded.Type, TypeEvent)
	}

	var ev EventPayload
	if err := decoded.DecodePayload(&ev); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if ev.Kind != "cursor" || !bytes.Equal(ev.Body, body) {
		t.Fatalf("event = %+v", ev)
	}
}

func TestMessage_HelloCarriesNameAndVersion(t *testing.T) {
	msg, err := NewMessage(TypeHello, HelloPayload{Name: "zoe", Version: "dev"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	frame, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	var hello HelloPayload
	if err := decoded.DecodePayload(&hello); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if hello.Name != "zoe" || hello.Version != "dev" {
		t.Fatalf("hello = %+v", hello)
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("definitely not msgpack")); err == nil {
		t.Fatal("garbage frame decoded without error")
	}
}
