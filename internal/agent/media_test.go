package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/protocol"
)

// syncTransport collects sends behind a channel so the test can wait for
// the streamer's send loop.
type syncTransport struct {
	msgs chan *protocol.Message
}

func (t *syncTransport) Send(msg *protocol.Message)         { t.msgs <- msg }
func (t *syncTransport) Incoming() <-chan *protocol.Message { return nil }
func (t *syncTransport) Close()                             {}

func TestStreamer_ChunksSourceIntoAudioMessages(t *testing.T) {
	// Two full blocks of 4 frames, int16 mono.
	blockSize := 4
	pcm := make([]byte, blockSize*2*2)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	transport := &syncTransport{msgs: make(chan *protocol.Message, 8)}
	s := NewStreamer(transport, bytes.NewReader(pcm), 8000, 1, blockSize, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil at EOF", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case msg := <-transport.msgs:
			if msg.Kind != protocol.KindAudioChunk {
				t.Fatalf("kind = %s, want audio-chunk", msg.Kind)
			}
			if msg.Audio.SampleRate != 8000 || msg.Audio.Channels != 1 {
				t.Fatalf("chunk params = %+v", msg.Audio)
			}
			raw, err := base64.StdEncoding.DecodeString(msg.Audio.Data)
			if err != nil {
				t.Fatalf("chunk not base64: %v", err)
			}
			if !bytes.Equal(raw, pcm[i*blockSize*2:(i+1)*blockSize*2]) {
				t.Fatalf("chunk %d bytes differ", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("chunk %d never sent", i)
		}
	}
}

func TestStreamer_MutedChunksAreNotPublished(t *testing.T) {
	blockSize := 4
	pcm := make([]byte, blockSize*2)

	transport := &syncTransport{msgs: make(chan *protocol.Message, 8)}
	s := NewStreamer(transport, bytes.NewReader(pcm), 0, 0, blockSize, nil)
	s.Mute()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}

	select {
	case msg := <-transport.msgs:
		t.Fatalf("muted streamer published %v", msg.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamer_DefaultsApplyForZeroParams(t *testing.T) {
	s := NewStreamer(&syncTransport{msgs: make(chan *protocol.Message, 1)}, bytes.NewReader(nil), 0, 0, 0, nil)
	if s.sampleRate != DefaultSampleRate || s.channels != DefaultChannels || s.blockSize != DefaultBlockSize {
		t.Fatalf("defaults not applied: %d %d %d", s.sampleRate, s.channels, s.blockSize)
	}
}

func TestReceiver_WritesDecodedChunks(t *testing.T) {
	var sink bytes.Buffer
	r := NewReceiver(&sink, nil)

	pcm := []byte{1, 2, 3, 4}
	r.Deliver("b", &protocol.AudioChunk{Data: base64.StdEncoding.EncodeToString(pcm)})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = r.Run(ctx)

	if !bytes.Equal(sink.Bytes(), pcm) {
		t.Fatalf("sink = %v, want %v", sink.Bytes(), pcm)
	}
}

func TestReceiver_UndecodableChunkIsDropped(t *testing.T) {
	rec := diag.NewRecorder()
	r := NewReceiver(&bytes.Buffer{}, rec)

	r.Deliver("b", &protocol.AudioChunk{Data: "not-base64!!!"})

	if n := rec.Count(diag.DropMalformed); n != 1 {
		t.Fatalf("malformed drops = %d, want 1", n)
	}
	if len(r.queue) != 0 {
		t.Fatal("bad chunk was queued")
	}
}

func TestReceiver_OverflowDropsInsteadOfBlocking(t *testing.T) {
	rec := diag.NewRecorder()
	r := NewReceiver(&bytes.Buffer{}, rec)

	chunk := &protocol.AudioChunk{Data: base64.StdEncoding.EncodeToString([]byte{0})}
	for i := 0; i < playQueueDepth+5; i++ {
		r.Deliver("b", chunk)
	}

	if n := rec.Count(diag.DropQueueFull); n != 5 {
		t.Fatalf("queue_full drops = %d, want 5", n)
	}
}
