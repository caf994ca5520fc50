package agent

import (
	"context"
	"encoding/base64"
	"io"
	"sync/atomic"

	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/protocol"
)

// Audio relay over the coordinator. Capture and playback themselves are
// external; this file only moves int16 PCM frames between an io.Reader or
// io.Writer and the room, with bounded queues that drop on overflow so a
// slow network never blocks the audio path.

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultBlockSize  = 1024 // frames per chunk

	sendQueueDepth = 128
	playQueueDepth = 256
)

// Streamer reads PCM frames from a capture source and publishes them as
// audio chunks.
type Streamer struct {
	transport  Transport
	src        io.Reader
	sampleRate int
	channels   int
	blockSize  int
	diag       *diag.Recorder

	muted atomic.Bool
	queue chan string
}

// NewStreamer builds a streamer for the given capture source. Zero-valued
// audio parameters fall back to the defaults.
func NewStreamer(transport Transport, src io.Reader, sampleRate, channels, blockSize int, rec *diag.Recorder) *Streamer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if rec == nil {
		rec = diag.NewRecorder()
	}
	return &Streamer{
		transport:  transport,
		src:        src,
		sampleRate: sampleRate,
		channels:   channels,
		blockSize:  blockSize,
		diag:       rec,
		queue:      make(chan string, sendQueueDepth),
	}
}

// Mute stops publishing without stopping capture reads.
func (s *Streamer) Mute() { s.muted.Store(true) }

// Unmute resumes publishing.
func (s *Streamer) Unmute() { s.muted.Store(false) }

// Muted reports the current mute state.
func (s *Streamer) Muted() bool { return s.muted.Load() }

// Run captures and publishes until the source is exhausted or the context
// is canceled. The capture read and the network send are decoupled by the
// bounded queue.
func (s *Streamer) Run(ctx context.Context) error {
	go s.sendLoop(ctx)

	chunkBytes := s.blockSize * s.channels * 2 // int16 samples
	buf := make([]byte, chunkBytes)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := io.ReadFull(s.src, buf)
		if n > 0 && !s.muted.Load() {
			encoded := base64.StdEncoding.EncodeToString(buf[:n])
			select {
			case s.queue <- encoded:
			default:
				// Never block the capture path.
				s.diag.Drop(diag.Event{Reason: diag.DropQueueFull, Detail: "audio send"})
			}
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return NewError("read audio source", err)
		}
	}
}

func (s *Streamer) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case encoded := <-s.queue:
			s.transport.Send(&protocol.Message{
				Kind: protocol.KindAudioChunk,
				Audio: &protocol.AudioChunk{
					Data:       encoded,
					SampleRate: s.sampleRate,
					Channels:   s.channels,
				},
			})
		}
	}
}

// Receiver decodes inbound audio chunks into a playback sink.
type Receiver struct {
	out   io.Writer
	diag  *diag.Recorder
	queue chan []byte
}

// NewReceiver builds a receiver writing decoded PCM to out.
func NewReceiver(out io.Writer, rec *diag.Recorder) *Receiver {
	if rec == nil {
		rec = diag.NewRecorder()
	}
	return &Receiver{
		out:   out,
		diag:  rec,
		queue: make(chan []byte, playQueueDepth),
	}
}

// Deliver queues one relayed chunk for playback. Undecodable or overflow
// chunks are dropped.
func (r *Receiver) Deliver(sender string, chunk *protocol.AudioChunk) {
	raw, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		r.diag.Drop(diag.Event{Reason: diag.DropMalformed, Participant: sender, Detail: "audio chunk"})
		return
	}
	select {
	case r.queue <- raw:
	default:
		r.diag.Drop(diag.Event{Reason: diag.DropQueueFull, Detail: "audio play"})
	}
}

// Run writes queued chunks to the sink until the context is canceled.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-r.queue:
			if _, err := r.out.Write(raw); err != nil {
				return NewError("write audio sink", err)
			}
		}
	}
}
