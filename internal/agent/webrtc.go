package agent

import (
	"github.com/pion/webrtc/v4"

	"github.com/huddlewire/huddle/internal/config"
	"github.com/huddlewire/huddle/internal/protocol"
)

// TrackHandler receives inbound media streams from a remote peer. The
// agent never decodes; it hands the track straight to the playback
// subsystem.
type TrackHandler func(remoteID string, track *webrtc.TrackRemote)

// ICEServers builds the pion ICE server list from the client config.
func ICEServers(cfg *config.ClientConfig) []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: cfg.STUNServers()}}
	if turn := cfg.TURNServers(); turn != nil {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   cfg.TURNUser,
			Credential: cfg.TURNPass,
		})
	}
	return servers
}

// NewPionFactory returns a ConnFactory backed by pion peer connections.
// The media tracks are the session's shared local capture; they are
// attached to every link the factory builds. onTrack may be nil.
func NewPionFactory(cfg *config.ClientConfig, media []webrtc.TrackLocal, onTrack TrackHandler) ConnFactory {
	return func(remoteID string, events ConnEvents) (PeerConn, bool, error) {
		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
			ICEServers: ICEServers(cfg),
		})
		if err != nil {
			return nil, false, NewError("create peer connection", err)
		}

		attached := false
		for _, track := range media {
			if _, err := pc.AddTrack(track); err != nil {
				pc.Close()
				return nil, false, NewError("attach track", err)
			}
			attached = true
		}

		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil || events.LocalCandidate == nil {
				return
			}
			events.LocalCandidate(fromICECandidateInit(c.ToJSON()))
		})

		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			if events.StateChange == nil {
				return
			}
			events.StateChange(mapConnState(state))
		})

		if onTrack != nil {
			pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
				onTrack(remoteID, track)
			})
		}

		return &pionConn{pc: pc}, attached, nil
	}
}

// pionConn adapts a pion peer connection to the PeerConn surface.
type pionConn struct {
	pc *webrtc.PeerConnection
}

func (p *pionConn) CreateOffer() (protocol.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return protocol.SessionDescription{}, NewError("create offer", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return protocol.SessionDescription{}, NewError("set local description", err)
	}
	return fromSessionDescription(*p.pc.LocalDescription()), nil
}

func (p *pionConn) HandleOffer(offer protocol.SessionDescription) (protocol.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(toSessionDescription(offer)); err != nil {
		return protocol.SessionDescription{}, NewError("set remote description", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return protocol.SessionDescription{}, NewError("create answer", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return protocol.SessionDescription{}, NewError("set local description", err)
	}
	return fromSessionDescription(*p.pc.LocalDescription()), nil
}

func (p *pionConn) HandleAnswer(answer protocol.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(toSessionDescription(answer)); err != nil {
		return NewError("set remote description", err)
	}
	return nil
}

func (p *pionConn) AddCandidate(cand protocol.CandidateInit) error {
	if err := p.pc.AddICECandidate(toICECandidateInit(cand)); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

func (p *pionConn) Close() error {
	return p.pc.Close()
}

func mapConnState(state webrtc.PeerConnectionState) ConnState {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		return ConnConnected
	case webrtc.PeerConnectionStateDisconnected:
		return ConnDisconnected
	case webrtc.PeerConnectionStateFailed:
		return ConnFailed
	case webrtc.PeerConnectionStateClosed:
		return ConnClosed
	}
	return ConnConnecting
}

func toSessionDescription(sd protocol.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{
		Type: webrtc.NewSDPType(sd.Type),
		SDP:  sd.SDP,
	}
}

func fromSessionDescription(sd webrtc.SessionDescription) protocol.SessionDescription {
	return protocol.SessionDescription{
		Type: sd.Type.String(),
		SDP:  sd.SDP,
	}
}

func toICECandidateInit(c protocol.CandidateInit) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromICECandidateInit(c webrtc.ICECandidateInit) protocol.CandidateInit {
	return protocol.CandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
