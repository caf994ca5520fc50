package agent

import "github.com/huddlewire/huddle/internal/protocol"

// LinkState is the lifecycle of one peer link. Closed is unconditionally
// final; a fresh arrival or offer for the same peer creates a new link.
type LinkState int

const (
	LinkIdle LinkState = iota
	LinkOffering
	LinkAnswerPending
	LinkConnected
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkOffering:
		return "offering"
	case LinkAnswerPending:
		return "answer-pending"
	case LinkConnected:
		return "connected"
	case LinkClosed:
		return "closed"
	}
	return "unknown"
}

// ConnState reports the underlying transport connection state.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnConnected
	ConnDisconnected
	ConnFailed
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

// terminal reports whether the state tears the link down.
func (s ConnState) terminal() bool {
	return s == ConnDisconnected || s == ConnFailed || s == ConnClosed
}

// PeerConn is the negotiation surface of one direct connection. The agent
// owns the state machine; implementations own the actual transport. All
// methods are called from the agent's event loop only.
type PeerConn interface {
	// CreateOffer produces and locally applies an offer.
	CreateOffer() (protocol.SessionDescription, error)

	// HandleOffer applies the remote offer and returns a locally applied
	// answer.
	HandleOffer(offer protocol.SessionDescription) (protocol.SessionDescription, error)

	// HandleAnswer applies the remote answer.
	HandleAnswer(answer protocol.SessionDescription) error

	// AddCandidate applies a remote ICE candidate. Callers only invoke it
	// after a remote description has been applied.
	AddCandidate(cand protocol.CandidateInit) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// ConnEvents are the callbacks a PeerConn implementation fires. They may
// arrive on any goroutine; the agent re-serializes them onto its loop.
type ConnEvents struct {
	LocalCandidate func(cand protocol.CandidateInit)
	StateChange    func(state ConnState)
}

// ConnFactory builds the connection for one remote peer. The returned bool
// reports whether local media was attached.
type ConnFactory func(remoteID string, events ConnEvents) (PeerConn, bool, error)

// PeerLink is the per-remote-peer negotiation state machine. Owned
// exclusively by the agent that created it; destroyed on terminal state.
type PeerLink struct {
	remoteID      string
	conn          PeerConn
	state         LinkState
	mediaAttached bool

	// Candidates that arrived before the remote description. They are
	// buffered and flushed once the description is applied; the same
	// policy covers both protocol variants.
	remoteSet bool
	pending   []protocol.CandidateInit
}

// State returns the link's lifecycle state.
func (l *PeerLink) State() LinkState { return l.state }

// RemoteID returns the id of the remote participant.
func (l *PeerLink) RemoteID() string { return l.remoteID }

// bufferOrApply queues cand until the remote description exists, then
// applies directly.
func (l *PeerLink) bufferOrApply(cand protocol.CandidateInit) error {
	if !l.remoteSet {
		l.pending = append(l.pending, cand)
		return nil
	}
	return l.conn.AddCandidate(cand)
}

// flushCandidates applies every buffered candidate after the remote
// description was set. Individual candidate failures are skipped; losing a
// candidate is a normal operating condition.
func (l *PeerLink) flushCandidates() {
	l.remoteSet = true
	for _, cand := range l.pending {
		_ = l.conn.AddCandidate(cand)
	}
	l.pending = nil
}
