package pairwise

import "github.com/huddlewire/huddle/internal/protocol"

// negotiator tracks the small amount of negotiation state a pairwise
// session carries: whether an offer has gone out and which remote
// candidates arrived before the remote description. All methods are
// called from the session's Run loop only.
type negotiator struct {
	offered   bool
	remoteSet bool
	pending   []protocol.CandidateInit
}

// shouldOffer reports whether this side must send the offer now. At most
// one offer is ever produced for a session.
func (n *negotiator) shouldOffer(state protocol.RoomState) bool {
	if n.offered || !state.Initiator || state.Count < 2 {
		return false
	}
	n.offered = true
	return true
}

// candidate decides whether a remote candidate can be applied immediately.
// Before the remote description is set the candidate is buffered and apply
// is false.
func (n *negotiator) candidate(c protocol.CandidateInit) (protocol.CandidateInit, bool) {
	if n.remoteSet {
		return c, true
	}
	n.pending = append(n.pending, c)
	return c, false
}

// remoteReady marks the remote description as set and hands back every
// buffered candidate for application, oldest first.
func (n *negotiator) remoteReady() []protocol.CandidateInit {
	n.remoteSet = true
	out := n.pending
	n.pending = nil
	return out
}
