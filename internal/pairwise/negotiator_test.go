package pairwise

import (
	"fmt"
	"testing"

	"github.com/huddlewire/huddle/internal/protocol"
)

func TestNegotiator_OffersOnlyAsInitiatorWithTwoPresent(t *testing.T) {
	var n negotiator

	if n.shouldOffer(protocol.RoomState{Count: 1, Initiator: false}) {
		t.Fatal("offered while alone")
	}
	if n.shouldOffer(protocol.RoomState{Count: 2, Initiator: false}) {
		t.Fatal("offered without the initiator role")
	}
	if !n.shouldOffer(protocol.RoomState{Count: 2, Initiator: true}) {
		t.Fatal("did not offer as initiator with a peer present")
	}
}

func TestNegotiator_OffersAtMostOnce(t *testing.T) {
	var n negotiator
	state := protocol.RoomState{Count: 2, Initiator: true}

	if !n.shouldOffer(state) {
		t.Fatal("first cue ignored")
	}
	if n.shouldOffer(state) {
		t.Fatal("offered a second time")
	}
}

func TestNegotiator_BuffersCandidatesUntilRemoteReady(t *testing.T) {
	var n negotiator

	for i := 0; i < 3; i++ {
		cand := protocol.CandidateInit{Candidate: fmt.Sprintf("candidate:%d", i)}
		if _, apply := n.candidate(cand); apply {
			t.Fatalf("candidate %d applied before remote description", i)
		}
	}

	flushed := n.remoteReady()
	if len(flushed) != 3 {
		t.Fatalf("flushed %d candidates, want 3", len(flushed))
	}
	for i, cand := range flushed {
		if cand.Candidate != fmt.Sprintf("candidate:%d", i) {
			t.Fatalf("flush out of order at %d: %q", i, cand.Candidate)
		}
	}

	// After the description, candidates pass straight through.
	if _, apply := n.candidate(protocol.CandidateInit{Candidate: "candidate:late"}); !apply {
		t.Fatal("late candidate was buffered")
	}
	if flushed := n.remoteReady(); len(flushed) != 0 {
		t.Fatalf("second flush returned %d candidates, want 0", len(flushed))
	}
}
