// Package diag counts the silent-drop paths of the signaling core.
//
// Best-effort delivery means drops are normal operating behavior, but every
// one of them must still be observable: tests and operators read the
// counters, and an optional observer receives each drop as a structured
// event without anything being surfaced to participants.
package diag

import "sync"

// Drop reasons.
const (
	DropTargetGone    = "target_gone"
	DropMissingTarget = "missing_target"
	DropBadKind       = "bad_kind"
	DropMalformed     = "malformed"
	DropSlowConsumer  = "slow_consumer"
	DropOrphanAnswer  = "orphan_answer"
	DropLinkClosed    = "link_closed"
	DropQueueFull     = "queue_full"
)

// Event is one observed drop.
type Event struct {
	Reason      string
	Participant string
	Room        string
	Detail      string
}

// Recorder is a concurrency-safe counter registry with an optional
// per-event observer hook for test harnesses.
type Recorder struct {
	mu       sync.Mutex
	counts   map[string]uint64
	observer func(Event)
}

func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[string]uint64)}
}

// Observe registers fn to be called synchronously for every recorded drop.
func (r *Recorder) Observe(fn func(Event)) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

// Drop records one drop event under the given reason.
func (r *Recorder) Drop(ev Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.counts[ev.Reason]++
	fn := r.observer
	r.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// Count returns the number of drops recorded under reason.
func (r *Recorder) Count(reason string) uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[reason]
}
