package diag

import (
	"sync"
	"testing"
)

func TestRecorder_CountsByReason(t *testing.T) {
	r := NewRecorder()
	r.Drop(Event{Reason: DropTargetGone})
	r.Drop(Event{Reason: DropTargetGone})
	r.Drop(Event{Reason: DropMalformed})

	if got := r.Count(DropTargetGone); got != 2 {
		t.Fatalf("Count(target_gone)=%d, want 2", got)
	}
	if got := r.Count(DropMalformed); got != 1 {
		t.Fatalf("Count(malformed)=%d, want 1", got)
	}
	if got := r.Count(DropSlowConsumer); got != 0 {
		t.Fatalf("Count(slow_consumer)=%d, want 0", got)
	}
}

func TestRecorder_ObserverReceivesEvents(t *testing.T) {
	r := NewRecorder()

	var got []Event
	r.Observe(func(ev Event) { got = append(got, ev) })

	r.Drop(Event{Reason: DropOrphanAnswer, Participant: "p1", Room: "standup"})

	if len(got) != 1 {
		t.Fatalf("observer saw %d events, want 1", len(got))
	}
	if got[0].Participant != "p1" || got[0].Room != "standup" {
		t.Fatalf("observer event = %+v", got[0])
	}
}

func TestRecorder_NilReceiverIsSafe(t *testing.T) {
	var r *Recorder
	r.Drop(Event{Reason: DropBadKind})
	if got := r.Count(DropBadKind); got != 0 {
		t.Fatalf("nil recorder Count=%d, want 0", got)
	}
}

func TestRecorder_ConcurrentDrops(t *testing.T) {
	r := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Drop(Event{Reason: DropQueueFull})
			}
		}()
	}
	wg.Wait()

	if got := r.Count(DropQueueFull); got != 800 {
		t.Fatalf("Count(queue_full)=%d, want 800", got)
	}
}
