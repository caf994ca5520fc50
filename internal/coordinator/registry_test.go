package coordinator

import (
	"fmt"
	"sync"
	"testing"

	"github.com/huddlewire/huddle/internal/protocol"
)

func regClient(id string) *Client {
	return &Client{id: id, send: make(chan *protocol.Message, 16)}
}

func TestRegistry_JoinSnapshotExcludesJoiner(t *testing.T) {
	reg := NewRegistry()
	a := regClient("a")
	b := regClient("b")

	reg.Join(a, "r1", func(before []*Client) {
		if len(before) != 0 {
			t.Fatalf("first joiner saw %d members, want 0", len(before))
		}
	})

	reg.Join(b, "r1", func(before []*Client) {
		if len(before) != 1 || before[0].id != "a" {
			t.Fatalf("second joiner snapshot = %v, want [a]", ids(before))
		}
	})
}

func TestRegistry_LeavePrunesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	a := regClient("a")

	reg.Join(a, "r1", nil)
	if sizes := reg.RoomSizes(); sizes["r1"] != 1 {
		t.Fatalf("RoomSizes = %v, want r1:1", sizes)
	}

	reg.Leave(a, func(roomID string, remaining []*Client) {
		if roomID != "r1" || len(remaining) != 0 {
			t.Fatalf("leave step room=%s remaining=%d", roomID, len(remaining))
		}
	})

	if sizes := reg.RoomSizes(); len(sizes) != 0 {
		t.Fatalf("empty room survived: %v", sizes)
	}
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	a := regClient("a")
	reg.Join(a, "r1", nil)

	calls := 0
	reg.Leave(a, func(string, []*Client) { calls++ })
	reg.Leave(a, func(string, []*Client) { calls++ })

	if calls != 1 {
		t.Fatalf("leave step ran %d times, want 1", calls)
	}
}

func TestRegistry_EmptyRoomIDIsNoop(t *testing.T) {
	reg := NewRegistry()
	a := regClient("a")

	called := false
	reg.Join(a, "", func([]*Client) { called = true })

	if called {
		t.Fatal("step ran for empty room id")
	}
	if len(reg.RoomSizes()) != 0 {
		t.Fatal("empty-id room was created")
	}
}

// Hammers one room with concurrent joins and leaves; afterwards the
// registry must be empty, with no participant stranded in a dead room.
func TestRegistry_ConcurrentChurn(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := regClient(fmt.Sprintf("p%d", n))
			for j := 0; j < 50; j++ {
				reg.Join(c, "busy", nil)
				reg.Leave(c, nil)
			}
		}(i)
	}
	wg.Wait()

	if sizes := reg.RoomSizes(); len(sizes) != 0 {
		t.Fatalf("rooms left after churn: %v", sizes)
	}
}

func ids(members []*Client) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.id
	}
	return out
}
