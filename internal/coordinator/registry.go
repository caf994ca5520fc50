package coordinator

import "sync"

// Room is a named, ephemeral group of participants. The room mutex is held
// for the entire mutate-plus-broadcast step of every membership event, so
// all subscribers observe joins and leaves for one room in a single total
// order. Rooms in different registries or under different ids never share
// state and proceed concurrently.
type Room struct {
	id string

	mu      sync.Mutex
	members map[string]*Client

	// dead is set when the last member leaves and the room is pruned from
	// the registry. A joiner that raced the prune re-resolves the id.
	dead bool
}

func newRoom(id string) *Room {
	return &Room{id: id, members: make(map[string]*Client)}
}

// memberIDsLocked returns the current member ids. Callers hold r.mu.
func (r *Room) memberIDsLocked() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	return ids
}

// membersLocked returns the current member clients. Callers hold r.mu.
func (r *Room) membersLocked() []*Client {
	out := make([]*Client, 0, len(r.members))
	for _, c := range r.members {
		out = append(out, c)
	}
	return out
}

// Registry is the authoritative record of who is in which room. The
// registry mutex guards only the room map; membership lives behind each
// room's own mutex. Lock order is always registry before room.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Join adds p to the room named roomID, creating the room if needed. The
// step callback runs under the room lock and receives the member list as
// it was immediately before p was added; the joiner's snapshot therefore
// never includes the joiner itself. An empty roomID is a no-op and step is
// never called.
func (reg *Registry) Join(p *Client, roomID string, step func(before []*Client)) {
	if roomID == "" || p == nil {
		return
	}
	for {
		reg.mu.Lock()
		room, ok := reg.rooms[roomID]
		if !ok {
			room = newRoom(roomID)
			reg.rooms[roomID] = room
		}
		reg.mu.Unlock()

		room.mu.Lock()
		if room.dead {
			// Lost the race against the last leave; the map entry is gone.
			room.mu.Unlock()
			continue
		}
		before := room.membersLocked()
		room.members[p.id] = p
		p.room = room
		if step != nil {
			step(before)
		}
		room.mu.Unlock()
		return
	}
}

// Leave removes p from its current room, pruning the room in the same step
// if it became empty. The step callback runs under the room lock with the
// remaining members. Calling Leave for a participant that is not in a room
// is a no-op, so an explicit leave followed by the disconnect path never
// produces a second departure event.
func (reg *Registry) Leave(p *Client, step func(roomID string, remaining []*Client)) {
	if p == nil || p.room == nil {
		return
	}
	room := p.room

	reg.mu.Lock()
	room.mu.Lock()
	delete(room.members, p.id)
	p.room = nil
	if len(room.members) == 0 {
		room.dead = true
		delete(reg.rooms, room.id)
	}
	reg.mu.Unlock()

	if step != nil {
		step(room.id, room.membersLocked())
	}
	room.mu.Unlock()
}

// Snapshot returns the full member list of a room, for presence displays
// only. Negotiation relies on the join-time snapshot, never on this one.
func (reg *Registry) Snapshot(roomID string) []string {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	reg.mu.Unlock()
	if !ok {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.memberIDsLocked()
}

// RoomSizes reports the current rooms and member counts.
func (reg *Registry) RoomSizes() map[string]int {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.Unlock()

	sizes := make(map[string]int, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		if !room.dead {
			sizes[room.id] = len(room.members)
		}
		room.mu.Unlock()
	}
	return sizes
}
