package websocket

import (
	"sync"

	"github.com/google/uuid"
)

// Member is anything a room can deliver frames to. Send must not block and
// reports whether the frame was queued.
type Member interface {
	ID() uuid.UUID
	Send(frame []byte) bool
}

func UserRoom(id uuid.UUID) string     { return "user:" + id.String() }
func AllianceRoom(id uuid.UUID) string { return "alliance:" + id.String() }

type room struct {
	mu      sync.RWMutex
	members map[uuid.UUID]Member
	dead    bool
}

type membership struct {
	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

// RoomDirectory maps room names to the sessions currently in them. Each room
// has its own lock, so operations on different rooms never contend. A room is
// removed from the directory as soon as its last member leaves; a room marked
// dead is never joined again, joiners retry with a fresh one.
//
// Lock order is membership, then room.
type RoomDirectory struct {
	rooms       sync.Map // string -> *room
	memberships sync.Map // uuid.UUID -> *membership
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{}
}

// Join adds m to the room. Joining twice is a no-op. It returns false when it
// lost a race with a concurrent LeaveAll for m. LeaveAll drops the session's
// record entirely, so a Join issued after it has returned starts over and
// succeeds; the gateway never joins a session once its read loop has ended.
func (d *RoomDirectory) Join(name string, m Member) bool {
	v, _ := d.memberships.LoadOrStore(m.ID(), &membership{rooms: make(map[string]struct{})})
	ms := v.(*membership)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return false
	}

	for {
		v, _ := d.rooms.LoadOrStore(name, &room{members: make(map[uuid.UUID]Member)})
		r := v.(*room)

		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			continue
		}
		r.members[m.ID()] = m
		r.mu.Unlock()
		break
	}

	ms.rooms[name] = struct{}{}
	return true
}

// Leave removes the session from the room, pruning the room when it empties.
func (d *RoomDirectory) Leave(name string, sessionID uuid.UUID) {
	if v, ok := d.memberships.Load(sessionID); ok {
		ms := v.(*membership)
		ms.mu.Lock()
		delete(ms.rooms, name)
		d.leaveRoom(name, sessionID)
		ms.mu.Unlock()
		return
	}
	d.leaveRoom(name, sessionID)
}

func (d *RoomDirectory) leaveRoom(name string, sessionID uuid.UUID) {
	v, ok := d.rooms.Load(name)
	if !ok {
		return
	}
	r := v.(*room)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, sessionID)
	if len(r.members) == 0 && !r.dead {
		r.dead = true
		d.rooms.CompareAndDelete(name, r)
	}
}

// LeaveAll removes the session from every room it joined and returns the
// room names it left.
func (d *RoomDirectory) LeaveAll(sessionID uuid.UUID) []string {
	v, ok := d.memberships.LoadAndDelete(sessionID)
	if !ok {
		return nil
	}
	ms := v.(*membership)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true

	left := make([]string, 0, len(ms.rooms))
	for name := range ms.rooms {
		d.leaveRoom(name, sessionID)
		left = append(left, name)
	}
	ms.rooms = nil
	return left
}

// Broadcast queues frame to every member of the room except the session with
// id except (uuid.Nil excludes nobody) and returns how many members took it.
// Members that closed in the meantime drop the frame silently.
func (d *RoomDirectory) Broadcast(name string, frame []byte, except uuid.UUID) int {
	v, ok := d.rooms.Load(name)
	if !ok {
		return 0
	}
	r := v.(*room)

	r.mu.RLock()
	targets := make([]Member, 0, len(r.members))
	for id, m := range r.members {
		if id != except {
			targets = append(targets, m)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, m := range targets {
		if m.Send(frame) {
			delivered++
		}
	}
	return delivered
}

// Size reports the number of members of a room.
func (d *RoomDirectory) Size(name string) int {
	v, ok := d.rooms.Load(name)
	if !ok {
		return 0
	}
	r := v.(*room)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// RoomCount reports how many non-empty rooms exist.
func (d *RoomDirectory) RoomCount() int {
	n := 0
	d.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
