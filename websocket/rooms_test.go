package websocket

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMember struct {
	id       uuid.UUID
	received atomic.Int64
	closed   atomic.Bool
}

func newFakeMember() *fakeMember { return &fakeMember{id: uuid.New()} }

func (m *fakeMember) ID() uuid.UUID { return m.id }

func (m *fakeMember) Send([]byte) bool {
	if m.closed.Load() {
		return false
	}
	m.received.Add(1)
	return true
}

func TestJoinIsIdempotent(t *testing.T) {
	d := NewRoomDirectory()
	m := newFakeMember()

	require.True(t, d.Join("user:a", m))
	require.True(t, d.Join("user:a", m))

	assert.Equal(t, 1, d.Size("user:a"))
	assert.Equal(t, 1, d.Broadcast("user:a", []byte("x"), uuid.Nil))
	assert.EqualValues(t, 1, m.received.Load())
}

func TestLeavePrunesEmptyRooms(t *testing.T) {
	d := NewRoomDirectory()
	a, b := newFakeMember(), newFakeMember()

	d.Join("alliance:x", a)
	d.Join("alliance:x", b)
	d.Leave("alliance:x", a.ID())
	assert.Equal(t, 1, d.Size("alliance:x"))

	d.Leave("alliance:x", b.ID())
	assert.Equal(t, 0, d.RoomCount())

	// leaving again is harmless
	d.Leave("alliance:x", b.ID())
	assert.Equal(t, 0, d.RoomCount())
}

func TestBroadcastSkipsExcludedSession(t *testing.T) {
	d := NewRoomDirectory()
	a, b := newFakeMember(), newFakeMember()
	d.Join("alliance:x", a)
	d.Join("alliance:x", b)

	n := d.Broadcast("alliance:x", []byte("x"), a.ID())
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 0, a.received.Load())
	assert.EqualValues(t, 1, b.received.Load())
}

func TestBroadcastToMissingRoomDeliversNothing(t *testing.T) {
	d := NewRoomDirectory()
	assert.Equal(t, 0, d.Broadcast("user:nobody", []byte("x"), uuid.Nil))
}

func TestBroadcastToClosedMemberIsDropped(t *testing.T) {
	d := NewRoomDirectory()
	m := newFakeMember()
	d.Join("user:a", m)
	m.closed.Store(true)

	assert.Equal(t, 0, d.Broadcast("user:a", []byte("x"), uuid.Nil))
}

func TestLeaveAllRemovesEveryMembership(t *testing.T) {
	d := NewRoomDirectory()
	a, b := newFakeMember(), newFakeMember()
	d.Join("user:a", a)
	d.Join("alliance:x", a)
	d.Join("alliance:x", b)

	left := d.LeaveAll(a.ID())
	assert.ElementsMatch(t, []string{"user:a", "alliance:x"}, left)
	assert.Equal(t, 0, d.Size("user:a"))
	assert.Equal(t, 1, d.Size("alliance:x"))
	assert.Equal(t, 1, d.RoomCount())

	assert.Nil(t, d.LeaveAll(a.ID()))
}

func TestJoinAfterLeaveAllStartsOver(t *testing.T) {
	d := NewRoomDirectory()
	a := newFakeMember()
	require.True(t, d.Join("user:a", a))
	d.LeaveAll(a.ID())

	// the old record is gone, so a later join is tracked afresh and the
	// next LeaveAll cleans it up again
	require.True(t, d.Join("user:a", a))
	assert.Equal(t, 1, d.Size("user:a"))
	assert.Equal(t, []string{"user:a"}, d.LeaveAll(a.ID()))
	assert.Equal(t, 0, d.RoomCount())
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	d := NewRoomDirectory()
	const workers = 32

	members := make([]*fakeMember, workers)
	for i := range members {
		members[i] = newFakeMember()
	}

	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(3)
		go func(m *fakeMember) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				d.Join("alliance:hot", m)
				d.Leave("alliance:hot", m.ID())
			}
		}(m)
		go func(m *fakeMember) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				d.Join("alliance:hot", m)
			}
		}(m)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				d.Broadcast("alliance:hot", []byte("x"), uuid.Nil)
			}
		}()
	}
	wg.Wait()

	for _, m := range members {
		d.LeaveAll(m.ID())
	}
	assert.Equal(t, 0, d.RoomCount())
}
