package relay

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConn(id string) *Conn {
	return newConn(id, "test", "", 16)
}

func TestJoinLeavesPreviousRoom(t *testing.T) {
	r := NewRegistry()
	c := testConn("a")

	assert.Equal(t, "", r.Join(c, "doc1"))
	assert.True(t, r.Exists("doc1"))

	assert.Equal(t, "doc1", r.Join(c, "doc2"))
	assert.False(t, r.Exists("doc1"), "empty room is destroyed")
	assert.Equal(t, "doc2", r.RoomOf(c))

	assert.Equal(t, "", r.Join(c, "doc2"), "rejoining the same room is a no-op")
	assert.Len(t, r.Members("doc2"), 1)
}

func TestLeaveUnknownRoomIsNoop(t *testing.T) {
	r := NewRegistry()
	a, b := testConn("a"), testConn("b")

	assert.False(t, r.Leave(a, "nowhere"))

	r.Join(a, "doc1")
	r.Join(b, "doc1")
	assert.False(t, r.Leave(a, "doc2"))
	assert.Len(t, r.Members("doc1"), 2)

	assert.True(t, r.Leave(a, "doc1"))
	assert.True(t, r.Exists("doc1"))
	assert.Equal(t, "doc1", r.LeaveAll(b))
	assert.False(t, r.Exists("doc1"))
	assert.Equal(t, 0, r.RoomCount())
}

func TestBroadcastExcludesOrigin(t *testing.T) {
	r := NewRegistry()
	a, b, c := testConn("a"), testConn("b"), testConn("c")
	other := testConn("other")
	r.Join(a, "doc1")
	r.Join(b, "doc1")
	r.Join(c, "doc1")
	r.Join(other, "doc2")

	f, err := NewFrame(EventReceiveChanges, map[string]any{"ops": []any{}}, "doc1")
	require.NoError(t, err)

	assert.Equal(t, 2, r.Broadcast("doc1", f, a))
	assert.Len(t, a.Outbound(), 0)
	assert.Len(t, b.Outbound(), 1)
	assert.Len(t, c.Outbound(), 1)
	assert.Len(t, other.Outbound(), 0)

	assert.Equal(t, 0, r.Broadcast("missing", f, nil))
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	r := NewRegistry()
	a := newConn("a", "test", "", 1)
	r.Join(a, "doc1")

	f := Frame{Event: EventPong}
	assert.Equal(t, 1, r.Broadcast("doc1", f, nil))
	assert.Equal(t, 0, r.Broadcast("doc1", f, nil))
}

// 임의의 join/leave 순서에서도 룸 존재 ⇔ 멤버 수 > 0, 연결당 최대 한 룸
func TestRegistryInvariantsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := NewRegistry()

	conns := make([]*Conn, 8)
	for i := range conns {
		conns[i] = testConn(fmt.Sprintf("c%d", i))
	}
	rooms := []string{"doc1", "doc2", "doc3"}

	for step := 0; step < 2000; step++ {
		c := conns[rng.Intn(len(conns))]
		room := rooms[rng.Intn(len(rooms))]
		switch rng.Intn(3) {
		case 0:
			r.Join(c, room)
		case 1:
			r.Leave(c, room)
		case 2:
			r.LeaveAll(c)
		}

		membership := make(map[*Conn]int)
		for _, id := range rooms {
			members := r.Members(id)
			assert.Equal(t, len(members) > 0, r.Exists(id), "step %d room %s", step, id)
			for _, m := range members {
				membership[m]++
				assert.Equal(t, id, r.RoomOf(m))
			}
		}
		for c, n := range membership {
			assert.LessOrEqual(t, n, 1, "conn %s in %d rooms", c.ID, n)
		}
	}
}
