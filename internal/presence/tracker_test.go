package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) sink(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) lastSync() (SyncPayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Type == TypeSync {
			return r.msgs[i].Payload.(SyncPayload), true
		}
	}
	return SyncPayload{}, false
}

func TestTrackPushesSyncToEveryone(t *testing.T) {
	tr := NewTracker(nil)
	a, b := &recorder{}, &recorder{}

	tr.Subscribe("doc1", "s1", a.sink)
	tr.Subscribe("doc1", "s2", b.sink)
	assert.Equal(t, TypeSubscribed, a.msgs[0].Type)

	require.True(t, tr.Track("doc1", "s1", Record{ID: "alice", Handle: "alice"}))
	require.True(t, tr.Track("doc1", "s2", Record{ID: "bob", Handle: "bob"}))

	for _, r := range []*recorder{a, b} {
		got, ok := r.lastSync()
		require.True(t, ok)
		assert.Equal(t, "doc1", got.DocumentID)
		assert.Equal(t, []Record{{ID: "alice", Handle: "alice"}, {ID: "bob", Handle: "bob"}}, got.Records)
	}

	assert.False(t, tr.Track("doc1", "unknown", Record{ID: "x"}))
}

func TestUnsubscribeRemovesRecordAndResyncs(t *testing.T) {
	tr := NewTracker(nil)
	a, b := &recorder{}, &recorder{}
	tr.Subscribe("doc1", "s1", a.sink)
	tr.Subscribe("doc1", "s2", b.sink)
	tr.Track("doc1", "s1", Record{ID: "alice"})
	tr.Track("doc1", "s2", Record{ID: "bob"})

	tr.Unsubscribe("doc1", "s2")

	got, ok := a.lastSync()
	require.True(t, ok)
	assert.Equal(t, []Record{{ID: "alice"}}, got.Records)

	tr.Unsubscribe("doc1", "s1")
	assert.Equal(t, 0, tr.DocumentCount())
	tr.Unsubscribe("doc1", "s1")
}

func TestDuplicateConnectionsCollapse(t *testing.T) {
	tr := NewTracker(nil)
	r := &recorder{}
	tr.Subscribe("doc1", "tab1", r.sink)
	tr.Subscribe("doc1", "tab2", r.sink)
	tr.Track("doc1", "tab1", Record{ID: "alice"})
	tr.Track("doc1", "tab2", Record{ID: "alice"})

	assert.Len(t, tr.Records("doc1"), 1)
	tr.Unsubscribe("doc1", "tab1")
	assert.Len(t, tr.Records("doc1"), 1)
}

func TestRedisMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	mirror := NewRedisMirror(client, time.Minute, "server-1")
	sub := mirror.Subscribe(ctx)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	tr := NewTracker(mirror)
	r := &recorder{}
	tr.Subscribe("doc1", "s1", r.sink)
	tr.Track("doc1", "s1", Record{ID: "alice", Handle: "alice"})

	records, err := mirror.Records(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: "alice", Handle: "alice"}}, records)
	assert.Greater(t, mr.TTL("presence:document:doc1"), time.Duration(0))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var u Update
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &u))
	assert.Equal(t, "join", u.Action)
	assert.Equal(t, "server-1", u.ServerID)

	ok, err := mirror.Heartbeat(ctx, "doc1")
	require.NoError(t, err)
	assert.True(t, ok)

	tr.Unsubscribe("doc1", "s1")
	records, err = mirror.Records(ctx, "doc1")
	require.NoError(t, err)
	assert.Empty(t, records)

	msg, err = sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &u))
	assert.Equal(t, "leave", u.Action)
	assert.Equal(t, "alice", u.IdentityID)
}
