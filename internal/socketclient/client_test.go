package socketclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/relay"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// relayServer gorilla 업그레이더로 relay.Hub에 연결하는 테스트 서버
type relayServer struct {
	*httptest.Server
	hub *relay.Hub

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newRelayServer(t *testing.T) *relayServer {
	t.Helper()
	rs := &relayServer{hub: relay.NewHub(64)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/socket/io", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		rs.mu.Lock()
		rs.conns = append(rs.conns, ws)
		rs.mu.Unlock()

		conn := rs.hub.Connect(TransportWebSocket, "")
		go func() {
			for {
				select {
				case <-conn.Done():
					return
				case f := <-conn.Outbound():
					if err := ws.WriteJSON(f); err != nil {
						return
					}
				}
			}
		}()
		defer func() {
			rs.hub.Disconnect(conn)
			ws.Close()
		}()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			rs.hub.HandleMessage(conn, data)
		}
	})

	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

// dropAll 서버 쪽에서 모든 연결을 끊는다
func (rs *relayServer) dropAll() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, ws := range rs.conns {
		ws.Close()
	}
	rs.conns = nil
}

func fastRetry() *Backoff {
	return &Backoff{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond, Multiplier: 2}
}

func connect(t *testing.T, url string) *Client {
	t.Helper()
	c := New(Options{URL: url, Transports: []string{TransportWebSocket}, Retryer: fastRetry()})
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { c.Close() })
	return c
}

// join 룸 입장 후 ping ack로 서버 처리를 확인
func join(t *testing.T, c *Client, room string) {
	t.Helper()
	require.NoError(t, c.Emit(relay.EventCreateRoom, room))
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	_, err := c.EmitWithAck(ctx, relay.EventPing, room)
	require.NoError(t, err)
}

func TestWSURL(t *testing.T) {
	got, err := wsURL("http://localhost:8080", "/api/socket/io")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/socket/io", got)

	got, err = wsURL("https://collab.example.com", "/x")
	require.NoError(t, err)
	assert.Equal(t, "wss://collab.example.com/x", got)

	_, err = wsURL("ftp://host", "/x")
	assert.Error(t, err)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := &Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2, MaxRetries: 6}

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		d, ok := b.NextDelay(i, nil)
		require.True(t, ok)
		delays = append(delays, d)
	}
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}, delays)

	_, ok := b.NextDelay(6, nil)
	assert.False(t, ok)
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 100; i++ {
		d, ok := b.NextDelay(0, nil)
		require.True(t, ok)
		assert.GreaterOrEqual(t, d, 350*time.Millisecond)
		assert.LessOrEqual(t, d, 650*time.Millisecond)
	}
}

func TestClientRelaysChangesWithinRoom(t *testing.T) {
	rs := newRelayServer(t)
	alice := connect(t, rs.URL)
	bob := connect(t, rs.URL)
	carol := connect(t, rs.URL)
	assert.Equal(t, TransportWebSocket, alice.Transport())

	received := make(chan []json.RawMessage, 4)
	bob.On(relay.EventReceiveChanges, func(args []json.RawMessage) { received <- args })
	var carolGot atomic.Int32
	carol.On(relay.EventReceiveChanges, func(args []json.RawMessage) { carolGot.Add(1) })

	join(t, alice, "doc-1")
	join(t, bob, "doc-1")
	join(t, carol, "doc-2")

	require.NoError(t, alice.Emit(relay.EventSendChanges, map[string]any{"ops": []any{map[string]any{"insert": "hi"}}}, "doc-1"))

	select {
	case args := <-received:
		f := relay.Frame{Event: relay.EventReceiveChanges, Args: args}
		assert.Equal(t, "doc-1", f.StringArg(1))
		assert.JSONEq(t, `{"ops":[{"insert":"hi"}]}`, string(args[0]))
	case <-time.After(waitFor):
		t.Fatal("bob did not receive the change")
	}
	assert.Never(t, func() bool { return carolGot.Load() > 0 }, 50*time.Millisecond, tick)
}

func TestEmitWithAckReturnsPingAck(t *testing.T) {
	rs := newRelayServer(t)
	c := connect(t, rs.URL)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	args, err := c.EmitWithAck(ctx, relay.EventPing, "")
	require.NoError(t, err)
	require.Len(t, args, 1)

	var ack relay.PingAck
	require.NoError(t, json.Unmarshal(args[0], &ack))
	assert.True(t, ack.OK)
	assert.NotEmpty(t, ack.ServerSocketID)
}

func TestClientReconnectsAndFiresOnConnect(t *testing.T) {
	rs := newRelayServer(t)
	c := New(Options{URL: rs.URL, Transports: []string{TransportWebSocket}, Retryer: fastRetry()})
	var connects atomic.Int32
	c.OnConnect(func() { connects.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	assert.Eventually(t, func() bool { return connects.Load() == 1 }, waitFor, tick)

	rs.dropAll()
	assert.Eventually(t, func() bool { return connects.Load() == 2 }, waitFor, tick)
	assert.Eventually(t, c.Connected, waitFor, tick)
}

// silentServer WebSocket 업그레이드 후 아무것도 읽거나 쓰지 않는다. ping 주기를 주면 ping만 보낸다.
func silentServer(t *testing.T, pingEvery time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var accepted atomic.Int32
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		accepted.Add(1)

		if pingEvery > 0 {
			// pong 처리를 위해 읽기는 계속한다
			go func() {
				for {
					if _, _, err := ws.ReadMessage(); err != nil {
						return
					}
				}
			}()
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-release:
					return
				case <-ticker.C:
					if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
						return
					}
				}
			}
		}
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv, &accepted
}

func TestClientReconnectsWhenServerGoesSilent(t *testing.T) {
	srv, accepted := silentServer(t, 0)
	c := New(Options{
		URL:         srv.URL,
		Transports:  []string{TransportWebSocket},
		Retryer:     fastRetry(),
		ReadTimeout: 100 * time.Millisecond,
	})
	var connects atomic.Int32
	c.OnConnect(func() { connects.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	assert.Eventually(t, func() bool { return accepted.Load() >= 2 }, waitFor, tick)
	assert.Eventually(t, func() bool { return connects.Load() >= 2 }, waitFor, tick)
}

func TestServerPingsKeepConnectionAlive(t *testing.T) {
	srv, accepted := silentServer(t, 20*time.Millisecond)
	c := New(Options{
		URL:         srv.URL,
		Transports:  []string{TransportWebSocket},
		Retryer:     fastRetry(),
		ReadTimeout: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	assert.Never(t, func() bool { return accepted.Load() > 1 }, 400*time.Millisecond, tick)
	assert.True(t, c.Connected())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{
		URL:        url,
		Transports: []string{TransportWebSocket},
		Retryer:    &Backoff{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1, MaxRetries: 2},
	})
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	err := c.Connect(ctx)
	assert.ErrorIs(t, err, ErrGaveUp)
	assert.False(t, c.Connected())
}

func TestCloseStopsClient(t *testing.T) {
	rs := newRelayServer(t)
	c := connect(t, rs.URL)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Emit(relay.EventPing), ErrClosed)
	assert.NoError(t, c.Close())

	_, err := c.EmitWithAck(context.Background(), relay.EventPing)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	c := New(Options{URL: "http://unused"})
	var calls atomic.Int32
	c.On("boom", func([]json.RawMessage) { panic("handler bug") })
	c.On("boom", func([]json.RawMessage) { calls.Add(1) })

	c.dispatch(relay.Frame{Event: "boom"})
	assert.Equal(t, int32(1), calls.Load())
}
