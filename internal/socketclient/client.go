// Package socketclient 릴레이 서버용 이벤트 소켓 클라이언트 (WebSocket 우선, 롱폴링 대체, 자동 재연결)
package socketclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"collab-backend/internal/relay"
)

// 전송 이름
const (
	TransportWebSocket = "websocket"
	TransportPolling   = relay.TransportPolling
)

var (
	// ErrClosed Close 이후 호출
	ErrClosed = errors.New("socket client closed")
	// ErrBufferFull 송신 버퍼가 가득 참
	ErrBufferFull = errors.New("socket send buffer full")
	// ErrGaveUp 재시도 정책이 연결을 포기함
	ErrGaveUp = errors.New("socket reconnect gave up")
)

// Handler 이벤트 핸들러. 수신 순서대로 하나의 고루틴에서 호출된다.
type Handler = func(args []json.RawMessage)

// Options 클라이언트 설정
type Options struct {
	URL          string // http(s)://host:port
	Path         string
	Token        string
	Transports   []string
	Retryer      Retryer
	SendBuffer   int
	WriteTimeout time.Duration
	// ReadTimeout 이 시간 동안 서버에서 아무것도(ping 포함) 오지 않으면 끊고 재연결한다
	ReadTimeout time.Duration
}

func (o *Options) defaults() {
	o.URL = strings.TrimRight(o.URL, "/")
	if o.Path == "" {
		o.Path = "/api/socket/io"
	}
	if len(o.Transports) == 0 {
		o.Transports = []string{TransportWebSocket, TransportPolling}
	}
	if o.Retryer == nil {
		o.Retryer = NewBackoff()
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 45 * time.Second
	}
}

// transport 연결 하나의 수명. serve는 연결이 끊기거나 ctx가 끝날 때 반환한다.
type transport interface {
	name() string
	serve(ctx context.Context, out <-chan relay.Frame, in func(relay.Frame)) error
}

// Client 이벤트 소켓 클라이언트
type Client struct {
	opts Options

	mu        sync.RWMutex
	handlers  map[string][]Handler
	onConnect []func()
	connected bool
	current   string

	ackMu   sync.Mutex
	acks    map[int64]chan []json.RawMessage
	nextAck atomic.Int64

	out     chan relay.Frame
	cancel  context.CancelFunc
	done    chan struct{}
	ready   chan struct{}
	readyMu sync.Once
	closed  atomic.Bool
	runErr  error
}

// New 클라이언트 생성 (Connect 전까지 연결하지 않는다)
func New(opts Options) *Client {
	opts.defaults()
	return &Client{
		opts:     opts,
		handlers: make(map[string][]Handler),
		acks:     make(map[int64]chan []json.RawMessage),
		out:      make(chan relay.Frame, opts.SendBuffer),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
}

// On 이벤트 핸들러 등록
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnConnect 연결(재연결 포함)될 때마다 호출
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Connect 연결 루프 시작. 첫 연결이 성립하거나 ctx가 끝날 때까지 기다린다.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		cancel()
		return errors.New("socket client already started")
	}
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)

	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return c.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connected 현재 연결 여부
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Transport 현재 사용 중인 전송 이름
func (c *Client) Transport() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Emit 이벤트 송신. 연결이 끊긴 동안에는 버퍼에 쌓였다가 재연결 후 전송된다.
func (c *Client) Emit(event string, args ...any) error {
	f, err := relay.NewFrame(event, args...)
	if err != nil {
		return err
	}
	return c.enqueue(f)
}

// EmitWithAck ack 응답을 기다리는 송신
func (c *Client) EmitWithAck(ctx context.Context, event string, args ...any) ([]json.RawMessage, error) {
	f, err := relay.NewFrame(event, args...)
	if err != nil {
		return nil, err
	}

	id := c.nextAck.Add(1)
	f.Ack = &id
	ch := make(chan []json.RawMessage, 1)

	c.ackMu.Lock()
	c.acks[id] = ch
	c.ackMu.Unlock()
	defer func() {
		c.ackMu.Lock()
		delete(c.acks, id)
		c.ackMu.Unlock()
	}()

	if err := c.enqueue(f); err != nil {
		return nil, err
	}

	select {
	case args := <-ch:
		return args, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) enqueue(f relay.Frame) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case c.out <- f:
		return nil
	default:
		log.Warn().Str("event", f.Event).Msg("[Socket] Send buffer full, dropping frame")
		return ErrBufferFull
	}
}

// Close 연결 종료. 재연결하지 않는다.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		close(c.done)
		return nil
	}
	cancel()
	<-c.done
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		t, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay, ok := c.opts.Retryer.NextDelay(attempt, err)
			attempt++
			if !ok {
				log.Error().Err(err).Int("attempts", attempt).Msg("[Socket] Giving up reconnecting")
				c.runErr = errors.Join(ErrGaveUp, err)
				return
			}
			log.Warn().Err(err).Dur("delay", delay).Msg("[Socket] Connect failed, retrying")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		attempt = 0
		c.opts.Retryer.Reset()
		c.setConnected(true, t.name())
		log.Info().Str("transport", t.name()).Msg("[Socket] Connected")

		c.readyMu.Do(func() { close(c.ready) })
		c.fireConnect()

		err = t.serve(ctx, c.out, c.dispatch)
		c.setConnected(false, "")
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("[Socket] Disconnected, reconnecting")
	}
}

// dial 설정된 순서대로 전송을 시도
func (c *Client) dial(ctx context.Context) (transport, error) {
	var errs []error
	for _, name := range c.opts.Transports {
		var (
			t   transport
			err error
		)
		switch name {
		case TransportWebSocket:
			t, err = dialWebSocket(ctx, c.opts)
		case TransportPolling:
			t, err = dialPolling(ctx, c.opts)
		default:
			err = errors.New("unknown transport " + name)
		}
		if err == nil {
			return t, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (c *Client) setConnected(v bool, name string) {
	c.mu.Lock()
	c.connected = v
	c.current = name
	c.mu.Unlock()
}

func (c *Client) fireConnect() {
	c.mu.RLock()
	fns := append([]func(){}, c.onConnect...)
	c.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// dispatch 수신 프레임 처리. ack 응답은 대기 중인 EmitWithAck로 보낸다.
func (c *Client) dispatch(f relay.Frame) {
	if f.IsAck() {
		c.ackMu.Lock()
		ch, ok := c.acks[*f.Ack]
		c.ackMu.Unlock()
		if ok {
			select {
			case ch <- f.Args:
			default:
			}
		}
		return
	}

	c.mu.RLock()
	handlers := c.handlers[f.Event]
	c.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("event", f.Event).Msg("[Socket] Handler panic recovered")
				}
			}()
			h(f.Args)
		}()
	}
}
