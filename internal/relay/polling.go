package relay

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// TransportPolling 롱폴링 전송 이름
const TransportPolling = "polling"

// ErrConnClosed 이미 종료된 연결
var ErrConnClosed = errors.New("connection closed")

// Poller WebSocket을 쓸 수 없는 클라이언트를 위한 HTTP 롱폴링 전송
type Poller struct {
	hub     *Hub
	clock   clock.Clock
	timeout time.Duration
	grace   time.Duration
}

// NewPoller Poller 생성
func NewPoller(hub *Hub, clk clock.Clock, timeout, grace time.Duration) *Poller {
	if clk == nil {
		clk = clock.New()
	}
	return &Poller{hub: hub, clock: clk, timeout: timeout, grace: grace}
}

// Timeout 폴링 대기 시간
func (p *Poller) Timeout() time.Duration {
	return p.timeout
}

// Open 새 롱폴링 연결
func (p *Poller) Open(userID string) *Conn {
	c := p.hub.Connect(TransportPolling, userID)
	c.Touch(p.clock.Now())
	return c
}

// Lookup sid로 롱폴링 연결 조회
func (p *Poller) Lookup(sid string) (*Conn, bool) {
	c, ok := p.hub.Conn(sid)
	if !ok || c.Transport != TransportPolling {
		return nil, false
	}
	return c, true
}

// Drain 첫 프레임이 올 때까지 최대 timeout 대기 후, 쌓인 프레임을 모두 꺼낸다
func (p *Poller) Drain(ctx context.Context, c *Conn) ([]Frame, error) {
	c.Touch(p.clock.Now())
	defer func() { c.Touch(p.clock.Now()) }()

	timer := p.clock.Timer(p.timeout)
	defer timer.Stop()

	var frames []Frame
	select {
	case f := <-c.send:
		frames = append(frames, f)
	case <-timer.C:
		return nil, nil
	case <-c.done:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for {
		select {
		case f := <-c.send:
			frames = append(frames, f)
		default:
			return frames, nil
		}
	}
}

// Submit 클라이언트가 보낸 프레임 처리
func (p *Poller) Submit(c *Conn, frames []Frame) error {
	if c.Closed() {
		return ErrConnClosed
	}
	c.Touch(p.clock.Now())
	for _, f := range frames {
		p.hub.Dispatch(c, f)
	}
	return nil
}

// Close 클라이언트 요청에 의한 종료
func (p *Poller) Close(c *Conn) {
	p.hub.Disconnect(c)
}

// Reap 마지막 활동 이후 timeout+grace가 지난 롱폴링 연결 정리
func (p *Poller) Reap() int {
	deadline := p.clock.Now().Add(-(p.timeout + p.grace))
	reaped := 0
	for _, c := range p.hub.Conns() {
		if c.Transport != TransportPolling {
			continue
		}
		if c.LastSeen().Before(deadline) {
			p.hub.Disconnect(c)
			reaped++
		}
	}
	if reaped > 0 {
		log.Info().Int("reaped", reaped).Msg("[Relay] Reaped idle polling connections")
	}
	return reaped
}

// Run 주기적으로 Reap 실행 (ctx 종료 시 반환)
func (p *Poller) Run(ctx context.Context) {
	interval := p.grace
	if interval <= 0 {
		interval = p.timeout
	}
	ticker := p.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Reap()
		}
	}
}

// Handshake 롱폴링 연결 수립 응답 (시간 단위는 ms)
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
}
