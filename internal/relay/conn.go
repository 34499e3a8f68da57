package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Conn 릴레이에 연결된 클라이언트 하나 (전송 방식과 무관)
//
// 송신 프레임은 버퍼 채널에 쌓이고 전송 계층의 writer 하나가 순서대로 내보낸다.
type Conn struct {
	ID        string
	Transport string
	UserID    string

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64
}

func newConn(id, transport, userID string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 256
	}
	c := &Conn{
		ID:        id,
		Transport: transport,
		UserID:    userID,
		send:      make(chan Frame, buffer),
		done:      make(chan struct{}),
	}
	c.Touch(time.Now())
	return c
}

// Send 송신 큐에 프레임 추가 (닫혔거나 버퍼가 가득 차면 false)
func (c *Conn) Send(f Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- f:
		return true
	default:
		log.Warn().Str("conn", c.ID).Str("event", f.Event).Msg("[Relay] send buffer full, dropping frame")
		return false
	}
}

// Outbound writer가 소비할 송신 채널
func (c *Conn) Outbound() <-chan Frame {
	return c.send
}

// Done 연결 종료 신호
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Closed 종료 여부
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Touch 마지막 활동 시각 갱신 (롱폴링 정리용)
func (c *Conn) Touch(t time.Time) {
	c.lastSeen.Store(t.UnixNano())
}

// LastSeen 마지막 활동 시각
func (c *Conn) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
