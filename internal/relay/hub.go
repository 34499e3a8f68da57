package relay

import (
	"encoding/json"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Observer 모든 수신 이벤트를 그대로 받아보는 와일드카드 관찰자 (진단용)
type Observer func(c *Conn, f Frame)

// Hub 연결 관리와 이벤트 처리
type Hub struct {
	registry   *Registry
	sendBuffer int

	mu        sync.RWMutex
	conns     map[string]*Conn
	observers []Observer
}

// NewHub Hub 생성
func NewHub(sendBuffer int) *Hub {
	return &Hub{
		registry:   NewRegistry(),
		sendBuffer: sendBuffer,
		conns:      make(map[string]*Conn),
	}
}

// Registry 룸 레지스트리
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Observe 와일드카드 관찰자 등록
func (h *Hub) Observe(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, o)
}

// Connect 새 연결 등록
func (h *Hub) Connect(transport, userID string) *Conn {
	c := newConn(uuid.NewString(), transport, userID, h.sendBuffer)

	h.mu.Lock()
	h.conns[c.ID] = c
	total := len(h.conns)
	h.mu.Unlock()

	log.Info().Str("conn", c.ID).Str("transport", transport).Int("total", total).Msg("[Relay] New connection")
	return c
}

// Disconnect 연결 해제: 룸 탈퇴 후 송신 중단
func (h *Hub) Disconnect(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c.ID]
	delete(h.conns, c.ID)
	h.mu.Unlock()

	if !ok {
		return
	}

	room := h.registry.LeaveAll(c)
	c.close()
	log.Info().Str("conn", c.ID).Str("room", room).Msg("[Relay] Disconnected")
}

// Conn ID로 연결 조회
func (h *Hub) Conn(id string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

// Conns 현재 연결 스냅샷
func (h *Hub) Conns() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

// ConnCount 현재 연결 수
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// HandleMessage 수신 메시지 디코딩 후 처리. 잘못된 JSON은 로그만 남긴다.
func (h *Hub) HandleMessage(c *Conn, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Str("conn", c.ID).Msg("[Relay] Malformed frame")
		return
	}
	h.Dispatch(c, f)
}

// Dispatch 이벤트 처리. 핸들러 패닉은 여기서 멈추고 다른 연결에 영향을 주지 않는다.
func (h *Hub) Dispatch(c *Conn, f Frame) {
	h.notify(c, f)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("conn", c.ID).
				Str("event", f.Event).
				Bytes("stack", debug.Stack()).
				Msg("[Relay] Handler panic recovered")
		}
	}()

	switch f.Event {
	case EventCreateRoom:
		roomID := f.StringArg(0)
		if roomID == "" {
			return
		}
		left := h.registry.Join(c, roomID)
		log.Info().Str("conn", c.ID).Str("room", roomID).Str("left", left).Msg("[Relay] Joined room")

	case EventLeaveRoom:
		roomID := f.StringArg(0)
		if h.registry.Leave(c, roomID) {
			log.Info().Str("conn", c.ID).Str("room", roomID).Msg("[Relay] Left room")
		}

	case EventSendChanges:
		h.relay(c, EventReceiveChanges, f)

	case EventSendCursorMove:
		h.relay(c, EventReceiveCursorMove, f)

	case EventPing:
		h.ping(c, f)

	case "":
		// 클라이언트가 보낸 ack 응답은 서버에서 쓰지 않는다
	default:
		log.Debug().Str("conn", c.ID).Str("event", f.Event).Msg("[Relay] Unknown event ignored")
	}
}

// relay send-* 이벤트를 같은 룸의 다른 멤버에게 인자 그대로 전달
func (h *Hub) relay(c *Conn, event string, f Frame) {
	roomID := f.StringArg(1)
	if roomID == "" {
		log.Warn().Str("conn", c.ID).Str("event", f.Event).Msg("[Relay] Missing room id")
		return
	}
	h.registry.Broadcast(roomID, Frame{Event: event, Args: f.Args}, c)
}

// ping 룸 전체(보낸 쪽 포함)에 pong 전송 후 ack 응답
func (h *Hub) ping(c *Conn, f Frame) {
	roomID := f.StringArg(0)
	log.Info().Str("conn", c.ID).Str("room", roomID).Msg("[Relay] Ping received, broadcasting pong")

	if roomID != "" {
		pong, err := NewFrame(EventPong, roomID)
		if err == nil {
			h.registry.Broadcast(roomID, pong, nil)
		}
	}

	if f.Ack != nil {
		ack, err := AckFrame(*f.Ack, PingAck{OK: true, ServerSocketID: c.ID})
		if err == nil {
			c.Send(ack)
		}
	}
}

// notify 관찰자 호출 (관찰자 패닉은 전달/순서에 영향 없음)
func (h *Hub) notify(c *Conn, f Frame) {
	h.mu.RLock()
	observers := h.observers
	h.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("conn", c.ID).Msg("[Relay] Observer panic recovered")
				}
			}()
			o(c, f)
		}()
	}
}

// LogObserver 모든 이벤트를 디버그 로그로 남기는 관찰자
func LogObserver(c *Conn, f Frame) {
	log.Debug().
		Str("conn", c.ID).
		Str("event", f.Event).
		Int("args", len(f.Args)).
		Msg("[Relay][onAny]")
}
