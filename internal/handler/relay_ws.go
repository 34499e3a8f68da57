package handler

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"

	"collab-backend/internal/relay"
)

// TransportWebSocket 릴레이 WebSocket 전송 이름
const TransportWebSocket = "websocket"

// RelayWSHandler 릴레이 WebSocket 핸들러
type RelayWSHandler struct {
	hub          *relay.Hub
	writeTimeout time.Duration
	pingInterval time.Duration
}

// NewRelayWSHandler RelayWSHandler 생성
func NewRelayWSHandler(hub *relay.Hub, writeTimeout, pingInterval time.Duration) *RelayWSHandler {
	return &RelayWSHandler{hub: hub, writeTimeout: writeTimeout, pingInterval: pingInterval}
}

// HandleWebSocket 연결 하나: reader 루프(이 고루틴) + writer 고루틴
func (h *RelayWSHandler) HandleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(string)
	conn := h.hub.Connect(TransportWebSocket, userID)

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(c, conn, stop)
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("conn", conn.ID).Msg("[Relay] WebSocket loop panic recovered")
		}
		h.hub.Disconnect(conn)
		close(stop)
		<-writerDone
		c.Close()
	}()

	// pong(또는 메시지)이 pingInterval + writeTimeout 안에 오지 않으면 끊긴 연결로 본다
	readTimeout := h.pingInterval + h.writeTimeout
	if h.pingInterval > 0 {
		c.SetReadDeadline(time.Now().Add(readTimeout))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("conn", conn.ID).Msg("[Relay] Read error")
			}
			return
		}
		if h.pingInterval > 0 {
			c.SetReadDeadline(time.Now().Add(readTimeout))
		}
		h.hub.HandleMessage(conn, data)
	}
}

func (h *RelayWSHandler) writeLoop(c *websocket.Conn, conn *relay.Conn, stop <-chan struct{}) {
	var pingC <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		pingC = ticker.C
	}

	for {
		select {
		case <-stop:
			return
		case <-conn.Done():
			return
		case f := <-conn.Outbound():
			c.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.WriteJSON(f); err != nil {
				log.Warn().Err(err).Str("conn", conn.ID).Msg("[Relay] Write failed")
				c.Close()
				return
			}
		case <-pingC:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				c.Close()
				return
			}
		}
	}
}
