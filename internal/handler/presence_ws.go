package handler

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"collab-backend/internal/auth"
	"collab-backend/internal/presence"
)

const presenceSendBuffer = 64

// PresenceWSHandler 문서별 프레즌스 채널 핸들러
type PresenceWSHandler struct {
	tracker      *presence.Tracker
	writeTimeout time.Duration
}

// NewPresenceWSHandler PresenceWSHandler 생성
func NewPresenceWSHandler(tracker *presence.Tracker, writeTimeout time.Duration) *PresenceWSHandler {
	return &PresenceWSHandler{tracker: tracker, writeTimeout: writeTimeout}
}

type presenceInbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HandleWebSocket 구독 → track → sync. 연결이 끊기면 레코드가 빠진 sync를 보낸다.
func (h *PresenceWSHandler) HandleWebSocket(c *websocket.Conn) {
	documentID, _ := c.Locals("documentID").(string)
	claims, _ := c.Locals("claims").(*auth.Claims)
	subID := uuid.NewString()

	out := make(chan presence.Message, presenceSendBuffer)
	sink := func(m presence.Message) {
		select {
		case out <- m:
		default:
			log.Warn().Str("document", documentID).Str("subscriber", subID).Msg("[Presence] send buffer full, dropping message")
		}
	}

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-stop:
				return
			case m := <-out:
				c.SetWriteDeadline(time.Now().Add(h.writeTimeout))
				if err := c.WriteJSON(m); err != nil {
					c.Close()
					return
				}
			}
		}
	}()

	h.tracker.Subscribe(documentID, subID, sink)
	log.Info().Str("document", documentID).Str("subscriber", subID).Msg("[Presence] Subscribed")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("document", documentID).Msg("[Presence] loop panic recovered")
		}
		h.tracker.Unsubscribe(documentID, subID)
		close(stop)
		<-writerDone
		c.Close()
		log.Info().Str("document", documentID).Str("subscriber", subID).Msg("[Presence] Unsubscribed")
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		var msg presenceInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case presence.TypeTrack:
			var rec presence.Record
			if err := json.Unmarshal(msg.Payload, &rec); err != nil || rec.ID == "" {
				sink(presence.Message{Type: presence.TypeError, Payload: errorPayload("invalid presence record")})
				continue
			}
			// 인증된 연결은 자기 자신만 track 할 수 있다
			if claims != nil && rec.ID != claims.UserID {
				sink(presence.Message{Type: presence.TypeError, Payload: errorPayload("identity mismatch")})
				continue
			}
			h.tracker.Track(documentID, subID, rec)
		case presence.TypePing:
			sink(presence.Message{Type: presence.TypePong})
		}
	}
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"error": msg}
}
