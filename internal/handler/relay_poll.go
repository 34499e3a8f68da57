package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/relay"
)

// RelayPollHandler 릴레이 롱폴링 핸들러 (WebSocket을 쓸 수 없는 클라이언트용)
type RelayPollHandler struct {
	poller       *relay.Poller
	pingInterval int64
}

// NewRelayPollHandler RelayPollHandler 생성
func NewRelayPollHandler(poller *relay.Poller, pingIntervalMS int64) *RelayPollHandler {
	return &RelayPollHandler{poller: poller, pingInterval: pingIntervalMS}
}

// Handshake 새 롱폴링 세션
func (h *RelayPollHandler) Handshake(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)
	conn := h.poller.Open(userID)

	return c.JSON(relay.Handshake{
		SID:          conn.ID,
		Upgrades:     []string{TransportWebSocket},
		PingInterval: h.pingInterval,
		PingTimeout:  h.poller.Timeout().Milliseconds(),
	})
}

func (h *RelayPollHandler) lookup(c *fiber.Ctx) (*relay.Conn, error) {
	sid := c.Query("sid")
	if sid == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "sid is required",
		})
	}
	conn, ok := h.poller.Lookup(sid)
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown session",
		})
	}
	return conn, nil
}

// Poll 쌓인 프레임을 JSON 배열로 반환 (없으면 타임아웃까지 대기 후 빈 배열)
func (h *RelayPollHandler) Poll(c *fiber.Ctx) error {
	conn, err := h.lookup(c)
	if conn == nil {
		return err
	}

	frames, err := h.poller.Drain(c.UserContext(), conn)
	if errors.Is(err, relay.ErrConnClosed) {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "session closed",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "poll failed",
		})
	}
	if frames == nil {
		frames = []relay.Frame{}
	}
	return c.JSON(frames)
}

// Submit 클라이언트 프레임 배열 처리
func (h *RelayPollHandler) Submit(c *fiber.Ctx) error {
	conn, err := h.lookup(c)
	if conn == nil {
		return err
	}

	var frames []relay.Frame
	if err := json.Unmarshal(c.Body(), &frames); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid frame batch",
		})
	}

	if err := h.poller.Submit(conn, frames); err != nil {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "session closed",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Close 세션 종료
func (h *RelayPollHandler) Close(c *fiber.Ctx) error {
	conn, err := h.lookup(c)
	if conn == nil {
		return err
	}
	h.poller.Close(conn)
	return c.SendStatus(fiber.StatusNoContent)
}
