package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"collab-backend/internal/cache"
	"collab-backend/internal/presence"
	"collab-backend/internal/relay"
)

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	db      *gorm.DB
	redis   *cache.RedisClient
	hub     *relay.Hub
	tracker *presence.Tracker
}

// NewHealthHandler HealthHandler 생성 (redis는 nil 가능)
func NewHealthHandler(db *gorm.DB, redis *cache.RedisClient, hub *relay.Hub, tracker *presence.Tracker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, hub: hub, tracker: tracker}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RelayStats 릴레이 현황
type RelayStats struct {
	Connections       int `json:"connections"`
	Rooms             int `json:"rooms"`
	PresenceDocuments int `json:"presenceDocuments"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
	Relay     RelayStats                `json:"relay"`
}

// Check 전체 상태 확인 (DB + Redis + 릴레이 현황)
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
		Relay: RelayStats{
			Connections:       h.hub.ConnCount(),
			Rooms:             h.hub.Registry().RoomCount(),
			PresenceDocuments: h.tracker.DocumentCount(),
		},
	}

	// 1. Database 체크
	dbStart := time.Now()
	if err := h.pingDB(); err != nil {
		response.Status = "unhealthy"
		response.Checks["database"] = ComponentCheck{
			Status: "unhealthy",
			Error:  err.Error(),
		}
	} else {
		response.Checks["database"] = ComponentCheck{
			Status:  "healthy",
			Latency: time.Since(dbStart).String(),
		}
	}

	// 2. Redis 체크 (캐시는 선택 사항이라 실패해도 degraded)
	if h.redis != nil {
		redisStart := time.Now()
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		err := h.redis.Health(ctx)
		cancel()
		if err != nil {
			response.Checks["redis"] = ComponentCheck{
				Status: "degraded",
				Error:  "redis unreachable",
			}
		} else {
			response.Checks["redis"] = ComponentCheck{
				Status:  "healthy",
				Latency: time.Since(redisStart).String(),
			}
		}
	} else {
		response.Checks["redis"] = ComponentCheck{
			Status: "not_configured",
		}
	}

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(response)
}

func (h *HealthHandler) pingDB() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Liveness K8s liveness probe용 (단순 체크)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness K8s readiness probe용 (DB 연결 체크)
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if err := h.pingDB(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
	}
	return c.SendString("READY")
}
