package server

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"collab-backend/internal/auth"
	"collab-backend/internal/cache"
	"collab-backend/internal/config"
	"collab-backend/internal/document"
	"collab-backend/internal/handler"
	"collab-backend/internal/middleware"
	"collab-backend/internal/presence"
	"collab-backend/internal/relay"
	"collab-backend/internal/service"
)

// Server Fiber 서버 래퍼
type Server struct {
	app    *fiber.App
	cfg    *config.Config
	db     *gorm.DB
	redis  *cache.RedisClient
	mirror *presence.RedisMirror

	hub     *relay.Hub
	poller  *relay.Poller
	tracker *presence.Tracker

	jwtManager          *auth.JWTManager
	docMiddleware       *middleware.DocumentMiddleware
	authHandler         *handler.AuthHandler
	documentHandler     *handler.DocumentHandler
	collaboratorHandler *handler.CollaboratorHandler
	relayWSHandler      *handler.RelayWSHandler
	relayPollHandler    *handler.RelayPollHandler
	presenceWSHandler   *handler.PresenceWSHandler
	healthHandler       *handler.HealthHandler

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New 새 서버 인스턴스 생성 (redis는 nil이면 캐시/미러 없이 동작)
func New(cfg *config.Config, db *gorm.DB, redis *cache.RedisClient) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Collab Relay",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             10 * 1024 * 1024, // 10MB (문서 스냅샷)
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	// 문서 저장소 (Redis가 있으면 읽기 캐시)
	var store document.Store = document.NewGormStore(db)
	var mirror *presence.RedisMirror
	if redis != nil {
		store = document.NewCachedStore(store, redis, cfg.Redis.CacheTTL)
		mirror = presence.NewRedisMirror(redis.Client(), cfg.Presence.TTL, uuid.NewString())
		log.Info().Msg("✅ Document cache and presence mirror enabled")
	} else {
		log.Info().Msg("ℹ️ Redis not configured (document cache and presence mirror disabled)")
	}

	hub := relay.NewHub(cfg.Relay.SendBuffer)
	hub.Observe(relay.LogObserver)
	poller := relay.NewPoller(hub, clock.New(), cfg.Relay.PollTimeout, cfg.Relay.ReapGrace)

	var tracker *presence.Tracker
	if mirror != nil {
		tracker = presence.NewTracker(mirror)
	} else {
		tracker = presence.NewTracker(nil)
	}

	access := service.NewAccessService(db)
	docMiddleware := middleware.NewDocumentMiddleware(access)

	return &Server{
		app:                 app,
		cfg:                 cfg,
		db:                  db,
		redis:               redis,
		mirror:              mirror,
		hub:                 hub,
		poller:              poller,
		tracker:             tracker,
		jwtManager:          jwtManager,
		docMiddleware:       docMiddleware,
		authHandler:         handler.NewAuthHandler(db, jwtManager, cfg.Auth.SecureCookie),
		documentHandler:     handler.NewDocumentHandler(store, docMiddleware),
		collaboratorHandler: handler.NewCollaboratorHandler(db, access),
		relayWSHandler:      handler.NewRelayWSHandler(hub, cfg.WebSocket.WriteTimeout, cfg.Relay.PingInterval),
		relayPollHandler:    handler.NewRelayPollHandler(poller, cfg.Relay.PingInterval.Milliseconds()),
		presenceWSHandler:   handler.NewPresenceWSHandler(tracker, cfg.WebSocket.WriteTimeout),
		healthHandler:       handler.NewHealthHandler(db, redis, hub, tracker),
	}
}

// errorHandler fiber.NewError를 {"error": ...} 형태로 응답
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// App 내부 fiber 앱 (테스트용)
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub 릴레이 허브
func (s *Server) Hub() *relay.Hub {
	return s.hub
}

// Tracker 프레즌스 트래커
func (s *Server) Tracker() *presence.Tracker {
	return s.tracker
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		Next: func(c *fiber.Ctx) bool {
			// 롱폴링은 요청 수가 많아 제외
			return c.Path() == s.cfg.Relay.Path+"/poll"
		},
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		AllowCredentials: s.cfg.CORS.AllowOrigins != "*",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter 설정 (토큰 갱신 엔드포인트용)
	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// Auth 라우트 그룹
	authGroup := s.app.Group("/auth")
	authGroup.Post("/refresh", authLimiter, s.authHandler.RefreshToken)
	authGroup.Post("/logout", auth.AuthMiddleware(s.jwtManager), s.authHandler.Logout)
	authGroup.Get("/me", auth.AuthMiddleware(s.jwtManager), s.authHandler.GetMe)

	// Document 라우트 그룹 (인증 필요)
	docs := s.app.Group("/api/documents", auth.AuthMiddleware(s.jwtManager))
	docs.Post("/:kind", middleware.ParseKind(), s.documentHandler.CreateDocument)

	doc := docs.Group("/:kind/:id", middleware.ParseKind(), s.docMiddleware.RequireAccess())
	doc.Get("", s.documentHandler.GetDocument)
	doc.Patch("", s.documentHandler.UpdateDocument)
	doc.Delete("", s.documentHandler.DeleteDocument)
	doc.Post("/trash", s.documentHandler.TrashDocument)
	doc.Post("/restore", s.documentHandler.RestoreDocument)
	doc.Post("/collaborators", s.collaboratorHandler.AddCollaborator)

	// 릴레이: 롱폴링 대체 전송
	relayPath := s.cfg.Relay.Path
	optionalAuth := auth.OptionalAuthMiddleware(s.jwtManager)
	s.app.Post(relayPath+"/poll/handshake", optionalAuth, s.relayPollHandler.Handshake)
	s.app.Get(relayPath+"/poll", s.relayPollHandler.Poll)
	s.app.Post(relayPath+"/poll", s.relayPollHandler.Submit)
	s.app.Delete(relayPath+"/poll", s.relayPollHandler.Close)

	// 릴레이: WebSocket
	s.app.Get(relayPath, optionalAuth, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, websocket.New(s.relayWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))

	// 프레즌스 채널
	s.app.Get("/ws/presence/:documentId", optionalAuth, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		documentID := c.Params("documentId")
		if !document.ValidID(documentID) {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		c.Locals("documentID", documentID)

		return c.Next()
	}, websocket.New(s.presenceWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))
}

// startBackground 롱폴링 정리와 프레즌스 TTL 연장
func (s *Server) startBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.poller.Run(ctx)
	if s.mirror != nil {
		go s.mirror.KeepAlive(ctx, s.tracker.Documents)
	}
}

// Serve 주어진 리스너로 서비스 (테스트용, 시그널 처리 없음)
func (s *Server) Serve(ln net.Listener) error {
	s.startBackground()
	return s.app.Listener(ln)
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("🛑 Shutting down server...")
		if err := s.Shutdown(); err != nil {
			log.Fatal().Err(err).Msg("Server shutdown error")
		}
	}()

	s.startBackground()

	log.Info().Str("addr", s.cfg.Server.Port).Msg("🚀 Collab relay starting")
	log.Info().Str("path", s.cfg.Relay.Path).Msg("📡 Relay endpoint")

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
