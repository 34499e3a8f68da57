package main

import (
	"github.com/rs/zerolog/log"

	"collab-backend/internal/cache"
	"collab-backend/internal/config"
	"collab-backend/internal/database"
	"collab-backend/internal/logger"
	"collab-backend/internal/server"
)

func main() {
	// 설정 로드
	cfg := config.Load()
	logger.Setup(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	// 데이터베이스 연결
	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Database connection failed")
	}
	defer database.Close()

	// Ping 테스트
	if err := database.Ping(); err != nil {
		log.Fatal().Err(err).Msg("❌ Database ping failed")
	}
	log.Info().Msg("✅ Database connected successfully")

	// Redis (선택)
	var redisClient *cache.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Redis unavailable, continuing without cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// 서버 생성 및 설정
	srv := server.New(cfg, db, redisClient)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
