package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// ErrMissingSecret JWT_SECRET 미설정
var ErrMissingSecret = errors.New("JWT_SECRET is not set")

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Relay     RelayConfig
	Presence  PresenceConfig
	Collab    CollabConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Log       LogConfig
}

// RedisConfig Redis 설정 (Addr가 비어 있으면 캐시/미러 비활성화)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// DatabaseConfig PostgreSQL 설정
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// AuthConfig 인증 설정
type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	SecureCookie       bool
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize   int
	WriteBufferSize  int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// RelayConfig 메시지 릴레이 설정
type RelayConfig struct {
	Path         string
	SendBuffer   int
	PollTimeout  time.Duration
	PingInterval time.Duration
	ReapGrace    time.Duration
}

// PresenceConfig 프레즌스 설정
type PresenceConfig struct {
	TTL time.Duration
}

// CollabConfig 편집 세션 설정 (클라이언트 측)
type CollabConfig struct {
	SaveDebounce time.Duration
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// LogConfig 로깅 설정
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load 환경 변수에서 설정 로드
func Load() *Config {
	// .env 파일 로드 (없어도 에러 무시)
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("ℹ️ No .env file found, using environment variables")
	}

	cfg, err := FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("🚨 CRITICAL: invalid configuration")
	}
	if cfg.Auth.JWTSecret == "change-this-secret-in-production" {
		log.Fatal().Msg("🚨 CRITICAL: JWT_SECRET must be changed from default value in production!")
	}
	return cfg
}

// FromEnv 현재 프로세스 환경 변수로부터 설정 구성
func FromEnv() (*Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, ErrMissingSecret
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:   getInt("WS_READ_BUFFER_SIZE", 16*1024),
			WriteBufferSize:  getInt("WS_WRITE_BUFFER_SIZE", 16*1024),
			HandshakeTimeout: getDuration("WS_HANDSHAKE_TIMEOUT", 10*time.Second),
			WriteTimeout:     getDuration("WS_WRITE_TIMEOUT", 5*time.Second),
		},
		Relay: RelayConfig{
			Path:         getEnv("RELAY_PATH", "/api/socket/io"),
			SendBuffer:   getInt("RELAY_SEND_BUFFER", 256),
			PollTimeout:  getDuration("RELAY_POLL_TIMEOUT", 25*time.Second),
			PingInterval: getDuration("RELAY_PING_INTERVAL", 25*time.Second),
			ReapGrace:    getDuration("RELAY_REAP_GRACE", 20*time.Second),
		},
		Presence: PresenceConfig{
			TTL: getDuration("PRESENCE_TTL", 60*time.Second),
		},
		Collab: CollabConfig{
			SaveDebounce: getDuration("SAVE_DEBOUNCE", 850*time.Millisecond),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
			RefreshTokenExpiry: getDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			SecureCookie:       getBool("SECURE_COOKIE", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			CacheTTL: getDuration("DOCUMENT_CACHE_TTL", 10*time.Minute),
		},
		Database: DatabaseFromEnv(),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBool("LOG_PRETTY", false),
		},
	}, nil
}

// DatabaseFromEnv DB 설정만 로드 (JWT_SECRET이 필요 없는 관리 도구용)
func DatabaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		TimeZone: getEnv("DB_TIMEZONE", "UTC"),
	}
}

// DSN PostgreSQL 접속 문자열
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode +
		" TimeZone=" + d.TimeZone
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getBool 불리언 환경 변수 조회
func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
