package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config 로깅 설정
type Config struct {
	Level  string
	Pretty bool
	Output io.Writer
}

// Setup 전역 zerolog 로거 초기화
func Setup(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	l := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = l
	return l
}

// Component 컴포넌트 이름이 붙은 하위 로거
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
