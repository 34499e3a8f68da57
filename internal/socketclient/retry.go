package socketclient

import (
	"math"
	"math/rand"
	"time"
)

// Retryer 재연결 대기 정책
type Retryer interface {
	// NextDelay attempt는 0부터. false면 재시도를 멈춘다.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)
	// Reset 연결 성공 시 호출
	Reset()
}

// Backoff 지수 백오프 + 지터
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	MaxRetries int     // 0이면 무한
	Jitter     float64 // 0.0 ~ 1.0
}

// NewBackoff 기본값: 500ms에서 시작해 최대 10s, 무한 재시도
func NewBackoff() *Backoff {
	return &Backoff{
		Initial:    500 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.3,
	}
}

// NextDelay Retryer 구현
func (b *Backoff) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if b.MaxRetries > 0 && attempt >= b.MaxRetries {
		return 0, false
	}

	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 {
		delay += delay * b.Jitter * (2*rand.Float64() - 1)
		if delay < 0 {
			delay = float64(b.Initial)
		}
	}
	return time.Duration(delay), true
}

// Reset Retryer 구현
func (b *Backoff) Reset() {}
