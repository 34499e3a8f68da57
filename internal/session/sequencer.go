package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultQuietWindow 마지막 로컬 편집 후 저장까지 기다리는 시간
const DefaultQuietWindow = 850 * time.Millisecond

// SaveState 저장 시퀀서 상태
type SaveState int

const (
	SaveIdle     SaveState = iota // 저장할 변경 없음
	SaveDirty                     // 대기 중인 타이머 있음
	SaveFlushing                  // 쓰기 진행 중
)

// String 상태를 문자열로 반환
func (s SaveState) String() string {
	switch s {
	case SaveIdle:
		return "idle"
	case SaveDirty:
		return "dirty"
	case SaveFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Sequencer 디바운스 저장 정책. 로컬 편집마다 Touch로 타이머를 다시 걸고,
// 조용한 구간이 지나면 flush를 한 번 실행한다. flush는 동시에 하나만 돈다.
type Sequencer struct {
	clock clock.Clock
	quiet time.Duration
	flush func()

	mu      sync.Mutex
	settled *sync.Cond // Flushing을 벗어날 때 Broadcast
	state   SaveState
	timer   *clock.Timer
	seq     uint64
	pending bool
}

// NewSequencer Sequencer 생성
func NewSequencer(clk clock.Clock, quiet time.Duration, flush func()) *Sequencer {
	if clk == nil {
		clk = clock.New()
	}
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	s := &Sequencer{clock: clk, quiet: quiet, flush: flush}
	s.settled = sync.NewCond(&s.mu)
	return s
}

// Touch 로컬 편집 발생: 대기 중인 타이머를 취소하고 새로 건다
func (s *Sequencer) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	if s.state == SaveIdle {
		s.state = SaveDirty
	}
	s.timer = s.clock.AfterFunc(s.quiet, func() { s.fire(seq) })
}

func (s *Sequencer) fire(seq uint64) {
	s.mu.Lock()
	if seq != s.seq {
		// Stop 이후 이미 발화한 타이머
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.state == SaveFlushing {
		// 진행 중인 쓰기가 끝나면 최신 내용으로 한 번 더
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.state = SaveFlushing
	s.mu.Unlock()

	s.run()
}

func (s *Sequencer) run() {
	for {
		s.flush()

		s.mu.Lock()
		if s.pending {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		if s.timer != nil {
			s.state = SaveDirty
		} else {
			s.state = SaveIdle
		}
		s.settled.Broadcast()
		s.mu.Unlock()
		return
	}
}

// Flush 대기 중인 저장을 즉시 실행하고 끝날 때까지 기다린다.
// 쓰기가 진행 중이면 걸려 있는 타이머를 후속 flush로 바꾸고 run 루프가 끝나길 기다린다.
// flush 콜백 안에서 호출하면 안 된다.
func (s *Sequencer) Flush() {
	s.mu.Lock()
	if s.state == SaveFlushing {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
			s.seq++
			s.pending = true
		}
		for s.state == SaveFlushing {
			s.settled.Wait()
		}
		s.mu.Unlock()
		return
	}
	if s.state != SaveDirty || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.seq++
	s.state = SaveFlushing
	s.mu.Unlock()

	s.run()
}

// Reset 대기 중인 타이머 취소 (문서 전환). 진행 중인 쓰기는 끝까지 가지만 후속 flush는 없다.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
	s.pending = false
	if s.state != SaveFlushing {
		s.state = SaveIdle
	}
}

// State 현재 상태
func (s *Sequencer) State() SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
