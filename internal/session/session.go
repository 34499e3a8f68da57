// Package session 참여자 한 명의 편집 세션 (입장/퇴장 순서, 초기 로드, 원격 적용, 디바운스 저장, 커서)
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"collab-backend/internal/auth"
	"collab-backend/internal/delta"
	"collab-backend/internal/document"
	"collab-backend/internal/model"
	"collab-backend/internal/presence"
	"collab-backend/internal/relay"
)

var (
	// ErrInvalidDocumentID UUID 형식이 아닌 문서 ID
	ErrInvalidDocumentID = errors.New("invalid document id")
	// ErrLoadFailed 초기 문서 로드 실패
	ErrLoadFailed = errors.New("document load failed")
	// ErrSuperseded 로드 도중 다른 문서로 전환됨
	ErrSuperseded = errors.New("document open superseded")
	// ErrNotEditing 편집 중인 문서가 없음
	ErrNotEditing = errors.New("no document is being edited")
	// ErrClosed 종료된 세션
	ErrClosed = errors.New("session closed")
)

// State 세션 상태
type State int

const (
	StateIdle    State = iota // 문서 없음
	StateLoading              // 입장 후 초기 로드 중
	StateEditing              // 편집 가능
	StateClosed               // 종료
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateEditing:
		return "editing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status 저장 상태 표시
type Status int

const (
	StatusSaved Status = iota
	StatusSaving
	StatusUnsaved
)

// String 상태를 문자열로 반환
func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "Saved"
	case StatusSaving:
		return "Saving"
	case StatusUnsaved:
		return "Unsaved"
	default:
		return "unknown"
	}
}

// Persistence 문서 저장소 중 세션이 쓰는 부분
type Persistence interface {
	Fetch(ctx context.Context, kind model.DocumentKind, id string) (*document.Document, error)
	Update(ctx context.Context, kind model.DocumentKind, id string, u document.Update) (*document.Document, error)
}

// Transport 이벤트 소켓 중 세션이 쓰는 부분
type Transport interface {
	Emit(event string, args ...any) error
	EmitWithAck(ctx context.Context, event string, args ...any) ([]json.RawMessage, error)
	On(event string, h func(args []json.RawMessage))
	OnConnect(fn func())
}

// PresenceChannel 열린 프레즌스 구독
type PresenceChannel interface {
	Close() error
}

// PresenceDialer 문서의 프레즌스 채널을 연다. onSync는 sync마다 호출된다.
type PresenceDialer func(ctx context.Context, documentID string, rec presence.Record, onSync func(presence.SyncPayload)) (PresenceChannel, error)

// Config 세션 설정
type Config struct {
	Identity    auth.Identity
	QuietWindow time.Duration
	SaveTimeout time.Duration
	Clock       clock.Clock

	Persistence Persistence
	Transport   Transport
	Presence    PresenceDialer // nil이면 프레즌스 없이 동작

	OnStatus       func(Status)
	OnError        func(error)
	OnNavigateAway func(documentID string, err error)
	OnRemoteChange func(documentID string, change delta.Delta)
	OnPresence     func(documentID string, records []presence.Record)
}

// Session 참여자 한 명의 편집 세션 (Thread-Safe)
type Session struct {
	cfg    Config
	editor *delta.Buffer
	roster *presence.Roster
	seq    *Sequencer

	mu         sync.Mutex
	state      State
	kind       model.DocumentKind
	documentID string
	generation uint64
	status     Status
	local      *document.Document
	channel    PresenceChannel
}

// New 세션 생성 후 전송 계층 이벤트 구독
func New(cfg Config) *Session {
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 15 * time.Second
	}

	s := &Session{
		cfg:    cfg,
		editor: delta.NewBuffer(),
		roster: presence.NewRoster(),
		state:  StateIdle,
		status: StatusSaved,
	}
	s.seq = NewSequencer(cfg.Clock, cfg.QuietWindow, s.flush)

	cfg.Transport.On(relay.EventReceiveChanges, s.onReceiveChanges)
	cfg.Transport.On(relay.EventReceiveCursorMove, s.onReceiveCursorMove)
	cfg.Transport.OnConnect(s.rejoin)
	return s
}

// Open 문서 전환: 이전 룸 퇴장 → 새 룸 입장 → 정본 로드 후 전체 교체
func (s *Session) Open(ctx context.Context, kind model.DocumentKind, documentID string) error {
	if !kind.IsValid() {
		return document.ErrInvalidKind
	}
	if !document.ValidID(documentID) {
		return ErrInvalidDocumentID
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}

	old := s.documentID
	oldChannel := s.channel
	s.channel = nil
	s.seq.Reset()

	// 퇴장이 입장보다 먼저 나가야 한다
	if old != "" && old != documentID {
		s.emit(relay.EventLeaveRoom, old)
	}
	if old != "" {
		s.roster.Clear(old)
	}

	s.generation++
	gen := s.generation
	s.kind = kind
	s.documentID = documentID
	s.state = StateLoading
	s.local = nil
	s.emit(relay.EventCreateRoom, documentID)
	s.mu.Unlock()

	if oldChannel != nil {
		oldChannel.Close()
	}

	doc, err := s.cfg.Persistence.Fetch(ctx, kind, documentID)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debug().Str("document", documentID).Msg("[Session] Stale fetch discarded")
		return ErrSuperseded
	}
	if err != nil {
		s.state = StateIdle
		s.documentID = ""
		s.emit(relay.EventLeaveRoom, documentID)
		s.mu.Unlock()

		log.Warn().Err(err).Str("document", documentID).Msg("[Session] Load failed, leaving document")
		if s.cfg.OnNavigateAway != nil {
			s.cfg.OnNavigateAway(documentID, err)
		}
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	contents := delta.Delta{}
	if doc.Data != "" {
		parsed, perr := delta.Parse([]byte(doc.Data))
		if perr != nil || !parsed.IsDocument() {
			log.Warn().Err(perr).Str("document", documentID).Msg("[Session] Stored contents unreadable, starting blank")
		} else {
			contents = parsed
		}
	}
	s.editor.SetContents(contents)
	s.local = doc
	s.state = StateEditing
	s.status = StatusSaved
	s.mu.Unlock()

	log.Info().Str("document", documentID).Str("kind", string(kind)).Int("length", s.editor.Length()).Msg("[Session] Editing")

	s.openPresence(ctx, gen, documentID)
	return nil
}

// openPresence 프레즌스는 부가 기능이라 실패해도 편집은 계속된다
func (s *Session) openPresence(ctx context.Context, gen uint64, documentID string) {
	if s.cfg.Presence == nil {
		return
	}

	rec := presence.Record{ID: s.cfg.Identity.ID, Handle: s.cfg.Identity.Handle, AvatarURL: s.cfg.Identity.AvatarURL}
	ch, err := s.cfg.Presence(ctx, documentID, rec, func(p presence.SyncPayload) { s.onSync(gen, p) })
	if err != nil {
		log.Warn().Err(err).Str("document", documentID).Msg("[Session] Presence unavailable")
		return
	}

	s.mu.Lock()
	if gen != s.generation || s.state == StateClosed {
		s.mu.Unlock()
		ch.Close()
		return
	}
	s.channel = ch
	s.mu.Unlock()
}

func (s *Session) onSync(gen uint64, p presence.SyncPayload) {
	s.mu.Lock()
	if gen != s.generation || p.DocumentID != s.documentID {
		s.mu.Unlock()
		return
	}
	added, removed := s.roster.Sync(p.DocumentID, s.cfg.Identity.ID, p.Records)
	s.mu.Unlock()

	if len(added) > 0 || len(removed) > 0 {
		log.Debug().Strs("added", added).Strs("removed", removed).Str("document", p.DocumentID).Msg("[Session] Cursors updated")
	}
	if s.cfg.OnPresence != nil {
		s.cfg.OnPresence(p.DocumentID, p.Records)
	}
}

// LocalChange 로컬 편집: 적용 → 즉시 중계 → 저장 타이머 재시작
func (s *Session) LocalChange(change delta.Delta) error {
	s.mu.Lock()
	if s.state != StateEditing {
		s.mu.Unlock()
		return ErrNotEditing
	}
	s.editor.Apply(change)
	s.emit(relay.EventSendChanges, change, s.documentID)
	s.mu.Unlock()

	s.seq.Touch()
	return nil
}

// MoveCursor 로컬 선택 영역 변경 중계
func (s *Session) MoveCursor(rng presence.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return ErrNotEditing
	}
	s.emit(relay.EventSendCursorMove, rng, s.documentID, s.cfg.Identity.ID)
	return nil
}

// Ping 진단용 ping. 서버의 ack를 반환한다.
func (s *Session) Ping(ctx context.Context) (relay.PingAck, error) {
	s.mu.Lock()
	documentID := s.documentID
	s.mu.Unlock()

	args, err := s.cfg.Transport.EmitWithAck(ctx, relay.EventPing, documentID)
	if err != nil {
		return relay.PingAck{}, err
	}

	var ack relay.PingAck
	if len(args) > 0 {
		if err := json.Unmarshal(args[0], &ack); err != nil {
			return relay.PingAck{}, err
		}
	}
	return ack, nil
}

func (s *Session) onReceiveChanges(args []json.RawMessage) {
	f := relay.Frame{Event: relay.EventReceiveChanges, Args: args}
	documentID := f.StringArg(1)

	var change delta.Delta
	if err := f.Arg(0, &change); err != nil {
		log.Warn().Err(err).Str("document", documentID).Msg("[Session] Malformed remote change")
		return
	}

	s.mu.Lock()
	if s.state != StateEditing || documentID != s.documentID {
		s.mu.Unlock()
		return
	}
	s.editor.Apply(change)
	s.mu.Unlock()

	if s.cfg.OnRemoteChange != nil {
		s.cfg.OnRemoteChange(documentID, change)
	}
}

func (s *Session) onReceiveCursorMove(args []json.RawMessage) {
	f := relay.Frame{Event: relay.EventReceiveCursorMove, Args: args}
	documentID := f.StringArg(1)
	identityID := f.StringArg(2)

	var rng *presence.Range
	if err := f.Arg(0, &rng); err != nil || rng == nil {
		return
	}

	s.mu.Lock()
	active := s.state == StateEditing && documentID == s.documentID
	s.mu.Unlock()
	if !active {
		return
	}
	s.roster.MoveCursor(documentID, identityID, *rng)
}

// rejoin 재연결 시 활성 문서 룸에 다시 입장
func (s *Session) rejoin() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.documentID == "" || (s.state != StateLoading && s.state != StateEditing) {
		return
	}
	log.Info().Str("document", s.documentID).Msg("[Session] Reconnected, rejoining room")
	s.emit(relay.EventCreateRoom, s.documentID)
}

// flush 시퀀서가 호출: 스냅샷 → 낙관적 로컬 반영 → 영속 쓰기 → 정본으로 보정
func (s *Session) flush() {
	s.mu.Lock()
	if s.state != StateEditing {
		s.mu.Unlock()
		return
	}
	// 빈 문서(개행 하나)는 저장하지 않는다
	if s.editor.Length() <= 1 {
		s.mu.Unlock()
		return
	}

	gen, kind, documentID := s.generation, s.kind, s.documentID
	data, err := s.editor.Contents().JSON()
	if err != nil {
		s.mu.Unlock()
		log.Error().Err(err).Str("document", documentID).Msg("[Session] Snapshot encode failed")
		return
	}
	if s.local != nil {
		s.local.Data = data
	}
	s.status = StatusSaving
	s.mu.Unlock()
	s.notifyStatus(StatusSaving)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	canonical, err := s.cfg.Persistence.Update(ctx, kind, documentID, document.Update{Data: &data})
	cancel()

	s.mu.Lock()
	if gen != s.generation {
		// 다른 문서로 전환된 뒤 끝난 쓰기
		s.mu.Unlock()
		log.Debug().Str("document", documentID).Msg("[Session] Stale write result discarded")
		return
	}
	if err != nil {
		s.status = StatusUnsaved
		s.mu.Unlock()

		log.Warn().Err(err).Str("document", documentID).Msg("[Session] Save failed")
		s.notifyStatus(StatusUnsaved)
		if s.cfg.OnError != nil {
			s.cfg.OnError(err)
		}
		return
	}
	s.local = canonical
	s.status = StatusSaved
	s.mu.Unlock()
	s.notifyStatus(StatusSaved)
}

func (s *Session) notifyStatus(st Status) {
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(st)
	}
}

// emit 호출자는 s.mu를 잡고 있어야 한다 (송신은 큐에 넣기만 하므로 막히지 않는다)
func (s *Session) emit(event string, args ...any) {
	if err := s.cfg.Transport.Emit(event, args...); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("[Session] Emit failed")
	}
}

// Close 대기 중인 저장을 마치고 룸과 프레즌스 채널을 떠난다
func (s *Session) Close() error {
	s.seq.Flush()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	documentID := s.documentID
	channel := s.channel
	s.channel = nil
	s.seq.Reset()
	if documentID != "" {
		s.emit(relay.EventLeaveRoom, documentID)
		s.roster.Clear(documentID)
	}
	s.generation++
	s.state = StateClosed
	s.documentID = ""
	s.mu.Unlock()

	if channel != nil {
		return channel.Close()
	}
	return nil
}

// State 현재 세션 상태
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status 현재 저장 상태
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// DocumentID 활성 문서 ID
func (s *Session) DocumentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentID
}

// Document 마지막으로 알려진 문서 행 (낙관적 반영 포함)
func (s *Session) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return nil
	}
	doc := *s.local
	return &doc
}

// Contents 에디터 내용
func (s *Session) Contents() delta.Delta {
	return s.editor.Contents()
}

// Text 에디터 평문
func (s *Session) Text() string {
	return s.editor.Text()
}

// Cursors 다른 참여자 커서
func (s *Session) Cursors() []presence.Cursor {
	s.mu.Lock()
	documentID := s.documentID
	s.mu.Unlock()
	return s.roster.Cursors(documentID)
}

// SaveState 시퀀서 상태
func (s *Session) SaveState() SaveState {
	return s.seq.State()
}

// DialPresence presence.Dial 기반 PresenceDialer
func DialPresence(baseURL, token string) PresenceDialer {
	return func(ctx context.Context, documentID string, rec presence.Record, onSync func(presence.SyncPayload)) (PresenceChannel, error) {
		c, err := presence.Dial(ctx, baseURL, documentID, token, rec, onSync)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
