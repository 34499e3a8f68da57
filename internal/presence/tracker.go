// Package presence 문서별 참여자 명단과 커서 자리표시자 관리
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// 프레즌스 채널 메시지 타입
const (
	TypeSubscribed = "subscribed"
	TypeTrack      = "track"
	TypeSync       = "sync"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// Record 한 문서에 참여 중인 사용자 정보
type Record struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatarUrl"`
}

// Message 프레즌스 채널 메시지
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// SyncPayload 문서의 전체 명단
type SyncPayload struct {
	DocumentID string   `json:"documentId"`
	Records    []Record `json:"records"`
}

// Sink 구독자에게 메시지를 보내는 함수
type Sink func(Message)

// Mirror 명단 외부 저장소 (예: Redis)
type Mirror interface {
	Store(ctx context.Context, documentID string, rec Record) error
	Remove(ctx context.Context, documentID, identityID string) error
}

type subscriber struct {
	sink   Sink
	record *Record
}

// Tracker 서버 측 문서별 명단 (구독자 단위)
type Tracker struct {
	mu     sync.Mutex
	docs   map[string]map[string]*subscriber // documentID -> subscriberID -> subscriber
	mirror Mirror
}

// NewTracker Tracker 생성 (mirror는 nil 가능)
func NewTracker(mirror Mirror) *Tracker {
	return &Tracker{
		docs:   make(map[string]map[string]*subscriber),
		mirror: mirror,
	}
}

// Subscribe 구독자 등록. 아직 track 전이라 명단에는 보이지 않는다.
func (t *Tracker) Subscribe(documentID, subscriberID string, sink Sink) {
	t.mu.Lock()
	subs, ok := t.docs[documentID]
	if !ok {
		subs = make(map[string]*subscriber)
		t.docs[documentID] = subs
	}
	subs[subscriberID] = &subscriber{sink: sink}
	t.mu.Unlock()

	sink(Message{Type: TypeSubscribed, Payload: map[string]string{"documentId": documentID}})
}

// Track 구독자의 레코드 등록 후 문서 전체에 sync 전송
func (t *Tracker) Track(documentID, subscriberID string, rec Record) bool {
	t.mu.Lock()
	sub, ok := t.docs[documentID][subscriberID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	sub.record = &rec
	t.mu.Unlock()

	if t.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := t.mirror.Store(ctx, documentID, rec); err != nil {
			log.Warn().Err(err).Str("document", documentID).Msg("[Presence] mirror store failed")
		}
		cancel()
	}

	t.sync(documentID)
	return true
}

// Unsubscribe 구독 해제 (연결 종료). 레코드가 있었다면 남은 구독자에게 sync 전송.
func (t *Tracker) Unsubscribe(documentID, subscriberID string) {
	t.mu.Lock()
	subs := t.docs[documentID]
	sub, ok := subs[subscriberID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(t.docs, documentID)
	}
	t.mu.Unlock()

	if sub.record == nil {
		return
	}

	// 같은 사용자가 다른 연결로 남아 있으면 미러에서 지우지 않는다
	if t.mirror != nil && !t.hasIdentity(documentID, sub.record.ID) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := t.mirror.Remove(ctx, documentID, sub.record.ID); err != nil {
			log.Warn().Err(err).Str("document", documentID).Msg("[Presence] mirror remove failed")
		}
		cancel()
	}

	t.sync(documentID)
}

func (t *Tracker) hasIdentity(documentID, identityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.docs[documentID] {
		if sub.record != nil && sub.record.ID == identityID {
			return true
		}
	}
	return false
}

// Records 문서의 현재 명단 (ID 기준 정렬, 같은 사용자의 중복 연결은 하나로)
func (t *Tracker) Records(documentID string) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recordsLocked(documentID)
}

func (t *Tracker) recordsLocked(documentID string) []Record {
	seen := make(map[string]bool)
	records := make([]Record, 0, len(t.docs[documentID]))
	for _, sub := range t.docs[documentID] {
		if sub.record == nil || seen[sub.record.ID] {
			continue
		}
		seen[sub.record.ID] = true
		records = append(records, *sub.record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// DocumentCount 구독자가 있는 문서 수
func (t *Tracker) DocumentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.docs)
}

// sync 문서의 모든 구독자에게 전체 명단 전송
func (t *Tracker) sync(documentID string) {
	t.mu.Lock()
	msg := Message{Type: TypeSync, Payload: SyncPayload{DocumentID: documentID, Records: t.recordsLocked(documentID)}}
	sinks := make([]Sink, 0, len(t.docs[documentID]))
	for _, sub := range t.docs[documentID] {
		sinks = append(sinks, sub.sink)
	}
	t.mu.Unlock()

	for _, sink := range sinks {
		sink(msg)
	}
}

// Documents 구독자가 있는 문서 ID 목록
func (t *Tracker) Documents() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.docs))
	for id := range t.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
