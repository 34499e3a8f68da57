package presence

import (
	"sort"
	"sync"
)

// Range 에디터 선택 영역
type Range struct {
	Index  int `json:"index"`
	Length int `json:"length"`
}

// Cursor 다른 참여자의 커서 자리표시자. Range가 nil이면 아직 위치를 모른다.
type Cursor struct {
	IdentityID string `json:"identityId"`
	Handle     string `json:"handle"`
	Range      *Range `json:"range,omitempty"`
}

type rosterKey struct {
	documentID string
	identityID string
}

type entry struct {
	record Record
	cursor *Cursor
}

// Roster 클라이언트 측 명단. (documentID, identityID)로 색인한다.
type Roster struct {
	mu      sync.RWMutex
	entries map[rosterKey]*entry
}

// NewRoster Roster 생성
func NewRoster() *Roster {
	return &Roster{entries: make(map[rosterKey]*entry)}
}

// Sync 명단 교체. 자신을 제외한 모든 참여자의 커서 자리표시자를 보장하고,
// 더 이상 없는 참여자의 자리표시자는 제거한다.
func (r *Roster) Sync(documentID, selfID string, records []Record) (added, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	present := make(map[string]bool, len(records))
	for _, rec := range records {
		present[rec.ID] = true
		k := rosterKey{documentID, rec.ID}
		e, ok := r.entries[k]
		if !ok {
			e = &entry{}
			r.entries[k] = e
		}
		e.record = rec
		if rec.ID == selfID {
			continue
		}
		if e.cursor == nil {
			e.cursor = &Cursor{IdentityID: rec.ID, Handle: rec.Handle}
			added = append(added, rec.ID)
		} else {
			e.cursor.Handle = rec.Handle
		}
	}

	for k, e := range r.entries {
		if k.documentID != documentID || present[k.identityID] {
			continue
		}
		if e.cursor != nil {
			removed = append(removed, k.identityID)
		}
		delete(r.entries, k)
	}

	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// MoveCursor 원격 커서 이동 (last-write-wins). 자리표시자가 없으면 무시하고 false.
func (r *Roster) MoveCursor(documentID, identityID string, rng Range) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[rosterKey{documentID, identityID}]
	if !ok || e.cursor == nil {
		return false
	}
	moved := rng
	e.cursor.Range = &moved
	return true
}

// Records 문서의 명단 (ID 순)
func (r *Roster) Records(documentID string) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []Record
	for k, e := range r.entries {
		if k.documentID == documentID {
			records = append(records, e.record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// Cursors 문서의 커서 자리표시자 복사본 (ID 순)
func (r *Roster) Cursors(documentID string) []Cursor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cursors []Cursor
	for k, e := range r.entries {
		if k.documentID != documentID || e.cursor == nil {
			continue
		}
		c := *e.cursor
		if c.Range != nil {
			rng := *c.Range
			c.Range = &rng
		}
		cursors = append(cursors, c)
	}
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].IdentityID < cursors[j].IdentityID })
	return cursors
}

// Clear 문서를 떠날 때 명단 정리
func (r *Roster) Clear(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.entries {
		if k.documentID == documentID {
			delete(r.entries, k)
		}
	}
}
