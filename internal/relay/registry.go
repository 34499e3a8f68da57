package relay

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry 문서 ID → 연결 집합. 룸은 멤버가 있을 때만 존재한다.
// 연결은 동시에 최대 하나의 룸에만 속한다.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Conn]struct{}
	member map[*Conn]string
}

// NewRegistry Registry 생성
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[*Conn]struct{}),
		member: make(map[*Conn]string),
	}
}

// Join 룸 참가. 다른 룸에 있었다면 먼저 나가고 그 룸 ID를 반환한다.
func (r *Registry) Join(c *Conn, roomID string) (left string) {
	if roomID == "" {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.member[c]; ok {
		if prev == roomID {
			return ""
		}
		r.removeLocked(c, prev)
		left = prev
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[*Conn]struct{})
		r.rooms[roomID] = room
		log.Debug().Str("room", roomID).Msg("[Registry] Created room")
	}
	room[c] = struct{}{}
	r.member[c] = roomID

	log.Debug().Str("room", roomID).Str("conn", c.ID).Int("members", len(room)).Msg("[Registry] Joined")
	return left
}

// Leave 룸 탈퇴. 참가하지 않은 룸이거나 없는 룸이면 아무 일도 하지 않는다.
func (r *Registry) Leave(c *Conn, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.member[c] != roomID {
		return false
	}
	r.removeLocked(c, roomID)
	return true
}

// LeaveAll 연결이 속한 룸에서 탈퇴 (연결 종료 시)
func (r *Registry) LeaveAll(c *Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.member[c]
	if !ok {
		return ""
	}
	r.removeLocked(c, roomID)
	return roomID
}

func (r *Registry) removeLocked(c *Conn, roomID string) {
	delete(r.member, c)
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(r.rooms, roomID)
		log.Debug().Str("room", roomID).Msg("[Registry] Removed room")
	}
}

// RoomOf 연결이 속한 룸 ID
func (r *Registry) RoomOf(c *Conn) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.member[c]
}

// Members 룸 멤버 스냅샷
func (r *Registry) Members(roomID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	members := make([]*Conn, 0, len(room))
	for c := range room {
		members = append(members, c)
	}
	return members
}

// Exists 룸 존재 여부
func (r *Registry) Exists(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// RoomCount 현재 룸 개수
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Broadcast 룸의 모든 멤버에게 전송 (exclude 제외), 전달된 수 반환
func (r *Registry) Broadcast(roomID string, f Frame, exclude *Conn) int {
	delivered := 0
	for _, c := range r.Members(roomID) {
		if c == exclude {
			continue
		}
		if c.Send(f) {
			delivered++
		}
	}
	return delivered
}
