package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// UpdatesChannel 프레즌스 변경 이벤트 채널
const UpdatesChannel = "presence_updates"

// Update 프레즌스 변경 이벤트
type Update struct {
	DocumentID string  `json:"document_id"`
	Action     string  `json:"action"` // join | leave
	Record     *Record `json:"record,omitempty"`
	IdentityID string  `json:"identity_id"`
	ServerID   string  `json:"server_id"`
	At         int64   `json:"at"`
}

// RedisMirror 문서별 명단을 Redis 해시에 저장하고 변경 이벤트 발행
type RedisMirror struct {
	client   *redis.Client
	ttl      time.Duration
	serverID string
}

// NewRedisMirror 생성자
func NewRedisMirror(client *redis.Client, ttl time.Duration, serverID string) *RedisMirror {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisMirror{client: client, ttl: ttl, serverID: serverID}
}

// Key 생성 유틸
func (m *RedisMirror) documentKey(documentID string) string {
	return fmt.Sprintf("presence:document:%s", documentID)
}

// Store 레코드 저장 (TTL 갱신) 후 join 이벤트 발행
func (m *RedisMirror) Store(ctx context.Context, documentID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := m.documentKey(documentID)
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, rec.ID, data)
	pipe.Expire(ctx, key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return m.publish(ctx, Update{DocumentID: documentID, Action: "join", Record: &rec, IdentityID: rec.ID})
}

// Remove 레코드 삭제 후 leave 이벤트 발행
func (m *RedisMirror) Remove(ctx context.Context, documentID, identityID string) error {
	if err := m.client.HDel(ctx, m.documentKey(documentID), identityID).Err(); err != nil {
		return err
	}
	return m.publish(ctx, Update{DocumentID: documentID, Action: "leave", IdentityID: identityID})
}

// Heartbeat 문서 명단 TTL 연장 (키가 없으면 false)
func (m *RedisMirror) Heartbeat(ctx context.Context, documentID string) (bool, error) {
	return m.client.Expire(ctx, m.documentKey(documentID), m.ttl).Result()
}

// Records 저장된 명단 조회 (다른 서버 인스턴스 포함)
func (m *RedisMirror) Records(ctx context.Context, documentID string) ([]Record, error) {
	values, err := m.client.HGetAll(ctx, m.documentKey(documentID)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(values))
	for _, v := range values {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err == nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (m *RedisMirror) publish(ctx context.Context, u Update) error {
	u.ServerID = m.serverID
	u.At = time.Now().Unix()
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, UpdatesChannel, data).Err()
}

// Subscribe 변경 이벤트 구독
func (m *RedisMirror) Subscribe(ctx context.Context) *redis.PubSub {
	return m.client.Subscribe(ctx, UpdatesChannel)
}

// KeepAlive 활성 문서 명단의 TTL을 주기적으로 연장 (ctx 종료 시 반환)
func (m *RedisMirror) KeepAlive(ctx context.Context, documents func() []string) {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range documents() {
				if _, err := m.Heartbeat(ctx, id); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Str("document", id).Msg("[Presence] heartbeat failed")
				}
			}
		}
	}
}
