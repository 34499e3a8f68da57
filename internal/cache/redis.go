package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrMiss 캐시에 값이 없음
var ErrMiss = errors.New("cache miss")

// RedisClient Redis 클라이언트 래퍼 (문서 캐시, 프레즌스 미러 공용)
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient 새 Redis 클라이언트 생성 후 연결 확인
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Info().Str("addr", addr).Msg("[Redis] Connected")
	return &RedisClient{client: client}, nil
}

// Wrap 기존 go-redis 클라이언트를 감싼다
func Wrap(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Client 내부 go-redis 클라이언트
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// GetJSON key의 JSON 값을 v로 디코딩 (없으면 ErrMiss)
func (r *RedisClient) GetJSON(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SetJSON v를 JSON으로 저장 (TTL 적용)
func (r *RedisClient) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// Del 키 삭제
func (r *RedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Close Redis 연결 종료
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Health Redis 상태 확인
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
