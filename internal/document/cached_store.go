package document

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"collab-backend/internal/cache"
	"collab-backend/internal/model"
)

// CachedStore Redis 읽기/쓰기 관통 캐시를 얹은 저장소
type CachedStore struct {
	inner Store
	cache *cache.RedisClient
	ttl   time.Duration
}

// NewCachedStore CachedStore 생성
func NewCachedStore(inner Store, rc *cache.RedisClient, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: rc, ttl: ttl}
}

// cacheKey document:<kind>:<id>
func cacheKey(kind model.DocumentKind, id string) string {
	return "document:" + kind.String() + ":" + id
}

// Fetch 캐시 우선 조회
func (s *CachedStore) Fetch(ctx context.Context, kind model.DocumentKind, id string) (*Document, error) {
	if err := check(kind, id); err != nil {
		return nil, err
	}

	var doc Document
	err := s.cache.GetJSON(ctx, cacheKey(kind, id), &doc)
	if err == nil {
		return &doc, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("key", cacheKey(kind, id)).Msg("[DocumentCache] read failed, falling back")
	}

	fetched, err := s.inner.Fetch(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, fetched)
	return fetched, nil
}

// Update 저장 후 캐시 갱신
func (s *CachedStore) Update(ctx context.Context, kind model.DocumentKind, id string, u Update) (*Document, error) {
	doc, err := s.inner.Update(ctx, kind, id, u)
	if err != nil {
		s.evict(ctx, Ref{Kind: kind, ID: id})
		return nil, err
	}
	s.store(ctx, doc)
	return doc, nil
}

// Create 생성 후 캐시 저장
func (s *CachedStore) Create(ctx context.Context, nd NewDocument) (*Document, error) {
	doc, err := s.inner.Create(ctx, nd)
	if err != nil {
		return nil, err
	}
	s.store(ctx, doc)
	return doc, nil
}

// Trash 휴지통 이동 후 캐시 갱신
func (s *CachedStore) Trash(ctx context.Context, kind model.DocumentKind, id, note string) (*Document, error) {
	doc, err := s.inner.Trash(ctx, kind, id, note)
	if err != nil {
		return nil, err
	}
	s.store(ctx, doc)
	return doc, nil
}

// Restore 복원 후 캐시 갱신
func (s *CachedStore) Restore(ctx context.Context, kind model.DocumentKind, id string) (*Document, error) {
	doc, err := s.inner.Restore(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, doc)
	return doc, nil
}

// Delete 삭제된 모든 문서를 캐시에서 제거
func (s *CachedStore) Delete(ctx context.Context, kind model.DocumentKind, id string) ([]Ref, error) {
	removed, err := s.inner.Delete(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	s.evict(ctx, removed...)
	return removed, nil
}

func (s *CachedStore) store(ctx context.Context, doc *Document) {
	if err := s.cache.SetJSON(ctx, cacheKey(doc.Kind, doc.ID), doc, s.ttl); err != nil {
		log.Warn().Err(err).Str("document", doc.ID).Msg("[DocumentCache] write failed")
	}
}

func (s *CachedStore) evict(ctx context.Context, refs ...Ref) {
	keys := make([]string, 0, len(refs))
	for _, r := range refs {
		keys = append(keys, cacheKey(r.Kind, r.ID))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		log.Warn().Err(err).Msg("[DocumentCache] evict failed")
	}
}
