// Package document 워크스페이스/폴더/파일을 하나의 문서 뷰로 다루는 영속 계층
package document

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"collab-backend/internal/model"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidKind  = errors.New("invalid document kind")
	ErrInvalidID    = errors.New("invalid document id")
	ErrEmptyUpdate  = errors.New("no fields to update")
	ErrParentNeeded = errors.New("parent document is required")
)

// Document 세 종류 문서의 정규화된 형태
type Document struct {
	ID          string             `json:"id"`
	Kind        model.DocumentKind `json:"kind"`
	Title       string             `json:"title"`
	IconID      string             `json:"iconId"`
	Data        string             `json:"data"`
	InTrash     string             `json:"inTrash,omitempty"`
	BannerURL   string             `json:"bannerUrl,omitempty"`
	WorkspaceID string             `json:"workspaceId,omitempty"`
	FolderID    string             `json:"folderId,omitempty"`
	OwnerID     string             `json:"ownerId,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Trashed 휴지통 여부
func (d *Document) Trashed() bool {
	return d.InTrash != ""
}

// Update 부분 업데이트 (nil 필드는 건드리지 않음)
type Update struct {
	Title     *string `json:"title,omitempty"`
	IconID    *string `json:"iconId,omitempty"`
	Data      *string `json:"data,omitempty"`
	InTrash   *string `json:"inTrash,omitempty"`
	BannerURL *string `json:"bannerUrl,omitempty"`
}

// Empty 변경할 필드가 없는지
func (u Update) Empty() bool {
	return u.Title == nil && u.IconID == nil && u.Data == nil && u.InTrash == nil && u.BannerURL == nil
}

// columns 컬럼 이름 기준 변경 맵
func (u Update) columns() map[string]any {
	m := make(map[string]any)
	if u.Title != nil {
		m["title"] = *u.Title
	}
	if u.IconID != nil {
		m["icon_id"] = *u.IconID
	}
	if u.Data != nil {
		m["data"] = *u.Data
	}
	if u.InTrash != nil {
		m["in_trash"] = *u.InTrash
	}
	if u.BannerURL != nil {
		m["banner_url"] = *u.BannerURL
	}
	return m
}

// NewDocument 문서 생성 요청
type NewDocument struct {
	Kind        model.DocumentKind `json:"kind"`
	Title       string             `json:"title"`
	IconID      string             `json:"iconId"`
	Data        string             `json:"data,omitempty"`
	WorkspaceID string             `json:"workspaceId,omitempty"`
	FolderID    string             `json:"folderId,omitempty"`
	OwnerID     string             `json:"ownerId,omitempty"`
}

// Ref 문서 참조 (종류 + ID)
type Ref struct {
	Kind model.DocumentKind `json:"kind"`
	ID   string             `json:"id"`
}

// Store 문서 저장소
type Store interface {
	Fetch(ctx context.Context, kind model.DocumentKind, id string) (*Document, error)
	Update(ctx context.Context, kind model.DocumentKind, id string, u Update) (*Document, error)
	Create(ctx context.Context, nd NewDocument) (*Document, error)
	Trash(ctx context.Context, kind model.DocumentKind, id, note string) (*Document, error)
	Restore(ctx context.Context, kind model.DocumentKind, id string) (*Document, error)
	Delete(ctx context.Context, kind model.DocumentKind, id string) ([]Ref, error)
}

// ValidID 문서 ID가 UUID 형식인지 확인
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// check 종류와 ID 검증
func check(kind model.DocumentKind, id string) error {
	if !kind.IsValid() {
		return ErrInvalidKind
	}
	if !ValidID(id) {
		return ErrInvalidID
	}
	return nil
}

// Normalize 종류별 행을 정규화된 Document로 변환
func Normalize(row any) *Document {
	switch r := row.(type) {
	case *model.Workspace:
		return &Document{
			ID:          r.ID,
			Kind:        model.KindWorkspace,
			Title:       r.Title,
			IconID:      r.IconID,
			Data:        deref(r.Data),
			InTrash:     deref(r.InTrash),
			BannerURL:   deref(r.BannerURL),
			WorkspaceID: r.ID,
			OwnerID:     r.WorkspaceOwner,
			CreatedAt:   r.CreatedAt,
		}
	case *model.Folder:
		return &Document{
			ID:          r.ID,
			Kind:        model.KindFolder,
			Title:       r.Title,
			IconID:      r.IconID,
			Data:        deref(r.Data),
			InTrash:     deref(r.InTrash),
			BannerURL:   deref(r.BannerURL),
			WorkspaceID: r.WorkspaceID,
			CreatedAt:   r.CreatedAt,
		}
	case *model.File:
		return &Document{
			ID:          r.ID,
			Kind:        model.KindFile,
			Title:       r.Title,
			IconID:      r.IconID,
			Data:        deref(r.Data),
			InTrash:     deref(r.InTrash),
			BannerURL:   deref(r.BannerURL),
			WorkspaceID: r.WorkspaceID,
			FolderID:    r.FolderID,
			CreatedAt:   r.CreatedAt,
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
