package service

import (
	"context"

	"gorm.io/gorm"

	"collab-backend/internal/document"
	"collab-backend/internal/model"
)

// AccessService 문서 접근 권한 관련 비즈니스 로직
type AccessService struct {
	db *gorm.DB
}

// NewAccessService AccessService 생성
func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// IsWorkspaceOwner 워크스페이스 소유자 여부 확인
func (s *AccessService) IsWorkspaceOwner(ctx context.Context, workspaceID, userID string) bool {
	var count int64
	s.db.WithContext(ctx).Model(&model.Workspace{}).
		Where("id = ? AND workspace_owner = ?", workspaceID, userID).
		Count(&count)
	return count > 0
}

// IsCollaborator 워크스페이스 공동 편집자 여부 확인
func (s *AccessService) IsCollaborator(ctx context.Context, workspaceID, userID string) bool {
	var count int64
	s.db.WithContext(ctx).Model(&model.Collaborator{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count)
	return count > 0
}

// CanAccessWorkspace 소유자 또는 공동 편집자
func (s *AccessService) CanAccessWorkspace(ctx context.Context, workspaceID, userID string) bool {
	return s.IsWorkspaceOwner(ctx, workspaceID, userID) || s.IsCollaborator(ctx, workspaceID, userID)
}

// WorkspaceOf 문서가 속한 워크스페이스 ID (없으면 document.ErrNotFound)
func (s *AccessService) WorkspaceOf(ctx context.Context, kind model.DocumentKind, id string) (string, error) {
	if kind == model.KindWorkspace {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Workspace{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return "", document.ErrNotFound
		}
		return id, nil
	}

	var workspaceID string
	err := s.db.WithContext(ctx).Table(kind.TableName()).Where("id = ?", id).Select("workspace_id").Scan(&workspaceID).Error
	if err != nil {
		return "", err
	}
	if workspaceID == "" {
		return "", document.ErrNotFound
	}
	return workspaceID, nil
}

// CanAccessDocument 문서에 대한 편집 권한 확인
func (s *AccessService) CanAccessDocument(ctx context.Context, kind model.DocumentKind, id, userID string) (bool, error) {
	workspaceID, err := s.WorkspaceOf(ctx, kind, id)
	if err != nil {
		return false, err
	}
	return s.CanAccessWorkspace(ctx, workspaceID, userID), nil
}

// AddCollaborator 공동 편집자 추가 (이미 있으면 무시)
func (s *AccessService) AddCollaborator(ctx context.Context, workspaceID, userID string) error {
	if s.IsCollaborator(ctx, workspaceID, userID) {
		return nil
	}
	return s.db.WithContext(ctx).Create(&model.Collaborator{WorkspaceID: workspaceID, UserID: userID}).Error
}
