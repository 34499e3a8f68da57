package document

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"collab-backend/internal/model"
)

// GormStore GORM 기반 문서 저장소
type GormStore struct {
	db *gorm.DB
}

// NewGormStore GormStore 생성
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// newRow 종류에 맞는 빈 모델
func newRow(kind model.DocumentKind) any {
	switch kind {
	case model.KindWorkspace:
		return &model.Workspace{}
	case model.KindFolder:
		return &model.Folder{}
	case model.KindFile:
		return &model.File{}
	}
	return nil
}

// Fetch 문서 조회
func (s *GormStore) Fetch(ctx context.Context, kind model.DocumentKind, id string) (*Document, error) {
	if err := check(kind, id); err != nil {
		return nil, err
	}

	row := newRow(kind)
	err := s.db.WithContext(ctx).Where("id = ?", id).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", kind, id, err)
	}
	return Normalize(row), nil
}

// Update 부분 업데이트 후 정규화된 최신 행 반환
func (s *GormStore) Update(ctx context.Context, kind model.DocumentKind, id string, u Update) (*Document, error) {
	if err := check(kind, id); err != nil {
		return nil, err
	}
	if u.Empty() {
		return nil, ErrEmptyUpdate
	}

	res := s.db.WithContext(ctx).Model(newRow(kind)).Where("id = ?", id).Updates(u.columns())
	if res.Error != nil {
		return nil, fmt.Errorf("update %s %s: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Fetch(ctx, kind, id)
}

// Create 문서 생성 (상위 문서 존재 확인)
func (s *GormStore) Create(ctx context.Context, nd NewDocument) (*Document, error) {
	db := s.db.WithContext(ctx)

	switch nd.Kind {
	case model.KindWorkspace:
		if !ValidID(nd.OwnerID) {
			return nil, ErrParentNeeded
		}
		row := &model.Workspace{
			WorkspaceOwner: nd.OwnerID,
			Title:          nd.Title,
			IconID:         nd.IconID,
			Data:           ptr(nd.Data),
		}
		if err := db.Create(row).Error; err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
		return Normalize(row), nil

	case model.KindFolder:
		if !ValidID(nd.WorkspaceID) {
			return nil, ErrParentNeeded
		}
		if _, err := s.Fetch(ctx, model.KindWorkspace, nd.WorkspaceID); err != nil {
			return nil, err
		}
		row := &model.Folder{
			WorkspaceID: nd.WorkspaceID,
			Title:       nd.Title,
			IconID:      nd.IconID,
			Data:        ptr(nd.Data),
		}
		if err := db.Create(row).Error; err != nil {
			return nil, fmt.Errorf("create folder: %w", err)
		}
		return Normalize(row), nil

	case model.KindFile:
		if !ValidID(nd.FolderID) {
			return nil, ErrParentNeeded
		}
		folder, err := s.Fetch(ctx, model.KindFolder, nd.FolderID)
		if err != nil {
			return nil, err
		}
		if nd.WorkspaceID != "" && nd.WorkspaceID != folder.WorkspaceID {
			return nil, ErrNotFound
		}
		row := &model.File{
			WorkspaceID: folder.WorkspaceID,
			FolderID:    folder.ID,
			Title:       nd.Title,
			IconID:      nd.IconID,
			Data:        ptr(nd.Data),
		}
		if err := db.Create(row).Error; err != nil {
			return nil, fmt.Errorf("create file: %w", err)
		}
		return Normalize(row), nil
	}

	return nil, ErrInvalidKind
}

// Trash 휴지통으로 이동 (note에 삭제 사유 기록)
func (s *GormStore) Trash(ctx context.Context, kind model.DocumentKind, id, note string) (*Document, error) {
	if note == "" {
		note = "Deleted"
	}
	return s.Update(ctx, kind, id, Update{InTrash: &note})
}

// Restore 휴지통에서 복원
func (s *GormStore) Restore(ctx context.Context, kind model.DocumentKind, id string) (*Document, error) {
	empty := ""
	return s.Update(ctx, kind, id, Update{InTrash: &empty})
}

// Delete 영구 삭제 (하위 문서까지), 삭제된 문서 목록 반환
func (s *GormStore) Delete(ctx context.Context, kind model.DocumentKind, id string) ([]Ref, error) {
	if err := check(kind, id); err != nil {
		return nil, err
	}

	var removed []Ref
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fileIDs, folderIDs []string

		switch kind {
		case model.KindWorkspace:
			if err := tx.Model(&model.File{}).Where("workspace_id = ?", id).Pluck("id", &fileIDs).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Folder{}).Where("workspace_id = ?", id).Pluck("id", &folderIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("workspace_id = ?", id).Delete(&model.File{}).Error; err != nil {
				return err
			}
			if err := tx.Where("workspace_id = ?", id).Delete(&model.Folder{}).Error; err != nil {
				return err
			}
			if err := tx.Where("workspace_id = ?", id).Delete(&model.Collaborator{}).Error; err != nil {
				return err
			}
		case model.KindFolder:
			if err := tx.Model(&model.File{}).Where("folder_id = ?", id).Pluck("id", &fileIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("folder_id = ?", id).Delete(&model.File{}).Error; err != nil {
				return err
			}
		}

		res := tx.Where("id = ?", id).Delete(newRow(kind))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		for _, fid := range fileIDs {
			removed = append(removed, Ref{Kind: model.KindFile, ID: fid})
		}
		for _, fid := range folderIDs {
			removed = append(removed, Ref{Kind: model.KindFolder, ID: fid})
		}
		removed = append(removed, Ref{Kind: kind, ID: id})
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return removed, nil
}

// ListTrashed 휴지통에 있는 문서 목록
func (s *GormStore) ListTrashed(ctx context.Context, kind model.DocumentKind) ([]*Document, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidKind
	}

	db := s.db.WithContext(ctx).Where("in_trash IS NOT NULL AND in_trash <> ''")
	var docs []*Document
	switch kind {
	case model.KindWorkspace:
		var rows []model.Workspace
		if err := db.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			docs = append(docs, Normalize(&rows[i]))
		}
	case model.KindFolder:
		var rows []model.Folder
		if err := db.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			docs = append(docs, Normalize(&rows[i]))
		}
	case model.KindFile:
		var rows []model.File
		if err := db.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			docs = append(docs, Normalize(&rows[i]))
		}
	}
	return docs, nil
}

// WorkspaceOf 문서가 속한 워크스페이스 ID
func (s *GormStore) WorkspaceOf(ctx context.Context, kind model.DocumentKind, id string) (string, error) {
	doc, err := s.Fetch(ctx, kind, id)
	if err != nil {
		return "", err
	}
	return doc.WorkspaceID, nil
}
