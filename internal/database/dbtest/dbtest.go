// Package dbtest 테스트용 인메모리 SQLite 데이터베이스
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"collab-backend/internal/database"
	"collab-backend/internal/model"
)

// Open 테스트마다 독립된 마이그레이션 완료 DB
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Seed 사용자, 워크스페이스, 폴더, 파일 한 세트 생성
type Seed struct {
	Owner     model.User
	Workspace model.Workspace
	Folder    model.Folder
	File      model.File
}

// SeedTree 기본 문서 트리 생성
func SeedTree(t testing.TB, db *gorm.DB) *Seed {
	t.Helper()

	s := &Seed{}
	s.Owner = model.User{Email: "owner@example.com"}
	require.NoError(t, db.Create(&s.Owner).Error)

	s.Workspace = model.Workspace{WorkspaceOwner: s.Owner.ID, Title: "Workspace", IconID: "📁"}
	require.NoError(t, db.Create(&s.Workspace).Error)

	s.Folder = model.Folder{WorkspaceID: s.Workspace.ID, Title: "Folder", IconID: "📂"}
	require.NoError(t, db.Create(&s.Folder).Error)

	s.File = model.File{WorkspaceID: s.Workspace.ID, FolderID: s.Folder.ID, Title: "File", IconID: "📄"}
	require.NoError(t, db.Create(&s.File).Error)

	return s
}
