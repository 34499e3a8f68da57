package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 사용자
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	FullName  *string   `gorm:"type:text" json:"full_name,omitempty"`
	AvatarURL *string   `gorm:"type:text" json:"avatar_url,omitempty"`
	Email     string    `gorm:"type:text;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate ID 자동 생성
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Workspace 워크스페이스
type Workspace struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	WorkspaceOwner string    `gorm:"type:uuid;not null;index" json:"workspace_owner"`
	Title          string    `gorm:"type:text;not null" json:"title"`
	IconID         string    `gorm:"type:text;not null" json:"icon_id"`
	Data           *string   `gorm:"type:text" json:"data,omitempty"`
	InTrash        *string   `gorm:"type:text" json:"in_trash,omitempty"`
	Logo           *string   `gorm:"type:text" json:"logo,omitempty"`
	BannerURL      *string   `gorm:"type:text" json:"banner_url,omitempty"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

// BeforeCreate ID 자동 생성
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// Folder 폴더 (워크스페이스 하위)
type Folder struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	Title       string    `gorm:"type:text;not null" json:"title"`
	IconID      string    `gorm:"type:text;not null" json:"icon_id"`
	Data        *string   `gorm:"type:text" json:"data,omitempty"`
	InTrash     *string   `gorm:"type:text" json:"in_trash,omitempty"`
	BannerURL   *string   `gorm:"type:text" json:"banner_url,omitempty"`
	WorkspaceID string    `gorm:"type:uuid;not null;index" json:"workspace_id"`
}

func (Folder) TableName() string {
	return "folders"
}

// BeforeCreate ID 자동 생성
func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// File 파일 (폴더 하위)
type File struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	Title       string    `gorm:"type:text;not null" json:"title"`
	IconID      string    `gorm:"type:text;not null" json:"icon_id"`
	Data        *string   `gorm:"type:text" json:"data,omitempty"`
	InTrash     *string   `gorm:"type:text" json:"in_trash,omitempty"`
	BannerURL   *string   `gorm:"type:text" json:"banner_url,omitempty"`
	WorkspaceID string    `gorm:"type:uuid;not null;index" json:"workspace_id"`
	FolderID    string    `gorm:"type:uuid;not null;index" json:"folder_id"`
}

func (File) TableName() string {
	return "files"
}

// BeforeCreate ID 자동 생성
func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Collaborator 워크스페이스 공동 편집자
type Collaborator struct {
	WorkspaceID string    `gorm:"type:uuid;primaryKey" json:"workspace_id"`
	UserID      string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Collaborator) TableName() string {
	return "collaborators"
}
