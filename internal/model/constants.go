package model

// DocumentKind 문서 종류 (workspace / folder / file)
type DocumentKind string

const (
	KindWorkspace DocumentKind = "workspace"
	KindFolder    DocumentKind = "folder"
	KindFile      DocumentKind = "file"
)

// String 메서드
func (k DocumentKind) String() string {
	return string(k)
}

// IsValid 지원하는 문서 종류인지 확인
func (k DocumentKind) IsValid() bool {
	switch k {
	case KindWorkspace, KindFolder, KindFile:
		return true
	}
	return false
}

// TableName 문서 종류에 해당하는 테이블 이름
func (k DocumentKind) TableName() string {
	switch k {
	case KindWorkspace:
		return "workspaces"
	case KindFolder:
		return "folders"
	case KindFile:
		return "files"
	}
	return ""
}

// ParseDocumentKind 문자열을 DocumentKind로 변환
func ParseDocumentKind(s string) (DocumentKind, bool) {
	k := DocumentKind(s)
	return k, k.IsValid()
}
