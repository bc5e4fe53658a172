package models

import (
	"time"

	"gorm.io/gorm"
)

// Evidence is a file attached to an execution or a bug (screenshot, log dump).
// ObjectKey locates the blob in the configured storage backend.
type Evidence struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProjectID   uint           `gorm:"index;not null" json:"project_id"`
	ExecutionID *uint          `gorm:"index" json:"execution_id"`
	BugID       *uint          `gorm:"index" json:"bug_id"`
	FileName    string         `gorm:"size:300;not null" json:"file_name"`
	ObjectKey   string         `gorm:"size:500;uniqueIndex;not null" json:"-"`
	ContentType string         `gorm:"size:100" json:"content_type"`
	SizeBytes   int64          `gorm:"default:0" json:"size_bytes"`
	UploadedBy  uint           `gorm:"not null" json:"uploaded_by"`
	Uploader    *User          `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Evidence) TableName() string { return "evidences" }
