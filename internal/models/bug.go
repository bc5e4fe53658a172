package models

import (
	"time"

	"gorm.io/gorm"
)

// Bug statuses.
const (
	BugOpen       = "OPEN"
	BugInProgress = "IN_PROGRESS"
	BugResolved   = "RESOLVED"
	BugClosed     = "CLOSED"
)

// Bug is a defect found while executing a scenario.
type Bug struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProjectID   uint           `gorm:"index;not null" json:"project_id"`
	ScenarioID  *uint          `gorm:"index" json:"scenario_id"`
	ExecutionID *uint          `gorm:"index" json:"execution_id"`
	Title       string         `gorm:"size:300;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Severity    string         `gorm:"size:20;default:MEDIUM" json:"severity"` // reuses scenario priority values
	Status      string         `gorm:"size:20;index;default:OPEN" json:"status"`
	ReportedBy  uint           `gorm:"not null" json:"reported_by"`
	Reporter    *User          `gorm:"foreignKey:ReportedBy" json:"reporter,omitempty"`
	AssigneeID  *uint          `gorm:"index" json:"assignee_id"`
	Assignee    *User          `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Bug) TableName() string { return "bugs" }

// ValidBugStatus reports whether s is a known bug status.
func ValidBugStatus(s string) bool {
	switch s {
	case BugOpen, BugInProgress, BugResolved, BugClosed:
		return true
	}
	return false
}
