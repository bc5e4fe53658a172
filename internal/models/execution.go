package models

import (
	"time"

	"gorm.io/gorm"
)

// Execution result statuses.
const (
	ExecutionPassed  = "PASSED"
	ExecutionFailed  = "FAILED"
	ExecutionBlocked = "BLOCKED"
	ExecutionSkipped = "SKIPPED"
)

// Execution records one run of a test scenario.
type Execution struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ScenarioID      uint           `gorm:"index;not null" json:"scenario_id"`
	Scenario        *TestScenario  `gorm:"foreignKey:ScenarioID" json:"scenario,omitempty"`
	ProjectID       uint           `gorm:"index;not null" json:"project_id"`
	ExecutorID      uint           `gorm:"index;not null" json:"executor_id"`
	Executor        *User          `gorm:"foreignKey:ExecutorID" json:"executor,omitempty"`
	Status          string         `gorm:"size:20;not null" json:"status"`
	Notes           string         `gorm:"type:text" json:"notes"`
	DurationSeconds int            `gorm:"default:0" json:"duration_seconds"`
	Approved        bool           `gorm:"default:false" json:"approved"`
	ApprovedBy      *uint          `json:"approved_by"`
	ExecutedAt      time.Time      `gorm:"index" json:"executed_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Execution) TableName() string { return "executions" }

// ValidExecutionStatus reports whether s is a known execution status.
func ValidExecutionStatus(s string) bool {
	switch s {
	case ExecutionPassed, ExecutionFailed, ExecutionBlocked, ExecutionSkipped:
		return true
	}
	return false
}
