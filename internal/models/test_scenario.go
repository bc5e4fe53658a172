package models

import (
	"time"

	"gorm.io/gorm"
)

// Scenario priorities.
const (
	PriorityLow      = "LOW"
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// Scenario statuses.
const (
	ScenarioDraft      = "DRAFT"
	ScenarioReady      = "READY"
	ScenarioDeprecated = "DEPRECATED"
)

// TestScenario is a single executable test case inside a package.
type TestScenario struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	PackageID      uint           `gorm:"index;not null" json:"package_id"`
	Package        *TestPackage   `gorm:"foreignKey:PackageID" json:"package,omitempty"`
	ProjectID      uint           `gorm:"index;not null" json:"project_id"`
	Title          string         `gorm:"size:300;not null" json:"title"`
	Preconditions  string         `gorm:"type:text" json:"preconditions"`
	Steps          string         `gorm:"type:text" json:"steps"`
	ExpectedResult string         `gorm:"type:text" json:"expected_result"`
	Priority       string         `gorm:"size:20;default:MEDIUM" json:"priority"`
	Status         string         `gorm:"size:20;default:DRAFT" json:"status"`
	CreatedBy      uint           `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (TestScenario) TableName() string { return "test_scenarios" }

// ValidPriority reports whether p is a known scenario priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ValidScenarioStatus reports whether s is a known scenario status.
func ValidScenarioStatus(s string) bool {
	switch s {
	case ScenarioDraft, ScenarioReady, ScenarioDeprecated:
		return true
	}
	return false
}
