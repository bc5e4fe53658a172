package models

import (
	"time"
)

// Project member roles. OWNER/MANAGER carry administrative rights; TESTER runs
// scenarios; APPROVER signs off on executions.
const (
	RoleOwner    = "OWNER"
	RoleManager  = "MANAGER"
	RoleTester   = "TESTER"
	RoleApprover = "APPROVER"
)

// ValidRole reports whether role is one of the four member roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleManager, RoleTester, RoleApprover:
		return true
	}
	return false
}

// RoleSortOrder is the fixed ordering used only for sort-by-role in member
// listings. It carries no permission semantics; authorization decisions are
// explicit branches on the role value, never comparisons of these numbers.
var RoleSortOrder = map[string]int{
	RoleApprover: 0,
	RoleManager:  1,
	RoleOwner:    2,
	RoleTester:   3,
}

// Membership grants a user standing in a project. One row per (project, user);
// removal is a physical delete, so no soft-delete column here.
type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_project_user;not null" json:"project_id"`
	Project   *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UserID    uint      `gorm:"uniqueIndex:idx_project_user;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      string    `gorm:"size:20;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Membership) TableName() string { return "memberships" }
