package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

// projectAccess is the resolved standing of a user within a project. IsOwner
// means the user is the project's owner record; Role is the explicit
// membership role, empty when the owner holds no membership row.
type projectAccess struct {
	Project *models.Project
	Role    string
	IsOwner bool
}

// resolveAccess loads the project and verifies the user may see it. Returns
// NotFound for a missing project and Forbidden for a non-member.
func resolveAccess(db *gorm.DB, projectID, userID uint) (*projectAccess, error) {
	if projectID == 0 || userID == 0 {
		return nil, response.NewBadRequest("invalid project or user id")
	}

	var project models.Project
	if err := db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}

	access := &projectAccess{Project: &project, IsOwner: project.OwnerID == userID}

	var m models.Membership
	err := db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&m).Error
	switch {
	case err == nil:
		access.Role = m.Role
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !access.IsOwner {
			return nil, response.NewForbidden("access denied to project")
		}
	default:
		return nil, err
	}

	return access, nil
}

// canAuthor reports whether the user may create or edit test content.
// Approvers are read-only on the catalog.
func (a *projectAccess) canAuthor() bool {
	if a.IsOwner {
		return true
	}
	switch a.Role {
	case models.RoleOwner, models.RoleManager, models.RoleTester:
		return true
	}
	return false
}

// canApprove reports whether the user may sign off on executions.
func (a *projectAccess) canApprove() bool {
	if a.IsOwner {
		return true
	}
	switch a.Role {
	case models.RoleOwner, models.RoleManager, models.RoleApprover:
		return true
	}
	return false
}

// canManage reports whether the user holds administrative standing.
func (a *projectAccess) canManage() bool {
	if a.IsOwner {
		return true
	}
	return a.Role == models.RoleOwner || a.Role == models.RoleManager
}
