package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

type ProjectListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Name     string `form:"name"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

type UpdateProjectRequest struct {
	Name        string  `json:"name" binding:"max=200"`
	Description *string `json:"description"`
}

// List returns the projects the user can see: those they own plus those
// they hold a membership in.
func (s *ProjectService) List(userID uint, req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Project{}).
		Where("owner_id = ? OR id IN (?)", userID,
			s.db.Model(&models.Membership{}).Select("project_id").Where("user_id = ?", userID))

	if name := strings.TrimSpace(req.Name); name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}

	var total int64
	query.Count(&total)

	var projects []models.Project
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Owner").
		Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// Create creates the project and grants the creator an explicit OWNER
// membership row in the same transaction.
func (s *ProjectService) Create(creatorID uint, req *CreateProjectRequest) (*models.Project, error) {
	project := &models.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		OwnerID:     creatorID,
	}
	if project.Name == "" {
		return nil, response.NewBadRequest("project name is required")
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		membership := &models.Membership{
			ProjectID: project.ID,
			UserID:    creatorID,
			Role:      models.RoleOwner,
		}
		return tx.Create(membership).Error
	}); err != nil {
		return nil, err
	}

	return project, nil
}

// Get returns the project if the user owns it or is a member.
func (s *ProjectService) Get(userID, projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.Preload("Owner").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}

	if project.OwnerID != userID {
		var count int64
		s.db.Model(&models.Membership{}).
			Where("project_id = ? AND user_id = ?", projectID, userID).
			Count(&count)
		if count == 0 {
			return nil, response.NewForbidden("access denied to project")
		}
	}

	return &project, nil
}

// Update changes project metadata. Only the project owner and members holding
// the OWNER or MANAGER role may update.
func (s *ProjectService) Update(userID, projectID uint, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.Get(userID, projectID)
	if err != nil {
		return nil, err
	}

	if !s.canAdminister(project, userID) {
		return nil, response.NewForbidden("only owner or manager may update the project")
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.Model(project).Updates(updates).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// Delete soft-deletes the project and hard-deletes its membership and
// invitation rows. Only the project owner may delete.
func (s *ProjectService) Delete(userID, projectID uint) error {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("project not found")
		}
		return err
	}

	if project.OwnerID != userID {
		return response.NewForbidden("only the project owner may delete the project")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
}

func (s *ProjectService) canAdminister(project *models.Project, userID uint) bool {
	if project.OwnerID == userID {
		return true
	}
	var m models.Membership
	if err := s.db.Where("project_id = ? AND user_id = ?", project.ID, userID).First(&m).Error; err != nil {
		return false
	}
	return m.Role == models.RoleOwner || m.Role == models.RoleManager
}
