package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

// BugService tracks defects found while executing scenarios.
type BugService struct {
	db *gorm.DB
}

func NewBugService(db *gorm.DB) *BugService {
	return &BugService{db: db}
}

type CreateBugRequest struct {
	Title       string `json:"title" binding:"required,max=300"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	ScenarioID  *uint  `json:"scenario_id"`
	ExecutionID *uint  `json:"execution_id"`
	AssigneeID  *uint  `json:"assignee_id"`
}

type UpdateBugRequest struct {
	Title       string  `json:"title" binding:"max=300"`
	Description *string `json:"description"`
	Severity    string  `json:"severity"`
	Status      string  `json:"status"`
	AssigneeID  *uint   `json:"assignee_id"`
}

type BugListRequest struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	Status     string `form:"status"`
	Severity   string `form:"severity"`
	AssigneeID uint   `form:"assignee_id"`
	Query      string `form:"q"`
}

type BugListResponse struct {
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Items    []models.Bug `json:"items"`
}

// Create files a bug. Any project member may report.
func (s *BugService) Create(userID, projectID uint, req *CreateBugRequest) (*models.Bug, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	severity := strings.ToUpper(req.Severity)
	if severity == "" {
		severity = models.PriorityMedium
	}
	if !models.ValidPriority(severity) {
		return nil, response.NewBadRequest("invalid severity: " + req.Severity)
	}

	if req.ScenarioID != nil {
		var count int64
		s.db.Model(&models.TestScenario{}).
			Where("id = ? AND project_id = ?", *req.ScenarioID, projectID).
			Count(&count)
		if count == 0 {
			return nil, response.NewNotFound("scenario not found")
		}
	}
	if req.ExecutionID != nil {
		var count int64
		s.db.Model(&models.Execution{}).
			Where("id = ? AND project_id = ?", *req.ExecutionID, projectID).
			Count(&count)
		if count == 0 {
			return nil, response.NewNotFound("execution not found")
		}
	}
	if req.AssigneeID != nil {
		if err := s.checkAssignee(projectID, *req.AssigneeID); err != nil {
			return nil, err
		}
	}

	bug := &models.Bug{
		ProjectID:   projectID,
		ScenarioID:  req.ScenarioID,
		ExecutionID: req.ExecutionID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Severity:    severity,
		Status:      models.BugOpen,
		ReportedBy:  userID,
		AssigneeID:  req.AssigneeID,
	}
	if bug.Title == "" {
		return nil, response.NewBadRequest("bug title is required")
	}
	if err := s.db.Create(bug).Error; err != nil {
		return nil, err
	}
	return bug, nil
}

// List returns the project's bugs, newest first.
func (s *BugService) List(userID, projectID uint, req *BugListRequest) (*BugListResponse, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Bug{}).Where("project_id = ?", projectID)
	if req.Status != "" {
		status := strings.ToUpper(req.Status)
		if !models.ValidBugStatus(status) {
			return nil, response.NewBadRequest("invalid bug status: " + req.Status)
		}
		query = query.Where("status = ?", status)
	}
	if req.Severity != "" {
		severity := strings.ToUpper(req.Severity)
		if !models.ValidPriority(severity) {
			return nil, response.NewBadRequest("invalid severity: " + req.Severity)
		}
		query = query.Where("severity = ?", severity)
	}
	if req.AssigneeID != 0 {
		query = query.Where("assignee_id = ?", req.AssigneeID)
	}
	if q := strings.TrimSpace(req.Query); q != "" {
		query = query.Where("title LIKE ?", "%"+q+"%")
	}

	var total int64
	query.Count(&total)

	var items []models.Bug
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Reporter").Preload("Assignee").
		Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &BugListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

func (s *BugService) Get(userID, projectID, bugID uint) (*models.Bug, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}
	return s.find(projectID, bugID)
}

// Update edits a bug. Any member may update status and assignment.
func (s *BugService) Update(userID, projectID, bugID uint, req *UpdateBugRequest) (*models.Bug, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	bug, err := s.find(projectID, bugID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if title := strings.TrimSpace(req.Title); title != "" {
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Severity != "" {
		severity := strings.ToUpper(req.Severity)
		if !models.ValidPriority(severity) {
			return nil, response.NewBadRequest("invalid severity: " + req.Severity)
		}
		updates["severity"] = severity
	}
	if req.Status != "" {
		status := strings.ToUpper(req.Status)
		if !models.ValidBugStatus(status) {
			return nil, response.NewBadRequest("invalid bug status: " + req.Status)
		}
		updates["status"] = status
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == 0 {
			updates["assignee_id"] = nil
		} else {
			if err := s.checkAssignee(projectID, *req.AssigneeID); err != nil {
				return nil, err
			}
			updates["assignee_id"] = *req.AssigneeID
		}
	}
	if len(updates) == 0 {
		return bug, nil
	}
	if err := s.db.Model(bug).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.find(projectID, bugID)
}

// Delete removes a bug. Reporter or administrative members only.
func (s *BugService) Delete(userID, projectID, bugID uint) error {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return err
	}

	bug, err := s.find(projectID, bugID)
	if err != nil {
		return err
	}
	if bug.ReportedBy != userID && !access.canManage() {
		return response.NewForbidden("only the reporter or a manager may delete a bug")
	}
	return s.db.Delete(bug).Error
}

// checkAssignee verifies the assignee belongs to the project.
func (s *BugService) checkAssignee(projectID, assigneeID uint) error {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		return err
	}
	if project.OwnerID == assigneeID {
		return nil
	}
	var count int64
	s.db.Model(&models.Membership{}).
		Where("project_id = ? AND user_id = ?", projectID, assigneeID).
		Count(&count)
	if count == 0 {
		return response.NewBadRequest("assignee is not a member of the project")
	}
	return nil
}

func (s *BugService) find(projectID, bugID uint) (*models.Bug, error) {
	var bug models.Bug
	if err := s.db.Where("project_id = ?", projectID).First(&bug, bugID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("bug not found")
		}
		return nil, err
	}
	return &bug, nil
}
