package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

// ExecutionService records scenario runs and handles approver sign-off.
type ExecutionService struct {
	db *gorm.DB
}

func NewExecutionService(db *gorm.DB) *ExecutionService {
	return &ExecutionService{db: db}
}

type CreateExecutionRequest struct {
	ScenarioID      uint   `json:"scenario_id" binding:"required"`
	Status          string `json:"status" binding:"required"`
	Notes           string `json:"notes"`
	DurationSeconds int    `json:"duration_seconds"`
}

type ExecutionListRequest struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	ScenarioID uint   `form:"scenario_id"`
	ExecutorID uint   `form:"executor_id"`
	Status     string `form:"status"`
	Approved   *bool  `form:"approved"`
}

type ExecutionListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.Execution `json:"items"`
}

// Create records a run of a scenario. Approvers do not run tests.
func (s *ExecutionService) Create(userID, projectID uint, req *CreateExecutionRequest) (*models.Execution, error) {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !access.canAuthor() {
		return nil, response.NewForbidden("approver may not record executions")
	}

	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if !models.ValidExecutionStatus(status) {
		return nil, response.NewBadRequest("invalid execution status: " + req.Status)
	}
	if req.DurationSeconds < 0 {
		return nil, response.NewBadRequest("duration must not be negative")
	}

	var scenario models.TestScenario
	if err := s.db.Where("project_id = ?", projectID).First(&scenario, req.ScenarioID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("scenario not found")
		}
		return nil, err
	}
	if scenario.Status == models.ScenarioDeprecated {
		return nil, response.NewConflict("cannot execute a deprecated scenario")
	}

	exec := &models.Execution{
		ScenarioID:      scenario.ID,
		ProjectID:       projectID,
		ExecutorID:      userID,
		Status:          status,
		Notes:           req.Notes,
		DurationSeconds: req.DurationSeconds,
		ExecutedAt:      time.Now(),
	}
	if err := s.db.Create(exec).Error; err != nil {
		return nil, err
	}
	return exec, nil
}

// List returns the project's executions, newest first.
func (s *ExecutionService) List(userID, projectID uint, req *ExecutionListRequest) (*ExecutionListResponse, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Execution{}).Where("project_id = ?", projectID)
	if req.ScenarioID != 0 {
		query = query.Where("scenario_id = ?", req.ScenarioID)
	}
	if req.ExecutorID != 0 {
		query = query.Where("executor_id = ?", req.ExecutorID)
	}
	if req.Status != "" {
		status := strings.ToUpper(req.Status)
		if !models.ValidExecutionStatus(status) {
			return nil, response.NewBadRequest("invalid execution status: " + req.Status)
		}
		query = query.Where("status = ?", status)
	}
	if req.Approved != nil {
		query = query.Where("approved = ?", *req.Approved)
	}

	var total int64
	query.Count(&total)

	var items []models.Execution
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Executor").Preload("Scenario").
		Offset(offset).Limit(req.PageSize).
		Order("executed_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &ExecutionListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

func (s *ExecutionService) Get(userID, projectID, executionID uint) (*models.Execution, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}
	return s.find(projectID, executionID)
}

// Approve signs off on an execution. Executors may not approve their own
// runs; approving twice is a conflict.
func (s *ExecutionService) Approve(userID, projectID, executionID uint) (*models.Execution, error) {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !access.canApprove() {
		return nil, response.NewForbidden("only owner, manager or approver may approve executions")
	}

	exec, err := s.find(projectID, executionID)
	if err != nil {
		return nil, err
	}
	if exec.ExecutorID == userID {
		return nil, response.NewForbidden("executor may not approve their own run")
	}
	if exec.Approved {
		return nil, response.NewConflict("execution is already approved")
	}

	if err := s.db.Model(exec).Updates(map[string]interface{}{
		"approved":    true,
		"approved_by": userID,
	}).Error; err != nil {
		return nil, err
	}
	exec.Approved = true
	exec.ApprovedBy = &userID
	return exec, nil
}

func (s *ExecutionService) find(projectID, executionID uint) (*models.Execution, error) {
	var exec models.Execution
	if err := s.db.Where("project_id = ?", projectID).First(&exec, executionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("execution not found")
		}
		return nil, err
	}
	return &exec, nil
}
