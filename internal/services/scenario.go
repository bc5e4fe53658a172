package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

// ScenarioService manages test packages and the scenarios inside them.
type ScenarioService struct {
	db *gorm.DB
}

func NewScenarioService(db *gorm.DB) *ScenarioService {
	return &ScenarioService{db: db}
}

type CreatePackageRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
	Position    int    `json:"position"`
}

type UpdatePackageRequest struct {
	Name        string  `json:"name" binding:"max=200"`
	Description *string `json:"description"`
	Position    *int    `json:"position"`
}

type CreateScenarioRequest struct {
	PackageID      uint   `json:"package_id" binding:"required"`
	Title          string `json:"title" binding:"required,max=300"`
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	Priority       string `json:"priority"`
	Status         string `json:"status"`
}

type UpdateScenarioRequest struct {
	Title          string  `json:"title" binding:"max=300"`
	Preconditions  *string `json:"preconditions"`
	Steps          *string `json:"steps"`
	ExpectedResult *string `json:"expected_result"`
	Priority       string  `json:"priority"`
	Status         string  `json:"status"`
}

type ScenarioListRequest struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	PackageID uint   `form:"package_id"`
	Priority  string `form:"priority"`
	Status    string `form:"status"`
	Query     string `form:"q"`
}

type ScenarioListResponse struct {
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []models.TestScenario `json:"items"`
}

// ListPackages returns the project's packages ordered by position. Any member
// may look.
func (s *ScenarioService) ListPackages(userID, projectID uint) ([]models.TestPackage, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	var packages []models.TestPackage
	if err := s.db.Where("project_id = ?", projectID).
		Order("position ASC, id ASC").
		Find(&packages).Error; err != nil {
		return nil, err
	}
	return packages, nil
}

func (s *ScenarioService) CreatePackage(userID, projectID uint, req *CreatePackageRequest) (*models.TestPackage, error) {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !access.canAuthor() {
		return nil, response.NewForbidden("approver may not modify test packages")
	}

	pkg := &models.TestPackage{
		ProjectID:   projectID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Position:    req.Position,
		CreatedBy:   userID,
	}
	if pkg.Name == "" {
		return nil, response.NewBadRequest("package name is required")
	}
	if err := s.db.Create(pkg).Error; err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *ScenarioService) UpdatePackage(userID, projectID, packageID uint, req *UpdatePackageRequest) (*models.TestPackage, error) {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !access.canAuthor() {
		return nil, response.NewForbidden("approver may not modify test packages")
	}

	pkg, err := s.findPackage(projectID, packageID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if len(updates) == 0 {
		return pkg, nil
	}
	if err := s.db.Model(pkg).Updates(updates).Error; err != nil {
		return nil, err
	}
	return pkg, nil
}

// DeletePackage removes the package and cascades to its scenarios. Requires
// administrative standing; a tester may not drop a whole package.
func (s *ScenarioService) DeletePackage(userID, projectID, packageID uint) error {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return err
	}
	if !access.canManage() {
		return response.NewForbidden("only owner or manager may delete a package")
	}

	pkg, err := s.findPackage(projectID, packageID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("package_id = ?", pkg.ID).Delete(&models.TestScenario{}).Error; err != nil {
			return err
		}
		return tx.Delete(pkg).Error
	})
}

// ListScenarios returns the project's scenarios with optional filters.
func (s *ScenarioService) ListScenarios(userID, projectID uint, req *ScenarioListRequest) (*ScenarioListResponse, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.TestScenario{}).Where("project_id = ?", projectID)
	if req.PackageID != 0 {
		query = query.Where("package_id = ?", req.PackageID)
	}
	if req.Priority != "" {
		priority := strings.ToUpper(req.Priority)
		if !models.ValidPriority(priority) {
			return nil, response.NewBadRequest("invalid priority: " + req.Priority)
		}
		query = query.Where("priority = ?", priority)
	}
	if req.Status != "" {
		status := strings.ToUpper(req.Status)
		if !models.ValidScenarioStatus(status) {
			return nil, response.NewBadRequest("invalid status: " + req.Status)
		}
		query = query.Where("status = ?", status)
	}
	if q := strings.TrimSpace(req.Query); q != "" {
		query = query.Where("title LIKE ?", "%"+q+"%")
	}

	var total int64
	query.Count(&total)

	var items []models.TestScenario
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &ScenarioListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

func (s *ScenarioService) GetScenario(userID, projectID, scenarioID uint) (*models.TestScenario, error) {
	if _, err := resolveAccess(s.db, projectID, userID); err != nil {
		return nil, err
	}
	return s.findScenario(projectID, scenarioID)
}

func (s *ScenarioService) CreateScenario(userID, projectID uint, req *CreateScenarioRequest) (*models.TestScenario, error) {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !access.canAuthor() {
		return nil, response.NewForbidden("approver may not modify scenarios")
	}

	if _, err := s.findPackage(projectID, req.PackageID); err != nil {
		return nil, err
	}

	priority := strings.ToUpper(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, response.NewBadRequest("invalid priority: " + req.Priority)
	}

	status := strings.ToUpper(req.Status)
	if status == "" {
		status = models.ScenarioDraft
	}
	if !models.ValidScenarioStatus(status) {
		return nil, response.NewBadRequest("invalid status: " + req.Status)
	}

	scenario := &models.TestScenario{
		PackageID:      req.PackageID,
		ProjectID:      projectID,
		Title:          strings.TrimSpace(req.Title),
		Preconditions:  req.Preconditions,
		Steps:          req.Steps,
		ExpectedResult: req.ExpectedResult,
		Priority:       priority,
		Status:         status,
		CreatedBy:      userID,
	}
	if scenario.Title == "" {
		return nil, response.NewBadRequest("scenario title is required")
	}
	if err := s.db.Create(scenario).Error; err != nil {
		return nil, err
	}
	return scenario, nil
}

func (s *ScenarioService) UpdateScenario(userID, projectID, scenarioID uint, req *UpdateScenarioRequest) (*models.TestScenario, error) {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !access.canAuthor() {
		return nil, response.NewForbidden("approver may not modify scenarios")
	}

	scenario, err := s.findScenario(projectID, scenarioID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if title := strings.TrimSpace(req.Title); title != "" {
		updates["title"] = title
	}
	if req.Preconditions != nil {
		updates["preconditions"] = *req.Preconditions
	}
	if req.Steps != nil {
		updates["steps"] = *req.Steps
	}
	if req.ExpectedResult != nil {
		updates["expected_result"] = *req.ExpectedResult
	}
	if req.Priority != "" {
		priority := strings.ToUpper(req.Priority)
		if !models.ValidPriority(priority) {
			return nil, response.NewBadRequest("invalid priority: " + req.Priority)
		}
		updates["priority"] = priority
	}
	if req.Status != "" {
		status := strings.ToUpper(req.Status)
		if !models.ValidScenarioStatus(status) {
			return nil, response.NewBadRequest("invalid status: " + req.Status)
		}
		updates["status"] = status
	}
	if len(updates) == 0 {
		return scenario, nil
	}
	if err := s.db.Model(scenario).Updates(updates).Error; err != nil {
		return nil, err
	}
	return scenario, nil
}

func (s *ScenarioService) DeleteScenario(userID, projectID, scenarioID uint) error {
	access, err := resolveAccess(s.db, projectID, userID)
	if err != nil {
		return err
	}
	if !access.canAuthor() {
		return response.NewForbidden("approver may not modify scenarios")
	}

	scenario, err := s.findScenario(projectID, scenarioID)
	if err != nil {
		return err
	}
	return s.db.Delete(scenario).Error
}

func (s *ScenarioService) findPackage(projectID, packageID uint) (*models.TestPackage, error) {
	var pkg models.TestPackage
	if err := s.db.Where("project_id = ?", projectID).First(&pkg, packageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("package not found")
		}
		return nil, err
	}
	return &pkg, nil
}

func (s *ScenarioService) findScenario(projectID, scenarioID uint) (*models.TestScenario, error) {
	var scenario models.TestScenario
	if err := s.db.Where("project_id = ?", projectID).First(&scenario, scenarioID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("scenario not found")
		}
		return nil, err
	}
	return &scenario, nil
}
