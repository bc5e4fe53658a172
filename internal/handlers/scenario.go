package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

// ScenarioHandler serves test packages and scenarios.
type ScenarioHandler struct {
	scenarios *services.ScenarioService
}

func NewScenarioHandler(db *gorm.DB) *ScenarioHandler {
	return &ScenarioHandler{scenarios: services.NewScenarioService(db)}
}

// ListPackages returns the project's packages.
// GET /api/projects/:id/packages
func (h *ScenarioHandler) ListPackages(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	packages, err := h.scenarios.ListPackages(middleware.GetUserID(c), projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, packages)
}

// CreatePackage adds a package.
// POST /api/projects/:id/packages
func (h *ScenarioHandler) CreatePackage(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pkg, err := h.scenarios.CreatePackage(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pkg)
}

// UpdatePackage edits a package.
// PUT /api/projects/:id/packages/:packageID
func (h *ScenarioHandler) UpdatePackage(c *gin.Context) {
	projectID, packageID, ok := childParam(c, "packageID", "invalid package id")
	if !ok {
		return
	}

	var req services.UpdatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pkg, err := h.scenarios.UpdatePackage(middleware.GetUserID(c), projectID, packageID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, pkg)
}

// DeletePackage removes a package and its scenarios.
// DELETE /api/projects/:id/packages/:packageID
func (h *ScenarioHandler) DeletePackage(c *gin.Context) {
	projectID, packageID, ok := childParam(c, "packageID", "invalid package id")
	if !ok {
		return
	}

	if err := h.scenarios.DeletePackage(middleware.GetUserID(c), projectID, packageID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "package deleted"})
}

// ListScenarios returns the project's scenarios with filters.
// GET /api/projects/:id/scenarios
func (h *ScenarioHandler) ListScenarios(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.ScenarioListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.scenarios.ListScenarios(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GetScenario returns one scenario.
// GET /api/projects/:id/scenarios/:scenarioID
func (h *ScenarioHandler) GetScenario(c *gin.Context) {
	projectID, scenarioID, ok := childParam(c, "scenarioID", "invalid scenario id")
	if !ok {
		return
	}

	scenario, err := h.scenarios.GetScenario(middleware.GetUserID(c), projectID, scenarioID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, scenario)
}

// CreateScenario adds a scenario to a package.
// POST /api/projects/:id/scenarios
func (h *ScenarioHandler) CreateScenario(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.CreateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	scenario, err := h.scenarios.CreateScenario(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, scenario)
}

// UpdateScenario edits a scenario.
// PUT /api/projects/:id/scenarios/:scenarioID
func (h *ScenarioHandler) UpdateScenario(c *gin.Context) {
	projectID, scenarioID, ok := childParam(c, "scenarioID", "invalid scenario id")
	if !ok {
		return
	}

	var req services.UpdateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	scenario, err := h.scenarios.UpdateScenario(middleware.GetUserID(c), projectID, scenarioID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, scenario)
}

// DeleteScenario removes a scenario.
// DELETE /api/projects/:id/scenarios/:scenarioID
func (h *ScenarioHandler) DeleteScenario(c *gin.Context) {
	projectID, scenarioID, ok := childParam(c, "scenarioID", "invalid scenario id")
	if !ok {
		return
	}

	if err := h.scenarios.DeleteScenario(middleware.GetUserID(c), projectID, scenarioID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "scenario deleted"})
}

// childParam parses the project id plus a child resource id.
func childParam(c *gin.Context, name, errMsg string) (projectID, childID uint, ok bool) {
	pid, ok := projectParam(c)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, errMsg)
		return 0, 0, false
	}
	return pid, uint(id), true
}
