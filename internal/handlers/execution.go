package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

type ExecutionHandler struct {
	executions *services.ExecutionService
}

func NewExecutionHandler(db *gorm.DB) *ExecutionHandler {
	return &ExecutionHandler{executions: services.NewExecutionService(db)}
}

// Create records a scenario run.
// POST /api/projects/:id/executions
func (h *ExecutionHandler) Create(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.CreateExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	exec, err := h.executions.Create(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exec)
}

// List returns the project's executions.
// GET /api/projects/:id/executions
func (h *ExecutionHandler) List(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.ExecutionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.executions.List(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Get returns one execution.
// GET /api/projects/:id/executions/:executionID
func (h *ExecutionHandler) Get(c *gin.Context) {
	projectID, executionID, ok := childParam(c, "executionID", "invalid execution id")
	if !ok {
		return
	}

	exec, err := h.executions.Get(middleware.GetUserID(c), projectID, executionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, exec)
}

// Approve signs off on an execution.
// POST /api/projects/:id/executions/:executionID/approve
func (h *ExecutionHandler) Approve(c *gin.Context) {
	projectID, executionID, ok := childParam(c, "executionID", "invalid execution id")
	if !ok {
		return
	}

	exec, err := h.executions.Approve(middleware.GetUserID(c), projectID, executionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, exec)
}
