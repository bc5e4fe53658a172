package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

type ProjectHandler struct {
	projects *services.ProjectService
}

func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{projects: services.NewProjectService(db)}
}

// List returns the projects visible to the current user.
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.projects.List(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Create creates a project owned by the current user.
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projects.Create(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Get returns a single project.
// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	project, err := h.projects.Get(middleware.GetUserID(c), projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Update edits project metadata.
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projects.Update(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Delete removes a project.
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	if err := h.projects.Delete(middleware.GetUserID(c), projectID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "project deleted"})
}

func projectParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return 0, false
	}
	return uint(id), true
}
