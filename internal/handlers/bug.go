package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

type BugHandler struct {
	bugs *services.BugService
}

func NewBugHandler(db *gorm.DB) *BugHandler {
	return &BugHandler{bugs: services.NewBugService(db)}
}

// Create files a bug.
// POST /api/projects/:id/bugs
func (h *BugHandler) Create(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.CreateBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	bug, err := h.bugs.Create(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bug)
}

// List returns the project's bugs.
// GET /api/projects/:id/bugs
func (h *BugHandler) List(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.BugListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.bugs.List(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Get returns one bug.
// GET /api/projects/:id/bugs/:bugID
func (h *BugHandler) Get(c *gin.Context) {
	projectID, bugID, ok := childParam(c, "bugID", "invalid bug id")
	if !ok {
		return
	}

	bug, err := h.bugs.Get(middleware.GetUserID(c), projectID, bugID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bug)
}

// Update edits a bug.
// PUT /api/projects/:id/bugs/:bugID
func (h *BugHandler) Update(c *gin.Context) {
	projectID, bugID, ok := childParam(c, "bugID", "invalid bug id")
	if !ok {
		return
	}

	var req services.UpdateBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	bug, err := h.bugs.Update(middleware.GetUserID(c), projectID, bugID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bug)
}

// Delete removes a bug.
// DELETE /api/projects/:id/bugs/:bugID
func (h *BugHandler) Delete(c *gin.Context) {
	projectID, bugID, ok := childParam(c, "bugID", "invalid bug id")
	if !ok {
		return
	}

	if err := h.bugs.Delete(middleware.GetUserID(c), projectID, bugID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "bug deleted"})
}
