package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{dashboard: services.NewDashboardService(db)}
}

// ProjectDashboard returns aggregated testing activity for the project.
// GET /api/projects/:id/dashboard
func (h *DashboardHandler) ProjectDashboard(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.DashboardStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.dashboard.ProjectDashboard(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
