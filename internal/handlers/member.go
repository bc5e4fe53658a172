package handlers

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

// MemberHandler exposes the project membership operations.
type MemberHandler struct {
	members *services.MembershipService
}

func NewMemberHandler(db *gorm.DB) *MemberHandler {
	return &MemberHandler{members: services.NewMembershipService(db)}
}

// List returns the project's members with filtering, sorting and pagination.
// GET /api/projects/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	req := &services.ListMembersRequest{
		ProjectID:   uint(projectID),
		RequesterID: middleware.GetUserID(c),
		Roles:       parseRoles(c),
		Query:       c.Query("q"),
		Page:        parseIntQuery(c, "page", 1),
		PageSize:    parseIntQuery(c, "page_size", 0),
		SortBy:      c.DefaultQuery("sort_by", "name"),
		SortDir:     c.DefaultQuery("sort_dir", "asc"),
	}

	page, err := h.members.ListMembers(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateRole changes a member's role.
// PUT /api/projects/:id/members/:userID
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	projectID, userID, ok := memberParams(c)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updated, err := h.members.UpdateMemberRole(&services.UpdateMemberRoleRequest{
		ProjectID:    projectID,
		RequesterID:  middleware.GetUserID(c),
		TargetUserID: userID,
		NewRole:      strings.ToUpper(strings.TrimSpace(req.Role)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, updated)
}

// Remove deletes a member from the project.
// DELETE /api/projects/:id/members/:userID
func (h *MemberHandler) Remove(c *gin.Context) {
	projectID, userID, ok := memberParams(c)
	if !ok {
		return
	}

	removed, err := h.members.RemoveMember(&services.RemoveMemberRequest{
		ProjectID:    projectID,
		RequesterID:  middleware.GetUserID(c),
		TargetUserID: userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, removed)
}

func memberParams(c *gin.Context) (projectID, userID uint, ok bool) {
	pid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return 0, 0, false
	}
	uid, err := strconv.ParseUint(c.Param("userID"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return 0, 0, false
	}
	return uint(pid), uint(uid), true
}

// parseRoles accepts both repeated role params and a comma-separated list.
func parseRoles(c *gin.Context) []string {
	var roles []string
	for _, raw := range c.QueryArray("roles") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				roles = append(roles, strings.ToUpper(part))
			}
		}
	}
	return roles
}

// parseIntQuery tolerates float input for numeric params and floors it.
func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return int(math.Floor(f))
}
