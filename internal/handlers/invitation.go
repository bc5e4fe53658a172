package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

type InvitationHandler struct {
	invitations *services.InvitationService
}

func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

// Create issues an invitation for the project.
// POST /api/projects/:id/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	inv, err := h.invitations.Create(projectID, middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

// List returns the project's invitations.
// GET /api/projects/:id/invitations
func (h *InvitationHandler) List(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req services.InvitationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.invitations.List(projectID, middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Revoke cancels a pending invitation.
// DELETE /api/projects/:id/invitations/:invitationID
func (h *InvitationHandler) Revoke(c *gin.Context) {
	if _, ok := projectParam(c); !ok {
		return
	}
	invitationID, err := strconv.ParseUint(c.Param("invitationID"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid invitation id")
		return
	}

	inv, rerr := h.invitations.Revoke(uint(invitationID), middleware.GetUserID(c))
	if rerr != nil {
		response.Error(c, rerr)
		return
	}
	response.Success(c, inv)
}

// Accept joins the current user to the inviting project.
// POST /api/invitations/:token/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	membership, err := h.invitations.Accept(c.Param("token"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, membership)
}

// Decline marks the invitation declined.
// POST /api/invitations/:token/decline
func (h *InvitationHandler) Decline(c *gin.Context) {
	inv, err := h.invitations.Decline(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, inv)
}
