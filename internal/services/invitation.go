package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/testflowhq/testflow/backend/internal/config"
	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/logger"
	"github.com/testflowhq/testflow/backend/pkg/response"
)

type InvitationService struct {
	db       *gorm.DB
	cfg      *config.InvitationConfig
	notifier *NotificationService
}

func NewInvitationService(db *gorm.DB, cfg *config.InvitationConfig, notifier *NotificationService) *InvitationService {
	return &InvitationService{db: db, cfg: cfg, notifier: notifier}
}

type CreateInvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

type InvitationListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
}

type InvitationListResponse struct {
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Items    []models.Invitation `json:"items"`
}

// Create issues a new pending invitation and dispatches the invitation mail.
// The project owner may invite at any role; a MANAGER member may not invite
// at OWNER or MANAGER.
func (s *InvitationService) Create(projectID, requesterID uint, req *CreateInvitationRequest) (*models.Invitation, error) {
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if !models.ValidRole(role) {
		return nil, response.NewBadRequest("invalid role: " + req.Role)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, response.NewBadRequest("email is required")
	}

	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}

	if project.OwnerID != requesterID {
		var m models.Membership
		if err := s.db.Where("project_id = ? AND user_id = ?", projectID, requesterID).First(&m).Error; err != nil {
			return nil, response.NewForbidden("only owner or manager may invite members")
		}
		switch m.Role {
		case models.RoleOwner:
			// co-owner invites freely
		case models.RoleManager:
			if role == models.RoleOwner || role == models.RoleManager {
				return nil, response.NewForbidden("manager may not invite at owner or manager role")
			}
		default:
			return nil, response.NewForbidden("only owner or manager may invite members")
		}
	}

	// Reject if the address already belongs to a member.
	var existing int64
	s.db.Model(&models.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.project_id = ? AND LOWER(users.email) = ?", projectID, email).
		Count(&existing)
	if existing > 0 {
		return nil, response.NewConflict("user is already a member of the project")
	}

	var pending int64
	s.db.Model(&models.Invitation{}).
		Where("project_id = ? AND email = ? AND status = ?", projectID, email, models.InvitationPending).
		Count(&pending)
	if pending > 0 {
		return nil, response.NewConflict("a pending invitation already exists for this email")
	}

	expireHours := s.cfg.ExpireHours
	if expireHours <= 0 {
		expireHours = 72
	}

	inv := &models.Invitation{
		ProjectID: projectID,
		Email:     email,
		Role:      role,
		Token:     uuid.NewString(),
		Status:    models.InvitationPending,
		InvitedBy: requesterID,
		ExpiresAt: time.Now().Add(time.Duration(expireHours) * time.Hour),
	}
	if err := s.db.Create(inv).Error; err != nil {
		return nil, err
	}

	if s.notifier != nil {
		var inviter models.User
		if err := s.db.First(&inviter, requesterID).Error; err == nil {
			s.notifier.NotifyInvitation(inv, &project, &inviter)
		}
	}

	return inv, nil
}

// Accept turns a pending invitation into a membership row for the accepting
// user. The invitation token is the only credential; the user joins under the
// invited role.
func (s *InvitationService) Accept(token string, userID uint) (*models.Membership, error) {
	inv, err := s.findByToken(token)
	if err != nil {
		return nil, err
	}

	if inv.Status != models.InvitationPending {
		return nil, response.NewConflict("invitation is no longer pending")
	}
	if time.Now().After(inv.ExpiresAt) {
		s.db.Model(inv).Update("status", models.InvitationExpired)
		return nil, response.NewConflict("invitation has expired")
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, response.NewNotFound("user not found")
	}

	membership := &models.Membership{
		ProjectID: inv.ProjectID,
		UserID:    userID,
		Role:      inv.Role,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		tx.Model(&models.Membership{}).
			Where("project_id = ? AND user_id = ?", inv.ProjectID, userID).
			Count(&count)
		if count > 0 {
			return response.NewConflict("user is already a member of the project")
		}
		if err := tx.Create(membership).Error; err != nil {
			return err
		}
		return tx.Model(inv).Update("status", models.InvitationAccepted).Error
	})
	if err != nil {
		return nil, err
	}

	return membership, nil
}

// Decline marks a pending invitation declined.
func (s *InvitationService) Decline(token string) (*models.Invitation, error) {
	inv, err := s.findByToken(token)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.InvitationPending {
		return nil, response.NewConflict("invitation is no longer pending")
	}
	if err := s.db.Model(inv).Update("status", models.InvitationDeclined).Error; err != nil {
		return nil, err
	}
	inv.Status = models.InvitationDeclined
	return inv, nil
}

// Revoke cancels a pending invitation. Same authorization as Create.
func (s *InvitationService) Revoke(invitationID, requesterID uint) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.db.First(&inv, invitationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("invitation not found")
		}
		return nil, err
	}

	var project models.Project
	if err := s.db.First(&project, inv.ProjectID).Error; err != nil {
		return nil, response.NewNotFound("project not found")
	}

	if project.OwnerID != requesterID {
		var m models.Membership
		if err := s.db.Where("project_id = ? AND user_id = ?", inv.ProjectID, requesterID).First(&m).Error; err != nil ||
			(m.Role != models.RoleOwner && m.Role != models.RoleManager) {
			return nil, response.NewForbidden("only owner or manager may revoke invitations")
		}
	}

	if inv.Status != models.InvitationPending {
		return nil, response.NewConflict("invitation is no longer pending")
	}

	if err := s.db.Model(&inv).Update("status", models.InvitationRevoked).Error; err != nil {
		return nil, err
	}
	inv.Status = models.InvitationRevoked
	return &inv, nil
}

// List returns the project's invitations, newest first. Any member may look.
func (s *InvitationService) List(projectID, requesterID uint, req *InvitationListRequest) (*InvitationListResponse, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}
	if project.OwnerID != requesterID {
		var count int64
		s.db.Model(&models.Membership{}).
			Where("project_id = ? AND user_id = ?", projectID, requesterID).
			Count(&count)
		if count == 0 {
			return nil, response.NewForbidden("access denied to project")
		}
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Invitation{}).Where("project_id = ?", projectID)
	if req.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(req.Status))
	}

	var total int64
	query.Count(&total)

	var items []models.Invitation
	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Inviter").
		Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &InvitationListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// ExpireStale marks pending invitations past their deadline as expired.
// Runs from the hourly sweeper.
func (s *InvitationService) ExpireStale() (int64, error) {
	result := s.db.Model(&models.Invitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationPending, time.Now()).
		Update("status", models.InvitationExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		logger.Info().Int64("expired", result.RowsAffected).Msg("Expired stale invitations")
	}
	return result.RowsAffected, nil
}

// StartSweeper starts a goroutine that periodically expires stale invitations.
func (s *InvitationService) StartSweeper() {
	go func() {
		if _, err := s.ExpireStale(); err != nil {
			logger.Error().Err(err).Msg("Failed to expire stale invitations")
		}

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if _, err := s.ExpireStale(); err != nil {
				logger.Error().Err(err).Msg("Failed to expire stale invitations")
			}
		}
	}()
}

func (s *InvitationService) findByToken(token string) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, response.NewBadRequest("invitation token is required")
	}
	var inv models.Invitation
	if err := s.db.Where("token = ?", token).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("invitation not found")
		}
		return nil, err
	}
	return &inv, nil
}
