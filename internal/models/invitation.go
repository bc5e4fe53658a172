package models

import (
	"time"

	"gorm.io/gorm"
)

// Invitation lifecycle states.
const (
	InvitationPending  = "PENDING"
	InvitationAccepted = "ACCEPTED"
	InvitationDeclined = "DECLINED"
	InvitationExpired  = "EXPIRED"
	InvitationRevoked  = "REVOKED"
)

// Invitation asks an email address to join a project at a given role. The
// token is an opaque UUID handed out in the invitation mail.
type Invitation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProjectID uint           `gorm:"index;not null" json:"project_id"`
	Project   *Project       `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Email     string         `gorm:"size:255;index;not null" json:"email"`
	Role      string         `gorm:"size:20;not null" json:"role"`
	Token     string         `gorm:"uniqueIndex;size:36;not null" json:"-"`
	Status    string         `gorm:"size:20;index;default:PENDING" json:"status"`
	InvitedBy uint           `gorm:"not null" json:"invited_by"`
	Inviter   *User          `gorm:"foreignKey:InvitedBy" json:"inviter,omitempty"`
	ExpiresAt time.Time      `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Invitation) TableName() string { return "invitations" }
