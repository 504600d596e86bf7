package models

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
)

// Invitation is the durable record behind a one-time accept/decline link.
// The row id is the invitId embedded in the link, so accept and decline can
// validate the link against the stored group, user, status, and expiry.
type Invitation struct {
	BaseModel
	GroupID   uuid.UUID        `json:"groupID" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID        `json:"userID" gorm:"type:uuid;not null;index"`
	Status    InvitationStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	ExpiresAt time.Time        `json:"expiresAt" gorm:"not null"`
	Group     Group            `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	User      User             `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
