package models

import "github.com/google/uuid"

// Group always has exactly one admin, and the admin always holds a
// membership row of their own.
type Group struct {
	BaseModel
	Name        string            `json:"name" gorm:"type:varchar(180);not null"`
	AdminID     uuid.UUID         `json:"adminID" gorm:"type:uuid;not null;index"`
	IsActive    bool              `json:"isActive" gorm:"not null;default:true"`
	Admin       User              `json:"admin,omitempty" gorm:"foreignKey:AdminID"`
	Memberships []GroupMembership `json:"memberships,omitempty" gorm:"foreignKey:GroupID"`
	Notes       []Note            `json:"notes,omitempty" gorm:"foreignKey:GroupID"`
}
