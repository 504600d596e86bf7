package models

import "github.com/google/uuid"

// GroupMembership links a participant to a group. The composite unique index
// makes adding a participant an atomic check-then-insert: a concurrent
// duplicate add fails on the constraint instead of racing a read.
type GroupMembership struct {
	BaseModel
	UserID  uuid.UUID `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_member"`
	GroupID uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_member"`
	User    User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Group   Group     `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}
