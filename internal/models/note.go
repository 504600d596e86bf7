package models

import "github.com/google/uuid"

type NoteFormat string

const (
	NoteFormatText NoteFormat = "text"
	NoteFormatFile NoteFormat = "file"
)

// Note is a unit of content attached to a group. For text notes Content is
// the body; for file notes Content is the stored filename and the bytes live
// in object storage keyed by group id and filename.
type Note struct {
	BaseModel
	AuthorID uuid.UUID  `json:"authorID" gorm:"type:uuid;not null;index"`
	GroupID  uuid.UUID  `json:"groupID" gorm:"type:uuid;not null;index"`
	Format   NoteFormat `json:"format" gorm:"type:varchar(10);not null"`
	Content  string     `json:"content" gorm:"type:text;not null"`
	IsDone   bool       `json:"isDone" gorm:"not null;default:false"`
	Author   User       `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Group    Group      `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}
