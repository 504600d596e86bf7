package models

type User struct {
	BaseModel
	Username     string            `json:"username" gorm:"type:varchar(180);uniqueIndex;not null"`
	Email        string            `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string            `json:"-" gorm:"type:text;not null"`
	Memberships  []GroupMembership `json:"-" gorm:"foreignKey:UserID"`
	Notes        []Note            `json:"-" gorm:"foreignKey:AuthorID"`
}
