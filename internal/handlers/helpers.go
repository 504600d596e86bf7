package handlers

import (
	"strings"

	"github.com/groupnotes/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func parseNoteFormat(value string) (models.NoteFormat, bool) {
	switch models.NoteFormat(strings.ToLower(strings.TrimSpace(value))) {
	case models.NoteFormatText:
		return models.NoteFormatText, true
	case models.NoteFormatFile:
		return models.NoteFormatFile, true
	default:
		return "", false
	}
}

func findUserByUsername(db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "username = ?", strings.TrimSpace(username)).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
