package handlers

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/groupnotes/backend/internal/models"
	"github.com/groupnotes/backend/internal/storage"
	"github.com/groupnotes/backend/pkg/logger"
	"github.com/groupnotes/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type NotesHandler struct {
	DB      *gorm.DB
	Storage storage.ObjectStore
}

func NewNotesHandler(db *gorm.DB, store storage.ObjectStore) *NotesHandler {
	return &NotesHandler{DB: db, Storage: store}
}

// Create persists a note in a group. Text notes carry their body in the
// database; file notes store the payload in the object store and keep only
// the client filename in the row.
func (h *NotesHandler) Create(c *fiber.Ctx) error {
	format, ok := parseNoteFormat(c.FormValue("format"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "format must be text or file")
	}

	var group models.Group
	if err := h.DB.First(&group, "name = ?", strings.TrimSpace(c.FormValue("group"))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	author, err := findUserByUsername(h.DB, c.FormValue("author"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	var content string
	switch format {
	case models.NoteFormatText:
		content = c.FormValue("content")
		if strings.TrimSpace(content) == "" {
			return utils.Error(c, fiber.StatusBadRequest, "content is required for text notes")
		}

	case models.NoteFormatFile:
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "file is required for file notes")
		}

		filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
		if filename == "" || filename == "." {
			return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
		}

		// Objects are keyed group/filename, so a second note with the same
		// filename would alias the first one's payload.
		var existing int64
		if err := h.DB.Model(&models.Note{}).
			Where("group_id = ? AND format = ? AND content = ?", group.ID, models.NoteFormatFile, filename).
			Count(&existing).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking filenames")
		}
		if existing > 0 {
			return utils.Error(c, fiber.StatusConflict, "a file with this name already exists in the group")
		}

		stream, err := fileHeader.Open()
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
		}
		defer stream.Close()

		contentType := fileHeader.Header.Get("Content-Type")
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(filename))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		objectName := storage.NoteObjectName(group.ID, filename)
		if err := h.Storage.Upload(c.Context(), objectName, stream, fileHeader.Size, contentType); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed storing file")
		}
		content = filename
	}

	note := models.Note{
		AuthorID: author.ID,
		GroupID:  group.ID,
		Format:   format,
		Content:  content,
		IsDone:   false,
	}

	if err := h.DB.Create(&note).Error; err != nil {
		if format == models.NoteFormatFile {
			_ = h.Storage.Delete(c.Context(), storage.NoteObjectName(group.ID, content))
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating note")
	}

	logger.InfoWithUser(author.ID.String(), "note_created", map[string]interface{}{
		"note_id":  note.ID.String(),
		"group_id": group.ID.String(),
		"format":   string(format),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"note_id": note.ID,
		"content": note.Content,
		"author":  author.Username,
		"format":  note.Format,
		"is_done": note.IsDone,
		"message": "Note created",
	})
}

func (h *NotesHandler) GetAllByGroup(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("group_id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	format, ok := parseNoteFormat(c.Params("type_note"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "type must be text or file")
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	var notes []models.Note
	if err := h.DB.Preload("Author").
		Where("group_id = ? AND format = ?", groupID, format).
		Order("created_at ASC").
		Find(&notes).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing notes")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notes":   notes,
		"message": "Notes of the group get",
	})
}

// Download streams a file note's payload from the object store.
func (h *NotesHandler) Download(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("group_id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	noteID, err := parseUUID(c.Params("note_id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid note id")
	}

	var note models.Note
	if err := h.DB.First(&note, "id = ? AND group_id = ?", noteID, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "note not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading note")
	}

	if note.Format != models.NoteFormatFile {
		return utils.Error(c, fiber.StatusConflict, "text notes have no file payload")
	}

	obj, err := h.Storage.Download(c.Context(), storage.NoteObjectName(groupID, note.Content))
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, "file not found in storage")
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+note.Content+`"`)
	return c.SendStream(obj)
}

type updateNoteRequest struct {
	NoteID      string `json:"note_id"`
	ContentNote string `json:"content_note"`
}

// Update rewrites a text note's body. File notes are immutable in content.
func (h *NotesHandler) Update(c *fiber.Ctx) error {
	var req updateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	noteID, err := parseUUID(req.NoteID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid note id")
	}

	var note models.Note
	if err := h.DB.First(&note, "id = ?", noteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "note not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading note")
	}

	if note.Format == models.NoteFormatFile {
		return utils.Error(c, fiber.StatusConflict, "file notes cannot be edited")
	}

	if err := h.DB.Model(&models.Note{}).Where("id = ?", noteID).
		Update("content", req.ContentNote).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating note")
	}

	return utils.Message(c, fiber.StatusOK, "Note is updated")
}

func (h *NotesHandler) Delete(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("group_id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	noteID, err := parseUUID(c.Params("note_id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid note id")
	}

	var note models.Note
	if err := h.DB.First(&note, "id = ? AND group_id = ?", noteID, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "note not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading note")
	}

	if err := h.DB.Delete(&models.Note{}, "id = ?", note.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting note")
	}

	if note.Format == models.NoteFormatFile && h.Storage != nil {
		_ = h.Storage.Delete(c.Context(), storage.NoteObjectName(groupID, note.Content))
	}

	return utils.Message(c, fiber.StatusOK, "Note is deleted")
}

type changeStatusRequest struct {
	NoteID string `json:"note_id"`
}

// ChangeStatus flips the completion flag; toggling twice restores the
// original value.
func (h *NotesHandler) ChangeStatus(c *fiber.Ctx) error {
	var req changeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	noteID, err := parseUUID(req.NoteID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid note id")
	}

	result := h.DB.Model(&models.Note{}).Where("id = ?", noteID).
		Update("is_done", gorm.Expr("NOT is_done"))
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating note status")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "note not found")
	}

	return utils.Message(c, fiber.StatusOK, "status updated")
}
