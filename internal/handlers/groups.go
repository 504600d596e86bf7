package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/groupnotes/backend/internal/models"
	"github.com/groupnotes/backend/internal/services"
	"github.com/groupnotes/backend/internal/storage"
	"github.com/groupnotes/backend/pkg/logger"
	"github.com/groupnotes/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type GroupsHandler struct {
	DB      *gorm.DB
	Members *services.MembershipService
	Storage storage.ObjectStore
}

func NewGroupsHandler(db *gorm.DB, members *services.MembershipService, store storage.ObjectStore) *GroupsHandler {
	return &GroupsHandler{DB: db, Members: members, Storage: store}
}

type createGroupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (h *GroupsHandler) Create(c *fiber.Ctx) error {
	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	user, err := findUserByUsername(h.DB, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	group := models.Group{
		Name:     req.Name,
		AdminID:  user.ID,
		IsActive: true,
	}

	// The creator is the admin and the sole initial participant.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		membership := models.GroupMembership{
			UserID:  user.ID,
			GroupID: group.ID,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating group")
	}

	logger.InfoWithUser(user.ID.String(), "group_created", map[string]interface{}{
		"group_id":   group.ID.String(),
		"group_name": group.Name,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"groupname": group.Name,
		"group_id":  group.ID,
		"author":    user.Username,
		"message":   "Group is created",
	})
}

func (h *GroupsHandler) Delete(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("group_id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	user, err := findUserByUsername(h.DB, c.Params("username"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	if group.AdminID != user.ID {
		return utils.Error(c, fiber.StatusForbidden, "only the group admin can delete the group")
	}

	// Collect file-note payloads before the rows go away.
	var fileNotes []models.Note
	if err := h.DB.Where("group_id = ? AND format = ?", groupID, models.NoteFormatFile).Find(&fileNotes).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group notes")
	}

	if err := h.Members.DeleteGroup(groupID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting group")
	}

	if h.Storage != nil {
		for _, note := range fileNotes {
			_ = h.Storage.Delete(c.Context(), storage.NoteObjectName(groupID, note.Content))
		}
	}

	logger.InfoWithUser(user.ID.String(), "group_deleted", map[string]interface{}{
		"group_id": groupID.String(),
	})

	return utils.Message(c, fiber.StatusOK, "Group is deleted")
}

func (h *GroupsHandler) GetOne(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("group_id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var group models.Group
	err = h.DB.
		Preload("Admin").
		Preload("Memberships.User").
		Preload("Notes").
		First(&group, "id = ?", groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	participants := make([]models.User, 0, len(group.Memberships))
	for _, membership := range group.Memberships {
		participants = append(participants, membership.User)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"name":         group.Name,
		"group_id":     group.ID,
		"admin":        group.Admin.Username,
		"participants": participants,
		"notes":        group.Notes,
		"message":      "Group is get",
	})
}

func (h *GroupsHandler) GetAllByUsername(c *fiber.Ctx) error {
	user, err := findUserByUsername(h.DB, c.Params("username"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	var groups []models.Group
	if err := h.DB.Model(&models.Group{}).
		Joins("JOIN group_memberships ON group_memberships.group_id = groups.id").
		Where("group_memberships.user_id = ?", user.ID).
		Order("groups.created_at DESC").
		Find(&groups).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing groups")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"groups":  groups,
		"message": "Groups get",
	})
}

type updateGroupRequest struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
}

func (h *GroupsHandler) Update(c *fiber.Ctx) error {
	var req updateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	groupID, err := parseUUID(req.GroupID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	name := strings.TrimSpace(req.GroupName)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "group_name is required")
	}

	result := h.DB.Model(&models.Group{}).Where("id = ?", groupID).Update("name", name)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating group")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "group not found")
	}

	return utils.Message(c, fiber.StatusOK, "Group is updated")
}

func (h *GroupsHandler) AddParticipant(c *fiber.Ctx) error {
	groupName := strings.TrimSpace(c.Params("group_name"))
	username := c.Params("username")

	var group models.Group
	if err := h.DB.First(&group, "name = ?", groupName).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	user, err := findUserByUsername(h.DB, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	if _, err := h.Members.AddParticipant(group.ID, user.ID); err != nil {
		if errors.Is(err, services.ErrAlreadyMember) {
			return utils.Error(c, fiber.StatusConflict, "user is already a member")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed adding participant")
	}

	logger.InfoWithUser(user.ID.String(), "group_participant_added", map[string]interface{}{
		"group_id": group.ID.String(),
	})

	return utils.Message(c, fiber.StatusOK, fmt.Sprintf("%s has been added to %s group", user.Username, group.Name))
}

func (h *GroupsHandler) Leave(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}
	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	removedFiles, err := h.Members.Leave(groupID, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotMember):
			return utils.Error(c, fiber.StatusNotFound, "user is not a member of the group")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed leaving group")
		}
	}

	if h.Storage != nil {
		for _, note := range removedFiles {
			_ = h.Storage.Delete(c.Context(), storage.NoteObjectName(groupID, note.Content))
		}
	}

	logger.InfoWithUser(userID.String(), "group_left", map[string]interface{}{
		"group_id": groupID.String(),
	})

	return utils.Message(c, fiber.StatusOK, "Group left")
}

func (h *GroupsHandler) CheckAuthorized(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	isMember, err := h.Members.IsMember(groupID, userID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking membership")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"isAuthorized": isMember,
	})
}

func (h *GroupsHandler) GetAllUsersFromGroup(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var group models.Group
	if err := h.DB.Preload("Memberships.User").First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	participants := make([]models.User, 0, len(group.Memberships))
	for _, membership := range group.Memberships {
		participants = append(participants, membership.User)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"participants": participants,
	})
}
