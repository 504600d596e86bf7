package handlers

import (
	"errors"

	"github.com/groupnotes/backend/internal/services"
	"github.com/groupnotes/backend/pkg/logger"
	"github.com/groupnotes/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AdminHandler struct {
	DB      *gorm.DB
	Members *services.MembershipService
}

func NewAdminHandler(db *gorm.DB, members *services.MembershipService) *AdminHandler {
	return &AdminHandler{DB: db, Members: members}
}

// ManageAdmin hands the admin seat of a group to the named user and returns
// the updated group.
func (h *AdminHandler) ManageAdmin(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	newAdmin, err := findUserByUsername(h.DB, c.Params("new_admin"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	group, err := h.Members.ChangeAdmin(groupID, newAdmin.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed changing admin")
	}

	logger.InfoWithUser(newAdmin.ID.String(), "group_admin_changed", map[string]interface{}{
		"group_id": groupID.String(),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"group_id": group.ID,
		"name":     group.Name,
		"admin":    newAdmin.Username,
		"message":  "Admin Modified",
	})
}
