package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/groupnotes/backend/internal/middleware"
	"github.com/groupnotes/backend/internal/models"
	"github.com/groupnotes/backend/pkg/logger"
	"github.com/groupnotes/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB *gorm.DB
}

func NewAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{DB: db}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if req.Username == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username is required")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	var existing models.User
	err := h.DB.First(&existing, "username = ? OR email = ?", req.Username, req.Email).Error
	if err == nil {
		return utils.Error(c, fiber.StatusConflict, "username or email already taken")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		// The unique indexes still win a race the pre-check lost.
		return utils.Error(c, fiber.StatusConflict, "username or email already taken")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id":  user.ID.String(),
		"username": user.Username,
	})

	// A fresh account belongs to no group yet.
	token, err := utils.GenerateToken(user.ID, user.Email, user.Username, nil)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token":   token,
		"message": "User is registered",
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)

	if req.Username == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username and password are required")
	}

	// Unknown username and wrong password answer identically.
	var user models.User
	if err := h.DB.First(&user, "username = ?", req.Username).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"username": req.Username,
			"ip":       c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	groups, err := buildGroupClaims(h.DB, user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user groups")
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.Username, groups)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_login", map[string]interface{}{
		"username": user.Username,
		"ip":       c.IP(),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token":   token,
		"message": "User is connected",
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return c.Status(fiber.StatusOK).JSON(currentUser)
}

// buildGroupClaims collects the active groups the user administers or
// belongs to, one claim per group. The admin also holds a membership row, so
// entries are deduplicated by group id.
func buildGroupClaims(db *gorm.DB, userID uuid.UUID) ([]utils.GroupClaim, error) {
	var owned []models.Group
	if err := db.Where("admin_id = ? AND is_active = ?", userID, true).Find(&owned).Error; err != nil {
		return nil, err
	}

	var joined []models.Group
	if err := db.Model(&models.Group{}).
		Joins("JOIN group_memberships ON group_memberships.group_id = groups.id").
		Where("group_memberships.user_id = ? AND groups.is_active = ?", userID, true).
		Find(&joined).Error; err != nil {
		return nil, err
	}

	claims := make([]utils.GroupClaim, 0, len(owned)+len(joined))
	seen := make(map[uuid.UUID]bool)
	for _, group := range append(owned, joined...) {
		if seen[group.ID] {
			continue
		}
		seen[group.ID] = true
		claims = append(claims, utils.GroupClaim{GroupID: group.ID, GroupName: group.Name})
	}

	return claims, nil
}
