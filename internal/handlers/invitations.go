package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/groupnotes/backend/internal/mailer"
	"github.com/groupnotes/backend/internal/models"
	"github.com/groupnotes/backend/internal/services"
	"github.com/groupnotes/backend/pkg/logger"
	"github.com/groupnotes/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// invitationTTL bounds how long an invitation link stays actionable.
const invitationTTL = 72 * time.Hour

type InvitationsHandler struct {
	DB      *gorm.DB
	Members *services.MembershipService
	Mailer  mailer.Mailer
	BaseURL string
}

func NewInvitationsHandler(db *gorm.DB, members *services.MembershipService, m mailer.Mailer, baseURL string) *InvitationsHandler {
	return &InvitationsHandler{DB: db, Members: members, Mailer: m, BaseURL: strings.TrimRight(baseURL, "/")}
}

const invitationResultPage = `<!DOCTYPE html>
<html>
<head><title>Invitation</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
  {{if .AlreadyAccepted}}
  <h1>You are already in this group</h1>
  <p>You already joined <strong>{{.GroupName}}</strong>, invited by {{.AdminName}}.</p>
  {{else}}
  <h1>Invitation accepted</h1>
  <p>You joined <strong>{{.GroupName}}</strong>. {{.AdminName}} has been notified.</p>
  {{end}}
</body>
</html>`

const invitationExpiredPage = `<!DOCTYPE html>
<html>
<head><title>Invitation</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
  <h1>This invitation link is no longer valid</h1>
  <p>Ask the group admin to send a new one.</p>
</body>
</html>`

var (
	invitationResultTmpl  = template.Must(template.New("invitation-result").Parse(invitationResultPage))
	invitationExpiredTmpl = template.Must(template.New("invitation-expired").Parse(invitationExpiredPage))
)

type invitationResultData struct {
	AlreadyAccepted bool
	AdminName       string
	GroupName       string
}

func renderPage(c *fiber.Ctx, status int, tmpl *template.Template, data interface{}) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed rendering page")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

// Send creates a pending invitation and mails a one-time accept/decline link
// to the invited user. An existing participant cannot be invited again.
func (h *InvitationsHandler) Send(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var group models.Group
	if err := h.DB.Preload("Admin").First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	email := strings.ToLower(strings.TrimSpace(c.Params("userEmail")))
	var user models.User
	if err := h.DB.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	isMember, err := h.Members.IsMember(group.ID, user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking membership")
	}
	if isMember {
		return utils.Error(c, fiber.StatusBadRequest, "user already in group")
	}

	invitation := models.Invitation{
		GroupID:   group.ID,
		UserID:    user.ID,
		Status:    models.InvitationStatusPending,
		ExpiresAt: time.Now().Add(invitationTTL),
	}
	if err := h.DB.Create(&invitation).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating invitation")
	}

	body, err := mailer.RenderInvite(mailer.InviteData{
		AdminName:  group.Admin.Username,
		GroupName:  group.Name,
		AcceptURL:  h.invitationURL(user.ID, group.ID, invitation.ID, "accept"),
		DeclineURL: h.invitationURL(user.ID, group.ID, invitation.ID, "decline"),
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed rendering invitation email")
	}

	subject := fmt.Sprintf("You have been invited to the group %s", group.Name)
	if err := h.Mailer.SendHTML(user.Email, subject, body); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed sending invitation")
	}

	logger.InfoWithUser(user.ID.String(), "invitation_sent", map[string]interface{}{
		"group_id":      group.ID.String(),
		"invitation_id": invitation.ID.String(),
	})

	return utils.Message(c, fiber.StatusOK, "Invitation sent")
}

// Accept finalizes membership from a one-time link and renders an HTML
// confirmation page. A link whose invitation is missing, expired, foreign to
// the path ids, or already spent is no longer valid.
func (h *InvitationsHandler) Accept(c *fiber.Ctx) error {
	userID, groupID, invitation, ok, err := h.resolveInvitation(c)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading invitation")
	}
	if !ok {
		return renderPage(c, fiber.StatusGone, invitationExpiredTmpl, nil)
	}

	var group models.Group
	if err := h.DB.Preload("Admin").First(&group, "id = ?", groupID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "group not found")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	data := invitationResultData{
		AdminName: group.Admin.Username,
		GroupName: group.Name,
	}

	if _, err := h.Members.AddParticipant(group.ID, user.ID); err != nil {
		if errors.Is(err, services.ErrAlreadyMember) {
			data.AlreadyAccepted = true
			return renderPage(c, fiber.StatusOK, invitationResultTmpl, data)
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed adding participant")
	}

	if err := h.DB.Model(&models.Invitation{}).Where("id = ?", invitation.ID).
		Update("status", models.InvitationStatusAccepted).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating invitation")
	}

	h.notifyAdmin(group, user, true)

	logger.InfoWithUser(user.ID.String(), "invitation_accepted", map[string]interface{}{
		"group_id":      group.ID.String(),
		"invitation_id": invitation.ID.String(),
	})

	return renderPage(c, fiber.StatusOK, invitationResultTmpl, data)
}

// Decline reports the refusal to the group admin. It never checks or touches
// membership: declining is always allowed and always answers the same way.
func (h *InvitationsHandler) Decline(c *fiber.Ctx) error {
	userID, groupID, invitation, ok, err := h.resolveInvitation(c)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading invitation")
	}

	var group models.Group
	if err := h.DB.Preload("Admin").First(&group, "id = ?", groupID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "group not found")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	if ok {
		if err := h.DB.Model(&models.Invitation{}).Where("id = ?", invitation.ID).
			Update("status", models.InvitationStatusDeclined).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed updating invitation")
		}
	}

	h.notifyAdmin(group, user, false)

	logger.InfoWithUser(user.ID.String(), "invitation_declined", map[string]interface{}{
		"group_id": group.ID.String(),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":    "Invitation declined",
		"isAccepted": false,
	})
}

// resolveInvitation loads the invitation named by the link and reports
// whether it is still actionable: pending, unexpired, and matching the user
// and group ids in the path.
func (h *InvitationsHandler) resolveInvitation(c *fiber.Ctx) (userID, groupID uuid.UUID, invitation *models.Invitation, ok bool, err error) {
	userID, err = parseUUID(c.Params("userId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, false, nil
	}
	groupID, err = parseUUID(c.Params("groupId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, false, nil
	}
	invitID, err := parseUUID(c.Params("invitId"))
	if err != nil {
		return userID, groupID, nil, false, nil
	}

	var inv models.Invitation
	if dbErr := h.DB.First(&inv, "id = ?", invitID).Error; dbErr != nil {
		if errors.Is(dbErr, gorm.ErrRecordNotFound) {
			return userID, groupID, nil, false, nil
		}
		return userID, groupID, nil, false, dbErr
	}

	if inv.UserID != userID || inv.GroupID != groupID {
		return userID, groupID, &inv, false, nil
	}
	if inv.Status != models.InvitationStatusPending || inv.Expired(time.Now()) {
		return userID, groupID, &inv, false, nil
	}

	return userID, groupID, &inv, true, nil
}

func (h *InvitationsHandler) notifyAdmin(group models.Group, user models.User, accepted bool) {
	data := mailer.ReplyData{Username: user.Username, GroupName: group.Name}

	var body, subject string
	var err error
	if accepted {
		subject = fmt.Sprintf("%s accepted your invitation", user.Username)
		body, err = mailer.RenderAccepted(data)
	} else {
		subject = fmt.Sprintf("%s declined your invitation", user.Username)
		body, err = mailer.RenderDeclined(data)
	}
	if err != nil {
		logger.Error("invitation_notify_render_failed", err, nil)
		return
	}

	// The member's answer stands even when the notification cannot be sent.
	if err := h.Mailer.SendHTML(group.Admin.Email, subject, body); err != nil {
		logger.Error("invitation_notify_failed", err, map[string]interface{}{
			"group_id": group.ID.String(),
		})
	}
}

func (h *InvitationsHandler) invitationURL(userID, groupID, invitID uuid.UUID, action string) string {
	return fmt.Sprintf("%s/api/users/%s/groupes/%s/invites/%s/%s", h.BaseURL, userID, groupID, invitID, action)
}
