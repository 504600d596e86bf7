package services

import (
	"errors"
	"strings"

	"github.com/groupnotes/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyMember is returned when an atomic membership insert hits the
	// (group, user) unique index.
	ErrAlreadyMember = errors.New("user is already a member of the group")
	// ErrNotMember is returned when an operation targets a user with no
	// membership row in the group.
	ErrNotMember = errors.New("user is not a member of the group")
)

// MembershipService owns the membership and admin-transfer rules shared by
// the group, invitation, and admin endpoints. It is constructed once at
// process start and holds only its store reference.
type MembershipService struct {
	DB *gorm.DB
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{DB: db}
}

// IsMember reports whether the user holds a membership row in the group.
// This is the authorization gate behind the check endpoint, and its negation
// is the invitation actionability predicate.
func (s *MembershipService) IsMember(groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.DB.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MembershipService) IsAdmin(groupID, userID uuid.UUID) (bool, error) {
	var group models.Group
	if err := s.DB.First(&group, "id = ?", groupID).Error; err != nil {
		return false, err
	}
	return group.AdminID == userID, nil
}

// AddParticipant inserts a membership row. The composite unique index makes
// this the single atomic check-then-insert; a duplicate insert surfaces as
// ErrAlreadyMember instead of racing a prior read.
func (s *MembershipService) AddParticipant(groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	membership := models.GroupMembership{
		UserID:  userID,
		GroupID: groupID,
	}

	if err := s.DB.Create(&membership).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}

	return &membership, nil
}

// ChangeAdmin hands the admin seat of a group to the given user and returns
// the updated group. The new admin gains a membership row if they lack one,
// so the admin-is-a-participant invariant holds.
func (s *MembershipService) ChangeAdmin(groupID, newAdminID uuid.UUID) (*models.Group, error) {
	var group models.Group

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.GroupMembership{}).
			Where("group_id = ? AND user_id = ?", groupID, newAdminID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			membership := models.GroupMembership{UserID: newAdminID, GroupID: groupID}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		}

		group.AdminID = newAdminID
		return tx.Model(&models.Group{}).Where("id = ?", groupID).Update("admin_id", newAdminID).Error
	})
	if err != nil {
		return nil, err
	}

	return &group, nil
}

// Leave removes the user from the group. When the leaver is the admin, the
// earliest-joined remaining participant is promoted first, so the group is
// never left without an admin. The sole participant leaving deletes the
// group outright, notes included; in that case the removed file notes are
// returned so the caller can drop their payloads from object storage.
func (s *MembershipService) Leave(groupID, userID uuid.UUID) ([]models.Note, error) {
	var removedFiles []models.Note

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			return err
		}

		var membership models.GroupMembership
		if err := tx.First(&membership, "group_id = ? AND user_id = ?", groupID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotMember
			}
			return err
		}

		if group.AdminID == userID {
			var replacement models.GroupMembership
			err := tx.Where("group_id = ? AND user_id <> ?", groupID, userID).
				Order("created_at ASC").
				First(&replacement).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Collect file-note rows before the group delete takes them.
				if err := tx.Where("group_id = ? AND format = ?", groupID, models.NoteFormatFile).
					Find(&removedFiles).Error; err != nil {
					return err
				}
				return deleteGroup(tx, groupID)
			}
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Group{}).Where("id = ?", groupID).
				Update("admin_id", replacement.UserID).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&models.GroupMembership{}, "id = ?", membership.ID).Error
	})
	if err != nil {
		return nil, err
	}

	return removedFiles, nil
}

// DeleteGroup removes a group with its notes, memberships, and invitations
// in one transaction. File-note payloads in object storage are the caller's
// concern; the store only holds filenames.
func (s *MembershipService) DeleteGroup(groupID uuid.UUID) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return deleteGroup(tx, groupID)
	})
}

func deleteGroup(tx *gorm.DB, groupID uuid.UUID) error {
	if err := tx.Where("group_id = ?", groupID).Delete(&models.Note{}).Error; err != nil {
		return err
	}
	if err := tx.Where("group_id = ?", groupID).Delete(&models.Invitation{}).Error; err != nil {
		return err
	}
	if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMembership{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Group{}, "id = ?", groupID).Error
}

// isUniqueViolation matches the driver-specific duplicate-key failures the
// membership index raises (postgres in production, sqlite in tests).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
