package services

import (
	"errors"
	"testing"
	"time"

	"github.com/groupnotes/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupMembershipTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Note{},
		&models.Invitation{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@test.com",
		PasswordHash: "hash",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}
	return user
}

func createGroup(t *testing.T, db *gorm.DB, name string, admin *models.User) *models.Group {
	t.Helper()
	group := &models.Group{Name: name, AdminID: admin.ID, IsActive: true}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed creating group: %v", err)
	}
	if err := db.Create(&models.GroupMembership{UserID: admin.ID, GroupID: group.ID}).Error; err != nil {
		t.Fatalf("failed creating admin membership: %v", err)
	}
	return group
}

func TestMembershipService_AddParticipant(t *testing.T) {
	db := setupMembershipTestDB(t)
	service := NewMembershipService(db)

	admin := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	group := createGroup(t, db, "readers", admin)

	membership, err := service.AddParticipant(group.ID, bob.ID)
	if err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if membership.UserID != bob.ID || membership.GroupID != group.ID {
		t.Fatalf("unexpected membership row: %+v", membership)
	}

	if _, err := service.AddParticipant(group.ID, bob.ID); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	var count int64
	db.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", group.ID, bob.ID).
		Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one membership row, got %d", count)
	}
}

func TestMembershipService_IsMemberIsAdmin(t *testing.T) {
	db := setupMembershipTestDB(t)
	service := NewMembershipService(db)

	admin := createUser(t, db, "alice")
	outsider := createUser(t, db, "bob")
	group := createGroup(t, db, "readers", admin)

	if ok, _ := service.IsMember(group.ID, admin.ID); !ok {
		t.Fatal("admin must be a member")
	}
	if ok, _ := service.IsMember(group.ID, outsider.ID); ok {
		t.Fatal("outsider must not be a member")
	}
	if ok, _ := service.IsAdmin(group.ID, admin.ID); !ok {
		t.Fatal("expected admin")
	}
	if ok, _ := service.IsAdmin(group.ID, outsider.ID); ok {
		t.Fatal("outsider is not the admin")
	}
}

func TestMembershipService_ChangeAdmin(t *testing.T) {
	db := setupMembershipTestDB(t)
	service := NewMembershipService(db)

	admin := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	t.Run("moves the seat to an existing member", func(t *testing.T) {
		group := createGroup(t, db, "readers", admin)
		if _, err := service.AddParticipant(group.ID, bob.ID); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		updated, err := service.ChangeAdmin(group.ID, bob.ID)
		if err != nil {
			t.Fatalf("change admin failed: %v", err)
		}
		if updated.AdminID != bob.ID {
			t.Fatal("returned group must carry the new admin")
		}
	})

	t.Run("grants a membership row to an outside promotee", func(t *testing.T) {
		group := createGroup(t, db, "writers", admin)

		if _, err := service.ChangeAdmin(group.ID, bob.ID); err != nil {
			t.Fatalf("change admin failed: %v", err)
		}

		var count int64
		db.Model(&models.GroupMembership{}).
			Where("group_id = ? AND user_id = ?", group.ID, bob.ID).
			Count(&count)
		if count != 1 {
			t.Fatal("new admin must hold a membership row")
		}
	})

	t.Run("unknown group fails", func(t *testing.T) {
		if _, err := service.ChangeAdmin(uuid.New(), bob.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound, got %v", err)
		}
	})
}

func TestMembershipService_Leave(t *testing.T) {
	db := setupMembershipTestDB(t)
	service := NewMembershipService(db)

	admin := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	t.Run("admin leaving promotes the earliest-joined member", func(t *testing.T) {
		group := createGroup(t, db, "readers", admin)
		db.Create(&models.GroupMembership{
			BaseModel: models.BaseModel{CreatedAt: time.Now().Add(time.Second)},
			UserID:    bob.ID,
			GroupID:   group.ID,
		})
		db.Create(&models.GroupMembership{
			BaseModel: models.BaseModel{CreatedAt: time.Now().Add(time.Minute)},
			UserID:    carol.ID,
			GroupID:   group.ID,
		})

		removed, err := service.Leave(group.ID, admin.ID)
		if err != nil {
			t.Fatalf("leave failed: %v", err)
		}
		if len(removed) != 0 {
			t.Fatalf("expected no removed file notes, got %d", len(removed))
		}

		var reloaded models.Group
		db.First(&reloaded, "id = ?", group.ID)
		if reloaded.AdminID != bob.ID {
			t.Fatalf("expected bob promoted, got %s", reloaded.AdminID)
		}
	})

	t.Run("sole participant leaving deletes the group and its rows", func(t *testing.T) {
		group := createGroup(t, db, "solo", admin)
		db.Create(&models.Note{AuthorID: admin.ID, GroupID: group.ID, Format: models.NoteFormatText, Content: "bye"})
		db.Create(&models.Note{AuthorID: admin.ID, GroupID: group.ID, Format: models.NoteFormatFile, Content: "report.pdf"})
		db.Create(&models.Invitation{
			GroupID:   group.ID,
			UserID:    bob.ID,
			Status:    models.InvitationStatusPending,
			ExpiresAt: time.Now().Add(time.Hour),
		})

		removed, err := service.Leave(group.ID, admin.ID)
		if err != nil {
			t.Fatalf("leave failed: %v", err)
		}
		if len(removed) != 1 || removed[0].Content != "report.pdf" {
			t.Fatalf("expected the removed file note back, got %+v", removed)
		}

		var groups, notes, invitations, memberships int64
		db.Model(&models.Group{}).Where("id = ?", group.ID).Count(&groups)
		db.Model(&models.Note{}).Where("group_id = ?", group.ID).Count(&notes)
		db.Model(&models.Invitation{}).Where("group_id = ?", group.ID).Count(&invitations)
		db.Model(&models.GroupMembership{}).Where("group_id = ?", group.ID).Count(&memberships)
		if groups+notes+invitations+memberships != 0 {
			t.Fatalf("expected full cleanup, got groups=%d notes=%d invitations=%d memberships=%d",
				groups, notes, invitations, memberships)
		}
	})

	t.Run("non-member cannot leave", func(t *testing.T) {
		group := createGroup(t, db, "closed", admin)
		if _, err := service.Leave(group.ID, carol.ID); !errors.Is(err, ErrNotMember) {
			t.Fatalf("expected ErrNotMember, got %v", err)
		}
	})

	t.Run("membership is reusable after leaving", func(t *testing.T) {
		group := createGroup(t, db, "revolving-door", admin)
		if _, err := service.AddParticipant(group.ID, bob.ID); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if _, err := service.Leave(group.ID, bob.ID); err != nil {
			t.Fatalf("leave failed: %v", err)
		}
		if _, err := service.AddParticipant(group.ID, bob.ID); err != nil {
			t.Fatalf("re-add after leave failed: %v", err)
		}
	})
}

func TestMembershipService_DeleteGroup(t *testing.T) {
	db := setupMembershipTestDB(t)
	service := NewMembershipService(db)

	admin := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	group := createGroup(t, db, "doomed", admin)
	if _, err := service.AddParticipant(group.ID, bob.ID); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	db.Create(&models.Note{AuthorID: admin.ID, GroupID: group.ID, Format: models.NoteFormatText, Content: "x"})

	if err := service.DeleteGroup(group.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var groups, notes, memberships int64
	db.Model(&models.Group{}).Where("id = ?", group.ID).Count(&groups)
	db.Model(&models.Note{}).Where("group_id = ?", group.ID).Count(&notes)
	db.Model(&models.GroupMembership{}).Where("group_id = ?", group.ID).Count(&memberships)
	if groups+notes+memberships != 0 {
		t.Fatalf("expected full cleanup, got groups=%d notes=%d memberships=%d", groups, notes, memberships)
	}
}
