package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/groupnotes/backend/internal/database"
	"github.com/groupnotes/backend/internal/middleware"
	"github.com/groupnotes/backend/internal/models"
	"github.com/groupnotes/backend/internal/services"
	"github.com/groupnotes/backend/pkg/logger"
	"github.com/groupnotes/backend/pkg/utils"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

// recordingMailer captures outgoing mail instead of speaking SMTP.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *recordingMailer) SendHTML(to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (m *recordingMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMail, len(m.sent))
	copy(out, m.sent)
	return out
}

// memStore keeps file-note payloads in a map so tests run without MinIO.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = data
	return nil
}

func (s *memStore) Download(_ context.Context, objectName string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectName]
	if !ok {
		return nil, errors.New("object not found: " + objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Delete(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	return nil
}

func (s *memStore) has(objectName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[objectName]
	return ok
}

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	mailer *recordingMailer
	store  *memStore
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	mail := &recordingMailer{}
	store := newMemStore()
	membershipService := services.NewMembershipService(db)

	authHandler := NewAuthHandler(db)
	groupsHandler := NewGroupsHandler(db, membershipService, store)
	adminHandler := NewAdminHandler(db, membershipService)
	invitationsHandler := NewInvitationsHandler(db, membershipService, mail, "http://localhost:8080")
	notesHandler := NewNotesHandler(db, store)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	api.Post("/sign-up", authHandler.Register)
	api.Post("/sign-in", authHandler.Login)
	api.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	api.Post("/group", authMiddleware.RequireAuth, groupsHandler.Create)
	api.Patch("/group", authMiddleware.RequireAuth, groupsHandler.Update)
	api.Get("/group/:group_id", authMiddleware.RequireAuth, groupsHandler.GetOne)
	api.Delete("/group/:group_id/:username", authMiddleware.RequireAuth, groupsHandler.Delete)
	api.Get("/group/:groupId/users", authMiddleware.RequireAuth, groupsHandler.GetAllUsersFromGroup)
	api.Post("/group/:groupId/new-admin/:new_admin", authMiddleware.RequireAuth, adminHandler.ManageAdmin)
	api.Get("/groups/:username", authMiddleware.RequireAuth, groupsHandler.GetAllByUsername)
	api.Delete("/user/:userId/group/:groupId/leave", authMiddleware.RequireAuth, groupsHandler.Leave)
	api.Post("/check/group/:groupId/user/:userId", authMiddleware.RequireAuth, groupsHandler.CheckAuthorized)

	api.Post("/users/:userEmail/groupes/:groupId/sendInvit", authMiddleware.RequireAuth, invitationsHandler.Send)
	api.Get("/users/:userId/groupes/:groupId/invites/:invitId/accept", invitationsHandler.Accept)
	api.Get("/users/:userId/groupes/:groupId/invites/:invitId/decline", invitationsHandler.Decline)

	api.Post("/note", authMiddleware.RequireAuth, notesHandler.Create)
	api.Patch("/note", authMiddleware.RequireAuth, notesHandler.Update)
	api.Post("/note/status", authMiddleware.RequireAuth, notesHandler.ChangeStatus)
	api.Get("/note/:group_id/:note_id/download", authMiddleware.RequireAuth, notesHandler.Download)
	api.Delete("/note/:group_id/:note_id", authMiddleware.RequireAuth, notesHandler.Delete)
	api.Get("/notes/:group_id/:type_note", authMiddleware.RequireAuth, notesHandler.GetAllByGroup)

	api.Post("/:group_name/add/:username", authMiddleware.RequireAuth, groupsHandler.AddParticipant)

	return &testEnv{app: app, db: db, mailer: mail, store: store}
}

func createTestUser(t *testing.T, db *gorm.DB, email, username, password string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.Username, nil)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestGroup(t *testing.T, db *gorm.DB, name string, admin *models.User) *models.Group {
	t.Helper()

	group := &models.Group{Name: name, AdminID: admin.ID, IsActive: true}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed creating test group: %v", err)
	}
	membership := &models.GroupMembership{UserID: admin.ID, GroupID: group.ID}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed creating admin membership: %v", err)
	}

	return group
}

func addTestMember(t *testing.T, db *gorm.DB, group *models.Group, user *models.User) {
	t.Helper()

	membership := &models.GroupMembership{UserID: user.ID, GroupID: group.ID}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed adding test member: %v", err)
	}
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}
	return string(raw)
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertMessage(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if got, _ := body["message"].(string); got != expected {
		t.Fatalf("expected message %q, got %q", expected, got)
	}
}
