package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groupnotes/backend/internal/config"
	"github.com/groupnotes/backend/internal/database"
	"github.com/groupnotes/backend/internal/handlers"
	"github.com/groupnotes/backend/internal/mailer"
	"github.com/groupnotes/backend/internal/middleware"
	"github.com/groupnotes/backend/internal/services"
	"github.com/groupnotes/backend/internal/storage"
	"github.com/groupnotes/backend/pkg/logger"
	"github.com/groupnotes/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	smtpMailer := mailer.New(cfg.SMTP)
	membershipService := services.NewMembershipService(db)

	authHandler := handlers.NewAuthHandler(db)
	groupsHandler := handlers.NewGroupsHandler(db, membershipService, storageClient)
	adminHandler := handlers.NewAdminHandler(db, membershipService)
	invitationsHandler := handlers.NewInvitationsHandler(db, membershipService, smtpMailer, cfg.Server.BaseURL)
	notesHandler := handlers.NewNotesHandler(db, storageClient)

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
	// Invitation links arrive from email clients without a bearer token.
	api.Get("/users/:userId/groupes/:groupId/invites/:invitId/accept", invitationsHandler.Accept)
	api.Get("/users/:userId/groupes/:groupId/invites/:invitId/decline", invitationsHandler.Decline)

	api.Post("/note", authMiddleware.RequireAuth, notesHandler.Create)
	api.Patch("/note", authMiddleware.RequireAuth, notesHandler.Update)
	api.Post("/note/status", authMiddleware.RequireAuth, notesHandler.ChangeStatus)
	api.Get("/note/:group_id/:note_id/download", authMiddleware.RequireAuth, notesHandler.Download)
	api.Delete("/note/:group_id/:note_id", authMiddleware.RequireAuth, notesHandler.Delete)
	api.Get("/notes/:group_id/:type_note", authMiddleware.RequireAuth, notesHandler.GetAllByGroup)

	// Wildcard route, registered last so it cannot shadow the named ones.
	api.Post("/:group_name/add/:username", authMiddleware.RequireAuth, groupsHandler.AddParticipant)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
