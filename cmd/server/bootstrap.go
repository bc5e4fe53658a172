package main

import (
	"context"

	"github.com/testflowhq/testflow/backend/internal/config"
	"github.com/testflowhq/testflow/backend/internal/handlers"
	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/internal/services"
	"github.com/testflowhq/testflow/backend/internal/utils"
	"github.com/testflowhq/testflow/backend/pkg/logger"
	"github.com/testflowhq/testflow/backend/pkg/storage"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	taskQueue         services.TaskQueue
	worker            *services.Worker
	digestService     *services.DigestService
	invitationService *services.InvitationService
	evidenceService   *services.EvidenceService
	authHandler       *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, storage,
// mail pipeline, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize system logger
	services.InitSystemLogger(models.GetDB())

	// Start system log cleanup scheduler
	services.StartLogCleanupScheduler(models.GetDB())

	// Evidence blob storage (local disk or S3)
	store := initStorage(cfg)

	// Mail pipeline: SMTP sender behind the task queue (Redis if enabled,
	// otherwise sync mode)
	emailService := services.NewEmailService(&cfg.Email)
	taskQueue := services.InitTaskQueue(cfg)
	notifier := services.NewNotificationService(emailService, taskQueue)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notifier.ProcessMailTask)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(notifier.ProcessMailTask)
			worker.Start()
		}
	}

	// Invitations expire on a schedule
	invitationService := services.NewInvitationService(models.GetDB(), &cfg.Invitation, notifier)
	invitationService.StartSweeper()

	// Daily execution digest
	digestService := services.NewDigestService(models.GetDB(), &cfg.Digest, notifier)
	digestService.StartScheduler()

	evidenceService := services.NewEvidenceService(models.GetDB(), store, cfg.Storage.MaxUploadMB)

	// Create default admin user
	authHandler := handlers.NewAuthHandler(models.GetDB(), cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		taskQueue:         taskQueue,
		worker:            worker,
		digestService:     digestService,
		invitationService: invitationService,
		evidenceService:   evidenceService,
		authHandler:       authHandler,
	}
}

func initStorage(cfg *config.Config) storage.Store {
	switch cfg.Storage.Backend {
	case "s3":
		store, err := storage.NewS3(context.Background(), cfg.Storage.S3)
		if err != nil {
			logger.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		return store
	default:
		store, err := storage.NewLocal(cfg.Storage.LocalDir)
		if err != nil {
			logger.Fatalf("Failed to initialize local storage: %v", err)
		}
		return store
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.digestService.StopScheduler()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
