package main

import (
	"github.com/gin-gonic/gin"

	"github.com/testflowhq/testflow/backend/internal/config"
	"github.com/testflowhq/testflow/backend/internal/handlers"
	"github.com/testflowhq/testflow/backend/internal/middleware"
	"github.com/testflowhq/testflow/backend/internal/models"
	"github.com/testflowhq/testflow/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for the invitation token endpoints
	inviteLimiter := middleware.NewRateLimiter(cfg.Invitation.RateLimitRPS, cfg.Invitation.RateLimitBurst)

	// Health and metrics
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Projects
			projectHandler := handlers.NewProjectHandler(models.GetDB())
			protected.GET("/projects", projectHandler.List)
			protected.POST("/projects", projectHandler.Create)
			protected.GET("/projects/:id", projectHandler.Get)
			protected.PUT("/projects/:id", projectHandler.Update)
			protected.DELETE("/projects/:id", projectHandler.Delete)

			// Members
			memberHandler := handlers.NewMemberHandler(models.GetDB())
			protected.GET("/projects/:id/members", memberHandler.List)
			protected.PUT("/projects/:id/members/:userID", memberHandler.UpdateRole)
			protected.DELETE("/projects/:id/members/:userID", memberHandler.Remove)

			// Invitations (project-scoped)
			invitationHandler := handlers.NewInvitationHandler(svc.invitationService)
			protected.POST("/projects/:id/invitations", invitationHandler.Create)
			protected.GET("/projects/:id/invitations", invitationHandler.List)
			protected.DELETE("/projects/:id/invitations/:invitationID", invitationHandler.Revoke)

			// Test packages and scenarios
			scenarioHandler := handlers.NewScenarioHandler(models.GetDB())
			protected.GET("/projects/:id/packages", scenarioHandler.ListPackages)
			protected.POST("/projects/:id/packages", scenarioHandler.CreatePackage)
			protected.PUT("/projects/:id/packages/:packageID", scenarioHandler.UpdatePackage)
			protected.DELETE("/projects/:id/packages/:packageID", scenarioHandler.DeletePackage)
			protected.GET("/projects/:id/scenarios", scenarioHandler.ListScenarios)
			protected.POST("/projects/:id/scenarios", scenarioHandler.CreateScenario)
			protected.GET("/projects/:id/scenarios/:scenarioID", scenarioHandler.GetScenario)
			protected.PUT("/projects/:id/scenarios/:scenarioID", scenarioHandler.UpdateScenario)
			protected.DELETE("/projects/:id/scenarios/:scenarioID", scenarioHandler.DeleteScenario)

			// Executions
			executionHandler := handlers.NewExecutionHandler(models.GetDB())
			protected.POST("/projects/:id/executions", executionHandler.Create)
			protected.GET("/projects/:id/executions", executionHandler.List)
			protected.GET("/projects/:id/executions/:executionID", executionHandler.Get)
			protected.POST("/projects/:id/executions/:executionID/approve", executionHandler.Approve)

			// Bugs
			bugHandler := handlers.NewBugHandler(models.GetDB())
			protected.POST("/projects/:id/bugs", bugHandler.Create)
			protected.GET("/projects/:id/bugs", bugHandler.List)
			protected.GET("/projects/:id/bugs/:bugID", bugHandler.Get)
			protected.PUT("/projects/:id/bugs/:bugID", bugHandler.Update)
			protected.DELETE("/projects/:id/bugs/:bugID", bugHandler.Delete)

			// Evidence attachments
			evidenceHandler := handlers.NewEvidenceHandler(svc.evidenceService)
			protected.POST("/projects/:id/evidence", evidenceHandler.Upload)
			protected.GET("/projects/:id/evidence", evidenceHandler.List)
			protected.GET("/projects/:id/evidence/:evidenceID/download", evidenceHandler.Download)
			protected.DELETE("/projects/:id/evidence/:evidenceID", evidenceHandler.Delete)

			// Dashboard
			dashboardHandler := handlers.NewDashboardHandler(models.GetDB())
			protected.GET("/projects/:id/dashboard", dashboardHandler.ProjectDashboard)

			// Invitation responses (token-scoped, rate limited)
			invResponse := protected.Group("", inviteLimiter.Middleware())
			{
				invResponse.POST("/invitations/:token/accept", invitationHandler.Accept)
				invResponse.POST("/invitations/:token/decline", invitationHandler.Decline)
			}
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			// Users
			userHandler := handlers.NewUserHandler(models.GetDB())
			admin.GET("/users", userHandler.List)
			admin.POST("/users", userHandler.Create)
			admin.PUT("/users/:id", userHandler.Update)
			admin.DELETE("/users/:id", userHandler.Delete)

			// System Logs
			systemLogHandler := handlers.NewSystemLogHandler(models.GetDB())
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
		}
	}
}
