package main

import (
	"github.com/gin-gonic/gin"
	"github.com/vortexis/hackhub/backend/internal/middleware"
	"github.com/vortexis/hackhub/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.AllowOrigins))

	// Health check
	r.GET("/health", svc.healthHandler.CheckHealth)

	// WebSocket gateway (token via ?token= or Authorization header, checked after upgrade)
	ws := r.Group("/ws/communications", svc.upgradeLimit.Middleware())
	{
		ws.GET("/conversations/:conversation_id/", svc.socketHandler.Connect)
		ws.GET("/conversations/:conversation_id", svc.socketHandler.Connect)
	}

	// API routes
	api := r.Group("/api")
	{
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			ch := svc.conversationHandler
			protected.GET("/conversations", ch.List)
			protected.POST("/conversations/dm", ch.CreateDM)
			protected.GET("/conversations/:id", ch.Get)
			protected.GET("/conversations/:id/messages", ch.ListMessages)
			protected.POST("/conversations/:id/messages", ch.CreateMessage)
		}

		// Admin routes (called by owning domains after roster changes)
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			ah := svc.adminHandler
			admin.POST("/conversations/scoped", ah.EnsureScoped)
			admin.POST("/conversations/:id/members/sync", ah.SyncMembers)
			admin.DELETE("/conversations/:id", ah.Delete)
		}
	}
}
