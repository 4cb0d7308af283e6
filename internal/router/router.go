// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/config"
	"github.com/refurbly/consign-backend/internal/handlers"
	"github.com/refurbly/consign-backend/internal/middleware"
	"github.com/refurbly/consign-backend/internal/services"
	"github.com/refurbly/consign-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(cfg)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Warn("Storage service unavailable, uploads will fail")
		storageService, _ = services.NewStorageService(&config.Config{})
	}

	authService := services.NewAuthService(db, cfg, notificationService)
	deviceService := services.NewDeviceService(db)
	resellerService := services.NewResellerService(db, notificationService)
	assignmentService := services.NewAssignmentService(db, notificationService)
	settlementService := services.NewSettlementService(db, cfg)
	catalogService := services.NewCatalogService(db, cfg, nil)
	adminService := services.NewAdminService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	deviceHandler := handlers.NewDeviceHandler(deviceService, storageService)
	resellerHandler := handlers.NewResellerHandler(resellerService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)
	settlementHandler := handlers.NewSettlementHandler(settlementService)
	adminHandler := handlers.NewAdminHandler(adminService, catalogService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
			auth.PUT("/password", middleware.AuthRequired(), authHandler.ChangePassword)
		}

		// Device ledger (operator only)
		devices := v1.Group("/devices")
		devices.Use(middleware.AuthRequired(), middleware.OperatorRequired())
		{
			devices.POST("", deviceHandler.Intake)
			devices.GET("", deviceHandler.Search)
			devices.GET("/:id", deviceHandler.Get)
			devices.PUT("/:id", deviceHandler.Update)
			devices.DELETE("/:id", deviceHandler.Delete)
			devices.POST("/:id/start-repair", deviceHandler.StartRepair)
			devices.POST("/:id/mark-ready", deviceHandler.MarkReady)
			devices.POST("/:id/parts", deviceHandler.AddRepairPart)
			devices.DELETE("/:id/parts/:partId", deviceHandler.RemoveRepairPart)
			devices.POST("/:id/photos", middleware.UploadRateLimit(), deviceHandler.UploadPhoto)
		}

		// Parts catalog (operator only)
		parts := v1.Group("/parts")
		parts.Use(middleware.AuthRequired(), middleware.OperatorRequired())
		{
			parts.GET("", adminHandler.ListParts)
		}

		// Reseller registry (operator only)
		resellers := v1.Group("/resellers")
		resellers.Use(middleware.AuthRequired(), middleware.OperatorRequired())
		{
			resellers.POST("", resellerHandler.Register)
			resellers.GET("", resellerHandler.List)
			resellers.GET("/:id", resellerHandler.Get)
			resellers.PUT("/:id", resellerHandler.Update)
			resellers.DELETE("/:id", resellerHandler.Delete)
			resellers.POST("/:id/deactivate", resellerHandler.Deactivate)
			resellers.POST("/:id/activate", resellerHandler.Activate)
			resellers.GET("/:id/stats", assignmentHandler.Stats)
		}

		// Consignment lifecycle
		assignments := v1.Group("/assignments")
		assignments.Use(middleware.AuthRequired())
		{
			assignments.POST("", middleware.OperatorRequired(), assignmentHandler.Create)
			assignments.GET("", assignmentHandler.Search)
			assignments.GET("/mine", middleware.ResellerRequired(), assignmentHandler.ListMine)
			assignments.GET("/stats", middleware.ResellerRequired(), assignmentHandler.Stats)
			assignments.GET("/:id", assignmentHandler.Get)
			assignments.GET("/:id/events", assignmentHandler.GetEvents)
			assignments.POST("/:id/receive", middleware.ResellerRequired(), assignmentHandler.ConfirmReceipt)
			assignments.POST("/:id/sell", middleware.ResellerRequired(), assignmentHandler.ConfirmSale)
			assignments.POST("/:id/reverse-sale", middleware.ResellerRequired(), assignmentHandler.ReverseSale)
			assignments.POST("/:id/revoke", middleware.OperatorRequired(), assignmentHandler.Revoke)
		}

		// Settlement
		payouts := v1.Group("/payouts")
		payouts.Use(middleware.AuthRequired())
		{
			payouts.GET("/balance", middleware.ResellerRequired(), settlementHandler.Balance)
			payouts.POST("", middleware.ResellerRequired(), settlementHandler.RequestPayout)
			payouts.GET("", settlementHandler.ListPayouts)
			payouts.POST("/:id/process", middleware.OperatorRequired(), settlementHandler.ProcessPayout)
			payouts.POST("/:id/reject", middleware.OperatorRequired(), settlementHandler.RejectPayout)
		}

		transactions := v1.Group("/transactions")
		transactions.Use(middleware.AuthRequired())
		{
			transactions.GET("", settlementHandler.ListTransactions)
		}

		// Operator tools
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.OperatorRequired())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.POST("/catalog/sync", adminHandler.SyncCatalog)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}
