// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/config"
	"github.com/javajoker/vendor-settlement/internal/handlers"
	"github.com/javajoker/vendor-settlement/internal/metrics"
	"github.com/javajoker/vendor-settlement/internal/middleware"
	"github.com/javajoker/vendor-settlement/internal/services"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, svc *services.Container) *gin.Engine {
	// Initialize handlers
	commissionHandler := handlers.NewCommissionHandler(svc.Commissions, svc.RateResolver)
	payoutHandler := handlers.NewPayoutHandler(svc.Payments, svc.Batches)
	disputeHandler := handlers.NewDisputeHandler(svc.Disputes)
	reconciliationHandler := handlers.NewReconciliationHandler(svc.Reconciliation)

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())

	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": "1.0.0",
		})
	})
	r.GET("/metrics", metrics.Handler())

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthRequired())
	v1.Use(middleware.RoleRequired(utils.RoleAdmin, utils.RoleFinance))
	v1.Use(middleware.AuditLogMiddleware(db))
	{
		commissions := v1.Group("/commissions")
		{
			commissions.POST("/calculate", commissionHandler.Calculate)
			commissions.GET("", commissionHandler.List)
			commissions.GET("/:id", commissionHandler.Get)
		}

		rates := v1.Group("/commission-rates")
		{
			rates.GET("", commissionHandler.ListRates)
			rates.POST("", commissionHandler.CreateRate)
		}

		payouts := v1.Group("/payouts")
		{
			payouts.GET("", payoutHandler.List)
			payouts.GET("/schedule", payoutHandler.Schedule)
			payouts.GET("/:id", payoutHandler.Get)

			payouts.POST("/process", middleware.PayoutRateLimit(), payoutHandler.ProcessPayout)
			payouts.POST("/batches", middleware.PayoutRateLimit(), payoutHandler.GenerateBatch)
			payouts.POST("/automated", middleware.PayoutRateLimit(), payoutHandler.AutomatedPayouts)
			payouts.POST("/:id/retry", middleware.PayoutRateLimit(), payoutHandler.Retry)
			payouts.POST("/:id/release", payoutHandler.Release)
		}

		v1.GET("/vendors/:id/earnings", commissionHandler.VendorEarnings)
		v1.GET("/analytics/commissions", commissionHandler.Analytics)

		v1.POST("/disputes", disputeHandler.Handle)

		reconciliations := v1.Group("/reconciliations")
		{
			reconciliations.POST("", reconciliationHandler.Reconcile)
			reconciliations.GET("", reconciliationHandler.History)
		}
	}

	return r
}
