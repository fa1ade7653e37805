// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vendor-settlement/internal/config"
	"github.com/javajoker/vendor-settlement/internal/database"
	"github.com/javajoker/vendor-settlement/internal/i18n"
	"github.com/javajoker/vendor-settlement/internal/router"
	"github.com/javajoker/vendor-settlement/internal/scheduler"
	"github.com/javajoker/vendor-settlement/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	configureLogging(cfg.Log)

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	if err := i18n.Initialize(); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	redisClient := connectRedis(cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	svc, err := services.NewContainer(db, cfg, redisClient)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize services")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.Initialize(db, cfg, svc)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	settlementScheduler := scheduler.NewSettlementScheduler(svc.Payments, svc.Reconciliation, scheduler.Config{
		AutomatedPayoutsEnabled:  cfg.Scheduler.AutomatedPayoutsEnabled,
		AutomatedPayoutsInterval: cfg.Scheduler.AutomatedPayoutsInterval,
		ReconciliationEnabled:    cfg.Scheduler.ReconciliationEnabled,
		ReconciliationInterval:   cfg.Scheduler.ReconciliationInterval,
		ReconciliationPeriod:     cfg.Scheduler.ReconciliationPeriod,
		RunTimeout:               cfg.Scheduler.RunTimeout,
	})
	settlementScheduler.Start(context.Background())

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	if err := settlementScheduler.Stop(ctx); err != nil {
		logrus.WithError(err).Warn("Scheduler did not stop cleanly")
	}

	logrus.Info("Server exited")
}

func configureLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// connectRedis returns nil when redis is not configured or unreachable.
func connectRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis unreachable, falling back to process-local payout guard")
		client.Close()
		return nil
	}
	return client
}
