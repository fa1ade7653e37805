// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/vendor-settlement/internal/config"
	"github.com/javajoker/vendor-settlement/internal/models"
)

var DB *gorm.DB

// GormConfig is shared by the server and tests so both see the same error
// translation (duplicate keys surface as gorm.ErrDuplicatedKey).
func GormConfig(logLevel string) *gorm.Config {
	level := logger.Warn
	switch logLevel {
	case "silent":
		level = logger.Silent
	case "error":
		level = logger.Error
	case "info":
		level = logger.Info
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DSN()), GormConfig(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("Database connection established")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

// Models lists every table owned by the settlement engine.
func Models() []interface{} {
	return []interface{}{
		&models.Vendor{},
		&models.CommissionRate{},
		&models.CommissionRecord{},
		&models.PayoutBatch{},
		&models.PayoutRecord{},
		&models.Dispute{},
		&models.ReconciliationRecord{},
		&models.AuditLog{},
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
			return fmt.Errorf("failed to create UUID extension: %w", err)
		}
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		createIndexes(db)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) {
	indexes := []string{
		// Ledger scans by vendor and status, oldest first
		"CREATE INDEX IF NOT EXISTS idx_commission_records_vendor_status_date ON commission_records(vendor_id, status, transaction_date)",
		"CREATE INDEX IF NOT EXISTS idx_commission_records_date_vendor ON commission_records(transaction_date, vendor_id)",

		// Rate lookup
		"CREATE INDEX IF NOT EXISTS idx_commission_rates_lookup ON commission_rates(vendor_id, is_active, created_at DESC)",

		// Payouts
		"CREATE INDEX IF NOT EXISTS idx_payout_records_vendor_status ON payout_records(vendor_id, status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_payout_records_vendor_processed ON payout_records(vendor_id, processed_date DESC) WHERE status = 'completed'",

		// At most one open dispute per commission
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_commission_disputes_open ON commission_disputes(commission_id) WHERE status = 'open'",

		// Reconciliation history
		"CREATE INDEX IF NOT EXISTS idx_commission_reconciliations_vendor_period ON commission_reconciliations(vendor_id, period_start DESC)",

		// Audit
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("statement", index).Warn("Failed to create index")
		}
	}
}
