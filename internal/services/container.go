// internal/services/container.go
package services

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/config"
	"github.com/javajoker/vendor-settlement/internal/models"
)

// Container holds the wired settlement services shared by the router and
// the scheduler.
type Container struct {
	Ledger         *CommissionLedger
	RateResolver   *RateResolver
	Commissions    *CommissionService
	Batches        *PayoutBatchGenerator
	Payments       *PaymentService
	Disputes       *DisputeService
	Reconciliation *ReconciliationService
	Notifications  *NotificationService
	Storage        *StorageService
}

// NewContainer builds every service from configuration. A nil redis client
// falls back to an in-process execution guard.
func NewContainer(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) (*Container, error) {
	storage, err := NewStorageService(&cfg.AWS)
	if err != nil {
		return nil, err
	}
	notifier := NewNotificationService(&cfg.Email)

	ledger := NewCommissionLedger(db)
	vendors := NewVendorDirectory(db)

	resolver := NewRateResolver(db, ResolvedRate{
		BaseRate:        decimal.NewFromFloat(cfg.Commission.DefaultBaseRate),
		RateType:        models.RateTypePercentage,
		PlatformFeeRate: decimal.NewFromFloat(cfg.Commission.DefaultPlatformFeeRate),
		MinimumAmount:   decimal.NewFromFloat(cfg.Commission.DefaultMinimumAmount),
		MaximumAmount:   decimal.NewFromFloat(cfg.Commission.DefaultMaximumAmount),
	})
	calculator := NewCalculator(decimal.NewFromFloat(cfg.Commission.VATRate), RoundingMode(cfg.Commission.RoundingMode))

	batches := NewPayoutBatchGenerator(db, ledger, vendors, cfg.Payment.Currency,
		decimal.NewFromFloat(cfg.Payment.MinimumPayout), models.PayoutFrequency(cfg.Payment.DefaultFrequency))

	rails := NewRailRegistry()
	rails.Register(models.PaymentMethodBankTransfer, NewBankTransferRail(storage))
	rails.Register(models.PaymentMethodMobileWallet, NewWalletRail(cfg.Payment.WalletBaseURL,
		cfg.Payment.WalletChannel, cfg.Payment.WalletSecret, &http.Client{Timeout: cfg.Payment.ExecutionTimeout}))
	rails.Register(models.PaymentMethodStripeConnect, NewStripeRail(cfg.Payment.StripeSecretKey, cfg.Payment.Currency, nil))

	var guard ExecutionGuard
	if redisClient != nil {
		guard = NewRedisExecutionGuard(redisClient, "")
	} else {
		logrus.Warn("Redis not configured, payout execution guard is process-local")
		guard = NewInMemoryExecutionGuard()
	}

	payments := NewPaymentService(db, ledger, batches, vendors, rails, guard, notifier, PaymentOptions{
		ExecutionTimeout: cfg.Payment.ExecutionTimeout,
		GuardTTL:         cfg.Payment.GuardTTL,
	})

	return &Container{
		Ledger:         ledger,
		RateResolver:   resolver,
		Commissions:    NewCommissionService(resolver, calculator, ledger),
		Batches:        batches,
		Payments:       payments,
		Disputes:       NewDisputeService(db, ledger),
		Reconciliation: NewReconciliationService(db, ledger, storage, notifier),
		Notifications:  notifier,
		Storage:        storage,
	}, nil
}
