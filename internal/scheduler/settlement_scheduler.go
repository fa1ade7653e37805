// internal/scheduler/settlement_scheduler.go
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/vendor-settlement/internal/services"
)

type PayoutRunner interface {
	RunAutomatedPayouts(ctx context.Context, req *services.AutomatedPayoutRequest) (*services.AutomatedPayoutSummary, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, req *services.ReconciliationRequest) (*services.ReconciliationResponse, error)
}

type Config struct {
	AutomatedPayoutsEnabled  bool
	AutomatedPayoutsInterval time.Duration
	ReconciliationEnabled    bool
	ReconciliationInterval   time.Duration
	// ReconciliationPeriod is the period passed to each reconciliation run.
	ReconciliationPeriod string
	RunTimeout           time.Duration
}

// SettlementScheduler runs automated payouts and reconciliation on fixed
// intervals. A job never overlaps with itself: a tick that arrives while the
// previous run is still going is skipped.
type SettlementScheduler struct {
	payouts    PayoutRunner
	reconciler Reconciler
	config     Config

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	payoutBusy atomic.Bool
	reconBusy  atomic.Bool
}

func NewSettlementScheduler(payouts PayoutRunner, reconciler Reconciler, config Config) *SettlementScheduler {
	if config.RunTimeout <= 0 {
		config.RunTimeout = 10 * time.Minute
	}
	if config.ReconciliationPeriod == "" {
		config.ReconciliationPeriod = "last_month"
	}
	return &SettlementScheduler{
		payouts:    payouts,
		reconciler: reconciler,
		config:     config,
	}
}

func (s *SettlementScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.isRunning = true

	if s.config.AutomatedPayoutsEnabled && s.config.AutomatedPayoutsInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, "automated_payouts", s.config.AutomatedPayoutsInterval, s.RunPayouts)
	}
	if s.config.ReconciliationEnabled && s.config.ReconciliationInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, "reconciliation", s.config.ReconciliationInterval, s.RunReconciliation)
	}

	logrus.WithFields(logrus.Fields{
		"payouts_enabled":        s.config.AutomatedPayoutsEnabled,
		"payouts_interval":       s.config.AutomatedPayoutsInterval.String(),
		"reconciliation_enabled": s.config.ReconciliationEnabled,
		"reconciliation_period":  s.config.ReconciliationPeriod,
	}).Info("Settlement scheduler started")
}

// Stop cancels the loops and waits for in-flight runs until ctx expires.
func (s *SettlementScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("Settlement scheduler stopped")
		return nil
	case <-ctx.Done():
		logrus.Warn("Settlement scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *SettlementScheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) bool) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("job", name).Debug("Scheduler loop stopping")
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// RunPayouts executes one automated payout run. It returns false when a
// previous run is still in progress.
func (s *SettlementScheduler) RunPayouts(ctx context.Context) bool {
	if !s.payoutBusy.CompareAndSwap(false, true) {
		logrus.WithField("job", "automated_payouts").Warn("Previous run still in progress, skipping")
		return false
	}
	defer s.payoutBusy.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	started := time.Now()
	summary, err := s.payouts.RunAutomatedPayouts(runCtx, &services.AutomatedPayoutRequest{})
	if err != nil {
		logrus.WithError(err).WithField("job", "automated_payouts").Error("Scheduled run failed")
		return true
	}

	logrus.WithFields(logrus.Fields{
		"job":        "automated_payouts",
		"batch_id":   summary.BatchID,
		"processed":  summary.Processed,
		"failed":     summary.Failed,
		"total_paid": summary.TotalPaid.StringFixed(2),
		"duration":   time.Since(started).String(),
	}).Info("Scheduled run finished")
	return true
}

func (s *SettlementScheduler) RunReconciliation(ctx context.Context) bool {
	if !s.reconBusy.CompareAndSwap(false, true) {
		logrus.WithField("job", "reconciliation").Warn("Previous run still in progress, skipping")
		return false
	}
	defer s.reconBusy.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	started := time.Now()
	resp, err := s.reconciler.Reconcile(runCtx, &services.ReconciliationRequest{
		Period:             s.config.ReconciliationPeriod,
		ReconciliationType: services.ReconciliationSummary,
		SkipReconciled:     true,
	})
	if err != nil {
		logrus.WithError(err).WithField("job", "reconciliation").Error("Scheduled run failed")
		return true
	}
	if resp.AlreadyReconciled {
		return true
	}

	logrus.WithFields(logrus.Fields{
		"job":             "reconciliation",
		"vendors_checked": resp.VendorsChecked,
		"discrepancies":   resp.Discrepancies,
		"duration":        time.Since(started).String(),
	}).Info("Scheduled run finished")
	return true
}
