// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/metrics"
	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

// PaymentService executes payouts through the payment rails and keeps the
// payout and ledger state in step with the outcome.
type PaymentService struct {
	db       *gorm.DB
	ledger   *CommissionLedger
	batches  *PayoutBatchGenerator
	vendors  VendorDirectory
	rails    *RailRegistry
	guard    ExecutionGuard
	notifier *NotificationService
	options  PaymentOptions
}

type PaymentOptions struct {
	ExecutionTimeout time.Duration
	GuardTTL         time.Duration
}

type ProcessPayoutRequest struct {
	VendorID      string               `json:"vendor_id" validate:"required,max=64"`
	PayoutAmount  decimal.Decimal      `json:"payout_amount"`
	PayoutMethod  models.PaymentMethod `json:"payout_method,omitempty" validate:"omitempty,oneof=bank_transfer mobile_wallet stripe_connect"`
	PayoutDetails models.JSONB         `json:"payout_details,omitempty"`
}

type ProcessPayoutResponse struct {
	PayoutID         uuid.UUID           `json:"payout_id"`
	Status           models.PayoutStatus `json:"status"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	AmountPaid       decimal.Decimal     `json:"amount_paid"`
	CommissionsPaid  int                 `json:"commissions_paid"`
	ProcessedDate    *time.Time          `json:"processed_date,omitempty"`
}

type PayoutFilter struct {
	utils.PaginationParams
	VendorID string               `json:"vendor_id,omitempty"`
	Status   *models.PayoutStatus `json:"status,omitempty"`
	BatchID  *uuid.UUID           `json:"batch_id,omitempty"`
}

type AutomatedPayoutRequest struct {
	DryRun          bool                   `json:"dry_run"`
	MinimumAmount   *decimal.Decimal       `json:"minimum_amount,omitempty"`
	PayoutFrequency models.PayoutFrequency `json:"payout_frequency,omitempty" validate:"omitempty,oneof=on_demand daily weekly biweekly monthly"`
}

type PayoutOutcome struct {
	VendorID         string              `json:"vendor_id"`
	PayoutID         *uuid.UUID          `json:"payout_id,omitempty"`
	Amount           decimal.Decimal     `json:"amount"`
	Status           models.PayoutStatus `json:"status,omitempty"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	Error            string              `json:"error,omitempty"`
	ErrorCode        ErrorKind           `json:"error_code,omitempty"`
}

type AutomatedPayoutSummary struct {
	DryRun          bool                `json:"dry_run"`
	BatchID         string              `json:"batch_id,omitempty"`
	EligibleVendors int                 `json:"eligible_vendors"`
	Processed       int                 `json:"processed"`
	Failed          int                 `json:"failed"`
	TotalPaid       decimal.Decimal     `json:"total_paid"`
	TotalEligible   decimal.Decimal     `json:"total_eligible"`
	Results         []PayoutOutcome     `json:"results"`
	Skipped         []VendorBatchResult `json:"skipped,omitempty"`
}

func NewPaymentService(db *gorm.DB, ledger *CommissionLedger, batches *PayoutBatchGenerator, vendors VendorDirectory, rails *RailRegistry, guard ExecutionGuard, notifier *NotificationService, options PaymentOptions) *PaymentService {
	if options.ExecutionTimeout <= 0 {
		options.ExecutionTimeout = 30 * time.Second
	}
	if options.GuardTTL <= 0 {
		options.GuardTTL = options.ExecutionTimeout * 2
	}
	return &PaymentService{
		db:       db,
		ledger:   ledger,
		batches:  batches,
		vendors:  vendors,
		rails:    rails,
		guard:    guard,
		notifier: notifier,
		options:  options,
	}
}

// ProcessPayout pays a vendor up to the requested amount from their
// calculated balance, oldest commissions first.
func (s *PaymentService) ProcessPayout(ctx context.Context, req *ProcessPayoutRequest) (*ProcessPayoutResponse, error) {
	if !req.PayoutAmount.IsPositive() {
		return nil, newError(ErrKindInvalidAmount, "payout amount must be greater than zero")
	}

	vendor, err := s.vendors.GetVendor(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}
	if vendor.Status != models.VendorStatusActive {
		return nil, newError(ErrKindVendorIneligible, "vendor %s is %s", vendor.ID, vendor.Status).
			WithDetail("vendor_status", vendor.Status)
	}

	method := req.PayoutMethod
	if method == "" {
		method = vendor.PayoutMethod
	}
	details := req.PayoutDetails
	if len(details) == 0 {
		details = vendor.PaymentDetails
	}
	if !s.rails.Supports(method) {
		return nil, newError(ErrKindVendorIneligible, "payout method %q is not supported", method).
			WithDetail("payout_method", method)
	}

	pending, err := s.ledger.QueryPending(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}

	available := SumNet(pending)
	if req.PayoutAmount.GreaterThan(available) {
		return nil, ErrInsufficientBalance(req.VendorID, req.PayoutAmount.StringFixed(2), available.StringFixed(2))
	}

	selected := SelectFIFO(pending, req.PayoutAmount)
	if len(selected) == 0 {
		return nil, ErrInsufficientBalance(req.VendorID, req.PayoutAmount.StringFixed(2), available.StringFixed(2)).
			WithDetail("reason", "oldest commission exceeds requested amount")
	}

	payout, err := s.batches.ClaimRecords(ctx, ClaimRequest{
		VendorID:       req.VendorID,
		PaymentMethod:  method,
		PaymentDetails: details,
		Records:        selected,
	})
	if err != nil {
		return nil, err
	}

	executed, err := s.ExecutePayout(ctx, payout.ID)
	if err != nil {
		var se *SettlementError
		if errors.As(err, &se) {
			se.WithDetail("payout_id", payout.ID)
		}
		return nil, err
	}

	return &ProcessPayoutResponse{
		PayoutID:         executed.ID,
		Status:           executed.Status,
		PaymentReference: executed.PaymentReference,
		AmountPaid:       executed.PayoutAmount,
		CommissionsPaid:  executed.CommissionCount,
		ProcessedDate:    executed.ProcessedDate,
	}, nil
}

// ExecutePayout sends a pending payout through its rail. The payout id is
// the idempotency key passed to the rail, so executing the same payout again
// after an ambiguous failure cannot pay twice.
func (s *PaymentService) ExecutePayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRecord, error) {
	guardKey := "payout:" + payoutID.String()
	acquired, err := s.guard.Acquire(ctx, guardKey, s.options.GuardTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, newError(ErrKindPayoutInFlight, "payout %s is already being executed", payoutID)
	}
	defer func() {
		if err := s.guard.Release(context.Background(), guardKey); err != nil {
			logrus.WithError(err).WithField("payout_id", payoutID).Warn("Failed to release execution guard")
		}
	}()

	payout, err := s.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != models.PayoutStatusPending {
		return nil, ErrStatusConflict("payout %s is %s, expected pending", payoutID, payout.Status)
	}

	if err := s.db.WithContext(ctx).Model(payout).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error; err != nil {
		return nil, fmt.Errorf("failed to record payout attempt: %w", err)
	}
	payout.Attempts++

	logger := logrus.WithFields(logrus.Fields{
		"payout_id": payout.ID,
		"vendor_id": payout.VendorID,
		"method":    payout.PaymentMethod,
		"amount":    payout.PayoutAmount.StringFixed(2),
		"attempt":   payout.Attempts,
	})

	records, err := s.ledger.QueryByPayout(ctx, payout.ID)
	if err != nil {
		return nil, err
	}
	if reason := verifyClaim(payout, records); reason != "" {
		logger.WithField("reason", reason).Warn("Payout claim changed before execution")
		return s.failPayout(ctx, payout, reason)
	}

	execCtx, cancel := context.WithTimeout(ctx, s.options.ExecutionTimeout)
	defer cancel()

	started := time.Now()
	result, railErr := s.rails.Execute(execCtx, PaymentInstruction{
		PayoutID: payout.ID,
		VendorID: payout.VendorID,
		Method:   payout.PaymentMethod,
		Details:  payout.PaymentDetails,
		Amount:   payout.PayoutAmount,
		Currency: payout.Currency,
	})
	metrics.PayoutExecutionDuration.WithLabelValues(string(payout.PaymentMethod)).Observe(time.Since(started).Seconds())

	if railErr == nil && execCtx.Err() != nil {
		railErr = execCtx.Err()
	}
	if railErr != nil {
		reason := railErr.Error()
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			reason = fmt.Sprintf("payment execution timed out after %s", s.options.ExecutionTimeout)
		}
		logger.WithError(railErr).Error("Payment rail failed")
		return s.failPayout(ctx, payout, reason)
	}

	ids := recordIDs(records)
	processedAt := result.ProcessedAt.UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transitionPayout(tx, payout.ID, models.PayoutStatusPending, models.PayoutStatusCompleted, map[string]interface{}{
			"payment_reference": result.Reference,
			"processed_date":    processedAt,
			"failure_reason":    "",
		}); err != nil {
			return err
		}
		return s.ledger.WithTx(tx).MarkPaid(ctx, ids, payout.ID)
	})
	if err != nil {
		// Money has moved but the ledger did not follow. The payout stays
		// pending; re-executing it hits the rail with the same key.
		logger.WithError(err).WithField("reference", result.Reference).
			Error("Payment succeeded but settlement state could not be recorded")
		return nil, err
	}

	metrics.PayoutExecutionsTotal.WithLabelValues(string(payout.PaymentMethod), "completed").Inc()
	logger.WithField("reference", result.Reference).Info("Payout completed")

	payout.Status = models.PayoutStatusCompleted
	payout.PaymentReference = result.Reference
	payout.ProcessedDate = &processedAt
	payout.FailureReason = ""

	if s.notifier != nil {
		if vendor, err := s.vendors.GetVendor(ctx, payout.VendorID); err == nil {
			if err := s.notifier.SendPayoutCompletedNotification(vendor, payout); err != nil {
				logger.WithError(err).Warn("Failed to notify vendor of payout")
			}
		}
	}

	return payout, nil
}

// failPayout marks the payout failed and leaves its records claimed.
func (s *PaymentService) failPayout(ctx context.Context, payout *models.PayoutRecord, reason string) (*models.PayoutRecord, error) {
	if err := transitionPayout(s.db.WithContext(ctx), payout.ID, models.PayoutStatusPending, models.PayoutStatusFailed, map[string]interface{}{
		"failure_reason": reason,
	}); err != nil {
		return nil, err
	}

	payout.Status = models.PayoutStatusFailed
	payout.FailureReason = reason
	metrics.PayoutExecutionsTotal.WithLabelValues(string(payout.PaymentMethod), "failed").Inc()

	if s.notifier != nil {
		if err := s.notifier.SendPayoutFailedAlert(payout); err != nil {
			logrus.WithError(err).WithField("payout_id", payout.ID).Warn("Failed to send payout failure alert")
		}
	}

	return payout, ErrPaymentFailure(reason).WithDetail("payout_id", payout.ID)
}

// RetryPayout re-executes a failed payout with the same idempotency key.
func (s *PaymentService) RetryPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRecord, error) {
	payout, err := s.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.ReleasedAt != nil {
		return nil, ErrStatusConflict("payout %s was released and cannot be retried", payoutID)
	}

	if err := transitionPayout(s.db.WithContext(ctx), payoutID, models.PayoutStatusFailed, models.PayoutStatusPending, map[string]interface{}{
		"failure_reason": "",
	}); err != nil {
		return nil, err
	}

	logrus.WithField("payout_id", payoutID).Info("Retrying payout")
	return s.ExecutePayout(ctx, payoutID)
}

// ReleasePayout returns a failed payout's still-claimed records to the
// calculated pool. The payout itself stays failed.
func (s *PaymentService) ReleasePayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRecord, error) {
	payout, err := s.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != models.PayoutStatusFailed {
		return nil, ErrStatusConflict("only failed payouts can be released, payout %s is %s", payoutID, payout.Status)
	}
	if payout.ReleasedAt != nil {
		return nil, ErrStatusConflict("payout %s was already released", payoutID)
	}

	records, err := s.ledger.QueryByPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	claimed := make([]models.CommissionRecord, 0, len(records))
	for _, r := range records {
		if r.Status == models.CommissionStatusPendingPayout {
			claimed = append(claimed, r)
		}
	}

	releasedAt := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PayoutRecord{}).
			Where("id = ? AND status = ? AND released_at IS NULL", payoutID, models.PayoutStatusFailed).
			Updates(map[string]interface{}{"released_at": releasedAt, "updated_at": releasedAt})
		if result.Error != nil {
			return fmt.Errorf("failed to release payout: %w", result.Error)
		}
		if result.RowsAffected != 1 {
			return ErrStatusConflict("payout %s changed while releasing", payoutID)
		}
		return s.ledger.WithTx(tx).Release(ctx, recordIDs(claimed), payoutID)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payout_id":        payoutID,
		"records_released": len(claimed),
	}).Info("Failed payout released")

	payout.ReleasedAt = &releasedAt
	return payout, nil
}

// RunAutomatedPayouts generates a batch and executes every payout in it.
// Failures are reported per vendor and never stop the run.
func (s *PaymentService) RunAutomatedPayouts(ctx context.Context, req *AutomatedPayoutRequest) (*AutomatedPayoutSummary, error) {
	batch, err := s.batches.Generate(ctx, GenerateBatchRequest{
		MinimumPayoutAmount: req.MinimumAmount,
		PayoutFrequency:     req.PayoutFrequency,
		DryRun:              req.DryRun,
	})
	if err != nil {
		return nil, err
	}

	summary := &AutomatedPayoutSummary{
		DryRun:          req.DryRun,
		BatchID:         batch.BatchID,
		EligibleVendors: batch.EligibleVendors,
		TotalPaid:       decimal.Zero,
		TotalEligible:   decimal.Zero,
		Results:         make([]PayoutOutcome, 0, batch.EligibleVendors),
	}

	for _, v := range batch.Vendors {
		switch v.Outcome {
		case VendorOutcomeSkipped:
			summary.Skipped = append(summary.Skipped, v)
			continue
		case VendorOutcomeEligible:
			summary.TotalEligible = summary.TotalEligible.Add(v.PayoutAmount)
			summary.Results = append(summary.Results, PayoutOutcome{VendorID: v.VendorID, Amount: v.PayoutAmount})
			continue
		case VendorOutcomeFailed:
			summary.Failed++
			summary.Results = append(summary.Results, PayoutOutcome{
				VendorID:  v.VendorID,
				Amount:    v.PayoutAmount,
				Error:     v.Reason,
				ErrorCode: v.ErrorCode,
			})
			continue
		}

		summary.TotalEligible = summary.TotalEligible.Add(v.PayoutAmount)
		outcome := PayoutOutcome{VendorID: v.VendorID, PayoutID: v.PayoutID, Amount: v.PayoutAmount}

		payout, err := s.ExecutePayout(ctx, *v.PayoutID)
		if payout != nil {
			outcome.Status = payout.Status
			outcome.PaymentReference = payout.PaymentReference
		}
		if err != nil {
			outcome.Error = err.Error()
			outcome.ErrorCode = KindOf(err)
			summary.Failed++
		} else {
			summary.Processed++
			summary.TotalPaid = summary.TotalPaid.Add(payout.PayoutAmount)
		}
		summary.Results = append(summary.Results, outcome)
	}

	logrus.WithFields(logrus.Fields{
		"dry_run":    req.DryRun,
		"batch_id":   summary.BatchID,
		"processed":  summary.Processed,
		"failed":     summary.Failed,
		"total_paid": summary.TotalPaid.StringFixed(2),
	}).Info("Automated payout run finished")

	return summary, nil
}

func (s *PaymentService) GetPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRecord, error) {
	var payout models.PayoutRecord
	if err := s.db.WithContext(ctx).First(&payout, "id = ?", payoutID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("payout", payoutID.String())
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &payout, nil
}

func (s *PaymentService) ListPayouts(ctx context.Context, filter PayoutFilter) ([]models.PayoutRecord, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.PayoutRecord{})

	if filter.VendorID != "" {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}

	allowedSortFields := []string{"created_at", "scheduled_date", "payout_amount", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var payouts []models.PayoutRecord
	if err := query.Find(&payouts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payouts: %w", err)
	}

	return payouts, total, nil
}

func transitionPayout(db *gorm.DB, payoutID uuid.UUID, from, to models.PayoutStatus, extra map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return ErrStatusConflict("payout cannot move from %s to %s", from, to)
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := db.Model(&models.PayoutRecord{}).
		Where("id = ? AND status = ?", payoutID, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update payout status: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		return ErrStatusConflict("payout %s is not %s", payoutID, from).
			WithDetail("expected_status", from)
	}
	return nil
}

// verifyClaim checks that every record linked to the payout is still
// claimed and that their sum matches the payout amount.
func verifyClaim(payout *models.PayoutRecord, records []models.CommissionRecord) string {
	if len(records) != payout.CommissionCount {
		return fmt.Sprintf("expected %d linked commissions, found %d", payout.CommissionCount, len(records))
	}
	for _, r := range records {
		if r.Status != models.CommissionStatusPendingPayout {
			return fmt.Sprintf("commission %s is %s, expected pending_payout", r.ID, r.Status)
		}
	}
	if sum := SumNet(records); !sum.Equal(payout.PayoutAmount) {
		return fmt.Sprintf("linked commissions total %s, payout amount is %s", sum.StringFixed(2), payout.PayoutAmount.StringFixed(2))
	}
	return ""
}
