// internal/services/payout_batch.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/metrics"
	"github.com/javajoker/vendor-settlement/internal/models"
)

type GenerateBatchRequest struct {
	VendorIDs           []string               `json:"vendor_ids,omitempty" validate:"omitempty,dive,required,max=64"`
	MinimumPayoutAmount *decimal.Decimal       `json:"minimum_payout_amount,omitempty"`
	PayoutFrequency     models.PayoutFrequency `json:"payout_frequency,omitempty" validate:"omitempty,oneof=on_demand daily weekly biweekly monthly"`
	DryRun              bool                   `json:"dry_run,omitempty"`
}

// Per-vendor outcomes of a batch run.
const (
	VendorOutcomeCreated  = "created"
	VendorOutcomeEligible = "eligible"
	VendorOutcomeSkipped  = "skipped"
	VendorOutcomeFailed   = "failed"
)

type VendorBatchResult struct {
	VendorID        string          `json:"vendor_id"`
	Outcome         string          `json:"outcome"`
	Reason          string          `json:"reason,omitempty"`
	ErrorCode       ErrorKind       `json:"error_code,omitempty"`
	Balance         decimal.Decimal `json:"balance"`
	PayoutID        *uuid.UUID      `json:"payout_id,omitempty"`
	PayoutAmount    decimal.Decimal `json:"payout_amount"`
	CommissionCount int             `json:"commission_count"`
}

type GenerateBatchResponse struct {
	BatchID         string              `json:"batch_id,omitempty"`
	Status          models.BatchStatus  `json:"status"`
	DryRun          bool                `json:"dry_run"`
	PayoutsCreated  int                 `json:"payouts_created"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	EligibleVendors int                 `json:"eligible_vendors"`
	FailedVendors   int                 `json:"failed_vendors"`
	Vendors         []VendorBatchResult `json:"vendors"`
}

// ClaimRequest describes a payout to create over already-selected records.
type ClaimRequest struct {
	VendorID       string
	BatchID        *uuid.UUID
	PaymentMethod  models.PaymentMethod
	PaymentDetails models.JSONB
	Records        []models.CommissionRecord
}

// PayoutBatchGenerator groups calculated balances into payouts.
type PayoutBatchGenerator struct {
	db               *gorm.DB
	ledger           *CommissionLedger
	vendors          VendorDirectory
	currency         string
	defaultMinimum   decimal.Decimal
	defaultFrequency models.PayoutFrequency
	now              func() time.Time
}

func NewPayoutBatchGenerator(db *gorm.DB, ledger *CommissionLedger, vendors VendorDirectory, currency string, minimum decimal.Decimal, frequency models.PayoutFrequency) *PayoutBatchGenerator {
	return &PayoutBatchGenerator{
		db:               db,
		ledger:           ledger,
		vendors:          vendors,
		currency:         currency,
		defaultMinimum:   minimum,
		defaultFrequency: frequency,
		now:              time.Now,
	}
}

func (g *PayoutBatchGenerator) Generate(ctx context.Context, req GenerateBatchRequest) (*GenerateBatchResponse, error) {
	minimum := g.defaultMinimum
	if req.MinimumPayoutAmount != nil {
		minimum = *req.MinimumPayoutAmount
	}
	if minimum.IsNegative() {
		return nil, newError(ErrKindInvalidAmount, "minimum payout amount cannot be negative")
	}
	frequency := req.PayoutFrequency
	if frequency == "" {
		frequency = g.defaultFrequency
	}
	if _, ok := frequency.Window(); !ok {
		return nil, newError(ErrKindValidation, "unknown payout frequency %q", frequency)
	}

	records, err := g.ledger.QueryCalculated(ctx, req.VendorIDs)
	if err != nil {
		return nil, err
	}

	grouped, vendorIDs := groupByVendor(records)

	directory, err := g.vendors.GetVendors(ctx, vendorIDs)
	if err != nil {
		return nil, err
	}

	lastPayouts, err := g.lastPayoutDates(ctx, vendorIDs)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	resp := &GenerateBatchResponse{
		DryRun:      req.DryRun,
		TotalAmount: decimal.Zero,
		Vendors:     make([]VendorBatchResult, 0, len(vendorIDs)),
	}

	var batch *models.PayoutBatch
	if !req.DryRun {
		batch = &models.PayoutBatch{
			BatchID:       newBatchID(now),
			Frequency:     frequency,
			MinimumAmount: minimum,
			TotalAmount:   decimal.Zero,
			Status:        models.BatchStatusProcessing,
		}
		if err := g.db.WithContext(ctx).Create(batch).Error; err != nil {
			return nil, fmt.Errorf("failed to create payout batch: %w", err)
		}
		resp.BatchID = batch.BatchID
	}

	for _, vendorID := range vendorIDs {
		vendorRecords := grouped[vendorID]
		result := VendorBatchResult{
			VendorID:     vendorID,
			Balance:      SumNet(vendorRecords),
			PayoutAmount: decimal.Zero,
		}

		vendor := directory[vendorID]
		if reason := eligibility(vendor, result.Balance, minimum, frequency, lastPayouts[vendorID], now); reason != "" {
			result.Outcome = VendorOutcomeSkipped
			result.Reason = reason
			resp.Vendors = append(resp.Vendors, result)
			continue
		}

		resp.EligibleVendors++
		selected := SelectFIFO(vendorRecords, result.Balance)
		result.PayoutAmount = SumNet(selected)
		result.CommissionCount = len(selected)

		if req.DryRun {
			result.Outcome = VendorOutcomeEligible
			resp.TotalAmount = resp.TotalAmount.Add(result.PayoutAmount)
			resp.Vendors = append(resp.Vendors, result)
			continue
		}

		payout, err := g.ClaimRecords(ctx, ClaimRequest{
			VendorID:       vendorID,
			BatchID:        &batch.ID,
			PaymentMethod:  vendor.PayoutMethod,
			PaymentDetails: vendor.PaymentDetails,
			Records:        selected,
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"batch_id":  batch.BatchID,
				"vendor_id": vendorID,
				"error":     err,
			}).Warn("Failed to create payout for vendor")

			result.Outcome = VendorOutcomeFailed
			result.Reason = err.Error()
			result.ErrorCode = KindOf(err)
			resp.FailedVendors++
			resp.Vendors = append(resp.Vendors, result)
			continue
		}

		result.Outcome = VendorOutcomeCreated
		result.PayoutID = &payout.ID
		resp.PayoutsCreated++
		resp.TotalAmount = resp.TotalAmount.Add(payout.PayoutAmount)
		resp.Vendors = append(resp.Vendors, result)
	}

	resp.Status = batchStatus(resp.PayoutsCreated, resp.FailedVendors)
	if req.DryRun {
		return resp, nil
	}

	if err := g.db.WithContext(ctx).Model(batch).Updates(map[string]interface{}{
		"total_payouts":  resp.PayoutsCreated,
		"total_amount":   resp.TotalAmount,
		"failed_vendors": resp.FailedVendors,
		"status":         resp.Status,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to finalize payout batch: %w", err)
	}

	metrics.PayoutBatchesTotal.WithLabelValues(string(resp.Status)).Inc()

	logrus.WithFields(logrus.Fields{
		"batch_id":         batch.BatchID,
		"status":           resp.Status,
		"payouts_created":  resp.PayoutsCreated,
		"eligible_vendors": resp.EligibleVendors,
		"failed_vendors":   resp.FailedVendors,
		"total_amount":     resp.TotalAmount.StringFixed(2),
	}).Info("Payout batch generated")

	return resp, nil
}

// ClaimRecords creates a pending payout and moves its records to
// pending_payout in one transaction. If any record was claimed by someone
// else in the meantime, nothing is written.
func (g *PayoutBatchGenerator) ClaimRecords(ctx context.Context, req ClaimRequest) (*models.PayoutRecord, error) {
	if len(req.Records) == 0 {
		return nil, newError(ErrKindInvalidAmount, "no commission records selected for vendor %s", req.VendorID)
	}
	amount := SumNet(req.Records)
	if !amount.IsPositive() {
		return nil, newError(ErrKindInvalidAmount, "payout amount for vendor %s must be positive, got %s", req.VendorID, amount.StringFixed(2))
	}
	if !req.PaymentMethod.IsValid() {
		return nil, newError(ErrKindVendorIneligible, "vendor %s has no valid payout method", req.VendorID).
			WithDetail("payout_method", req.PaymentMethod)
	}

	payout := &models.PayoutRecord{
		VendorID:        req.VendorID,
		BatchID:         req.BatchID,
		PayoutAmount:    amount,
		Currency:        strings.ToUpper(g.currency),
		PaymentMethod:   req.PaymentMethod,
		PaymentDetails:  req.PaymentDetails,
		Status:          models.PayoutStatusPending,
		CommissionCount: len(req.Records),
		ScheduledDate:   g.now().UTC(),
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payout).Error; err != nil {
			return fmt.Errorf("failed to create payout: %w", err)
		}
		return g.ledger.WithTx(tx).MarkPendingPayout(ctx, recordIDs(req.Records), payout.ID)
	})
	if err != nil {
		return nil, err
	}

	return payout, nil
}

// lastPayoutDates returns the newest scheduled date of a non-failed payout
// per vendor.
func (g *PayoutBatchGenerator) lastPayoutDates(ctx context.Context, vendorIDs []string) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(vendorIDs))
	if len(vendorIDs) == 0 {
		return result, nil
	}

	var payouts []models.PayoutRecord
	if err := g.db.WithContext(ctx).
		Select("vendor_id", "scheduled_date").
		Where("vendor_id IN ? AND status <> ?", vendorIDs, models.PayoutStatusFailed).
		Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch payout history: %w", err)
	}

	for _, p := range payouts {
		if last, ok := result[p.VendorID]; !ok || p.ScheduledDate.After(last) {
			result[p.VendorID] = p.ScheduledDate
		}
	}
	return result, nil
}

func eligibility(vendor *models.Vendor, balance, minimum decimal.Decimal, frequency models.PayoutFrequency, lastPayout, now time.Time) string {
	if balance.LessThan(minimum) {
		return "below_minimum"
	}
	if vendor == nil {
		return "vendor_not_found"
	}
	if vendor.Status != models.VendorStatusActive {
		return "vendor_" + string(vendor.Status)
	}
	if !isDue(frequency, lastPayout, now) {
		return "not_due"
	}
	return ""
}

func isDue(frequency models.PayoutFrequency, lastPayout, now time.Time) bool {
	window, _ := frequency.Window()
	if lastPayout.IsZero() || window == 0 {
		return true
	}
	return !now.Before(lastPayout.Add(window))
}

// SelectFIFO takes records in order while the running sum stays within
// target, stopping at the first record that would overshoot. A target that
// covers the whole balance takes every record.
func SelectFIFO(records []models.CommissionRecord, target decimal.Decimal) []models.CommissionRecord {
	if len(records) > 0 && !SumNet(records).GreaterThan(target) {
		return records
	}

	selected := make([]models.CommissionRecord, 0, len(records))
	sum := decimal.Zero
	for _, r := range records {
		next := sum.Add(r.NetCommission)
		if next.GreaterThan(target) {
			break
		}
		sum = next
		selected = append(selected, r)
	}
	return selected
}

func groupByVendor(records []models.CommissionRecord) (map[string][]models.CommissionRecord, []string) {
	grouped := make(map[string][]models.CommissionRecord)
	for _, r := range records {
		grouped[r.VendorID] = append(grouped[r.VendorID], r)
	}

	vendorIDs := make([]string, 0, len(grouped))
	for id, list := range grouped {
		sortFIFO(list)
		vendorIDs = append(vendorIDs, id)
	}
	sort.Strings(vendorIDs)
	return grouped, vendorIDs
}

func sortFIFO(records []models.CommissionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].TransactionDate.Equal(records[j].TransactionDate) {
			return records[i].TransactionDate.Before(records[j].TransactionDate)
		}
		return records[i].ID.String() < records[j].ID.String()
	})
}

func batchStatus(created, failed int) models.BatchStatus {
	switch {
	case created == 0 && failed == 0:
		return models.BatchStatusEmpty
	case failed == 0:
		return models.BatchStatusCompleted
	case created == 0:
		return models.BatchStatusFailed
	default:
		return models.BatchStatusPartial
	}
}

func newBatchID(now time.Time) string {
	return fmt.Sprintf("BATCH-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}
