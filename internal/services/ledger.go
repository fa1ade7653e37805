// internal/services/ledger.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

// LedgerEntry is the input for a new ledger record.
type LedgerEntry struct {
	OrderID         string
	VendorID        string
	ProductCategory string
	TransactionDate time.Time
	Breakdown       *CommissionBreakdown
}

type CommissionFilter struct {
	utils.PaginationParams
	VendorID        string                   `json:"vendor_id,omitempty"`
	Status          *models.CommissionStatus `json:"status,omitempty"`
	OrderID         string                   `json:"order_id,omitempty"`
	ProductCategory string                   `json:"product_category,omitempty"`
}

// CommissionLedger is the durable, append-only store of commission records.
// Records are never deleted; every status change is a conditional update
// guarded by the expected prior status.
type CommissionLedger struct {
	db *gorm.DB
}

func NewCommissionLedger(db *gorm.DB) *CommissionLedger {
	return &CommissionLedger{db: db}
}

// WithTx returns a ledger bound to an open transaction.
func (l *CommissionLedger) WithTx(tx *gorm.DB) *CommissionLedger {
	return &CommissionLedger{db: tx}
}

func (l *CommissionLedger) Record(ctx context.Context, entry LedgerEntry) (*models.CommissionRecord, error) {
	b := entry.Breakdown
	if b == nil {
		return nil, newError(ErrKindValidation, "commission breakdown is required")
	}

	var existing int64
	if err := l.db.WithContext(ctx).Model(&models.CommissionRecord{}).
		Where("order_id = ? AND vendor_id = ?", entry.OrderID, entry.VendorID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing commission: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicateCommission(entry.OrderID, entry.VendorID)
	}

	txDate := entry.TransactionDate
	if txDate.IsZero() {
		txDate = time.Now()
	}

	record := &models.CommissionRecord{
		OrderID:          entry.OrderID,
		VendorID:         entry.VendorID,
		GrossAmount:      b.GrossAmount,
		CommissionRate:   b.CommissionRate,
		RateType:         b.RateType,
		PlatformFeeRate:  b.PlatformFeeRate,
		VATRate:          b.VATRate,
		CommissionAmount: b.CommissionAmount,
		PlatformFee:      b.PlatformFee,
		VATAmount:        b.VATAmount,
		NetCommission:    b.NetCommission,
		ProductCategory:  entry.ProductCategory,
		Status:           models.CommissionStatusCalculated,
		TransactionDate:  txDate.UTC(),
	}

	// The unique index on (order_id, vendor_id) settles concurrent inserts
	// that both passed the count above.
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateCommission(entry.OrderID, entry.VendorID)
		}
		return nil, fmt.Errorf("failed to record commission: %w", err)
	}

	return record, nil
}

func (l *CommissionLedger) Get(ctx context.Context, id uuid.UUID) (*models.CommissionRecord, error) {
	var record models.CommissionRecord
	if err := l.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("commission", id.String())
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &record, nil
}

// QueryPending returns the vendor's calculated records, oldest first with
// ties broken by id.
func (l *CommissionLedger) QueryPending(ctx context.Context, vendorID string) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	if err := l.db.WithContext(ctx).
		Where("vendor_id = ? AND status = ?", vendorID, models.CommissionStatusCalculated).
		Order("transaction_date ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending commissions: %w", err)
	}
	return records, nil
}

// QueryCalculated returns calculated records for the given vendors (all
// vendors when empty), ordered by vendor then FIFO.
func (l *CommissionLedger) QueryCalculated(ctx context.Context, vendorIDs []string) ([]models.CommissionRecord, error) {
	query := l.db.WithContext(ctx).Where("status = ?", models.CommissionStatusCalculated)
	if len(vendorIDs) > 0 {
		query = query.Where("vendor_id IN ?", vendorIDs)
	}

	var records []models.CommissionRecord
	if err := query.Order("vendor_id ASC, transaction_date ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch calculated commissions: %w", err)
	}
	return records, nil
}

func (l *CommissionLedger) QueryByPayout(ctx context.Context, payoutID uuid.UUID) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	if err := l.db.WithContext(ctx).
		Where("payout_id = ?", payoutID).
		Order("transaction_date ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch payout commissions: %w", err)
	}
	return records, nil
}

// ListInPeriod returns records whose transaction date falls in [start, end).
func (l *CommissionLedger) ListInPeriod(ctx context.Context, start, end time.Time, vendorIDs []string) ([]models.CommissionRecord, error) {
	query := l.db.WithContext(ctx).
		Where("transaction_date >= ? AND transaction_date < ?", start.UTC(), end.UTC())
	if len(vendorIDs) > 0 {
		query = query.Where("vendor_id IN ?", vendorIDs)
	}

	var records []models.CommissionRecord
	if err := query.Order("transaction_date ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch commissions for period: %w", err)
	}
	return records, nil
}

func (l *CommissionLedger) List(ctx context.Context, filter CommissionFilter) ([]models.CommissionRecord, int64, error) {
	query := l.db.WithContext(ctx).Model(&models.CommissionRecord{})

	if filter.VendorID != "" {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OrderID != "" {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.ProductCategory != "" {
		query = query.Where("product_category = ?", filter.ProductCategory)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count commissions: %w", err)
	}

	allowedSortFields := []string{"created_at", "transaction_date", "net_commission", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var records []models.CommissionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch commissions: %w", err)
	}

	return records, total, nil
}

// MarkPendingPayout claims calculated records for a payout. It succeeds only
// if every record is still calculated, so two concurrent claimers can never
// both take the same record.
func (l *CommissionLedger) MarkPendingPayout(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error {
	return l.transition(ctx, ids, models.CommissionStatusCalculated, models.CommissionStatusPendingPayout,
		map[string]interface{}{"payout_id": payoutID}, nil)
}

func (l *CommissionLedger) MarkPaid(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error {
	return l.transition(ctx, ids, models.CommissionStatusPendingPayout, models.CommissionStatusPaid,
		nil, &payoutID)
}

// Release returns claimed records of a payout to the calculated pool.
func (l *CommissionLedger) Release(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error {
	return l.transition(ctx, ids, models.CommissionStatusPendingPayout, models.CommissionStatusCalculated,
		map[string]interface{}{"payout_id": nil}, &payoutID)
}

// MarkDisputed moves a record into the disputed state from whatever status
// the caller observed.
func (l *CommissionLedger) MarkDisputed(ctx context.Context, id uuid.UUID, observed models.CommissionStatus) error {
	return l.transition(ctx, []uuid.UUID{id}, observed, models.CommissionStatusDisputed, nil, nil)
}

// ResolveDisputed applies an adjustment to a disputed record and moves it to
// the next status (calculated or voided).
func (l *CommissionLedger) ResolveDisputed(ctx context.Context, id uuid.UUID, adjustment decimal.Decimal, next models.CommissionStatus) error {
	record, err := l.Get(ctx, id)
	if err != nil {
		return err
	}

	adjusted := record.NetCommission.Add(adjustment)
	if adjusted.IsNegative() {
		return newError(ErrKindInvalidAmount, "adjustment %s would make net commission of %s negative", adjustment.StringFixed(2), id).
			WithDetail("net_commission", record.NetCommission.StringFixed(2))
	}

	extra := map[string]interface{}{
		"net_commission": adjusted,
	}
	if next == models.CommissionStatusCalculated {
		extra["payout_id"] = nil
	}
	return l.transition(ctx, []uuid.UUID{id}, models.CommissionStatusDisputed, next, extra, nil)
}

func (l *CommissionLedger) transition(ctx context.Context, ids []uuid.UUID, from, to models.CommissionStatus, extra map[string]interface{}, payoutID *uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if !from.CanTransitionTo(to) {
		return ErrStatusConflict("commission cannot move from %s to %s", from, to)
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.CommissionRecord{}).
			Where("id IN ? AND status = ?", ids, from)
		if payoutID != nil {
			query = query.Where("payout_id = ?", *payoutID)
		}

		result := query.Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update commission status: %w", result.Error)
		}
		if result.RowsAffected != int64(len(ids)) {
			return ErrStatusConflict("expected %d commissions in status %s, updated %d", len(ids), from, result.RowsAffected).
				WithDetail("expected_status", from).
				WithDetail("target_status", to)
		}
		return nil
	})
}

// SumNet adds up net commission exactly.
func SumNet(records []models.CommissionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.NetCommission)
	}
	return total
}

func recordIDs(records []models.CommissionRecord) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
