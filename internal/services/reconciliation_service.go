// internal/services/reconciliation_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/metrics"
	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

const (
	ReconciliationSummary  = "summary"
	ReconciliationDetailed = "detailed"
)

type ReconciliationRequest struct {
	Period             string   `json:"period"`
	VendorIDs          []string `json:"vendor_ids,omitempty" validate:"omitempty,dive,required,max=64"`
	ReconciliationType string   `json:"reconciliation_type,omitempty" validate:"omitempty,oneof=summary detailed"`
	// SkipReconciled returns without persisting or alerting when results for
	// the exact period window already exist.
	SkipReconciled bool `json:"skip_reconciled,omitempty"`
}

type ReconciliationLine struct {
	CommissionID    string                  `json:"commission_id"`
	OrderID         string                  `json:"order_id"`
	Status          models.CommissionStatus `json:"status"`
	NetCommission   decimal.Decimal         `json:"net_commission"`
	TransactionDate time.Time               `json:"transaction_date"`
	PayoutID        string                  `json:"payout_id,omitempty"`
}

type VendorReconciliation struct {
	models.ReconciliationRecord
	Lines []ReconciliationLine `json:"lines,omitempty"`
}

type ReconciliationResponse struct {
	Period             utils.Period           `json:"period"`
	ReconciliationType string                 `json:"reconciliation_type"`
	VendorsChecked     int                    `json:"vendors_checked"`
	Discrepancies      int                    `json:"discrepancies"`
	TotalVariance      decimal.Decimal        `json:"total_variance"`
	ArchiveLocation    string                 `json:"archive_location,omitempty"`
	AlreadyReconciled  bool                   `json:"already_reconciled,omitempty"`
	Results            []VendorReconciliation `json:"results"`
}

// ReconciliationService checks per vendor that every calculated commission
// in a period is accounted for as either paid or pending. Findings are
// recorded, never corrected.
type ReconciliationService struct {
	db       *gorm.DB
	ledger   *CommissionLedger
	storage  ObjectStore
	notifier *NotificationService
	now      func() time.Time
}

func NewReconciliationService(db *gorm.DB, ledger *CommissionLedger, storage ObjectStore, notifier *NotificationService) *ReconciliationService {
	return &ReconciliationService{
		db:       db,
		ledger:   ledger,
		storage:  storage,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *ReconciliationService) Reconcile(ctx context.Context, req *ReconciliationRequest) (*ReconciliationResponse, error) {
	reconType := req.ReconciliationType
	if reconType == "" {
		reconType = ReconciliationSummary
	}
	if reconType != ReconciliationSummary && reconType != ReconciliationDetailed {
		return nil, newError(ErrKindValidation, "unknown reconciliation type %q", reconType)
	}

	period, err := utils.ParsePeriod(req.Period, s.now())
	if err != nil {
		return nil, newError(ErrKindValidation, "%s", err.Error())
	}

	if req.SkipReconciled {
		done, err := s.periodReconciled(ctx, period, req.VendorIDs)
		if err != nil {
			return nil, err
		}
		if done {
			logrus.WithField("period", period.Label).Info("Period already reconciled, skipping")
			return &ReconciliationResponse{
				Period:             period,
				ReconciliationType: reconType,
				TotalVariance:      decimal.Zero,
				AlreadyReconciled:  true,
				Results:            []VendorReconciliation{},
			}, nil
		}
	}

	records, err := s.ledger.ListInPeriod(ctx, period.Start, period.End, req.VendorIDs)
	if err != nil {
		return nil, err
	}

	grouped, vendorIDs := groupByVendor(records)
	resp := &ReconciliationResponse{
		Period:             period,
		ReconciliationType: reconType,
		TotalVariance:      decimal.Zero,
		Results:            make([]VendorReconciliation, 0, len(vendorIDs)),
	}

	var findings []models.ReconciliationRecord
	for _, vendorID := range vendorIDs {
		result := ReconcileVendor(vendorID, grouped[vendorID])
		result.PeriodStart = period.Start
		result.PeriodEnd = period.End
		result.ReconciliationType = reconType

		entry := VendorReconciliation{ReconciliationRecord: result}
		if reconType == ReconciliationDetailed {
			entry.Lines = reconciliationLines(grouped[vendorID])
		}
		resp.Results = append(resp.Results, entry)
	}

	if len(resp.Results) > 0 {
		rows := make([]models.ReconciliationRecord, len(resp.Results))
		for i := range resp.Results {
			rows[i] = resp.Results[i].ReconciliationRecord
		}
		if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to persist reconciliation results: %w", err)
		}
		for i := range rows {
			resp.Results[i].ReconciliationRecord = rows[i]
			if rows[i].Status == models.ReconciliationStatusDiscrepancy {
				findings = append(findings, rows[i])
			}
		}
	}

	resp.VendorsChecked = len(resp.Results)
	resp.Discrepancies = len(findings)
	for _, r := range resp.Results {
		resp.TotalVariance = resp.TotalVariance.Add(r.Variance)
	}

	if len(findings) > 0 {
		s.reportDiscrepancies(ctx, resp, findings)
	}

	logrus.WithFields(logrus.Fields{
		"period":          period.Label,
		"vendors_checked": resp.VendorsChecked,
		"discrepancies":   resp.Discrepancies,
	}).Info("Commission reconciliation finished")

	return resp, nil
}

func (s *ReconciliationService) periodReconciled(ctx context.Context, period utils.Period, vendorIDs []string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.ReconciliationRecord{}).
		Where("period_start = ? AND period_end = ?", period.Start, period.End)
	if len(vendorIDs) > 0 {
		query = query.Where("vendor_id IN ?", vendorIDs)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check reconciliation history: %w", err)
	}
	return count > 0, nil
}

// ReconcileVendor computes one vendor's totals. Voided records are excluded
// from the calculated total; disputed records are reported separately.
func ReconcileVendor(vendorID string, records []models.CommissionRecord) models.ReconciliationRecord {
	calculated, paid, pending, disputed := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	count := 0

	for _, r := range records {
		if r.Status == models.CommissionStatusVoided {
			continue
		}
		count++
		calculated = calculated.Add(r.NetCommission)

		switch r.Status {
		case models.CommissionStatusPaid:
			paid = paid.Add(r.NetCommission)
		case models.CommissionStatusCalculated, models.CommissionStatusPendingPayout:
			pending = pending.Add(r.NetCommission)
		case models.CommissionStatusDisputed:
			disputed = disputed.Add(r.NetCommission)
		}
	}

	variance := calculated.Sub(paid).Sub(pending)
	status := models.ReconciliationStatusBalanced
	if variance.Abs().GreaterThanOrEqual(Epsilon) {
		status = models.ReconciliationStatusDiscrepancy
	}

	return models.ReconciliationRecord{
		VendorID:             vendorID,
		CalculatedCommission: calculated,
		PaidCommission:       paid,
		PendingCommission:    pending,
		DisputedCommission:   disputed,
		Variance:             variance,
		RecordCount:          count,
		Status:               status,
	}
}

type ReconciliationFilter struct {
	utils.PaginationParams
	VendorID string                       `json:"vendor_id,omitempty"`
	Status   *models.ReconciliationStatus `json:"status,omitempty"`
}

func (s *ReconciliationService) History(ctx context.Context, filter ReconciliationFilter) ([]models.ReconciliationRecord, int64, error) {
	params := filter.PaginationParams
	query := s.db.WithContext(ctx).Model(&models.ReconciliationRecord{})
	if filter.VendorID != "" {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reconciliations: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "period_start", "variance", "status"})
	query = utils.ApplyPagination(query, params)

	rows := make([]models.ReconciliationRecord, 0, params.Limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch reconciliations: %w", err)
	}
	return rows, total, nil
}

func (s *ReconciliationService) reportDiscrepancies(ctx context.Context, resp *ReconciliationResponse, findings []models.ReconciliationRecord) {
	for _, f := range findings {
		metrics.ReconciliationDiscrepanciesTotal.Inc()
		logrus.WithFields(logrus.Fields{
			"vendor_id":  f.VendorID,
			"calculated": f.CalculatedCommission.StringFixed(2),
			"paid":       f.PaidCommission.StringFixed(2),
			"pending":    f.PendingCommission.StringFixed(2),
			"disputed":   f.DisputedCommission.StringFixed(2),
			"variance":   f.Variance.StringFixed(2),
		}).Warn("Reconciliation discrepancy")
	}

	if s.storage != nil {
		body, err := json.MarshalIndent(resp, "", "  ")
		if err == nil {
			key := fmt.Sprintf("reconciliations/%s/%s.json",
				resp.Period.Start.Format("2006-01-02"), s.now().UTC().Format("20060102T150405Z"))
			obj, err := s.storage.PutObject(ctx, key, body, "application/json")
			if err != nil {
				logrus.WithError(err).Warn("Failed to archive reconciliation report")
			} else {
				resp.ArchiveLocation = obj.Location
			}
		}
	}

	if s.notifier != nil {
		if err := s.notifier.SendDiscrepancyAlert(findings); err != nil {
			logrus.WithError(err).Warn("Failed to send discrepancy alert")
		}
	}
}

func reconciliationLines(records []models.CommissionRecord) []ReconciliationLine {
	lines := make([]ReconciliationLine, 0, len(records))
	for _, r := range records {
		line := ReconciliationLine{
			CommissionID:    r.ID.String(),
			OrderID:         r.OrderID,
			Status:          r.Status,
			NetCommission:   r.NetCommission,
			TransactionDate: r.TransactionDate,
		}
		if r.PayoutID != nil {
			line.PayoutID = r.PayoutID.String()
		}
		lines = append(lines, line)
	}
	return lines
}
