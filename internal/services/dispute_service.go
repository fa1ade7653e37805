// internal/services/dispute_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/metrics"
	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

type CreateDisputeRequest struct {
	CommissionID   uuid.UUID       `json:"commission_id" validate:"required"`
	Reason         string          `json:"reason" validate:"required,min=3,max=2000"`
	DisputedAmount decimal.Decimal `json:"disputed_amount"`
}

type ResolveDisputeRequest struct {
	DisputeID        uuid.UUID                `json:"dispute_id" validate:"required"`
	Resolution       models.DisputeResolution `json:"resolution" validate:"required,oneof=adjust void"`
	AdjustmentAmount decimal.Decimal          `json:"adjustment_amount"`
	ResolutionNotes  string                   `json:"resolution_notes,omitempty" validate:"omitempty,max=2000"`
}

type DisputeFilter struct {
	utils.PaginationParams
	CommissionID *uuid.UUID            `json:"commission_id,omitempty"`
	VendorID     string                `json:"vendor_id,omitempty"`
	Status       *models.DisputeStatus `json:"status,omitempty"`
}

// DisputeService moves ledger records out of and back into the normal
// settlement flow.
type DisputeService struct {
	db     *gorm.DB
	ledger *CommissionLedger
}

func NewDisputeService(db *gorm.DB, ledger *CommissionLedger) *DisputeService {
	return &DisputeService{db: db, ledger: ledger}
}

func (s *DisputeService) Create(ctx context.Context, req *CreateDisputeRequest) (*models.Dispute, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, newError(ErrKindValidation, "dispute reason is required")
	}
	if req.DisputedAmount.IsNegative() {
		return nil, newError(ErrKindInvalidAmount, "disputed amount cannot be negative")
	}
	if !isCents(req.DisputedAmount) {
		return nil, newError(ErrKindInvalidAmount, "disputed amount must have at most 2 decimal places")
	}

	record, err := s.ledger.Get(ctx, req.CommissionID)
	if err != nil {
		return nil, err
	}
	if !record.Status.CanTransitionTo(models.CommissionStatusDisputed) {
		return nil, newError(ErrKindDisputeConflict, "commission %s is %s and cannot be disputed", record.ID, record.Status).
			WithDetail("status", record.Status)
	}

	dispute := &models.Dispute{
		CommissionID:     record.ID,
		Reason:           strings.TrimSpace(req.Reason),
		DisputedAmount:   req.DisputedAmount,
		Status:           models.DisputeStatusOpen,
		PreviousStatus:   record.Status,
		AdjustmentAmount: decimal.Zero,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).MarkDisputed(ctx, record.ID, record.Status); err != nil {
			return err
		}
		if err := tx.Create(dispute).Error; err != nil {
			return fmt.Errorf("failed to create dispute: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DisputesTotal.WithLabelValues("opened").Inc()
	logrus.WithFields(logrus.Fields{
		"dispute_id":      dispute.ID,
		"commission_id":   record.ID,
		"vendor_id":       record.VendorID,
		"previous_status": record.Status,
	}).Info("Commission disputed")

	return dispute, nil
}

// Resolve closes an open dispute. adjust applies the adjustment to the
// record's net commission and makes it payable again; void retires it.
func (s *DisputeService) Resolve(ctx context.Context, req *ResolveDisputeRequest) (*models.Dispute, error) {
	dispute, err := s.Get(ctx, req.DisputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, newError(ErrKindDisputeConflict, "dispute %s is already %s", dispute.ID, dispute.Status)
	}

	var next models.CommissionStatus
	adjustment := req.AdjustmentAmount
	switch req.Resolution {
	case models.DisputeResolutionAdjust:
		next = models.CommissionStatusCalculated
	case models.DisputeResolutionVoid:
		next = models.CommissionStatusVoided
	default:
		return nil, newError(ErrKindValidation, "unknown resolution %q", req.Resolution)
	}
	if !isCents(adjustment) {
		return nil, newError(ErrKindInvalidAmount, "adjustment amount must have at most 2 decimal places")
	}
	if next == models.CommissionStatusCalculated && dispute.Commission != nil &&
		dispute.Commission.NetCommission.Add(adjustment).IsNegative() {
		return nil, newError(ErrKindInvalidAmount, "adjustment %s exceeds net commission %s",
			adjustment.StringFixed(2), dispute.Commission.NetCommission.StringFixed(2))
	}

	resolvedAt := time.Now().UTC()
	resolution := req.Resolution

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Dispute{}).
			Where("id = ? AND status = ?", dispute.ID, models.DisputeStatusOpen).
			Updates(map[string]interface{}{
				"status":            models.DisputeStatusResolved,
				"resolution":        resolution,
				"adjustment_amount": adjustment,
				"resolution_notes":  req.ResolutionNotes,
				"resolved_at":       resolvedAt,
				"updated_at":        resolvedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to resolve dispute: %w", result.Error)
		}
		if result.RowsAffected != 1 {
			return newError(ErrKindDisputeConflict, "dispute %s was resolved concurrently", dispute.ID)
		}
		return s.ledger.WithTx(tx).ResolveDisputed(ctx, dispute.CommissionID, adjustment, next)
	})
	if err != nil {
		return nil, err
	}

	metrics.DisputesTotal.WithLabelValues("resolved_" + string(resolution)).Inc()
	logrus.WithFields(logrus.Fields{
		"dispute_id":    dispute.ID,
		"commission_id": dispute.CommissionID,
		"resolution":    resolution,
		"adjustment":    adjustment.StringFixed(2),
	}).Info("Dispute resolved")

	return s.Get(ctx, dispute.ID)
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func (s *DisputeService) Get(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := s.db.WithContext(ctx).Preload("Commission").First(&dispute, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("dispute", id.String())
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &dispute, nil
}

func (s *DisputeService) List(ctx context.Context, filter DisputeFilter) ([]models.Dispute, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Dispute{})

	if filter.CommissionID != nil {
		query = query.Where("commission_id = ?", *filter.CommissionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.VendorID != "" {
		query = query.Where("commission_id IN (?)",
			s.db.Model(&models.CommissionRecord{}).Select("id").Where("vendor_id = ?", filter.VendorID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count disputes: %w", err)
	}

	allowedSortFields := []string{"created_at", "resolved_at", "disputed_amount", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var disputes []models.Dispute
	if err := query.Preload("Commission").Find(&disputes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch disputes: %w", err)
	}

	return disputes, total, nil
}
