// internal/services/commission_service.go
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vendor-settlement/internal/metrics"
	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

type CalculateCommissionRequest struct {
	OrderID             string          `json:"order_id" validate:"required,max=64,identifier"`
	VendorID            string          `json:"vendor_id" validate:"required,max=64,identifier"`
	OrderAmount         decimal.Decimal `json:"order_amount"`
	ProductCategory     string          `json:"product_category,omitempty" validate:"omitempty,max=100"`
	TransactionDate     *time.Time      `json:"transaction_date,omitempty"`
	CommissionOverrides *RateOverrides  `json:"commission_overrides,omitempty"`
}

type CalculateCommissionResponse struct {
	CommissionID    uuid.UUID               `json:"commission_id"`
	OrderID         string                  `json:"order_id"`
	VendorID        string                  `json:"vendor_id"`
	ProductCategory string                  `json:"product_category,omitempty"`
	Status          models.CommissionStatus `json:"status"`
	TransactionDate time.Time               `json:"transaction_date"`
	RateSource      string                  `json:"rate_source"`
	CommissionBreakdown
}

type VendorEarningsRequest struct {
	VendorID           string `json:"vendor_id"`
	Period             string `form:"period" json:"period"`
	IncludeProjections bool   `form:"include_projections" json:"include_projections"`
}

type EarningsProjection struct {
	Days         int             `json:"days"`
	DailyAverage decimal.Decimal `json:"daily_average"`
	ProjectedNet decimal.Decimal `json:"projected_net"`
}

type VendorEarnings struct {
	VendorID          string              `json:"vendor_id"`
	Period            utils.Period        `json:"period"`
	OrderCount        int                 `json:"order_count"`
	GrossSales        decimal.Decimal     `json:"gross_sales"`
	CommissionTotal   decimal.Decimal     `json:"commission_total"`
	PlatformFees      decimal.Decimal     `json:"platform_fees"`
	VATTotal          decimal.Decimal     `json:"vat_total"`
	NetEarnings       decimal.Decimal     `json:"net_earnings"`
	PaidOut           decimal.Decimal     `json:"paid_out"`
	AvailableBalance  decimal.Decimal     `json:"available_balance"`
	InPayout          decimal.Decimal     `json:"in_payout"`
	Disputed          decimal.Decimal     `json:"disputed"`
	AverageCommission decimal.Decimal     `json:"average_commission"`
	Projection        *EarningsProjection `json:"projection,omitempty"`
}

// CommissionService turns completed orders into ledger records and reads
// them back for vendors and analytics.
type CommissionService struct {
	resolver   *RateResolver
	calculator *Calculator
	ledger     *CommissionLedger
	now        func() time.Time
}

func NewCommissionService(resolver *RateResolver, calculator *Calculator, ledger *CommissionLedger) *CommissionService {
	return &CommissionService{
		resolver:   resolver,
		calculator: calculator,
		ledger:     ledger,
		now:        time.Now,
	}
}

func (s *CommissionService) Calculate(ctx context.Context, req *CalculateCommissionRequest) (*CalculateCommissionResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.VendorID) == "" {
		return nil, newError(ErrKindValidation, "order_id and vendor_id are required")
	}

	now := s.now()
	txDate := now
	if req.TransactionDate != nil {
		if req.TransactionDate.After(now) {
			return nil, newError(ErrKindValidation, "transaction_date cannot be in the future")
		}
		txDate = *req.TransactionDate
	}

	rate, err := s.resolver.Resolve(ctx, req.VendorID, req.ProductCategory, req.CommissionOverrides)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.calculator.Calculate(req.OrderAmount, rate)
	if err != nil {
		return nil, err
	}

	record, err := s.ledger.Record(ctx, LedgerEntry{
		OrderID:         req.OrderID,
		VendorID:        req.VendorID,
		ProductCategory: req.ProductCategory,
		TransactionDate: txDate,
		Breakdown:       breakdown,
	})
	if err != nil {
		return nil, err
	}

	metrics.CommissionsRecordedTotal.WithLabelValues(rate.Source).Inc()
	logrus.WithFields(logrus.Fields{
		"commission_id":  record.ID,
		"order_id":       record.OrderID,
		"vendor_id":      record.VendorID,
		"rate_source":    rate.Source,
		"net_commission": record.NetCommission.StringFixed(2),
		"clamped":        breakdown.Clamped,
	}).Info("Commission recorded")

	return &CalculateCommissionResponse{
		CommissionID:        record.ID,
		OrderID:             record.OrderID,
		VendorID:            record.VendorID,
		ProductCategory:     record.ProductCategory,
		Status:              record.Status,
		TransactionDate:     record.TransactionDate,
		RateSource:          rate.Source,
		CommissionBreakdown: *breakdown,
	}, nil
}

func (s *CommissionService) GetCommission(ctx context.Context, id uuid.UUID) (*models.CommissionRecord, error) {
	return s.ledger.Get(ctx, id)
}

func (s *CommissionService) ListCommissions(ctx context.Context, filter CommissionFilter) ([]models.CommissionRecord, int64, error) {
	return s.ledger.List(ctx, filter)
}

// VendorEarnings summarises a vendor's ledger for a period. The projection
// extrapolates the period's average daily net over the next 30 days.
func (s *CommissionService) VendorEarnings(ctx context.Context, req *VendorEarningsRequest) (*VendorEarnings, error) {
	period, err := utils.ParsePeriod(req.Period, s.now())
	if err != nil {
		return nil, newError(ErrKindValidation, "%s", err.Error())
	}

	records, err := s.ledger.ListInPeriod(ctx, period.Start, period.End, []string{req.VendorID})
	if err != nil {
		return nil, err
	}

	earnings := &VendorEarnings{
		VendorID:          req.VendorID,
		Period:            period,
		GrossSales:        decimal.Zero,
		CommissionTotal:   decimal.Zero,
		PlatformFees:      decimal.Zero,
		VATTotal:          decimal.Zero,
		NetEarnings:       decimal.Zero,
		PaidOut:           decimal.Zero,
		AvailableBalance:  decimal.Zero,
		InPayout:          decimal.Zero,
		Disputed:          decimal.Zero,
		AverageCommission: decimal.Zero,
	}

	for _, r := range records {
		if r.Status == models.CommissionStatusVoided {
			continue
		}
		earnings.OrderCount++
		earnings.GrossSales = earnings.GrossSales.Add(r.GrossAmount)
		earnings.CommissionTotal = earnings.CommissionTotal.Add(r.CommissionAmount)
		earnings.PlatformFees = earnings.PlatformFees.Add(r.PlatformFee)
		earnings.VATTotal = earnings.VATTotal.Add(r.VATAmount)
		earnings.NetEarnings = earnings.NetEarnings.Add(r.NetCommission)

		switch r.Status {
		case models.CommissionStatusPaid:
			earnings.PaidOut = earnings.PaidOut.Add(r.NetCommission)
		case models.CommissionStatusCalculated:
			earnings.AvailableBalance = earnings.AvailableBalance.Add(r.NetCommission)
		case models.CommissionStatusPendingPayout:
			earnings.InPayout = earnings.InPayout.Add(r.NetCommission)
		case models.CommissionStatusDisputed:
			earnings.Disputed = earnings.Disputed.Add(r.NetCommission)
		}
	}

	if earnings.OrderCount > 0 {
		earnings.AverageCommission = earnings.NetEarnings.
			Div(decimal.NewFromInt(int64(earnings.OrderCount))).RoundBank(2)
	}

	if req.IncludeProjections {
		const projectionDays = 30
		daily := earnings.NetEarnings.Div(decimal.NewFromInt(int64(period.Days())))
		earnings.Projection = &EarningsProjection{
			Days:         projectionDays,
			DailyAverage: daily.RoundBank(2),
			ProjectedNet: daily.Mul(decimal.NewFromInt(projectionDays)).RoundBank(2),
		}
	}

	return earnings, nil
}
