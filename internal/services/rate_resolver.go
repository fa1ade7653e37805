// internal/services/rate_resolver.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/models"
)

// RateOverrides are partial rate fields supplied by the caller. Any field
// that is set wins over the stored or default rate.
type RateOverrides struct {
	BaseRate        *decimal.Decimal `json:"base_rate,omitempty"`
	RateType        *models.RateType `json:"rate_type,omitempty"`
	PlatformFeeRate *decimal.Decimal `json:"platform_fee_rate,omitempty"`
	MinimumAmount   *decimal.Decimal `json:"minimum_amount,omitempty"`
	MaximumAmount   *decimal.Decimal `json:"maximum_amount,omitempty"`
}

type CreateRateRequest struct {
	VendorID        string          `json:"vendor_id" validate:"required,max=64"`
	ProductType     *string         `json:"product_type,omitempty" validate:"omitempty,max=100"`
	BaseRate        decimal.Decimal `json:"base_rate"`
	RateType        models.RateType `json:"rate_type" validate:"omitempty,oneof=percentage flat"`
	PlatformFeeRate decimal.Decimal `json:"platform_fee_rate"`
	MinimumAmount   decimal.Decimal `json:"minimum_amount"`
	MaximumAmount   decimal.Decimal `json:"maximum_amount"`
}

type RateResolver struct {
	db          *gorm.DB
	defaultRate ResolvedRate
}

func NewRateResolver(db *gorm.DB, defaultRate ResolvedRate) *RateResolver {
	defaultRate.Source = "default"
	return &RateResolver{
		db:          db,
		defaultRate: defaultRate,
	}
}

func (r *RateResolver) DefaultRate() ResolvedRate {
	return r.defaultRate
}

// Resolve returns the most recently created active rate for the vendor that
// matches the category or applies to all categories, falling back to the
// configured default. A missing vendor rate is not an error.
func (r *RateResolver) Resolve(ctx context.Context, vendorID, category string, overrides *RateOverrides) (ResolvedRate, error) {
	rate := r.defaultRate

	query := r.db.WithContext(ctx).
		Where("vendor_id = ? AND is_active = ?", vendorID, true)
	if category != "" {
		query = query.Where("product_type = ? OR product_type IS NULL", category)
	} else {
		query = query.Where("product_type IS NULL")
	}

	var row models.CommissionRate
	err := query.Order("created_at DESC").First(&row).Error
	switch {
	case err == nil:
		id := row.ID.String()
		rate = ResolvedRate{
			RateID:          &id,
			BaseRate:        row.BaseRate,
			RateType:        row.RateType,
			PlatformFeeRate: row.PlatformFeeRate,
			MinimumAmount:   row.MinimumAmount,
			MaximumAmount:   row.MaximumAmount,
			Source:          "vendor",
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// default rate applies
	default:
		return ResolvedRate{}, fmt.Errorf("failed to resolve commission rate: %w", err)
	}

	if overrides != nil {
		rate = applyOverrides(rate, overrides)
	}

	if err := rate.Validate(); err != nil {
		return ResolvedRate{}, err
	}
	return rate, nil
}

func applyOverrides(rate ResolvedRate, o *RateOverrides) ResolvedRate {
	overridden := false
	if o.BaseRate != nil {
		rate.BaseRate = *o.BaseRate
		overridden = true
	}
	if o.RateType != nil {
		rate.RateType = *o.RateType
		overridden = true
	}
	if o.PlatformFeeRate != nil {
		rate.PlatformFeeRate = *o.PlatformFeeRate
		overridden = true
	}
	if o.MinimumAmount != nil {
		rate.MinimumAmount = *o.MinimumAmount
		overridden = true
	}
	if o.MaximumAmount != nil {
		rate.MaximumAmount = *o.MaximumAmount
		overridden = true
	}
	if overridden {
		rate.Source += "+override"
	}
	return rate
}

// CreateRate stores a new vendor rate. Older rows stay in place; the newest
// active row wins at resolution time.
func (r *RateResolver) CreateRate(ctx context.Context, req *CreateRateRequest) (*models.CommissionRate, error) {
	rateType := req.RateType
	if rateType == "" {
		rateType = models.RateTypePercentage
	}

	candidate := ResolvedRate{
		BaseRate:        req.BaseRate,
		RateType:        rateType,
		PlatformFeeRate: req.PlatformFeeRate,
		MinimumAmount:   req.MinimumAmount,
		MaximumAmount:   req.MaximumAmount,
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	row := &models.CommissionRate{
		VendorID:        req.VendorID,
		ProductType:     req.ProductType,
		BaseRate:        req.BaseRate,
		RateType:        rateType,
		PlatformFeeRate: req.PlatformFeeRate,
		MinimumAmount:   req.MinimumAmount,
		MaximumAmount:   req.MaximumAmount,
		IsActive:        true,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create commission rate: %w", err)
	}
	return row, nil
}

func (r *RateResolver) ListRates(ctx context.Context, vendorID string) ([]models.CommissionRate, error) {
	query := r.db.WithContext(ctx).Model(&models.CommissionRate{})
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var rates []models.CommissionRate
	if err := query.Order("created_at DESC").Find(&rates).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch commission rates: %w", err)
	}
	return rates, nil
}
