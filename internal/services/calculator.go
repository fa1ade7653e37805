// internal/services/calculator.go
package services

import (
	"github.com/shopspring/decimal"

	"github.com/javajoker/vendor-settlement/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)

	// Epsilon is the tolerance used for balance and identity checks.
	Epsilon = decimal.New(1, -2)
)

type RoundingMode string

const (
	RoundHalfEven RoundingMode = "half_even"
	RoundHalfUp   RoundingMode = "half_up"
)

// ResolvedRate is the rate a calculation runs with after defaults and
// caller overrides have been applied.
type ResolvedRate struct {
	RateID          *string         `json:"rate_id,omitempty"`
	BaseRate        decimal.Decimal `json:"base_rate"`
	RateType        models.RateType `json:"rate_type"`
	PlatformFeeRate decimal.Decimal `json:"platform_fee_rate"`
	MinimumAmount   decimal.Decimal `json:"minimum_amount"`
	MaximumAmount   decimal.Decimal `json:"maximum_amount"`
	Source          string          `json:"source"`
}

type CommissionBreakdown struct {
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	RateType         models.RateType `json:"rate_type"`
	PlatformFeeRate  decimal.Decimal `json:"platform_fee_rate"`
	VATRate          decimal.Decimal `json:"vat_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	NetBeforeTax     decimal.Decimal `json:"net_before_tax"`
	VATAmount        decimal.Decimal `json:"vat_amount"`
	NetCommission    decimal.Decimal `json:"net_commission"`
	Clamped          bool            `json:"clamped"`
}

// Calculator turns a gross amount and a resolved rate into a fee breakdown.
// It holds only policy (VAT rate and rounding) and has no side effects.
type Calculator struct {
	vatRate  decimal.Decimal
	rounding RoundingMode
}

func NewCalculator(vatRate decimal.Decimal, rounding RoundingMode) *Calculator {
	if rounding == "" {
		rounding = RoundHalfEven
	}
	return &Calculator{vatRate: vatRate, rounding: rounding}
}

func (c *Calculator) Calculate(gross decimal.Decimal, rate ResolvedRate) (*CommissionBreakdown, error) {
	if !gross.IsPositive() {
		return nil, newError(ErrKindInvalidAmount, "gross amount must be greater than zero")
	}
	if err := rate.Validate(); err != nil {
		return nil, err
	}

	var raw decimal.Decimal
	if rate.RateType == models.RateTypeFlat {
		raw = rate.BaseRate
	} else {
		raw = gross.Mul(rate.BaseRate).Div(hundred)
	}

	commission := decimal.Max(rate.MinimumAmount, decimal.Min(raw, rate.MaximumAmount))
	fee := commission.Mul(rate.PlatformFeeRate).Div(hundred)
	netBeforeTax := commission.Sub(fee)
	vat := netBeforeTax.Mul(c.vatRate).Div(hundred)

	commissionR := c.round(commission)
	feeR := c.round(fee)
	vatR := c.round(vat)

	return &CommissionBreakdown{
		GrossAmount:      gross,
		CommissionRate:   rate.BaseRate,
		RateType:         rate.RateType,
		PlatformFeeRate:  rate.PlatformFeeRate,
		VATRate:          c.vatRate,
		CommissionAmount: commissionR,
		PlatformFee:      feeR,
		NetBeforeTax:     commissionR.Sub(feeR),
		VATAmount:        vatR,
		NetCommission:    commissionR.Sub(feeR).Sub(vatR),
		Clamped:          !commission.Equal(raw),
	}, nil
}

func (c *Calculator) round(d decimal.Decimal) decimal.Decimal {
	if c.rounding == RoundHalfUp {
		return d.Round(2)
	}
	return d.RoundBank(2)
}

func (r ResolvedRate) Validate() error {
	if !r.RateType.IsValid() {
		return newError(ErrKindInvalidRate, "unsupported rate type %q", r.RateType)
	}
	if r.BaseRate.IsNegative() || r.PlatformFeeRate.IsNegative() || r.MinimumAmount.IsNegative() {
		return newError(ErrKindInvalidRate, "rate fields must not be negative")
	}
	if r.PlatformFeeRate.GreaterThan(hundred) {
		return newError(ErrKindInvalidRate, "platform fee rate must not exceed 100")
	}
	if r.MinimumAmount.GreaterThan(r.MaximumAmount) {
		return newError(ErrKindInvalidRate, "minimum amount %s exceeds maximum amount %s",
			r.MinimumAmount.StringFixed(2), r.MaximumAmount.StringFixed(2))
	}
	return nil
}
