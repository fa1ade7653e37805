// internal/services/analytics_service.go
package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

const (
	AnalyticsOverview   = "overview"
	AnalyticsByVendor   = "by_vendor"
	AnalyticsByCategory = "by_category"
	AnalyticsTrends     = "trends"
)

type AnalyticsRequest struct {
	Period        string   `json:"period"`
	VendorIDs     []string `json:"vendor_ids,omitempty" validate:"omitempty,dive,required,max=64"`
	AnalyticsType string   `json:"analytics_type" validate:"omitempty,oneof=overview by_vendor by_category trends"`
}

// CommissionTotals is one aggregation bucket.
type CommissionTotals struct {
	Key         string          `json:"key,omitempty"`
	OrderCount  int             `json:"order_count"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	Commission  decimal.Decimal `json:"commission"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	VAT         decimal.Decimal `json:"vat"`
	Net         decimal.Decimal `json:"net"`
}

func newTotals(key string) *CommissionTotals {
	return &CommissionTotals{
		Key:         key,
		GrossAmount: decimal.Zero,
		Commission:  decimal.Zero,
		PlatformFee: decimal.Zero,
		VAT:         decimal.Zero,
		Net:         decimal.Zero,
	}
}

func (t *CommissionTotals) add(r models.CommissionRecord) {
	t.OrderCount++
	t.GrossAmount = t.GrossAmount.Add(r.GrossAmount)
	t.Commission = t.Commission.Add(r.CommissionAmount)
	t.PlatformFee = t.PlatformFee.Add(r.PlatformFee)
	t.VAT = t.VAT.Add(r.VATAmount)
	t.Net = t.Net.Add(r.NetCommission)
}

type AnalyticsOverviewResult struct {
	CommissionTotals
	VendorCount        int                                `json:"vendor_count"`
	EffectiveRate      decimal.Decimal                    `json:"effective_rate"`
	AverageOrderAmount decimal.Decimal                    `json:"average_order_amount"`
	StatusBreakdown    map[models.CommissionStatus]int    `json:"status_breakdown"`
	StatusAmounts      map[models.CommissionStatus]string `json:"status_amounts"`
}

type AnalyticsResponse struct {
	AnalyticsType string                   `json:"analytics_type"`
	Period        utils.Period             `json:"period"`
	Overview      *AnalyticsOverviewResult `json:"overview,omitempty"`
	Buckets       []CommissionTotals       `json:"buckets,omitempty"`
}

// Analytics aggregates ledger records in a period. Voided records are left
// out of every aggregate.
func (s *CommissionService) Analytics(ctx context.Context, req *AnalyticsRequest) (*AnalyticsResponse, error) {
	analyticsType := req.AnalyticsType
	if analyticsType == "" {
		analyticsType = AnalyticsOverview
	}

	period, err := utils.ParsePeriod(req.Period, s.now())
	if err != nil {
		return nil, newError(ErrKindValidation, "%s", err.Error())
	}

	all, err := s.ledger.ListInPeriod(ctx, period.Start, period.End, req.VendorIDs)
	if err != nil {
		return nil, err
	}
	records := make([]models.CommissionRecord, 0, len(all))
	for _, r := range all {
		if r.Status != models.CommissionStatusVoided {
			records = append(records, r)
		}
	}

	resp := &AnalyticsResponse{AnalyticsType: analyticsType, Period: period}

	switch analyticsType {
	case AnalyticsOverview:
		resp.Overview = overview(records)
	case AnalyticsByVendor:
		resp.Buckets = bucketBy(records, func(r models.CommissionRecord) string { return r.VendorID }, byNetDesc)
	case AnalyticsByCategory:
		resp.Buckets = bucketBy(records, func(r models.CommissionRecord) string {
			if r.ProductCategory == "" {
				return "uncategorized"
			}
			return r.ProductCategory
		}, byNetDesc)
	case AnalyticsTrends:
		resp.Buckets = bucketBy(records, func(r models.CommissionRecord) string {
			return r.TransactionDate.UTC().Format("2006-01-02")
		}, byKeyAsc)
	default:
		return nil, newError(ErrKindValidation, "unknown analytics type %q", analyticsType)
	}

	return resp, nil
}

func overview(records []models.CommissionRecord) *AnalyticsOverviewResult {
	totals := newTotals("")
	vendors := make(map[string]struct{})
	counts := make(map[models.CommissionStatus]int)
	amounts := make(map[models.CommissionStatus]decimal.Decimal)

	for _, r := range records {
		totals.add(r)
		vendors[r.VendorID] = struct{}{}
		counts[r.Status]++
		amounts[r.Status] = amounts[r.Status].Add(r.NetCommission)
	}

	result := &AnalyticsOverviewResult{
		CommissionTotals:   *totals,
		VendorCount:        len(vendors),
		EffectiveRate:      decimal.Zero,
		AverageOrderAmount: decimal.Zero,
		StatusBreakdown:    counts,
		StatusAmounts:      make(map[models.CommissionStatus]string, len(amounts)),
	}
	for status, amount := range amounts {
		result.StatusAmounts[status] = amount.StringFixed(2)
	}
	if totals.GrossAmount.IsPositive() {
		result.EffectiveRate = totals.Commission.Div(totals.GrossAmount).Mul(hundred).RoundBank(2)
	}
	if totals.OrderCount > 0 {
		result.AverageOrderAmount = totals.GrossAmount.Div(decimal.NewFromInt(int64(totals.OrderCount))).RoundBank(2)
	}
	return result
}

func bucketBy(records []models.CommissionRecord, keyFn func(models.CommissionRecord) string, less func(a, b CommissionTotals) bool) []CommissionTotals {
	index := make(map[string]*CommissionTotals)
	for _, r := range records {
		key := keyFn(r)
		bucket, ok := index[key]
		if !ok {
			bucket = newTotals(key)
			index[key] = bucket
		}
		bucket.add(r)
	}

	buckets := make([]CommissionTotals, 0, len(index))
	for _, b := range index {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return less(buckets[i], buckets[j]) })
	return buckets
}

func byNetDesc(a, b CommissionTotals) bool {
	if !a.Net.Equal(b.Net) {
		return a.Net.GreaterThan(b.Net)
	}
	return a.Key < b.Key
}

func byKeyAsc(a, b CommissionTotals) bool {
	return a.Key < b.Key
}
