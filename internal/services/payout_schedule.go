// internal/services/payout_schedule.go
package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/javajoker/vendor-settlement/internal/models"
)

type PayoutScheduleRequest struct {
	VendorID  string `form:"vendor_id" json:"vendor_id,omitempty" validate:"omitempty,max=64"`
	DaysAhead int    `form:"days_ahead" json:"days_ahead,omitempty" validate:"omitempty,min=1,max=365"`
}

type ScheduledPayout struct {
	VendorID        string                 `json:"vendor_id"`
	VendorName      string                 `json:"vendor_name"`
	PayoutFrequency models.PayoutFrequency `json:"payout_frequency"`
	PaymentMethod   models.PaymentMethod   `json:"payment_method"`
	LastPayoutDate  *time.Time             `json:"last_payout_date,omitempty"`
	NextPayoutDate  time.Time              `json:"next_payout_date"`
	EstimatedAmount decimal.Decimal        `json:"estimated_amount"`
	CommissionCount int                    `json:"commission_count"`
	MeetsMinimum    bool                   `json:"meets_minimum"`
}

type PayoutScheduleResponse struct {
	From          time.Time         `json:"from"`
	Until         time.Time         `json:"until"`
	MinimumAmount decimal.Decimal   `json:"minimum_amount"`
	Payouts       []ScheduledPayout `json:"payouts"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
}

// Schedule projects each active vendor's next payout from their frequency,
// last payout and current calculated balance.
func (g *PayoutBatchGenerator) Schedule(ctx context.Context, req PayoutScheduleRequest) (*PayoutScheduleResponse, error) {
	daysAhead := req.DaysAhead
	if daysAhead <= 0 {
		daysAhead = 30
	}

	var vendorFilter []string
	if req.VendorID != "" {
		vendorFilter = []string{req.VendorID}
	}

	records, err := g.ledger.QueryCalculated(ctx, vendorFilter)
	if err != nil {
		return nil, err
	}
	grouped, vendorIDs := groupByVendor(records)

	if req.VendorID != "" && len(vendorIDs) == 0 {
		vendorIDs = vendorFilter
	}

	directory, err := g.vendors.GetVendors(ctx, vendorIDs)
	if err != nil {
		return nil, err
	}
	if req.VendorID != "" && directory[req.VendorID] == nil {
		return nil, ErrNotFound("vendor", req.VendorID)
	}

	lastPayouts, err := g.lastPayoutDates(ctx, vendorIDs)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	until := now.AddDate(0, 0, daysAhead)
	resp := &PayoutScheduleResponse{
		From:          now,
		Until:         until,
		MinimumAmount: g.defaultMinimum,
		Payouts:       make([]ScheduledPayout, 0, len(vendorIDs)),
		TotalAmount:   decimal.Zero,
	}

	for _, vendorID := range vendorIDs {
		vendor := directory[vendorID]
		if vendor == nil || vendor.Status != models.VendorStatusActive {
			continue
		}

		frequency := vendor.PayoutFrequency
		if _, ok := frequency.Window(); !ok {
			frequency = g.defaultFrequency
		}
		window, _ := frequency.Window()

		next := now
		entry := ScheduledPayout{
			VendorID:        vendorID,
			VendorName:      vendor.Name,
			PayoutFrequency: frequency,
			PaymentMethod:   vendor.PayoutMethod,
			EstimatedAmount: SumNet(grouped[vendorID]),
			CommissionCount: len(grouped[vendorID]),
		}
		if last, ok := lastPayouts[vendorID]; ok {
			last := last
			entry.LastPayoutDate = &last
			if due := last.Add(window); due.After(next) {
				next = due
			}
		}
		if next.After(until) {
			continue
		}

		entry.NextPayoutDate = next
		entry.MeetsMinimum = entry.EstimatedAmount.GreaterThanOrEqual(g.defaultMinimum)
		if entry.MeetsMinimum {
			resp.TotalAmount = resp.TotalAmount.Add(entry.EstimatedAmount)
		}
		resp.Payouts = append(resp.Payouts, entry)
	}

	sort.SliceStable(resp.Payouts, func(i, j int) bool {
		return resp.Payouts[i].NextPayoutDate.Before(resp.Payouts[j].NextPayoutDate)
	})

	return resp, nil
}
