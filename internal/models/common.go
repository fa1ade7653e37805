// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. Ledger tables are append-only, so there is
// no soft delete column.
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// String returns the value stored under key, or "" when missing or not a string.
func (j JSONB) String(key string) string {
	if v, ok := j[key].(string); ok {
		return v
	}
	return ""
}

// Enums

type RateType string

const (
	RateTypePercentage RateType = "percentage"
	RateTypeFlat       RateType = "flat"
)

func (t RateType) IsValid() bool {
	return t == RateTypePercentage || t == RateTypeFlat
}

type CommissionStatus string

const (
	CommissionStatusCalculated    CommissionStatus = "calculated"
	CommissionStatusPendingPayout CommissionStatus = "pending_payout"
	CommissionStatusPaid          CommissionStatus = "paid"
	CommissionStatusDisputed      CommissionStatus = "disputed"
	CommissionStatusVoided        CommissionStatus = "voided"
)

var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionStatusCalculated:    {CommissionStatusPendingPayout, CommissionStatusDisputed},
	CommissionStatusPendingPayout: {CommissionStatusPaid, CommissionStatusCalculated, CommissionStatusDisputed},
	CommissionStatusPaid:          {CommissionStatusDisputed},
	CommissionStatusDisputed:      {CommissionStatusCalculated, CommissionStatusVoided},
	CommissionStatusVoided:        {},
}

func (s CommissionStatus) IsValid() bool {
	_, ok := commissionTransitions[s]
	return ok
}

func (s CommissionStatus) CanTransitionTo(next CommissionStatus) bool {
	return contains(commissionTransitions[s], next)
}

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:   {PayoutStatusCompleted, PayoutStatusFailed},
	PayoutStatusFailed:    {PayoutStatusPending},
	PayoutStatusCompleted: {},
}

func (s PayoutStatus) IsValid() bool {
	_, ok := payoutTransitions[s]
	return ok
}

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	return contains(payoutTransitions[s], next)
}

type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusPartial    BatchStatus = "partial"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusEmpty      BatchStatus = "empty"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen:     {DisputeStatusResolved},
	DisputeStatusResolved: {},
}

func (s DisputeStatus) IsValid() bool {
	_, ok := disputeTransitions[s]
	return ok
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	return contains(disputeTransitions[s], next)
}

type DisputeResolution string

const (
	DisputeResolutionAdjust DisputeResolution = "adjust"
	DisputeResolutionVoid   DisputeResolution = "void"
)

type ReconciliationStatus string

const (
	ReconciliationStatusBalanced    ReconciliationStatus = "balanced"
	ReconciliationStatusDiscrepancy ReconciliationStatus = "discrepancy"
)

func (s ReconciliationStatus) IsValid() bool {
	return s == ReconciliationStatusBalanced || s == ReconciliationStatusDiscrepancy
}

type PaymentMethod string

const (
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodMobileWallet  PaymentMethod = "mobile_wallet"
	PaymentMethodStripeConnect PaymentMethod = "stripe_connect"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodMobileWallet, PaymentMethodStripeConnect:
		return true
	default:
		return false
	}
}

type PayoutFrequency string

const (
	PayoutFrequencyOnDemand PayoutFrequency = "on_demand"
	PayoutFrequencyDaily    PayoutFrequency = "daily"
	PayoutFrequencyWeekly   PayoutFrequency = "weekly"
	PayoutFrequencyBiweekly PayoutFrequency = "biweekly"
	PayoutFrequencyMonthly  PayoutFrequency = "monthly"
)

// Window is the minimum time between two payouts to the same vendor.
func (f PayoutFrequency) Window() (time.Duration, bool) {
	switch f {
	case PayoutFrequencyOnDemand:
		return 0, true
	case PayoutFrequencyDaily:
		return 24 * time.Hour, true
	case PayoutFrequencyWeekly:
		return 7 * 24 * time.Hour, true
	case PayoutFrequencyBiweekly:
		return 14 * 24 * time.Hour, true
	case PayoutFrequencyMonthly:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

type VendorStatus string

const (
	VendorStatusActive    VendorStatus = "active"
	VendorStatusSuspended VendorStatus = "suspended"
	VendorStatusClosed    VendorStatus = "closed"
)

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
