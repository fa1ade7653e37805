// internal/models/payout.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutBatch struct {
	BaseModel
	BatchID       string          `json:"batch_id" gorm:"size:64;not null;uniqueIndex"`
	TotalPayouts  int             `json:"total_payouts" gorm:"not null;default:0"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:decimal(14,2);not null"`
	Frequency     PayoutFrequency `json:"frequency" gorm:"type:varchar(20);not null"`
	MinimumAmount decimal.Decimal `json:"minimum_amount" gorm:"type:decimal(14,2);not null"`
	Status        BatchStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	FailedVendors int             `json:"failed_vendors" gorm:"not null;default:0"`

	Payouts []PayoutRecord `json:"payouts,omitempty" gorm:"foreignKey:BatchID;references:ID"`
}

type PayoutRecord struct {
	BaseModel
	VendorID         string          `json:"vendor_id" gorm:"size:64;not null;index"`
	BatchID          *uuid.UUID      `json:"batch_id,omitempty" gorm:"type:uuid;index"`
	PayoutAmount     decimal.Decimal `json:"payout_amount" gorm:"type:decimal(14,2);not null"`
	Currency         string          `json:"currency" gorm:"size:3;not null"`
	PaymentMethod    PaymentMethod   `json:"payment_method" gorm:"type:varchar(30);not null"`
	PaymentDetails   JSONB           `json:"payment_details,omitempty" gorm:"type:jsonb"`
	Status           PayoutStatus    `json:"status" gorm:"type:varchar(20);not null;index"`
	CommissionCount  int             `json:"commission_count" gorm:"not null"`
	ScheduledDate    time.Time       `json:"scheduled_date" gorm:"not null;index"`
	ProcessedDate    *time.Time      `json:"processed_date,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty" gorm:"size:255"`
	FailureReason    string          `json:"failure_reason,omitempty" gorm:"type:text"`
	Attempts         int             `json:"attempts" gorm:"not null;default:0"`
	ReleasedAt       *time.Time      `json:"released_at,omitempty"`

	Commissions []CommissionRecord `json:"commissions,omitempty" gorm:"foreignKey:PayoutID;references:ID"`
}
