// internal/models/dispute.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Dispute struct {
	BaseModel
	CommissionID     uuid.UUID          `json:"commission_id" gorm:"type:uuid;not null;index"`
	Reason           string             `json:"reason" gorm:"type:text;not null"`
	DisputedAmount   decimal.Decimal    `json:"disputed_amount" gorm:"type:decimal(14,2);not null"`
	Status           DisputeStatus      `json:"status" gorm:"type:varchar(20);not null;index"`
	PreviousStatus   CommissionStatus   `json:"previous_status" gorm:"type:varchar(20);not null"`
	Resolution       *DisputeResolution `json:"resolution,omitempty" gorm:"type:varchar(20)"`
	AdjustmentAmount decimal.Decimal    `json:"adjustment_amount" gorm:"type:decimal(14,2);not null;default:0"`
	ResolutionNotes  string             `json:"resolution_notes,omitempty" gorm:"type:text"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`

	Commission *CommissionRecord `json:"commission,omitempty" gorm:"foreignKey:CommissionID"`
}

func (Dispute) TableName() string {
	return "commission_disputes"
}

type ReconciliationRecord struct {
	BaseModel
	VendorID             string               `json:"vendor_id" gorm:"size:64;not null;index"`
	PeriodStart          time.Time            `json:"period_start" gorm:"not null;index"`
	PeriodEnd            time.Time            `json:"period_end" gorm:"not null"`
	ReconciliationType   string               `json:"reconciliation_type" gorm:"size:20;not null"`
	CalculatedCommission decimal.Decimal      `json:"calculated_commission" gorm:"type:decimal(14,2);not null"`
	PaidCommission       decimal.Decimal      `json:"paid_commission" gorm:"type:decimal(14,2);not null"`
	PendingCommission    decimal.Decimal      `json:"pending_commission" gorm:"type:decimal(14,2);not null"`
	DisputedCommission   decimal.Decimal      `json:"disputed_commission" gorm:"type:decimal(14,2);not null"`
	Variance             decimal.Decimal      `json:"variance" gorm:"type:decimal(14,2);not null"`
	RecordCount          int                  `json:"record_count" gorm:"not null"`
	Status               ReconciliationStatus `json:"status" gorm:"type:varchar(20);not null;index"`
}

func (ReconciliationRecord) TableName() string {
	return "commission_reconciliations"
}
