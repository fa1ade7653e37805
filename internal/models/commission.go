// internal/models/commission.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CommissionRecord struct {
	BaseModel
	OrderID          string           `json:"order_id" gorm:"size:64;not null;uniqueIndex:idx_commission_order_vendor"`
	VendorID         string           `json:"vendor_id" gorm:"size:64;not null;uniqueIndex:idx_commission_order_vendor;index"`
	GrossAmount      decimal.Decimal  `json:"gross_amount" gorm:"type:decimal(14,2);not null"`
	CommissionRate   decimal.Decimal  `json:"commission_rate" gorm:"type:decimal(10,4);not null"`
	RateType         RateType         `json:"rate_type" gorm:"type:varchar(20);not null"`
	PlatformFeeRate  decimal.Decimal  `json:"platform_fee_rate" gorm:"type:decimal(10,4);not null"`
	VATRate          decimal.Decimal  `json:"vat_rate" gorm:"type:decimal(10,4);not null"`
	CommissionAmount decimal.Decimal  `json:"commission_amount" gorm:"type:decimal(14,2);not null"`
	PlatformFee      decimal.Decimal  `json:"platform_fee" gorm:"type:decimal(14,2);not null"`
	VATAmount        decimal.Decimal  `json:"vat_amount" gorm:"type:decimal(14,2);not null"`
	NetCommission    decimal.Decimal  `json:"net_commission" gorm:"type:decimal(14,2);not null"`
	ProductCategory  string           `json:"product_category,omitempty" gorm:"size:100;index"`
	Status           CommissionStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	PayoutID         *uuid.UUID       `json:"payout_id,omitempty" gorm:"type:uuid;index"`
	TransactionDate  time.Time        `json:"transaction_date" gorm:"not null;index"`
}

type CommissionRate struct {
	BaseModel
	VendorID        string          `json:"vendor_id" gorm:"size:64;not null;index"`
	ProductType     *string         `json:"product_type,omitempty" gorm:"size:100;index"`
	BaseRate        decimal.Decimal `json:"base_rate" gorm:"type:decimal(10,4);not null"`
	RateType        RateType        `json:"rate_type" gorm:"type:varchar(20);not null;default:'percentage'"`
	PlatformFeeRate decimal.Decimal `json:"platform_fee_rate" gorm:"type:decimal(10,4);not null"`
	MinimumAmount   decimal.Decimal `json:"minimum_amount" gorm:"type:decimal(14,2);not null"`
	MaximumAmount   decimal.Decimal `json:"maximum_amount" gorm:"type:decimal(14,2);not null"`
	IsActive        bool            `json:"is_active" gorm:"not null;default:true;index"`
}
