// internal/models/vendor.go
package models

import (
	"time"
)

// Vendor is the local read model of the external vendor directory. Rows are
// synchronised by the directory; the settlement engine only reads them.
type Vendor struct {
	ID              string          `json:"id" gorm:"size:64;primaryKey"`
	Name            string          `json:"name" gorm:"size:255;not null"`
	Email           string          `json:"email" gorm:"size:255"`
	Status          VendorStatus    `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	PayoutMethod    PaymentMethod   `json:"payout_method" gorm:"type:varchar(30);not null"`
	PaymentDetails  JSONB           `json:"payment_details,omitempty" gorm:"type:jsonb"`
	PayoutFrequency PayoutFrequency `json:"payout_frequency" gorm:"type:varchar(20);not null;default:'weekly'"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
