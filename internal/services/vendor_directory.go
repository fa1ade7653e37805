// internal/services/vendor_directory.go
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/models"
)

// VendorDirectory is the settlement engine's view of the external vendor
// directory: status, payout method and payment details.
type VendorDirectory interface {
	GetVendor(ctx context.Context, vendorID string) (*models.Vendor, error)
	GetVendors(ctx context.Context, vendorIDs []string) (map[string]*models.Vendor, error)
}

type GormVendorDirectory struct {
	db *gorm.DB
}

func NewVendorDirectory(db *gorm.DB) *GormVendorDirectory {
	return &GormVendorDirectory{db: db}
}

func (d *GormVendorDirectory) GetVendor(ctx context.Context, vendorID string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := d.db.WithContext(ctx).First(&vendor, "id = ?", vendorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound("vendor", vendorID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &vendor, nil
}

func (d *GormVendorDirectory) GetVendors(ctx context.Context, vendorIDs []string) (map[string]*models.Vendor, error) {
	result := make(map[string]*models.Vendor, len(vendorIDs))
	if len(vendorIDs) == 0 {
		return result, nil
	}

	var vendors []models.Vendor
	if err := d.db.WithContext(ctx).Where("id IN ?", vendorIDs).Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch vendors: %w", err)
	}
	for i := range vendors {
		result[vendors[i].ID] = &vendors[i]
	}
	return result, nil
}
