// internal/models/part.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Part is a repair part from the external vendor catalog, kept current by the
// scheduled catalog sync.
type Part struct {
	BaseModel
	VendorSKU    string     `json:"vendor_sku" gorm:"uniqueIndex;size:100;not null"`
	Name         string     `json:"name" gorm:"size:255;not null"`
	Vendor       string     `json:"vendor" gorm:"size:100;index"`
	Category     string     `json:"category" gorm:"size:100;index"`
	UnitCost     float64    `json:"unit_cost" gorm:"type:decimal(10,2);not null"`
	InStock      bool       `json:"in_stock" gorm:"default:true"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
}

// DeviceRepairPart links a device to a catalog part used in its repair,
// snapshotting the unit cost at selection time so later catalog syncs do not
// rewrite historical repair costs.
type DeviceRepairPart struct {
	BaseModel
	DeviceID uuid.UUID `json:"device_id" gorm:"type:uuid;not null;index"`
	PartID   uuid.UUID `json:"part_id" gorm:"type:uuid;not null;index"`
	Quantity int       `json:"quantity" gorm:"not null;default:1"`
	UnitCost float64   `json:"unit_cost" gorm:"type:decimal(10,2);not null"`

	// Relationships
	Part Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
}
