// internal/models/device.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is a single refurbished unit moving through intake, repair and sale.
// Status transitions between listed_for_sale, sold and ready_for_sale are
// owned by the assignment engine; the device ledger never initiates them.
type Device struct {
	BaseModel
	Label         string       `json:"label" gorm:"size:255;not null"`
	Manufacturer  string       `json:"manufacturer" gorm:"size:100"`
	Model         string       `json:"model" gorm:"size:100"`
	SerialNumber  string       `json:"serial_number" gorm:"size:100;uniqueIndex"`
	Condition     string       `json:"condition" gorm:"size:50"`
	Status        DeviceStatus `json:"status" gorm:"type:varchar(20);default:'purchased';index"`
	PurchasePrice float64      `json:"purchase_price" gorm:"type:decimal(10,2);not null"`
	// Derived sum over the device's repair parts; recomputed whenever the
	// parts selection changes.
	RepairPartsCost     float64    `json:"repair_parts_cost" gorm:"type:decimal(10,2);default:0"`
	DesiredProfit       float64    `json:"desired_profit" gorm:"type:decimal(10,2);default:0"`
	ListPrice           float64    `json:"list_price" gorm:"type:decimal(10,2);default:0"`
	ActualSellingPrice  *float64   `json:"actual_selling_price" gorm:"type:decimal(10,2)"`
	SoldAt              *time.Time `json:"sold_at"`
	Notes               string     `json:"notes,omitempty" gorm:"type:text"`

	// Relationships
	RepairParts []DeviceRepairPart `json:"repair_parts,omitempty" gorm:"foreignKey:DeviceID"`
	Photos      []DevicePhoto      `json:"photos,omitempty" gorm:"foreignKey:DeviceID"`
	Assignments []DeviceAssignment `json:"assignments,omitempty" gorm:"foreignKey:DeviceID"`
}

// DevicePhoto is an intake or condition photo stored in object storage.
type DevicePhoto struct {
	BaseModel
	DeviceID   uuid.UUID `json:"device_id" gorm:"type:uuid;not null;index"`
	URL        string    `json:"url" gorm:"size:512;not null"`
	StorageKey string    `json:"storage_key" gorm:"size:512;not null"`
	MimeType   string    `json:"mime_type" gorm:"size:100"`
	Size       int64     `json:"size"`
}

// RecalculatePricing refreshes the derived cost and list price fields from the
// given parts selection.
func (d *Device) RecalculatePricing(parts []DeviceRepairPart) {
	var partsCost float64
	for _, p := range parts {
		partsCost += p.UnitCost * float64(p.Quantity)
	}
	d.RepairPartsCost = partsCost
	d.ListPrice = d.PurchasePrice + d.RepairPartsCost + d.DesiredProfit
}
