// internal/models/assignment.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceAssignment is the consignment relationship between one device and one
// reseller. Rows are never deleted; terminal rows (sold, returned) are kept
// permanently for audit and profit accounting. ResellerID is a weak reference:
// after a reseller is offboarded the id keeps pointing at a registry row that
// no longer exists, with ResellerName snapshotted for display.
type DeviceAssignment struct {
	BaseModel
	DeviceID     uuid.UUID `json:"device_id" gorm:"type:uuid;not null;index"`
	ResellerID   uuid.UUID `json:"reseller_id" gorm:"type:uuid;not null;index"`
	ResellerName string    `json:"reseller_name,omitempty" gorm:"size:255"`
	// Floor price: the amount the operator keeps from a sale regardless of
	// what the reseller negotiates above it.
	MinimumPrice    float64          `json:"minimum_price" gorm:"type:decimal(10,2);not null"`
	Status          AssignmentStatus `json:"status" gorm:"type:varchar(20);default:'assigned';index"`
	AssignedAt      time.Time        `json:"assigned_at" gorm:"not null"`
	ReceivedAt      *time.Time       `json:"received_at"`
	SoldAt          *time.Time       `json:"sold_at"`
	ActualSalePrice *float64         `json:"actual_sale_price" gorm:"type:decimal(10,2)"`
	Notes           string           `json:"notes,omitempty" gorm:"type:text"`

	// Relationships
	Device Device            `json:"device,omitempty" gorm:"foreignKey:DeviceID"`
	Events []AssignmentEvent `json:"events,omitempty" gorm:"foreignKey:AssignmentID"`
}

// ResellerProfit is the reseller's margin on a sold assignment, computed at
// read time rather than stored.
func (a *DeviceAssignment) ResellerProfit() float64 {
	if a.Status != AssignmentStatusSold || a.ActualSalePrice == nil {
		return 0
	}
	return *a.ActualSalePrice - a.MinimumPrice
}

// AssignmentEvent is one immutable entry in an assignment's audit trail.
// Entries are only ever appended; failed transitions write nothing.
type AssignmentEvent struct {
	BaseModel
	AssignmentID uuid.UUID        `json:"assignment_id" gorm:"type:uuid;not null;index"`
	ActorType    UserType         `json:"actor_type" gorm:"type:varchar(20);not null"`
	ActorID      uuid.UUID        `json:"actor_id" gorm:"type:uuid;not null"`
	Action       AssignmentAction `json:"action" gorm:"type:varchar(30);not null"`
	FromStatus   AssignmentStatus `json:"from_status,omitempty" gorm:"type:varchar(20)"`
	ToStatus     AssignmentStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	Reason       string           `json:"reason,omitempty" gorm:"type:text"`
}
