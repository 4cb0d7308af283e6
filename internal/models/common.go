// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
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

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeOperator UserType = "operator"
	UserTypeReseller UserType = "reseller"
)

type DeviceStatus string

const (
	DeviceStatusPurchased     DeviceStatus = "purchased"
	DeviceStatusInRepair      DeviceStatus = "in_repair"
	DeviceStatusReadyForSale  DeviceStatus = "ready_for_sale"
	DeviceStatusListedForSale DeviceStatus = "listed_for_sale"
	DeviceStatusSold          DeviceStatus = "sold"
)

type AssignmentStatus string

const (
	AssignmentStatusAssigned AssignmentStatus = "assigned"
	AssignmentStatusReceived AssignmentStatus = "received"
	AssignmentStatusSold     AssignmentStatus = "sold"
	AssignmentStatusReturned AssignmentStatus = "returned"
)

type AssignmentAction string

const (
	AssignmentActionCreated         AssignmentAction = "created"
	AssignmentActionReceived        AssignmentAction = "received"
	AssignmentActionSold            AssignmentAction = "sold"
	AssignmentActionSaleReversed    AssignmentAction = "sale_reversed"
	AssignmentActionRevoked         AssignmentAction = "revoked"
	AssignmentActionResellerDeleted AssignmentAction = "reseller_deleted"
)

type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusPaid     PayoutStatus = "paid"
	PayoutStatusRejected PayoutStatus = "rejected"
)
