// internal/models/settlement.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SaleTransaction records the proceeds split of one confirmed sale: the
// operator keeps the assignment's floor price, the reseller keeps the excess.
// A reversed sale keeps its row with Reversed set so the ledger stays
// append-only.
type SaleTransaction struct {
	BaseModel
	AssignmentID     uuid.UUID  `json:"assignment_id" gorm:"type:uuid;not null;index"`
	DeviceID         uuid.UUID  `json:"device_id" gorm:"type:uuid;not null;index"`
	ResellerID       uuid.UUID  `json:"reseller_id" gorm:"type:uuid;not null;index"`
	SalePrice        float64    `json:"sale_price" gorm:"type:decimal(10,2);not null"`
	OperatorProceeds float64    `json:"operator_proceeds" gorm:"type:decimal(10,2);not null"`
	ResellerMargin   float64    `json:"reseller_margin" gorm:"type:decimal(10,2);not null"`
	Reversed         bool       `json:"reversed" gorm:"default:false;index"`
	ReversedAt       *time.Time `json:"reversed_at"`
	ReversalReason   string     `json:"reversal_reason,omitempty" gorm:"type:text"`
}

// Payout is a reseller's request to be paid their accumulated margin.
type Payout struct {
	BaseModel
	ResellerID       uuid.UUID    `json:"reseller_id" gorm:"type:uuid;not null;index"`
	Amount           float64      `json:"amount" gorm:"type:decimal(10,2);not null"`
	Status           PayoutStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	StripeTransferID string       `json:"stripe_transfer_id,omitempty" gorm:"size:255"`
	ProcessedBy      *uuid.UUID   `json:"processed_by" gorm:"type:uuid"`
	ProcessedAt      *time.Time   `json:"processed_at"`
	RejectionReason  string       `json:"rejection_reason,omitempty" gorm:"type:text"`
}
