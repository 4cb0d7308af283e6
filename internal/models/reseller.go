// internal/models/reseller.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Reseller is a third party that takes devices on consignment. The registry
// row is hard-deleted on offboarding; assignments that reference it survive.
type Reseller struct {
	BaseModel
	Name               string     `json:"name" gorm:"size:255;not null"`
	Email              string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Phone              string     `json:"phone,omitempty" gorm:"size:50"`
	PasswordHash       string     `json:"-" gorm:"size:255;not null"`
	IsActive           bool       `json:"is_active" gorm:"default:true"`
	DeactivationReason string     `json:"deactivation_reason,omitempty" gorm:"type:text"`
	DeactivatedAt      *time.Time `json:"deactivated_at"`
	StripeAccountID    string     `json:"stripe_account_id,omitempty" gorm:"size:255"`
	ResetToken         string     `json:"-" gorm:"size:64;index"`
	ResetTokenExpires  *time.Time `json:"-"`
	LastLoginAt        *time.Time `json:"last_login_at"`
}

func (r *Reseller) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	r.PasswordHash = string(hashedPassword)
	return nil
}

func (r *Reseller) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password))
}

// Operator is internal staff running the refurbishment operation.
type Operator struct {
	BaseModel
	Username          string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email             string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash      string     `json:"-" gorm:"size:255;not null"`
	ResetToken        string     `json:"-" gorm:"size:64;index"`
	ResetTokenExpires *time.Time `json:"-"`
	LastLoginAt       *time.Time `json:"last_login_at"`
}

func (o *Operator) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	o.PasswordHash = string(hashedPassword)
	return nil
}

func (o *Operator) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(password))
}
