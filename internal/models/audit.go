// internal/models/audit.go
package models

import (
	"github.com/google/uuid"
)

// AuditLog captures every mutating HTTP request, written asynchronously by the
// logging middleware.
type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	UserType     string     `json:"user_type,omitempty" gorm:"size:20"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	RequestBody  JSONB      `json:"request_body" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`
}
