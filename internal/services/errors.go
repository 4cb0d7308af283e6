// internal/services/errors.go
package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/refurbly/consign-backend/internal/models"
)

// ValidationError is malformed or out-of-range input. Recoverable by the
// caller correcting the request; never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError is a missing device, reseller, operator or assignment.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// UnauthorizedError is a caller acting on a record they do not own.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

// StateError is a transition attempted from the wrong source state. Conflict
// is set when the guarded write detected a concurrent transition, i.e. the
// status matched at read time but changed before the update landed.
type StateError struct {
	Expected models.AssignmentStatus
	Actual   models.AssignmentStatus
	Conflict bool
}

func (e *StateError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("assignment was modified concurrently: expected status %q", e.Expected)
	}
	return fmt.Sprintf("invalid transition: expected status %q, current status is %q", e.Expected, e.Actual)
}

// PriceBelowFloorError is a sale price under the assignment's floor price.
type PriceBelowFloorError struct {
	MinimumPrice float64
	OfferedPrice float64
}

func (e *PriceBelowFloorError) Error() string {
	return fmt.Sprintf("sale price %.2f is below the minimum price %.2f", e.OfferedPrice, e.MinimumPrice)
}

// ConflictError is a device that already carries a non-returned assignment
// (or is otherwise unavailable) at assignment-creation time.
type ConflictError struct {
	Message  string
	DeviceID uuid.UUID
}

func (e *ConflictError) Error() string {
	return e.Message
}

// BlockingAssignment identifies one assignment preventing reseller offboarding.
type BlockingAssignment struct {
	AssignmentID uuid.UUID               `json:"assignment_id"`
	DeviceID     uuid.UUID               `json:"device_id"`
	Status       models.AssignmentStatus `json:"status"`
}

// ActiveAssignmentsExistError blocks deactivation or deletion of a reseller
// still holding inventory; Blocking lists what has to be resolved first.
type ActiveAssignmentsExistError struct {
	ResellerID uuid.UUID
	Blocking   []BlockingAssignment
}

func (e *ActiveAssignmentsExistError) Error() string {
	return fmt.Sprintf("reseller %s has %d active assignments", e.ResellerID, len(e.Blocking))
}
