// internal/services/assignment_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/database"
	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/utils"
)

const (
	minRevokeReasonLen  = 5
	minReverseReasonLen = 10
)

// AssignmentService owns the consignment lifecycle: it is the only component
// that moves devices between listed_for_sale, sold and ready_for_sale, and the
// only writer of DeviceAssignment rows.
type AssignmentService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

type CreateAssignmentRequest struct {
	DeviceID     uuid.UUID `json:"device_id" validate:"required"`
	ResellerID   uuid.UUID `json:"reseller_id" validate:"required"`
	MinimumPrice float64   `json:"minimum_price" validate:"required,gt=0"`
	Notes        string    `json:"notes,omitempty"`
}

type ConfirmSaleRequest struct {
	ActualSalePrice float64 `json:"actual_sale_price" validate:"required,gt=0"`
	Note            string  `json:"note,omitempty"`
}

type ReverseSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=10"`
}

type RevokeAssignmentRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

type AssignmentStats struct {
	AssignedCount int64   `json:"assigned_count"`
	ReceivedCount int64   `json:"received_count"`
	SoldCount     int64   `json:"sold_count"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalProfit   float64 `json:"total_profit"`
}

type AssignmentSearchParams struct {
	utils.PaginationParams
	ResellerID *uuid.UUID               `json:"reseller_id,omitempty"`
	DeviceID   *uuid.UUID               `json:"device_id,omitempty"`
	Status     *models.AssignmentStatus `json:"status,omitempty"`
}

func NewAssignmentService(db *gorm.DB, notificationService *NotificationService) *AssignmentService {
	return &AssignmentService{
		db:                  db,
		notificationService: notificationService,
	}
}

// Create assigns a device to an active reseller and lists the device for
// sale. The device must carry no non-returned assignment.
func (s *AssignmentService) Create(operatorID uuid.UUID, req *CreateAssignmentRequest) (*models.DeviceAssignment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	var assignment *models.DeviceAssignment
	var reseller models.Reseller

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var device models.Device
		if err := tx.First(&device, "id = ?", req.DeviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "device", ID: req.DeviceID}
			}
			return fmt.Errorf("database error: %w", err)
		}

		if err := tx.First(&reseller, "id = ?", req.ResellerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "reseller", ID: req.ResellerID}
			}
			return fmt.Errorf("database error: %w", err)
		}

		if !reseller.IsActive {
			return &ValidationError{Message: "reseller is not active"}
		}

		if device.Status == models.DeviceStatusSold {
			return &ConflictError{Message: "device is already sold", DeviceID: device.ID}
		}

		var openCount int64
		if err := tx.Model(&models.DeviceAssignment{}).
			Where("device_id = ? AND status != ?", device.ID, models.AssignmentStatusReturned).
			Count(&openCount).Error; err != nil {
			return fmt.Errorf("failed to check existing assignments: %w", err)
		}
		if openCount > 0 {
			return &ConflictError{Message: "device already has an active assignment", DeviceID: device.ID}
		}

		assignment = &models.DeviceAssignment{
			DeviceID:     device.ID,
			ResellerID:   reseller.ID,
			MinimumPrice: req.MinimumPrice,
			Status:       models.AssignmentStatusAssigned,
			AssignedAt:   time.Now(),
			Notes:        req.Notes,
		}
		if err := tx.Create(assignment).Error; err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}

		if err := tx.Model(&models.Device{}).Where("id = ?", device.ID).
			Update("status", models.DeviceStatusListedForSale).Error; err != nil {
			return fmt.Errorf("failed to update device status: %w", err)
		}

		return s.appendEvent(tx, assignment.ID, models.UserTypeOperator, operatorID,
			models.AssignmentActionCreated, "", models.AssignmentStatusAssigned, req.Notes)
	})
	if err != nil {
		return nil, err
	}

	s.db.Preload("Device").First(assignment, assignment.ID)

	go s.notifyAssignmentCreated(&reseller, assignment)

	return assignment, nil
}

// ConfirmReceipt acknowledges physical receipt of the device by the reseller.
func (s *AssignmentService) ConfirmReceipt(assignmentID, callerResellerID uuid.UUID) (*models.DeviceAssignment, error) {
	var assignment *models.DeviceAssignment

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		a, err := s.loadOwned(tx, assignmentID, callerResellerID)
		if err != nil {
			return err
		}

		if a.Status != models.AssignmentStatusAssigned {
			return &StateError{Expected: models.AssignmentStatusAssigned, Actual: a.Status}
		}

		now := time.Now()
		if err := s.guardedTransition(tx, a.ID, models.AssignmentStatusAssigned, map[string]interface{}{
			"status":      models.AssignmentStatusReceived,
			"received_at": now,
		}); err != nil {
			return err
		}

		assignment = a
		return s.appendEvent(tx, a.ID, models.UserTypeReseller, callerResellerID,
			models.AssignmentActionReceived, models.AssignmentStatusAssigned, models.AssignmentStatusReceived, "")
	})
	if err != nil {
		return nil, err
	}

	return s.reload(assignment.ID)
}

// ConfirmSale records the reseller's sale. The device's selling price is set
// to the floor price: the operator's take is always the floor, the reseller
// keeps the excess.
func (s *AssignmentService) ConfirmSale(assignmentID, callerResellerID uuid.UUID, req *ConfirmSaleRequest) (*models.DeviceAssignment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	var assignment *models.DeviceAssignment

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		a, err := s.loadOwned(tx, assignmentID, callerResellerID)
		if err != nil {
			return err
		}

		if a.Status != models.AssignmentStatusReceived {
			return &StateError{Expected: models.AssignmentStatusReceived, Actual: a.Status}
		}

		if req.ActualSalePrice < a.MinimumPrice {
			return &PriceBelowFloorError{MinimumPrice: a.MinimumPrice, OfferedPrice: req.ActualSalePrice}
		}

		now := time.Now()
		if err := s.guardedTransition(tx, a.ID, models.AssignmentStatusReceived, map[string]interface{}{
			"status":            models.AssignmentStatusSold,
			"sold_at":           now,
			"actual_sale_price": req.ActualSalePrice,
		}); err != nil {
			return err
		}

		if err := tx.Model(&models.Device{}).Where("id = ?", a.DeviceID).Updates(map[string]interface{}{
			"status":               models.DeviceStatusSold,
			"sold_at":              now,
			"actual_selling_price": a.MinimumPrice,
		}).Error; err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}

		txn := &models.SaleTransaction{
			AssignmentID:     a.ID,
			DeviceID:         a.DeviceID,
			ResellerID:       a.ResellerID,
			SalePrice:        req.ActualSalePrice,
			OperatorProceeds: a.MinimumPrice,
			ResellerMargin:   req.ActualSalePrice - a.MinimumPrice,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to record sale transaction: %w", err)
		}

		assignment = a
		return s.appendEvent(tx, a.ID, models.UserTypeReseller, callerResellerID,
			models.AssignmentActionSold, models.AssignmentStatusReceived, models.AssignmentStatusSold, req.Note)
	})
	if err != nil {
		return nil, err
	}

	go s.notifySaleConfirmed(assignment.ID)

	return s.reload(assignment.ID)
}

// ReverseSale undoes a confirmed sale, returning the assignment to received
// and the device to listed_for_sale. Requires a justification of at least ten
// characters which becomes part of the permanent audit trail.
func (s *AssignmentService) ReverseSale(assignmentID, callerResellerID uuid.UUID, req *ReverseSaleRequest) (*models.DeviceAssignment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("reversal reason must be at least %d characters", minReverseReasonLen)}
	}

	var assignment *models.DeviceAssignment

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		a, err := s.loadOwned(tx, assignmentID, callerResellerID)
		if err != nil {
			return err
		}

		if a.Status != models.AssignmentStatusSold {
			return &StateError{Expected: models.AssignmentStatusSold, Actual: a.Status}
		}

		if err := s.guardedTransition(tx, a.ID, models.AssignmentStatusSold, map[string]interface{}{
			"status":            models.AssignmentStatusReceived,
			"sold_at":           nil,
			"actual_sale_price": nil,
		}); err != nil {
			return err
		}

		if err := tx.Model(&models.Device{}).Where("id = ?", a.DeviceID).Updates(map[string]interface{}{
			"status":               models.DeviceStatusListedForSale,
			"sold_at":              nil,
			"actual_selling_price": nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}

		now := time.Now()
		if err := tx.Model(&models.SaleTransaction{}).
			Where("assignment_id = ? AND reversed = ?", a.ID, false).
			Updates(map[string]interface{}{
				"reversed":        true,
				"reversed_at":     now,
				"reversal_reason": req.Reason,
			}).Error; err != nil {
			return fmt.Errorf("failed to reverse sale transaction: %w", err)
		}

		assignment = a
		return s.appendEvent(tx, a.ID, models.UserTypeReseller, callerResellerID,
			models.AssignmentActionSaleReversed, models.AssignmentStatusSold, models.AssignmentStatusReceived, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(assignment.ID)
}

// Revoke is the operator-initiated termination of an assignment before sale.
// The device goes back into inventory as ready_for_sale.
func (s *AssignmentService) Revoke(assignmentID, operatorID uuid.UUID, req *RevokeAssignmentRequest) (*models.DeviceAssignment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("revoke reason must be at least %d characters", minRevokeReasonLen)}
	}

	var assignment *models.DeviceAssignment

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var a models.DeviceAssignment
		if err := tx.First(&a, "id = ?", assignmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "assignment", ID: assignmentID}
			}
			return fmt.Errorf("database error: %w", err)
		}

		if a.Status != models.AssignmentStatusAssigned && a.Status != models.AssignmentStatusReceived {
			return &StateError{Expected: models.AssignmentStatusAssigned, Actual: a.Status}
		}

		if err := s.guardedTransition(tx, a.ID, a.Status, map[string]interface{}{
			"status": models.AssignmentStatusReturned,
		}); err != nil {
			return err
		}

		if err := tx.Model(&models.Device{}).Where("id = ?", a.DeviceID).
			Update("status", models.DeviceStatusReadyForSale).Error; err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}

		assignment = &a
		return s.appendEvent(tx, a.ID, models.UserTypeOperator, operatorID,
			models.AssignmentActionRevoked, a.Status, models.AssignmentStatusReturned, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(assignment.ID)
}

// Get returns one assignment. Resellers can only read their own.
func (s *AssignmentService) Get(assignmentID uuid.UUID, callerID uuid.UUID, callerType models.UserType) (*models.DeviceAssignment, error) {
	var assignment models.DeviceAssignment
	if err := s.db.Preload("Device").First(&assignment, "id = ?", assignmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "assignment", ID: assignmentID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if callerType == models.UserTypeReseller && assignment.ResellerID != callerID {
		return nil, &UnauthorizedError{Message: "assignment belongs to another reseller"}
	}

	return &assignment, nil
}

// GetEvents returns the assignment's audit trail in chronological order.
func (s *AssignmentService) GetEvents(assignmentID uuid.UUID, callerID uuid.UUID, callerType models.UserType) ([]models.AssignmentEvent, error) {
	if _, err := s.Get(assignmentID, callerID, callerType); err != nil {
		return nil, err
	}

	var events []models.AssignmentEvent
	if err := s.db.Where("assignment_id = ?", assignmentID).
		Order("created_at asc").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	return events, nil
}

// ListForReseller returns a reseller's assignments, excluding returned ones
// unless asked for.
func (s *AssignmentService) ListForReseller(resellerID uuid.UUID, includeReturned bool) ([]models.DeviceAssignment, error) {
	query := s.db.Preload("Device").Where("reseller_id = ?", resellerID)
	if !includeReturned {
		query = query.Where("status != ?", models.AssignmentStatusReturned)
	}

	var assignments []models.DeviceAssignment
	if err := query.Order("assigned_at desc").Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}

	return assignments, nil
}

// Search lists assignments for the operator console with filters and
// pagination.
func (s *AssignmentService) Search(params AssignmentSearchParams) ([]models.DeviceAssignment, int64, error) {
	query := s.db.Model(&models.DeviceAssignment{}).Preload("Device")

	if params.ResellerID != nil {
		query = query.Where("reseller_id = ?", *params.ResellerID)
	}
	if params.DeviceID != nil {
		query = query.Where("device_id = ?", *params.DeviceID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count assignments: %w", err)
	}

	allowedSortFields := []string{"created_at", "assigned_at", "sold_at", "status", "minimum_price"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var assignments []models.DeviceAssignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch assignments: %w", err)
	}

	return assignments, total, nil
}

// ComputeStats aggregates a reseller's performance. Returned assignments are
// excluded: revoked devices count neither for nor against the reseller.
func (s *AssignmentService) ComputeStats(resellerID uuid.UUID) (*AssignmentStats, error) {
	stats := &AssignmentStats{}

	counts := []struct {
		status models.AssignmentStatus
		target *int64
	}{
		{models.AssignmentStatusAssigned, &stats.AssignedCount},
		{models.AssignmentStatusReceived, &stats.ReceivedCount},
		{models.AssignmentStatusSold, &stats.SoldCount},
	}
	for _, c := range counts {
		if err := s.db.Model(&models.DeviceAssignment{}).
			Where("reseller_id = ? AND status = ?", resellerID, c.status).
			Count(c.target).Error; err != nil {
			return nil, fmt.Errorf("failed to count assignments: %w", err)
		}
	}

	if err := s.db.Model(&models.DeviceAssignment{}).
		Where("reseller_id = ? AND status = ?", resellerID, models.AssignmentStatusSold).
		Select("COALESCE(SUM(actual_sale_price), 0)").
		Scan(&stats.TotalRevenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	if err := s.db.Model(&models.DeviceAssignment{}).
		Where("reseller_id = ? AND status = ?", resellerID, models.AssignmentStatusSold).
		Select("COALESCE(SUM(actual_sale_price - minimum_price), 0)").
		Scan(&stats.TotalProfit).Error; err != nil {
		return nil, fmt.Errorf("failed to sum profit: %w", err)
	}

	return stats, nil
}

// loadOwned fetches an assignment and checks reseller ownership.
func (s *AssignmentService) loadOwned(tx *gorm.DB, assignmentID, callerResellerID uuid.UUID) (*models.DeviceAssignment, error) {
	var a models.DeviceAssignment
	if err := tx.First(&a, "id = ?", assignmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "assignment", ID: assignmentID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if a.ResellerID != callerResellerID {
		return nil, &UnauthorizedError{Message: "assignment belongs to another reseller"}
	}

	return &a, nil
}

// guardedTransition applies a status change only if the row still carries the
// expected source status. Zero affected rows means another request moved the
// assignment first.
func (s *AssignmentService) guardedTransition(tx *gorm.DB, assignmentID uuid.UUID, expected models.AssignmentStatus, updates map[string]interface{}) error {
	result := tx.Model(&models.DeviceAssignment{}).
		Where("id = ? AND status = ?", assignmentID, expected).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &StateError{Expected: expected, Conflict: true}
	}
	return nil
}

func (s *AssignmentService) appendEvent(tx *gorm.DB, assignmentID uuid.UUID, actorType models.UserType, actorID uuid.UUID,
	action models.AssignmentAction, from, to models.AssignmentStatus, reason string) error {
	event := &models.AssignmentEvent{
		AssignmentID: assignmentID,
		ActorType:    actorType,
		ActorID:      actorID,
		Action:       action,
		FromStatus:   from,
		ToStatus:     to,
		Reason:       reason,
	}
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (s *AssignmentService) reload(assignmentID uuid.UUID) (*models.DeviceAssignment, error) {
	var assignment models.DeviceAssignment
	if err := s.db.Preload("Device").First(&assignment, "id = ?", assignmentID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload assignment: %w", err)
	}
	return &assignment, nil
}

// Notification helpers; fired outside the transaction boundary.

func (s *AssignmentService) notifyAssignmentCreated(reseller *models.Reseller, assignment *models.DeviceAssignment) {
	if s.notificationService != nil {
		s.notificationService.SendAssignmentCreated(reseller, assignment)
	}
}

func (s *AssignmentService) notifySaleConfirmed(assignmentID uuid.UUID) {
	if s.notificationService == nil {
		return
	}

	var assignment models.DeviceAssignment
	if err := s.db.Preload("Device").First(&assignment, "id = ?", assignmentID).Error; err != nil {
		return
	}
	var reseller models.Reseller
	if err := s.db.First(&reseller, "id = ?", assignment.ResellerID).Error; err != nil {
		return
	}

	s.notificationService.SendSaleConfirmed(&reseller, &assignment)
}
