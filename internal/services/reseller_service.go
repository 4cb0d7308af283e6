// internal/services/reseller_service.go
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

// ResellerService is the registry plus the offboarding coordinator. A reseller
// holding inventory (assigned or received) can be neither deactivated nor
// deleted until the engine has revoked or sold every active assignment.
type ResellerService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

type RegisterResellerRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=255"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=50"`
}

type UpdateResellerRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Phone           *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	StripeAccountID *string `json:"stripe_account_id,omitempty"`
}

type DeactivateResellerRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

type DeleteResellerRequest struct {
	Reason    string `json:"reason" validate:"required,min=5"`
	Confirmed bool   `json:"confirmed"`
}

func NewResellerService(db *gorm.DB, notificationService *NotificationService) *ResellerService {
	return &ResellerService{
		db:                  db,
		notificationService: notificationService,
	}
}

// Register creates a reseller account with a generated temporary password,
// which is mailed to them.
func (s *ResellerService) Register(req *RegisterResellerRequest) (*models.Reseller, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	var existing models.Reseller
	if err := s.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return nil, &ValidationError{Message: "reseller with this email already exists"}
	}

	tempPassword, err := utils.GenerateTempPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate temporary password: %w", err)
	}

	reseller := &models.Reseller{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		IsActive: true,
	}
	if err := reseller.SetPassword(tempPassword); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.db.Create(reseller).Error; err != nil {
		return nil, fmt.Errorf("failed to create reseller: %w", err)
	}

	go s.sendWelcome(reseller, tempPassword)

	return reseller, nil
}

func (s *ResellerService) Get(resellerID uuid.UUID) (*models.Reseller, error) {
	var reseller models.Reseller
	if err := s.db.First(&reseller, "id = ?", resellerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "reseller", ID: resellerID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &reseller, nil
}

func (s *ResellerService) List(params utils.PaginationParams) ([]models.Reseller, int64, error) {
	query := s.db.Model(&models.Reseller{})

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count resellers: %w", err)
	}

	allowedSortFields := []string{"created_at", "name", "email"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var resellers []models.Reseller
	if err := query.Find(&resellers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch resellers: %w", err)
	}

	return resellers, total, nil
}

func (s *ResellerService) Update(resellerID uuid.UUID, req *UpdateResellerRequest) (*models.Reseller, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	reseller, err := s.Get(resellerID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		reseller.Name = *req.Name
	}
	if req.Phone != nil {
		reseller.Phone = *req.Phone
	}
	if req.StripeAccountID != nil {
		reseller.StripeAccountID = *req.StripeAccountID
	}

	if err := s.db.Save(reseller).Error; err != nil {
		return nil, fmt.Errorf("failed to update reseller: %w", err)
	}

	return reseller, nil
}

// Deactivate suspends a reseller without active inventory. Reversible via
// Activate.
func (s *ResellerService) Deactivate(resellerID uuid.UUID, req *DeactivateResellerRequest) (*models.Reseller, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	reseller, err := s.Get(resellerID)
	if err != nil {
		return nil, err
	}

	if err := s.checkNoActiveAssignments(s.db, resellerID); err != nil {
		return nil, err
	}

	now := time.Now()
	reseller.IsActive = false
	reseller.DeactivationReason = req.Reason
	reseller.DeactivatedAt = &now

	if err := s.db.Save(reseller).Error; err != nil {
		return nil, fmt.Errorf("failed to deactivate reseller: %w", err)
	}

	return reseller, nil
}

// Activate reinstates a deactivated reseller. No preconditions beyond
// existence.
func (s *ResellerService) Activate(resellerID uuid.UUID) (*models.Reseller, error) {
	reseller, err := s.Get(resellerID)
	if err != nil {
		return nil, err
	}

	reseller.IsActive = true
	reseller.DeactivationReason = ""
	reseller.DeactivatedAt = nil

	if err := s.db.Save(reseller).Error; err != nil {
		return nil, fmt.Errorf("failed to activate reseller: %w", err)
	}

	return reseller, nil
}

// Delete permanently removes a reseller from the registry. Their terminal
// assignments are retained for revenue accounting: the reseller id on those
// rows becomes a dangling weak reference, with the reseller's name
// snapshotted onto each row so historical records stay self-contained.
func (s *ResellerService) Delete(resellerID, operatorID uuid.UUID, req *DeleteResellerRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}
	if !req.Confirmed {
		return &ValidationError{Message: "deletion must be explicitly confirmed"}
	}

	reseller, err := s.Get(resellerID)
	if err != nil {
		return err
	}

	if err := s.checkNoActiveAssignments(s.db, resellerID); err != nil {
		return err
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// Defensive re-check inside the transaction: anything that slipped
		// into an active state since the check above is forced back into
		// inventory.
		var stillActive []models.DeviceAssignment
		if err := tx.Where("reseller_id = ? AND status IN ?", resellerID,
			[]models.AssignmentStatus{models.AssignmentStatusAssigned, models.AssignmentStatusReceived}).
			Find(&stillActive).Error; err != nil {
			return fmt.Errorf("failed to re-check assignments: %w", err)
		}

		for i := range stillActive {
			a := &stillActive[i]
			result := tx.Model(&models.DeviceAssignment{}).
				Where("id = ? AND status = ?", a.ID, a.Status).
				Update("status", models.AssignmentStatusReturned)
			if result.Error != nil {
				return fmt.Errorf("failed to force-return assignment: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return &StateError{Expected: a.Status, Conflict: true}
			}

			if err := tx.Model(&models.Device{}).Where("id = ?", a.DeviceID).
				Update("status", models.DeviceStatusReadyForSale).Error; err != nil {
				return fmt.Errorf("failed to return device to inventory: %w", err)
			}
		}

		// Snapshot the reseller's display name and note the deletion on every
		// assignment they ever held.
		var all []models.DeviceAssignment
		if err := tx.Where("reseller_id = ?", resellerID).Find(&all).Error; err != nil {
			return fmt.Errorf("failed to fetch assignments: %w", err)
		}

		if err := tx.Model(&models.DeviceAssignment{}).
			Where("reseller_id = ?", resellerID).
			Update("reseller_name", reseller.Name).Error; err != nil {
			return fmt.Errorf("failed to snapshot reseller name: %w", err)
		}

		for _, a := range all {
			to := a.Status
			if a.Status == models.AssignmentStatusAssigned || a.Status == models.AssignmentStatusReceived {
				to = models.AssignmentStatusReturned
			}
			event := &models.AssignmentEvent{
				AssignmentID: a.ID,
				ActorType:    models.UserTypeOperator,
				ActorID:      operatorID,
				Action:       models.AssignmentActionResellerDeleted,
				FromStatus:   a.Status,
				ToStatus:     to,
				Reason:       req.Reason,
			}
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("failed to append audit event: %w", err)
			}
		}

		if err := tx.Unscoped().Delete(&models.Reseller{}, "id = ?", resellerID).Error; err != nil {
			return fmt.Errorf("failed to delete reseller: %w", err)
		}

		return nil
	})
}

// checkNoActiveAssignments fails with the list of blocking assignments if the
// reseller still holds inventory.
func (s *ResellerService) checkNoActiveAssignments(db *gorm.DB, resellerID uuid.UUID) error {
	var active []models.DeviceAssignment
	if err := db.Where("reseller_id = ? AND status IN ?", resellerID,
		[]models.AssignmentStatus{models.AssignmentStatusAssigned, models.AssignmentStatusReceived}).
		Find(&active).Error; err != nil {
		return fmt.Errorf("failed to check active assignments: %w", err)
	}

	if len(active) == 0 {
		return nil
	}

	blocking := make([]BlockingAssignment, 0, len(active))
	for _, a := range active {
		blocking = append(blocking, BlockingAssignment{
			AssignmentID: a.ID,
			DeviceID:     a.DeviceID,
			Status:       a.Status,
		})
	}

	return &ActiveAssignmentsExistError{ResellerID: resellerID, Blocking: blocking}
}

func (s *ResellerService) sendWelcome(reseller *models.Reseller, tempPassword string) {
	if s.notificationService != nil {
		s.notificationService.SendResellerWelcome(reseller, tempPassword)
	}
}
