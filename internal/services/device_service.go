// internal/services/device_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/database"
	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/utils"
)

// DeviceService is the device ledger: intake, repair-cost tracking and the
// pricing calculator. It moves devices purchased -> in_repair ->
// ready_for_sale; everything beyond that belongs to the assignment engine.
type DeviceService struct {
	db *gorm.DB
}

type IntakeDeviceRequest struct {
	Label         string  `json:"label" validate:"required,min=2,max=255"`
	Manufacturer  string  `json:"manufacturer,omitempty" validate:"omitempty,max=100"`
	Model         string  `json:"model,omitempty" validate:"omitempty,max=100"`
	SerialNumber  string  `json:"serial_number" validate:"required,max=100"`
	Condition     string  `json:"condition,omitempty" validate:"omitempty,max=50"`
	PurchasePrice float64 `json:"purchase_price" validate:"required,gt=0"`
	DesiredProfit float64 `json:"desired_profit" validate:"omitempty,gte=0"`
	Notes         string  `json:"notes,omitempty"`
}

type UpdateDeviceRequest struct {
	Label         *string  `json:"label,omitempty" validate:"omitempty,min=2,max=255"`
	Condition     *string  `json:"condition,omitempty" validate:"omitempty,max=50"`
	DesiredProfit *float64 `json:"desired_profit,omitempty" validate:"omitempty,gte=0"`
	Notes         *string  `json:"notes,omitempty"`
}

type AddRepairPartRequest struct {
	PartID   uuid.UUID `json:"part_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

type DeviceSearchParams struct {
	utils.PaginationParams
	Status *models.DeviceStatus `json:"status,omitempty"`
}

func NewDeviceService(db *gorm.DB) *DeviceService {
	return &DeviceService{db: db}
}

// Intake registers a newly purchased device on the ledger.
func (s *DeviceService) Intake(req *IntakeDeviceRequest) (*models.Device, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	var existing models.Device
	if err := s.db.Where("serial_number = ?", req.SerialNumber).First(&existing).Error; err == nil {
		return nil, &ValidationError{Message: "device with this serial number already exists"}
	}

	device := &models.Device{
		Label:         req.Label,
		Manufacturer:  req.Manufacturer,
		Model:         req.Model,
		SerialNumber:  req.SerialNumber,
		Condition:     req.Condition,
		Status:        models.DeviceStatusPurchased,
		PurchasePrice: req.PurchasePrice,
		DesiredProfit: req.DesiredProfit,
		Notes:         req.Notes,
	}
	device.RecalculatePricing(nil)

	if err := s.db.Create(device).Error; err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	return device, nil
}

func (s *DeviceService) Get(deviceID uuid.UUID) (*models.Device, error) {
	var device models.Device
	if err := s.db.Preload("RepairParts.Part").Preload("Photos").
		First(&device, "id = ?", deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "device", ID: deviceID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &device, nil
}

func (s *DeviceService) Search(params DeviceSearchParams) ([]models.Device, int64, error) {
	query := s.db.Model(&models.Device{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("label LIKE ? OR serial_number LIKE ? OR manufacturer LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	allowedSortFields := []string{"created_at", "label", "status", "list_price", "purchase_price"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var devices []models.Device
	if err := query.Find(&devices).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch devices: %w", err)
	}

	return devices, total, nil
}

func (s *DeviceService) Update(deviceID uuid.UUID, req *UpdateDeviceRequest) (*models.Device, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	device, err := s.Get(deviceID)
	if err != nil {
		return nil, err
	}

	if req.Label != nil {
		device.Label = *req.Label
	}
	if req.Condition != nil {
		device.Condition = *req.Condition
	}
	if req.DesiredProfit != nil {
		device.DesiredProfit = *req.DesiredProfit
	}
	if req.Notes != nil {
		device.Notes = *req.Notes
	}
	device.RecalculatePricing(device.RepairParts)

	if err := s.db.Save(device).Error; err != nil {
		return nil, fmt.Errorf("failed to update device: %w", err)
	}

	return device, nil
}

// StartRepair moves a freshly purchased device onto the bench.
func (s *DeviceService) StartRepair(deviceID uuid.UUID) (*models.Device, error) {
	return s.ledgerTransition(deviceID, models.DeviceStatusPurchased, models.DeviceStatusInRepair)
}

// MarkReady puts a repaired device back into sellable inventory.
func (s *DeviceService) MarkReady(deviceID uuid.UUID) (*models.Device, error) {
	device, err := s.Get(deviceID)
	if err != nil {
		return nil, err
	}
	if device.Status != models.DeviceStatusPurchased && device.Status != models.DeviceStatusInRepair {
		return nil, &ValidationError{Message: fmt.Sprintf("device cannot be marked ready from status %q", device.Status)}
	}
	return s.ledgerTransition(deviceID, device.Status, models.DeviceStatusReadyForSale)
}

func (s *DeviceService) ledgerTransition(deviceID uuid.UUID, from, to models.DeviceStatus) (*models.Device, error) {
	device, err := s.Get(deviceID)
	if err != nil {
		return nil, err
	}
	if device.Status != from {
		return nil, &ValidationError{Message: fmt.Sprintf("device cannot move to %q from status %q", to, device.Status)}
	}

	if err := s.db.Model(&models.Device{}).Where("id = ?", deviceID).
		Update("status", to).Error; err != nil {
		return nil, fmt.Errorf("failed to update device status: %w", err)
	}

	device.Status = to
	return device, nil
}

// AddRepairPart attaches a catalog part to the device's repair, snapshotting
// the current unit cost, and recomputes the derived pricing fields.
func (s *DeviceService) AddRepairPart(deviceID uuid.UUID, req *AddRepairPartRequest) (*models.Device, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var device models.Device
		if err := tx.First(&device, "id = ?", deviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "device", ID: deviceID}
			}
			return fmt.Errorf("database error: %w", err)
		}

		if device.Status != models.DeviceStatusPurchased && device.Status != models.DeviceStatusInRepair {
			return &ValidationError{Message: "repair parts can only be changed before the device is ready for sale"}
		}

		var part models.Part
		if err := tx.First(&part, "id = ?", req.PartID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "part", ID: req.PartID}
			}
			return fmt.Errorf("database error: %w", err)
		}

		repairPart := &models.DeviceRepairPart{
			DeviceID: deviceID,
			PartID:   part.ID,
			Quantity: req.Quantity,
			UnitCost: part.UnitCost,
		}
		if err := tx.Create(repairPart).Error; err != nil {
			return fmt.Errorf("failed to add repair part: %w", err)
		}

		return s.recalcPricing(tx, &device)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(deviceID)
}

// RemoveRepairPart detaches a repair part and recomputes pricing.
func (s *DeviceService) RemoveRepairPart(deviceID, repairPartID uuid.UUID) (*models.Device, error) {
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var device models.Device
		if err := tx.First(&device, "id = ?", deviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "device", ID: deviceID}
			}
			return fmt.Errorf("database error: %w", err)
		}

		result := tx.Where("id = ? AND device_id = ?", repairPartID, deviceID).
			Delete(&models.DeviceRepairPart{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove repair part: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return &NotFoundError{Resource: "repair part", ID: repairPartID}
		}

		return s.recalcPricing(tx, &device)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(deviceID)
}

// AttachPhoto persists the storage record for an uploaded device photo.
func (s *DeviceService) AttachPhoto(deviceID uuid.UUID, url, storageKey, mimeType string, size int64) (*models.DevicePhoto, error) {
	if _, err := s.Get(deviceID); err != nil {
		return nil, err
	}

	photo := &models.DevicePhoto{
		DeviceID:   deviceID,
		URL:        url,
		StorageKey: storageKey,
		MimeType:   mimeType,
		Size:       size,
	}
	if err := s.db.Create(photo).Error; err != nil {
		return nil, fmt.Errorf("failed to save photo record: %w", err)
	}

	return photo, nil
}

// Delete removes a device that never entered circulation.
func (s *DeviceService) Delete(deviceID uuid.UUID) error {
	device, err := s.Get(deviceID)
	if err != nil {
		return err
	}

	if device.Status != models.DeviceStatusPurchased {
		return &ValidationError{Message: "only devices still in purchased status can be deleted"}
	}

	var assignmentCount int64
	if err := s.db.Model(&models.DeviceAssignment{}).
		Where("device_id = ?", deviceID).Count(&assignmentCount).Error; err != nil {
		return fmt.Errorf("failed to check assignments: %w", err)
	}
	if assignmentCount > 0 {
		return &ConflictError{Message: "device has assignment history and cannot be deleted", DeviceID: deviceID}
	}

	if err := s.db.Delete(&models.Device{}, "id = ?", deviceID).Error; err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	return nil
}

func (s *DeviceService) recalcPricing(tx *gorm.DB, device *models.Device) error {
	var parts []models.DeviceRepairPart
	if err := tx.Where("device_id = ?", device.ID).Find(&parts).Error; err != nil {
		return fmt.Errorf("failed to fetch repair parts: %w", err)
	}

	device.RecalculatePricing(parts)

	if err := tx.Model(&models.Device{}).Where("id = ?", device.ID).Updates(map[string]interface{}{
		"repair_parts_cost": device.RepairPartsCost,
		"list_price":        device.ListPrice,
	}).Error; err != nil {
		return fmt.Errorf("failed to update pricing: %w", err)
	}

	return nil
}
