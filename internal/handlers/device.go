// internal/handlers/device.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/services"
	"github.com/refurbly/consign-backend/internal/utils"
)

type DeviceHandler struct {
	deviceService  *services.DeviceService
	storageService *services.StorageService
}

func NewDeviceHandler(deviceService *services.DeviceService, storageService *services.StorageService) *DeviceHandler {
	return &DeviceHandler{
		deviceService:  deviceService,
		storageService: storageService,
	}
}

// POST /devices
func (h *DeviceHandler) Intake(c *gin.Context) {
	var req services.IntakeDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	device, err := h.deviceService.Intake(&req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, device)
}

// GET /devices
func (h *DeviceHandler) Search(c *gin.Context) {
	params := services.DeviceSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if status := c.Query("status"); status != "" {
		deviceStatus := models.DeviceStatus(status)
		params.Status = &deviceStatus
	}

	devices, total, err := h.deviceService.Search(params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(devices, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}

// GET /devices/:id
func (h *DeviceHandler) Get(c *gin.Context) {
	deviceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	device, err := h.deviceService.Get(deviceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, device)
}

// PUT /devices/:id
func (h *DeviceHandler) Update(c *gin.Context) {
	deviceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	device, err := h.deviceService.Update(deviceID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, device)
}

// POST /devices/:id/start-repair
func (h *DeviceHandler) StartRepair(c *gin.Context) {
	deviceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	device, err := h.deviceService.StartRepair(deviceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, device)
}

// POST /devices/:id/mark-ready
func (h *DeviceHandler) MarkReady(c *gin.Context) {
	deviceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	device, err := h.deviceService.MarkReady(deviceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, device)
}

// POST /devices/:id/parts
func (h *DeviceHandler) AddRepairPart(c *gin.Context) {
	deviceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.AddRepairPartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	device, err := h.deviceService.AddRepairPart(deviceID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, device)
}

// DELETE /devices/:id/parts/:partId
func (h *DeviceHandler) RemoveRepairPart(c *gin.Context) {
	deviceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	repairPartID, ok := pathUUID(c, "partId")
	if !ok {
		return
	}

	device, err := h.deviceService.RemoveRepairPart(deviceID, repairPartID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, device)
}

// POST /devices/:id/photos
func (h *DeviceHandler) UploadPhoto(c *gin.Context) {
	deviceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		utils.BadRequestResponse(c, "Photo file is required", err.Error())
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadFile(file, header, services.DevicePhotoOptions())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	photo, err := h.deviceService.AttachPhoto(deviceID, result.URL, result.Key, result.MimeType, result.Size)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, photo)
}

// DELETE /devices/:id
func (h *DeviceHandler) Delete(c *gin.Context) {
	deviceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.deviceService.Delete(deviceID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "device deleted"})
}
