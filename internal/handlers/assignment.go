// internal/handlers/assignment.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/services"
	"github.com/refurbly/consign-backend/internal/utils"
)

// AssignmentHandler exposes the consignment lifecycle. Operators create and
// revoke; resellers confirm receipt, record sales and reverse them.
type AssignmentHandler struct {
	assignmentService *services.AssignmentService
}

func NewAssignmentHandler(assignmentService *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
	}
}

// POST /assignments
func (h *AssignmentHandler) Create(c *gin.Context) {
	operatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	assignment, err := h.assignmentService.Create(operatorID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, assignment)
}

// GET /assignments
func (h *AssignmentHandler) Search(c *gin.Context) {
	params := services.AssignmentSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	userTypeStr, _ := utils.GetUserTypeFromContext(c)
	if models.UserType(userTypeStr) == models.UserTypeReseller {
		// Resellers only ever see their own consignments.
		resellerID, ok := currentUserID(c)
		if !ok {
			return
		}
		params.ResellerID = &resellerID
	} else if resellerIDStr := c.Query("reseller_id"); resellerIDStr != "" {
		if resellerID, err := uuid.Parse(resellerIDStr); err == nil {
			params.ResellerID = &resellerID
		}
	}

	if deviceIDStr := c.Query("device_id"); deviceIDStr != "" {
		if deviceID, err := uuid.Parse(deviceIDStr); err == nil {
			params.DeviceID = &deviceID
		}
	}
	if status := c.Query("status"); status != "" {
		assignmentStatus := models.AssignmentStatus(status)
		params.Status = &assignmentStatus
	}

	assignments, total, err := h.assignmentService.Search(params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(assignments, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}

// GET /assignments/:id
func (h *AssignmentHandler) Get(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		return
	}
	userTypeStr, _ := utils.GetUserTypeFromContext(c)

	assignmentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	assignment, err := h.assignmentService.Get(assignmentID, callerID, models.UserType(userTypeStr))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, assignment)
}

// GET /assignments/:id/events
func (h *AssignmentHandler) GetEvents(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		return
	}
	userTypeStr, _ := utils.GetUserTypeFromContext(c)

	assignmentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	events, err := h.assignmentService.GetEvents(assignmentID, callerID, models.UserType(userTypeStr))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, events)
}

// POST /assignments/:id/receive
func (h *AssignmentHandler) ConfirmReceipt(c *gin.Context) {
	resellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	assignmentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	assignment, err := h.assignmentService.ConfirmReceipt(assignmentID, resellerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, assignment)
}

// POST /assignments/:id/sell
func (h *AssignmentHandler) ConfirmSale(c *gin.Context) {
	resellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	assignmentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.ConfirmSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	assignment, err := h.assignmentService.ConfirmSale(assignmentID, resellerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, assignment)
}

// POST /assignments/:id/reverse-sale
func (h *AssignmentHandler) ReverseSale(c *gin.Context) {
	resellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	assignmentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.ReverseSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	assignment, err := h.assignmentService.ReverseSale(assignmentID, resellerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, assignment)
}

// POST /assignments/:id/revoke
func (h *AssignmentHandler) Revoke(c *gin.Context) {
	operatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	assignmentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.RevokeAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	assignment, err := h.assignmentService.Revoke(assignmentID, operatorID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, assignment)
}

// GET /assignments/mine
func (h *AssignmentHandler) ListMine(c *gin.Context) {
	resellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	includeReturned := c.Query("include_returned") == "true"

	assignments, err := h.assignmentService.ListForReseller(resellerID, includeReturned)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, assignments)
}

// GET /assignments/stats
func (h *AssignmentHandler) Stats(c *gin.Context) {
	userTypeStr, _ := utils.GetUserTypeFromContext(c)

	var resellerID uuid.UUID
	if models.UserType(userTypeStr) == models.UserTypeReseller {
		id, ok := currentUserID(c)
		if !ok {
			return
		}
		resellerID = id
	} else {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		resellerID = id
	}

	stats, err := h.assignmentService.ComputeStats(resellerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}
