// internal/handlers/reseller.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/refurbly/consign-backend/internal/services"
	"github.com/refurbly/consign-backend/internal/utils"
)

// ResellerHandler is operator-facing: registration, account management and
// the offboarding flow (deactivate, activate, delete).
type ResellerHandler struct {
	resellerService *services.ResellerService
}

func NewResellerHandler(resellerService *services.ResellerService) *ResellerHandler {
	return &ResellerHandler{
		resellerService: resellerService,
	}
}

// POST /resellers
func (h *ResellerHandler) Register(c *gin.Context) {
	var req services.RegisterResellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	reseller, err := h.resellerService.Register(&req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, reseller)
}

// GET /resellers
func (h *ResellerHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	resellers, total, err := h.resellerService.List(params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(resellers, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /resellers/:id
func (h *ResellerHandler) Get(c *gin.Context) {
	resellerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	reseller, err := h.resellerService.Get(resellerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, reseller)
}

// PUT /resellers/:id
func (h *ResellerHandler) Update(c *gin.Context) {
	resellerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateResellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	reseller, err := h.resellerService.Update(resellerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, reseller)
}

// POST /resellers/:id/deactivate
func (h *ResellerHandler) Deactivate(c *gin.Context) {
	resellerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.DeactivateResellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	reseller, err := h.resellerService.Deactivate(resellerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, reseller)
}

// POST /resellers/:id/activate
func (h *ResellerHandler) Activate(c *gin.Context) {
	resellerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	reseller, err := h.resellerService.Activate(resellerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, reseller)
}

// DELETE /resellers/:id
func (h *ResellerHandler) Delete(c *gin.Context) {
	operatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	resellerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.DeleteResellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if err := h.resellerService.Delete(resellerID, operatorID, &req); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "reseller deleted"})
}
