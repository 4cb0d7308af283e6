// internal/handlers/settlement.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/services"
	"github.com/refurbly/consign-backend/internal/utils"
)

type SettlementHandler struct {
	settlementService *services.SettlementService
}

func NewSettlementHandler(settlementService *services.SettlementService) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
	}
}

// GET /payouts/balance
func (h *SettlementHandler) Balance(c *gin.Context) {
	resellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	balance, err := h.settlementService.Balance(resellerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, balance)
}

// POST /payouts
func (h *SettlementHandler) RequestPayout(c *gin.Context) {
	resellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	payout, err := h.settlementService.RequestPayout(resellerID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, payout)
}

// GET /payouts
func (h *SettlementHandler) ListPayouts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var resellerID *uuid.UUID
	userTypeStr, _ := utils.GetUserTypeFromContext(c)
	if models.UserType(userTypeStr) == models.UserTypeReseller {
		id, ok := currentUserID(c)
		if !ok {
			return
		}
		resellerID = &id
	} else if resellerIDStr := c.Query("reseller_id"); resellerIDStr != "" {
		if id, err := uuid.Parse(resellerIDStr); err == nil {
			resellerID = &id
		}
	}

	payouts, total, err := h.settlementService.ListPayouts(resellerID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(payouts, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /transactions
func (h *SettlementHandler) ListTransactions(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var resellerID *uuid.UUID
	userTypeStr, _ := utils.GetUserTypeFromContext(c)
	if models.UserType(userTypeStr) == models.UserTypeReseller {
		id, ok := currentUserID(c)
		if !ok {
			return
		}
		resellerID = &id
	} else if resellerIDStr := c.Query("reseller_id"); resellerIDStr != "" {
		if id, err := uuid.Parse(resellerIDStr); err == nil {
			resellerID = &id
		}
	}

	transactions, total, err := h.settlementService.ListTransactions(resellerID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /payouts/:id/process
func (h *SettlementHandler) ProcessPayout(c *gin.Context) {
	operatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	payoutID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	payout, err := h.settlementService.ProcessPayout(payoutID, operatorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, payout)
}

// POST /payouts/:id/reject
func (h *SettlementHandler) RejectPayout(c *gin.Context) {
	operatorID, ok := currentUserID(c)
	if !ok {
		return
	}

	payoutID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.RejectPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	payout, err := h.settlementService.RejectPayout(payoutID, operatorID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, payout)
}
