// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/refurbly/consign-backend/internal/services"
	"github.com/refurbly/consign-backend/internal/utils"
)

type AdminHandler struct {
	adminService   *services.AdminService
	catalogService *services.CatalogService
}

func NewAdminHandler(adminService *services.AdminService, catalogService *services.CatalogService) *AdminHandler {
	return &AdminHandler{
		adminService:   adminService,
		catalogService: catalogService,
	}
}

// GET /admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}

// POST /admin/catalog/sync
func (h *AdminHandler) SyncCatalog(c *gin.Context) {
	result, err := h.catalogService.Sync(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /parts
func (h *AdminHandler) ListParts(c *gin.Context) {
	params := services.PartSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		Vendor:           c.Query("vendor"),
		Category:         c.Query("category"),
	}

	parts, total, err := h.catalogService.ListParts(params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(parts, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}
