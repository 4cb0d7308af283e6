// internal/services/catalog_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/config"
	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/utils"
)

// CatalogService keeps the local parts catalog in step with the external
// vendor price list. Sync is a pure fetch-and-upsert invoked by the scheduler
// in main and by the operator endpoint; it holds no state between runs.
type CatalogService struct {
	db     *gorm.DB
	cfg    *config.Config
	client *http.Client
}

type vendorPart struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Vendor   string  `json:"vendor"`
	Category string  `json:"category"`
	UnitCost float64 `json:"unit_cost"`
	InStock  bool    `json:"in_stock"`
}

type CatalogSyncResult struct {
	Fetched  int       `json:"fetched"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	SyncedAt time.Time `json:"synced_at"`
}

type PartSearchParams struct {
	utils.PaginationParams
	Vendor   string `json:"vendor,omitempty"`
	Category string `json:"category,omitempty"`
}

func NewCatalogService(db *gorm.DB, cfg *config.Config, client *http.Client) *CatalogService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CatalogService{db: db, cfg: cfg, client: client}
}

// Sync fetches the vendor price list and upserts it into the parts table.
// Unit-cost snapshots on existing device repairs are not touched.
func (s *CatalogService) Sync(ctx context.Context) (*CatalogSyncResult, error) {
	if s.cfg.Catalog.VendorURL == "" {
		return nil, &ValidationError{Message: "parts vendor is not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Catalog.VendorURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build vendor request: %w", err)
	}
	if s.cfg.Catalog.VendorAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Catalog.VendorAPIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor returned status %d", resp.StatusCode)
	}

	var vendorParts []vendorPart
	if err := json.NewDecoder(resp.Body).Decode(&vendorParts); err != nil {
		return nil, fmt.Errorf("failed to decode vendor price list: %w", err)
	}

	result := &CatalogSyncResult{Fetched: len(vendorParts), SyncedAt: time.Now()}

	for _, vp := range vendorParts {
		if vp.SKU == "" {
			continue
		}

		var part models.Part
		err := s.db.Where("vendor_sku = ?", vp.SKU).First(&part).Error
		switch {
		case err == nil:
			if err := s.db.Model(&part).Updates(map[string]interface{}{
				"name":           vp.Name,
				"vendor":         vp.Vendor,
				"category":       vp.Category,
				"unit_cost":      vp.UnitCost,
				"in_stock":       vp.InStock,
				"last_synced_at": result.SyncedAt,
			}).Error; err != nil {
				return nil, fmt.Errorf("failed to update part %s: %w", vp.SKU, err)
			}
			result.Updated++
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := result.SyncedAt
			part = models.Part{
				VendorSKU:    vp.SKU,
				Name:         vp.Name,
				Vendor:       vp.Vendor,
				Category:     vp.Category,
				UnitCost:     vp.UnitCost,
				InStock:      vp.InStock,
				LastSyncedAt: &now,
			}
			if err := s.db.Create(&part).Error; err != nil {
				return nil, fmt.Errorf("failed to create part %s: %w", vp.SKU, err)
			}
			result.Created++
		default:
			return nil, fmt.Errorf("database error: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"fetched": result.Fetched,
		"created": result.Created,
		"updated": result.Updated,
	}).Info("Parts catalog synchronized")

	return result, nil
}

// ListParts browses the local catalog.
func (s *CatalogService) ListParts(params PartSearchParams) ([]models.Part, int64, error) {
	query := s.db.Model(&models.Part{})

	if params.Vendor != "" {
		query = query.Where("vendor = ?", params.Vendor)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("name LIKE ? OR vendor_sku LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count parts: %w", err)
	}

	allowedSortFields := []string{"created_at", "name", "unit_cost", "vendor"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var parts []models.Part
	if err := query.Find(&parts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch parts: %w", err)
	}

	return parts, total, nil
}
