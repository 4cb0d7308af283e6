// internal/services/admin_service.go
package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/models"
)

// AdminService aggregates the operator dashboard numbers. Everything here is
// read-only over data the other services write.
type AdminService struct {
	db *gorm.DB
}

type DashboardStats struct {
	TotalDevices        int64   `json:"total_devices"`
	DevicesInRepair     int64   `json:"devices_in_repair"`
	DevicesReady        int64   `json:"devices_ready"`
	DevicesListed       int64   `json:"devices_listed"`
	DevicesSold         int64   `json:"devices_sold"`
	TotalResellers      int64   `json:"total_resellers"`
	ActiveResellers     int64   `json:"active_resellers"`
	OpenAssignments     int64   `json:"open_assignments"`
	SoldThisMonth       int64   `json:"sold_this_month"`
	TotalRevenue        float64 `json:"total_revenue"`
	MonthlyRevenue      float64 `json:"monthly_revenue"`
	TotalOperatorProfit float64 `json:"total_operator_profit"`
	PendingPayouts      int64   `json:"pending_payouts"`
	PendingPayoutAmount float64 `json:"pending_payout_amount"`
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// GetDashboardStats collects the operator overview in one call.
func (s *AdminService) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	// Device ledger
	s.db.Model(&models.Device{}).Count(&stats.TotalDevices)
	s.db.Model(&models.Device{}).Where("status = ?", models.DeviceStatusInRepair).Count(&stats.DevicesInRepair)
	s.db.Model(&models.Device{}).Where("status = ?", models.DeviceStatusReadyForSale).Count(&stats.DevicesReady)
	s.db.Model(&models.Device{}).Where("status = ?", models.DeviceStatusListedForSale).Count(&stats.DevicesListed)
	s.db.Model(&models.Device{}).Where("status = ?", models.DeviceStatusSold).Count(&stats.DevicesSold)

	// Resellers
	s.db.Model(&models.Reseller{}).Count(&stats.TotalResellers)
	s.db.Model(&models.Reseller{}).Where("is_active = ?", true).Count(&stats.ActiveResellers)

	// Consignments
	s.db.Model(&models.DeviceAssignment{}).
		Where("status IN ?", []models.AssignmentStatus{models.AssignmentStatusAssigned, models.AssignmentStatusReceived}).
		Count(&stats.OpenAssignments)
	s.db.Model(&models.DeviceAssignment{}).
		Where("status = ? AND sold_at >= ?", models.AssignmentStatusSold, monthStart).
		Count(&stats.SoldThisMonth)

	// Money
	s.db.Model(&models.DeviceAssignment{}).
		Where("status = ?", models.AssignmentStatusSold).
		Select("COALESCE(SUM(actual_sale_price), 0)").Scan(&stats.TotalRevenue)
	s.db.Model(&models.DeviceAssignment{}).
		Where("status = ? AND sold_at >= ?", models.AssignmentStatusSold, monthStart).
		Select("COALESCE(SUM(actual_sale_price), 0)").Scan(&stats.MonthlyRevenue)
	s.db.Model(&models.SaleTransaction{}).
		Where("reversed = ?", false).
		Select("COALESCE(SUM(operator_proceeds), 0)").Scan(&stats.TotalOperatorProfit)

	// Settlement backlog
	s.db.Model(&models.Payout{}).
		Where("status = ?", models.PayoutStatusPending).Count(&stats.PendingPayouts)
	s.db.Model(&models.Payout{}).
		Where("status = ?", models.PayoutStatusPending).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.PendingPayoutAmount)

	return stats, nil
}
