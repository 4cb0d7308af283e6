// internal/services/service_test.go
package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/refurbly/consign-backend/internal/models"
)

var testDBCounter int64

// newTestDB opens a private in-memory database per test. The connection pool
// is capped at one so concurrent transactions queue instead of failing with
// SQLITE_BUSY.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", n)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Operator{},
		&models.Reseller{},
		&models.Device{},
		&models.DevicePhoto{},
		&models.Part{},
		&models.DeviceRepairPart{},
		&models.DeviceAssignment{},
		&models.AssignmentEvent{},
		&models.SaleTransaction{},
		&models.Payout{},
	))

	return db
}

func createTestOperator(t *testing.T, db *gorm.DB) *models.Operator {
	t.Helper()

	operator := &models.Operator{
		Username: "operator",
		Email:    fmt.Sprintf("op%d@consign.test", atomic.AddInt64(&testDBCounter, 1)),
	}
	require.NoError(t, operator.SetPassword("OperatorPass1"))
	require.NoError(t, db.Create(operator).Error)
	return operator
}

func createTestReseller(t *testing.T, db *gorm.DB, name string) *models.Reseller {
	t.Helper()

	reseller := &models.Reseller{
		Name:     name,
		Email:    fmt.Sprintf("%s%d@reseller.test", name, atomic.AddInt64(&testDBCounter, 1)),
		IsActive: true,
	}
	require.NoError(t, reseller.SetPassword("ResellerPass1"))
	require.NoError(t, db.Create(reseller).Error)
	return reseller
}

func createTestDevice(t *testing.T, db *gorm.DB, serial string, status models.DeviceStatus) *models.Device {
	t.Helper()

	device := &models.Device{
		Label:         "Refurbished Laptop " + serial,
		SerialNumber:  serial,
		Status:        status,
		PurchasePrice: 200,
		DesiredProfit: 100,
	}
	device.RecalculatePricing(nil)
	require.NoError(t, db.Create(device).Error)
	return device
}
