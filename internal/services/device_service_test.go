// internal/services/device_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/models"
)

type DeviceServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *DeviceService
}

func (suite *DeviceServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.service = NewDeviceService(suite.db)
}

func (suite *DeviceServiceTestSuite) createPart(sku string, unitCost float64) *models.Part {
	part := &models.Part{
		VendorSKU: sku,
		Name:      "Part " + sku,
		Vendor:    "acme",
		UnitCost:  unitCost,
		InStock:   true,
	}
	suite.Require().NoError(suite.db.Create(part).Error)
	return part
}

func (suite *DeviceServiceTestSuite) TestIntakeDerivesListPrice() {
	device, err := suite.service.Intake(&IntakeDeviceRequest{
		Label:         "ThinkPad T480",
		SerialNumber:  "SN-3001",
		PurchasePrice: 220,
		DesiredProfit: 80,
	})
	suite.Require().NoError(err)

	suite.Equal(models.DeviceStatusPurchased, device.Status)
	suite.Equal(0.0, device.RepairPartsCost)
	suite.Equal(300.0, device.ListPrice)
}

func (suite *DeviceServiceTestSuite) TestIntakeRejectsDuplicateSerial() {
	_, err := suite.service.Intake(&IntakeDeviceRequest{
		Label:         "ThinkPad T480",
		SerialNumber:  "SN-3002",
		PurchasePrice: 220,
	})
	suite.Require().NoError(err)

	_, err = suite.service.Intake(&IntakeDeviceRequest{
		Label:         "Another T480",
		SerialNumber:  "SN-3002",
		PurchasePrice: 180,
	})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *DeviceServiceTestSuite) TestRepairPartsUpdatePricing() {
	device, err := suite.service.Intake(&IntakeDeviceRequest{
		Label:         "ThinkPad T480",
		SerialNumber:  "SN-3003",
		PurchasePrice: 200,
		DesiredProfit: 100,
	})
	suite.Require().NoError(err)

	battery := suite.createPart("BAT-01", 35)
	screen := suite.createPart("SCR-01", 60)

	device, err = suite.service.AddRepairPart(device.ID, &AddRepairPartRequest{PartID: battery.ID, Quantity: 2})
	suite.Require().NoError(err)
	suite.Equal(70.0, device.RepairPartsCost)
	suite.Equal(370.0, device.ListPrice)

	device, err = suite.service.AddRepairPart(device.ID, &AddRepairPartRequest{PartID: screen.ID, Quantity: 1})
	suite.Require().NoError(err)
	suite.Equal(130.0, device.RepairPartsCost)
	suite.Equal(430.0, device.ListPrice)

	// Unit cost is snapshotted: later catalog changes do not reprice.
	suite.Require().NoError(suite.db.Model(battery).Update("unit_cost", 99).Error)
	suite.Require().Len(device.RepairParts, 2)

	var screenRepair models.DeviceRepairPart
	suite.Require().NoError(suite.db.
		Where("device_id = ? AND part_id = ?", device.ID, screen.ID).
		First(&screenRepair).Error)

	device, err = suite.service.RemoveRepairPart(device.ID, screenRepair.ID)
	suite.Require().NoError(err)
	suite.Equal(70.0, device.RepairPartsCost)
	suite.Equal(370.0, device.ListPrice)
}

func (suite *DeviceServiceTestSuite) TestRepairPartsLockedAfterReady() {
	device, err := suite.service.Intake(&IntakeDeviceRequest{
		Label:         "ThinkPad T480",
		SerialNumber:  "SN-3004",
		PurchasePrice: 200,
	})
	suite.Require().NoError(err)

	_, err = suite.service.MarkReady(device.ID)
	suite.Require().NoError(err)

	part := suite.createPart("BAT-02", 35)
	_, err = suite.service.AddRepairPart(device.ID, &AddRepairPartRequest{PartID: part.ID, Quantity: 1})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *DeviceServiceTestSuite) TestLedgerTransitions() {
	device, err := suite.service.Intake(&IntakeDeviceRequest{
		Label:         "ThinkPad T480",
		SerialNumber:  "SN-3005",
		PurchasePrice: 200,
	})
	suite.Require().NoError(err)

	device, err = suite.service.StartRepair(device.ID)
	suite.Require().NoError(err)
	suite.Equal(models.DeviceStatusInRepair, device.Status)

	// Repair cannot start twice.
	_, err = suite.service.StartRepair(device.ID)
	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)

	device, err = suite.service.MarkReady(device.ID)
	suite.Require().NoError(err)
	suite.Equal(models.DeviceStatusReadyForSale, device.Status)
}

func (suite *DeviceServiceTestSuite) TestDeleteOnlyBeforeCirculation() {
	device, err := suite.service.Intake(&IntakeDeviceRequest{
		Label:         "ThinkPad T480",
		SerialNumber:  "SN-3006",
		PurchasePrice: 200,
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.Delete(device.ID))

	_, err = suite.service.Get(device.ID)
	var notFound *NotFoundError
	suite.ErrorAs(err, &notFound)
}

func (suite *DeviceServiceTestSuite) TestDeleteRejectedWithAssignmentHistory() {
	operator := createTestOperator(suite.T(), suite.db)
	reseller := createTestReseller(suite.T(), suite.db, "alice")
	device := createTestDevice(suite.T(), suite.db, "SN-3007", models.DeviceStatusReadyForSale)
	assignments := NewAssignmentService(suite.db, nil)

	assignment, err := assignments.Create(operator.ID, &CreateAssignmentRequest{
		DeviceID:     device.ID,
		ResellerID:   reseller.ID,
		MinimumPrice: 100,
	})
	suite.Require().NoError(err)
	_, err = assignments.Revoke(assignment.ID, operator.ID, &RevokeAssignmentRequest{Reason: "testing delete"})
	suite.Require().NoError(err)

	// Back to ready_for_sale but with history; both checks reject it.
	err = suite.service.Delete(device.ID)
	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func TestDeviceServiceSuite(t *testing.T) {
	suite.Run(t, new(DeviceServiceTestSuite))
}
