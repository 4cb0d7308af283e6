// internal/services/assignment_service_test.go
package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/models"
)

type AssignmentServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	service  *AssignmentService
	operator *models.Operator
	reseller *models.Reseller
	device   *models.Device
}

func (suite *AssignmentServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.service = NewAssignmentService(suite.db, nil)
	suite.operator = createTestOperator(suite.T(), suite.db)
	suite.reseller = createTestReseller(suite.T(), suite.db, "alice")
	suite.device = createTestDevice(suite.T(), suite.db, "SN-1001", models.DeviceStatusReadyForSale)
}

func (suite *AssignmentServiceTestSuite) createAssignment(minimumPrice float64) *models.DeviceAssignment {
	assignment, err := suite.service.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     suite.device.ID,
		ResellerID:   suite.reseller.ID,
		MinimumPrice: minimumPrice,
	})
	suite.Require().NoError(err)
	return assignment
}

func (suite *AssignmentServiceTestSuite) receivedAssignment(minimumPrice float64) *models.DeviceAssignment {
	assignment := suite.createAssignment(minimumPrice)
	received, err := suite.service.ConfirmReceipt(assignment.ID, suite.reseller.ID)
	suite.Require().NoError(err)
	return received
}

func (suite *AssignmentServiceTestSuite) eventCount(assignmentID interface{}) int64 {
	var count int64
	suite.db.Model(&models.AssignmentEvent{}).Where("assignment_id = ?", assignmentID).Count(&count)
	return count
}

func (suite *AssignmentServiceTestSuite) TestCreateListsDevice() {
	assignment := suite.createAssignment(150)

	suite.Equal(models.AssignmentStatusAssigned, assignment.Status)
	suite.Equal(150.0, assignment.MinimumPrice)
	suite.False(assignment.AssignedAt.IsZero())

	var device models.Device
	suite.Require().NoError(suite.db.First(&device, "id = ?", suite.device.ID).Error)
	suite.Equal(models.DeviceStatusListedForSale, device.Status)

	suite.Equal(int64(1), suite.eventCount(assignment.ID))
}

func (suite *AssignmentServiceTestSuite) TestCreateRejectsInactiveReseller() {
	suite.Require().NoError(suite.db.Model(suite.reseller).Update("is_active", false).Error)

	_, err := suite.service.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     suite.device.ID,
		ResellerID:   suite.reseller.ID,
		MinimumPrice: 150,
	})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *AssignmentServiceTestSuite) TestCreateRejectsSecondOpenAssignment() {
	suite.createAssignment(150)

	other := createTestReseller(suite.T(), suite.db, "bob")
	_, err := suite.service.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     suite.device.ID,
		ResellerID:   other.ID,
		MinimumPrice: 150,
	})

	var conflictErr *ConflictError
	suite.ErrorAs(err, &conflictErr)
	suite.Equal(suite.device.ID, conflictErr.DeviceID)
}

func (suite *AssignmentServiceTestSuite) TestCreateRejectsNonPositiveFloor() {
	_, err := suite.service.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     suite.device.ID,
		ResellerID:   suite.reseller.ID,
		MinimumPrice: 0,
	})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *AssignmentServiceTestSuite) TestConfirmReceipt() {
	assignment := suite.createAssignment(150)

	received, err := suite.service.ConfirmReceipt(assignment.ID, suite.reseller.ID)
	suite.Require().NoError(err)

	suite.Equal(models.AssignmentStatusReceived, received.Status)
	suite.Require().NotNil(received.ReceivedAt)
	suite.Equal(int64(2), suite.eventCount(assignment.ID))
}

func (suite *AssignmentServiceTestSuite) TestConfirmReceiptTwiceFails() {
	assignment := suite.receivedAssignment(150)

	_, err := suite.service.ConfirmReceipt(assignment.ID, suite.reseller.ID)

	var stateErr *StateError
	suite.Require().ErrorAs(err, &stateErr)
	suite.Equal(models.AssignmentStatusReceived, stateErr.Actual)

	// A failed transition must not grow the audit trail.
	suite.Equal(int64(2), suite.eventCount(assignment.ID))
}

func (suite *AssignmentServiceTestSuite) TestConfirmReceiptByWrongReseller() {
	assignment := suite.createAssignment(150)
	other := createTestReseller(suite.T(), suite.db, "mallory")

	_, err := suite.service.ConfirmReceipt(assignment.ID, other.ID)

	var unauthorized *UnauthorizedError
	suite.ErrorAs(err, &unauthorized)
}

func (suite *AssignmentServiceTestSuite) TestConfirmSaleAboveFloor() {
	assignment := suite.receivedAssignment(150)

	sold, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: 210,
	})
	suite.Require().NoError(err)

	suite.Equal(models.AssignmentStatusSold, sold.Status)
	suite.Require().NotNil(sold.ActualSalePrice)
	suite.Equal(210.0, *sold.ActualSalePrice)
	suite.NotNil(sold.SoldAt)
	suite.Equal(60.0, sold.ResellerProfit())

	// The operator's take is the floor price; the reseller keeps the excess.
	var device models.Device
	suite.Require().NoError(suite.db.First(&device, "id = ?", suite.device.ID).Error)
	suite.Equal(models.DeviceStatusSold, device.Status)
	suite.Require().NotNil(device.ActualSellingPrice)
	suite.Equal(150.0, *device.ActualSellingPrice)

	var txn models.SaleTransaction
	suite.Require().NoError(suite.db.First(&txn, "assignment_id = ?", assignment.ID).Error)
	suite.Equal(210.0, txn.SalePrice)
	suite.Equal(150.0, txn.OperatorProceeds)
	suite.Equal(60.0, txn.ResellerMargin)
	suite.False(txn.Reversed)
}

func (suite *AssignmentServiceTestSuite) TestConfirmSaleAtFloorExactly() {
	assignment := suite.receivedAssignment(150)

	sold, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: 150,
	})
	suite.Require().NoError(err)
	suite.Equal(0.0, sold.ResellerProfit())
}

func (suite *AssignmentServiceTestSuite) TestConfirmSaleBelowFloorRejected() {
	assignment := suite.receivedAssignment(150)

	_, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: 149.99,
	})

	var priceErr *PriceBelowFloorError
	suite.Require().ErrorAs(err, &priceErr)
	suite.Equal(150.0, priceErr.MinimumPrice)
	suite.Equal(149.99, priceErr.OfferedPrice)

	// Nothing moved.
	reloaded, reloadErr := suite.service.Get(assignment.ID, suite.reseller.ID, models.UserTypeReseller)
	suite.Require().NoError(reloadErr)
	suite.Equal(models.AssignmentStatusReceived, reloaded.Status)
	suite.Equal(int64(2), suite.eventCount(assignment.ID))

	var txnCount int64
	suite.db.Model(&models.SaleTransaction{}).Where("assignment_id = ?", assignment.ID).Count(&txnCount)
	suite.Equal(int64(0), txnCount)
}

func (suite *AssignmentServiceTestSuite) TestConfirmSaleBeforeReceiptRejected() {
	assignment := suite.createAssignment(150)

	_, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: 200,
	})

	var stateErr *StateError
	suite.Require().ErrorAs(err, &stateErr)
	suite.Equal(models.AssignmentStatusReceived, stateErr.Expected)
	suite.Equal(models.AssignmentStatusAssigned, stateErr.Actual)
}

func (suite *AssignmentServiceTestSuite) TestReverseSaleRoundTrip() {
	assignment := suite.receivedAssignment(150)
	originalAssignedAt := assignment.AssignedAt

	sold, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: 210,
	})
	suite.Require().NoError(err)

	reversed, err := suite.service.ReverseSale(sold.ID, suite.reseller.ID, &ReverseSaleRequest{
		Reason: "customer returned the device",
	})
	suite.Require().NoError(err)

	// Back to received with the sale fields cleared; floor and assignment
	// date survive the round trip.
	suite.Equal(models.AssignmentStatusReceived, reversed.Status)
	suite.Nil(reversed.SoldAt)
	suite.Nil(reversed.ActualSalePrice)
	suite.Equal(150.0, reversed.MinimumPrice)
	suite.WithinDuration(originalAssignedAt, reversed.AssignedAt, time.Second)

	var device models.Device
	suite.Require().NoError(suite.db.First(&device, "id = ?", suite.device.ID).Error)
	suite.Equal(models.DeviceStatusListedForSale, device.Status)
	suite.Nil(device.ActualSellingPrice)
	suite.Nil(device.SoldAt)

	var txn models.SaleTransaction
	suite.Require().NoError(suite.db.First(&txn, "assignment_id = ?", assignment.ID).Error)
	suite.True(txn.Reversed)
	suite.Equal("customer returned the device", txn.ReversalReason)

	// created, received, sold, sale_reversed
	suite.Equal(int64(4), suite.eventCount(assignment.ID))

	// The device can be sold again.
	soldAgain, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: 180,
	})
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentStatusSold, soldAgain.Status)
}

func (suite *AssignmentServiceTestSuite) TestReverseSaleRequiresReason() {
	assignment := suite.receivedAssignment(150)
	sold, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: 210,
	})
	suite.Require().NoError(err)

	_, err = suite.service.ReverseSale(sold.ID, suite.reseller.ID, &ReverseSaleRequest{Reason: "too short"})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *AssignmentServiceTestSuite) TestReverseSaleOnUnsoldRejected() {
	assignment := suite.receivedAssignment(150)

	_, err := suite.service.ReverseSale(assignment.ID, suite.reseller.ID, &ReverseSaleRequest{
		Reason: "customer returned the device",
	})

	var stateErr *StateError
	suite.Require().ErrorAs(err, &stateErr)
	suite.Equal(models.AssignmentStatusSold, stateErr.Expected)
}

func (suite *AssignmentServiceTestSuite) TestRevokeFromAssigned() {
	assignment := suite.createAssignment(150)

	revoked, err := suite.service.Revoke(assignment.ID, suite.operator.ID, &RevokeAssignmentRequest{
		Reason: "reseller unresponsive",
	})
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentStatusReturned, revoked.Status)

	var device models.Device
	suite.Require().NoError(suite.db.First(&device, "id = ?", suite.device.ID).Error)
	suite.Equal(models.DeviceStatusReadyForSale, device.Status)
}

func (suite *AssignmentServiceTestSuite) TestRevokeFromReceived() {
	assignment := suite.receivedAssignment(150)

	revoked, err := suite.service.Revoke(assignment.ID, suite.operator.ID, &RevokeAssignmentRequest{
		Reason: "reassigning inventory",
	})
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentStatusReturned, revoked.Status)
}

func (suite *AssignmentServiceTestSuite) TestRevokeSoldRejected() {
	assignment := suite.receivedAssignment(150)
	_, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: 210,
	})
	suite.Require().NoError(err)

	_, err = suite.service.Revoke(assignment.ID, suite.operator.ID, &RevokeAssignmentRequest{
		Reason: "too late for this",
	})

	var stateErr *StateError
	suite.ErrorAs(err, &stateErr)
}

func (suite *AssignmentServiceTestSuite) TestReassignAfterReturn() {
	assignment := suite.createAssignment(150)
	_, err := suite.service.Revoke(assignment.ID, suite.operator.ID, &RevokeAssignmentRequest{
		Reason: "reseller unresponsive",
	})
	suite.Require().NoError(err)

	// The returned assignment no longer blocks a fresh one.
	other := createTestReseller(suite.T(), suite.db, "bob")
	second, err := suite.service.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     suite.device.ID,
		ResellerID:   other.ID,
		MinimumPrice: 175,
	})
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentStatusAssigned, second.Status)
	suite.NotEqual(assignment.ID, second.ID)
}

func (suite *AssignmentServiceTestSuite) TestComputeStatsExcludesReturned() {
	// Sold at 210 against a 150 floor.
	first := suite.receivedAssignment(150)
	_, err := suite.service.ConfirmSale(first.ID, suite.reseller.ID, &ConfirmSaleRequest{ActualSalePrice: 210})
	suite.Require().NoError(err)

	// Second device revoked before sale; must not count.
	second := createTestDevice(suite.T(), suite.db, "SN-1002", models.DeviceStatusReadyForSale)
	a2, err := suite.service.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     second.ID,
		ResellerID:   suite.reseller.ID,
		MinimumPrice: 300,
	})
	suite.Require().NoError(err)
	_, err = suite.service.Revoke(a2.ID, suite.operator.ID, &RevokeAssignmentRequest{Reason: "pulled back"})
	suite.Require().NoError(err)

	// Third device still in transit.
	third := createTestDevice(suite.T(), suite.db, "SN-1003", models.DeviceStatusReadyForSale)
	_, err = suite.service.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     third.ID,
		ResellerID:   suite.reseller.ID,
		MinimumPrice: 100,
	})
	suite.Require().NoError(err)

	stats, err := suite.service.ComputeStats(suite.reseller.ID)
	suite.Require().NoError(err)

	suite.Equal(int64(1), stats.AssignedCount)
	suite.Equal(int64(0), stats.ReceivedCount)
	suite.Equal(int64(1), stats.SoldCount)
	suite.Equal(210.0, stats.TotalRevenue)
	suite.Equal(60.0, stats.TotalProfit)
}

func (suite *AssignmentServiceTestSuite) TestGetDeniedForOtherReseller() {
	assignment := suite.createAssignment(150)
	other := createTestReseller(suite.T(), suite.db, "mallory")

	_, err := suite.service.Get(assignment.ID, other.ID, models.UserTypeReseller)

	var unauthorized *UnauthorizedError
	suite.ErrorAs(err, &unauthorized)

	// Operators read everything.
	_, err = suite.service.Get(assignment.ID, suite.operator.ID, models.UserTypeOperator)
	suite.NoError(err)
}

func (suite *AssignmentServiceTestSuite) TestEventsAreChronological() {
	assignment := suite.receivedAssignment(150)
	_, err := suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{ActualSalePrice: 210})
	suite.Require().NoError(err)

	events, err := suite.service.GetEvents(assignment.ID, suite.operator.ID, models.UserTypeOperator)
	suite.Require().NoError(err)
	suite.Require().Len(events, 3)

	suite.Equal(models.AssignmentActionCreated, events[0].Action)
	suite.Equal(models.AssignmentActionReceived, events[1].Action)
	suite.Equal(models.AssignmentActionSold, events[2].Action)
	suite.Equal(models.AssignmentStatusReceived, events[2].FromStatus)
	suite.Equal(models.AssignmentStatusSold, events[2].ToStatus)
}

// A sale and a revoke racing on the same received assignment: exactly one of
// them may win.
func (suite *AssignmentServiceTestSuite) TestConcurrentSaleAndRevoke() {
	assignment := suite.receivedAssignment(150)

	var wg sync.WaitGroup
	var saleErr, revokeErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, saleErr = suite.service.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
			ActualSalePrice: 210,
		})
	}()
	go func() {
		defer wg.Done()
		_, revokeErr = suite.service.Revoke(assignment.ID, suite.operator.ID, &RevokeAssignmentRequest{
			Reason: "pulling the device back",
		})
	}()
	wg.Wait()

	if saleErr == nil {
		var stateErr *StateError
		suite.Require().ErrorAs(revokeErr, &stateErr)
	} else {
		suite.Require().NoError(revokeErr)
		var stateErr *StateError
		suite.Require().ErrorAs(saleErr, &stateErr)
	}

	// The losing request must not have touched the audit trail:
	// created + received + exactly one terminal event.
	suite.Equal(int64(3), suite.eventCount(assignment.ID))
}

func TestAssignmentServiceSuite(t *testing.T) {
	suite.Run(t, new(AssignmentServiceTestSuite))
}
