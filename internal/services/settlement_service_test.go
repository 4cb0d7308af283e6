// internal/services/settlement_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/config"
	"github.com/refurbly/consign-backend/internal/models"
)

type SettlementServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	service     *SettlementService
	assignments *AssignmentService
	operator    *models.Operator
	reseller    *models.Reseller
}

func (suite *SettlementServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	cfg := &config.Config{
		Settlement: config.SettlementConfig{MinimumPayout: 25},
	}
	suite.service = NewSettlementService(suite.db, cfg)
	suite.assignments = NewAssignmentService(suite.db, nil)
	suite.operator = createTestOperator(suite.T(), suite.db)
	suite.reseller = createTestReseller(suite.T(), suite.db, "alice")
}

// sell runs a device through the full lifecycle and returns the assignment.
func (suite *SettlementServiceTestSuite) sell(serial string, floor, price float64) *models.DeviceAssignment {
	device := createTestDevice(suite.T(), suite.db, serial, models.DeviceStatusReadyForSale)

	assignment, err := suite.assignments.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     device.ID,
		ResellerID:   suite.reseller.ID,
		MinimumPrice: floor,
	})
	suite.Require().NoError(err)
	_, err = suite.assignments.ConfirmReceipt(assignment.ID, suite.reseller.ID)
	suite.Require().NoError(err)
	sold, err := suite.assignments.ConfirmSale(assignment.ID, suite.reseller.ID, &ConfirmSaleRequest{
		ActualSalePrice: price,
	})
	suite.Require().NoError(err)
	return sold
}

func (suite *SettlementServiceTestSuite) TestBalanceSumsUnreversedMargins() {
	suite.sell("SN-4001", 100, 160) // margin 60
	suite.sell("SN-4002", 200, 230) // margin 30
	reversedSale := suite.sell("SN-4003", 100, 400)

	_, err := suite.assignments.ReverseSale(reversedSale.ID, suite.reseller.ID, &ReverseSaleRequest{
		Reason: "buyer backed out of the deal",
	})
	suite.Require().NoError(err)

	balance, err := suite.service.Balance(suite.reseller.ID)
	suite.Require().NoError(err)

	suite.Equal(90.0, balance.EarnedMargin)
	suite.Equal(0.0, balance.PaidOut)
	suite.Equal(0.0, balance.PendingPayout)
	suite.Equal(90.0, balance.Available)
}

func (suite *SettlementServiceTestSuite) TestRequestPayoutBelowMinimum() {
	suite.sell("SN-4004", 100, 200)

	_, err := suite.service.RequestPayout(suite.reseller.ID, &RequestPayoutRequest{Amount: 10})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *SettlementServiceTestSuite) TestRequestPayoutExceedsBalance() {
	suite.sell("SN-4005", 100, 160) // margin 60

	_, err := suite.service.RequestPayout(suite.reseller.ID, &RequestPayoutRequest{Amount: 61})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *SettlementServiceTestSuite) TestPayoutLifecycle() {
	suite.sell("SN-4006", 100, 200) // margin 100

	payout, err := suite.service.RequestPayout(suite.reseller.ID, &RequestPayoutRequest{Amount: 70})
	suite.Require().NoError(err)
	suite.Equal(models.PayoutStatusPending, payout.Status)

	// Pending requests reserve balance.
	balance, err := suite.service.Balance(suite.reseller.ID)
	suite.Require().NoError(err)
	suite.Equal(70.0, balance.PendingPayout)
	suite.Equal(30.0, balance.Available)

	// No Stripe configured: processing settles manually.
	processed, err := suite.service.ProcessPayout(payout.ID, suite.operator.ID)
	suite.Require().NoError(err)
	suite.Equal(models.PayoutStatusPaid, processed.Status)
	suite.Empty(processed.StripeTransferID)
	suite.Require().NotNil(processed.ProcessedBy)
	suite.Equal(suite.operator.ID, *processed.ProcessedBy)
	suite.NotNil(processed.ProcessedAt)

	balance, err = suite.service.Balance(suite.reseller.ID)
	suite.Require().NoError(err)
	suite.Equal(70.0, balance.PaidOut)
	suite.Equal(30.0, balance.Available)

	// A paid payout cannot be processed or rejected again.
	_, err = suite.service.ProcessPayout(payout.ID, suite.operator.ID)
	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *SettlementServiceTestSuite) TestRejectPayoutReleasesBalance() {
	suite.sell("SN-4007", 100, 200)

	payout, err := suite.service.RequestPayout(suite.reseller.ID, &RequestPayoutRequest{Amount: 50})
	suite.Require().NoError(err)

	rejected, err := suite.service.RejectPayout(payout.ID, suite.operator.ID, &RejectPayoutRequest{
		Reason: "bank details missing",
	})
	suite.Require().NoError(err)
	suite.Equal(models.PayoutStatusRejected, rejected.Status)
	suite.Equal("bank details missing", rejected.RejectionReason)

	balance, err := suite.service.Balance(suite.reseller.ID)
	suite.Require().NoError(err)
	suite.Equal(100.0, balance.Available)
}

func TestSettlementServiceSuite(t *testing.T) {
	suite.Run(t, new(SettlementServiceTestSuite))
}
