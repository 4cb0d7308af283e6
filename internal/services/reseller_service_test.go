// internal/services/reseller_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/models"
)

type ResellerServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	service     *ResellerService
	assignments *AssignmentService
	operator    *models.Operator
}

func (suite *ResellerServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.service = NewResellerService(suite.db, nil)
	suite.assignments = NewAssignmentService(suite.db, nil)
	suite.operator = createTestOperator(suite.T(), suite.db)
}

func (suite *ResellerServiceTestSuite) TestRegister() {
	reseller, err := suite.service.Register(&RegisterResellerRequest{
		Name:  "Carol's Electronics",
		Email: "carol@reseller.test",
	})
	suite.Require().NoError(err)

	suite.True(reseller.IsActive)
	suite.NotEmpty(reseller.PasswordHash)
}

func (suite *ResellerServiceTestSuite) TestRegisterDuplicateEmail() {
	_, err := suite.service.Register(&RegisterResellerRequest{
		Name:  "Carol's Electronics",
		Email: "carol@reseller.test",
	})
	suite.Require().NoError(err)

	_, err = suite.service.Register(&RegisterResellerRequest{
		Name:  "Imposter",
		Email: "carol@reseller.test",
	})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *ResellerServiceTestSuite) TestDeactivateBlockedByActiveAssignment() {
	reseller := createTestReseller(suite.T(), suite.db, "alice")
	device := createTestDevice(suite.T(), suite.db, "SN-2001", models.DeviceStatusReadyForSale)

	assignment, err := suite.assignments.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     device.ID,
		ResellerID:   reseller.ID,
		MinimumPrice: 100,
	})
	suite.Require().NoError(err)

	_, err = suite.service.Deactivate(reseller.ID, &DeactivateResellerRequest{Reason: "going on leave"})

	var activeErr *ActiveAssignmentsExistError
	suite.Require().ErrorAs(err, &activeErr)
	suite.Require().Len(activeErr.Blocking, 1)
	suite.Equal(assignment.ID, activeErr.Blocking[0].AssignmentID)
	suite.Equal(device.ID, activeErr.Blocking[0].DeviceID)
}

func (suite *ResellerServiceTestSuite) TestDeactivateAllowedWithTerminalAssignments() {
	reseller := createTestReseller(suite.T(), suite.db, "alice")
	device := createTestDevice(suite.T(), suite.db, "SN-2002", models.DeviceStatusReadyForSale)

	assignment, err := suite.assignments.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     device.ID,
		ResellerID:   reseller.ID,
		MinimumPrice: 100,
	})
	suite.Require().NoError(err)
	_, err = suite.assignments.ConfirmReceipt(assignment.ID, reseller.ID)
	suite.Require().NoError(err)
	_, err = suite.assignments.ConfirmSale(assignment.ID, reseller.ID, &ConfirmSaleRequest{ActualSalePrice: 140})
	suite.Require().NoError(err)

	deactivated, err := suite.service.Deactivate(reseller.ID, &DeactivateResellerRequest{Reason: "wrapping up"})
	suite.Require().NoError(err)

	suite.False(deactivated.IsActive)
	suite.Equal("wrapping up", deactivated.DeactivationReason)
	suite.NotNil(deactivated.DeactivatedAt)
}

func (suite *ResellerServiceTestSuite) TestActivateClearsDeactivation() {
	reseller := createTestReseller(suite.T(), suite.db, "alice")
	_, err := suite.service.Deactivate(reseller.ID, &DeactivateResellerRequest{Reason: "going on leave"})
	suite.Require().NoError(err)

	activated, err := suite.service.Activate(reseller.ID)
	suite.Require().NoError(err)

	suite.True(activated.IsActive)
	suite.Empty(activated.DeactivationReason)
	suite.Nil(activated.DeactivatedAt)
}

func (suite *ResellerServiceTestSuite) TestDeleteRequiresConfirmation() {
	reseller := createTestReseller(suite.T(), suite.db, "alice")

	err := suite.service.Delete(reseller.ID, suite.operator.ID, &DeleteResellerRequest{
		Reason:    "closing account",
		Confirmed: false,
	})

	var validationErr *ValidationError
	suite.ErrorAs(err, &validationErr)
}

func (suite *ResellerServiceTestSuite) TestDeleteBlockedByActiveAssignment() {
	reseller := createTestReseller(suite.T(), suite.db, "alice")
	device := createTestDevice(suite.T(), suite.db, "SN-2003", models.DeviceStatusReadyForSale)

	_, err := suite.assignments.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     device.ID,
		ResellerID:   reseller.ID,
		MinimumPrice: 100,
	})
	suite.Require().NoError(err)

	err = suite.service.Delete(reseller.ID, suite.operator.ID, &DeleteResellerRequest{
		Reason:    "closing account",
		Confirmed: true,
	})

	var activeErr *ActiveAssignmentsExistError
	suite.ErrorAs(err, &activeErr)
}

func (suite *ResellerServiceTestSuite) TestDeleteRetainsTerminalAssignments() {
	reseller := createTestReseller(suite.T(), suite.db, "alice")
	device := createTestDevice(suite.T(), suite.db, "SN-2004", models.DeviceStatusReadyForSale)

	assignment, err := suite.assignments.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     device.ID,
		ResellerID:   reseller.ID,
		MinimumPrice: 100,
	})
	suite.Require().NoError(err)
	_, err = suite.assignments.ConfirmReceipt(assignment.ID, reseller.ID)
	suite.Require().NoError(err)
	_, err = suite.assignments.ConfirmSale(assignment.ID, reseller.ID, &ConfirmSaleRequest{ActualSalePrice: 160})
	suite.Require().NoError(err)

	err = suite.service.Delete(reseller.ID, suite.operator.ID, &DeleteResellerRequest{
		Reason:    "reseller requested account closure",
		Confirmed: true,
	})
	suite.Require().NoError(err)

	// The account is gone for good.
	var count int64
	suite.db.Unscoped().Model(&models.Reseller{}).Where("id = ?", reseller.ID).Count(&count)
	suite.Equal(int64(0), count)

	// The sold assignment survives with the name snapshotted onto it.
	var retained models.DeviceAssignment
	suite.Require().NoError(suite.db.First(&retained, "id = ?", assignment.ID).Error)
	suite.Equal(models.AssignmentStatusSold, retained.Status)
	suite.Equal(reseller.ID, retained.ResellerID)
	suite.Equal("alice", retained.ResellerName)

	// And the deletion is on the audit trail.
	var event models.AssignmentEvent
	suite.Require().NoError(suite.db.
		Where("assignment_id = ? AND action = ?", assignment.ID, models.AssignmentActionResellerDeleted).
		First(&event).Error)
	suite.Equal("reseller requested account closure", event.Reason)
}

func (suite *ResellerServiceTestSuite) TestDeleteAfterRevokeReturnsDevice() {
	reseller := createTestReseller(suite.T(), suite.db, "alice")
	device := createTestDevice(suite.T(), suite.db, "SN-2005", models.DeviceStatusReadyForSale)

	assignment, err := suite.assignments.Create(suite.operator.ID, &CreateAssignmentRequest{
		DeviceID:     device.ID,
		ResellerID:   reseller.ID,
		MinimumPrice: 100,
	})
	suite.Require().NoError(err)
	_, err = suite.assignments.Revoke(assignment.ID, suite.operator.ID, &RevokeAssignmentRequest{
		Reason: "offboarding",
	})
	suite.Require().NoError(err)

	err = suite.service.Delete(reseller.ID, suite.operator.ID, &DeleteResellerRequest{
		Reason:    "offboarding complete",
		Confirmed: true,
	})
	suite.Require().NoError(err)

	var retained models.DeviceAssignment
	suite.Require().NoError(suite.db.First(&retained, "id = ?", assignment.ID).Error)
	suite.Equal(models.AssignmentStatusReturned, retained.Status)

	var reloaded models.Device
	suite.Require().NoError(suite.db.First(&reloaded, "id = ?", device.ID).Error)
	suite.Equal(models.DeviceStatusReadyForSale, reloaded.Status)
}

func TestResellerServiceSuite(t *testing.T) {
	suite.Run(t, new(ResellerServiceTestSuite))
}
