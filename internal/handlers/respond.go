// internal/handlers/respond.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/refurbly/consign-backend/internal/services"
	"github.com/refurbly/consign-backend/internal/utils"
)

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Anything unrecognized is treated as an internal error.
func respondServiceError(c *gin.Context, err error) {
	var (
		priceErr      *services.PriceBelowFloorError
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		unauthorized  *services.UnauthorizedError
		stateErr      *services.StateError
		conflictErr   *services.ConflictError
		activeErr     *services.ActiveAssignmentsExistError
	)

	switch {
	case errors.As(err, &priceErr):
		utils.ErrorResponse(c, http.StatusBadRequest, "PRICE_BELOW_FLOOR", priceErr.Error(), gin.H{
			"minimum_price": priceErr.MinimumPrice,
			"offered_price": priceErr.OfferedPrice,
		})
	case errors.As(err, &validationErr):
		utils.BadRequestResponse(c, validationErr.Message, nil)
	case errors.As(err, &notFoundErr):
		utils.NotFoundResponse(c, notFoundErr.Resource)
	case errors.As(err, &unauthorized):
		utils.ForbiddenResponse(c, unauthorized.Message)
	case errors.As(err, &stateErr):
		utils.ConflictResponse(c, "STATE_CONFLICT", stateErr.Error(), nil)
	case errors.As(err, &conflictErr):
		utils.ConflictResponse(c, "DEVICE_CONFLICT", conflictErr.Message, gin.H{
			"device_id": conflictErr.DeviceID,
		})
	case errors.As(err, &activeErr):
		utils.ConflictResponse(c, "ACTIVE_ASSIGNMENTS_EXIST", activeErr.Error(), gin.H{
			"blocking_assignments": activeErr.Blocking,
		})
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}

// currentUserID pulls the authenticated user's id out of the gin context.
// Writes the error response itself when the id is missing or malformed.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}

	return userID, true
}

// pathUUID parses a uuid path parameter, writing the error response on
// failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
