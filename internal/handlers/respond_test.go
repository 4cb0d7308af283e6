// internal/handlers/respond_test.go
package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/services"
)

func performWithError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		respondServiceError(c, err)
	})

	req, _ := http.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRespondServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "validation",
			err:    &services.ValidationError{Message: "bad input"},
			status: http.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
		{
			name:   "price below floor",
			err:    &services.PriceBelowFloorError{MinimumPrice: 150, OfferedPrice: 100},
			status: http.StatusBadRequest,
			code:   "PRICE_BELOW_FLOOR",
		},
		{
			name:   "not found",
			err:    &services.NotFoundError{Resource: "device", ID: uuid.New()},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "unauthorized",
			err:    &services.UnauthorizedError{Message: "not yours"},
			status: http.StatusForbidden,
			code:   "FORBIDDEN",
		},
		{
			name:   "state conflict",
			err:    &services.StateError{Expected: models.AssignmentStatusReceived, Conflict: true},
			status: http.StatusConflict,
			code:   "STATE_CONFLICT",
		},
		{
			name:   "device conflict",
			err:    &services.ConflictError{Message: "device already assigned", DeviceID: uuid.New()},
			status: http.StatusConflict,
			code:   "DEVICE_CONFLICT",
		},
		{
			name: "active assignments",
			err: &services.ActiveAssignmentsExistError{
				ResellerID: uuid.New(),
				Blocking: []services.BlockingAssignment{
					{AssignmentID: uuid.New(), DeviceID: uuid.New(), Status: models.AssignmentStatusAssigned},
				},
			},
			status: http.StatusConflict,
			code:   "ACTIVE_ASSIGNMENTS_EXIST",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performWithError(t, tc.err)
			assert.Equal(t, tc.status, w.Code)

			var body struct {
				Success bool `json:"success"`
				Error   struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}
