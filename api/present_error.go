package api

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/parkhaus/parkhaus-backend/dto"
	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/utils"
)

// presentError maps domain errors to HTTP responses. Returns true when the
// error was handled and the handler should stop.
func presentError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	ctx := c.Request.Context()

	body := dto.APIErrorResponse{Message: err.Error()}

	var enforcement models.EnforcementError
	var policyDenied models.PolicyDeniedError
	switch {
	case errors.As(err, &enforcement):
		body.Reason = string(enforcement.Reason)
	case errors.As(err, &policyDenied):
		body.Reason = string(policyDenied.Reason)
	}

	switch {
	case errors.Is(err, models.BadParameterError):
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, models.ForbiddenError):
		c.JSON(http.StatusForbidden, body)
	case errors.Is(err, models.NotFoundError):
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, models.ConflictError):
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, models.ServiceUnavailableError):
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		utils.LoggerFromContext(ctx).ErrorContext(ctx, "unexpected error handling request",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, dto.APIErrorResponse{Message: "internal error"})
	}
	return true
}
