package handlers

import (
	"errors"
	"net/http"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/labstack/echo/v4"
)

// respondError maps service errors to HTTP responses
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody("not_found", err))
	case errors.Is(err, models.ErrNotAuthorized):
		return c.JSON(http.StatusForbidden, errorBody("not_authorized", err))
	case errors.Is(err, models.ErrValidationFailed), errors.Is(err, models.ErrNoIdentifyingInfo):
		return c.JSON(http.StatusBadRequest, errorBody("validation_failed", err))
	default:
		return c.JSON(http.StatusInternalServerError, errorBody("internal_error", err))
	}
}

func errorBody(code string, err error) map[string]interface{} {
	return map[string]interface{}{
		"error":   code,
		"message": err.Error(),
	}
}
