package handler

import (
	"errors"
	"net/http"

	"backend/internal/apperr"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps business errors to HTTP statuses. Anything the caller can
// fix gets a 4xx with the message intact; everything else is a 500.
func writeError(c *gin.Context, err error) {
	var notFound *apperr.NotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	var validation *apperr.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	var duplicateSKU *apperr.DuplicateSKUError
	if errors.As(err, &duplicateSKU) {
		c.JSON(http.StatusConflict, response.ErrorWithData(http.StatusConflict, err.Error(), map[string]interface{}{
			"skus": duplicateSKU.SKUs,
		}))
		return
	}

	var insufficient *apperr.InsufficientStockError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusConflict, response.ErrorWithData(http.StatusConflict, err.Error(), map[string]interface{}{
			"shortages": insufficient.Shortages,
		}))
		return
	}

	var transition *apperr.InvalidStateTransitionError
	if errors.As(err, &transition) {
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
		return
	}

	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
}
