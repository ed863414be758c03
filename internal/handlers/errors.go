// Package handlers exposes the onboarding API over HTTP.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
)

// respondError maps domain errors to HTTP responses carrying a "detail" message.
func respondError(c *gin.Context, operation string, err error) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, models.ErrValidation):
		log.Warn(ctx, "Request rejected", "error", err, "operation", operation)
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		log.Error(ctx, "Request failed", "error", err, "operation", operation)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}

// bindJSON decodes the request body, answering 400 when it is malformed.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		log.Warn(c.Request.Context(), "Invalid request body", "error", err, "content_type", c.ContentType())
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return false
	}
	return true
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"detail": "forbidden"})
}
