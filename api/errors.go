package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/gin-gonic/gin"
)

type fieldErrors map[string][]string

// writeError is the single place where errors become HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors{"credentials": {"are invalid"}}})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"errors": fieldErrors{"token": {"is invalid"}}})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"errors": fieldErrors{"resource": {"is forbidden"}}})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"errors": "Record not found"})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"errors": fieldErrors{"base": {"was changed concurrently, try again"}}})
	default:
		logging.FromContext(c.Request.Context(), nil).ErrorContext(c.Request.Context(), "request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"errors": fieldErrors{"base": {"internal server error"}}})
	}
	c.Abort()
}

func badRequest(c *gin.Context, field, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": fieldErrors{field: {message}}})
}
