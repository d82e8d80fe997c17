package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/gin-gonic/gin"
)

// statusFor traduce los errores del motor a códigos HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPoolNotFound), errors.Is(err, domain.ErrSubmissionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPhaseViolation), errors.Is(err, domain.ErrInsufficientSubmissions):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSelfVoteRejected):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrIncompleteSubmission),
		errors.Is(err, domain.ErrInvalidOutcome),
		errors.Is(err, domain.ErrInvalidPool):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError escribe el error como JSON. Los 5xx no exponen el detalle.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
