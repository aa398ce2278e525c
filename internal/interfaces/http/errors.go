package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrValidation),
		errors.Is(err, workflow.ErrInvalidCategory):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrRequestNotActionable),
		errors.Is(err, workflow.ErrWrongApprover),
		errors.Is(err, workflow.ErrScopeMismatch),
		errors.Is(err, workflow.ErrNotRequester):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrSignatureRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrConflict),
		errors.Is(err, workflow.ErrNotApproved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Internal errors are logged and
// their detail withheld from the client.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "path", c.Request.URL.Path, "error", err)
		c.JSON(status, Response{Success: false, Error: "internal server error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
