package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// RespondError writes err as a JSON error response, preserving its status
// code when it is one of the taxonomy's *APIError values and otherwise
// falling back to a sanitized internal error.
func RespondError(c *gin.Context, environment string, err error) {
	var apiErr *sgserrors.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, sgserrors.ErrorResponse{Error: apiErr})
		return
	}
	sanitized := sgserrors.Internal(environment, err)
	c.JSON(sanitized.Status, sgserrors.ErrorResponse{Error: sanitized})
}
