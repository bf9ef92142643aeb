// internal/api/responses.go
package api

import (
	"net/http"

	apperrors "driving-school-api/internal/common/errors"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

// fail writes err as a JSON error response. Server-side failures get the
// fallback message; their details only go to the log.
func (s *Server) fail(c *gin.Context, err error, fallback string) {
	status := apperrors.HTTPStatus(err)

	fields := map[string]interface{}{
		"path":      c.Request.URL.Path,
		"status":    status,
		"code":      string(apperrors.CodeOf(err)),
		"error":     err.Error(),
		"requestId": c.GetString(requestIDKey),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Debug("request rejected", fields)
	}

	resp := errorResponse{
		Success: false,
		Message: apperrors.PublicMessage(err, fallback),
	}
	if status < http.StatusInternalServerError {
		resp.Errors = apperrors.FieldsOf(err)
	}
	c.AbortWithStatusJSON(status, resp)
}
