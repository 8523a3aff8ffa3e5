package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/birlikkoshan/todohub/internal/apperr"
	"github.com/birlikkoshan/todohub/internal/dto"
)

// writeError maps err to its HTTP status and writes the error body.
func writeError(c *gin.Context, err error) {
	ae := apperr.Classify(err)
	c.AbortWithStatusJSON(ae.HTTPStatus(), dto.ErrorResponse{
		StatusCode: ae.HTTPStatus(),
		Message:    ae.Message,
		Error:      ae.Kind.String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// bindJSON decodes the request body into dst, writing a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, apperr.InvalidInput("Invalid request body: %v", err))
		return false
	}
	return true
}

func parseID(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		writeError(c, apperr.InvalidInput("Invalid id: %s", raw))
		return "", false
	}
	return raw, true
}
