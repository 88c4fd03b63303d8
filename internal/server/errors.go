// file: internal/server/errors.go
// version: 1.1.0
// guid: a57fe34f-5c54-4f85-9d9c-76fd923832bb

package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

// ErrorResponse provides a consistent error response format
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Status int    `json:"status"`
}

// RespondWithError sends a standardized error response and logs the error
func RespondWithError(c *gin.Context, statusCode int, message string, code string) {
	if statusCode >= http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s -> %d: %s", c.Request.Method, c.Request.URL.Path, statusCode, message)
	}
	c.JSON(statusCode, ErrorResponse{
		Error:  message,
		Code:   code,
		Status: statusCode,
	})
}

// respondWithDomainError maps sentinel errors onto the HTTP taxonomy.
func respondWithDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		RespondWithError(c, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, models.ErrConflict):
		RespondWithError(c, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, models.ErrUnauthorized):
		RespondWithError(c, http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	default:
		RespondWithError(c, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
