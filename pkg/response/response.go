package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexusesi/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// OKMessage sends a 200 JSON response with a message and optional data.
func OKMessage(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Message: msg, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with a message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Message: msg})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Message: msg})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Message: msg})
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Message: msg})
}

// Unprocessable sends 422 with per-field errors.
func Unprocessable(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusUnprocessableEntity, Body{Success: false, Message: "the given data was invalid", Errors: fields})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Message: msg})
}

// Internal sends 500.
func Internal(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Message: msg})
}

// Error maps a service error onto the envelope. Unexpected errors are logged and never leak detail.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	var (
		business   *apperr.BusinessError
		validation *apperr.ValidationError
	)
	switch {
	case errors.As(err, &validation):
		Unprocessable(c, validation.Fields)
	case errors.As(err, &business):
		BadRequest(c, business.Message)
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(c, apperr.ErrNotFound.Error())
	case errors.Is(err, apperr.ErrForbidden):
		Forbidden(c, apperr.ErrForbidden.Error())
	case errors.Is(err, apperr.ErrUnauthenticated):
		Unauthorized(c, apperr.ErrUnauthenticated.Error())
	default:
		if logger != nil {
			logger.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
			)
		}
		Internal(c, "internal server error")
	}
}
