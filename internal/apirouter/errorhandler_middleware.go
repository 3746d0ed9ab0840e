package apirouter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ferriqa/ferriqa/internal/registry"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
)

func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		var errorResponse ErrorResponse
		errorResponse.Parse(err.Err)
		handleErrorResponse(c, errorResponse)
	}
}

type ErrorResponse struct {
	Err     error       `json:"-"`
	Code    int         `json:"-"`
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e ErrorResponse) Error() string {
	return e.Message
}

func (e *ErrorResponse) Parse(err error) {
	var errorResponse ErrorResponse
	if errors.As(err, &errorResponse) {
		*e = errorResponse
		e.Err = errorResponse.Err
		return
	}

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, fieldErr := range validationErrors {
			messages = append(messages, formatValidationError(fieldErr.Field(), fieldErr.Tag(), fieldErr.Param()))
		}
		e.Code = http.StatusUnprocessableEntity
		e.Message = "validation error"
		e.Data = messages
		e.Err = err
		return
	}
	if isInvalidJSON(err) {
		e.Code = http.StatusBadRequest
		e.Message = "invalid JSON"
		e.Err = err
		return
	}

	var webhookValidationErr *registry.ErrWebhookValidation
	if errors.As(err, &webhookValidationErr) {
		var messages []string
		for _, detail := range webhookValidationErr.Errors {
			messages = append(messages, formatValidationError(detail.Field, detail.Type, ""))
		}
		e.Code = http.StatusUnprocessableEntity
		e.Message = "validation error"
		e.Data = messages
		e.Err = err
		return
	}

	if errors.Is(err, registry.ErrWebhookNotFound) {
		e.Code = http.StatusNotFound
		e.Message = "webhook not found"
		e.Err = err
		return
	}

	e.Code = http.StatusInternalServerError
	e.Message = err.Error()
	e.Err = err
}

func formatValidationError(field, tag, param string) string {
	field = strings.ToLower(field)

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "invalid_url":
		return fmt.Sprintf("%s must be an absolute http(s) URL", field)
	case "unknown_event":
		return fmt.Sprintf("%s contains an unknown event name", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		if param != "" {
			return fmt.Sprintf("%s failed %s=%s validation", field, tag, param)
		}
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

func isInvalidJSON(err error) bool {
	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &syntaxError) ||
		errors.As(err, &unmarshalTypeError)
}

func handleErrorResponse(c *gin.Context, response ErrorResponse) {
	response.Status = response.Code
	c.JSON(response.Code, response)
}

func NewErrInternalServer(err error) ErrorResponse {
	return ErrorResponse{
		Err:     pkgerrors.WithStack(err),
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
	}
}

func NewErrBadRequest(err error) ErrorResponse {
	return ErrorResponse{
		Err:     err,
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	}
}

func NewErrNotFound(resource string) ErrorResponse {
	return ErrorResponse{
		Code:    http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}
