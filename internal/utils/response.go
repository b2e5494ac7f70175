package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
)

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// OK sends a 200 success payload with optional pagination or cache metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	if message == "" {
		message = "success"
	}

	return c.Status(fiber.StatusOK).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
		Meta:    meta,
	})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail sends an error payload with optional details.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Code:    codeForStatus(status),
		Message: message,
		Details: details,
	})
}

// SendAppError renders a service error with the status of its kind.
// Storage failures never leak their cause.
func SendAppError(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	status := StatusForKind(kind)

	message := err.Error()
	var details interface{}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		message = "invalid request payload"
		details = fieldErrors(validationErrors)
	}
	if kind == apperror.KindStorage {
		message = "internal server error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Code:    string(kind),
		Message: message,
		Details: details,
	})
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind apperror.Kind) int {
	switch kind {
	case apperror.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperror.KindForbidden:
		return fiber.StatusForbidden
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindValidation:
		return fiber.StatusBadRequest
	case apperror.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return string(apperror.KindUnauthorized)
	case fiber.StatusForbidden:
		return string(apperror.KindForbidden)
	case fiber.StatusNotFound:
		return string(apperror.KindNotFound)
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return string(apperror.KindValidation)
	case fiber.StatusConflict:
		return string(apperror.KindConflict)
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	}
	if status >= fiber.StatusInternalServerError {
		return "internal_error"
	}
	return ""
}

func fieldErrors(errs validator.ValidationErrors) []FieldError {
	fields := make([]FieldError, 0, len(errs))
	for _, fieldErr := range errs {
		fields = append(fields, FieldError{
			Field: strings.ToLower(fieldErr.Field()),
			Rule:  fieldErr.Tag(),
		})
	}
	return fields
}
