package httpapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mortuary/internal/core"
	blobcore "mortuary/internal/infra/blob/core"
	"mortuary/pkg/domain"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	ErrorCode string   `json:"error_code"`
	Missing   []string `json:"missing,omitempty"`
}

func statusToErrorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		if status >= 500 {
			return "INTERNAL_ERROR"
		}
		return "ERROR"
	}
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	if strings.TrimSpace(message) == "" {
		message = fiber.ErrInternalServerError.Message
	}
	return c.Status(status).JSON(ErrorResponse{
		Success:   false,
		Message:   message,
		ErrorCode: statusToErrorCode(status),
	})
}

func jsonOK(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "message": message, "data": data})
}

func jsonCreated(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": message, "data": data})
}

// fromServiceError maps core and domain errors onto HTTP replies.
func fromServiceError(c *fiber.Ctx, err error) error {
	var verr *core.ValidationError
	var ierr *core.ImportError
	var ferr *fiber.Error
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Success:   false,
			Message:   verr.Error(),
			ErrorCode: statusToErrorCode(fiber.StatusUnprocessableEntity),
			Missing:   verr.Missing,
		})
	case core.IsNotFound(err):
		return jsonError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRevisionConflict):
		return jsonError(c, fiber.StatusConflict, err.Error()+"; reload and retry")
	case errors.As(err, &ierr):
		return jsonError(c, fiber.StatusBadRequest, ierr.Error())
	case errors.Is(err, blobcore.ErrExists):
		return jsonError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, core.ErrBackupUnavailable):
		return jsonError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.As(err, &ferr):
		return jsonError(c, ferr.Code, ferr.Message)
	default:
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
}
