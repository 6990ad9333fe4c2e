package api

import (
	"errors"

	"go-glsync/internal/common/models"
	"go-glsync/internal/glsync"

	"github.com/gofiber/fiber/v2"
)

// ErrorStatus maps the shared sentinel errors to HTTP status codes
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, glsync.ErrTransport):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Fail writes the standard error body
func Fail(c *fiber.Ctx, err error) error {
	return c.Status(ErrorStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
