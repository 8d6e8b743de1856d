package middlewares

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"storefront-backend/apperr"
	"storefront-backend/logger"
)

// ErrorHandler centralizes error responses as {"error", "details"}. Messages
// of internal errors are replaced with a generic one in production.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// 1) Application errors
		if ae, ok := apperr.As(err); ok {
			status := apperr.HTTPStatus(ae)
			if ae.Kind == apperr.Internal {
				return internal(c, err, ae.Message, production)
			}
			body := fiber.Map{"error": ae.Message}
			if len(ae.Details) > 0 {
				body["details"] = ae.Details
			}
			return c.Status(status).JSON(body)
		}

		// 2) Fiber errors (use their status code + message)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		// 3) Validation errors, keyed by json field name
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := make(map[string]string, len(ve))
			for _, fe := range ve {
				out[fe.Field()] = fe.Tag()
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Validation failed",
				"details": out,
			})
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
		}

		// 4) Unknown errors (500)
		return internal(c, err, err.Error(), production)
	}
}

func internal(c *fiber.Ctx, err error, msg string, production bool) error {
	logger.WithRequest(c).WithError(err).Error("internal error")
	body := fiber.Map{"error": "Internal server error"}
	if !production {
		body["details"] = fiber.Map{"message": msg, "cause": err.Error()}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(body)
}
