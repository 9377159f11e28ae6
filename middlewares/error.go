package middlewares

import (
	"errors"

	"newsletter-backend/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		// Fiber errors carry their own status code and message.
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		// Struct validation (422 + per-field info)
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := make(map[string]string, len(ve))
			for _, f := range ve {
				out[f.Field()] = f.Tag()
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "validation failed",
				"errors":  out,
			})
		}

		var ave *apperror.ValidationError
		if errors.As(err, &ave) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": ave.Error(),
				"field":   ave.Field,
			})
		}

		fields := []zap.Field{
			zap.Error(err),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		}
		if apperror.IsStorage(err) {
			logger.Error("storage failure", fields...)
		} else {
			logger.Error("internal error", fields...)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}
}
