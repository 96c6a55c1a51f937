package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/goldenyears/premium-api/internal/pkg/billing"
)

// respondError maps the billing error taxonomy onto HTTP responses. Provider
// detail stays in the logs; clients only see the generic taxonomy message.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid credentials"})
	case errors.Is(err, billing.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not allowed"})
	case errors.Is(err, billing.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Resource not found"})
	case errors.Is(err, billing.ErrPlanInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "Unknown plan"})
	case errors.Is(err, billing.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request"})
	case errors.Is(err, billing.ErrInvalidSignature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature", "message": "Webhook signature verification failed"})
	case errors.Is(err, billing.ErrProviderTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "provider_timeout", "message": "Payment provider timed out"})
	case errors.Is(err, billing.ErrProvider):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Payment provider rejected the request"})
	default:
		log.Printf("controllers: unexpected error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Something went wrong"})
	}
}
