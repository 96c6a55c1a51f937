package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/goldenyears/premium-api/internal/pkg/auth"
	"github.com/goldenyears/premium-api/internal/pkg/principal"
)

// FirebaseAuthMiddleware authenticates requests carrying a Firebase ID token
// in the Authorization header and attaches the verified principal to locals.
func FirebaseAuthMiddleware(verifier auth.TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing bearer token"})
		}

		p, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			// Uniform rejection regardless of which check failed.
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid credentials"})
		}

		c.Locals(principal.LocalsKey, p)
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	authHeader := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
