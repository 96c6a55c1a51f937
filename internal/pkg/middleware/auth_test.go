package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenyears/premium-api/internal/pkg/billing"
	"github.com/goldenyears/premium-api/internal/pkg/principal"
)

type fakeVerifier struct {
	tokens map[string]principal.Principal
}

func (v *fakeVerifier) Verify(_ context.Context, idToken string) (principal.Principal, error) {
	p, ok := v.tokens[idToken]
	if !ok {
		return principal.Principal{}, billing.ErrUnauthenticated
	}
	return p, nil
}

func newAuthTestApp(verifier *fakeVerifier) *fiber.App {
	app := fiber.New()
	app.Get("/protected", FirebaseAuthMiddleware(verifier), func(c *fiber.Ctx) error {
		p, _ := principal.FromCtx(c)
		return c.JSON(fiber.Map{"uid": p.UID, "email": p.Email})
	})
	return app
}

func TestFirebaseAuthMiddleware_MissingHeader(t *testing.T) {
	app := newAuthTestApp(&fakeVerifier{tokens: map[string]principal.Principal{}})

	req := httptest.NewRequest("GET", "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestFirebaseAuthMiddleware_MalformedHeader(t *testing.T) {
	app := newAuthTestApp(&fakeVerifier{tokens: map[string]principal.Principal{}})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Token abc123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestFirebaseAuthMiddleware_InvalidToken(t *testing.T) {
	app := newAuthTestApp(&fakeVerifier{tokens: map[string]principal.Principal{}})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestFirebaseAuthMiddleware_ValidTokenSetsPrincipal(t *testing.T) {
	verifier := &fakeVerifier{tokens: map[string]principal.Principal{
		"good-token": {UID: "user-1", Email: "user@example.com"},
	}}
	app := newAuthTestApp(verifier)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
