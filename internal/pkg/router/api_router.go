package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/goldenyears/premium-api/app/controllers"
	"github.com/goldenyears/premium-api/internal/pkg/auth"
	"github.com/goldenyears/premium-api/internal/pkg/middleware"
)

// ApiRouter installs the subscription API and the webhook receiver. The
// webhook route stays outside the authenticated group: its credential is the
// payload signature, not a bearer token.
type ApiRouter struct {
	billing  *controllers.BillingController
	webhook  *controllers.WebhookController
	verifier auth.TokenVerifier
}

func NewApiRouter(billing *controllers.BillingController, webhook *controllers.WebhookController, verifier auth.TokenVerifier) *ApiRouter {
	return &ApiRouter{billing: billing, webhook: webhook, verifier: verifier}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/webhooks/stripe", h.webhook.HandleStripeWebhook)

	api := app.Group("/api", limiter.New())
	v1 := api.Group("/v1", middleware.FirebaseAuthMiddleware(h.verifier))
	v1.Post("/create-subscription", h.billing.HandleCreateSubscription)
	v1.Post("/cancel-subscription", h.billing.HandleCancelSubscription)
	v1.Post("/update-payment-method", h.billing.HandleUpdatePaymentMethod)
}
