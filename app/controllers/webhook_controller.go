package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/goldenyears/premium-api/internal/pkg/billing"
)

// WebhookController receives Stripe's asynchronous payment-lifecycle events.
// The route is unauthenticated; the payload signature is the credential.
type WebhookController struct {
	reconciler *billing.Reconciler
}

func NewWebhookController(reconciler *billing.Reconciler) *WebhookController {
	return &WebhookController{reconciler: reconciler}
}

func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := wc.reconciler.HandleEvent(ctx, rawBody, signature)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "outcome": string(outcome)})
}
