package controllers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/goldenyears/premium-api/internal/pkg/billing"
	"github.com/goldenyears/premium-api/internal/pkg/principal"
)

const requestTimeout = 25 * time.Second

// BillingController serves the authenticated subscription endpoints. Identity
// comes from the verified principal in locals; body fields never carry it.
type BillingController struct {
	svc      *billing.Service
	validate *validator.Validate
}

func NewBillingController(svc *billing.Service) *BillingController {
	return &BillingController{svc: svc, validate: validator.New()}
}

type createSubscriptionRequest struct {
	Plan string `json:"plan" validate:"required"`
}

type cancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

type updatePaymentMethodRequest struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
}

func (bc *BillingController) HandleCreateSubscription(c *fiber.Ctx) error {
	p, ok := principal.FromCtx(c)
	if !ok {
		return respondError(c, billing.ErrUnauthenticated)
	}

	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, billing.ErrValidation)
	}
	if err := bc.validate.Struct(&req); err != nil {
		return respondError(c, billing.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	result, err := bc.svc.CreateSubscription(ctx, p, req.Plan)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (bc *BillingController) HandleCancelSubscription(c *fiber.Ctx) error {
	p, ok := principal.FromCtx(c)
	if !ok {
		return respondError(c, billing.ErrUnauthenticated)
	}

	var req cancelSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, billing.ErrValidation)
	}
	if err := bc.validate.Struct(&req); err != nil {
		return respondError(c, billing.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	sub, err := bc.svc.CancelSubscription(ctx, p, req.SubscriptionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"subscription": sub})
}

func (bc *BillingController) HandleUpdatePaymentMethod(c *fiber.Ctx) error {
	p, ok := principal.FromCtx(c)
	if !ok {
		return respondError(c, billing.ErrUnauthenticated)
	}

	var req updatePaymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, billing.ErrValidation)
	}
	if err := bc.validate.Struct(&req); err != nil {
		return respondError(c, billing.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := bc.svc.UpdateDefaultPaymentMethod(ctx, p, req.PaymentMethodID); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
