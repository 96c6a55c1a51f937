package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/goldenyears/premium-api/internal/pkg/env"
)

const providerCallTimeout = 20 * time.Second

// PaymentsClient is the payments backend collaborator. The Stripe
// implementation is explicitly constructed and injected so tests can swap in
// doubles; there is no process-global SDK state.
type PaymentsClient interface {
	CreateCustomer(ctx context.Context, email, userUID string) (*ProviderCustomer, error)
	FindCustomerByUID(ctx context.Context, userUID string) (*ProviderCustomer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*ProviderCustomer, error)
	CreateSubscription(ctx context.Context, customerID, priceID, idempotencyKey string) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	CreateEphemeralKey(ctx context.Context, customerID string) (string, error)
}

// StripeClient implements PaymentsClient on the official stripe-go SDK.
type StripeClient struct {
	api        *client.API
	apiVersion string
}

// NewStripeClient builds a Stripe client with its own HTTP client and hard
// timeout. apiVersion pins ephemeral key issuance for mobile SDK callers.
func NewStripeClient(secretKey, apiVersion string) *StripeClient {
	backends := stripe.NewBackends(&http.Client{Timeout: providerCallTimeout})
	return &StripeClient{
		api:        client.New(secretKey, backends),
		apiVersion: apiVersion,
	}
}

// NewStripeClientFromEnv builds a Stripe client from the configured secret key.
func NewStripeClientFromEnv() *StripeClient {
	return NewStripeClient(
		env.GetEnv("STRIPE_SECRET_KEY", ""),
		env.GetEnv("STRIPE_API_VERSION", "2023-10-16"),
	)
}

func (s *StripeClient) CreateCustomer(ctx context.Context, email, userUID string) (*ProviderCustomer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("firebase_uid", userUID)

	cust, err := s.api.Customers.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return &ProviderCustomer{ID: cust.ID, Email: cust.Email}, nil
}

// FindCustomerByUID searches customers by the firebase_uid metadata written at
// creation time. This is the authoritative provider-side lookup; email search
// is only a recovery path.
func (s *StripeClient) FindCustomerByUID(ctx context.Context, userUID string) (*ProviderCustomer, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("metadata['firebase_uid']:'%s'", userUID),
			Context: ctx,
		},
	}
	iter := s.api.Customers.Search(params)
	for iter.Next() {
		cust := iter.Customer()
		return &ProviderCustomer{ID: cust.ID, Email: cust.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError(err)
	}
	return nil, nil
}

func (s *StripeClient) FindCustomerByEmail(ctx context.Context, email string) (*ProviderCustomer, error) {
	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := s.api.Customers.List(params)
	for iter.Next() {
		cust := iter.Customer()
		return &ProviderCustomer{ID: cust.ID, Email: cust.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError(err)
	}
	return nil, nil
}

func (s *StripeClient) CreateSubscription(ctx context.Context, customerID, priceID, idempotencyKey string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := s.api.Subscriptions.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return buildProviderSubscription(sub), nil
}

func (s *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return buildProviderSubscription(sub), nil
}

// AttachPaymentMethod attaches the payment method to the customer. Attaching
// an already-attached method is treated as success so retries stay idempotent.
func (s *StripeClient) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	if _, err := s.api.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		if isAlreadyAttached(err) {
			return nil
		}
		return wrapStripeError(err)
	}
	return nil
}

// isAlreadyAttached reports whether an attach failed only because the payment
// method already belongs to a customer. Stripe signals this either with a
// dedicated error code or as a generic invalid_request_error carrying the
// detail in the message.
func isAlreadyAttached(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	if strings.Contains(string(stripeErr.Code), "already_attached") {
		return true
	}
	return strings.Contains(strings.ToLower(stripeErr.Msg), "already been attached")
}

func (s *StripeClient) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params.Context = ctx

	if _, err := s.api.Customers.Update(customerID, params); err != nil {
		return wrapStripeError(err)
	}
	return nil
}

func (s *StripeClient) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(s.apiVersion),
	}
	params.Context = ctx

	key, err := s.api.EphemeralKeys.New(params)
	if err != nil {
		return "", wrapStripeError(err)
	}
	return key.Secret, nil
}

func buildProviderSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodStart > 0 {
		t := time.Unix(sub.CurrentPeriodStart, 0)
		out.CurrentPeriodStart = &t
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0)
		out.CurrentPeriodEnd = &t
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		out.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return out
}

// wrapStripeError maps SDK errors onto the local taxonomy. Provider error
// details are logged here and never surfaced verbatim to callers.
func wrapStripeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrProviderTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrProviderTimeout
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Printf("stripe: request failed: type=%s code=%s status=%d msg=%q",
			stripeErr.Type, stripeErr.Code, stripeErr.HTTPStatusCode, stripeErr.Msg)
		if stripeErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, stripeErr.Code)
		}
		return fmt.Errorf("%w: %s", ErrProvider, stripeErr.Code)
	}

	log.Printf("stripe: request failed: %v", err)
	return fmt.Errorf("%w: %v", ErrProvider, err)
}
