package billing

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/goldenyears/premium-api/app/models"
	"github.com/goldenyears/premium-api/internal/pkg/principal"
)

// Locker serializes writers touching the same subscription record. The
// database status preconditions stay authoritative; the lock only bounds
// contention between a user-initiated cancel and a concurrent webhook.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// NoopLocker satisfies Locker without locking, for tests and single-writer
// deployments.
type NoopLocker struct{}

func (NoopLocker) WithLock(_ context.Context, _ string, fn func() error) error { return fn() }

// Service owns user-initiated subscription lifecycle operations. Identity is
// taken exclusively from the verified principal, never from request fields.
type Service struct {
	repo     Repository
	payments PaymentsClient
	locker   Locker
	plans    map[string]string
}

// NewService creates a subscription service from injected collaborators.
func NewService(repo Repository, payments PaymentsClient, locker Locker, plans map[string]string) *Service {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Service{repo: repo, payments: payments, locker: locker, plans: plans}
}

// CreateSubscription resolves or creates the customer link for the principal,
// creates an incomplete subscription against the plan's price, and returns the
// confirmation material (client secret, ephemeral key) for the caller to
// finish payment out-of-band.
func (s *Service) CreateSubscription(ctx context.Context, p principal.Principal, plan string) (*CreateSubscriptionResult, error) {
	priceID, err := resolvePrice(s.plans, plan)
	if err != nil {
		return nil, err
	}

	link, err := s.ensureCustomerLink(ctx, p)
	if err != nil {
		return nil, err
	}

	// The idempotency key keeps a client retry from minting a second
	// provider subscription for the same attempt.
	sub, err := s.payments.CreateSubscription(ctx, link.StripeCustomerID, priceID, uuid.NewString())
	if err != nil {
		return nil, err
	}

	record := &models.Subscription{
		CustomerLinkID:       link.ID,
		UserUID:              link.UserUID,
		StripeSubscriptionID: sub.ID,
		Plan:                 normalizePlan(plan),
		Status:               normalizeProviderStatus(sub.Status),
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
	}
	// Insert-if-absent: a webhook that already materialized and advanced the
	// record must not be regressed by this write.
	if err := s.repo.CreateSubscriptionIfNotExists(record); err != nil {
		return nil, err
	}

	ephemeralKey, err := s.payments.CreateEphemeralKey(ctx, link.StripeCustomerID)
	if err != nil {
		return nil, err
	}

	log.Printf("billing: subscription %s created for user %s (plan %s)", sub.ID, p.UID, plan)
	return &CreateSubscriptionResult{
		SubscriptionID: sub.ID,
		ClientSecret:   sub.ClientSecret,
		CustomerID:     link.StripeCustomerID,
		EphemeralKey:   ephemeralKey,
	}, nil
}

// CancelSubscription verifies ownership against the local record, requests
// cancellation from the provider, and marks the record canceled only after
// the provider confirmed. A failed provider call leaves the record untouched;
// the webhook reconciler converges on whatever state the provider reports.
func (s *Service) CancelSubscription(ctx context.Context, p principal.Principal, subscriptionID string) (*models.Subscription, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, ErrValidation
	}

	record, err := s.repo.GetSubscriptionByProviderID(subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if record.UserUID != p.UID {
		log.Printf("billing: user %s attempted to cancel subscription %s owned by %s", p.UID, subscriptionID, record.UserUID)
		return nil, ErrForbidden
	}

	err = s.locker.WithLock(ctx, "subscription:"+subscriptionID, func() error {
		if _, err := s.payments.CancelSubscription(ctx, subscriptionID); err != nil {
			return err
		}
		now := time.Now()
		applied, err := s.repo.TransitionSubscriptionStatus(
			subscriptionID,
			models.SubscriptionStatusCanceled,
			TransitionSources(models.SubscriptionStatusCanceled),
			map[string]interface{}{"canceled_at": &now},
		)
		if err != nil {
			return err
		}
		if !applied {
			// A webhook already moved the record to canceled; nothing lost.
			log.Printf("billing: subscription %s already canceled", subscriptionID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.GetSubscriptionByProviderID(subscriptionID)
	if err != nil {
		return nil, err
	}
	log.Printf("billing: subscription %s canceled by user %s", subscriptionID, p.UID)
	return updated, nil
}

// UpdateDefaultPaymentMethod attaches the payment method to the principal's
// billing customer and makes it the default for future invoices. Re-running
// with the same payment method succeeds.
func (s *Service) UpdateDefaultPaymentMethod(ctx context.Context, p principal.Principal, paymentMethodID string) error {
	paymentMethodID = strings.TrimSpace(paymentMethodID)
	if paymentMethodID == "" {
		return ErrValidation
	}

	link, err := s.repo.GetCustomerLinkByUserUID(p.UID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.payments.AttachPaymentMethod(ctx, link.StripeCustomerID, paymentMethodID); err != nil {
		return err
	}
	if err := s.payments.SetDefaultPaymentMethod(ctx, link.StripeCustomerID, paymentMethodID); err != nil {
		return err
	}

	log.Printf("billing: default payment method updated for user %s", p.UID)
	return nil
}

// ensureCustomerLink resolves the principal's billing customer. The locally
// stored link always wins; provider-side lookup by metadata uid, then by
// email, is solely a recovery path for first-time linkage (emails can collide
// or be reused).
func (s *Service) ensureCustomerLink(ctx context.Context, p principal.Principal) (*models.CustomerLink, error) {
	link, err := s.repo.GetCustomerLinkByUserUID(p.UID)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cust, err := s.payments.FindCustomerByUID(ctx, p.UID)
	if err != nil {
		return nil, err
	}
	if cust == nil && p.Email != "" {
		cust, err = s.payments.FindCustomerByEmail(ctx, p.Email)
		if err != nil {
			return nil, err
		}
	}
	createdCustomer := false
	if cust == nil {
		cust, err = s.payments.CreateCustomer(ctx, p.Email, p.UID)
		if err != nil {
			return nil, err
		}
		createdCustomer = true
	}

	created, stored, err := s.repo.CreateCustomerLinkIfNotExists(&models.CustomerLink{
		UserUID:          p.UID,
		StripeCustomerID: cust.ID,
		Email:            p.Email,
	})
	if err != nil {
		return nil, err
	}
	if !created && stored.StripeCustomerID != cust.ID && createdCustomer {
		// Lost a first-time race after creating a provider customer. The
		// local link stays authoritative; the orphan needs offline cleanup.
		log.Printf("billing: duplicate provider customer %s for user %s (kept %s)",
			cust.ID, p.UID, stored.StripeCustomerID)
	}
	return stored, nil
}
