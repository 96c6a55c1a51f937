package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"

	"github.com/goldenyears/premium-api/app/models"
)

// Outcome describes what processing a webhook delivery did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeNoOp      Outcome = "no_op"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// eventKind is the closed set of webhook event types this reconciler acts on.
// Everything else falls through to eventUnhandled, which is logged and
// acknowledged without touching state.
type eventKind int

const (
	eventUnhandled eventKind = iota
	eventSubscriptionCreated
	eventSubscriptionUpdated
	eventSubscriptionDeleted
	eventPaymentSucceeded
	eventPaymentFailed
)

func classifyEvent(eventType string) eventKind {
	switch eventType {
	case "customer.subscription.created":
		return eventSubscriptionCreated
	case "customer.subscription.updated":
		return eventSubscriptionUpdated
	case "customer.subscription.deleted":
		return eventSubscriptionDeleted
	case "invoice.payment_succeeded":
		return eventPaymentSucceeded
	case "invoice.payment_failed":
		return eventPaymentFailed
	default:
		return eventUnhandled
	}
}

// Reconciler applies provider-confirmed lifecycle events to local
// subscription records. Delivery is at-least-once and unordered; the status
// transition table keeps re-delivery and out-of-order events harmless.
type Reconciler struct {
	repo          Repository
	locker        Locker
	signingSecret string
}

// NewReconciler creates a webhook reconciler from injected collaborators.
func NewReconciler(repo Repository, locker Locker, signingSecret string) *Reconciler {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Reconciler{repo: repo, locker: locker, signingSecret: signingSecret}
}

// HandleEvent verifies, deduplicates and applies one webhook delivery.
// Signature verification happens before any payload decoding, so nothing acts
// on unauthenticated data. The event record is marked processed only after
// the state transition committed; a crash in between is safe because the
// transition itself is idempotent under re-delivery.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (Outcome, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, r.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Printf("webhook: signature verification failed: %v", err)
		return "", ErrInvalidSignature
	}

	created, stored, err := r.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		StripeEventID: event.ID,
		EventType:     string(event.Type),
		PayloadJSON:   string(payload),
	})
	if err != nil {
		return "", err
	}
	if !created && stored.ProcessedAt != nil {
		// Already applied; replay must not reapply.
		log.Printf("webhook: event %s (%s) outcome=%s", event.ID, event.Type, OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}

	outcome, applyErr := r.apply(ctx, &event)
	if applyErr != nil {
		// Leave the event unprocessed so the provider's retry re-applies it.
		if err := r.repo.RecordWebhookError(stored.ID, applyErr.Error()); err != nil {
			log.Printf("webhook: failed to record error for event %s: %v", event.ID, err)
		}
		log.Printf("webhook: event %s (%s) failed: %v", event.ID, event.Type, applyErr)
		return "", applyErr
	}

	if err := r.repo.MarkWebhookProcessed(stored.ID); err != nil {
		log.Printf("webhook: failed to mark event %s processed: %v", event.ID, err)
	}
	log.Printf("webhook: event %s (%s) outcome=%s", event.ID, event.Type, outcome)
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, event *stripe.Event) (Outcome, error) {
	switch classifyEvent(string(event.Type)) {
	case eventSubscriptionCreated:
		return r.applySubscriptionEvent(ctx, event, true)
	case eventSubscriptionUpdated:
		return r.applySubscriptionEvent(ctx, event, false)
	case eventSubscriptionDeleted:
		return r.applyDeleted(ctx, event)
	case eventPaymentSucceeded:
		return r.applyInvoiceEvent(ctx, event, models.SubscriptionStatusActive)
	case eventPaymentFailed:
		return r.applyInvoiceEvent(ctx, event, models.SubscriptionStatusPastDue)
	case eventUnhandled:
		// Accepted and acknowledged so the sender stops retrying; not an error.
		return OutcomeIgnored, nil
	}
	return OutcomeIgnored, nil
}

// applySubscriptionEvent handles created/updated events. A created event for
// an unknown record materializes it when the customer is linked locally; an
// event for an unlinked customer is acknowledged and ignored.
func (r *Reconciler) applySubscriptionEvent(ctx context.Context, event *stripe.Event, allowCreate bool) (Outcome, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", fmt.Errorf("decode subscription payload: %w", err)
	}

	target := normalizeProviderStatus(string(sub.Status))
	var periodStart, periodEnd *time.Time
	if sub.CurrentPeriodStart > 0 {
		t := time.Unix(sub.CurrentPeriodStart, 0)
		periodStart = &t
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0)
		periodEnd = &t
	}

	outcome := OutcomeNoOp
	err := r.locker.WithLock(ctx, "subscription:"+sub.ID, func() error {
		record, err := r.repo.GetSubscriptionByProviderID(sub.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !allowCreate {
				outcome = OutcomeIgnored
				return nil
			}
			created, createErr := r.materializeSubscription(&sub, target, periodStart, periodEnd)
			if createErr != nil {
				return createErr
			}
			if created {
				outcome = OutcomeApplied
			} else {
				outcome = OutcomeIgnored
			}
			return nil
		}
		if err != nil {
			return err
		}

		if !CanTransition(record.Status, target) {
			// Out-of-order or non-advancing delivery.
			return nil
		}

		updates := map[string]interface{}{
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
		}
		if target == models.SubscriptionStatusCanceled {
			now := time.Now()
			updates["canceled_at"] = &now
		}
		applied, err := r.repo.TransitionSubscriptionStatus(sub.ID, target, TransitionSources(target), updates)
		if err != nil {
			return err
		}
		if applied {
			outcome = OutcomeApplied
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (r *Reconciler) applyDeleted(ctx context.Context, event *stripe.Event) (Outcome, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return "", fmt.Errorf("decode subscription payload: %w", err)
	}
	return r.transition(ctx, sub.ID, models.SubscriptionStatusCanceled)
}

func (r *Reconciler) applyInvoiceEvent(ctx context.Context, event *stripe.Event, target string) (Outcome, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return "", fmt.Errorf("decode invoice payload: %w", err)
	}
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		// One-off invoice, not tied to a subscription.
		return OutcomeIgnored, nil
	}
	return r.transition(ctx, inv.Subscription.ID, target)
}

func (r *Reconciler) transition(ctx context.Context, subscriptionID, target string) (Outcome, error) {
	outcome := OutcomeNoOp
	err := r.locker.WithLock(ctx, "subscription:"+subscriptionID, func() error {
		updates := map[string]interface{}{}
		if target == models.SubscriptionStatusCanceled {
			now := time.Now()
			updates["canceled_at"] = &now
		}
		applied, err := r.repo.TransitionSubscriptionStatus(subscriptionID, target, TransitionSources(target), updates)
		if err != nil {
			return err
		}
		if applied {
			outcome = OutcomeApplied
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// materializeSubscription creates a local record for a subscription first
// seen via webhook, resolving ownership through the customer link.
func (r *Reconciler) materializeSubscription(sub *stripe.Subscription, status string, periodStart, periodEnd *time.Time) (bool, error) {
	if sub.Customer == nil || sub.Customer.ID == "" {
		return false, nil
	}
	link, err := r.repo.GetCustomerLinkByCustomerID(sub.Customer.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("webhook: subscription %s references unlinked customer %s", sub.ID, sub.Customer.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	plan := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		plan = sub.Items.Data[0].Price.ID
	}
	record := &models.Subscription{
		CustomerLinkID:       link.ID,
		UserUID:              link.UserUID,
		StripeSubscriptionID: sub.ID,
		Plan:                 plan,
		Status:               status,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}
	if err := r.repo.CreateSubscriptionIfNotExists(record); err != nil {
		return false, err
	}
	return true, nil
}
