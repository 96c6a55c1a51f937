package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/goldenyears/premium-api/app/models"
)

// fakeRepo is an in-memory Repository with the same uniqueness semantics as
// the GORM implementation.
type fakeRepo struct {
	mu     sync.Mutex
	nextID uint
	links  map[string]*models.CustomerLink // keyed by user uid
	subs   map[string]*models.Subscription // keyed by stripe subscription id
	events map[string]*models.WebhookEvent // keyed by stripe event id

	transitionErr error // returned by the next TransitionSubscriptionStatus call, then cleared
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		links:  map[string]*models.CustomerLink{},
		subs:   map[string]*models.Subscription{},
		events: map[string]*models.WebhookEvent{},
	}
}

func (r *fakeRepo) id() uint {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) GetCustomerLinkByUserUID(userUID string) (*models.CustomerLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if link, ok := r.links[userUID]; ok {
		cp := *link
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetCustomerLinkByCustomerID(stripeCustomerID string) (*models.CustomerLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range r.links {
		if link.StripeCustomerID == stripeCustomerID {
			cp := *link
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CreateCustomerLinkIfNotExists(link *models.CustomerLink) (bool, *models.CustomerLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.links[link.UserUID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	link.ID = r.id()
	cp := *link
	r.links[link.UserUID] = &cp
	out := cp
	return true, &out, nil
}

func (r *fakeRepo) GetSubscriptionByProviderID(stripeSubscriptionID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[stripeSubscriptionID]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CreateSubscriptionIfNotExists(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.subs[sub.StripeSubscriptionID]; ok {
		*sub = *stored
		return nil
	}
	sub.ID = r.id()
	cp := *sub
	r.subs[sub.StripeSubscriptionID] = &cp
	return nil
}

func (r *fakeRepo) TransitionSubscriptionStatus(stripeSubscriptionID, target string, allowedFrom []string, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitionErr != nil {
		err := r.transitionErr
		r.transitionErr = nil
		return false, err
	}
	sub, ok := r.subs[stripeSubscriptionID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range allowedFrom {
		if sub.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	sub.Status = target
	if v, ok := updates["canceled_at"].(*time.Time); ok {
		sub.CanceledAt = v
	}
	if v, ok := updates["current_period_start"].(*time.Time); ok && v != nil {
		sub.CurrentPeriodStart = v
	}
	if v, ok := updates["current_period_end"].(*time.Time); ok && v != nil {
		sub.CurrentPeriodEnd = v
	}
	return true, nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.events[event.StripeEventID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	event.ID = r.id()
	cp := *event
	r.events[event.StripeEventID] = &cp
	out := cp
	return true, &out, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = ""
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRepo) RecordWebhookError(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.ID == id {
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakePayments is an in-memory PaymentsClient that records calls.
type fakePayments struct {
	mu               sync.Mutex
	nextCustomer     int
	nextSubscription int
	customersByUID   map[string]*ProviderCustomer
	customersByEmail map[string]*ProviderCustomer
	attached         map[string]string // payment method id -> customer id
	defaults         map[string]string // customer id -> payment method id
	createdCustomers int
	cancelCalls      int
	attachCalls      int
	cancelErr        error
}

func newFakePayments() *fakePayments {
	return &fakePayments{
		customersByUID:   map[string]*ProviderCustomer{},
		customersByEmail: map[string]*ProviderCustomer{},
		attached:         map[string]string{},
		defaults:         map[string]string{},
	}
}

func (p *fakePayments) CreateCustomer(_ context.Context, email, userUID string) (*ProviderCustomer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextCustomer++
	p.createdCustomers++
	cust := &ProviderCustomer{ID: fmt.Sprintf("cus_fake_%d", p.nextCustomer), Email: email}
	p.customersByUID[userUID] = cust
	p.customersByEmail[email] = cust
	return cust, nil
}

func (p *fakePayments) FindCustomerByUID(_ context.Context, userUID string) (*ProviderCustomer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cust, ok := p.customersByUID[userUID]; ok {
		return cust, nil
	}
	return nil, nil
}

func (p *fakePayments) FindCustomerByEmail(_ context.Context, email string) (*ProviderCustomer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cust, ok := p.customersByEmail[email]; ok {
		return cust, nil
	}
	return nil, nil
}

func (p *fakePayments) CreateSubscription(_ context.Context, customerID, priceID, _ string) (*ProviderSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSubscription++
	id := fmt.Sprintf("sub_fake_%d", p.nextSubscription)
	return &ProviderSubscription{
		ID:           id,
		CustomerID:   customerID,
		Status:       "incomplete",
		ClientSecret: "pi_secret_" + id,
	}, nil
}

func (p *fakePayments) CancelSubscription(_ context.Context, subscriptionID string) (*ProviderSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelCalls++
	if p.cancelErr != nil {
		return nil, p.cancelErr
	}
	return &ProviderSubscription{ID: subscriptionID, Status: "canceled"}, nil
}

func (p *fakePayments) AttachPaymentMethod(_ context.Context, customerID, paymentMethodID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attachCalls++
	// Re-attaching an already-attached method succeeds, as with Stripe.
	p.attached[paymentMethodID] = customerID
	return nil
}

func (p *fakePayments) SetDefaultPaymentMethod(_ context.Context, customerID, paymentMethodID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults[customerID] = paymentMethodID
	return nil
}

func (p *fakePayments) CreateEphemeralKey(_ context.Context, customerID string) (string, error) {
	return "ek_test_" + customerID, nil
}
