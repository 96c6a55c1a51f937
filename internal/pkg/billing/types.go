package billing

import "time"

// ProviderCustomer is the provider-agnostic shape of a billing customer
// returned by the payments backend.
type ProviderCustomer struct {
	ID    string
	Email string
}

// ProviderSubscription is the provider-agnostic shape of a subscription
// returned by the payments backend.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	ClientSecret       string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

// CreateSubscriptionResult carries everything the client needs to complete
// payment confirmation out-of-band.
type CreateSubscriptionResult struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientSecret   string `json:"clientSecret"`
	CustomerID     string `json:"customerId"`
	EphemeralKey   string `json:"ephemeralKey"`
}
