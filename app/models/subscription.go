package models

import "time"

const (
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusUnpaid     = "unpaid"
	SubscriptionStatusCanceled   = "canceled"
)

// Subscription mirrors a Stripe subscription's lifecycle state for a linked
// customer. Rows are never deleted; a subscription ends by transitioning to
// canceled and is retained for audit.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	CustomerLinkID       uint       `gorm:"not null;index" json:"customer_link_id"`
	UserUID              string     `gorm:"type:varchar(128);not null;index" json:"user_uid"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_stripe_sub" json:"stripe_subscription_id"`
	Plan                 string     `gorm:"type:varchar(50);not null" json:"plan"`
	Status               string     `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CanceledAt           *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
