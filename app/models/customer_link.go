package models

import "time"

// CustomerLink maps an application user (Firebase UID) to the Stripe customer
// that bills them. At most one link exists per user; the unique index on
// user_uid makes concurrent first-time creates collapse to a single row.
type CustomerLink struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserUID          string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_customer_links_user_uid" json:"user_uid"`
	StripeCustomerID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_customer_links_stripe_customer" json:"stripe_customer_id"`
	Email            string    `gorm:"type:varchar(200);default:''" json:"email"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
