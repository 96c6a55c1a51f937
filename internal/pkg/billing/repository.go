package billing

import (
	"time"

	"github.com/goldenyears/premium-api/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the subscription service and the
// webhook reconciler.
type Repository interface {
	GetCustomerLinkByUserUID(userUID string) (*models.CustomerLink, error)
	GetCustomerLinkByCustomerID(stripeCustomerID string) (*models.CustomerLink, error)
	CreateCustomerLinkIfNotExists(link *models.CustomerLink) (bool, *models.CustomerLink, error)
	GetSubscriptionByProviderID(stripeSubscriptionID string) (*models.Subscription, error)
	CreateSubscriptionIfNotExists(sub *models.Subscription) error
	TransitionSubscriptionStatus(stripeSubscriptionID, target string, allowedFrom []string, updates map[string]interface{}) (bool, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint) error
	RecordWebhookError(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCustomerLinkByUserUID(userUID string) (*models.CustomerLink, error) {
	var link models.CustomerLink
	if err := r.db.Where("user_uid = ?", userUID).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *gormRepository) GetCustomerLinkByCustomerID(stripeCustomerID string) (*models.CustomerLink, error) {
	var link models.CustomerLink
	if err := r.db.Where("stripe_customer_id = ?", stripeCustomerID).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// CreateCustomerLinkIfNotExists inserts the link unless one already exists for
// the user. The unique index on user_uid makes concurrent first-time creates
// collapse to a single row; the stored row is always returned.
func (r *gormRepository) CreateCustomerLinkIfNotExists(link *models.CustomerLink) (bool, *models.CustomerLink, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_uid"}},
		DoNothing: true,
	}).Create(link)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.CustomerLink
	if err := r.db.Where("user_uid = ?", link.UserUID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetSubscriptionByProviderID(stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscriptionIfNotExists inserts the record unless one already exists
// for the provider subscription id. On conflict the stored row wins: a
// webhook may have materialized and advanced the record before the create
// path gets here, and only status-preconditioned updates may change status.
// sub is reloaded with the stored row either way.
func (r *gormRepository) CreateSubscriptionIfNotExists(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
		DoNothing: true,
	}).Create(sub).Error; err != nil {
		return err
	}

	return r.db.Where("stripe_subscription_id = ?", sub.StripeSubscriptionID).First(sub).Error
}

// TransitionSubscriptionStatus applies a guarded status change. The
// allowedFrom precondition doubles as the optimistic concurrency check: a
// concurrent writer that already advanced the record makes RowsAffected zero,
// and the caller treats that as a no-op rather than a lost update.
func (r *gormRepository) TransitionSubscriptionStatus(stripeSubscriptionID, target string, allowedFrom []string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = target

	tx := r.db.Model(&models.Subscription{}).
		Where("stripe_subscription_id = ? AND status IN ?", stripeSubscriptionID, allowedFrom).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("stripe_event_id = ?", event.StripeEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": "",
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// RecordWebhookError stores the failure detail while leaving processed_at
// NULL, so the provider's redelivery of the same event is applied again.
func (r *gormRepository) RecordWebhookError(id uint, processingError string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Update("processing_error", processingError).Error
}
