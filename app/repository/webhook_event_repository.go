package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/stripe-billing/app/models"
	"gorm.io/gorm"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// Create stores one delivery. Redeliveries of the same event get their own row.
func (r *webhookEventRepository) Create(ctx context.Context, event *models.BillingWebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// MarkProcessed stamps a delivery as handled together with the handler error, if any
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": processingError,
		}).Error
}

// ListRecent returns the newest deliveries first
func (r *webhookEventRepository) ListRecent(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.BillingWebhookEvent
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}
