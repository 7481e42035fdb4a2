package repository

import (
	"context"
	"errors"

	"checkout-service/models"

	"gorm.io/gorm"
)

// WebhookEventRepository records which Stripe events have already been
// applied, keyed by the processor's own event id.
type WebhookEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, event *models.ProcessedWebhookEvent) error
}

type gormWebhookEventRepo struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a gorm-backed WebhookEventRepository.
func NewGormWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &gormWebhookEventRepo{db: db}
}

func (r *gormWebhookEventRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	var event models.ProcessedWebhookEvent
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *gormWebhookEventRepo) Record(ctx context.Context, event *models.ProcessedWebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
