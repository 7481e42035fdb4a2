package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedWebhookEvent marks a Stripe event whose side effects have
// been applied. The row is written after the business effect, so its
// absence does not prove the event was never seen; redelivered events
// re-run an idempotent transition at worst.
type ProcessedWebhookEvent struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string     `gorm:"uniqueIndex;not null"` // Stripe's evt_ id
	EventType   string     `gorm:"type:varchar(64);not null"`
	OrderID     *uuid.UUID `gorm:"type:uuid"` // best-effort denormalization
	ProcessedAt time.Time  `gorm:"autoCreateTime"`
}
