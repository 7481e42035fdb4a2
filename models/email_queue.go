package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EmailStatusPending    = "pending"
	EmailStatusProcessing = "processing"
	EmailStatusSent       = "sent"
	EmailStatusFailed     = "failed"

	EmailTypeOrderCreated   = "order_created"
	EmailTypePaymentReceipt = "payment_receipt"
	EmailTypePaymentFailed  = "payment_failed"
	EmailTypeOrderShipped   = "order_shipped"
	EmailTypeMarketing      = "marketing"

	// Lower drains first. Transactional mail defaults to the middle so
	// operators can jump the line with 1 or push marketing behind with 10.
	EmailPriorityDefault = 5

	EmailMaxRetriesDefault = 3
)

// EmailQueueItem is one durable unit of outbound mail. Rows are never
// deleted; sent and failed are terminal and serve as the audit trail.
type EmailQueueItem struct {
	ID             uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EmailType      string                 `gorm:"type:varchar(40);not null;index"`
	RecipientEmail string                 `gorm:"type:varchar(320);not null"`
	UserID         *uuid.UUID             `gorm:"type:uuid"`
	Subject        string                 `gorm:"not null"`
	TemplateData   map[string]interface{} `gorm:"serializer:json;type:jsonb"`
	Priority       int                    `gorm:"not null;default:5;index"`
	Status         string                 `gorm:"type:varchar(20);not null;default:'pending';index"`
	RetryCount     int                    `gorm:"not null;default:0"`
	MaxRetries     int                    `gorm:"not null;default:3"`
	ScheduledFor   time.Time              `gorm:"not null;index"`
	SentAt         *time.Time
	ErrorMessage   *string
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}
