package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// Address is a snapshot of a shipping or billing address, stored as
// jsonb on the order row.
type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is the durable record of a checkout attempt. Exactly one row
// exists per idempotency key and per Stripe payment intent; the unique
// indexes are the arbiter for concurrent duplicate requests.
type Order struct {
	ID                    uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber           string      `gorm:"uniqueIndex;not null"`
	UserID                *uuid.UUID  `gorm:"type:uuid;index"` // nil for guest checkout
	CustomerEmail         *string     `gorm:"type:varchar(320)"`
	Total                 int         `gorm:"not null"` // minor currency units
	Currency              string      `gorm:"type:varchar(10);not null"`
	Status                string      `gorm:"type:varchar(20);not null;default:'pending'"`
	IdempotencyKey        string      `gorm:"uniqueIndex;not null"`
	StripePaymentIntentID string      `gorm:"uniqueIndex;not null"`
	ShippingAddress       *Address    `gorm:"serializer:json;type:jsonb"`
	BillingAddress        *Address    `gorm:"serializer:json;type:jsonb"`
	CreatedAt             time.Time   `gorm:"autoCreateTime"`
	UpdatedAt             time.Time   `gorm:"autoUpdateTime"`
	OrderItems            []OrderItem `gorm:"foreignKey:OrderID"`
}

// OrderItem is a line-item snapshot taken at order time. Price is the
// unit price the customer saw, not a live catalog reference.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID string    `gorm:"not null"`
	Quantity  int       `gorm:"not null"`
	Price     int       `gorm:"not null"` // minor units
}

// IsTerminal reports whether the order status permits no further
// transitions.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusFailed
}
