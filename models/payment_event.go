package models

import "time"

// PaymentEvent is the Kafka payload published after a webhook-driven
// order transition. Downstream consumers (inventory, analytics) key on
// OrderID.
type PaymentEvent struct {
	Type        string    `json:"type"` // "payment_succeeded" or "payment_failed"
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id,omitempty"`
	Amount      int       `json:"amount"`    // smallest currency unit
	Currency    string    `json:"currency"`  // "usd", "eur"
	Timestamp   time.Time `json:"timestamp"` // UTC event time
}
