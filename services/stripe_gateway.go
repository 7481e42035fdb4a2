package services

import (
	"context"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"
)

// PaymentGateway wraps the external payment processor. Kept as an
// interface so handlers and services take a fake in tests and so
// multiple credential sets can coexist.
type PaymentGateway interface {
	// CreateIntent creates a payment intent. The idempotency key is
	// forwarded to the processor so a retried API call is deduplicated
	// on their side too, not only by our local order lookup.
	CreateIntent(ctx context.Context, amount int64, currency, idempotencyKey string) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CancelIntent(ctx context.Context, id string) error
	VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error)
}

// StripeGateway is the production PaymentGateway on the Stripe API.
type StripeGateway struct {
	webhookKey string
}

func NewStripeGateway(secretKey, webhookKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{webhookKey: webhookKey}
}

func (s *StripeGateway) CreateIntent(ctx context.Context, amount int64, currency, idempotencyKey string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(idempotencyKey),
		},
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	return paymentintent.New(params)
}

func (s *StripeGateway) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}
	return paymentintent.Get(id, params)
}

func (s *StripeGateway) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	}
	_, err := paymentintent.Cancel(id, params)
	return err
}

func (s *StripeGateway) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, s.webhookKey)
}
