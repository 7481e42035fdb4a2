package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"checkout-service/models"
	"checkout-service/repository"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// EventPublisher is the slice of the Kafka producer the webhook
// processor needs.
type EventPublisher interface {
	SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// WebhookController applies Stripe payment-outcome notifications to
// orders exactly once. Stripe delivers at least once; the terminal
// status write is idempotent, and the processed-event table short-
// circuits redeliveries.
type WebhookController struct {
	Gateway   services.PaymentGateway
	Orders    repository.OrderRepository
	Events    repository.WebhookEventRepository
	Emails    services.EmailEnqueuer
	Publisher EventPublisher
	Logger    *zap.Logger
}

// HandleStripeWebhook verifies and dispatches one webhook delivery.
// Once the signature verifies, the response is always 200: a non-200
// would make Stripe retry errors that are not transient ("order not
// found"), so internal failures are logged, never surfaced.
func (wc *WebhookController) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		wc.Logger.Warn("Failed to read webhook body", zap.Error(err))
		c.String(http.StatusBadRequest, "Failed to read request body")
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		c.String(http.StatusBadRequest, "Missing stripe signature")
		return
	}

	event, err := wc.Gateway.VerifyWebhook(payload, sigHeader)
	if err != nil {
		wc.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.String(http.StatusBadRequest, "Invalid signature")
		return
	}

	wc.process(c.Request.Context(), event)
	c.String(http.StatusOK, "Success")
}

func (wc *WebhookController) process(ctx context.Context, event stripe.Event) {
	processed, err := wc.Events.Exists(ctx, event.ID)
	if err != nil {
		wc.Logger.Error("Webhook dedupe lookup failed",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return
	}
	if processed {
		wc.Logger.Info("Skipping already-processed webhook event",
			zap.String("event_id", event.ID),
		)
		return
	}

	wc.Logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	var orderID *uuid.UUID
	switch event.Type {
	case "checkout.session.completed", "payment_intent.succeeded":
		orderID = wc.applyPaymentOutcome(ctx, event, models.OrderStatusPaid)
	case "payment_intent.payment_failed", "charge.failed":
		orderID = wc.applyPaymentOutcome(ctx, event, models.OrderStatusFailed)
	default:
		wc.Logger.Info("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)),
		)
	}

	// Recorded after the business effect: a crash in between re-runs
	// the effect on redelivery, which is safe because re-setting a
	// terminal status is a no-op.
	if err := wc.Events.Record(ctx, &models.ProcessedWebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		OrderID:   orderID,
	}); err != nil {
		wc.Logger.Error("Failed to record processed webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

// applyPaymentOutcome transitions the order linked to the event's
// payment intent. Returns the order id for the processed-event record,
// or nil when nothing actionable was found.
func (wc *WebhookController) applyPaymentOutcome(ctx context.Context, event stripe.Event, status string) *uuid.UUID {
	intentID, err := extractIntentID(event)
	if err != nil {
		wc.Logger.Error("Failed to extract payment intent from event",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return nil
	}

	order, err := wc.Orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		// An unknown intent is not actionable and must not make Stripe
		// retry; log and move on.
		wc.Logger.Warn("No order for payment intent",
			zap.String("payment_intent_id", intentID),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return nil
	}

	if order.IsTerminal() {
		wc.Logger.Info("Skipping transition on terminal order",
			zap.String("order_id", order.ID.String()),
			zap.String("status", order.Status),
			zap.String("event_id", event.ID),
		)
		return &order.ID
	}

	if err := wc.Orders.UpdateStatus(ctx, order.ID, status); err != nil {
		wc.Logger.Error("Failed to update order status",
			zap.String("order_id", order.ID.String()),
			zap.String("status", status),
			zap.Error(err),
		)
		return &order.ID
	}

	wc.Logger.Info("Order status updated from webhook",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", status),
	)

	wc.publishEvent(ctx, order, status)
	wc.enqueueOutcomeEmail(ctx, order, status)
	return &order.ID
}

func (wc *WebhookController) publishEvent(ctx context.Context, order *models.Order, status string) {
	if wc.Publisher == nil {
		return
	}
	eventType := "payment_succeeded"
	if status == models.OrderStatusFailed {
		eventType = "payment_failed"
	}
	userID := ""
	if order.UserID != nil {
		userID = order.UserID.String()
	}
	err := wc.Publisher.SendPaymentEvent(ctx, models.PaymentEvent{
		Type:        eventType,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      userID,
		Amount:      order.Total,
		Currency:    order.Currency,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		wc.Logger.Error("Failed to publish payment event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func (wc *WebhookController) enqueueOutcomeEmail(ctx context.Context, order *models.Order, status string) {
	if wc.Emails == nil || order.CustomerEmail == nil {
		return
	}

	emailType := models.EmailTypePaymentReceipt
	subject := "Payment received"
	if status == models.OrderStatusFailed {
		emailType = models.EmailTypePaymentFailed
		subject = "Payment failed"
	}

	_, err := wc.Emails.Enqueue(ctx, services.EnqueueEmailRequest{
		EmailType: emailType,
		Recipient: *order.CustomerEmail,
		UserID:    order.UserID,
		Subject:   subject,
		TemplateData: map[string]interface{}{
			"order_number": order.OrderNumber,
			"total":        order.Total,
			"currency":     order.Currency,
		},
	})
	if err != nil {
		wc.Logger.Error("Failed to enqueue payment outcome email",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

// extractIntentID pulls the payment intent id out of the event payload.
// Transitions key off the intent id because the webhook carries it, not
// our order id.
func extractIntentID(event stripe.Event) (string, error) {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return "", err
		}
		if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
			return "", fmt.Errorf("checkout session %s has no payment intent", sess.ID)
		}
		return sess.PaymentIntent.ID, nil
	case "charge.failed":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return "", err
		}
		if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
			return "", fmt.Errorf("charge %s has no payment intent", ch.ID)
		}
		return ch.PaymentIntent.ID, nil
	default:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return "", err
		}
		if pi.ID == "" {
			return "", fmt.Errorf("event %s carries no payment intent id", event.ID)
		}
		return pi.ID, nil
	}
}
