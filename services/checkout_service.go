package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountMismatch      = errors.New("amount mismatch for idempotency key")
	ErrIntentNotFound      = errors.New("payment intent no longer exists")
	ErrOrderCreationFailed = errors.New("order creation failed")
)

// CartItem is a line-item snapshot from the caller's cart.
type CartItem struct {
	ProductID string `json:"id"`
	Price     int    `json:"price"`
	Quantity  int    `json:"quantity"`
}

type CreateIntentRequest struct {
	Amount          int
	Currency        string
	IdempotencyKey  string
	UserID          *uuid.UUID
	CustomerEmail   string
	CartItems       []CartItem
	ShippingAddress *models.Address
	BillingAddress  *models.Address
}

type CreateIntentResult struct {
	ClientSecret string
	OrderID      string
	OrderNumber  string
}

// EmailEnqueuer is the slice of the email queue the checkout flow needs.
type EmailEnqueuer interface {
	Enqueue(ctx context.Context, req EnqueueEmailRequest) (*models.EmailQueueItem, error)
}

// CheckoutService turns a checkout request into exactly one
// (order, payment intent) pair, safe under client retries and
// double-clicks. The store's unique constraint on idempotency_key is
// the arbiter when two requests race past the lookup.
type CheckoutService struct {
	orders      repository.OrderRepository
	gateway     PaymentGateway
	emails      EmailEnqueuer
	logger      *zap.Logger
	orderPrefix string
}

func NewCheckoutService(orders repository.OrderRepository, gateway PaymentGateway, emails EmailEnqueuer, orderPrefix string, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		orders:      orders,
		gateway:     gateway,
		emails:      emails,
		logger:      logger,
		orderPrefix: orderPrefix,
	}
}

// CreateIntent implements the reconciliation protocol:
// reuse the prior order for a repeated idempotency key (rejecting a
// changed amount), otherwise create the gateway intent first and the
// order row second, cancelling the intent if the insert loses a race.
func (s *CheckoutService) CreateIntent(ctx context.Context, req CreateIntentRequest) (*CreateIntentResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "usd"
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	existing, err := s.orders.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if existing != nil {
		return s.reuseExistingOrder(ctx, existing, req.Amount)
	}

	pi, err := s.gateway.CreateIntent(ctx, int64(req.Amount), currency, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("gateway intent creation failed: %w", err)
	}

	order := &models.Order{
		OrderNumber:           generateOrderNumber(s.orderPrefix),
		UserID:                req.UserID,
		Total:                 req.Amount,
		Currency:              currency,
		Status:                models.OrderStatusPending,
		IdempotencyKey:        idempotencyKey,
		StripePaymentIntentID: pi.ID,
		ShippingAddress:       req.ShippingAddress,
		BillingAddress:        req.BillingAddress,
	}
	if req.CustomerEmail != "" {
		order.CustomerEmail = &req.CustomerEmail
	}

	if err := s.orders.Create(ctx, order); err != nil {
		// Likely the loser of a concurrent duplicate request. Cancel
		// the intent so no orphaned chargeable intent survives; a
		// failed cancel is logged and must not mask the insert error.
		if cancelErr := s.gateway.CancelIntent(ctx, pi.ID); cancelErr != nil {
			s.logger.Error("Failed to cancel orphaned payment intent",
				zap.String("payment_intent_id", pi.ID),
				zap.Error(cancelErr),
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	// Line items are best effort: the order and intent are already the
	// source of truth, and items can be rebuilt from cart data.
	if len(req.CartItems) > 0 {
		items := make([]models.OrderItem, 0, len(req.CartItems))
		for _, ci := range req.CartItems {
			items = append(items, models.OrderItem{
				OrderID:   order.ID,
				ProductID: ci.ProductID,
				Quantity:  ci.Quantity,
				Price:     ci.Price,
			})
		}
		if err := s.orders.CreateItems(ctx, items); err != nil {
			s.logger.Error("Failed to insert order items",
				zap.String("order_id", order.ID.String()),
				zap.Int("item_count", len(items)),
				zap.Error(err),
			)
		}
	}

	s.enqueueOrderCreatedEmail(ctx, order)

	s.logger.Info("Order created with payment intent",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_intent_id", pi.ID),
		zap.Int("amount", req.Amount),
	)

	return &CreateIntentResult{
		ClientSecret: pi.ClientSecret,
		OrderID:      order.ID.String(),
		OrderNumber:  order.OrderNumber,
	}, nil
}

// reuseExistingOrder serves a retried request from the order already
// created for its idempotency key. A different amount on the same key
// is rejected, never silently accepted.
func (s *CheckoutService) reuseExistingOrder(ctx context.Context, order *models.Order, amount int) (*CreateIntentResult, error) {
	if order.Total != amount {
		s.logger.Warn("Amount mismatch on reused idempotency key",
			zap.String("order_id", order.ID.String()),
			zap.Int("existing_total", order.Total),
			zap.Int("requested_amount", amount),
		)
		return nil, ErrAmountMismatch
	}

	pi, err := s.gateway.GetIntent(ctx, order.StripePaymentIntentID)
	if err != nil {
		// The intent expired or vanished on the processor side. Do not
		// create a second order for the same key.
		return nil, fmt.Errorf("%w: %v", ErrIntentNotFound, err)
	}

	s.logger.Info("Reusing existing order for idempotency key",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
	)

	return &CreateIntentResult{
		ClientSecret: pi.ClientSecret,
		OrderID:      order.ID.String(),
		OrderNumber:  order.OrderNumber,
	}, nil
}

func (s *CheckoutService) enqueueOrderCreatedEmail(ctx context.Context, order *models.Order) {
	if s.emails == nil || order.CustomerEmail == nil {
		return
	}
	_, err := s.emails.Enqueue(ctx, EnqueueEmailRequest{
		EmailType: models.EmailTypeOrderCreated,
		Recipient: *order.CustomerEmail,
		UserID:    order.UserID,
		Subject:   "Order Confirmed!",
		TemplateData: map[string]interface{}{
			"order_number": order.OrderNumber,
			"total":        order.Total,
			"currency":     order.Currency,
		},
	})
	if err != nil {
		s.logger.Error("Failed to enqueue order confirmation email",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

const orderNumberCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateOrderNumber builds PREFIX-<base36 millis>-<4 random chars>.
// Not cryptographically unique; the unique index on order_number is the
// final arbiter.
func generateOrderNumber(prefix string) string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = orderNumberCharset[rand.Intn(len(orderNumberCharset))]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, ts, suffix)
}
