package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"checkout-service/models"
	"checkout-service/repository"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// fakeGateway only verifies webhooks; the intent methods are unused by
// the webhook path.
type fakeGateway struct {
	event     stripe.Event
	verifyErr error
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amount int64, currency, idempotencyKey string) (*stripe.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (g *fakeGateway) CancelIntent(ctx context.Context, id string) error {
	return errors.New("not implemented")
}

func (g *fakeGateway) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	if g.verifyErr != nil {
		return stripe.Event{}, g.verifyErr
	}
	return g.event, nil
}

type fakeOrders struct {
	byIntent      map[string]*models.Order
	statusUpdates []string
}

func (r *fakeOrders) Create(ctx context.Context, order *models.Order) error { return nil }

func (r *fakeOrders) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeOrders) FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	if o, ok := r.byIntent[intentID]; ok {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeOrders) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	r.statusUpdates = append(r.statusUpdates, status)
	for _, o := range r.byIntent {
		if o.ID == orderID {
			o.Status = status
		}
	}
	return nil
}

func (r *fakeOrders) CreateItems(ctx context.Context, items []models.OrderItem) error { return nil }

type fakeEvents struct {
	seen     map[string]bool
	recorded []models.ProcessedWebhookEvent
}

func (e *fakeEvents) Exists(ctx context.Context, eventID string) (bool, error) {
	return e.seen[eventID], nil
}

func (e *fakeEvents) Record(ctx context.Context, event *models.ProcessedWebhookEvent) error {
	if e.seen == nil {
		e.seen = map[string]bool{}
	}
	e.seen[event.EventID] = true
	e.recorded = append(e.recorded, *event)
	return nil
}

type fakePublisher struct {
	published []models.PaymentEvent
}

func (p *fakePublisher) SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	p.published = append(p.published, event)
	return nil
}

type fakeEmailQueue struct {
	queued []services.EnqueueEmailRequest
}

func (f *fakeEmailQueue) Enqueue(ctx context.Context, req services.EnqueueEmailRequest) (*models.EmailQueueItem, error) {
	f.queued = append(f.queued, req)
	return &models.EmailQueueItem{ID: uuid.New()}, nil
}

func pendingOrder(intentID string) *models.Order {
	email := "shopper@example.com"
	return &models.Order{
		ID:                    uuid.New(),
		OrderNumber:           "ORD-TEST-AAAA",
		Total:                 2000,
		Currency:              "usd",
		Status:                models.OrderStatusPending,
		IdempotencyKey:        "key-1",
		StripePaymentIntentID: intentID,
		CustomerEmail:         &email,
	}
}

func intentEvent(id, eventType, intentID string) stripe.Event {
	raw, _ := json.Marshal(map[string]string{"id": intentID})
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func newWebhookTest(gw *fakeGateway, orders *fakeOrders, events *fakeEvents) (*WebhookController, *fakePublisher, *fakeEmailQueue) {
	pub := &fakePublisher{}
	emails := &fakeEmailQueue{}
	wc := &WebhookController{
		Gateway:   gw,
		Orders:    orders,
		Events:    events,
		Emails:    emails,
		Publisher: pub,
		Logger:    zap.NewNop(),
	}
	return wc, pub, emails
}

func performWebhook(wc *WebhookController, body []byte, sig string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/stripe/webhook", wc.HandleStripeWebhook)

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_MissingSignature(t *testing.T) {
	orders := &fakeOrders{byIntent: map[string]*models.Order{"pi_1": pendingOrder("pi_1")}}
	wc, _, _ := newWebhookTest(&fakeGateway{}, orders, &fakeEvents{})

	w := performWebhook(wc, []byte(`{}`), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing stripe signature", w.Body.String())
	assert.Empty(t, orders.statusUpdates)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	orders := &fakeOrders{byIntent: map[string]*models.Order{}}
	gw := &fakeGateway{verifyErr: errors.New("signature mismatch")}
	wc, _, _ := newWebhookTest(gw, orders, &fakeEvents{})

	w := performWebhook(wc, []byte(`{}`), "t=1,v1=bad")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, orders.statusUpdates)
}

func TestWebhook_PaymentSucceeded(t *testing.T) {
	order := pendingOrder("pi_1")
	orders := &fakeOrders{byIntent: map[string]*models.Order{"pi_1": order}}
	events := &fakeEvents{}
	gw := &fakeGateway{event: intentEvent("evt_1", "payment_intent.succeeded", "pi_1")}
	wc, pub, emails := newWebhookTest(gw, orders, events)

	w := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Success", w.Body.String())
	assert.Equal(t, models.OrderStatusPaid, order.Status)

	assert.Len(t, events.recorded, 1)
	assert.Equal(t, "evt_1", events.recorded[0].EventID)
	assert.Equal(t, &order.ID, events.recorded[0].OrderID)

	assert.Len(t, pub.published, 1)
	assert.Equal(t, "payment_succeeded", pub.published[0].Type)

	assert.Len(t, emails.queued, 1)
	assert.Equal(t, models.EmailTypePaymentReceipt, emails.queued[0].EmailType)
}

func TestWebhook_PaymentFailed(t *testing.T) {
	order := pendingOrder("pi_2")
	orders := &fakeOrders{byIntent: map[string]*models.Order{"pi_2": order}}
	gw := &fakeGateway{event: intentEvent("evt_2", "payment_intent.payment_failed", "pi_2")}
	wc, pub, emails := newWebhookTest(gw, orders, &fakeEvents{})

	w := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	assert.Equal(t, "payment_failed", pub.published[0].Type)
	assert.Equal(t, models.EmailTypePaymentFailed, emails.queued[0].EmailType)
}

func TestWebhook_DuplicateEventIsNotReprocessed(t *testing.T) {
	order := pendingOrder("pi_1")
	orders := &fakeOrders{byIntent: map[string]*models.Order{"pi_1": order}}
	events := &fakeEvents{}
	gw := &fakeGateway{event: intentEvent("evt_1", "payment_intent.succeeded", "pi_1")}
	wc, pub, _ := newWebhookTest(gw, orders, events)

	first := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")
	second := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "Success", second.Body.String())

	// exactly one transition, one processed row, one published event
	assert.Len(t, orders.statusUpdates, 1)
	assert.Len(t, events.recorded, 1)
	assert.Len(t, pub.published, 1)
}

func TestWebhook_UnknownIntentIsBenign(t *testing.T) {
	orders := &fakeOrders{byIntent: map[string]*models.Order{}}
	events := &fakeEvents{}
	gw := &fakeGateway{event: intentEvent("evt_9", "payment_intent.succeeded", "pi_missing")}
	wc, pub, _ := newWebhookTest(gw, orders, events)

	w := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")

	// no matching order must not trigger gateway retries
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Success", w.Body.String())
	assert.Empty(t, orders.statusUpdates)
	assert.Empty(t, pub.published)
	// still recorded, so a redelivery short-circuits
	assert.Len(t, events.recorded, 1)
	assert.Nil(t, events.recorded[0].OrderID)
}

func TestWebhook_TerminalStatusSticks(t *testing.T) {
	order := pendingOrder("pi_1")
	order.Status = models.OrderStatusFailed
	orders := &fakeOrders{byIntent: map[string]*models.Order{"pi_1": order}}
	gw := &fakeGateway{event: intentEvent("evt_late", "payment_intent.succeeded", "pi_1")}
	wc, pub, _ := newWebhookTest(gw, orders, &fakeEvents{})

	w := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")

	// a stale success after a terminal failure is ignored; first
	// terminal status wins, no timestamp versioning
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	assert.Empty(t, orders.statusUpdates)
	assert.Empty(t, pub.published)
}

func TestWebhook_UnrecognizedTypeIsRecorded(t *testing.T) {
	orders := &fakeOrders{byIntent: map[string]*models.Order{}}
	events := &fakeEvents{}
	gw := &fakeGateway{event: intentEvent("evt_x", "customer.created", "pi_1")}
	wc, _, _ := newWebhookTest(gw, orders, events)

	w := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, orders.statusUpdates)
	assert.Len(t, events.recorded, 1)
}

func TestWebhook_CheckoutSessionCompleted(t *testing.T) {
	order := pendingOrder("pi_5")
	orders := &fakeOrders{byIntent: map[string]*models.Order{"pi_5": order}}
	raw, _ := json.Marshal(map[string]interface{}{
		"id":             "cs_1",
		"payment_intent": map[string]string{"id": "pi_5"},
	})
	gw := &fakeGateway{event: stripe.Event{
		ID:   "evt_cs",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}}
	wc, _, _ := newWebhookTest(gw, orders, &fakeEvents{})

	w := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestWebhook_ChargeFailedResolvesIntent(t *testing.T) {
	order := pendingOrder("pi_7")
	orders := &fakeOrders{byIntent: map[string]*models.Order{"pi_7": order}}
	raw, _ := json.Marshal(map[string]interface{}{
		"id":             "ch_1",
		"payment_intent": map[string]string{"id": "pi_7"},
	})
	gw := &fakeGateway{event: stripe.Event{
		ID:   "evt_ch",
		Type: "charge.failed",
		Data: &stripe.EventData{Raw: raw},
	}}
	wc, _, _ := newWebhookTest(gw, orders, &fakeEvents{})

	w := performWebhook(wc, []byte(`{}`), "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusFailed, order.Status)
}
