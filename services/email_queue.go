package services

import (
	"context"
	"fmt"
	"time"

	"checkout-service/models"
	"checkout-service/repository"
	"checkout-service/sender"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnqueueEmailRequest describes one email to queue. Zero values get
// defaults: scheduled now, mid priority, three retries.
type EnqueueEmailRequest struct {
	EmailType    string
	Recipient    string
	UserID       *uuid.UUID
	Subject      string
	TemplateData map[string]interface{}
	Priority     int
	ScheduledFor *time.Time
	MaxRetries   *int
}

// BatchResult aggregates one processing run.
type BatchResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// EmailQueueService is the durable at-least-once email queue: enqueue
// on the request path, drain in batches from a background loop.
type EmailQueueService struct {
	repo   repository.EmailQueueRepository
	sender sender.EmailSender
	logger *zap.Logger
}

func NewEmailQueueService(repo repository.EmailQueueRepository, emailSender sender.EmailSender, logger *zap.Logger) *EmailQueueService {
	return &EmailQueueService{
		repo:   repo,
		sender: emailSender,
		logger: logger,
	}
}

// Enqueue persists one email for later delivery and returns the row.
func (s *EmailQueueService) Enqueue(ctx context.Context, req EnqueueEmailRequest) (*models.EmailQueueItem, error) {
	if req.Recipient == "" {
		return nil, fmt.Errorf("recipient email is required")
	}
	if req.EmailType == "" {
		return nil, fmt.Errorf("email type is required")
	}

	item := &models.EmailQueueItem{
		EmailType:      req.EmailType,
		RecipientEmail: req.Recipient,
		UserID:         req.UserID,
		Subject:        req.Subject,
		TemplateData:   req.TemplateData,
		Priority:       models.EmailPriorityDefault,
		Status:         models.EmailStatusPending,
		MaxRetries:     models.EmailMaxRetriesDefault,
		ScheduledFor:   time.Now(),
	}
	if req.Priority > 0 {
		item.Priority = req.Priority
	}
	if req.ScheduledFor != nil {
		item.ScheduledFor = *req.ScheduledFor
	}
	if req.MaxRetries != nil {
		item.MaxRetries = *req.MaxRetries
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to enqueue email: %w", err)
	}

	s.logger.Info("Email queued",
		zap.String("email_id", item.ID.String()),
		zap.String("email_type", item.EmailType),
		zap.Int("priority", item.Priority),
	)
	return item, nil
}

// ProcessPending drains one batch: select due pending rows, claim them
// as processing, then attempt each send. The claim happens before any
// send so a crashed run is visible as stuck processing rows rather
// than silently in-flight pending ones.
func (s *EmailQueueService) ProcessPending(ctx context.Context, batchSize int) (*BatchResult, error) {
	now := time.Now()
	items, err := s.repo.FetchDue(ctx, now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due emails: %w", err)
	}

	result := &BatchResult{}
	if len(items) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	if err := s.repo.MarkProcessing(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to claim email batch: %w", err)
	}

	for _, item := range items {
		result.Processed++
		if err := s.dispatch(ctx, &item); err != nil {
			s.handleSendFailure(ctx, &item, err, result)
			continue
		}
		if err := s.repo.MarkSent(ctx, item.ID, time.Now()); err != nil {
			s.logger.Error("Failed to mark email sent",
				zap.String("email_id", item.ID.String()),
				zap.Error(err),
			)
		}
		result.Sent++
	}

	s.logger.Info("Email batch processed",
		zap.Int("processed", result.Processed),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// Stats returns queue depth counters for operational dashboards.
func (s *EmailQueueService) Stats(ctx context.Context) (*repository.QueueStats, error) {
	return s.repo.Stats(ctx, time.Now())
}

func (s *EmailQueueService) dispatch(ctx context.Context, item *models.EmailQueueItem) error {
	body := renderBody(item)
	_, err := s.sender.SendEmail(ctx, item.RecipientEmail, item.Subject, body)
	return err
}

// handleSendFailure either re-queues the item (no backoff delay, the
// next batch run picks it up) or parks it in terminal failed once the
// retry budget is spent.
func (s *EmailQueueService) handleSendFailure(ctx context.Context, item *models.EmailQueueItem, sendErr error, result *BatchResult) {
	errMsg := sendErr.Error()
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", item.ID, errMsg))

	if item.RetryCount < item.MaxRetries {
		if err := s.repo.MarkRetry(ctx, item.ID, item.RetryCount+1, errMsg); err != nil {
			s.logger.Error("Failed to requeue email for retry",
				zap.String("email_id", item.ID.String()),
				zap.Error(err),
			)
		}
		s.logger.Warn("Email send failed, requeued",
			zap.String("email_id", item.ID.String()),
			zap.Int("retry_count", item.RetryCount+1),
			zap.Int("max_retries", item.MaxRetries),
			zap.Error(sendErr),
		)
		return
	}

	if err := s.repo.MarkFailed(ctx, item.ID, item.RetryCount, errMsg); err != nil {
		s.logger.Error("Failed to mark email failed",
			zap.String("email_id", item.ID.String()),
			zap.Error(err),
		)
	}
	result.Failed++
	s.logger.Error("Email retries exhausted",
		zap.String("email_id", item.ID.String()),
		zap.String("email_type", item.EmailType),
		zap.Error(sendErr),
	)
}

// renderBody formats a plain body from the queued template data. Full
// HTML templating lives with the storefront, not here.
func renderBody(item *models.EmailQueueItem) string {
	switch item.EmailType {
	case models.EmailTypeOrderCreated:
		return fmt.Sprintf("Thanks for your order %v. We'll let you know when payment is confirmed.",
			item.TemplateData["order_number"])
	case models.EmailTypePaymentReceipt:
		return fmt.Sprintf("Payment received for order %v. Amount: %v %v.",
			item.TemplateData["order_number"], item.TemplateData["total"], item.TemplateData["currency"])
	case models.EmailTypePaymentFailed:
		return fmt.Sprintf("Payment for order %v could not be completed. Please try again.",
			item.TemplateData["order_number"])
	case models.EmailTypeOrderShipped:
		return fmt.Sprintf("Order %v is on its way. Tracking: %v.",
			item.TemplateData["order_number"], item.TemplateData["tracking_code"])
	default:
		return item.Subject
	}
}
