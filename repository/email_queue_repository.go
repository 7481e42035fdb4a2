package repository

import (
	"context"
	"time"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueueStats is a point-in-time snapshot of queue depth for dashboards.
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
	SentToday  int64 `json:"sentToday"`
}

// EmailQueueRepository provides durable storage for the outbound email
// queue.
type EmailQueueRepository interface {
	Create(ctx context.Context, item *models.EmailQueueItem) error
	FetchDue(ctx context.Context, now time.Time, limit int) ([]models.EmailQueueItem, error)
	MarkProcessing(ctx context.Context, ids []uuid.UUID) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error
	Stats(ctx context.Context, now time.Time) (*QueueStats, error)
}

type gormEmailQueueRepo struct {
	db *gorm.DB
}

// NewGormEmailQueueRepository creates a gorm-backed EmailQueueRepository.
func NewGormEmailQueueRepository(db *gorm.DB) EmailQueueRepository {
	return &gormEmailQueueRepo{db: db}
}

func (r *gormEmailQueueRepo) Create(ctx context.Context, item *models.EmailQueueItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FetchDue returns pending items whose schedule has arrived, lowest
// priority value first, oldest first within a priority so nothing
// starves.
func (r *gormEmailQueueRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.EmailQueueItem, error) {
	var items []models.EmailQueueItem
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", models.EmailStatusPending, now).
		Order("priority asc, created_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// MarkProcessing claims a fetched batch before any send attempt. The
// claim and the per-item send are not one transaction; a crash mid-batch
// leaves rows in processing until operators intervene.
func (r *gormEmailQueueRepo) MarkProcessing(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.EmailQueueItem{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     models.EmailStatusProcessing,
			"updated_at": time.Now(),
		}).Error
}

func (r *gormEmailQueueRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.EmailQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.EmailStatusSent,
			"sent_at":    sentAt,
			"updated_at": time.Now(),
		}).Error
}

// MarkRetry returns a failed item to pending, eligible for the next
// batch run.
func (r *gormEmailQueueRepo) MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.EmailQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.EmailStatusPending,
			"retry_count":   retryCount,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		}).Error
}

// MarkFailed puts an item in the terminal failed state; the batch query
// never selects it again.
func (r *gormEmailQueueRepo) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.EmailQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.EmailStatusFailed,
			"retry_count":   retryCount,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		}).Error
}

func (r *gormEmailQueueRepo) Stats(ctx context.Context, now time.Time) (*QueueStats, error) {
	stats := &QueueStats{}
	count := func(dest *int64, query string, args ...interface{}) error {
		return r.db.WithContext(ctx).Model(&models.EmailQueueItem{}).
			Where(query, args...).Count(dest).Error
	}

	if err := count(&stats.Pending, "status = ?", models.EmailStatusPending); err != nil {
		return nil, err
	}
	if err := count(&stats.Processing, "status = ?", models.EmailStatusProcessing); err != nil {
		return nil, err
	}
	if err := count(&stats.Failed, "status = ?", models.EmailStatusFailed); err != nil {
		return nil, err
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := count(&stats.SentToday, "status = ? AND sent_at >= ?", models.EmailStatusSent, startOfDay); err != nil {
		return nil, err
	}
	return stats, nil
}
