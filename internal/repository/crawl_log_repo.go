package repository

import (
	"context"
	"time"

	"github.com/timmy/leadscout/internal/domain"
	"gorm.io/gorm"
)

// CrawlLogRepository handles crawl run audit records.
type CrawlLogRepository struct {
	db *gorm.DB
}

// NewCrawlLogRepository creates a new CrawlLogRepository bound to db.
func NewCrawlLogRepository(db *gorm.DB) *CrawlLogRepository {
	return &CrawlLogRepository{db: db}
}

// Start creates the running record for a crawl run (completed_at null).
func (r *CrawlLogRepository) Start(ctx context.Context, log *domain.CrawlLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// Complete fills the terminal fields of a crawl run exactly once. The record
// is append-only afterward.
func (r *CrawlLogRepository) Complete(ctx context.Context, id string, status domain.CrawlStatus, itemsFound, itemsStored int, errorMessage *string, completedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.CrawlLog{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"status":        status,
			"items_found":   itemsFound,
			"items_stored":  itemsStored,
			"error_message": errorMessage,
			"completed_at":  completedAt,
		}).Error
}

// GetByID retrieves one crawl log.
func (r *CrawlLogRepository) GetByID(ctx context.Context, id string) (*domain.CrawlLog, error) {
	var log domain.CrawlLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// List retrieves crawl logs, newest first, optionally filtered by market.
func (r *CrawlLogRepository) List(ctx context.Context, market string, limit, offset int) ([]domain.CrawlLog, error) {
	query := r.db.WithContext(ctx).Model(&domain.CrawlLog{})
	if market != "" {
		query = query.Where("market = ?", market)
	}
	var logs []domain.CrawlLog
	if err := query.
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// LastCompleted returns the most recent completed run for a market, or nil.
func (r *CrawlLogRepository) LastCompleted(ctx context.Context, market string) (*domain.CrawlLog, error) {
	var log domain.CrawlLog
	err := r.db.WithContext(ctx).
		Where("market = ? AND completed_at IS NOT NULL", market).
		Order("started_at DESC").
		First(&log).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}
