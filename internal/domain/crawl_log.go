package domain

import "time"

// CrawlStatus represents the outcome of one crawl run.
type CrawlStatus string

const (
	CrawlStatusRunning CrawlStatus = "running"
	CrawlStatusSuccess CrawlStatus = "success"
	CrawlStatusFailure CrawlStatus = "failure"
)

// CrawlLog is an append-only audit record for one crawl run of one market on
// one platform. It is created with status running and a null completed_at,
// completed exactly once, and never mutated afterward.
type CrawlLog struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	Platform     Platform    `gorm:"type:text;not null;index:idx_crawl_logs_platform" json:"platform"`
	Market       string      `gorm:"type:text;not null;index:idx_crawl_logs_market" json:"market"`
	Status       CrawlStatus `gorm:"type:text;default:running" json:"status"`
	ItemsFound   int         `gorm:"default:0" json:"items_found"`
	ItemsStored  int         `gorm:"default:0" json:"items_stored"`
	ErrorMessage *string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// TableName returns the database table name for CrawlLog.
func (CrawlLog) TableName() string {
	return "crawl_logs"
}
