package repository

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/leadscout/internal/domain"
	"gorm.io/gorm"
)

// ErrResponseExists is returned by Create when the question already has an
// AgentResponse. The scoring pipeline treats this as a caller error: terminal
// questions are never re-analyzed.
var ErrResponseExists = errors.New("agent response already exists for question")

// ResponseRepository handles agent response persistence.
type ResponseRepository struct {
	db *gorm.DB
}

// NewResponseRepository creates a new ResponseRepository bound to db.
func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Create inserts a new agent response. The unique index on question_id
// enforces at-most-one response per question.
func (r *ResponseRepository) Create(ctx context.Context, resp *domain.AgentResponse) error {
	err := r.db.WithContext(ctx).Create(resp).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrResponseExists
	}
	return err
}

// GetByQuestionID retrieves the response for a question.
func (r *ResponseRepository) GetByQuestionID(ctx context.Context, questionID string) (*domain.AgentResponse, error) {
	var resp domain.AgentResponse
	if err := r.db.WithContext(ctx).First(&resp, "question_id = ?", questionID).Error; err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetDraft attaches the generated reply text and workflow link.
func (r *ResponseRepository) SetDraft(ctx context.Context, id, responseText string, workflowLink *string) error {
	updates := map[string]interface{}{
		"response_text": responseText,
		"updated_at":    time.Now().UTC(),
	}
	if workflowLink != nil {
		updates["workflow_link"] = *workflowLink
	}
	return r.db.WithContext(ctx).Model(&domain.AgentResponse{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateVerdict refreshes the scoring verdict on an existing response and
// clears any stale error. Used when a re-queued question is analyzed again:
// the response row is reused, never duplicated.
func (r *ResponseRepository) UpdateVerdict(ctx context.Context, id string, inScope bool, confidence float64) error {
	return r.db.WithContext(ctx).Model(&domain.AgentResponse{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_in_scope":      inScope,
			"confidence_score": confidence,
			"error_message":    nil,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// SetError records a terminal external error on the response.
func (r *ResponseRepository) SetError(ctx context.Context, id, message string) error {
	return r.db.WithContext(ctx).Model(&domain.AgentResponse{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"error_message": message,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// MarkPosted flips the posted flag and stamps posted_at. The conditional on
// posted = false makes double-posting a no-op race loser.
func (r *ResponseRepository) MarkPosted(ctx context.Context, id string, postedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.AgentResponse{}).
		Where("id = ? AND posted = ?", id, false).
		Updates(map[string]interface{}{
			"posted":     true,
			"posted_at":  postedAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List retrieves responses, optionally only those with drafts awaiting posting.
func (r *ResponseRepository) List(ctx context.Context, pendingOnly bool, limit, offset int) ([]domain.AgentResponse, error) {
	query := r.db.WithContext(ctx).Model(&domain.AgentResponse{})
	if pendingOnly {
		query = query.Where("posted = ? AND response_text IS NOT NULL", false)
	}
	var responses []domain.AgentResponse
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}

// Stats aggregates response totals for the analytics summary.
func (r *ResponseRepository) Stats(ctx context.Context) (total, posted int64, avgConfidence float64, err error) {
	if err = r.db.WithContext(ctx).Model(&domain.AgentResponse{}).Count(&total).Error; err != nil {
		return
	}
	if err = r.db.WithContext(ctx).Model(&domain.AgentResponse{}).
		Where("posted = ?", true).Count(&posted).Error; err != nil {
		return
	}
	if total == 0 {
		return
	}
	var avg *float64
	if err = r.db.WithContext(ctx).Model(&domain.AgentResponse{}).
		Select("AVG(confidence_score)").Scan(&avg).Error; err != nil {
		return
	}
	if avg != nil {
		avgConfidence = *avg
	}
	return
}
