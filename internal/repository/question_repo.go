package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/leadscout/internal/domain"
	"gorm.io/gorm"
)

// ErrDuplicateQuestion is returned by Create when the (platform, post_id)
// unique constraint rejects the insert. Callers treat it as a benign skip.
var ErrDuplicateQuestion = errors.New("question already exists")

// QuestionRepository handles question persistence.
type QuestionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository creates a new QuestionRepository bound to db.
func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Create inserts a new question. A unique-constraint violation on
// (platform, post_id) is mapped to ErrDuplicateQuestion so concurrent
// ingestions of the same post resolve to first-writer-wins.
func (r *QuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	err := r.db.WithContext(ctx).Create(q).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateQuestion
	}
	return err
}

// GetByID retrieves a question by its ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	var q domain.Question
	if err := r.db.WithContext(ctx).First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// ExistsByPostID checks whether a question exists for (platform, post_id).
// This is the authoritative identity dedup gate.
func (r *QuestionRepository) ExistsByPostID(ctx context.Context, platform domain.Platform, postID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Question{}).
		Where("platform = ? AND post_id = ?", platform, postID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsByContentHash checks whether any question carries the given content
// fingerprint. Informational only: a match never blocks ingestion.
func (r *QuestionRepository) ExistsByContentHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Question{}).
		Where("content_hash = ?", hash).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimForProcessing atomically transitions a question from pending to
// processing. Returns true when this caller won the claim; false when the
// question was already claimed or is in a terminal state. The conditional
// UPDATE's affected-row count is the race detector.
func (r *QuestionRepository) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Question{}).
		Where("id = ? AND status = ?", id, domain.QuestionStatusPending).
		Update("status", domain.QuestionStatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateStatus sets a question's status unconditionally.
func (r *QuestionRepository) UpdateStatus(ctx context.Context, id string, status domain.QuestionStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.Question{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List retrieves questions with optional status and market filters, newest
// crawl first.
func (r *QuestionRepository) List(ctx context.Context, status domain.QuestionStatus, market string, limit, offset int) ([]domain.Question, error) {
	query := r.db.WithContext(ctx).Model(&domain.Question{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if market != "" {
		query = query.Where("market = ?", market)
	}
	var questions []domain.Question
	if err := query.
		Order("crawled_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// CountByStatus returns question counts grouped by status.
func (r *QuestionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "status")
}

// CountByPlatform returns question counts grouped by platform.
func (r *QuestionRepository) CountByPlatform(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "platform")
}

func (r *QuestionRepository) countGrouped(ctx context.Context, column string) (map[string]int64, error) {
	type row struct {
		Key   string
		Count int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&domain.Question{}).
		Select(fmt.Sprintf("%s AS key, COUNT(*) AS count", column)).
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out, nil
}

// Count returns the total number of questions.
func (r *QuestionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Question{}).Count(&count).Error
	return count, err
}

// Delete removes a question by ID; comments cascade with it.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Question{}, "id = ?", id).Error
}
