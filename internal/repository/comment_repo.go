package repository

import (
	"context"

	"github.com/timmy/leadscout/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository handles comment persistence.
type CommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository bound to db.
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Upsert inserts comments, ignoring ones already stored for the question.
// (question_id, comment_id) is unique, so re-crawling is idempotent.
func (r *CommentRepository) Upsert(ctx context.Context, comments []domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "question_id"}, {Name: "comment_id"}},
		DoNothing: true,
	}).Create(&comments).Error
}

// ListByQuestion retrieves all comments for a question, highest upvotes first.
func (r *CommentRepository) ListByQuestion(ctx context.Context, questionID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("upvotes DESC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
