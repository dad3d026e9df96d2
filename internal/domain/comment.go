package domain

import "time"

// Comment is supporting context attached to a question. Comments are owned by
// their question and cascade-deleted with it.
type Comment struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	QuestionID string    `gorm:"type:text;not null;index:idx_comments_question,unique" json:"question_id"`
	CommentID  string    `gorm:"type:text;not null;index:idx_comments_question,unique" json:"comment_id"`
	Body       string    `gorm:"type:text" json:"body"`
	Author     string    `gorm:"type:text" json:"author"`
	Upvotes    int       `gorm:"default:0" json:"upvotes"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string {
	return "comments"
}
