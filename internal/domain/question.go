package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Platform identifies the social platform a question was crawled from.
type Platform string

const (
	PlatformReddit  Platform = "reddit"
	PlatformQuora   Platform = "quora"
	PlatformTwitter Platform = "twitter"
	PlatformOther   Platform = "other"
)

// QuestionStatus represents the lifecycle state of a crawled question.
// Values include QuestionStatusPending, QuestionStatusProcessing,
// QuestionStatusAnswered, QuestionStatusIgnored, and QuestionStatusError.
type QuestionStatus string

const (
	// QuestionStatusPending means newly ingested, awaiting analysis.
	QuestionStatusPending QuestionStatus = "pending"
	// QuestionStatusProcessing means analysis is in flight.
	QuestionStatusProcessing QuestionStatus = "processing"
	// QuestionStatusAnswered means a draft reply is ready; the AgentResponse
	// posted flag distinguishes "draft ready" from "published".
	QuestionStatusAnswered QuestionStatus = "answered"
	// QuestionStatusIgnored means the analysis judged the question out of
	// scope or below the market's confidence threshold.
	QuestionStatusIgnored QuestionStatus = "ignored"
	// QuestionStatusError means analysis or drafting failed after retries.
	QuestionStatusError QuestionStatus = "error"
)

// Terminal reports whether the status can never transition again through the
// scoring pipeline. Answered is terminal for scoring even though the posting
// workflow still flips the response's posted flag.
func (s QuestionStatus) Terminal() bool {
	switch s {
	case QuestionStatusAnswered, QuestionStatusIgnored, QuestionStatusError:
		return true
	}
	return false
}

// StringArray is a custom type for storing string slices as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Question represents a candidate lead crawled from a social platform.
// (platform, post_id) is unique: a post is stored at most once no matter how
// many market crawls observe it. content_hash is indexed but non-unique; a
// hash collision across different post IDs is informational only.
type Question struct {
	ID          string         `gorm:"type:text;primaryKey" json:"id"`
	Platform    Platform       `gorm:"type:text;not null;index:idx_questions_post,unique" json:"platform"`
	PostID      string         `gorm:"type:text;not null;index:idx_questions_post,unique" json:"post_id"`
	Title       string         `gorm:"type:text;not null" json:"title"`
	Body        string         `gorm:"type:text" json:"body"`
	Author      string         `gorm:"type:text" json:"author"`
	URL         string         `gorm:"type:text" json:"url"`
	Tags        StringArray    `gorm:"type:text" json:"tags"`
	Upvotes     int            `gorm:"default:0" json:"upvotes"`
	Market      string         `gorm:"type:text;not null;index:idx_questions_market" json:"market"`
	ContentHash string         `gorm:"type:text;index:idx_questions_content_hash" json:"content_hash"`
	Status      QuestionStatus `gorm:"type:text;index:idx_questions_status;default:pending" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	CrawledAt   time.Time      `json:"crawled_at"`

	Comments []Comment `gorm:"constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string {
	return "questions"
}
