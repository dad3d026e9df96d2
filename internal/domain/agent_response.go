package domain

import "time"

// AgentResponse holds the scoring and drafting outcome for exactly one
// question (unique on question_id). Invariant: Posted implies PostedAt is set
// and ResponseText is non-nil.
type AgentResponse struct {
	ID              string     `gorm:"type:text;primaryKey" json:"id"`
	QuestionID      string     `gorm:"type:text;not null;uniqueIndex:idx_agent_responses_question" json:"question_id"`
	IsInScope       bool       `gorm:"default:false" json:"is_in_scope"`
	ConfidenceScore float64    `gorm:"default:0" json:"confidence_score"`
	ResponseText    *string    `gorm:"type:text" json:"response_text,omitempty"`
	WorkflowLink    *string    `gorm:"type:text" json:"workflow_link,omitempty"`
	Posted          bool       `gorm:"default:false;index:idx_agent_responses_posted" json:"posted"`
	PostedAt        *time.Time `json:"posted_at,omitempty"`
	ErrorMessage    *string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for AgentResponse.
func (AgentResponse) TableName() string {
	return "agent_responses"
}

// HasDraft reports whether a non-empty draft reply is attached.
func (r *AgentResponse) HasDraft() bool {
	return r.ResponseText != nil && *r.ResponseText != ""
}
