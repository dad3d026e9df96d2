package agent

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// MarketContext is forwarded to the agent API so analysis and drafting are
// aware of the market's tone and positioning.
type MarketContext struct {
	Market     string `json:"market"`
	Tone       string `json:"tone"`
	TargetPain string `json:"target_pain"`
	Context    string `json:"context"`
}

// ScoreResult is the analysis verdict for one question.
type ScoreResult struct {
	IsInScope         bool    `json:"is_in_scope"`
	ConfidenceScore   float64 `json:"confidence_score"`
	Reasoning         string  `json:"reasoning,omitempty"`
	SuggestedWorkflow string  `json:"suggested_workflow,omitempty"`
}

// DraftResult is a generated reply draft.
type DraftResult struct {
	ResponseText string `json:"response_text"`
	WorkflowLink string `json:"workflow_link,omitempty"`
}

// Config holds the agent API client configuration.
type Config struct {
	BaseURL         string
	APIKey          string
	AnalyzeTimeout  time.Duration
	GenerateTimeout time.Duration
}

// Client talks to the external scoring/drafting agent API. It does not retry;
// callers own the retry policy so backoff stays unit-testable.
type Client struct {
	client          *resty.Client
	analyzeTimeout  time.Duration
	generateTimeout time.Duration
}

// NewClient creates an agent API client.
func NewClient(cfg *Config) *Client {
	analyzeTimeout := cfg.AnalyzeTimeout
	if analyzeTimeout == 0 {
		analyzeTimeout = 30 * time.Second
	}
	generateTimeout := cfg.GenerateTimeout
	if generateTimeout == 0 {
		generateTimeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Client{
		client:          client,
		analyzeTimeout:  analyzeTimeout,
		generateTimeout: generateTimeout,
	}
}

type analyzeRequest struct {
	Question      string         `json:"question"`
	Title         string         `json:"title,omitempty"`
	Task          string         `json:"task"`
	MarketContext *MarketContext `json:"market_context,omitempty"`
}

type generateRequest struct {
	Question      string         `json:"question"`
	Task          string         `json:"task"`
	MarketContext *MarketContext `json:"market_context,omitempty"`
	Tone          string         `json:"tone,omitempty"`
	WorkflowID    string         `json:"workflow_id,omitempty"`
}

type apiErrorBody struct {
	Error string `json:"error"`
}

// Analyze asks the agent whether a question is answerable by the product and
// with what confidence.
func (c *Client) Analyze(ctx context.Context, title, content string, mc *MarketContext) (*ScoreResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	var result ScoreResult
	var apiErr apiErrorBody
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(analyzeRequest{
			Question:      content,
			Title:         title,
			Task:          "analyze_capability",
			MarketContext: mc,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/analyze")
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: errMessage(apiErr, resp)}
	}
	return &result, nil
}

// Generate asks the agent for a reply draft in the market's tone.
func (c *Client) Generate(ctx context.Context, content string, mc *MarketContext, workflowID string) (*DraftResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	tone := ""
	if mc != nil {
		tone = mc.Tone
	}

	var result DraftResult
	var apiErr apiErrorBody
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Question:      content,
			Task:          "generate_response",
			MarketContext: mc,
			Tone:          tone,
			WorkflowID:    workflowID,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/generate")
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: errMessage(apiErr, resp)}
	}
	return &result, nil
}

// Health checks whether the agent API is reachable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return &TransportError{Err: err}
	}
	if resp.StatusCode() != 200 {
		return &APIError{StatusCode: resp.StatusCode(), Message: "health check failed"}
	}
	return nil
}

func errMessage(body apiErrorBody, resp *resty.Response) string {
	if body.Error != "" {
		return body.Error
	}
	return string(resp.Body())
}
