package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/leadscout/internal/agent"
	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/domain"
	"github.com/timmy/leadscout/internal/logger"
	"github.com/timmy/leadscout/internal/repository"
)

// AgentAPI is the slice of the agent client the pipeline needs. Tests inject
// fakes through it.
type AgentAPI interface {
	Analyze(ctx context.Context, title, content string, mc *agent.MarketContext) (*agent.ScoreResult, error)
	Generate(ctx context.Context, content string, mc *agent.MarketContext, workflowID string) (*agent.DraftResult, error)
}

// Poster publishes a drafted reply. The pipeline invokes it unapproved after
// each successful draft so the auto-post gate decides whether the reply goes
// out immediately or waits for human review.
type Poster interface {
	Post(ctx context.Context, questionID string, approved bool) (*domain.AgentResponse, error)
}

// ErrNotClaimable means the question was not in pending state when the
// pipeline tried to claim it: another worker got there first or it already
// reached a terminal state. Benign; callers drop the work item.
var ErrNotClaimable = errors.New("question is not claimable")

const disclosureFooter = "(I work on Mulan, so I'm biased, but happy to answer questions either way.)"

// ScoringPipeline drives questions through pending -> processing -> terminal:
// analyze for scope and confidence, then draft a reply for in-scope questions.
// Workers pull from a bounded queue; a full queue is absorbed by the pending
// sweep on the next start.
type ScoringPipeline struct {
	questions *repository.QuestionRepository
	responses *repository.ResponseRepository
	agent     AgentAPI
	markets   *config.Registry
	retry     RetryPolicy
	poster    Poster

	queue   chan string
	workers int

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewScoringPipeline creates a pipeline. Start must be called before Enqueue
// delivers anything.
func NewScoringPipeline(
	questions *repository.QuestionRepository,
	responses *repository.ResponseRepository,
	agentAPI AgentAPI,
	markets *config.Registry,
	cfg *config.PipelineConfig,
) *ScoringPipeline {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 64
	}
	retry := RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Base:        cfg.BackoffBase,
		Cap:         cfg.BackoffCap,
	}
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryPolicy()
	}

	return &ScoringPipeline{
		questions: questions,
		responses: responses,
		agent:     agentAPI,
		markets:   markets,
		retry:     retry,
		queue:     make(chan string, queueSize),
		workers:   workers,
		stopped:   make(chan struct{}),
	}
}

// AttachPoster wires the posting service in after construction. The pipeline
// and the posting service share repositories, so they are built separately
// and linked here.
func (p *ScoringPipeline) AttachPoster(poster Poster) {
	p.poster = poster
}

// Start launches the worker pool. Workers exit when ctx is canceled or Stop
// is called.
func (p *ScoringPipeline) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Stop signals workers to drain and waits for them.
func (p *ScoringPipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
	p.wg.Wait()
}

// Enqueue offers a question to the worker pool without blocking. Returns
// false when the queue is full.
func (p *ScoringPipeline) Enqueue(questionID string) bool {
	select {
	case p.queue <- questionID:
		return true
	default:
		return false
	}
}

func (p *ScoringPipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case id := <-p.queue:
			if err := p.Process(ctx, id); err != nil && !errors.Is(err, ErrNotClaimable) {
				logger.FromContext(ctx).WithError(err).
					WithField(logger.FieldQuestionID, id).
					Error("Scoring failed")
			}
		}
	}
}

// RequeuePending sweeps questions stuck in pending (or abandoned in
// processing from a previous run) back into the queue. Called at startup so
// a crash or a full queue never strands work. Returns how many were queued.
func (p *ScoringPipeline) RequeuePending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	// Processing rows from a dead run are reset to pending first so the
	// claim transition works again.
	stale, err := p.questions.List(ctx, domain.QuestionStatusProcessing, "", limit, 0)
	if err != nil {
		return 0, err
	}
	for _, q := range stale {
		if err := p.questions.UpdateStatus(ctx, q.ID, domain.QuestionStatusPending); err != nil {
			return 0, err
		}
	}

	pending, err := p.questions.List(ctx, domain.QuestionStatusPending, "", limit, 0)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, q := range pending {
		if !p.Enqueue(q.ID) {
			break
		}
		queued++
	}
	if queued > 0 {
		logger.FromContext(ctx).WithField(logger.FieldCount, queued).Info("Requeued pending questions")
	}
	return queued, nil
}

// Process runs the full scoring flow for one question. Idempotent: the
// pending -> processing claim admits each question exactly once, and losers
// get ErrNotClaimable.
func (p *ScoringPipeline) Process(ctx context.Context, questionID string) error {
	q, err := p.questions.GetByID(ctx, questionID)
	if err != nil {
		return fmt.Errorf("load question %s: %w", questionID, err)
	}

	claimed, err := p.questions.ClaimForProcessing(ctx, q.ID)
	if err != nil {
		return fmt.Errorf("claim question %s: %w", q.ID, err)
	}
	if !claimed {
		return ErrNotClaimable
	}

	ctx = logger.SetQuestionID(ctx, q.ID)
	ctx = logger.SetMarket(ctx, q.Market)
	log := logger.FromContext(ctx)

	mc := p.marketContext(q.Market)

	var score *agent.ScoreResult
	start := time.Now()
	err = p.retry.Do(ctx, func(ctx context.Context) error {
		var aerr error
		score, aerr = p.agent.Analyze(ctx, q.Title, q.Body, mc)
		return aerr
	})
	if err != nil {
		return p.failQuestion(ctx, q, fmt.Sprintf("analyze: %v", err))
	}

	resp := &domain.AgentResponse{
		ID:              uuid.New().String(),
		QuestionID:      q.ID,
		IsInScope:       score.IsInScope,
		ConfidenceScore: score.ConfidenceScore,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := p.responses.Create(ctx, resp); err != nil {
		if !errors.Is(err, repository.ErrResponseExists) {
			return fmt.Errorf("store response for %s: %w", q.ID, err)
		}
		// A re-queued question already carries a response row. Reuse it
		// with the fresh verdict instead of duplicating or discarding.
		existing, gerr := p.responses.GetByQuestionID(ctx, q.ID)
		if gerr != nil {
			return fmt.Errorf("load existing response for %s: %w", q.ID, gerr)
		}
		if existing.Posted {
			// The reply already went out; nothing left to score or draft.
			_ = p.questions.UpdateStatus(ctx, q.ID, domain.QuestionStatusAnswered)
			return ErrNotClaimable
		}
		if uerr := p.responses.UpdateVerdict(ctx, existing.ID, score.IsInScope, score.ConfidenceScore); uerr != nil {
			return fmt.Errorf("update response for %s: %w", q.ID, uerr)
		}
		existing.IsInScope = score.IsInScope
		existing.ConfidenceScore = score.ConfidenceScore
		existing.ErrorMessage = nil
		resp = existing
	}

	threshold := p.markets.MinConfidence(q.Market)
	if !score.IsInScope || score.ConfidenceScore < threshold {
		if err := p.questions.UpdateStatus(ctx, q.ID, domain.QuestionStatusIgnored); err != nil {
			return err
		}
		log.WithFields(logger.Fields{
			"in_scope":   score.IsInScope,
			"confidence": score.ConfidenceScore,
			"threshold":  threshold,
		}).Info("Question ignored")
		return nil
	}

	var draft *agent.DraftResult
	err = p.retry.Do(ctx, func(ctx context.Context) error {
		var gerr error
		draft, gerr = p.agent.Generate(ctx, q.Title+"\n\n"+q.Body, mc, score.SuggestedWorkflow)
		return gerr
	})
	if err != nil {
		_ = p.responses.SetError(ctx, resp.ID, fmt.Sprintf("generate: %v", err))
		if uerr := p.questions.UpdateStatus(ctx, q.ID, domain.QuestionStatusError); uerr != nil {
			return uerr
		}
		log.WithError(err).Error("Draft generation failed")
		return nil
	}

	link := p.workflowLink(q, score, draft)
	text := FormatReply(draft.ResponseText, link)
	var linkPtr *string
	if link != "" {
		linkPtr = &link
	}
	if err := p.responses.SetDraft(ctx, resp.ID, text, linkPtr); err != nil {
		return fmt.Errorf("store draft for %s: %w", q.ID, err)
	}
	if err := p.questions.UpdateStatus(ctx, q.ID, domain.QuestionStatusAnswered); err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"confidence":           score.ConfidenceScore,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("Question answered")

	// Offer the draft for immediate publication. With auto-posting disabled
	// this refuses with ErrApprovalRequired and the draft waits for review.
	if p.poster != nil {
		if _, perr := p.poster.Post(ctx, q.ID, false); perr != nil {
			if errors.Is(perr, ErrApprovalRequired) {
				log.Debug("Draft awaiting approval")
			} else {
				log.WithError(perr).Warn("Auto-post failed, draft stays reviewable")
			}
		}
	}
	return nil
}

// failQuestion records a terminal analysis failure: an error response so the
// reason is queryable, and status error so the question never re-enters the
// queue.
func (p *ScoringPipeline) failQuestion(ctx context.Context, q *domain.Question, message string) error {
	resp := &domain.AgentResponse{
		ID:           uuid.New().String(),
		QuestionID:   q.ID,
		ErrorMessage: &message,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := p.responses.Create(ctx, resp); err != nil {
		if !errors.Is(err, repository.ErrResponseExists) {
			return err
		}
		// A re-queued question keeps its response row; refresh the reason.
		if existing, gerr := p.responses.GetByQuestionID(ctx, q.ID); gerr == nil {
			_ = p.responses.SetError(ctx, existing.ID, message)
		}
	}
	if err := p.questions.UpdateStatus(ctx, q.ID, domain.QuestionStatusError); err != nil {
		return err
	}
	logger.FromContext(ctx).WithField("reason", message).Warn("Question marked as error")
	return nil
}

func (p *ScoringPipeline) marketContext(market string) *agent.MarketContext {
	m := p.markets.Get(market)
	if m == nil {
		return &agent.MarketContext{Market: market}
	}
	return &agent.MarketContext{
		Market:     m.Name,
		Tone:       m.Tone,
		TargetPain: m.TargetPain,
		Context:    m.AgentContext,
	}
}

// workflowLink picks the example link for the draft: the generator's explicit
// link wins, then the analyzer's suggestion when it is a full URL, then the
// market's keyword-matched example.
func (p *ScoringPipeline) workflowLink(q *domain.Question, score *agent.ScoreResult, draft *agent.DraftResult) string {
	if draft.WorkflowLink != "" {
		return draft.WorkflowLink
	}
	if strings.HasPrefix(score.SuggestedWorkflow, "http") {
		return score.SuggestedWorkflow
	}
	return p.markets.WorkflowLinkFor(q.Market, q.Title+" "+q.Body)
}

// FormatReply assembles the final reply text: draft body, optional workflow
// link, and the affiliation disclosure.
func FormatReply(body, workflowLink string) string {
	text := strings.TrimSpace(body)
	if workflowLink != "" {
		text += "\n\nYou might find this helpful: " + workflowLink
	}
	text += "\n\n" + disclosureFooter
	return text
}
