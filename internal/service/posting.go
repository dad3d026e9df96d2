package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/crawler"
	"github.com/timmy/leadscout/internal/domain"
	"github.com/timmy/leadscout/internal/logger"
	"github.com/timmy/leadscout/internal/repository"
)

var (
	// ErrNoDraft means the response has no reply text to publish.
	ErrNoDraft = errors.New("response has no draft to post")
	// ErrAlreadyPosted means the reply was published before; posting never
	// repeats.
	ErrAlreadyPosted = errors.New("response already posted")
	// ErrApprovalRequired means auto-posting is disabled and the caller did
	// not approve the post explicitly.
	ErrApprovalRequired = errors.New("posting requires explicit approval")
	// ErrRateLimited means the per-platform minimum spacing has not elapsed.
	// The request is refused, never queued.
	ErrRateLimited = errors.New("posting rate limit: minimum spacing not elapsed")
)

// PostingService publishes approved draft replies back to their platform.
// Publication is deliberately conservative: explicit approval unless auto-post
// is enabled, minimum spacing between posts per platform, and a posted flag
// that flips at most once.
type PostingService struct {
	questions *repository.QuestionRepository
	responses *repository.ResponseRepository
	sinks     *crawler.Registry

	autoPost    bool
	minSpacing  time.Duration
	postTimeout time.Duration

	mu       sync.Mutex
	lastPost map[domain.Platform]time.Time

	now func() time.Time
}

// NewPostingService creates a posting service.
func NewPostingService(
	questions *repository.QuestionRepository,
	responses *repository.ResponseRepository,
	sinks *crawler.Registry,
	cfg *config.PostingConfig,
) *PostingService {
	postTimeout := cfg.PostTimeout
	if postTimeout == 0 {
		postTimeout = 30 * time.Second
	}
	return &PostingService{
		questions:   questions,
		responses:   responses,
		sinks:       sinks,
		autoPost:    cfg.AutoPostEnabled,
		minSpacing:  cfg.MinSpacing,
		postTimeout: postTimeout,
		lastPost:    make(map[domain.Platform]time.Time),
		now:         time.Now,
	}
}

// Post publishes the draft reply for a question. approved records an explicit
// human approval; without it the call is refused unless auto-posting is
// enabled. On publish failure the posted flag stays false and the call may be
// retried.
func (s *PostingService) Post(ctx context.Context, questionID string, approved bool) (*domain.AgentResponse, error) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question %s: %w", questionID, err)
	}
	resp, err := s.responses.GetByQuestionID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load response for %s: %w", questionID, err)
	}

	if !resp.HasDraft() {
		return nil, ErrNoDraft
	}
	if resp.Posted {
		return nil, ErrAlreadyPosted
	}
	if !approved && !s.autoPost {
		return nil, ErrApprovalRequired
	}

	sink, err := s.sinks.Sink(q.Platform)
	if err != nil {
		return nil, err
	}

	// Reserve the platform's posting slot before the network call so
	// concurrent posts to the same platform cannot both pass the spacing
	// check. The reservation is rolled back on failure.
	prev, err := s.reserveSlot(q.Platform)
	if err != nil {
		return nil, err
	}

	ctx = logger.SetQuestionID(ctx, q.ID)
	ctx = logger.SetPlatform(ctx, string(q.Platform))
	log := logger.FromContext(ctx)

	postCtx, cancel := context.WithTimeout(ctx, s.postTimeout)
	defer cancel()

	result, err := sink.Post(postCtx, q.PostID, *resp.ResponseText)
	if err == nil && !result.Success {
		err = fmt.Errorf("platform rejected post: %s", result.Error)
	}
	if err != nil {
		s.rollbackSlot(q.Platform, prev)
		_ = s.responses.SetError(ctx, resp.ID, fmt.Sprintf("post: %v", err))
		log.WithError(err).Error("Posting failed")
		return nil, err
	}

	postedAt := s.now().UTC()
	flipped, err := s.responses.MarkPosted(ctx, resp.ID, postedAt)
	if err != nil {
		return nil, err
	}
	if !flipped {
		// Lost a mark race after a successful publish; the other writer's
		// record stands.
		return s.responses.GetByQuestionID(ctx, questionID)
	}

	log.WithField("remote_url", result.RemoteURL).Info("Reply posted")

	resp.Posted = true
	resp.PostedAt = &postedAt
	return resp, nil
}

// reserveSlot enforces the per-platform minimum spacing and claims the next
// slot. Returns the previous timestamp for rollback.
func (s *PostingService) reserveSlot(platform domain.Platform) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.lastPost[platform]
	if s.minSpacing > 0 && !prev.IsZero() {
		if elapsed := s.now().Sub(prev); elapsed < s.minSpacing {
			return prev, fmt.Errorf("%w: next slot in %s", ErrRateLimited, s.minSpacing-elapsed)
		}
	}
	s.lastPost[platform] = s.now()
	return prev, nil
}

func (s *PostingService) rollbackSlot(platform domain.Platform, prev time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev.IsZero() {
		delete(s.lastPost, platform)
		return
	}
	s.lastPost[platform] = prev
}
