package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/crawler"
	"github.com/timmy/leadscout/internal/domain"
	"github.com/timmy/leadscout/internal/logger"
	"github.com/timmy/leadscout/internal/repository"
)

// Enqueuer hands newly stored questions to the scoring pipeline. Enqueue must
// not block; it returns false when the queue is full (a later pending sweep
// picks the question up).
type Enqueuer interface {
	Enqueue(questionID string) bool
}

// IngestStats summarizes one crawl target's ingestion. Found counts posts
// that passed the relevance filter, before deduplication.
type IngestStats struct {
	Found      int `json:"items_found"`
	Stored     int `json:"items_stored"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// IngestService turns raw crawled posts into persisted questions: relevance
// filter, identity dedup, content fingerprint, persist, enqueue for scoring.
type IngestService struct {
	questions *repository.QuestionRepository
	comments  *repository.CommentRepository
	dedup     *Deduplicator
	crawlers  *crawler.Registry
	enqueuer  Enqueuer
	logger    *logger.Logger

	commentLimit int
}

// NewIngestService creates an ingest service. enqueuer may be nil when no
// pipeline is running (one-shot CLI crawl).
func NewIngestService(
	questions *repository.QuestionRepository,
	comments *repository.CommentRepository,
	dedup *Deduplicator,
	crawlers *crawler.Registry,
	enqueuer Enqueuer,
	log *logger.Logger,
) *IngestService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &IngestService{
		questions:    questions,
		comments:     comments,
		dedup:        dedup,
		crawlers:     crawlers,
		enqueuer:     enqueuer,
		logger:       log,
		commentLimit: 10,
	}
}

// IngestTarget fetches and ingests one crawl target of a market. A fetch
// failure aborts the whole run and is returned to the caller; a failure on a
// single post is counted in stats.Failed and skipped.
func (s *IngestService) IngestTarget(ctx context.Context, mkt *config.MarketConfig, target *config.CrawlTarget, limit int) (*IngestStats, error) {
	source, err := s.crawlers.Source(domain.Platform(target.Platform))
	if err != nil {
		return nil, err
	}

	posts, err := source.Fetch(ctx, crawler.SearchParams{
		Subreddits: target.Subreddits,
		Topics:     target.Topics,
		Queries:    target.SearchQueries,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s for market %s: %w", target.Platform, mkt.Name, err)
	}

	stats := &IngestStats{}
	for i := range posts {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		s.ingestPost(ctx, mkt, target, source, &posts[i], stats)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldMarket:   mkt.Name,
		logger.FieldPlatform: target.Platform,
		"found":              stats.Found,
		"stored":             stats.Stored,
		"duplicates":         stats.Duplicates,
		"failed":             stats.Failed,
	}).Info("Target ingestion completed")

	return stats, nil
}

// IngestPosts ingests an already fetched batch. Exposed for callers that did
// their own fetch; comments are not attached on this path.
func (s *IngestService) IngestPosts(ctx context.Context, mkt *config.MarketConfig, target *config.CrawlTarget, posts []crawler.RawPost) *IngestStats {
	stats := &IngestStats{}
	for i := range posts {
		if ctx.Err() != nil {
			break
		}
		s.ingestPost(ctx, mkt, target, nil, &posts[i], stats)
	}
	return stats
}

func (s *IngestService) ingestPost(ctx context.Context, mkt *config.MarketConfig, target *config.CrawlTarget, source crawler.Source, post *crawler.RawPost, stats *IngestStats) {
	if !Relevant(post, target) {
		return
	}
	stats.Found++

	platform := domain.Platform(target.Platform)
	log := logger.FromContext(ctx)

	dup, err := s.dedup.IsDuplicate(ctx, platform, post.PostID)
	if err != nil {
		stats.Failed++
		log.WithError(err).WithField("post_id", post.PostID).Error("Dedup check failed")
		return
	}
	if dup {
		stats.Duplicates++
		return
	}

	hash := Fingerprint(post.Title, post.Body)
	if seen, err := s.dedup.ContentSeen(ctx, hash); err == nil && seen {
		// Same content under a different post ID. Flagged only; identity is
		// the sole hard dedup gate.
		log.WithFields(logger.Fields{
			logger.FieldPlatform: target.Platform,
			"post_id":            post.PostID,
			"content_hash":       hash,
		}).Warn("Content fingerprint already seen, ingesting anyway")
	}

	q := &domain.Question{
		ID:          uuid.New().String(),
		Platform:    platform,
		PostID:      post.PostID,
		Title:       post.Title,
		Body:        post.Body,
		Author:      post.Author,
		URL:         post.URL,
		Tags:        domain.StringArray(post.Tags),
		Upvotes:     post.Upvotes,
		Market:      mkt.Name,
		ContentHash: hash,
		Status:      domain.QuestionStatusPending,
		CreatedAt:   post.CreatedAt,
		CrawledAt:   time.Now().UTC(),
	}

	if err := s.questions.Create(ctx, q); err != nil {
		if errors.Is(err, repository.ErrDuplicateQuestion) {
			// Lost an insert race with a concurrent run. First writer wins.
			stats.Duplicates++
			return
		}
		stats.Failed++
		log.WithError(err).WithField("post_id", post.PostID).Error("Failed to store question")
		return
	}
	stats.Stored++

	if source != nil {
		s.attachComments(ctx, source, q)
	}

	if s.enqueuer != nil && !s.enqueuer.Enqueue(q.ID) {
		log.WithField(logger.FieldQuestionID, q.ID).Warn("Scoring queue full, deferring to pending sweep")
	}
}

// attachComments fetches supporting comments best-effort; a failure never
// affects the already ingested question.
func (s *IngestService) attachComments(ctx context.Context, source crawler.Source, q *domain.Question) {
	raw, err := source.FetchComments(ctx, q.PostID, s.commentLimit)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldQuestionID, q.ID).Debug("Failed to fetch comments")
		return
	}
	if len(raw) == 0 {
		return
	}

	comments := make([]domain.Comment, 0, len(raw))
	for _, c := range raw {
		comments = append(comments, domain.Comment{
			ID:         uuid.New().String(),
			QuestionID: q.ID,
			CommentID:  c.CommentID,
			Body:       c.Body,
			Author:     c.Author,
			Upvotes:    c.Upvotes,
			CreatedAt:  c.CreatedAt,
		})
	}
	if err := s.comments.Upsert(ctx, comments); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldQuestionID, q.ID).Debug("Failed to store comments")
	}
}

// Relevant applies the target's relevance filter: the post must meet the
// upvote threshold and match at least one keyword (case-insensitive, against
// title and body). No configured keywords means every post passes the keyword
// check.
func Relevant(post *crawler.RawPost, target *config.CrawlTarget) bool {
	if post.Upvotes < target.MinUpvotes {
		return false
	}
	if len(target.Keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(post.Title + " " + post.Body)
	for _, kw := range target.Keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
