package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/timmy/leadscout/internal/agent"
	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/crawler"
	"github.com/timmy/leadscout/internal/domain"
	"github.com/timmy/leadscout/internal/repository"
	"gorm.io/gorm"
)

// newTestDB opens an isolated in-memory database with the full schema.
// MaxOpenConns is pinned to 1 so every query sees the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func testRegistry() *config.Registry {
	return config.NewRegistry(0.7,
		&config.MarketConfig{
			Name: "indie_authors",
			Targets: []config.CrawlTarget{
				{
					Platform:      "reddit",
					Subreddits:    []string{"selfpublish"},
					Keywords:      []string{"book trailer", "book marketing"},
					MinUpvotes:    2,
					SearchQueries: []string{"book trailer"},
				},
			},
			Tone:         "encouraging",
			TargetPain:   "marketing their books",
			AgentContext: "video for book promotion",
			WorkflowExamples: map[string]string{
				"book_trailer": "https://app.mulan.ai/workflow/book-trailer",
				"author_intro": "https://app.mulan.ai/workflow/author-intro",
			},
			MinConfidenceScore: 0.65,
			CrawlInterval:      6 * time.Hour,
		},
		&config.MarketConfig{
			Name: "nonprofits",
			Targets: []config.CrawlTarget{
				{
					Platform:      "reddit",
					Subreddits:    []string{"nonprofit"},
					Keywords:      []string{"fundraising video"},
					MinUpvotes:    3,
					SearchQueries: []string{"fundraising video"},
				},
			},
			Tone:          "empathetic",
			CrawlInterval: 12 * time.Hour,
		},
	)
}

// ----- fakes -----

type fakeSource struct {
	mu         sync.Mutex
	platform   domain.Platform
	posts      []crawler.RawPost
	comments   map[string][]crawler.RawComment
	fetchErr   error
	fetchCalls int

	// when set, Fetch signals started and blocks until release is closed
	started chan struct{}
	release chan struct{}
}

func (f *fakeSource) Platform() domain.Platform {
	if f.platform == "" {
		return domain.PlatformReddit
	}
	return f.platform
}

func (f *fakeSource) Fetch(ctx context.Context, params crawler.SearchParams) ([]crawler.RawPost, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.posts, nil
}

func (f *fakeSource) FetchComments(ctx context.Context, postID string, limit int) ([]crawler.RawComment, error) {
	return f.comments[postID], nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

type fakeSink struct {
	mu       sync.Mutex
	platform domain.Platform
	err      error
	result   *crawler.PostResult
	texts    []string
}

func (f *fakeSink) Platform() domain.Platform {
	if f.platform == "" {
		return domain.PlatformReddit
	}
	return f.platform
}

func (f *fakeSink) Post(ctx context.Context, postID, text string) (*crawler.PostResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	if f.result != nil {
		return f.result, nil
	}
	return &crawler.PostResult{Success: true, RemoteURL: "https://reddit.com/r/x/" + postID}, nil
}

type fakeAgent struct {
	mu            sync.Mutex
	score         *agent.ScoreResult
	draft         *agent.DraftResult
	analyzeErr    error   // persistent error, every call
	analyzeErrs   []error // consumed first, one per call
	generateErr   error
	analyzeCalls  int
	generateCalls int
}

func (f *fakeAgent) Analyze(ctx context.Context, title, content string, mc *agent.MarketContext) (*agent.ScoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls++
	if len(f.analyzeErrs) > 0 {
		err := f.analyzeErrs[0]
		f.analyzeErrs = f.analyzeErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.score, nil
}

func (f *fakeAgent) Generate(ctx context.Context, content string, mc *agent.MarketContext, workflowID string) (*agent.DraftResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.draft, nil
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	ids  []string
	full bool
}

func (f *fakeEnqueuer) Enqueue(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.ids = append(f.ids, id)
	return true
}

// seedQuestion stores a pending question directly through the repository.
func seedQuestion(t *testing.T, repo *repository.QuestionRepository, id, postID, market string) *domain.Question {
	t.Helper()
	q := &domain.Question{
		ID:          id,
		Platform:    domain.PlatformReddit,
		PostID:      postID,
		Title:       "How do I make a book trailer?",
		Body:        "Looking for an easy way to promote my novel with video.",
		Market:      market,
		ContentHash: Fingerprint("How do I make a book trailer?", "Looking for an easy way to promote my novel with video."),
		Status:      domain.QuestionStatusPending,
		CreatedAt:   time.Now().UTC(),
		CrawledAt:   time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), q); err != nil {
		t.Fatalf("failed to seed question: %v", err)
	}
	return q
}
