package crawler

import (
	"context"
	"time"

	"github.com/timmy/leadscout/internal/domain"
)

// RawPost is a candidate post as returned by a platform source, before any
// filtering or deduplication.
type RawPost struct {
	PostID    string
	Title     string
	Body      string
	Author    string
	URL       string
	Tags      []string
	Upvotes   int
	CreatedAt time.Time
}

// RawComment is a supporting comment fetched alongside a post.
type RawComment struct {
	CommentID string
	Body      string
	Author    string
	Upvotes   int
	CreatedAt time.Time
}

// SearchParams carries one market's crawl target parameters to a source.
type SearchParams struct {
	Subreddits []string
	Topics     []string
	Queries    []string
	Limit      int
}

// PostResult is the outcome of publishing a reply.
type PostResult struct {
	Success   bool
	RemoteURL string
	Error     string
}

// Source fetches candidate posts from one platform.
// Fetch must return an error on unreachable/auth failure and an empty slice
// (not an error) on zero results.
type Source interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, params SearchParams) ([]RawPost, error)
	FetchComments(ctx context.Context, postID string, limit int) ([]RawComment, error)
}

// Sink publishes a reply to one platform. Implementations must be safe to
// retry: the caller dedups retries through the AgentResponse posted flag.
type Sink interface {
	Platform() domain.Platform
	Post(ctx context.Context, postID, text string) (*PostResult, error)
}
