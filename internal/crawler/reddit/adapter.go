package reddit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/leadscout/internal/crawler"
	"github.com/timmy/leadscout/internal/domain"
)

const (
	publicBaseURL = "https://www.reddit.com"
	oauthBaseURL  = "https://oauth.reddit.com"
)

// Config holds the Reddit adapter configuration. AccessToken is only needed
// for posting replies; fetching uses the public JSON listings.
type Config struct {
	UserAgent   string
	AccessToken string
	Timeout     time.Duration
}

// Adapter crawls Reddit via the public JSON listing endpoints and posts
// replies via the OAuth comment API.
type Adapter struct {
	client      *resty.Client
	oauthClient *resty.Client
}

// NewAdapter creates a Reddit adapter.
func NewAdapter(cfg *Config) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(publicBaseURL).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTimeout(timeout)

	oauthClient := resty.New().
		SetBaseURL(oauthBaseURL).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTimeout(timeout)
	if cfg.AccessToken != "" {
		oauthClient.SetHeader("Authorization", "Bearer "+cfg.AccessToken)
	}

	return &Adapter{client: client, oauthClient: oauthClient}
}

// Platform returns the platform key this adapter serves.
func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformReddit
}

// listing is the subset of Reddit's listing envelope we read.
type listing struct {
	Data struct {
		Children []struct {
			Data thing `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type thing struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Body          string  `json:"body"`
	Author        string  `json:"author"`
	Permalink     string  `json:"permalink"`
	Ups           int     `json:"ups"`
	CreatedUTC    float64 `json:"created_utc"`
	LinkFlairText string  `json:"link_flair_text"`
}

// Fetch crawls each configured subreddit and returns the union of results,
// capped at params.Limit. Subreddits with queries are searched; subreddits
// without queries fall back to the new-listing feed. One subreddit failing
// does not starve the others; the fetch only errors when every subreddit
// failed. Zero results is not an error.
func (a *Adapter) Fetch(ctx context.Context, params crawler.SearchParams) ([]crawler.RawPost, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	var posts []crawler.RawPost
	seen := make(map[string]struct{})
	var firstErr error

	for _, sub := range params.Subreddits {
		if len(posts) >= limit {
			break
		}
		fetched, err := a.fetchSubreddit(ctx, sub, params.Queries, limit-len(posts))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, p := range fetched {
			if _, dup := seen[p.PostID]; dup {
				continue
			}
			seen[p.PostID] = struct{}{}
			posts = append(posts, p)
			if len(posts) >= limit {
				break
			}
		}
	}

	if len(posts) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return posts, nil
}

func (a *Adapter) fetchSubreddit(ctx context.Context, sub string, queries []string, limit int) ([]crawler.RawPost, error) {
	if len(queries) == 0 {
		return a.fetchListing(ctx, sub, fmt.Sprintf("/r/%s/new.json", sub), nil, limit)
	}

	var posts []crawler.RawPost
	for _, query := range queries {
		if len(posts) >= limit {
			break
		}
		batch, err := a.fetchListing(ctx, sub, fmt.Sprintf("/r/%s/search.json", sub), map[string]string{
			"q":           query,
			"restrict_sr": "1",
			"sort":        "new",
		}, limit-len(posts))
		if err != nil {
			return nil, err
		}
		posts = append(posts, batch...)
	}
	return posts, nil
}

func (a *Adapter) fetchListing(ctx context.Context, sub, path string, query map[string]string, limit int) ([]crawler.RawPost, error) {
	params := map[string]string{"limit": fmt.Sprintf("%d", limit)}
	for k, v := range query {
		params[k] = v
	}

	var result listing
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("reddit fetch r/%s: %w", sub, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("reddit fetch r/%s: HTTP %d", sub, resp.StatusCode())
	}

	var posts []crawler.RawPost
	for _, child := range result.Data.Children {
		t := child.Data
		if t.ID == "" {
			continue
		}

		var tags []string
		if t.LinkFlairText != "" {
			tags = append(tags, t.LinkFlairText)
		}
		tags = append(tags, sub)

		posts = append(posts, crawler.RawPost{
			PostID:    t.ID,
			Title:     t.Title,
			Body:      t.Selftext,
			Author:    t.Author,
			URL:       publicBaseURL + t.Permalink,
			Tags:      tags,
			Upvotes:   t.Ups,
			CreatedAt: time.Unix(int64(t.CreatedUTC), 0).UTC(),
		})
		if len(posts) >= limit {
			break
		}
	}
	return posts, nil
}

// FetchComments returns top-level comments for a post.
func (a *Adapter) FetchComments(ctx context.Context, postID string, limit int) ([]crawler.RawComment, error) {
	if limit <= 0 {
		limit = 20
	}

	// The comments endpoint returns [post listing, comment listing].
	var result []listing
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&result).
		Get(fmt.Sprintf("/comments/%s.json", postID))
	if err != nil {
		return nil, fmt.Errorf("reddit comments %s: %w", postID, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("reddit comments %s: HTTP %d", postID, resp.StatusCode())
	}
	if len(result) < 2 {
		return nil, nil
	}

	var comments []crawler.RawComment
	for _, child := range result[1].Data.Children {
		t := child.Data
		if t.ID == "" || t.Body == "" {
			continue
		}
		comments = append(comments, crawler.RawComment{
			CommentID: t.ID,
			Body:      t.Body,
			Author:    t.Author,
			Upvotes:   t.Ups,
			CreatedAt: time.Unix(int64(t.CreatedUTC), 0).UTC(),
		})
		if len(comments) >= limit {
			break
		}
	}
	return comments, nil
}

type commentResponse struct {
	JSON struct {
		Errors [][]interface{} `json:"errors"`
		Data   struct {
			Things []struct {
				Data struct {
					Permalink string `json:"permalink"`
				} `json:"data"`
			} `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// Post publishes a reply comment on a post. Requires an OAuth access token.
func (a *Adapter) Post(ctx context.Context, postID, text string) (*crawler.PostResult, error) {
	var result commentResponse
	resp, err := a.oauthClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"api_type": "json",
			"thing_id": "t3_" + postID,
			"text":     text,
		}).
		SetResult(&result).
		Post("/api/comment")
	if err != nil {
		return nil, fmt.Errorf("reddit post comment: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &crawler.PostResult{
			Success: false,
			Error:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), resp.Body()),
		}, nil
	}
	if len(result.JSON.Errors) > 0 {
		return &crawler.PostResult{
			Success: false,
			Error:   fmt.Sprintf("reddit API errors: %v", result.JSON.Errors),
		}, nil
	}

	remoteURL := ""
	if things := result.JSON.Data.Things; len(things) > 0 {
		remoteURL = publicBaseURL + things[0].Data.Permalink
	}
	return &crawler.PostResult{Success: true, RemoteURL: remoteURL}, nil
}
